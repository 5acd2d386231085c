package registry

import "sync/atomic"

// PerfStats accumulates the counters spec.md §4.4 names explicitly:
// instruction count, counts of compiles/executions/completions, and the
// CompileNanos/ExecuteNanos time fields. The only callers,
// jinx.Runtime.Compile and vm.Script.Execute, record 0 nanoseconds, so
// CompileNanos and ExecuteNanos stay 0. All fields are updated with atomic ops
// so Runtime.GetPerformanceStats can be called concurrently with compiles
// and script execution, mirroring the teacher's preference for narrow
// synchronization primitives over a single coarse mutex.
type PerfStats struct {
	CompileCount      int64
	CompileNanos      int64
	ExecuteCount      int64
	ExecuteNanos      int64
	InstructionCount  int64
	CompletionCount   int64
}

func (p *PerfStats) addCompile(nanos int64) {
	atomic.AddInt64(&p.CompileCount, 1)
	atomic.AddInt64(&p.CompileNanos, nanos)
}

func (p *PerfStats) addExecute(nanos int64, instructions int64) {
	atomic.AddInt64(&p.ExecuteCount, 1)
	atomic.AddInt64(&p.ExecuteNanos, nanos)
	atomic.AddInt64(&p.InstructionCount, instructions)
}

func (p *PerfStats) addCompletion() {
	atomic.AddInt64(&p.CompletionCount, 1)
}

// Snapshot returns a copy of the current counters, optionally resetting
// them to zero (Runtime.GetPerformanceStats(reset) in spec.md §6).
func (p *PerfStats) Snapshot(reset bool) PerfStats {
	s := PerfStats{
		CompileCount:     atomic.LoadInt64(&p.CompileCount),
		CompileNanos:     atomic.LoadInt64(&p.CompileNanos),
		ExecuteCount:     atomic.LoadInt64(&p.ExecuteCount),
		ExecuteNanos:     atomic.LoadInt64(&p.ExecuteNanos),
		InstructionCount: atomic.LoadInt64(&p.InstructionCount),
		CompletionCount:  atomic.LoadInt64(&p.CompletionCount),
	}
	if reset {
		atomic.StoreInt64(&p.CompileCount, 0)
		atomic.StoreInt64(&p.CompileNanos, 0)
		atomic.StoreInt64(&p.ExecuteCount, 0)
		atomic.StoreInt64(&p.ExecuteNanos, 0)
		atomic.StoreInt64(&p.InstructionCount, 0)
		atomic.StoreInt64(&p.CompletionCount, 0)
	}
	return s
}
