// Package registry implements the Runtime and Library tables of spec.md
// §4.4: libraries, functions (bytecode or native), properties, ID lookup,
// and performance counters. It is the long-lived object scripts are built
// against — "Registry outlives all scripts built against it" (spec.md §3
// Lifecycle) — mirroring how the teacher's vm.Instance owns its memory and
// opcode tables for the life of the process while individual assembled
// images come and go.
package registry

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/lexer"
	"github.com/jinx-lang/jinx/sig"
)

// Config holds the process-wide options spec.md §6 lists under
// "Configuration (recognized options)". It is populated via the
// jinx.Option functional-options surface and handed to Initialize/
// NewRuntime.
type Config struct {
	LogFn                  func(level LogLevel, message string)
	EnableLogging          bool
	LogSymbols             bool
	LogBytecode            bool
	EnableDebugInfo        bool
	MaxInstructions        int
	ErrorOnMaxInstructions bool
}

// LogLevel matches spec.md §6's three host log levels.
type LogLevel int

const (
	LogInfo LogLevel = iota
	LogWarning
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogInfo:
		return "INFO"
	case LogWarning:
		return "WARNING"
	case LogError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DefaultConfig mirrors the defaults spec.md §6 states: 2000 instructions
// per slice, slice-return (not error) on exhaustion, no debug info, no
// diagnostic dumps, logging on with a stdout printer.
func DefaultConfig() Config {
	return Config{
		LogFn:                  defaultLogFn,
		EnableLogging:          true,
		MaxInstructions:        2000,
		ErrorOnMaxInstructions: false,
	}
}

func defaultLogFn(level LogLevel, message string) {
	fmt.Println(level.String() + ": " + message)
}

// Runtime is the top-level registry object: library table, keyword map,
// and performance counters, all internally synchronized so compilation and
// registration can proceed concurrently across scripts (spec.md §5
// "Registry tables are concurrency-safe via internal mutexes").
type Runtime struct {
	cfg Config

	mu        sync.RWMutex
	libraries map[string]*Library
	keywords  map[string]lexer.Kind

	Stats PerfStats
}

// NewRuntime builds a Runtime (Host API `create_runtime`, spec.md §6).
func NewRuntime(cfg Config) *Runtime {
	return &Runtime{
		cfg:       cfg,
		libraries: make(map[string]*Library),
		keywords:  lexer.DefaultKeywords(),
	}
}

// Config returns the runtime's active configuration.
func (r *Runtime) Config() Config { return r.cfg }

// Log writes one line through the configured sink, gated by EnableLogging.
func (r *Runtime) Log(level LogLevel, format string, args ...interface{}) {
	if !r.cfg.EnableLogging || r.cfg.LogFn == nil {
		return
	}
	r.cfg.LogFn(level, fmt.Sprintf(format, args...))
}

// GetLibrary returns the named library, creating it if absent (spec.md §6
// "Runtime.get_library(name) -> Library (create-if-absent)").
func (r *Runtime) GetLibrary(name string) *Library {
	r.mu.RLock()
	l, ok := r.libraries[name]
	r.mu.RUnlock()
	if ok {
		return l
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok = r.libraries[name]; ok {
		return l
	}
	l = newLibrary(name)
	r.libraries[name] = l
	return l
}

// FindLibrary returns the named library without creating it.
func (r *Runtime) FindLibrary(name string) (*Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.libraries[name]
	return l, ok
}

// StripDebugInfo truncates a compiled buffer to its header+dataSize,
// dropping any JDBG section (spec.md §4.4).
func (r *Runtime) StripDebugInfo(buf []byte) ([]byte, error) {
	out, err := bytecode.StripDebugInfo(buf)
	if err != nil {
		return nil, errors.Wrap(err, "registry: strip debug info")
	}
	return out, nil
}

// GetPerformanceStats returns (and optionally resets) the runtime's
// accumulated counters (spec.md §6 "get_performance_stats(reset)").
func (r *Runtime) GetPerformanceStats(reset bool) PerfStats {
	return r.Stats.Snapshot(reset)
}

// RecordCompile and RecordExecute are called by the compiler/VM to feed
// PerfStats; kept on Runtime rather than exported globals so every script
// built against the same Runtime shares one set of counters, as spec.md
// §4.4 requires.
func (r *Runtime) RecordCompile(nanos int64) { r.Stats.addCompile(nanos) }
func (r *Runtime) RecordExecute(nanos int64, instructions int64) {
	r.Stats.addExecute(nanos, instructions)
}
func (r *Runtime) RecordCompletion() { r.Stats.addCompletion() }

// ResolveFunction looks up a function by (library, id) across the import
// set used by a compile, applying spec.md §4.2.1's visibility rule: a
// Private signature from any library other than currentLibrary never
// matches.
func (r *Runtime) ResolveFunction(id uint64, currentLibrary string, imports []string) (*Function, bool) {
	search := append([]string{currentLibrary}, imports...)
	for _, name := range search {
		lib, ok := r.FindLibrary(name)
		if !ok {
			continue
		}
		f, ok := lib.Function(id)
		if !ok {
			continue
		}
		if f.Signature.Visibility == sig.Private && lib.Name != currentLibrary {
			continue
		}
		return f, true
	}
	return nil, false
}
