// The Host API facade: Initialize, CreateRuntime, and the Runtime
// operations an embedding application drives a script through. It composes
// lexer, parser, registry, and vm the way the teacher's cmd/retro composes
// asm and vm, but as a library surface rather than a terminal program.
//
// The functional-options Config surface mirrors the teacher's vm.Option
// pattern (vm/vm.go: DataSize, AddressSize, Input, Output, Shrink) — a slice
// of `Option` funcs applied over a zero-value registry.Config before
// defaults fill in anything left unset.
package jinx

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/lexer"
	"github.com/jinx-lang/jinx/parser"
	"github.com/jinx-lang/jinx/registry"
	"github.com/jinx-lang/jinx/vm"
)

// LogLevel re-exports registry.LogLevel at the Host API boundary so callers
// never need to import registry directly for a log sink.
type LogLevel = registry.LogLevel

const (
	LogInfo    = registry.LogInfo
	LogWarning = registry.LogWarning
	LogError   = registry.LogError
)

// Option configures a Runtime at creation, spec.md §6 "Configuration
// (recognized options)".
type Option func(*registry.Config)

// LogFn sets the log sink; default prints to stdout (spec.md §6 "Logging").
func LogFn(fn func(level LogLevel, message string)) Option {
	return func(c *registry.Config) { c.LogFn = fn }
}

// EnableLogging is the master log enable/disable switch.
func EnableLogging(enabled bool) Option {
	return func(c *registry.Config) { c.EnableLogging = enabled }
}

// LogSymbols toggles a symbol-table dump during compile.
func LogSymbols(enabled bool) Option {
	return func(c *registry.Config) { c.LogSymbols = enabled }
}

// LogBytecode toggles a disassembly dump during compile.
func LogBytecode(enabled bool) Option {
	return func(c *registry.Config) { c.LogBytecode = enabled }
}

// EnableDebugInfo toggles emission of the JDBG line-table section.
func EnableDebugInfo(enabled bool) Option {
	return func(c *registry.Config) { c.EnableDebugInfo = enabled }
}

// MaxInstructions sets the per-slice instruction budget (default 2000).
func MaxInstructions(n int) Option {
	return func(c *registry.Config) { c.MaxInstructions = n }
}

// ErrorOnMaxInstructions selects whether exhausting the instruction budget
// raises a Quota error (true) or simply returns the slice to the host to
// resume on the next call (false, the default).
func ErrorOnMaxInstructions(enabled bool) Option {
	return func(c *registry.Config) { c.ErrorOnMaxInstructions = enabled }
}

// AllocFn, ReallocFn, and FreeFn accept the memory hooks of spec.md §6
// ("alloc(bytes), realloc(ptr, newBytes, currBytes), free(ptr, bytes). All
// three or none."). Go's runtime owns allocation for every value this engine
// ever produces, so there is no allocation path here for a host hook to
// intercept; these are accepted for API-shape parity and otherwise unused,
// matching spec.md §9's allowance that the memory-hook contract is a C-API
// concern the Go host surface carries without a back end.
func AllocFn(fn func(bytes int) uintptr) Option {
	return func(c *registry.Config) {}
}

func ReallocFn(fn func(ptr uintptr, newBytes, currBytes int) uintptr) Option {
	return func(c *registry.Config) {}
}

func FreeFn(fn func(ptr uintptr, bytes int)) Option {
	return func(c *registry.Config) {}
}

// globalConfig holds the process-wide state Initialize establishes (spec.md
// §6: "Process-wide; must be called before any other entry point").
var globalConfig = registry.DefaultConfig()

// Initialize sets the process-wide defaults every later CreateRuntime
// inherits unless overridden by its own options.
func Initialize(opts ...Option) {
	cfg := registry.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	globalConfig = cfg
}

// scriptMeta is the bookkeeping a compile produces that the fixed bytecode
// format of spec.md §3 has no field for (the library a script compiled
// against and the imports it resolved calls through): Compile records it
// here, keyed by script name, for CreateScript to pick back up.
type scriptMeta struct {
	library      string
	imports      []string
	localFuncIDs []uint64
}

// Runtime is the Host API's view of registry.Runtime plus the "core"
// library bootstrap every embedding application gets for free.
type Runtime struct {
	rt *registry.Runtime

	metaMu sync.RWMutex
	meta   map[string]scriptMeta
}

// CreateRuntime builds a Runtime seeded from the process-wide configuration
// Initialize established, overridden by any options passed here.
func CreateRuntime(opts ...Option) *Runtime {
	cfg := globalConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	rt := registry.NewRuntime(cfg)
	if err := vm.BootstrapCore(rt); err != nil {
		// The core library's signatures are fixed and known-valid; a
		// failure here means the registry package itself is broken, not
		// anything a caller did.
		panic(errors.Wrap(err, "jinx: bootstrap core library"))
	}
	return &Runtime{rt: rt, meta: make(map[string]scriptMeta)}
}

// Bytecode is a compiled, encoded program ready for CreateScript or storage.
type Bytecode []byte

// Compile lexes and parses text into Bytecode, spec.md §6
// "Runtime.compile(text, name, imports) -> Bytecode | error".
func (r *Runtime) Compile(text, name string, imports []string) (Bytecode, error) {
	lx := lexer.New(text, name, nil)
	toks, err := lx.Tokens()
	if err != nil {
		r.rt.Log(registry.LogError, "%s", err.Error())
		return nil, errors.Wrap(err, "jinx: lex")
	}

	p := parser.New(toks, name, r.rt, imports)
	result, err := p.Compile()
	if err != nil {
		r.rt.Log(registry.LogError, "%s", err.Error())
		return nil, errors.Wrap(err, "jinx: parse")
	}

	if r.rt.Config().LogBytecode {
		var sb strings.Builder
		pc := 0
		for pc < len(result.Program.Code) {
			pc = bytecode.Disassemble(result.Program.Code, pc, &sb)
		}
		r.rt.Log(registry.LogInfo, "%s: disassembly\n%s", name, sb.String())
	}
	if r.rt.Config().LogSymbols {
		r.rt.Log(registry.LogInfo, "%s: %d local function(s) registered", name, len(result.LocalFuncIDs))
	}

	r.metaMu.Lock()
	r.meta[name] = scriptMeta{library: result.Library, imports: result.Imports, localFuncIDs: result.LocalFuncIDs}
	r.metaMu.Unlock()

	r.rt.RecordCompile(0)
	return bytecode.Encode(result.Program), nil
}

// CreateScript decodes Bytecode and builds a Script bound to userContext,
// spec.md §6 "Runtime.create_script(bytecode, userContext) -> Script". The
// library/imports/local-function bookkeeping a compile produced is looked up
// by script name; bytecode this Runtime never compiled (e.g. loaded from
// storage) gets an empty library/imports, the same as a script with no
// `library`/`import` statements of its own.
func (r *Runtime) CreateScript(bc Bytecode, userContext interface{}) (*Script, error) {
	prog, err := bytecode.Decode(bc)
	if err != nil {
		return nil, errors.Wrap(err, "jinx: decode bytecode")
	}
	r.metaMu.RLock()
	m := r.meta[prog.ScriptName]
	r.metaMu.RUnlock()
	s := vm.New(r.rt, prog, m.library, m.imports, m.localFuncIDs, userContext)
	return &Script{s: s, rt: r.rt}, nil
}

// ExecuteScript compiles text, creates a Script bound to userContext, and
// runs its first slice, spec.md §6 "Runtime.execute_script(text,
// userContext, name, imports) -> Script (compile + create + one slice)".
func (r *Runtime) ExecuteScript(text string, userContext interface{}, name string, imports []string) (*Script, error) {
	bc, err := r.Compile(text, name, imports)
	if err != nil {
		return nil, err
	}
	s, err := r.CreateScript(bc, userContext)
	if err != nil {
		return nil, err
	}
	s.Execute()
	return s, nil
}

// GetLibrary returns (creating if absent) the named library, spec.md §6
// "Runtime.get_library(name) -> Library (create-if-absent)".
func (r *Runtime) GetLibrary(name string) *Library {
	return &Library{lib: r.rt.GetLibrary(name)}
}

// StripDebugInfo truncates bc to its header+dataSize, dropping any JDBG
// section; a buffer carrying no debug section is returned unchanged, per
// the Open Question decision recorded in DESIGN.md.
func (r *Runtime) StripDebugInfo(bc Bytecode) (Bytecode, error) {
	out, err := r.rt.StripDebugInfo(bc)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetPerformanceStats returns the runtime's accumulated counters, optionally
// resetting them.
func (r *Runtime) GetPerformanceStats(reset bool) registry.PerfStats {
	return r.rt.GetPerformanceStats(reset)
}
