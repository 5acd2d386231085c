// Package vm implements the stack-based virtual machine of spec.md §4.3:
// Script (one running instance of compiled bytecode bound to a Registry and
// an opaque user context), its call-frame discipline, cooperative
// suspension, and coroutine driving.
//
// The shape — a value stack, an explicit frame stack recording pre-call
// stack tops, and a single big opcode-dispatch loop bounded by an
// instruction quota per slice — follows the teacher's vm.Instance.Run
// (db47h/ngaro/vm/vm.go): one function stepping a program counter through a
// flat instruction stream, recovering panics into typed errors at the
// loop's edge.
package vm

import (
	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/internal/jerr"
	"github.com/jinx-lang/jinx/registry"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

// frame records everything Return needs to unwind one call: where to resume
// the caller, and how far to truncate the value stack (dropping the
// callee's arguments and locals) before pushing the return value.
//
// spec.md §4.3 describes three script-level return dispositions (continue,
// wait, finish); those apply to Execute's slice loop (stepNone/stepWait/
// stepExit below), not to individual call frames, since a coroutine runs as
// its own Script (vm/coroutine.go) rather than a specially-tagged frame in
// the caller's stack.
type frame struct {
	returnPC  int
	stackBase int // stack length immediately before arguments were pushed
}

// varSlot locates a declared variable on the value stack.
type varSlot struct {
	stackIndex int
	frameDepth int
}

// Script is one running VM instance over compiled bytecode, spec.md §4.3
// "State": stack of Values, stack of call frames, scope-stack of saved
// stack tops, an id->stack-slot table, local function IDs to unregister on
// drop, current library, user opaque, finished/error flags, script name.
type Script struct {
	rt   *registry.Runtime
	prog *bytecode.Program

	stack  []value.Value
	frames []frame
	scopes []int // saved stack lengths for ScopeBegin/ScopeEnd

	vars map[uint64]varSlot

	library      string
	imports      []string
	localFuncIDs []uint64

	userCtx interface{}

	pc       int
	finished bool
	errored  bool
	lastErr  error

	// loopStarted tracks, per LoopCount call-site (keyed by that
	// instruction's own bytecode address), whether the counter at
	// stack[len-3] already holds its first (`from`) value or has begun
	// advancing by `step`. LoopCount has no immediate operand to carry this
	// itself, and there is no stack-reorder primitive to compute `from -
	// step` up front without re-evaluating `from`, so the VM tracks it here
	// instead. Reset to false once a loop concludes so the same call-site
	// (e.g. a function invoked again) starts clean.
	loopStarted map[int]bool

	// coroutineRoot marks a Script created by SpawnCoroutine (vm/coroutine.go)
	// whose entire execution is one function body entered directly at its
	// address, frames empty. A Return at frame depth zero means Finish
	// (spec.md §4.3) rather than the invariant violation it would be for an
	// ordinary top-level script.
	coroutineRoot   bool
	coroutineResult value.Value
}

// New builds a Script bound to rt, ready to execute prog from its first
// instruction.
func New(rt *registry.Runtime, prog *bytecode.Program, library string, imports []string, localFuncIDs []uint64, userCtx interface{}) *Script {
	return &Script{
		rt:           rt,
		prog:         prog,
		vars:         make(map[uint64]varSlot),
		library:      library,
		imports:      imports,
		localFuncIDs: append([]uint64(nil), localFuncIDs...),
		userCtx:      userCtx,
		loopStarted:  make(map[int]bool),
	}
}

// coreLibraryName mirrors parser.coreLibraryName: the "core" coroutine/async
// sugar library every compiled call site may target regardless of the
// script's own library or import list (vm.BootstrapCore, parser/call.go
// gatherCandidates). resolveFunction below keeps runtime lookups consistent
// with what the parser considered resolvable at compile time.
const coreLibraryName = "core"

// resolveFunction looks a function id up the same way the parser's
// gatherCandidates searched for it at compile time: the script's own
// library, "core", then its imports.
func (s *Script) resolveFunction(id uint64) (*registry.Function, bool) {
	return s.rt.ResolveFunction(id, s.library, append([]string{coreLibraryName}, s.imports...))
}

// Close tears the stack down and unregisters any local functions, spec.md
// §5 "cancelled... by dropping the Script handle".
func (s *Script) Close() {
	lib := s.rt.GetLibrary(s.library)
	for _, id := range s.localFuncIDs {
		lib.UnregisterLocal(id)
	}
	// Break potential Collection reference cycles held in locals (spec.md
	// §9 "Reference cycles").
	for i := range s.stack {
		s.stack[i] = value.Value{}
	}
	s.stack = nil
	s.vars = nil
}

// IsFinished reports whether the script has exited or failed.
func (s *Script) IsFinished() bool { return s.finished }

// Failed reports whether the script ended via a runtime error.
func (s *Script) Failed() bool { return s.errored }

// UserData implements registry.Context.
func (s *Script) UserData() interface{} { return s.userCtx }

// Fail implements registry.Context: a native callback reports failure and
// the VM marks the script errored/finished the same as an internal fault
// (spec.md §4.3 "Propagation... errors from native callbacks are surfaced
// by the callback calling Script.error(message)").
func (s *Script) Fail(message string) {
	s.raise(jerr.New(jerr.Stack, s.prog.ScriptName, "%s", message))
}

// Write implements registry.Context for the core library's `write` native.
func (s *Script) Write(message string) {
	s.rt.Log(registry.LogInfo, "%s", message)
}

func (s *Script) raise(err error) {
	s.errored = true
	s.finished = true
	s.lastErr = err
	line := s.prog.LineForPosition(uint32(s.pc))
	if line > 0 {
		s.rt.Log(registry.LogError, "%s(%d): %s", s.prog.ScriptName, line, err.Error())
	} else {
		s.rt.Log(registry.LogError, "%s: %s", s.prog.ScriptName, err.Error())
	}
}

// Err returns the last runtime error, if any.
func (s *Script) Err() error { return s.lastErr }

// Execute runs one slice: opcodes until Exit, Wait, or the runtime's
// instruction quota is exhausted (spec.md §4.3 "Execution model"). It
// returns false when the script had already finished before the call or
// when the slice raises an error; a slice that reaches Exit marks the
// script finished and returns true.
func (s *Script) Execute() bool {
	if s.finished {
		return false
	}
	cfg := s.rt.Config()
	max := cfg.MaxInstructions
	if max <= 0 {
		max = 1 << 30
	}

	defer func() {
		if r := recover(); r != nil {
			s.raise(jerr.Recover(r, s.prog.ScriptName))
		}
	}()

	count := 0
	defer func() { s.rt.RecordExecute(0, int64(count)) }()
	for {
		if s.finished {
			return !s.errored
		}
		if count >= max {
			if cfg.ErrorOnMaxInstructions {
				s.raise(jerr.New(jerr.Quota, s.prog.ScriptName, "instruction quota exceeded"))
				return false
			}
			return true // cooperative return, not finished
		}
		disp, err := s.step()
		count++
		if err != nil {
			s.raise(err)
			return false
		}
		switch disp {
		case stepExit:
			s.finished = true
			s.rt.RecordCompletion()
			return true
		case stepWait:
			return true
		}
	}
}

type stepResult int

const (
	stepNone stepResult = iota
	stepExit
	stepWait
)

// step executes exactly one instruction at s.pc and returns a disposition
// hint for the slice loop above.
func (s *Script) step() (stepResult, error) {
	buf := bytecode.NewBufferFromBytes(s.prog.Code)
	buf.Seek(s.pc)
	opByte, err := buf.ReadByte()
	if err != nil {
		return stepExit, nil
	}
	op := bytecode.Op(opByte)

	switch op {
	case bytecode.OpExit:
		s.pc = buf.Pos()
		return stepExit, nil
	case bytecode.OpWait:
		s.pc = buf.Pos()
		return stepWait, nil
	}

	res, err := s.dispatch(op, buf)
	if err != nil {
		return stepNone, err
	}
	s.pc = buf.Pos()
	return res, nil
}

// push/pop/peek are the raw stack primitives every opcode handler uses.
func (s *Script) push(v value.Value) { s.stack = append(s.stack, v) }

func (s *Script) pop() (value.Value, error) {
	if len(s.stack) == 0 {
		return value.Value{}, errors.New("vm: stack underflow")
	}
	v := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return v, nil
}

func (s *Script) peek() (value.Value, error) {
	if len(s.stack) == 0 {
		return value.Value{}, errors.New("vm: stack underflow")
	}
	return s.stack[len(s.stack)-1], nil
}

func (s *Script) scriptName() string { return s.prog.ScriptName }

// findFuncByName resolves a bare (single-word) signature in the current
// library or imports. It has no callers: `async call` resolves its target
// at compile time through parser.parseFunctionRef.
func (s *Script) findFuncByName(word string) (*registry.Function, bool) {
	search := append([]string{s.library}, s.imports...)
	for _, name := range search {
		lib, ok := s.rt.FindLibrary(name)
		if !ok {
			continue
		}
		for _, fn := range lib.Candidates() {
			if len(fn.Signature.Parts) == 1 && fn.Signature.Parts[0].Name != nil {
				for _, alt := range fn.Signature.Parts[0].Name.Alternatives {
					if alt == word {
						return fn, true
					}
				}
			}
		}
	}
	return nil, false
}

var _ registry.Context = (*Script)(nil)

// currentFrameDepth is used as the (id, frameDepth) key distinguishing
// shadowed variables compiled at different lexical depths (sig.VariableID
// already folds stackDepth into the ID, so this is only used to decide
// whether a SetVar is a fresh declaration at the current depth).
func (s *Script) currentFrameDepth() int { return len(s.frames) }

// declareOrAssignVar backs SetVar and SetIndex: the bytecode doesn't
// distinguish declaration from assignment,
// so the VM treats an unseen id as a declaration (push a new stack slot)
// and a known id as an assignment (overwrite the existing slot).
func (s *Script) declareOrAssignVar(id uint64, v value.Value) {
	if slot, ok := s.vars[id]; ok && slot.stackIndex < len(s.stack) {
		s.stack[slot.stackIndex] = v
		return
	}
	s.stack = append(s.stack, v)
	s.vars[id] = varSlot{stackIndex: len(s.stack) - 1, frameDepth: s.currentFrameDepth()}
}

func (s *Script) readVar(id uint64) (value.Value, error) {
	slot, ok := s.vars[id]
	if !ok || slot.stackIndex >= len(s.stack) {
		return value.Value{}, jerr.New(jerr.Resolution, s.scriptName(), "unknown variable id %s", sig.FormatID(id))
	}
	return s.stack[slot.stackIndex], nil
}

// GetVariable implements the Host API's root-frame variable read (spec.md
// §6), hashing the folded name at stack depth 0 the same way the parser's
// root scope does (Parser.stackDepth starts at 0 and is only incremented
// on entry to a nested block or function body).
func (s *Script) GetVariable(foldedName string) (value.Value, bool) {
	id := sig.VariableID(foldedName, 0)
	v, err := s.readVar(id)
	if err != nil {
		return value.Value{}, false
	}
	return v, true
}

// SetVariable implements the Host API's root-frame variable write.
func (s *Script) SetVariable(foldedName string, v value.Value) {
	id := sig.VariableID(foldedName, 0)
	s.declareOrAssignVar(id, v)
}
