package vm

import (
	"github.com/jinx-lang/jinx/internal/jerr"
	"github.com/jinx-lang/jinx/value"
)

// Coroutine is a child Script driven cooperatively from a parent, yielding a
// single return value once finished (spec.md §4.4 "Coroutine"). It is held
// by scripts as an opaque value.Value (value.CoroutineRef) and surfaced to
// "core" library natives (vm/core.go) through the registry.Context methods
// below.
type Coroutine struct {
	child    *Script
	captured bool
	result   value.Value
}

// SpawnCoroutine implements registry.Context: creates a child Script sharing
// this script's user context, pushes args, and runs its first slice, per
// spec.md §4.4 steps 1-3. Only bytecode functions may be spawned this way;
// a native function id fails with TypeMismatch at creation, matching "native
// functions fail with TypeMismatch at coroutine creation".
func (s *Script) SpawnCoroutine(funcID uint64, args []value.Value) (value.Value, error) {
	fn, ok := s.resolveFunction(funcID)
	if !ok {
		return value.Value{}, jerr.New(jerr.Resolution, s.scriptName(), "unknown function id in async call")
	}
	if fn.IsNative {
		return value.Value{}, jerr.New(jerr.TypeMismatch, s.scriptName(), "cannot call a native function asynchronously")
	}
	if fn.BytecodeOwner != s.prog.ScriptName {
		return value.Value{}, jerr.New(jerr.Resolution, s.scriptName(), "async call target is not owned by this script")
	}

	child := New(s.rt, s.prog, s.library, s.imports, nil, s.userCtx)
	child.coroutineRoot = true
	child.pc = fn.Address
	child.stack = append(child.stack, args...)

	co := &Coroutine{child: child}
	child.Execute()
	if child.finished && !child.errored {
		co.captured = true
		co.result = child.coroutineResult
	}
	return value.CoroutineRef(co), nil
}

// CallFunction resolves funcID and runs it to completion synchronously,
// backing the Host API's `Script.call_function(id, params) -> Value`
// (spec.md §6). A native function is invoked directly; a bytecode function
// runs in its own child Script (the same construction SpawnCoroutine uses)
// driven to completion in a blocking loop rather than one slice at a time.
func (s *Script) CallFunction(funcID uint64, args []value.Value) (value.Value, error) {
	fn, ok := s.resolveFunction(funcID)
	if !ok {
		return value.Value{}, jerr.New(jerr.Resolution, s.scriptName(), "unknown function id in call_function")
	}
	if fn.IsNative {
		return fn.Native(s, args)
	}
	if fn.BytecodeOwner != s.prog.ScriptName {
		return value.Value{}, jerr.New(jerr.Resolution, s.scriptName(), "call_function target is not owned by this script")
	}

	child := New(s.rt, s.prog, s.library, s.imports, nil, s.userCtx)
	child.coroutineRoot = true
	child.pc = fn.Address
	child.stack = append(child.stack, args...)

	// call_function is a synchronous call: its target is expected to Return
	// rather than Wait (Wait is the cooperative-yield primitive a coroutine
	// body uses, driven slice by slice through call_async_function instead).
	// The slice cap here only guards against a function that waits forever;
	// it is not a normal termination path.
	const maxSlices = 100000
	for i := 0; !child.finished; i++ {
		if i >= maxSlices {
			return value.Value{}, jerr.New(jerr.Quota, s.scriptName(), "call_function target never returned (did it call wait?)")
		}
		child.Execute()
	}
	if child.errored {
		return value.Value{}, child.Err()
	}
	return child.coroutineResult, nil
}

// CoroutineFinished implements registry.Context, running one more slice of
// the child when it hasn't already concluded (spec.md §4.4 step 4), and
// capturing its return value exactly once.
func (s *Script) CoroutineFinished(c value.Value) bool {
	co, ok := c.Ref().(*Coroutine)
	if !ok {
		return true
	}
	if co.captured {
		return true
	}
	if !co.child.finished {
		co.child.Execute()
	}
	if co.child.finished {
		co.captured = true
		if !co.child.errored {
			co.result = co.child.coroutineResult
		}
	}
	return co.captured
}

// CoroutineValue implements registry.Context: the captured return value, or
// Null if the coroutine hasn't finished yet. Repeated calls after completion
// return the same value without advancing the child (spec.md §8 Testable
// Property 8).
func (s *Script) CoroutineValue(c value.Value) value.Value {
	co, ok := c.Ref().(*Coroutine)
	if !ok {
		return value.NullValue
	}
	if !co.captured {
		s.CoroutineFinished(c)
	}
	return co.result
}
