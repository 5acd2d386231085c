package vm

import (
	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx/registry"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

// BootstrapCore registers the "core" library's small built-in function set
// (spec.md §1 "a small built-in core function library") against rt. It is
// the reserved library every Parser implicitly searches (parser.go
// coreLibraryName), so scripts use `write`, `size of`, `is empty`,
// `'s value`, `is finished`, `all ... are finished`, and `async call`
// without an import statement.
func BootstrapCore(rt *registry.Runtime) error {
	lib := rt.GetLibrary("core")

	regs := []struct {
		text string
		fn   registry.NativeFunc
	}{
		{"write {}", coreWrite},
		{"size of {}", coreSizeOf},
		{"{} is empty", coreIsEmpty},
		{"{} value", coreValue},
		{"{} is finished", coreIsFinished},
		{"all {} are finished", coreAllFinished},
		{"async call {function}", coreAsyncCall},
	}
	for _, r := range regs {
		if _, err := lib.RegisterNativeFunction(sig.Public, r.text, r.fn); err != nil {
			return errors.Wrapf(err, "vm: register core function %q", r.text)
		}
	}
	return nil
}

// coreWrite implements `write {}`: stringifies and logs its argument
// (spec.md §6 "Logging"), returning Null.
func coreWrite(ctx registry.Context, args []value.Value) (value.Value, error) {
	ctx.Write(args[0].String())
	return value.NullValue, nil
}

// coreSizeOf implements `size of {}`: a collection's entry count or a
// string's code-point count (spec.md §3 "Character counting is by Unicode
// code points").
func coreSizeOf(ctx registry.Context, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Type() {
	case value.Collection:
		return value.Int(int64(v.AsCollection().Len())), nil
	case value.String:
		return value.Int(int64(value.RuneLen(v.AsString()))), nil
	default:
		return value.Value{}, errors.Errorf("core: cannot take size of %s", v.Type())
	}
}

// coreIsEmpty implements `{} is empty`.
func coreIsEmpty(ctx registry.Context, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Type() {
	case value.Collection:
		return value.Bool(v.AsCollection().Len() == 0), nil
	case value.String:
		return value.Bool(v.AsString() == ""), nil
	default:
		return value.Value{}, errors.Errorf("core: cannot check emptiness of %s", v.Type())
	}
}

// coreValue implements `{} value`, the receiver-style sugar behind both
// `it's value` (the lexer folds away `'s`) over a loop iterator and `co's
// value` over a coroutine: the same call shape serves both receivers
// because the grammar can't tell them apart at compile time, only the
// runtime type of args[0] can. An iterator yields the entry at its cursor;
// a coroutine yields its at-most-once captured return value (spec.md §8
// Testable Property 8).
func coreValue(ctx registry.Context, args []value.Value) (value.Value, error) {
	if it := args[0].AsIterator(); it != nil {
		if it.Done() {
			return value.Value{}, errors.New("core: 'value' past end of iterator")
		}
		return it.Value(), nil
	}
	return ctx.CoroutineValue(args[0]), nil
}

// coreIsFinished implements `{} is finished`, the sugar behind `co is
// finished`.
func coreIsFinished(ctx registry.Context, args []value.Value) (value.Value, error) {
	return value.Bool(ctx.CoroutineFinished(args[0])), nil
}

// coreAllFinished implements `all {} are finished`: args[0] must be a
// Collection of Coroutine values; true iff every one has finished. The
// coroutines are checked in order through CoroutineFinished, as `is
// finished` does, and the check stops at the first unfinished one, so the
// ones after it are not checked in that call.
func coreAllFinished(ctx registry.Context, args []value.Value) (value.Value, error) {
	coll := args[0].AsCollection()
	if coll == nil {
		return value.Value{}, errors.New("core: 'all ... are finished' requires a collection of coroutines")
	}
	for i := 0; i < coll.Len(); i++ {
		_, v := coll.At(i)
		if !ctx.CoroutineFinished(v) {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}

// coreAsyncCall implements `async call {function}`: spawns a coroutine
// running the named zero-argument bytecode function (spec.md §4.4
// "Coroutine"). Only a bare function reference is supported (see
// parser.parseFunctionRef); arguments beyond the target's own zero-arg form
// aren't threaded through this sugar.
func coreAsyncCall(ctx registry.Context, args []value.Value) (value.Value, error) {
	return ctx.SpawnCoroutine(args[0].AsFuncID(), nil)
}
