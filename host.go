package jinx

import (
	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx/fold"
	"github.com/jinx-lang/jinx/registry"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
	"github.com/jinx-lang/jinx/vm"
)

// Value re-exports value.Value at the Host API boundary; constructors
// (jinx.Int, jinx.Str, ...) are re-exported alongside it so a host never
// needs to import the value package directly.
type Value = value.Value

var (
	Int  = value.Int
	Num  = value.Num
	Bool = value.Bool
	Str  = value.Str
	Null = value.NullValue
)

// Script is the Host API's view of a running vm.Script, spec.md §6.
type Script struct {
	s  *vm.Script
	rt *registry.Runtime
}

// Execute runs one slice, spec.md §6 "Script.execute() -> bool (one slice;
// false on error)".
func (s *Script) Execute() bool { return s.s.Execute() }

// IsFinished reports whether the script has exited or failed.
func (s *Script) IsFinished() bool { return s.s.IsFinished() }

// Failed reports whether the script ended via a runtime error.
func (s *Script) Failed() bool { return s.s.Failed() }

// Err returns the last runtime error, if the script failed.
func (s *Script) Err() error { return s.s.Err() }

// Close tears the script down, unregistering any of its Local functions
// (spec.md §3 "Lifecycle... cancelled... by dropping the Script handle").
func (s *Script) Close() { s.s.Close() }

// GetVariable reads a root-frame variable by its source name, spec.md §6
// "Script.get_variable(name)".
func (s *Script) GetVariable(name string) (Value, bool) {
	return s.s.GetVariable(fold.Fold(name))
}

// SetVariable writes a root-frame variable by its source name, spec.md §6
// "set_variable(name, value)".
func (s *Script) SetVariable(name string, v Value) {
	s.s.SetVariable(fold.Fold(name), v)
}

// FindFunction resolves signatureText against library to the stable id a
// registered function of that shape was assigned, spec.md §6
// "Script.find_function(library, signatureText) -> id". Works for Public
// and Private signatures, whose ids are a deterministic hash of
// (library, canonical text); Local signatures get a registration-time
// random id and so can't be rediscovered this way — by design, since only
// the script that declared a Local function ever has reason to call it.
func (s *Script) FindFunction(library, signatureText string) (uint64, error) {
	probe, err := registry.ParseSignatureText(library, signatureText, sig.Public)
	if err != nil {
		return 0, errors.Wrap(err, "jinx: parse signature text")
	}
	lib, ok := s.rt.FindLibrary(library)
	if !ok {
		return 0, errors.Errorf("jinx: unknown library %q", library)
	}
	if _, ok := lib.Function(probe.ID()); !ok {
		return 0, errors.Errorf("jinx: no function matching %q in library %q", signatureText, library)
	}
	return probe.ID(), nil
}

// CallFunction invokes a registered function synchronously and returns its
// result, spec.md §6 "Script.call_function(id, params) -> Value".
func (s *Script) CallFunction(id uint64, params []Value) (Value, error) {
	return s.s.CallFunction(id, params)
}

// CallAsyncFunction spawns a coroutine running the named bytecode function,
// spec.md §6 "Script.call_async_function(id, params) -> Coroutine". The
// returned Value is a Coroutine reference, driven to completion via the
// "core" library's `is finished` / `value` sugar from within scripts, or
// polled from the host with IsFinished/Err the same way an in-script
// coroutine is.
func (s *Script) CallAsyncFunction(id uint64, params []Value) (Value, error) {
	return s.s.SpawnCoroutine(id, params)
}

// Library is the Host API's view of a registry.Library, spec.md §6
// "Library.register_function/register_property/get_property/set_property".
type Library struct {
	lib *registry.Library
}

// RegisterFunction registers a native callback under signatureText, spec.md
// §6 "Library.register_function(visibility, signatureText, callback)".
func (l *Library) RegisterFunction(vis sig.Visibility, signatureText string, callback func(ctx registry.Context, args []Value) (Value, error)) error {
	_, err := l.lib.RegisterNativeFunction(vis, signatureText, registry.NativeFunc(callback))
	return err
}

// RegisterProperty registers a named property with a default value, spec.md
// §6 "Library.register_property(visibility, access, name, default)". access
// mirrors the registry's read-only flag: true means read-only.
func (l *Library) RegisterProperty(vis sig.Visibility, readOnly bool, words []string, def Value) uint64 {
	return l.lib.RegisterProperty(vis, readOnly, words, def).ID()
}

// GetProperty reads a property's current value by its folded, space-joined
// name, spec.md §6 "Library.get_property(name)".
func (l *Library) GetProperty(name string) (Value, bool) {
	return l.lib.GetPropertyByName(fold.Fold(name))
}

// SetProperty writes a property's value by its folded name, spec.md §6
// "set_property(name, value)".
func (l *Library) SetProperty(name string, v Value) error {
	return l.lib.SetPropertyByName(fold.Fold(name), v)
}
