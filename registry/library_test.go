package registry_test

import (
	"testing"

	"github.com/jinx-lang/jinx/registry"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

func echoFunc(ctx registry.Context, args []value.Value) (value.Value, error) {
	return args[0], nil
}

func TestRegisterNativeFunctionAndLookup(t *testing.T) {
	lib := registry.NewRuntime(registry.DefaultConfig()).GetLibrary("game")
	f, err := lib.RegisterNativeFunction(sig.Public, "spawn {string} at {number}, {number}", echoFunc)
	if err != nil {
		t.Fatalf("RegisterNativeFunction: %v", err)
	}
	got, ok := lib.Function(f.Signature.ID())
	if !ok {
		t.Fatalf("Function(%x) not found", f.Signature.ID())
	}
	if !got.IsNative {
		t.Errorf("registered function should be native")
	}
}

func TestRegisterNativeFunctionDuplicateErrors(t *testing.T) {
	lib := registry.NewRuntime(registry.DefaultConfig()).GetLibrary("game")
	if _, err := lib.RegisterNativeFunction(sig.Public, "spawn {string}", echoFunc); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := lib.RegisterNativeFunction(sig.Public, "spawn {string}", echoFunc); err == nil {
		t.Errorf("expected duplicate-signature error")
	}
}

func TestUnregisterLocal(t *testing.T) {
	lib := registry.NewRuntime(registry.DefaultConfig()).GetLibrary("game")
	f, err := lib.RegisterNativeFunction(sig.Local, "helper {number}", echoFunc)
	if err != nil {
		t.Fatalf("RegisterNativeFunction: %v", err)
	}
	lib.UnregisterLocal(f.Signature.ID())
	if _, ok := lib.Function(f.Signature.ID()); ok {
		t.Errorf("function should be gone after UnregisterLocal")
	}
}

func TestPropertyReadWrite(t *testing.T) {
	lib := registry.NewRuntime(registry.DefaultConfig()).GetLibrary("game")
	p := lib.RegisterProperty(sig.Public, false, []string{"Player", "Health"}, value.Int(100))

	got, ok := lib.GetProperty(p.ID())
	if !ok || got.AsInt() != 100 {
		t.Fatalf("GetProperty = (%v, %v), want (100, true)", got, ok)
	}
	if err := lib.SetProperty(p.ID(), value.Int(50)); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	got, _ = lib.GetProperty(p.ID())
	if got.AsInt() != 50 {
		t.Errorf("GetProperty after SetProperty = %v, want 50", got)
	}
}

func TestPropertyByName(t *testing.T) {
	lib := registry.NewRuntime(registry.DefaultConfig()).GetLibrary("game")
	lib.RegisterProperty(sig.Public, false, []string{"Player", "Health"}, value.Int(100))

	got, ok := lib.GetPropertyByName("player health")
	if !ok || got.AsInt() != 100 {
		t.Fatalf("GetPropertyByName = (%v, %v), want (100, true)", got, ok)
	}
	if err := lib.SetPropertyByName("player health", value.Int(10)); err != nil {
		t.Fatalf("SetPropertyByName: %v", err)
	}
	got, _ = lib.GetPropertyByName("player health")
	if got.AsInt() != 10 {
		t.Errorf("GetPropertyByName after set = %v, want 10", got)
	}
}

func TestReadOnlyPropertyRejectsWrite(t *testing.T) {
	lib := registry.NewRuntime(registry.DefaultConfig()).GetLibrary("game")
	p := lib.RegisterProperty(sig.Public, true, []string{"version"}, value.Str("1.0"))
	if err := lib.SetProperty(p.ID(), value.Str("2.0")); err == nil {
		t.Errorf("expected error writing a read-only property")
	}
}

func TestParseSignatureText(t *testing.T) {
	s, err := registry.ParseSignatureText("game", "spawn {string} at {number}, {number}", sig.Public)
	if err != nil {
		t.Fatalf("ParseSignatureText: %v", err)
	}
	if len(s.Parts) == 0 {
		t.Errorf("expected at least one part")
	}
	if s.Visibility != sig.Public {
		t.Errorf("Visibility = %v, want Public", s.Visibility)
	}
}

func TestParseSignatureTextAnyParam(t *testing.T) {
	s, err := registry.ParseSignatureText("game", "print {}", sig.Public)
	if err != nil {
		t.Fatalf("ParseSignatureText: %v", err)
	}
	var foundAny bool
	for _, p := range s.Parts {
		if p.Param != nil && p.Param.Any {
			foundAny = true
		}
	}
	if !foundAny {
		t.Errorf("expected an Any parameter slot from {}")
	}
}
