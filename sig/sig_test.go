package sig_test

import (
	"testing"

	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

func namePart(alts ...string) sig.Part {
	return sig.Part{Name: &sig.NamePart{Alternatives: alts}}
}

func optionalNamePart(alts ...string) sig.Part {
	return sig.Part{Name: &sig.NamePart{Alternatives: alts, Optional: true}}
}

func paramPart(typ value.Type) sig.Part {
	return sig.Part{Param: &sig.ParamSlot{Type: typ}}
}

func anyParamPart() sig.Part {
	return sig.Part{Param: &sig.ParamSlot{Any: true}}
}

func TestNewValid(t *testing.T) {
	parts := []sig.Part{namePart("spawn"), paramPart(value.String), namePart("at"), paramPart(value.Number)}
	s, err := sig.New("game", parts, sig.Public)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID() == 0 {
		t.Errorf("expected a nonzero id")
	}
}

func TestNewRejectsEmptyParts(t *testing.T) {
	if _, err := sig.New("game", nil, sig.Public); err == nil {
		t.Errorf("expected error for signature with no parts")
	}
}

func TestNewRejectsAdjacentParams(t *testing.T) {
	parts := []sig.Part{namePart("set"), paramPart(value.String), paramPart(value.Number)}
	if _, err := sig.New("game", parts, sig.Public); err == nil {
		t.Errorf("expected error for two adjacent parameter slots")
	}
}

func TestNewRejectsNoNonOptionalName(t *testing.T) {
	parts := []sig.Part{optionalNamePart("the"), paramPart(value.Number)}
	if _, err := sig.New("game", parts, sig.Public); err == nil {
		t.Errorf("expected error: no non-optional name part")
	}
}

func TestNewRejectsNameWithNoAlternatives(t *testing.T) {
	parts := []sig.Part{{Name: &sig.NamePart{}}}
	if _, err := sig.New("game", parts, sig.Public); err == nil {
		t.Errorf("expected error for name part with no alternatives")
	}
}

func TestIDDeterministicForPublicAndPrivate(t *testing.T) {
	parts := []sig.Part{namePart("spawn"), paramPart(value.String)}
	a, err := sig.New("game", parts, sig.Public)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := sig.New("game", parts, sig.Public)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID() != b.ID() {
		t.Errorf("two Public signatures of identical shape should hash to the same id: %d != %d", a.ID(), b.ID())
	}

	priv, err := sig.New("game", parts, sig.Private)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if priv.ID() != a.ID() {
		t.Errorf("id should be independent of visibility (Public vs Private): %d != %d", priv.ID(), a.ID())
	}
}

func TestIDDependsOnLibraryAndShape(t *testing.T) {
	parts := []sig.Part{namePart("spawn"), paramPart(value.String)}
	a, _ := sig.New("game", parts, sig.Public)
	b, _ := sig.New("other", parts, sig.Public)
	if a.ID() == b.ID() {
		t.Errorf("different libraries should not collide: both hashed to %d", a.ID())
	}

	parts2 := []sig.Part{namePart("spawn"), paramPart(value.Number)}
	c, _ := sig.New("game", parts2, sig.Public)
	if a.ID() == c.ID() {
		t.Errorf("different parameter types should not collide: both hashed to %d", a.ID())
	}
}

func TestLocalIDsAreNotDeterministic(t *testing.T) {
	parts := []sig.Part{namePart("spawn"), paramPart(value.String)}
	a, err := sig.New("game", parts, sig.Local)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pub, _ := sig.New("game", parts, sig.Public)
	if a.ID() == pub.ID() {
		t.Errorf("a Local signature's id should not match the deterministic Public/Private hash")
	}
}

func TestCanonicalString(t *testing.T) {
	parts := []sig.Part{namePart("spawn", "create"), paramPart(value.String), namePart("at"), anyParamPart()}
	got := sig.CanonicalString(parts)
	want := "spawn/create {string} at {}"
	if got != want {
		t.Errorf("CanonicalString = %q, want %q", got, want)
	}
}

func TestHashCanonicalStable(t *testing.T) {
	a := sig.HashCanonical("game", "spawn {string}")
	b := sig.HashCanonical("game", "spawn {string}")
	if a != b {
		t.Errorf("HashCanonical should be a pure function of its inputs: %d != %d", a, b)
	}
}

func TestPropertyNameFoldsWords(t *testing.T) {
	p := sig.NewPropertyName("game", []string{"Player", "Health"}, sig.Public, false, value.Int(100))
	if p.Words[0] != "player" || p.Words[1] != "health" {
		t.Errorf("Words should be folded: got %v", p.Words)
	}
	if p.PartCount() != 2 {
		t.Errorf("PartCount() = %d, want 2", p.PartCount())
	}
	if p.ID() == 0 {
		t.Errorf("expected a nonzero id")
	}
}

func TestPropertyNameIDDeterministic(t *testing.T) {
	a := sig.NewPropertyName("game", []string{"Player", "Health"}, sig.Public, false, value.Null)
	b := sig.NewPropertyName("game", []string{"player", "HEALTH"}, sig.Private, true, value.Int(5))
	if a.ID() != b.ID() {
		t.Errorf("id should depend only on library+folded words, not case/visibility/readonly/default: %d != %d", a.ID(), b.ID())
	}
}

func TestVariableIDDistinguishesShadowDepth(t *testing.T) {
	a := sig.VariableID("x", 0)
	b := sig.VariableID("x", 1)
	if a == b {
		t.Errorf("VariableID should distinguish stack depths for the same name")
	}
}

func TestParseParamType(t *testing.T) {
	data := []struct {
		word string
		want value.Type
		ok   bool
	}{
		{"number", value.Number, true},
		{"integer", value.Integer, true},
		{"boolean", value.Boolean, true},
		{"string", value.String, true},
		{"collection", value.Collection, true},
		{"coroutine", value.Coroutine, true},
		{"function", value.Function, true},
		{"guid", value.Guid, true},
		{"object", value.UserObject, true},
		{"null", value.Null, true},
		{"bogus", 0, false},
	}
	for _, d := range data {
		got, ok := sig.ParseParamType(d.word)
		if ok != d.ok {
			t.Errorf("ParseParamType(%q) ok = %v, want %v", d.word, ok, d.ok)
			continue
		}
		if ok && got != d.want {
			t.Errorf("ParseParamType(%q) = %v, want %v", d.word, got, d.want)
		}
	}
}

func TestFormatID(t *testing.T) {
	if got := sig.FormatID(0xABCD); got != "0xabcd" {
		t.Errorf("FormatID(0xABCD) = %q, want %q", got, "0xabcd")
	}
}
