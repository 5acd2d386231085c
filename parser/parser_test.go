package parser_test

import (
	"testing"

	"github.com/jinx-lang/jinx/lexer"
	"github.com/jinx-lang/jinx/parser"
	"github.com/jinx-lang/jinx/registry"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
	"github.com/jinx-lang/jinx/vm"
)

// compileSource lexes and parses src directly, bypassing the jinx.Runtime
// facade, the way the teacher's asm tests drive asm.Parser without a full
// cmd/retro pipeline.
func compileSource(t *testing.T, rt *registry.Runtime, src, name string, imports []string) (*parser.Result, error) {
	t.Helper()
	lx := lexer.New(src, name, lexer.DefaultKeywords())
	toks, err := lx.Tokens()
	if err != nil {
		t.Fatalf("lex %s: %v", name, err)
	}
	return parser.New(toks, name, rt, imports).Compile()
}

// runProgram drives a compiled Result to completion and fails the test if
// the script errors.
func runProgram(t *testing.T, rt *registry.Runtime, result *parser.Result, name string, userCtx interface{}) *vm.Script {
	t.Helper()
	s := vm.New(rt, result.Program, result.Library, result.Imports, result.LocalFuncIDs, userCtx)
	for !s.IsFinished() {
		s.Execute()
	}
	if s.Failed() {
		t.Fatalf("script %s failed: %v", name, s.Err())
	}
	return s
}

// Two libraries each registering a bare "ping" signature produce a genuine
// tie in findCall's longest-match search (spec.md §4.2.1): an unqualified
// call must error rather than pick one arbitrarily.
func TestAmbiguousCrossLibraryCallErrors(t *testing.T) {
	rt := registry.NewRuntime(registry.DefaultConfig())
	echo := func(ctx registry.Context, args []value.Value) (value.Value, error) {
		return value.Bool(true), nil
	}
	if _, err := rt.GetLibrary("a").RegisterNativeFunction(sig.Public, "ping", echo); err != nil {
		t.Fatalf("RegisterNativeFunction(a): %v", err)
	}
	if _, err := rt.GetLibrary("b").RegisterNativeFunction(sig.Public, "ping", echo); err != nil {
		t.Fatalf("RegisterNativeFunction(b): %v", err)
	}

	_, err := compileSource(t, rt, "import a\nimport b\nping\n", "ambiguous", nil)
	if err == nil {
		t.Fatalf("expected an ambiguous-call error when two imports tie")
	}
}

// A signature with a `[...]`-wrapped optional name part (spec.md §3) must
// resolve to the same function whether the optional word is present or
// dropped from the call site.
func TestOptionalNamePartBothSpellingsResolveSameFunction(t *testing.T) {
	rt := registry.NewRuntime(registry.DefaultConfig())
	var heard []string
	lib := rt.GetLibrary("greet")
	if _, err := lib.RegisterNativeFunction(sig.Public, "say [loudly] {string}", func(ctx registry.Context, args []value.Value) (value.Value, error) {
		heard = append(heard, args[0].AsString())
		return value.NullValue, nil
	}); err != nil {
		t.Fatalf("RegisterNativeFunction: %v", err)
	}

	for _, src := range []string{
		"library greet\nsay \"hi\"\n",
		"library greet\nsay loudly \"hi\"\n",
	} {
		result, err := compileSource(t, rt, src, "optionalpart", nil)
		if err != nil {
			t.Fatalf("Compile(%q): %v", src, err)
		}
		runProgram(t, rt, result, "optionalpart", nil)
	}
	if len(heard) != 2 || heard[0] != "hi" || heard[1] != "hi" {
		t.Fatalf("native calls = %v, want two calls each with \"hi\"", heard)
	}
}

// A `word1/word2` alternates name part (spec.md §3) must resolve to the
// same function under either spelling.
func TestAlternativeSpellingsResolveSameFunction(t *testing.T) {
	rt := registry.NewRuntime(registry.DefaultConfig())
	calls := 0
	lib := rt.GetLibrary("actions")
	if _, err := lib.RegisterNativeFunction(sig.Public, "grab/take {string}", func(ctx registry.Context, args []value.Value) (value.Value, error) {
		calls++
		return value.NullValue, nil
	}); err != nil {
		t.Fatalf("RegisterNativeFunction: %v", err)
	}

	for _, src := range []string{
		"library actions\ngrab \"sword\"\n",
		"library actions\ntake \"sword\"\n",
	} {
		result, err := compileSource(t, rt, src, "altspelling", nil)
		if err != nil {
			t.Fatalf("Compile(%q): %v", src, err)
		}
		runProgram(t, rt, result, "altspelling", nil)
	}
	if calls != 2 {
		t.Fatalf("native calls = %d, want 2", calls)
	}
}

// The bracket-index grammar accepts both a bare 1-based index (PushKeyVal)
// and an inclusive integer-pair range (PushKeyRange, spec.md §3), and each
// must drive the matching value.Index/value.Slice behavior end to end.
func TestBracketIndexSingleAndRange(t *testing.T) {
	rt := registry.NewRuntime(registry.DefaultConfig())
	if err := vm.BootstrapCore(rt); err != nil {
		t.Fatalf("BootstrapCore: %v", err)
	}

	src := "set w to \"hello\"\nset single to w[2]\nset span to w[2, 4]\n"
	result, err := compileSource(t, rt, src, "bracketindex", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s := runProgram(t, rt, result, "bracketindex", nil)

	single, ok := s.GetVariable("single")
	if !ok || single.AsString() != "e" {
		t.Fatalf("single = (%v, %v), want (\"e\", true)", single, ok)
	}
	span, ok := s.GetVariable("span")
	if !ok || span.AsString() != "ell" {
		t.Fatalf("span = (%v, %v), want (\"ell\", true)", span, ok)
	}
}
