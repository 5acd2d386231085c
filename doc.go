// Package jinx is a natural-language-flavored embeddable scripting engine:
// a lexer that case-folds identifiers and strips English possessives, a
// parser that matches calls against multi-word function signatures rather
// than fixed-arity prototypes, a stack-based bytecode VM that runs in
// bounded instruction slices, and a registry of libraries a host
// application populates with native callbacks and properties.
//
// A typical embedding sequence:
//
//	jinx.Initialize()
//	rt := jinx.CreateRuntime()
//	lib := rt.GetLibrary("game")
//	lib.RegisterFunction(sig.Public, "spawn {string} at {number}, {number}", spawnCallback)
//	script, err := rt.ExecuteScript(sourceText, myGameState, "level1.jinx", []string{"game"})
//	for !script.IsFinished() {
//	    script.Execute()
//	}
//
// Scripts are slice-executed rather than run to completion in one call so a
// host can interleave many scripts (or a script's own `wait`-driven
// coroutines) across a frame loop without blocking threads on I/O, the same
// cooperative model the Forth-derived teacher this package borrows its VM
// loop shape from uses for its own I/O wait ports.
package jinx
