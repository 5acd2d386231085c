// Package jerr defines the script-visible error taxonomy (spec.md §7) and
// the panic-to-error recovery boundary used at the edges of the lexer,
// parser, and VM.
//
// The teacher recovers internal panics into wrapped errors at the outermost
// loop of vm.Instance.Run ("Recovered error @pc=..."); Error and Recover
// below generalize that single recovery point into a reusable helper so the
// lexer, parser, and VM can each install the same boundary without
// duplicating the recover/type-switch dance.
package jerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the error categories of spec.md §7. These are categories,
// not Go types: every Kind is carried by the single Error type below.
type Kind uint8

const (
	Syntax Kind = iota
	Resolution
	TypeMismatch
	Bounds
	Arithmetic
	Stack
	Quota
	Format
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "Syntax"
	case Resolution:
		return "Resolution"
	case TypeMismatch:
		return "TypeMismatch"
	case Bounds:
		return "Bounds"
	case Arithmetic:
		return "Arithmetic"
	case Stack:
		return "Stack"
	case Quota:
		return "Quota"
	case Format:
		return "Format"
	default:
		return "Unknown"
	}
}

// Error is a typed script/compile fault. Script is the script name the
// fault occurred in; Line/Column are 1-based source positions, 0 when not
// applicable (e.g. a runtime fault with no debug table loaded).
type Error struct {
	Kind    Kind
	Script  string
	Line    int
	Column  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s: %s(%d,%d): %s", e.Kind, e.Script, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s: %s(%d): %s", e.Kind, e.Script, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Script, e.Message)
	}
}

func (e *Error) Cause() error { return e.cause }
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no position information.
func New(kind Kind, script, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Script: script, Message: fmt.Sprintf(format, args...)}
}

// At builds an Error at a specific source position.
func At(kind Kind, script string, line, col int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Script: script, Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/script/position to an existing error without losing its
// chain, the way the teacher wraps low-level I/O errors with errors.Wrap.
func Wrap(err error, kind Kind, script string, line, col int) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Script: script, Line: line, Column: col, Message: err.Error(), cause: err}
}

// AsError reports whether err (or something in its chain) is a *Error, and
// returns it.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Recover turns a recovered panic value into an *Error of kind Stack (the
// VM's internal-invariant category per spec.md §7), mirroring
// vm.Instance.Run's recover clause. Non-error panics (invariant violations
// the teacher would also not expect) are re-panicked.
func Recover(r interface{}, script string) error {
	switch e := r.(type) {
	case *Error:
		return e
	case error:
		return &Error{Kind: Stack, Script: script, Message: e.Error(), cause: e}
	case nil:
		return nil
	default:
		return &Error{Kind: Stack, Script: script, Message: fmt.Sprintf("%v", e)}
	}
}
