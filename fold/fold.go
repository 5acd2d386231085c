// Package fold implements the identifier/keyword case folding spec.md §3/§4.1
// require: "fast ASCII path plus table-driven non-ASCII mapping", idempotent
// (fold(fold(s)) == fold(s)).
//
// The ASCII fast path is a plain byte-range check, the way the teacher's
// asm.isIdentRune keeps its hot path to simple unicode.Is* calls
// (db47h/ngaro/asm/parser.go). The non-ASCII table is golang.org/x/text's
// cases package rather than a hand-rolled table: it is a direct dependency
// of several pack members doing text/identifier processing (ProbeChain's
// lang/vm package, seehuhn's PDF library, aretext's editor, hivekit), so it
// is the ecosystem-precedented choice for this exact concern.
package fold

import (
	"strings"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// Fold case-folds s for identifier/keyword comparison. Pure-ASCII input
// takes a byte-loop fast path; any non-ASCII rune falls back to
// golang.org/x/text/cases's Unicode-aware folding.
func Fold(s string) string {
	if isASCII(s) {
		return foldASCII(s)
	}
	return foldCaser.String(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func foldASCII(s string) string {
	return strings.ToLower(s)
}

// Equal reports whether a and b are equal under case folding.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}
