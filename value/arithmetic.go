package value

import (
	"math"

	"github.com/jinx-lang/jinx/internal/jerr"
)

func isNumeric(v Value) bool {
	return v.typ == Integer || v.typ == Number
}

func asFloat(v Value) float64 {
	if v.typ == Integer {
		return float64(v.i)
	}
	return v.f
}

// Add implements spec.md §3's numeric promotion: Integer+Integer stays
// Integer; any Number operand promotes the result to Number. String
// concatenation with `+` is also supported, matching the E2E scenario D
// (`s + (it's value)`).
func Add(a, b Value, script string) (Value, error) {
	if a.typ == String || b.typ == String {
		if a.typ == String && b.typ == String {
			return Str(a.s + b.s), nil
		}
		return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot add %s and %s", a.typ, b.typ)
	}
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot add %s and %s", a.typ, b.typ)
	}
	if a.typ == Integer && b.typ == Integer {
		return Int(a.i + b.i), nil
	}
	return Num(asFloat(a) + asFloat(b)), nil
}

func Subtract(a, b Value, script string) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot subtract %s and %s", a.typ, b.typ)
	}
	if a.typ == Integer && b.typ == Integer {
		return Int(a.i - b.i), nil
	}
	return Num(asFloat(a) - asFloat(b)), nil
}

func Multiply(a, b Value, script string) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot multiply %s and %s", a.typ, b.typ)
	}
	if a.typ == Integer && b.typ == Integer {
		return Int(a.i * b.i), nil
	}
	return Num(asFloat(a) * asFloat(b)), nil
}

// Divide promotes to Number whenever the Integer/Integer division is not
// exact (spec.md §3 and E2E scenario F).
func Divide(a, b Value, script string) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot divide %s and %s", a.typ, b.typ)
	}
	if a.typ == Integer && b.typ == Integer {
		if b.i == 0 {
			return Value{}, jerr.New(jerr.Arithmetic, script, "division by zero")
		}
		if a.i%b.i == 0 {
			return Int(a.i / b.i), nil
		}
		return Num(float64(a.i) / float64(b.i)), nil
	}
	fb := asFloat(b)
	if fb == 0 {
		return Value{}, jerr.New(jerr.Arithmetic, script, "division by zero")
	}
	return Num(asFloat(a) / fb), nil
}

// Mod implements floored modulus: the result has the sign
// of the divisor, per spec.md §3.
func Mod(a, b Value, script string) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot modulus %s and %s", a.typ, b.typ)
	}
	if a.typ == Integer && b.typ == Integer {
		if b.i == 0 {
			return Value{}, jerr.New(jerr.Arithmetic, script, "modulus by zero")
		}
		m := a.i % b.i
		if m != 0 && (m < 0) != (b.i < 0) {
			m += b.i
		}
		return Int(m), nil
	}
	fa, fb := asFloat(a), asFloat(b)
	if fb == 0 {
		return Value{}, jerr.New(jerr.Arithmetic, script, "modulus by zero")
	}
	m := math.Mod(fa, fb)
	if m != 0 && (m < 0) != (fb < 0) {
		m += fb
	}
	return Num(m), nil
}

func Negate(a Value, script string) (Value, error) {
	switch a.typ {
	case Integer:
		return Int(-a.i), nil
	case Number:
		return Num(-a.f), nil
	default:
		return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot negate %s", a.typ)
	}
}
