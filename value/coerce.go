package value

import (
	"strconv"
	"unicode/utf8"

	"github.com/jinx-lang/jinx/internal/jerr"
)

// Cast converts v to the requested ValueType, failing with *TypeMismatch*
// when the conversion is not supported (spec.md §4.2 `as <ValueType>`, §4.3
// SetIndex parameter coercion).
func Cast(v Value, target Type, script string) (Value, error) {
	if v.typ == target {
		return v, nil
	}
	switch target {
	case Integer:
		switch v.typ {
		case Number:
			return Int(int64(v.f)), nil
		case Boolean:
			return Int(v.i), nil
		case String:
			n, err := strconv.ParseInt(v.s, 10, 64)
			if err != nil {
				return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot cast %q to integer", v.s)
			}
			return Int(n), nil
		}
	case Number:
		switch v.typ {
		case Integer:
			return Num(float64(v.i)), nil
		case Boolean:
			return Num(float64(v.i)), nil
		case String:
			f, err := strconv.ParseFloat(v.s, 64)
			if err != nil {
				return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot cast %q to number", v.s)
			}
			return Num(f), nil
		}
	case Boolean:
		switch v.typ {
		case Integer:
			return Bool(v.i != 0), nil
		case Number:
			return Bool(v.f != 0), nil
		case String:
			b, err := strconv.ParseBool(v.s)
			if err != nil {
				return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot cast %q to boolean", v.s)
			}
			return Bool(b), nil
		}
	case String:
		return Str(v.String()), nil
	case ValueType:
		return TypeValue(v.typ), nil
	}
	return Value{}, jerr.New(jerr.TypeMismatch, script, "cannot cast %s to %s", v.typ, target)
}

// RuneLen returns the Unicode code point count of a String value, per
// spec.md §3 ("Character counting is by Unicode code points").
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Index returns the 1-based indexed rune of s as a single-character string.
func Index(s string, i int64, script string) (Value, error) {
	runes := []rune(s)
	if i < 1 || int(i) > len(runes) {
		return Value{}, jerr.New(jerr.Bounds, script, "string index %d out of range", i)
	}
	return Str(string(runes[i-1])), nil
}

// Slice returns the inclusive 1-based range [from, to] of s.
func Slice(s string, from, to int64, script string) (Value, error) {
	runes := []rune(s)
	if from < 1 || to < from || int(to) > len(runes) {
		return Value{}, jerr.New(jerr.Bounds, script, "string range [%d,%d] out of range", from, to)
	}
	return Str(string(runes[from-1 : to])), nil
}
