package value

import (
	"bytes"

	"github.com/jinx-lang/jinx/internal/jerr"
)

// Compare implements the total order on Values used for collection key
// ordering and the relational operators (spec.md §3). It returns -1, 0, or 1.
//
// Within the same tag, the natural order of the payload applies
// (lexicographic for String, componentwise byte compare for Guid). Across
// Integer/Number, both promote to Number. Any other cross-tag pairing is
// ordered by tag, so mixed-type collection keys still sort deterministically;
// Less/LessEq/Greater/GreaterEq report an error for such pairs instead.
func Compare(a, b Value) int {
	if isNumeric(a) && isNumeric(b) {
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	if a.typ != b.typ {
		// No natural order across mismatched non-numeric tags; order by tag
		// so Collection keys of mixed type still sort deterministically.
		if a.typ < b.typ {
			return -1
		}
		if a.typ > b.typ {
			return 1
		}
		return 0
	}
	switch a.typ {
	case Null:
		return 0
	case Boolean:
		return int(a.i - b.i)
	case String:
		return compareStrings(a.s, b.s)
	case Guid:
		return compareGuid(a.g, b.g)
	case Function:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	case ValueType:
		switch {
		case a.vt < b.vt:
			return -1
		case a.vt > b.vt:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareGuid(a, b Guid) int {
	var ab, bb [16]byte
	encodeGuid(&ab, a)
	encodeGuid(&bb, b)
	return bytes.Compare(ab[:], bb[:])
}

func encodeGuid(buf *[16]byte, g Guid) {
	buf[0], buf[1], buf[2], buf[3] = byte(g.Data1), byte(g.Data1>>8), byte(g.Data1>>16), byte(g.Data1>>24)
	buf[4], buf[5] = byte(g.Data2), byte(g.Data2>>8)
	buf[6], buf[7] = byte(g.Data3), byte(g.Data3>>8)
	copy(buf[8:16], g.Data4[:])
}

// orderable reports whether a and b can be meaningfully ordered by `<
// <= > >=` per spec.md §3: same tag, or both numeric.
func orderable(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		return true
	}
	return a.typ == b.typ
}

// Equals implements `=`: Null equals only Null; numeric promotes; every
// other comparison is by-tag-then-by-payload equality. Never errors.
func Equals(a, b Value) bool {
	if a.typ == Null || b.typ == Null {
		return a.typ == Null && b.typ == Null
	}
	if isNumeric(a) && isNumeric(b) {
		return asFloat(a) == asFloat(b)
	}
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case Boolean:
		return a.i == b.i
	case String:
		return a.s == b.s
	case Guid:
		return compareGuid(a.g, b.g) == 0
	case Function:
		return a.i == b.i
	case ValueType:
		return a.vt == b.vt
	case Collection:
		return a.ref == b.ref
	case CollectionIterator:
		return a.ref == b.ref
	case Coroutine, UserObject, Buffer:
		return a.ref == b.ref
	default:
		return true
	}
}

// Less/LessEq/Greater/GreaterEq implement the ordered relational operators;
// they fail with *TypeMismatch* on a non-orderable cross-tag pair per
// spec.md §3 ("Cross-tag comparison with non-numeric mismatch is a runtime
// error for `< <= > >=`").
func Less(a, b Value, script string) (bool, error) {
	if !orderable(a, b) {
		return false, jerr.New(jerr.TypeMismatch, script, "cannot compare %s and %s", a.typ, b.typ)
	}
	return Compare(a, b) < 0, nil
}

func LessEq(a, b Value, script string) (bool, error) {
	if !orderable(a, b) {
		return false, jerr.New(jerr.TypeMismatch, script, "cannot compare %s and %s", a.typ, b.typ)
	}
	return Compare(a, b) <= 0, nil
}

func Greater(a, b Value, script string) (bool, error) {
	if !orderable(a, b) {
		return false, jerr.New(jerr.TypeMismatch, script, "cannot compare %s and %s", a.typ, b.typ)
	}
	return Compare(a, b) > 0, nil
}

func GreaterEq(a, b Value, script string) (bool, error) {
	if !orderable(a, b) {
		return false, jerr.New(jerr.TypeMismatch, script, "cannot compare %s and %s", a.typ, b.typ)
	}
	return Compare(a, b) >= 0, nil
}
