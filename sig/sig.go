// Package sig implements function signatures and property names: the
// multi-part call patterns spec.md §3 describes, and their stable 64-bit
// IDs.
//
// The teacher hashes Forth word names with a simple FNV-style mix in
// asm/parser.go's label table; stable IDs here follow the same
// "plain arithmetic mix over stdlib-only state" idiom rather than reaching
// for an external hash package, since the hash has no cryptographic
// requirement and must stay stable across Go versions and machine
// architectures (the exact mix is part of the on-disk bytecode format via
// the function IDs baked into PushVal/CallFunc immediates).
package sig

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx/fold"
	"github.com/jinx-lang/jinx/value"
)

// Visibility controls cross-library matching (spec.md §4.2.1: "Private
// signatures from a foreign library never match").
type Visibility int

const (
	Public Visibility = iota
	Private
	Local
)

// NamePart is one or more case-folded spellings that must match a single
// token, optionally skippable.
type NamePart struct {
	Alternatives []string
	Optional     bool
}

// ParamSlot is a parameter position in a signature, optionally constrained
// to a ValueType and optionally named for the function body.
type ParamSlot struct {
	Type  value.Type // ignored when Any is true
	Any   bool
	Name  string
}

// Part is exactly one of NamePart or ParamSlot.
type Part struct {
	Name  *NamePart
	Param *ParamSlot
}

// Signature is an ordered list of Parts identifying a callable, per
// spec.md §3 "Function signature".
type Signature struct {
	Library    string
	Parts      []Part
	Visibility Visibility
	id         uint64
}

var rng = rand.New(rand.NewSource(0xB16B00B5))

// seedRandom reseeds the package-level generator used for local-visibility
// IDs. It is unexported and nothing in the module calls it.
func seedRandom(seed int64) { rng = rand.New(rand.NewSource(seed)) }

// New validates parts against spec.md §3's signature invariants and
// assigns a stable ID.
func New(library string, parts []Part, vis Visibility) (*Signature, error) {
	if err := validate(parts); err != nil {
		return nil, err
	}
	s := &Signature{Library: library, Parts: parts, Visibility: vis}
	if vis == Local {
		s.id = rng.Uint64()
	} else {
		s.id = HashCanonical(library, CanonicalString(parts))
	}
	return s, nil
}

func validate(parts []Part) error {
	if len(parts) == 0 {
		return errors.New("sig: signature has no parts")
	}
	hasNonOptionalName := false
	for i, p := range parts {
		if p.Name == nil && p.Param == nil {
			return errors.New("sig: empty part")
		}
		if p.Name != nil {
			if !p.Name.Optional && len(p.Name.Alternatives) > 0 {
				hasNonOptionalName = true
			}
			if len(p.Name.Alternatives) == 0 {
				return errors.New("sig: name part has no alternatives")
			}
		}
		if p.Param != nil {
			if i > 0 && parts[i-1].Param != nil {
				return errors.New("sig: two parameter slots with no name part between them")
			}
			if i > 0 {
				prev := parts[i-1]
				if prev.Name != nil && prev.Name.Optional && allOptionalRun(parts, i-1) {
					return errors.New("sig: name part between parameter slots must have a non-optional alternative")
				}
			}
		}
	}
	if !hasNonOptionalName {
		return errors.New("sig: signature has no non-optional name part")
	}
	return nil
}

// allOptionalRun reports whether the contiguous run of name parts ending at
// idx (walking backward through adjacent name parts) is entirely optional.
func allOptionalRun(parts []Part, idx int) bool {
	for i := idx; i >= 0 && parts[i].Name != nil; i-- {
		if !parts[i].Name.Optional {
			return false
		}
		if i == 0 || parts[i-1].Param != nil {
			break
		}
	}
	return true
}

// ID returns the signature's stable 64-bit identifier.
func (s *Signature) ID() uint64 { return s.id }

// CanonicalString builds the canonical textual form hashed for non-local
// signatures: name parts joined by '/' for alternates and concatenated
// literally between parts, parameter placeholders as `{}` or `{<type>}`,
// single spaces between parts (spec.md §3).
func CanonicalString(parts []Part) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch {
		case p.Name != nil:
			sb.WriteString(strings.Join(p.Name.Alternatives, "/"))
		case p.Param != nil:
			if p.Param.Any {
				sb.WriteString("{}")
			} else {
				sb.WriteString("{")
				sb.WriteString(p.Param.Type.String())
				sb.WriteString("}")
			}
		}
	}
	return sb.String()
}

// HashCanonical hashes "<library> <canonical>" into a 64-bit stable ID.
// Two independent 32-bit multiplicative mixes (akin to FNV-1a folded into
// two lanes) are combined into the final 64-bit value; this is a
// non-cryptographic identity hash, not a checksum, so collision resistance
// only needs to be good enough for a single registry's symbol table.
func HashCanonical(library, canonical string) uint64 {
	key := library + " " + canonical
	return mix64(key)
}

const (
	fnvOffset32 uint32 = 2166136261
	fnvPrime32  uint32 = 16777619
)

func mix64(s string) uint64 {
	var h1, h2 uint32 = fnvOffset32, fnvOffset32 ^ 0x9e3779b9
	for i := 0; i < len(s); i++ {
		h1 ^= uint32(s[i])
		h1 *= fnvPrime32
		h2 ^= uint32(s[i]) + uint32(i)
		h2 *= fnvPrime32
	}
	return uint64(h1)<<32 | uint64(h2)
}

// PropertyName is the (visibility, read-only, library-qualified name,
// default) tuple of spec.md §3.
type PropertyName struct {
	Library    string
	Words      []string // multi-word name, folded
	Visibility Visibility
	ReadOnly   bool
	Default    value.Value
	id         uint64
}

// NewPropertyName builds a PropertyName and assigns its stable ID, the
// 64-bit hash of "<library> <name words joined by space>".
func NewPropertyName(library string, words []string, vis Visibility, readOnly bool, def value.Value) *PropertyName {
	folded := make([]string, len(words))
	for i, w := range words {
		folded[i] = fold.Fold(w)
	}
	name := strings.Join(folded, " ")
	return &PropertyName{
		Library: library, Words: folded, Visibility: vis, ReadOnly: readOnly, Default: def,
		id: mix64(library + " " + name),
	}
}

func (p *PropertyName) ID() uint64 { return p.id }

// PartCount reports the number of words in the property's name, used by the
// parser for lookahead (spec.md §3: "Part count is precomputed for parser
// lookahead").
func (p *PropertyName) PartCount() int { return len(p.Words) }

// VariableID computes the stable per-compile ID for a local variable,
// spec.md §6: "hash(folded_name) + stackDepth". stackDepth distinguishes
// shadowed variables of the same spelling at different scope depths within
// one compile.
func VariableID(foldedName string, stackDepth int) uint64 {
	return mix64(foldedName) + uint64(stackDepth)
}

// ParseParamType maps a lexer type-name token's folded text to a
// value.Type, for parameter-slot and cast-target resolution.
func ParseParamType(word string) (value.Type, bool) {
	switch word {
	case "number":
		return value.Number, true
	case "integer":
		return value.Integer, true
	case "boolean":
		return value.Boolean, true
	case "string":
		return value.String, true
	case "collection":
		return value.Collection, true
	case "coroutine":
		return value.Coroutine, true
	case "function":
		return value.Function, true
	case "guid":
		return value.Guid, true
	case "object":
		return value.UserObject, true
	case "null":
		return value.Null, true
	default:
		return 0, false
	}
}

// FormatID renders a signature/property ID as a fixed-width hex string for
// diagnostics and bytecode dumps.
func FormatID(id uint64) string {
	return "0x" + strconv.FormatUint(id, 16)
}
