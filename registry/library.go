package registry

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx/lexer"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

// Context is the narrow view of a running script a native function body
// needs. vm.Script implements it; registry never imports vm, the same way
// the teacher keeps asm depending on vm but never the reverse.
//
// The coroutine-driving methods exist so the "core" library's async/
// iterator sugar (spec.md §1 "small built-in core function library") can be
// registered as ordinary NativeFuncs instead of special VM opcodes.
type Context interface {
	UserData() interface{}
	Fail(message string)
	Write(message string)
	SpawnCoroutine(funcID uint64, args []value.Value) (value.Value, error)
	CoroutineFinished(c value.Value) bool
	CoroutineValue(c value.Value) value.Value
}

// NativeFunc is a host-registered callback backing a Function whose body
// lives outside compiled bytecode.
type NativeFunc func(ctx Context, args []value.Value) (value.Value, error)

// Function is one entry in the function table: either bytecode (Address
// into its owning Script's code, resolved at call time by the VM) or
// native (a host callback).
type Function struct {
	Signature *sig.Signature
	Native    NativeFunc
	IsNative  bool
	// BytecodeOwner identifies which compiled Program this function's body
	// belongs to; the VM resolves Address against that Program's code.
	BytecodeOwner string
	Address       int
}

// Library owns one named namespace of function signatures and property
// names, per spec.md §4.4 "Library responsibilities".
type Library struct {
	Name string

	mu         sync.RWMutex
	functions  map[uint64]*Function
	bySigHash  map[string][]*Function // canonical string -> candidates (disambiguation)
	properties map[uint64]*sig.PropertyName
	propValues map[uint64]value.Value
}

func newLibrary(name string) *Library {
	return &Library{
		Name:       name,
		functions:  make(map[uint64]*Function),
		bySigHash:  make(map[string][]*Function),
		properties: make(map[uint64]*sig.PropertyName),
		propValues: make(map[uint64]value.Value),
	}
}

// RegisterNativeFunction parses signatureText with a private lexer+parser
// path (spec.md §4.4: "parsed via a private lexer+parser path to build a
// signature") and registers fn under it.
func (l *Library) RegisterNativeFunction(vis sig.Visibility, signatureText string, fn NativeFunc) (*Function, error) {
	s, err := ParseSignatureText(l.Name, signatureText, vis)
	if err != nil {
		return nil, errors.Wrap(err, "registry: parse native function signature")
	}
	f := &Function{Signature: s, Native: fn, IsNative: true}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.functions[s.ID()]; dup {
		return nil, errors.Errorf("registry: duplicate function signature %q in library %q", signatureText, l.Name)
	}
	l.functions[s.ID()] = f
	canon := sig.CanonicalString(s.Parts)
	l.bySigHash[canon] = append(l.bySigHash[canon], f)
	return f, nil
}

// RegisterBytecodeFunction registers a signature whose body was compiled as
// part of a script (Function opcode), recording where its code lives.
func (l *Library) RegisterBytecodeFunction(s *sig.Signature, owner string, address int) (*Function, error) {
	f := &Function{Signature: s, BytecodeOwner: owner, Address: address}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.functions[s.ID()]; dup {
		return nil, errors.Errorf("registry: duplicate function signature in library %q", l.Name)
	}
	l.functions[s.ID()] = f
	canon := sig.CanonicalString(s.Parts)
	l.bySigHash[canon] = append(l.bySigHash[canon], f)
	return f, nil
}

// UnregisterLocal drops a function previously registered with Local
// visibility, called when its owning Script is dropped (spec.md §3
// "Lifecycle": "Local functions registered by a script are unregistered
// when the script is dropped").
func (l *Library) UnregisterLocal(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.functions[id]
	if !ok {
		return
	}
	delete(l.functions, id)
	canon := sig.CanonicalString(f.Signature.Parts)
	list := l.bySigHash[canon]
	for i, c := range list {
		if c == f {
			l.bySigHash[canon] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Function looks up a registered function by ID.
func (l *Library) Function(id uint64) (*Function, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.functions[id]
	return f, ok
}

// Candidates returns every function registered in the library, in no
// particular order; the 4.2.1 matcher does its own per-part filtering.
func (l *Library) Candidates() []*Function {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Function, 0, len(l.functions))
	for _, f := range l.functions {
		out = append(out, f)
	}
	return out
}

// RegisterProperty registers a property name with its default value.
func (l *Library) RegisterProperty(vis sig.Visibility, readOnly bool, words []string, def value.Value) *sig.PropertyName {
	p := sig.NewPropertyName(l.Name, words, vis, readOnly, def)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.properties[p.ID()] = p
	l.propValues[p.ID()] = def
	return p
}

// Property looks up a property name by ID.
func (l *Library) Property(id uint64) (*sig.PropertyName, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.properties[id]
	return p, ok
}

// Properties returns every registered property name, for the parser's
// identifier-resolution pass.
func (l *Library) Properties() []*sig.PropertyName {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*sig.PropertyName, 0, len(l.properties))
	for _, p := range l.properties {
		out = append(out, p)
	}
	return out
}

// GetProperty reads a property's current value by ID.
func (l *Library) GetProperty(id uint64) (value.Value, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.propValues[id]
	return v, ok
}

// SetProperty writes a property's value by ID; fails if the property is
// read-only.
func (l *Library) SetProperty(id uint64, v value.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.properties[id]
	if !ok {
		return errors.Errorf("registry: unknown property id %x", id)
	}
	if p.ReadOnly {
		return errors.Errorf("registry: property %q is read-only", joinWords(p.Words))
	}
	l.propValues[id] = v
	return nil
}

// GetPropertyByName looks up a property's current value by its folded,
// space-joined multi-word name.
func (l *Library) GetPropertyByName(name string) (value.Value, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for id, p := range l.properties {
		if joinWords(p.Words) == name {
			return l.propValues[id], true
		}
	}
	return value.Value{}, false
}

// SetPropertyByName writes a property's value looked up by folded name.
func (l *Library) SetPropertyByName(name string, v value.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, p := range l.properties {
		if joinWords(p.Words) == name {
			if p.ReadOnly {
				return errors.Errorf("registry: property %q is read-only", name)
			}
			l.propValues[id] = v
			return nil
		}
	}
	return errors.Errorf("registry: unknown property %q", name)
}

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

// ParseSignatureText compiles a human-written signature string (e.g.
// `add {number} and {number}`) into a sig.Signature, using the lexer's
// default keyword table purely as a tokenizer — signature text has no
// control-flow keywords, only name-part words, `{type}` placeholders,
// `word1/word2` alternates, and `[...]`-wrapped optional name parts.
// Name parts follow the same rules as parser.parseSignatureParts; braces
// do not: only `{}` and `{type}` are accepted here, while an in-script
// `function` definition also accepts `{name}` and `{name as type}`.
// Parameter names are not part of the canonical form, so both produce the
// same signature ID for the same shape.
func ParseSignatureText(library, text string, vis sig.Visibility) (*sig.Signature, error) {
	lx := lexer.New(text, "<signature>", lexer.DefaultKeywords())
	toks, err := lx.Tokens()
	if err != nil {
		return nil, err
	}
	var parts []sig.Part
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.Kind {
		case lexer.EOF, lexer.NewLine:
			continue
		case lexer.LBrace:
			if i+1 < len(toks) && toks[i+1].Kind == lexer.RBrace {
				parts = append(parts, sig.Part{Param: &sig.ParamSlot{Any: true}})
				i++
				continue
			}
			if i+2 < len(toks) && toks[i+2].Kind == lexer.RBrace {
				if typ, ok := sig.ParseParamType(toks[i+1].Text); ok {
					parts = append(parts, sig.Part{Param: &sig.ParamSlot{Type: typ}})
				}
				i += 2
				continue
			}
		case lexer.LBracket, lexer.Name:
			part, consumed := parseNamePartText(toks, i)
			parts = append(parts, part)
			i += consumed - 1
		default:
			parts = append(parts, sig.Part{Name: &sig.NamePart{Alternatives: []string{t.Text}}})
		}
	}
	return sig.New(library, parts, vis)
}

// parseNamePartText reads one name part starting at toks[i] — a bare word,
// a `/`-separated run of alternative spellings, optionally wrapped in
// `[...]` to mark it optional — mirroring parser.Parser.readNamePart's
// grammar. Returns the part and the number of tokens consumed.
func parseNamePartText(toks []lexer.Token, i int) (sig.Part, int) {
	start := i
	optional := false
	if toks[i].Kind == lexer.LBracket {
		optional = true
		i++
	}
	var alts []string
	if i < len(toks) {
		alts = append(alts, toks[i].Text)
		i++
	}
	for i+1 < len(toks) && toks[i].Kind == lexer.Slash {
		alts = append(alts, toks[i+1].Text)
		i += 2
	}
	if optional && i < len(toks) && toks[i].Kind == lexer.RBracket {
		i++
	}
	return sig.Part{Name: &sig.NamePart{Alternatives: alts, Optional: optional}}, i - start
}
