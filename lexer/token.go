package lexer

import "github.com/jinx-lang/jinx/value"

// Kind identifies a token category (spec.md §4.1 "Token kinds").
type Kind int

const (
	EOF Kind = iota

	// Structural
	NewLine
	Comma
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Ellipsis
	Slash // used both as division operator and path-style separator

	// Operators
	Plus
	Minus
	Star
	Percent
	Assign // the bare '=' used by comparison; "to" is the declaration keyword
	NotEq
	Less
	LessEq
	Greater
	GreaterEq
	KwAnd
	KwOr
	KwNot

	// Literals
	Name
	StringLit
	NumberLit
	IntegerLit
	BooleanLit
	NullLit

	// Keywords
	KwBegin
	KwEnd
	KwIf
	KwElse
	KwReturn
	KwFunction
	KwLibrary
	KwImport
	KwPublic
	KwPrivate
	KwReadonly
	KwSet
	KwTo
	KwFrom
	KwBy
	KwOver
	KwUntil
	KwWhile
	KwLoop
	KwBreak
	KwWait
	KwIncrement
	KwDecrement
	KwErase
	KwExternal
	KwAs
	KwIs

	// Type-name keywords (also usable as ValueType literals via `as <type>`).
	// "null" and "function" are not repeated here: spec.md §4.1 lists each
	// spelling once, so NullLit and KwFunction double as the ValueType-name
	// tokens for Null and Function; the parser tells the two uses apart by
	// grammatical position, same as it must for every other keyword.
	KwTypeNumber
	KwTypeInteger
	KwTypeBoolean
	KwTypeString
	KwTypeCollection
	KwTypeCoroutine
	KwTypeGuid
	KwTypeObject
	KwType
)

var kindNames = map[Kind]string{
	EOF: "EOF", NewLine: "newline", Comma: "','", LParen: "'('", RParen: "')'",
	LBrace: "'{'", RBrace: "'}'", LBracket: "'['", RBracket: "']'",
	Ellipsis: "'...'", Slash: "'/'", Plus: "'+'", Minus: "'-'", Star: "'*'",
	Percent: "'%'", Assign: "'='", NotEq: "'!='", Less: "'<'", LessEq: "'<='",
	Greater: "'>'", GreaterEq: "'>='", KwAnd: "and", KwOr: "or", KwNot: "not",
	Name: "name", StringLit: "string", NumberLit: "number", IntegerLit: "integer",
	BooleanLit: "boolean", NullLit: "null",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "keyword"
}

// DefaultKeywords returns the token kind for every multi-character
// operator/keyword spelling recognized by the language, per spec.md §4.1's
// lexer contract ("a map from multi-character operator/keyword text to
// token kind"). Keys are already case-folded.
func DefaultKeywords() map[string]Kind {
	return map[string]Kind{
		"and": KwAnd, "or": KwOr, "not": KwNot,
		"begin": KwBegin, "end": KwEnd, "if": KwIf, "else": KwElse,
		"return": KwReturn, "function": KwFunction, "library": KwLibrary,
		"import": KwImport, "public": KwPublic, "private": KwPrivate,
		"readonly": KwReadonly, "set": KwSet, "to": KwTo, "from": KwFrom,
		"by": KwBy, "over": KwOver, "until": KwUntil, "while": KwWhile,
		"loop": KwLoop, "break": KwBreak, "wait": KwWait,
		"increment": KwIncrement, "decrement": KwDecrement, "erase": KwErase,
		"external": KwExternal, "as": KwAs, "is": KwIs,
		"type": KwType, "null": NullLit, "number": KwTypeNumber,
		"integer": KwTypeInteger, "boolean": KwTypeBoolean, "string": KwTypeString,
		"collection": KwTypeCollection, "coroutine": KwTypeCoroutine,
		"guid": KwTypeGuid, "object": KwTypeObject,
		"true": BooleanLit, "false": BooleanLit,
	}
}

// Token is one scanned lexical unit.
type Token struct {
	Kind    Kind
	Text    string // case-folded spelling, used for keyword/identifier matching
	Raw     string // original spelling (diagnostics, string contents)
	Literal value.Value
	Line    int
	Column  int
}
