// Package parser turns a token stream into a bytecode buffer, consulting a
// registry.Runtime for known libraries, functions and properties as it
// goes (spec.md §4.2). Its shape — a hand-rolled recursive-descent walk
// over a token slice, emitting opcodes with inline immediates and
// backfilling forward jump addresses once their target is known — follows
// the teacher's asm.parser (db47h/ngaro/asm/parser.go), generalized from
// Forth mnemonics to Jinx's statement/expression grammar.
package parser

import (
	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/internal/jerr"
	"github.com/jinx-lang/jinx/lexer"
	"github.com/jinx-lang/jinx/registry"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

// coreLibraryName is the reserved library every parser implicitly searches,
// holding the coroutine/async sugar natives registered by vm.BootstrapCore
// (`async call`, `'s value`, `is finished`). It needs no import statement.
const coreLibraryName = "core"

// variable is one entry in the parser's lexical scope stack.
type variable struct {
	name  string
	id    uint64
	depth int
}

// loopContext tracks the backfill sites `break` must patch once a loop's
// end address is known, and the post-test address `wait`/loop conditions
// jump back to.
type loopContext struct {
	breakPatches []int
	continueAddr int
}

// Parser compiles one script's token stream into bytecode. Parser state is
// ephemeral per compile (spec.md §3 Lifecycle).
type Parser struct {
	toks []lexer.Token
	pos  int

	script  string
	rt      *registry.Runtime
	library string
	imports []string

	buf   *bytecode.Buffer
	lines []bytecode.LineEntry
	debug bool
	lastEmittedLine int

	scopeStack [][]variable
	stackDepth int

	loops []*loopContext

	localFuncIDs []uint64

	savedTail [][]lexer.Token
}

// New builds a Parser for one compile. imports lists libraries already
// brought into scope via `import` statements found while scanning, or may
// be supplied up-front by the host (spec.md §4.2 Contract: "initial set of
// imported libraries").
func New(toks []lexer.Token, script string, rt *registry.Runtime, imports []string) *Parser {
	return &Parser{
		toks:       toks,
		script:     script,
		rt:         rt,
		imports:    append([]string(nil), imports...),
		buf:        bytecode.NewBuffer(),
		debug:      rt.Config().EnableDebugInfo,
		scopeStack: [][]variable{{}},
	}
}

// Result is everything a successful compile produces: the bytecode
// program and the function/local-cleanup bookkeeping a Script needs.
type Result struct {
	Program      *bytecode.Program
	Library      string
	Imports      []string
	LocalFuncIDs []uint64
}

// Compile runs the parser to completion.
func (p *Parser) Compile() (*Result, error) {
	if err := p.parseProgram(); err != nil {
		return nil, err
	}
	p.emit(bytecode.OpExit)
	prog := &bytecode.Program{
		ScriptName: p.script,
		Code:       p.buf.Bytes(),
		Lines:      p.lines,
		HasDebug:   p.debug,
	}
	return &Result{Program: prog, Library: p.library, Imports: p.imports, LocalFuncIDs: p.localFuncIDs}, nil
}

func (p *Parser) parseProgram() error {
	p.skipNewlines()
	for p.check(lexer.KwImport) {
		p.advance()
		name, err := p.expectName()
		if err != nil {
			return err
		}
		p.imports = append(p.imports, name)
		p.skipNewlines()
	}
	if p.check(lexer.KwLibrary) {
		p.advance()
		name, err := p.expectName()
		if err != nil {
			return err
		}
		p.library = name
		p.emitString(bytecode.OpLibrary, name)
		p.skipNewlines()
	}
	for !p.atEnd() {
		if err := p.parseStatement(); err != nil {
			return err
		}
		p.skipNewlines()
	}
	return nil
}

// --- token cursor helpers ---

func (p *Parser) atEnd() bool { return p.cur().Kind == lexer.EOF }

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(off int) lexer.Token {
	i := p.pos + off
	if i >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[i]
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) check(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) accept(k lexer.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k lexer.Kind, what string) (lexer.Token, error) {
	if !p.check(k) {
		return lexer.Token{}, p.failHere("expected %s", what)
	}
	return p.advance(), nil
}

func (p *Parser) expectName() (string, error) {
	t, err := p.expect(lexer.Name, "identifier")
	if err != nil {
		return "", err
	}
	return t.Text, nil
}

func (p *Parser) skipNewlines() {
	for p.check(lexer.NewLine) {
		p.advance()
	}
}

func (p *Parser) failHere(format string, args ...interface{}) error {
	t := p.cur()
	return jerr.At(jerr.Syntax, p.script, t.Line, t.Column, format, args...)
}

// --- emission helpers ---

func (p *Parser) notePosition(line int) {
	if !p.debug || line == p.lastEmittedLine {
		return
	}
	p.lines = append(p.lines, bytecode.LineEntry{Position: uint32(p.buf.Len()), Line: uint32(line)})
	p.lastEmittedLine = line
}

func (p *Parser) emit(op bytecode.Op) {
	p.notePosition(p.cur().Line)
	p.buf.WriteByte(byte(op))
}

func (p *Parser) emitID(op bytecode.Op, id uint64) {
	p.emit(op)
	p.buf.WriteU64(id)
}

func (p *Parser) emitU32(op bytecode.Op, n uint32) {
	p.emit(op)
	p.buf.WriteU32(n)
}

func (p *Parser) emitString(op bytecode.Op, s string) {
	p.emit(op)
	p.buf.WriteString(s)
}

func (p *Parser) emitValue(v value.Value) {
	p.emit(bytecode.OpPushVal)
	bytecode.EncodeValueLiteral(p.buf, v)
}

// emitJumpPlaceholder writes op followed by a placeholder u32 address and
// returns the position of that address for later backfilling.
func (p *Parser) emitJumpPlaceholder(op bytecode.Op) int {
	p.emit(op)
	pos := p.buf.Len()
	p.buf.WriteU32(0)
	return pos
}

func (p *Parser) patchJumpHere(pos int) {
	p.buf.PatchU32(pos, uint32(p.buf.Len()))
}

func (p *Parser) patchJumpTo(pos int, addr int) {
	p.buf.PatchU32(pos, uint32(addr))
}

// --- scope handling ---

func (p *Parser) pushScope() {
	p.emit(bytecode.OpScopeBegin)
	p.stackDepth++
	p.scopeStack = append(p.scopeStack, nil)
}

func (p *Parser) popScope() {
	p.emit(bytecode.OpScopeEnd)
	p.scopeStack = p.scopeStack[:len(p.scopeStack)-1]
	p.stackDepth--
}

// declareVariable registers foldedName in the innermost scope and returns
// its stable ID (spec.md §3 "Variables... (folded name, stack depth)
// hashed to a 64-bit ID").
func (p *Parser) declareVariable(foldedName string) uint64 {
	id := sig.VariableID(foldedName, p.stackDepth)
	top := len(p.scopeStack) - 1
	p.scopeStack[top] = append(p.scopeStack[top], variable{name: foldedName, id: id, depth: p.stackDepth})
	return id
}

// lookupVariable searches scopes innermost-first.
func (p *Parser) lookupVariable(foldedName string) (uint64, bool) {
	for i := len(p.scopeStack) - 1; i >= 0; i-- {
		frame := p.scopeStack[i]
		for j := len(frame) - 1; j >= 0; j-- {
			if frame[j].name == foldedName {
				return frame[j].id, true
			}
		}
	}
	return 0, false
}

// lookupProperty searches the current library then imports.
func (p *Parser) lookupProperty(foldedName string) (*sig.PropertyName, string, bool) {
	search := append([]string{p.library}, p.imports...)
	for _, libName := range search {
		lib, ok := p.rt.FindLibrary(libName)
		if !ok {
			continue
		}
		for _, prop := range lib.Properties() {
			if joinedName(prop.Words) == foldedName {
				return prop, libName, true
			}
		}
	}
	return nil, "", false
}

func joinedName(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}
