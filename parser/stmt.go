package parser

import (
	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/lexer"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

// parseStatement dispatches on the leading token per spec.md §4.2's
// statement grammar.
func (p *Parser) parseStatement() error {
	switch p.cur().Kind {
	case lexer.KwSet:
		return p.parseSet()
	case lexer.KwExternal:
		return p.parseExternal()
	case lexer.KwIncrement, lexer.KwDecrement:
		return p.parseIncDec()
	case lexer.KwErase:
		return p.parseErase()
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwLoop:
		return p.parseLoop()
	case lexer.KwBreak:
		p.advance()
		return p.emitBreak()
	case lexer.KwReturn:
		return p.parseReturn()
	case lexer.KwWait:
		return p.parseWait()
	case lexer.KwFunction:
		return p.parseFunctionDef(sig.Local)
	case lexer.KwPublic, lexer.KwPrivate:
		return p.parseVisibilityPrefixed()
	case lexer.KwBegin:
		return p.parseBeginBlock()
	default:
		// Expression statement: a bare call whose return value is discarded.
		if err := p.parseExpression(); err != nil {
			return err
		}
		p.emit(bytecode.OpPop)
		return nil
	}
}

func (p *Parser) parseVisibilityPrefixed() error {
	vis := sig.Public
	if p.cur().Kind == lexer.KwPrivate {
		vis = sig.Private
	}
	p.advance()
	readonly := false
	if p.check(lexer.KwReadonly) {
		readonly = true
		p.advance()
	}
	if p.check(lexer.KwFunction) {
		return p.parseFunctionDef(vis)
	}
	return p.parseSetDeclared(vis, readonly)
}

// parseSet handles `set [public|private] [readonly] <name> to <expr>` as a
// fresh declaration, and `set <existing target> to <expr>` as assignment.
func (p *Parser) parseSet() error {
	p.advance() // 'set'
	vis := sig.Local
	readonly := false
	if p.check(lexer.KwPublic) {
		vis = sig.Public
		p.advance()
	} else if p.check(lexer.KwPrivate) {
		vis = sig.Private
		p.advance()
	}
	if p.check(lexer.KwReadonly) {
		readonly = true
		p.advance()
	}
	return p.parseSetDeclared(vis, readonly)
}

func (p *Parser) parseSetDeclared(vis sig.Visibility, readonly bool) error {
	nameTok, err := p.expect(lexer.Name, "identifier")
	if err != nil {
		return err
	}
	name := nameTok.Text

	// Bracket-index suffixes mean this is an assignment into an existing
	// container, not a declaration.
	var indices int
	for p.check(lexer.LBracket) {
		p.advance()
		if err := p.parseOr(); err != nil {
			return err
		}
		if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
			return err
		}
		indices++
	}

	if _, err := p.expect(lexer.KwTo, "'to'"); err != nil {
		return err
	}
	if err := p.parseExpression(); err != nil {
		return err
	}

	if indices > 0 {
		return p.emitIndexedAssign(name, indices)
	}

	if id, ok := p.lookupVariable(name); ok {
		p.emitID(bytecode.OpSetVar, id)
		return nil
	}
	if prop, libName, ok := p.lookupProperty(name); ok && vis == sig.Local {
		_ = libName
		p.emitID(bytecode.OpSetProp, prop.ID())
		return nil
	}

	if p.stackDepth == 0 && vis != sig.Local {
		// Root-scope non-local declarations become properties of the
		// current library (spec.md §4.2: "property if non-local scope").
		lib := p.rt.GetLibrary(p.library)
		prop := lib.RegisterProperty(vis, readonly, []string{name}, value.Value{})
		p.emitID(bytecode.OpSetProp, prop.ID())
		return nil
	}
	id := p.declareVariable(name)
	p.emitID(bytecode.OpSetVar, id)
	return nil
}

func (p *Parser) emitIndexedAssign(name string, indices int) error {
	if id, ok := p.lookupVariable(name); ok {
		p.emitU32(bytecode.OpSetVarKeyVal, uint32(indices))
		p.buf.WriteU64(id)
		return nil
	}
	if prop, _, ok := p.lookupProperty(name); ok {
		p.emitU32(bytecode.OpSetPropKeyVal, uint32(indices))
		p.buf.WriteU64(prop.ID())
		return nil
	}
	return p.failHere("unresolved assignment target %q", name)
}

func (p *Parser) parseExternal() error {
	p.advance()
	name, err := p.expectName()
	if err != nil {
		return err
	}
	id := p.declareVariable(name)
	p.emitValue(value.Value{})
	p.emitID(bytecode.OpSetVar, id)
	return nil
}

func (p *Parser) parseIncDec() error {
	dec := p.cur().Kind == lexer.KwDecrement
	p.advance()
	nameTok, err := p.expect(lexer.Name, "identifier")
	if err != nil {
		return err
	}
	name := nameTok.Text
	step := false
	if p.accept(lexer.KwBy) {
		if err := p.parseExpression(); err != nil {
			return err
		}
		step = true
	}
	if !step {
		p.emitValue(value.Int(1))
	}
	id, isVar := p.lookupVariable(name)
	var propID uint64
	var isProp bool
	if !isVar {
		if prop, _, ok := p.lookupProperty(name); ok {
			propID, isProp = prop.ID(), true
		} else {
			return p.failHere("unresolved identifier %q", name)
		}
	}
	if isVar {
		p.emitID(bytecode.OpPushVar, id)
	} else {
		p.emitID(bytecode.OpPushProp, propID)
	}
	if dec {
		p.emit(bytecode.OpDecrement)
	} else {
		p.emit(bytecode.OpIncrement)
	}
	if isVar {
		p.emitID(bytecode.OpSetVar, id)
	} else {
		p.emitID(bytecode.OpSetProp, propID)
	}
	return nil
}

func (p *Parser) parseErase() error {
	p.advance()
	nameTok, err := p.expect(lexer.Name, "identifier")
	if err != nil {
		return err
	}
	name := nameTok.Text
	hasIndex := false
	if p.check(lexer.LBracket) {
		p.advance()
		if err := p.parseOr(); err != nil {
			return err
		}
		if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
			return err
		}
		hasIndex = true
	}
	if p.check(lexer.LBracket) {
		// EraseVarKeyVal/ErasePropKeyVal (bytecode/opcode.go) carry a single
		// id immediate and pop exactly one key; they have no room for a
		// nested path, so `erase x[a][b]` isn't representable and is
		// rejected here rather than silently erasing the wrong level.
		return p.failHere("erase supports only one subscript level")
	}

	id, isVar := p.lookupVariable(name)
	prop, _, isProp := p.lookupProperty(name)
	if !isVar && !isProp {
		return p.failHere("unresolved erase target %q", name)
	}

	if !hasIndex {
		// `erase <name>` with no subscript resets the target to Null rather
		// than erasing a collection entry (there is no key on the stack to
		// erase).
		p.emitValue(value.Value{})
		if isVar {
			p.emitID(bytecode.OpSetVar, id)
		} else {
			p.emitID(bytecode.OpSetProp, prop.ID())
		}
		return nil
	}

	if isVar {
		p.emitID(bytecode.OpEraseVarKeyVal, id)
		return nil
	}
	p.emitID(bytecode.OpErasePropKeyVal, prop.ID())
	return nil
}

func (p *Parser) parseBlockUntil(terminators ...lexer.Kind) error {
	p.skipNewlines()
	for {
		for _, k := range terminators {
			if p.check(k) {
				return nil
			}
		}
		if p.atEnd() {
			return p.failHere("unexpected end of script")
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
		p.skipNewlines()
	}
}

func (p *Parser) parseIf() error {
	p.advance()
	var endPatches []int
	if err := p.parseExpression(); err != nil {
		return err
	}
	falsePatch := p.emitJumpPlaceholder(bytecode.OpJumpFalse)
	p.pushScope()
	if err := p.parseBlockUntil(lexer.KwElse, lexer.KwEnd); err != nil {
		return err
	}
	p.popScope()
	for p.check(lexer.KwElse) {
		endPatches = append(endPatches, p.emitJumpPlaceholder(bytecode.OpJump))
		p.patchJumpHere(falsePatch)
		p.advance()
		if p.check(lexer.KwIf) {
			p.advance()
			if err := p.parseExpression(); err != nil {
				return err
			}
			falsePatch = p.emitJumpPlaceholder(bytecode.OpJumpFalse)
			p.pushScope()
			if err := p.parseBlockUntil(lexer.KwElse, lexer.KwEnd); err != nil {
				return err
			}
			p.popScope()
			continue
		}
		p.pushScope()
		if err := p.parseBlockUntil(lexer.KwEnd); err != nil {
			return err
		}
		p.popScope()
		falsePatch = -1
		break
	}
	if falsePatch >= 0 {
		p.patchJumpHere(falsePatch)
	}
	for _, pos := range endPatches {
		p.patchJumpHere(pos)
	}
	_, err := p.expect(lexer.KwEnd, "'end'")
	return err
}

func (p *Parser) parseBeginBlock() error {
	p.advance()
	p.pushScope()
	if err := p.parseBlockUntil(lexer.KwEnd); err != nil {
		return err
	}
	p.popScope()
	_, err := p.expect(lexer.KwEnd, "'end'")
	return err
}

func (p *Parser) parseReturn() error {
	p.advance()
	if p.check(lexer.NewLine) || p.atEnd() || p.check(lexer.KwEnd) {
		p.emitValue(value.Value{})
	} else if err := p.parseExpression(); err != nil {
		return err
	}
	p.emit(bytecode.OpReturn)
	return nil
}

func (p *Parser) parseWait() error {
	p.advance()
	if p.check(lexer.KwUntil) || p.check(lexer.KwWhile) {
		// "wait" is done (proceeds) once its condition is satisfied: for
		// "until X" that's X itself becoming true, so the raw value feeds
		// JumpTrue directly; for "while X" it's X becoming false, so the
		// value is negated first (done once NOT X is true). Unlike
		// parsePreTestLoop's until/while (which gate whether the BODY keeps
		// running), this gates whether waiting STOPS, so the polarity is
		// the other way around.
		negate := p.check(lexer.KwWhile)
		p.advance()
		top := p.buf.Len()
		if err := p.parseExpression(); err != nil {
			return err
		}
		if negate {
			p.emit(bytecode.OpNot)
		}
		donePatch := p.emitJumpPlaceholder(bytecode.OpJumpTrue)
		p.emit(bytecode.OpWait)
		p.emitJumpTo(bytecode.OpJump, top)
		p.patchJumpHere(donePatch)
		return nil
	}
	p.emit(bytecode.OpWait)
	return nil
}

func (p *Parser) emitJumpTo(op bytecode.Op, addr int) {
	p.emit(op)
	p.buf.WriteU32(uint32(addr))
}

func (p *Parser) emitBreak() error {
	if len(p.loops) == 0 {
		return p.failHere("'break' outside a loop")
	}
	lc := p.loops[len(p.loops)-1]
	lc.breakPatches = append(lc.breakPatches, p.emitJumpPlaceholder(bytecode.OpJump))
	return nil
}

// parseLoop handles every `loop` form of spec.md §4.2: counter, iterator,
// pre-test conditional, and post-test conditional.
func (p *Parser) parseLoop() error {
	p.advance()

	var name string
	if p.check(lexer.Name) && p.looksLikeLoopKeyword(1) {
		// `loop <name> from ...` / `loop <name> over ...`
		name = p.cur().Text
		p.advance()
	}

	lc := &loopContext{}
	p.loops = append(p.loops, lc)
	defer func() { p.loops = p.loops[:len(p.loops)-1] }()

	switch {
	case p.check(lexer.KwFrom):
		return p.parseCounterLoop(name, lc)
	case p.check(lexer.KwOver):
		return p.parseIteratorLoop(name, lc)
	case p.check(lexer.KwUntil) || p.check(lexer.KwWhile):
		return p.parsePreTestLoop(lc)
	default:
		return p.parsePlainOrPostTestLoop(lc)
	}
}

func (p *Parser) looksLikeLoopKeyword(off int) bool {
	k := p.peekAt(off).Kind
	return k == lexer.KwFrom || k == lexer.KwOver
}

// parseCounterLoop lowers `loop [name] from A to B [by S] ... end`. The
// loop variable is bound to the stack slot holding the running counter
// immediately after it is first pushed (via an explicit SetVar), so that
// slot's position stays fixed at stack-length-minus-3 for the rest of the
// loop (the limit and step values pushed right after it never move once
// the body's own pushes/pops stay balanced). LoopCount (vm/ops.go) advances
// that slot in place on every call after the first, keyed by its own
// bytecode address.
func (p *Parser) parseCounterLoop(name string, lc *loopContext) error {
	p.advance() // 'from'
	// The scope opens before anything is pushed, so its ScopeEnd (at the
	// loop's true exit, after breakPatches are patched) truncates the
	// counter/limit/step together with the body's own locals. Opening it
	// any later would leave the counter slot stranded above the scope
	// marker, leaking one stack slot per loop execution.
	p.pushScope()
	if err := p.parseExpression(); err != nil {
		return err
	}
	varName := name
	if varName == "" {
		varName = "it"
	}
	id := p.declareVariable(varName)
	p.emitID(bytecode.OpSetVar, id)

	if _, err := p.expect(lexer.KwTo, "'to'"); err != nil {
		return err
	}
	if err := p.parseExpression(); err != nil {
		return err
	}
	if p.accept(lexer.KwBy) {
		if err := p.parseExpression(); err != nil {
			return err
		}
	} else {
		p.emitValue(value.Int(1))
	}

	top := p.buf.Len()
	p.emit(bytecode.OpLoopCount)
	donePatch := p.emitJumpPlaceholder(bytecode.OpJumpFalse)
	if err := p.parseBlockUntil(lexer.KwEnd); err != nil {
		return err
	}
	lc.continueAddr = top
	p.emitJumpTo(bytecode.OpJump, top)
	p.patchJumpHere(donePatch)
	for _, pos := range lc.breakPatches {
		p.patchJumpHere(pos)
	}
	p.popScope()
	_, err := p.expect(lexer.KwEnd, "'end'")
	return err
}

// parseIteratorLoop lowers `loop [name] over <expr> ... end`. PushItr peeks
// the just-pushed collection and pushes a fresh Iterator positioned before
// its first element; the loop variable is bound to that iterator's slot via
// an explicit SetVar, the same fixed-slot trick parseCounterLoop uses.
// LoopOver (vm/ops.go) advances the iterator in place before each test, so
// the first call already lands on the first element.
func (p *Parser) parseIteratorLoop(name string, lc *loopContext) error {
	p.advance() // 'over'
	// Same reasoning as parseCounterLoop: open the scope before the
	// collection/iterator are pushed so ScopeEnd reclaims both at loop exit.
	p.pushScope()
	if err := p.parseExpression(); err != nil {
		return err
	}
	p.emit(bytecode.OpPushItr)
	varName := name
	if varName == "" {
		varName = "it"
	}
	id := p.declareVariable(varName)
	p.emitID(bytecode.OpSetVar, id)

	top := p.buf.Len()
	p.emit(bytecode.OpLoopOver)
	donePatch := p.emitJumpPlaceholder(bytecode.OpJumpFalse)
	if err := p.parseBlockUntil(lexer.KwEnd); err != nil {
		return err
	}
	lc.continueAddr = top
	p.emitJumpTo(bytecode.OpJump, top)
	p.patchJumpHere(donePatch)
	for _, pos := range lc.breakPatches {
		p.patchJumpHere(pos)
	}
	p.popScope()
	_, err := p.expect(lexer.KwEnd, "'end'")
	return err
}

func (p *Parser) parsePreTestLoop(lc *loopContext) error {
	negate := p.check(lexer.KwUntil)
	p.advance()
	top := p.buf.Len()
	if err := p.parseExpression(); err != nil {
		return err
	}
	if negate {
		p.emit(bytecode.OpNot)
	}
	donePatch := p.emitJumpPlaceholder(bytecode.OpJumpFalse)
	p.pushScope()
	if err := p.parseBlockUntil(lexer.KwEnd); err != nil {
		return err
	}
	p.popScope()
	lc.continueAddr = top
	p.emitJumpTo(bytecode.OpJump, top)
	p.patchJumpHere(donePatch)
	for _, pos := range lc.breakPatches {
		p.patchJumpHere(pos)
	}
	_, err := p.expect(lexer.KwEnd, "'end'")
	return err
}

func (p *Parser) parsePlainOrPostTestLoop(lc *loopContext) error {
	top := p.buf.Len()
	p.pushScope()
	if err := p.parseBlockUntil(lexer.KwEnd, lexer.KwUntil, lexer.KwWhile); err != nil {
		return err
	}
	p.popScope()
	if p.check(lexer.KwUntil) || p.check(lexer.KwWhile) {
		negate := p.check(lexer.KwUntil)
		p.advance()
		if err := p.parseExpression(); err != nil {
			return err
		}
		if negate {
			p.emit(bytecode.OpNot)
		}
		p.emitJumpTo(bytecode.OpJumpTrue, top)
	} else {
		p.emitJumpTo(bytecode.OpJump, top)
	}
	for _, pos := range lc.breakPatches {
		p.patchJumpHere(pos)
	}
	_, err := p.expect(lexer.KwEnd, "'end'")
	return err
}

// parseFunctionDef handles `[public|private] function <signature>\n<block>\nend`.
func (p *Parser) parseFunctionDef(vis sig.Visibility) error {
	p.advance() // 'function'
	parts, paramNames, err := p.parseSignatureParts()
	if err != nil {
		return err
	}
	s, err := sig.New(p.library, parts, vis)
	if err != nil {
		return err
	}

	overPatch := p.emitJumpPlaceholder(bytecode.OpJump)
	bodyAddr := p.buf.Len()

	p.pushScope()
	argIdx := -1
	for i, pname := range paramNames {
		if parts[i].Param != nil {
			argIdx++
		}
		if pname == "" {
			continue
		}
		id := p.declareVariable(pname)
		p.emit(bytecode.OpSetIndex)
		p.buf.WriteU64(id)
		p.buf.WriteI64(int64(argIdx))
		var typ byte
		if parts[i].Param != nil && !parts[i].Param.Any {
			typ = byte(parts[i].Param.Type)
		}
		p.buf.WriteByte(typ)
	}
	if err := p.parseBlockUntil(lexer.KwEnd); err != nil {
		return err
	}
	p.emitValue(value.Value{})
	p.emit(bytecode.OpReturn)
	p.popScope()
	_, err = p.expect(lexer.KwEnd, "'end'")
	if err != nil {
		return err
	}
	p.patchJumpHere(overPatch)

	lib := p.rt.GetLibrary(p.library)
	if _, err := lib.RegisterBytecodeFunction(s, p.script, bodyAddr); err != nil {
		return err
	}
	if vis == sig.Local {
		p.localFuncIDs = append(p.localFuncIDs, s.ID())
	}
	p.emitString(bytecode.OpFunction, sig.CanonicalString(parts))
	p.buf.WriteU64(s.ID())
	return nil
}

// parseSignatureParts reads a signature definition's own parts until
// end-of-line: bare words become name parts, `{name}` / `{name as type}`
// become parameter slots, `word1/word2` becomes a name part with multiple
// alternative spellings, and `[...]` wraps a name part (bare or
// alternatives) to mark it optional (spec.md §3: "one or more alternative
// spellings, optionally marked optional").
func (p *Parser) parseSignatureParts() ([]sig.Part, []string, error) {
	var parts []sig.Part
	var names []string
	for !p.check(lexer.NewLine) && !p.atEnd() {
		if p.check(lexer.LBrace) {
			p.advance()
			pname := ""
			if p.check(lexer.Name) {
				pname = p.cur().Text
				p.advance()
			}
			slot := &sig.ParamSlot{Any: true}
			if p.accept(lexer.KwAs) {
				typ, err := p.expectTypeName()
				if err != nil {
					return nil, nil, err
				}
				slot.Type, slot.Any = typ, false
			}
			if _, err := p.expect(lexer.RBrace, "'}'"); err != nil {
				return nil, nil, err
			}
			parts = append(parts, sig.Part{Param: slot})
			names = append(names, pname)
			continue
		}
		part, err := p.readNamePart()
		if err != nil {
			return nil, nil, err
		}
		parts = append(parts, part)
		names = append(names, "")
	}
	return parts, names, nil
}

// readNamePart reads one name part: a bare word, or a `/`-separated run of
// alternative spellings (`grab/take/pick up`), optionally wrapped in
// `[...]` to mark the whole part optional (spec.md §3). lexer.Slash doubles
// as the division operator and this path-style alternates separator (see
// lexer/token.go's Slash comment); there is no ambiguity here since
// signature text never contains arithmetic.
func (p *Parser) readNamePart() (sig.Part, error) {
	optional := p.accept(lexer.LBracket)
	t, err := p.expect(lexer.Name, "signature word")
	if err != nil {
		t = p.advance()
	}
	alts := []string{t.Text}
	for p.accept(lexer.Slash) {
		at, err := p.expect(lexer.Name, "signature word")
		if err != nil {
			at = p.advance()
		}
		alts = append(alts, at.Text)
	}
	if optional {
		if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
			return sig.Part{}, err
		}
	}
	return sig.Part{Name: &sig.NamePart{Alternatives: alts, Optional: optional}}, nil
}
