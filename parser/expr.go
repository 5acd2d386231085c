package parser

import (
	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/lexer"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

// parseExpression parses one full expression (lowest precedence: or),
// emitting bytecode that leaves exactly one value on the stack.
func (p *Parser) parseExpression() error {
	return p.parseOr()
}

func (p *Parser) parseOr() error {
	if err := p.parseAndExpr(); err != nil {
		return err
	}
	for p.check(lexer.KwOr) {
		p.advance()
		jpos := p.emitJumpPlaceholder(bytecode.OpJumpTrueCheck)
		p.emit(bytecode.OpPop)
		if err := p.parseAndExpr(); err != nil {
			return err
		}
		p.patchJumpHere(jpos)
	}
	return nil
}

func (p *Parser) parseAndExpr() error {
	if err := p.parseRelational(); err != nil {
		return err
	}
	for p.check(lexer.KwAnd) {
		p.advance()
		jpos := p.emitJumpPlaceholder(bytecode.OpJumpFalseCheck)
		p.emit(bytecode.OpPop)
		if err := p.parseRelational(); err != nil {
			return err
		}
		p.patchJumpHere(jpos)
	}
	return nil
}

func (p *Parser) parseRelational() error {
	if err := p.parseAdditive(); err != nil {
		return err
	}
	for {
		var op bytecode.Op
		switch p.cur().Kind {
		case lexer.Less:
			op = bytecode.OpLess
		case lexer.LessEq:
			op = bytecode.OpLessEq
		case lexer.Greater:
			op = bytecode.OpGreater
		case lexer.GreaterEq:
			op = bytecode.OpGreaterEq
		case lexer.Assign:
			op = bytecode.OpEquals
		case lexer.NotEq:
			op = bytecode.OpNotEquals
		default:
			return nil
		}
		p.advance()
		if err := p.parseAdditive(); err != nil {
			return err
		}
		p.emit(op)
	}
}

func (p *Parser) parseAdditive() error {
	if err := p.parseMultiplicative(); err != nil {
		return err
	}
	for {
		var op bytecode.Op
		switch p.cur().Kind {
		case lexer.Plus:
			op = bytecode.OpAdd
		case lexer.Minus:
			op = bytecode.OpSubtract
		default:
			return nil
		}
		p.advance()
		if err := p.parseMultiplicative(); err != nil {
			return err
		}
		p.emit(op)
	}
}

func (p *Parser) parseMultiplicative() error {
	if err := p.parseUnary(); err != nil {
		return err
	}
	for {
		var op bytecode.Op
		switch p.cur().Kind {
		case lexer.Star:
			op = bytecode.OpMultiply
		case lexer.Slash:
			op = bytecode.OpDivide
		case lexer.Percent:
			op = bytecode.OpMod
		default:
			return nil
		}
		p.advance()
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.emit(op)
	}
}

func (p *Parser) parseUnary() error {
	if p.check(lexer.KwNot) {
		p.advance()
		if p.check(lexer.KwNot) {
			return p.failHere("doubled 'not' is not allowed")
		}
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.emit(bytecode.OpNot)
		return nil
	}
	if p.check(lexer.Minus) {
		p.advance()
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.emit(bytecode.OpNegate)
		return nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() error {
	if err := p.parsePrimary(); err != nil {
		return err
	}
	for {
		switch {
		case p.check(lexer.KwAs):
			p.advance()
			typ, err := p.expectTypeName()
			if err != nil {
				return err
			}
			p.emit(bytecode.OpCast)
			p.buf.WriteByte(byte(typ))
		case p.check(lexer.LBracket):
			p.advance()
			if err := p.parseOr(); err != nil {
				return err
			}
			// An inclusive integer-pair range (spec.md §3 "accept a 1-based
			// integer index or an inclusive integer-pair range") is a second
			// comma-separated expression before the closing bracket; a bare
			// index has none.
			if p.accept(lexer.Comma) {
				if err := p.parseOr(); err != nil {
					return err
				}
				if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
					return err
				}
				p.emit(bytecode.OpPushKeyRange)
				continue
			}
			if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
				return err
			}
			p.emit(bytecode.OpPushKeyVal)
		default:
			return nil
		}
	}
}

func (p *Parser) parsePrimary() error {
	t := p.cur()
	switch t.Kind {
	case lexer.IntegerLit, lexer.NumberLit, lexer.StringLit, lexer.BooleanLit, lexer.NullLit:
		p.advance()
		p.emitValue(t.Literal)
		return nil
	case lexer.LParen:
		p.advance()
		if err := p.parseOr(); err != nil {
			return err
		}
		_, err := p.expect(lexer.RParen, "')'")
		return err
	case lexer.LBracket:
		return p.parseCollectionLiteral()
	case lexer.Name:
		return p.parseIdentifierOrCall()
	default:
		return p.failHere("unexpected token in expression")
	}
}

// parseCollectionLiteral parses `[...]` (spec.md §4.2 "Collection
// literals"). An even number of comma-separated elements is read as
// alternating key/value pairs (PushColl); an odd count (or a single
// element) is read as an auto-indexed list (PushList), the form used
// for plain value lists like `[1, 2, 3]`.
func (p *Parser) parseCollectionLiteral() error {
	p.advance() // '['
	if p.check(lexer.RBracket) {
		p.advance()
		p.emitU32(bytecode.OpPushList, 0)
		return nil
	}
	count := 0
	for {
		if err := p.parseOr(); err != nil {
			return err
		}
		count++
		if p.accept(lexer.Comma) {
			p.skipNewlines()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
		return err
	}
	if count%2 == 0 && count > 0 {
		p.emitU32(bytecode.OpPushColl, uint32(count/2))
	} else {
		p.emitU32(bytecode.OpPushList, uint32(count))
	}
	return nil
}

// parseIdentifierOrCall resolves a leading Name token as a variable read, a
// property read, or the start of a function call, by longest match rather
// than variable-first: a receiver-style signature like `{} value` or `{} is
// finished` consumes the same leading token a bare variable read would
// (`it`, `co`), so trying the variable/property read first would return
// after one token and strand the rest of the call unparsed (the lexer folds
// away `'s`, so `it's value` and `it value` tokenize identically). Only when
// the call match consumes no more than the single token a bare read would
// do we fall back to a plain variable or property push.
func (p *Parser) parseIdentifierOrCall() error {
	name := p.cur().Text
	start := p.pos

	varID, hasVar := p.lookupVariable(name)
	prop, _, hasProp := p.lookupProperty(name)

	c, plan, callOK, err := p.findCall(start)
	if err != nil {
		return err
	}
	callLen := 0
	if callOK {
		callLen = plan.end - start
	}

	if callOK && callLen > 1 {
		return p.commitCall(c, plan)
	}
	if hasVar {
		p.advance()
		p.emitID(bytecode.OpPushVar, varID)
		return nil
	}
	if hasProp {
		p.advance()
		p.emitID(bytecode.OpPushProp, prop.ID())
		return nil
	}
	if callOK {
		return p.commitCall(c, plan)
	}
	return p.failHere("unresolved identifier %q", name)
}

// expectTypeName consumes one type-name token (KwFunction/NullLit for the
// two keyword spellings doubling as ValueType names, or the dedicated
// KwType* kinds) and returns the corresponding value.Type.
func (p *Parser) expectTypeName() (value.Type, error) {
	t := p.cur()
	if typ, ok := sig.ParseParamType(t.Text); ok {
		p.advance()
		return typ, nil
	}
	return 0, p.failHere("expected a type name")
}
