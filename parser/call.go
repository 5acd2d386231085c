package parser

import (
	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/lexer"
	"github.com/jinx-lang/jinx/registry"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

// candidate pairs a function with the library it was found in, so callers
// can tell public matches in imported libraries apart from the local one.
type candidate struct {
	lib *registry.Library
	fn  *registry.Function
}

// callPlan records, for one successful signature match, which optional
// name parts were actually consumed and where each parameter slot's token
// span ends, so commitCall can re-walk the same parts without re-deciding
// anything matchSignature already decided.
type callPlan struct {
	consumed []bool
	slotEnd  map[int]int
	end      int
}

// gatherCandidates returns every function visible at this call site: the
// current library, then the reserved "core" library, then each import,
// skipping private signatures owned by a foreign library (spec.md §4.2.1
// "Private signatures from a foreign library never match"). The order gives
// no precedence: findCall reports an equal-length match in two different
// libraries as ambiguous.
func (p *Parser) gatherCandidates() []candidate {
	var out []candidate
	// "core" (coroutine/async sugar, see vm.BootstrapCore) is in every
	// parser's search set, the same way every script can call `async call`,
	// `'s value`, and `is finished` without an explicit import.
	libNames := append([]string{p.library, coreLibraryName}, p.imports...)
	seen := map[string]bool{}
	for _, name := range libNames {
		// p.library is "" for a script with no `library` statement (spec.md
		// §4.2: the statement is optional) — that's still a real, searchable
		// library (registry.Runtime.GetLibrary("") is created the same as
		// any other name), so it is not skipped here. Only a name already
		// seen is.
		if seen[name] {
			continue
		}
		seen[name] = true
		lib, ok := p.rt.FindLibrary(name)
		if !ok {
			continue
		}
		for _, fn := range lib.Candidates() {
			if fn.Signature.Visibility == sig.Private && name != p.library {
				continue
			}
			out = append(out, candidate{lib: lib, fn: fn})
		}
	}
	return out
}

// matchSignature attempts to match parts starting at token index start,
// without emitting any bytecode. Name parts must match the folded text of
// the current token; parameter slots consume tokens up to (but excluding)
// the next name part's alternatives, or a structural terminator, at
// bracket/paren depth zero (spec.md §4.2.1).
func (p *Parser) matchSignature(parts []sig.Part, start int) (*callPlan, bool) {
	pos := start
	plan := &callPlan{consumed: make([]bool, len(parts)), slotEnd: map[int]int{}}
	for i, part := range parts {
		switch {
		case part.Name != nil:
			tok := p.tokAt(pos)
			if matchesAlternative(tok, part.Name.Alternatives) {
				plan.consumed[i] = true
				pos++
			} else if part.Name.Optional {
				plan.consumed[i] = false
			} else {
				return nil, false
			}
		case part.Param != nil:
			term := nextNameAlternatives(parts, i+1)
			end := p.scanExprSpan(pos, term)
			if end <= pos {
				return nil, false
			}
			plan.slotEnd[i] = end
			pos = end
		}
	}
	plan.end = pos
	return plan, true
}

// matchesAlternative compares by folded Text rather than Kind: keywords
// and ordinary words both carry their folded spelling in Text, so the same
// check covers reserved words used as name-part vocabulary (e.g. "to",
// "by", "is") as well as plain identifiers.
func matchesAlternative(tok lexer.Token, alts []string) bool {
	for _, a := range alts {
		if tok.Text == a {
			return true
		}
	}
	return false
}

// nextNameAlternatives collects the alternatives of the next Name part
// found after index i in parts, used as a terminator set while scanning a
// parameter slot's span.
func nextNameAlternatives(parts []sig.Part, i int) []string {
	for ; i < len(parts); i++ {
		if parts[i].Name != nil {
			return parts[i].Name.Alternatives
		}
	}
	return nil
}

// scanExprSpan returns the token index one past the end of the expression
// starting at pos, stopping at bracket/paren depth zero on a comma, close
// bracket/paren, newline, EOF, or any token whose folded text is in term.
func (p *Parser) scanExprSpan(pos int, term []string) int {
	depth := 0
	j := pos
	for {
		t := p.tokAt(j)
		if t.Kind == lexer.EOF {
			return j
		}
		switch t.Kind {
		case lexer.LParen, lexer.LBracket:
			depth++
		case lexer.RParen, lexer.RBracket:
			if depth == 0 {
				return j
			}
			depth--
		case lexer.Comma, lexer.NewLine:
			if depth == 0 {
				return j
			}
		}
		if depth == 0 && j > pos {
			for _, w := range term {
				if t.Text == w {
					return j
				}
			}
		}
		j++
	}
}

func (p *Parser) tokAt(i int) lexer.Token {
	if i >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[i]
}

// findCall searches every candidate at the current position and returns
// the longest match (by tokens consumed), erroring on an unqualified tie
// across libraries (spec.md §4.2.1).
func (p *Parser) findCall(start int) (candidate, *callPlan, bool, error) {
	var best candidate
	var bestPlan *callPlan
	bestLen := -1
	tie := false
	for _, c := range p.gatherCandidates() {
		plan, ok := p.matchSignature(c.fn.Signature.Parts, start)
		if !ok {
			continue
		}
		length := plan.end - start
		switch {
		case length > bestLen:
			best, bestPlan, bestLen, tie = c, plan, length, false
		case length == bestLen && best.lib != nil && best.lib.Name != c.lib.Name:
			tie = true
		}
	}
	if bestPlan == nil {
		return candidate{}, nil, false, nil
	}
	if tie {
		return candidate{}, nil, false, p.failHere("ambiguous function call")
	}
	return best, bestPlan, true, nil
}

// commitCall re-walks parts from start using the already-decided plan,
// this time actually parsing and emitting each parameter slot's
// expression, and finishes with a CallFunc. An async-spawn signature is no
// exception: its Function-typed slot pushes the target's id as a literal and
// the spawn itself happens inside the called native.
func (p *Parser) commitCall(c candidate, plan *callPlan) error {
	parts := c.fn.Signature.Parts
	for i, part := range parts {
		switch {
		case part.Name != nil:
			if plan.consumed[i] {
				p.advance()
			}
		case part.Param != nil:
			end := plan.slotEnd[i]
			if !part.Param.Any && part.Param.Type == value.Function {
				// A Function-typed slot (the "async call {function}" sugar
				// registered by vm.BootstrapCore) names its target rather
				// than evaluating an expression: the value it needs is the
				// callee's signature id, not a call to it.
				id, err := p.parseFunctionRef(end)
				if err != nil {
					return err
				}
				p.emitValue(value.FuncID(id))
				continue
			}
			p.pushBound(end)
			err := p.parseOr()
			p.popBound()
			if err != nil {
				return err
			}
			if !part.Param.Any {
				p.emit(bytecode.OpCast)
				p.buf.WriteByte(byte(part.Param.Type))
			}
		}
	}
	p.emitID(bytecode.OpCallFunc, c.fn.Signature.ID())
	return nil
}

// parseFunctionRef consumes a bare function name at the cursor (the token
// span matchSignature already decided must be exactly one token) and
// resolves it to the signature id of a registered zero-argument function of
// that name, the way `async call {function}` (vm.BootstrapCore) names its
// target instead of invoking it.
func (p *Parser) parseFunctionRef(end int) (uint64, error) {
	if end != p.pos+1 {
		return 0, p.failHere("expected a bare function name")
	}
	name := p.cur().Text
	for _, c := range p.gatherCandidates() {
		parts := c.fn.Signature.Parts
		if len(parts) != 1 || parts[0].Name == nil {
			continue
		}
		if matchesAlternative(lexer.Token{Text: name}, parts[0].Name.Alternatives) {
			p.advance()
			return c.fn.Signature.ID(), nil
		}
	}
	return 0, p.failHere("unresolved function reference %q", name)
}

// pushBound/popBound clamp the token cursor so a parameter-slot
// sub-expression can't read past its matched span.
func (p *Parser) pushBound(end int) {
	old := p.toks
	if end < len(old) {
		p.toks = old[:end]
	}
	p.savedTail = append(p.savedTail, old)
}

func (p *Parser) popBound() {
	n := len(p.savedTail) - 1
	p.toks = p.savedTail[n]
	p.savedTail = p.savedTail[:n]
}
