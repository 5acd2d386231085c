package vm

import (
	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/internal/jerr"
	"github.com/jinx-lang/jinx/sig"
	"github.com/jinx-lang/jinx/value"
)

// dispatch executes one opcode (everything but Exit/Wait, handled directly
// in step) against buf, which has already consumed the opcode byte and is
// positioned at the start of its immediates.
func (s *Script) dispatch(op bytecode.Op, buf *bytecode.Buffer) (stepResult, error) {
	switch op {

	case bytecode.OpPushVal:
		v, err := bytecode.DecodeValueLiteral(buf)
		if err != nil {
			return stepNone, errors.Wrap(err, "vm: decode PushVal literal")
		}
		s.push(v)

	case bytecode.OpPushVar:
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		v, err := s.readVar(id)
		if err != nil {
			return stepNone, err
		}
		s.push(v)

	case bytecode.OpPushProp:
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		v, ok := s.findProperty(id)
		if !ok {
			return stepNone, jerr.New(jerr.Resolution, s.scriptName(), "unknown property id %s", sig.FormatID(id))
		}
		s.push(v)

	case bytecode.OpPushTop:
		v, err := s.peek()
		if err != nil {
			return stepNone, err
		}
		s.push(v)

	case bytecode.OpPushColl:
		n, err := buf.ReadU32()
		if err != nil {
			return stepNone, err
		}
		vals, err := s.popN(int(n) * 2)
		if err != nil {
			return stepNone, err
		}
		coll := value.NewCollection()
		for i := 0; i < int(n); i++ {
			coll.Set(vals[2*i], vals[2*i+1])
		}
		s.push(value.CollectionValue(coll))

	case bytecode.OpPushList:
		n, err := buf.ReadU32()
		if err != nil {
			return stepNone, err
		}
		vals, err := s.popN(int(n))
		if err != nil {
			return stepNone, err
		}
		coll := value.NewCollection()
		coll.AppendList(vals)
		s.push(value.CollectionValue(coll))

	case bytecode.OpPushItr:
		// Peek (not pop) the collection already on top: PushItr leaves the
		// collection in place underneath the new iterator so both stay
		// reachable (spec.md §4.2 "PushItr: peek collection on top; push
		// iterator"). Pos starts at -1 ("before the first element") so
		// LoopOver's unconditional advance-then-test needs no special case
		// for the very first call.
		top, err := s.peek()
		if err != nil {
			return stepNone, err
		}
		coll := top.AsCollection()
		if coll == nil {
			return stepNone, jerr.New(jerr.TypeMismatch, s.scriptName(), "cannot iterate %s", top.Type())
		}
		s.push(value.IteratorValue(&value.Iterator{Coll: coll, Pos: -1}))

	case bytecode.OpPushKeyVal:
		key, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		base, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		v, err := indexInto(base, key, s.scriptName())
		if err != nil {
			return stepNone, err
		}
		s.push(v)

	case bytecode.OpPushKeyRange:
		to, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		from, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		base, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		v, err := indexRange(base, from, to, s.scriptName())
		if err != nil {
			return stepNone, err
		}
		s.push(v)

	case bytecode.OpPop:
		if _, err := s.pop(); err != nil {
			return stepNone, err
		}

	case bytecode.OpPopCount:
		n, err := buf.ReadU32()
		if err != nil {
			return stepNone, err
		}
		if _, err := s.popN(int(n)); err != nil {
			return stepNone, err
		}

	case bytecode.OpSetVar:
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		v, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		s.declareOrAssignVar(id, v)

	case bytecode.OpSetProp:
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		v, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		if err := s.setProperty(id, v); err != nil {
			return stepNone, err
		}

	case bytecode.OpSetVarKeyVal:
		subs, err := buf.ReadU32()
		if err != nil {
			return stepNone, err
		}
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		v, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		keys, err := s.popN(int(subs))
		if err != nil {
			return stepNone, err
		}
		base, err := s.readVar(id)
		if err != nil {
			return stepNone, err
		}
		if err := setNested(base, keys, v, s.scriptName()); err != nil {
			return stepNone, err
		}

	case bytecode.OpSetPropKeyVal:
		subs, err := buf.ReadU32()
		if err != nil {
			return stepNone, err
		}
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		v, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		keys, err := s.popN(int(subs))
		if err != nil {
			return stepNone, err
		}
		base, ok := s.findProperty(id)
		if !ok {
			return stepNone, jerr.New(jerr.Resolution, s.scriptName(), "unknown property id %s", sig.FormatID(id))
		}
		if err := setNested(base, keys, v, s.scriptName()); err != nil {
			return stepNone, err
		}

	case bytecode.OpSetIndex:
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		idx, err := buf.ReadI64()
		if err != nil {
			return stepNone, err
		}
		typByte, err := buf.ReadByte()
		if err != nil {
			return stepNone, err
		}
		base := 0
		if len(s.frames) > 0 {
			base = s.frames[len(s.frames)-1].stackBase
		} else if !s.coroutineRoot {
			return stepNone, jerr.New(jerr.Stack, s.scriptName(), "SetIndex outside a call frame")
		}
		argIdx := base + int(idx)
		if argIdx < 0 || argIdx >= len(s.stack) {
			return stepNone, jerr.New(jerr.Bounds, s.scriptName(), "parameter index %d out of range", idx)
		}
		v := s.stack[argIdx]
		if typByte != 0 {
			cv, err := value.Cast(v, value.Type(typByte), s.scriptName())
			if err != nil {
				return stepNone, err
			}
			v = cv
		}
		s.declareOrAssignVar(id, v)

	case bytecode.OpEraseVarKeyVal:
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		key, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		base, err := s.readVar(id)
		if err != nil {
			return stepNone, err
		}
		coll := base.AsCollection()
		if coll == nil {
			return stepNone, jerr.New(jerr.TypeMismatch, s.scriptName(), "cannot erase from %s", base.Type())
		}
		coll.Erase(key)

	case bytecode.OpErasePropKeyVal:
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		key, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		base, ok := s.findProperty(id)
		if !ok {
			return stepNone, jerr.New(jerr.Resolution, s.scriptName(), "unknown property id %s", sig.FormatID(id))
		}
		coll := base.AsCollection()
		if coll == nil {
			return stepNone, jerr.New(jerr.TypeMismatch, s.scriptName(), "cannot erase from %s", base.Type())
		}
		coll.Erase(key)

	case bytecode.OpEraseItr:
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		v, err := s.readVar(id)
		if err != nil {
			return stepNone, err
		}
		it := v.AsIterator()
		if it == nil || it.Done() {
			return stepNone, jerr.New(jerr.Bounds, s.scriptName(), "erase past end of iterator")
		}
		key := it.Key()
		it.Coll.Erase(key)
		it.Pos-- // compensate for the shift left by Erase

	case bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide, bytecode.OpMod:
		b, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		a, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		var r value.Value
		switch op {
		case bytecode.OpAdd:
			r, err = value.Add(a, b, s.scriptName())
		case bytecode.OpSubtract:
			r, err = value.Subtract(a, b, s.scriptName())
		case bytecode.OpMultiply:
			r, err = value.Multiply(a, b, s.scriptName())
		case bytecode.OpDivide:
			r, err = value.Divide(a, b, s.scriptName())
		case bytecode.OpMod:
			r, err = value.Mod(a, b, s.scriptName())
		}
		if err != nil {
			return stepNone, err
		}
		s.push(r)

	case bytecode.OpNegate:
		a, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		r, err := value.Negate(a, s.scriptName())
		if err != nil {
			return stepNone, err
		}
		s.push(r)

	case bytecode.OpIncrement, bytecode.OpDecrement:
		a, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		step, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		var r value.Value
		if op == bytecode.OpIncrement {
			r, err = value.Add(a, step, s.scriptName())
		} else {
			r, err = value.Subtract(a, step, s.scriptName())
		}
		if err != nil {
			return stepNone, err
		}
		s.push(r)

	case bytecode.OpEquals, bytecode.OpNotEquals:
		b, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		a, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		eq := value.Equals(a, b)
		if op == bytecode.OpNotEquals {
			eq = !eq
		}
		s.push(value.Bool(eq))

	case bytecode.OpLess, bytecode.OpLessEq, bytecode.OpGreater, bytecode.OpGreaterEq:
		b, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		a, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		var r bool
		switch op {
		case bytecode.OpLess:
			r, err = value.Less(a, b, s.scriptName())
		case bytecode.OpLessEq:
			r, err = value.LessEq(a, b, s.scriptName())
		case bytecode.OpGreater:
			r, err = value.Greater(a, b, s.scriptName())
		case bytecode.OpGreaterEq:
			r, err = value.GreaterEq(a, b, s.scriptName())
		}
		if err != nil {
			return stepNone, err
		}
		s.push(value.Bool(r))

	case bytecode.OpAnd, bytecode.OpOr:
		b, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		a, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		var r bool
		if op == bytecode.OpAnd {
			r = a.AsBool() && b.AsBool()
		} else {
			r = a.AsBool() || b.AsBool()
		}
		s.push(value.Bool(r))

	case bytecode.OpNot:
		a, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		s.push(value.Bool(!a.AsBool()))

	case bytecode.OpJump:
		addr, err := buf.ReadU32()
		if err != nil {
			return stepNone, err
		}
		buf.Seek(int(addr))

	case bytecode.OpJumpFalse, bytecode.OpJumpTrue:
		addr, err := buf.ReadU32()
		if err != nil {
			return stepNone, err
		}
		v, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		if v.AsBool() == (op == bytecode.OpJumpTrue) {
			buf.Seek(int(addr))
		}

	case bytecode.OpJumpFalseCheck, bytecode.OpJumpTrueCheck:
		// Short-circuit and/or: peeks (doesn't pop) so the left operand can
		// become the whole expression's value when it decides the result.
		addr, err := buf.ReadU32()
		if err != nil {
			return stepNone, err
		}
		v, err := s.peek()
		if err != nil {
			return stepNone, err
		}
		if v.AsBool() == (op == bytecode.OpJumpTrueCheck) {
			buf.Seek(int(addr))
		}

	case bytecode.OpCast:
		t, err := buf.ReadByte()
		if err != nil {
			return stepNone, err
		}
		a, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		r, err := value.Cast(a, value.Type(t), s.scriptName())
		if err != nil {
			return stepNone, err
		}
		s.push(r)

	case bytecode.OpType:
		a, err := s.pop()
		if err != nil {
			return stepNone, err
		}
		s.push(value.TypeValue(a.Type()))

	case bytecode.OpCallFunc:
		id, err := buf.ReadU64()
		if err != nil {
			return stepNone, err
		}
		return stepNone, s.callFunc(id, buf)

	case bytecode.OpReturn:
		return stepNone, s.doReturn(buf)

	case bytecode.OpFunction:
		if _, err := buf.ReadString(); err != nil {
			return stepNone, err
		}
		if _, err := buf.ReadU64(); err != nil {
			return stepNone, err
		}

	case bytecode.OpLibrary:
		if _, err := buf.ReadString(); err != nil {
			return stepNone, err
		}

	case bytecode.OpProperty:
		if _, err := buf.ReadString(); err != nil {
			return stepNone, err
		}
		if _, err := buf.ReadU64(); err != nil {
			return stepNone, err
		}

	case bytecode.OpLoopCount:
		return s.loopCount(buf)

	case bytecode.OpLoopOver:
		return s.loopOver(buf)

	case bytecode.OpScopeBegin:
		s.scopes = append(s.scopes, len(s.stack))

	case bytecode.OpScopeEnd:
		n := len(s.scopes) - 1
		if n < 0 {
			return stepNone, jerr.New(jerr.Stack, s.scriptName(), "ScopeEnd with no matching ScopeBegin")
		}
		mark := s.scopes[n]
		s.scopes = s.scopes[:n]
		s.purgeVarsAbove(mark)
		if mark < len(s.stack) {
			s.stack = s.stack[:mark]
		}

	default:
		return stepNone, jerr.New(jerr.Stack, s.scriptName(), "unhandled opcode %s", op)
	}

	return stepNone, nil
}

// popN pops n values and returns them in their original push order.
func (s *Script) popN(n int) ([]value.Value, error) {
	if n == 0 {
		return nil, nil
	}
	if len(s.stack) < n {
		return nil, errors.New("vm: stack underflow")
	}
	out := append([]value.Value(nil), s.stack[len(s.stack)-n:]...)
	s.stack = s.stack[:len(s.stack)-n]
	return out, nil
}

// purgeVarsAbove drops every tracked variable whose slot no longer exists
// once the stack is truncated to mark, so a later declaration that happens
// to reuse the same id (the common case: the same loop or function body
// executing again) cannot be mistaken for the stale one's live slot.
func (s *Script) purgeVarsAbove(mark int) {
	for id, slot := range s.vars {
		if slot.stackIndex >= mark {
			delete(s.vars, id)
		}
	}
}

// findProperty searches the current library then imports, the same order
// the parser's lookupProperty uses.
func (s *Script) findProperty(id uint64) (value.Value, bool) {
	search := append([]string{s.library}, s.imports...)
	for _, name := range search {
		lib, ok := s.rt.FindLibrary(name)
		if !ok {
			continue
		}
		if v, ok := lib.GetProperty(id); ok {
			return v, true
		}
	}
	return value.Value{}, false
}

func (s *Script) setProperty(id uint64, v value.Value) error {
	search := append([]string{s.library}, s.imports...)
	for _, name := range search {
		lib, ok := s.rt.FindLibrary(name)
		if !ok {
			continue
		}
		if _, ok := lib.Property(id); ok {
			return lib.SetProperty(id, v)
		}
	}
	return jerr.New(jerr.Resolution, s.scriptName(), "unknown property id %s", sig.FormatID(id))
}

// indexInto implements PushKeyVal: collection lookup returns Null for a
// missing key (collections are sparse maps), string indexing is bounds
// checked (spec.md §3 "Character counting is by Unicode code points").
func indexInto(base, key value.Value, script string) (value.Value, error) {
	switch base.Type() {
	case value.Collection:
		v, ok := base.AsCollection().Get(key)
		if !ok {
			return value.NullValue, nil
		}
		return v, nil
	case value.String:
		k, err := value.Cast(key, value.Integer, script)
		if err != nil {
			return value.Value{}, err
		}
		return value.Index(base.AsString(), k.AsInt(), script)
	default:
		return value.Value{}, jerr.New(jerr.TypeMismatch, script, "cannot index %s", base.Type())
	}
}

// indexRange implements PushKeyRange: the inclusive integer-pair range form
// of string indexing (spec.md §3 "Indexing operations accept a 1-based
// integer index or an inclusive integer-pair range"). Only strings support
// the range form; a Collection's keys aren't ordered-integer-addressable in
// this way.
func indexRange(base, from, to value.Value, script string) (value.Value, error) {
	if base.Type() != value.String {
		return value.Value{}, jerr.New(jerr.TypeMismatch, script, "cannot range-index %s", base.Type())
	}
	f, err := value.Cast(from, value.Integer, script)
	if err != nil {
		return value.Value{}, err
	}
	t, err := value.Cast(to, value.Integer, script)
	if err != nil {
		return value.Value{}, err
	}
	return value.Slice(base.AsString(), f.AsInt(), t.AsInt(), script)
}

// setNested walks keys (outermost first) into base's nested collections,
// creating intermediate collections as needed, and sets the innermost key
// to v.
func setNested(base value.Value, keys []value.Value, v value.Value, script string) error {
	coll := base.AsCollection()
	if coll == nil {
		return jerr.New(jerr.TypeMismatch, script, "cannot index %s", base.Type())
	}
	for i := 0; i < len(keys)-1; i++ {
		next, ok := coll.Get(keys[i])
		if !ok || next.AsCollection() == nil {
			next = value.CollectionValue(value.NewCollection())
			coll.Set(keys[i], next)
		}
		coll = next.AsCollection()
	}
	coll.Set(keys[len(keys)-1], v)
	return nil
}

// paramCount returns the number of parameter slots in a signature, i.e. how
// many argument values CallFunc must pop.
func paramCount(s *sig.Signature) int {
	n := 0
	for _, p := range s.Parts {
		if p.Param != nil {
			n++
		}
	}
	return n
}

// callFunc resolves id against the runtime's visibility rules and either
// invokes a native callback directly or pushes a frame and jumps into
// bytecode, per spec.md §4.3 "Function call".
func (s *Script) callFunc(id uint64, buf *bytecode.Buffer) error {
	fn, ok := s.resolveFunction(id)
	if !ok {
		return jerr.New(jerr.Resolution, s.scriptName(), "unknown function id %s", sig.FormatID(id))
	}
	nargs := paramCount(fn.Signature)

	if fn.IsNative {
		args, err := s.popN(nargs)
		if err != nil {
			return err
		}
		result, err := fn.Native(s, args)
		if err != nil {
			return jerr.Wrap(err, jerr.Stack, s.scriptName(), 0, 0)
		}
		s.push(result)
		return nil
	}

	// Bytecode functions execute within their owning Program's instruction
	// stream; a script only ever resolves same-script bytecode functions
	// (cross-script bytecode calls are out of scope, see DESIGN.md).
	if fn.BytecodeOwner != s.prog.ScriptName {
		return jerr.New(jerr.Resolution, s.scriptName(), "function %s is not owned by this script", sig.FormatID(id))
	}
	if len(s.stack) < nargs {
		return errors.New("vm: stack underflow calling function")
	}
	s.frames = append(s.frames, frame{
		returnPC:  buf.Pos(),
		stackBase: len(s.stack) - nargs,
	})
	buf.Seek(fn.Address)
	return nil
}

// doReturn unwinds the current frame: pops the single return value, drops
// the callee's arguments and locals, and resumes the caller (spec.md §4.3
// "Return"). A Return with no frame left is ordinarily an invariant
// violation (top-level code exits via Exit, never Return), except for a
// coroutine's root Script, whose whole execution IS one function body: for
// that case Return at depth zero is the "Finish" disposition of spec.md
// §4.3, capturing the value and finishing the script (vm/coroutine.go).
func (s *Script) doReturn(buf *bytecode.Buffer) error {
	retVal, err := s.pop()
	if err != nil {
		return err
	}
	if len(s.frames) == 0 {
		if s.coroutineRoot {
			s.coroutineResult = retVal
			s.finished = true
			return nil
		}
		return jerr.New(jerr.Stack, s.scriptName(), "return with no active call frame")
	}
	fr := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.purgeVarsAbove(fr.stackBase)
	s.stack = s.stack[:fr.stackBase]
	s.push(retVal)
	buf.Seek(fr.returnPC)
	return nil
}

// loopCount implements the counter loop test: advance the counter (already
// on the stack at stack[len-3]) by the step at stack[len-1] on every call
// after the first, then compare against the limit at stack[len-2]. There is
// no immediate to carry "have I started", so it is tracked per call-site
// (this instruction's own bytecode address) on the Script.
func (s *Script) loopCount(buf *bytecode.Buffer) (stepResult, error) {
	site := buf.Pos() - 1 // OpLoopCount has no immediates of its own
	n := len(s.stack)
	if n < 3 {
		return stepNone, errors.New("vm: stack underflow in LoopCount")
	}
	current, limit, step := s.stack[n-3], s.stack[n-2], s.stack[n-1]

	if !s.loopStarted[site] && value.Equals(step, value.Int(0)) {
		return stepNone, jerr.New(jerr.Arithmetic, s.scriptName(), "loop step cannot be zero")
	}

	if s.loopStarted[site] {
		next, err := value.Add(current, step, s.scriptName())
		if err != nil {
			return stepNone, err
		}
		s.stack[n-3] = next
		current = next
	} else {
		s.loopStarted[site] = true
	}

	ascending, err := value.GreaterEq(step, value.Int(0), s.scriptName())
	if err != nil {
		return stepNone, err
	}
	var cont bool
	if ascending {
		cont, err = value.LessEq(current, limit, s.scriptName())
	} else {
		cont, err = value.GreaterEq(current, limit, s.scriptName())
	}
	if err != nil {
		return stepNone, err
	}
	if !cont {
		delete(s.loopStarted, site)
	}
	s.push(value.Bool(cont))
	return stepNone, nil
}

// loopOver implements the iterator loop test: advance the iterator already
// on top of the stack, then push whether it landed on a live element.
// Iterator.Pos starts at -1 (see PushItr), so the unconditional advance
// handles an empty collection correctly on the very first call.
func (s *Script) loopOver(buf *bytecode.Buffer) (stepResult, error) {
	top, err := s.peek()
	if err != nil {
		return stepNone, err
	}
	it := top.AsIterator()
	if it == nil {
		return stepNone, jerr.New(jerr.TypeMismatch, s.scriptName(), "LoopOver on non-iterator")
	}
	it.Pos++
	s.push(value.Bool(!it.Done()))
	return stepNone, nil
}
