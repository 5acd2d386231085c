package bytecode

import (
	"fmt"
	"io"

	"github.com/jinx-lang/jinx/value"
)

// Op is one VM instruction, per the opcode table of spec.md §4.2.
type Op byte

const (
	OpPushVal Op = iota
	OpPushVar
	OpPushProp
	OpPushTop
	OpPushColl
	OpPushList
	OpPushItr
	OpPushKeyVal
	OpPop
	OpPopCount
	OpSetVar
	OpSetProp
	OpSetVarKeyVal
	OpSetPropKeyVal
	OpSetIndex
	OpEraseVarKeyVal
	OpErasePropKeyVal
	OpEraseItr
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpMod
	OpNegate
	OpIncrement
	OpDecrement
	OpEquals
	OpNotEquals
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpAnd
	OpOr
	OpNot
	OpJump
	OpJumpFalse
	OpJumpTrue
	OpJumpFalseCheck
	OpJumpTrueCheck
	OpCast
	OpType
	OpCallFunc
	OpReturn
	OpFunction
	OpLibrary
	OpProperty
	OpLoopCount
	OpLoopOver
	OpScopeBegin
	OpScopeEnd
	OpWait
	OpExit
	OpPushKeyRange
)

var opNames = [...]string{
	"PushVal", "PushVar", "PushProp", "PushTop", "PushColl", "PushList",
	"PushItr", "PushKeyVal", "Pop", "PopCount", "SetVar", "SetProp",
	"SetVarKeyVal", "SetPropKeyVal", "SetIndex", "EraseVarKeyVal",
	"ErasePropKeyVal", "EraseItr", "Add", "Subtract", "Multiply", "Divide",
	"Mod", "Negate", "Increment", "Decrement", "Equals", "NotEquals", "Less",
	"LessEq", "Greater", "GreaterEq", "And", "Or", "Not", "Jump",
	"JumpFalse", "JumpTrue", "JumpFalseCheck", "JumpTrueCheck", "Cast",
	"Type", "CallFunc", "Return", "Function", "Library", "Property",
	"LoopCount", "LoopOver", "ScopeBegin", "ScopeEnd", "Wait", "Exit",
	"PushKeyRange",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// hasU32Addr reports whether op's only immediate is a u32 jump address.
func hasU32Addr(op Op) bool {
	switch op {
	case OpJump, OpJumpFalse, OpJumpTrue, OpJumpFalseCheck, OpJumpTrueCheck:
		return true
	}
	return false
}

// hasID reports whether op's only immediate is a u64 symbol id.
func hasID(op Op) bool {
	switch op {
	case OpPushVar, OpPushProp, OpSetVar, OpSetProp, OpEraseVarKeyVal,
		OpErasePropKeyVal, OpEraseItr, OpCallFunc:
		return true
	}
	return false
}

// Disassemble writes one instruction at position pc to w and returns the
// position of the next instruction, the way the teacher's asm.Disassemble
// walks one opcode plus its immediates at a time (db47h/ngaro/asm/asm.go).
func Disassemble(code []byte, pc int, w io.Writer) int {
	if pc >= len(code) {
		return pc
	}
	buf := NewBufferFromBytes(code)
	buf.Seek(pc)
	opByte, err := buf.ReadByte()
	if err != nil {
		return len(code)
	}
	op := Op(opByte)
	fmt.Fprint(w, op.String())

	switch {
	case op == OpPushVal:
		v, err := DecodeValueLiteral(buf)
		if err == nil {
			fmt.Fprintf(w, " %s", v.String())
		}
	case op == OpPushColl || op == OpPushList || op == OpPopCount:
		n, _ := buf.ReadU32()
		fmt.Fprintf(w, " %d", n)
	case op == OpSetIndex:
		id, _ := buf.ReadU64()
		idx, _ := buf.ReadI64()
		typ, _ := buf.ReadByte()
		fmt.Fprintf(w, " id=%x idx=%d type=%s", id, idx, value.Type(typ))
	case op == OpSetVarKeyVal || op == OpSetPropKeyVal:
		subs, _ := buf.ReadU32()
		id, _ := buf.ReadU64()
		fmt.Fprintf(w, " subs=%d id=%x", subs, id)
	case op == OpCast:
		t, _ := buf.ReadByte()
		fmt.Fprintf(w, " %s", value.Type(t))
	case hasU32Addr(op):
		addr, _ := buf.ReadU32()
		fmt.Fprintf(w, " @%d", addr)
	case hasID(op):
		id, _ := buf.ReadU64()
		fmt.Fprintf(w, " id=%x", id)
	case op == OpFunction:
		name, _ := buf.ReadString()
		id, _ := buf.ReadU64()
		fmt.Fprintf(w, " %s id=%x", name, id)
	case op == OpLibrary:
		name, _ := buf.ReadString()
		fmt.Fprintf(w, " %s", name)
	case op == OpProperty:
		name, _ := buf.ReadString()
		id, _ := buf.ReadU64()
		fmt.Fprintf(w, " %s id=%x", name, id)
	}
	return buf.Pos()
}
