package bytecode_test

import (
	"strings"
	"testing"

	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/value"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := &bytecode.Program{
		ScriptName: "level1.jinx",
		Code:       []byte{byte(bytecode.OpExit)},
	}
	raw := bytecode.Encode(p)
	got, err := bytecode.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ScriptName != p.ScriptName {
		t.Errorf("ScriptName = %q, want %q", got.ScriptName, p.ScriptName)
	}
	if string(got.Code) != string(p.Code) {
		t.Errorf("Code = %v, want %v", got.Code, p.Code)
	}
	if got.HasDebug {
		t.Errorf("HasDebug should be false when no JDBG section was written")
	}
}

func TestEncodeDecodeWithDebugInfo(t *testing.T) {
	p := &bytecode.Program{
		ScriptName: "dbg.jinx",
		Code:       []byte{byte(bytecode.OpExit)},
		HasDebug:   true,
		Lines:      []bytecode.LineEntry{{Position: 0, Line: 1}, {Position: 1, Line: 2}},
	}
	raw := bytecode.Encode(p)
	got, err := bytecode.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.HasDebug {
		t.Fatalf("HasDebug should be true")
	}
	if len(got.Lines) != 2 || got.Lines[1].Line != 2 {
		t.Errorf("Lines = %v, want 2 entries with second Line=2", got.Lines)
	}
	if l := got.LineForPosition(1); l != 2 {
		t.Errorf("LineForPosition(1) = %d, want 2", l)
	}
	if l := got.LineForPosition(0); l != 1 {
		t.Errorf("LineForPosition(0) = %d, want 1", l)
	}
}

func TestLineForPositionNoDebug(t *testing.T) {
	p := &bytecode.Program{ScriptName: "x", Code: nil}
	if l := p.LineForPosition(5); l != 0 {
		t.Errorf("LineForPosition with no debug table = %d, want 0", l)
	}
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	if _, err := bytecode.Decode([]byte{0, 0, 0, 0}); err == nil {
		t.Errorf("expected error for bad signature")
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	p := &bytecode.Program{ScriptName: "x", Code: nil}
	raw := bytecode.Encode(p)
	// Patch the version field (bytes 4..8) to an unsupported value.
	raw[4] = 99
	if _, err := bytecode.Decode(raw); err == nil {
		t.Errorf("expected error for unsupported version")
	}
}

func TestStripDebugInfo(t *testing.T) {
	withDebug := &bytecode.Program{
		ScriptName: "x",
		Code:       []byte{byte(bytecode.OpExit)},
		HasDebug:   true,
		Lines:      []bytecode.LineEntry{{Position: 0, Line: 1}},
	}
	raw := bytecode.Encode(withDebug)
	stripped, err := bytecode.StripDebugInfo(raw)
	if err != nil {
		t.Fatalf("StripDebugInfo: %v", err)
	}
	got, err := bytecode.Decode(stripped)
	if err != nil {
		t.Fatalf("Decode(stripped): %v", err)
	}
	if got.HasDebug {
		t.Errorf("stripped bytecode should have no debug section")
	}
}

func TestStripDebugInfoNoopWhenAbsent(t *testing.T) {
	p := &bytecode.Program{ScriptName: "x", Code: []byte{byte(bytecode.OpExit)}}
	raw := bytecode.Encode(p)
	stripped, err := bytecode.StripDebugInfo(raw)
	if err != nil {
		t.Fatalf("StripDebugInfo: %v", err)
	}
	if len(stripped) != len(raw) {
		t.Errorf("StripDebugInfo on a debug-less program changed length: %d != %d", len(stripped), len(raw))
	}
}

func TestEncodeDecodeValueLiteral(t *testing.T) {
	data := []value.Value{
		value.NullValue,
		value.Int(-42),
		value.Num(2.5),
		value.Bool(true),
		value.Bool(false),
		value.Str("hi"),
		value.FuncID(7),
		value.GuidValue(value.Guid{Data1: 1, Data2: 2, Data3: 3, Data4: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}),
		value.TypeValue(value.String),
	}
	for _, v := range data {
		b := bytecode.NewBuffer()
		bytecode.EncodeValueLiteral(b, v)
		r := bytecode.NewBufferFromBytes(b.Bytes())
		got, err := bytecode.DecodeValueLiteral(r)
		if err != nil {
			t.Fatalf("DecodeValueLiteral(%v): %v", v, err)
		}
		if got.Type() != v.Type() {
			t.Errorf("round-trip type mismatch: got %s, want %s", got.Type(), v.Type())
		}
		if got.String() != v.String() {
			t.Errorf("round-trip value mismatch: got %s, want %s", got, v)
		}
	}
}

func TestDisassemblePushVal(t *testing.T) {
	b := bytecode.NewBuffer()
	b.WriteByte(byte(bytecode.OpPushVal))
	bytecode.EncodeValueLiteral(b, value.Int(42))
	b.WriteByte(byte(bytecode.OpExit))

	var sb strings.Builder
	pc := 0
	code := b.Bytes()
	for pc < len(code) {
		pc = bytecode.Disassemble(code, pc, &sb)
	}
	out := sb.String()
	if !strings.Contains(out, "PushVal") || !strings.Contains(out, "42") {
		t.Errorf("disassembly = %q, want it to mention PushVal and 42", out)
	}
	if !strings.Contains(out, "Exit") {
		t.Errorf("disassembly = %q, want it to mention Exit", out)
	}
}

func TestOpString(t *testing.T) {
	if s := bytecode.OpAdd.String(); s != "Add" {
		t.Errorf("OpAdd.String() = %q, want %q", s, "Add")
	}
	if s := bytecode.Op(255).String(); !strings.Contains(s, "255") {
		t.Errorf("out-of-range Op.String() = %q, want it to mention 255", s)
	}
}
