package bytecode

import (
	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx/value"
)

// Version is the only bytecode format version this package emits or accepts.
const Version = 1

// The magic numbers are defined from their four ASCII bytes directly so the
// encoding is obvious at the call site, matching the teacher's preference
// for explicit byte-oriented constants (vm/image.go's header handling).
var (
	magicJinx = [4]byte{'J', 'I', 'N', 'X'}
	magicDbg  = [4]byte{'J', 'D', 'B', 'G'}
)

func u32From(b [4]byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

var (
	sigJinx = u32From(magicJinx)
	sigDbg  = u32From(magicDbg)
)

// LineEntry maps a bytecode position to a 1-based source line number.
type LineEntry struct {
	Position uint32
	Line     uint32
}

// Header carries the fixed-format fields of spec.md §3 item 1.
type Header struct {
	Version  uint32
	DataSize uint32
}

// Program is a fully decoded bytecode artifact: header, script name,
// instruction bytes and, optionally, a debug line table.
type Program struct {
	ScriptName string
	Code       []byte // raw instruction stream bytes, header/name/debug excluded
	Lines      []LineEntry
	HasDebug   bool
}

// Encode serializes a Program to the exact layout of spec.md §3: header,
// length-prefixed script name, instruction stream, optional JDBG section.
func Encode(p *Program) []byte {
	body := NewBuffer()
	body.WriteString(p.ScriptName)
	body.WriteBytes(p.Code)
	dataSize := body.Len()

	out := NewBuffer()
	out.WriteU32(sigJinx)
	out.WriteU32(Version)
	out.WriteU32(uint32(dataSize))
	out.WriteBytes(body.Bytes())

	if p.HasDebug {
		dbg := NewBuffer()
		for _, e := range p.Lines {
			dbg.WriteU32(e.Position)
			dbg.WriteU32(e.Line)
		}
		out.WriteU32(sigDbg)
		out.WriteU32(uint32(len(p.Lines)))
		out.WriteU32(uint32(dbg.Len()))
		out.WriteBytes(dbg.Bytes())
	}
	return out.Bytes()
}

// Decode parses a raw bytecode buffer back into a Program, validating the
// JINX signature/version (spec.md §7 *Format* errors).
func Decode(raw []byte) (*Program, error) {
	buf := NewBufferFromBytes(raw)
	sig, err := buf.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read signature")
	}
	if sig != sigJinx {
		return nil, errors.Errorf("bytecode: bad signature %08x, expected JINX", sig)
	}
	ver, err := buf.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read version")
	}
	if ver != Version {
		return nil, errors.Errorf("bytecode: unsupported version %d", ver)
	}
	dataSize, err := buf.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read data size")
	}
	dataStart := buf.Pos()
	name, err := buf.ReadString()
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read script name")
	}
	codeLen := int(dataSize) - (buf.Pos() - dataStart)
	if codeLen < 0 {
		return nil, errors.New("bytecode: dataSize smaller than script name")
	}
	code, err := buf.ReadBytes(codeLen)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read instruction stream")
	}
	p := &Program{ScriptName: name, Code: append([]byte(nil), code...)}

	// Optional debug section: absence is not an error.
	dsig, err := buf.ReadU32()
	if err != nil {
		return p, nil
	}
	if dsig != sigDbg {
		return nil, errors.Errorf("bytecode: bad debug signature %08x", dsig)
	}
	count, err := buf.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read debug entry count")
	}
	if _, err := buf.ReadU32(); err != nil { // debug section dataSize, unused on read
		return nil, errors.Wrap(err, "bytecode: read debug data size")
	}
	p.Lines = make([]LineEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		pos, err := buf.ReadU32()
		if err != nil {
			return nil, errors.Wrap(err, "bytecode: read debug entry")
		}
		line, err := buf.ReadU32()
		if err != nil {
			return nil, errors.Wrap(err, "bytecode: read debug entry")
		}
		p.Lines = append(p.Lines, LineEntry{Position: pos, Line: line})
	}
	p.HasDebug = true
	return p, nil
}

// StripDebugInfo truncates raw to header+dataSize, dropping any JDBG
// section. Per spec.md §9's resolved Open Question: if raw already has no
// debug section, the input is returned unchanged rather than copied.
func StripDebugInfo(raw []byte) ([]byte, error) {
	buf := NewBufferFromBytes(raw)
	if _, err := buf.ReadU32(); err != nil { // signature
		return nil, errors.Wrap(err, "bytecode: read signature")
	}
	if _, err := buf.ReadU32(); err != nil { // version
		return nil, errors.Wrap(err, "bytecode: read version")
	}
	dataSize, err := buf.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: read data size")
	}
	headerLen := buf.Pos()
	total := headerLen + int(dataSize)
	if total >= len(raw) {
		return raw, nil
	}
	out := make([]byte, total)
	copy(out, raw[:total])
	return out, nil
}

// LineForPosition resolves a bytecode position to a source line using the
// decoded debug table, or 0 if none is loaded / position not found.
func (p *Program) LineForPosition(pos uint32) uint32 {
	if !p.HasDebug {
		return 0
	}
	// Entries are emitted once per new source line in ascending pc order
	// (parser/parser.go's notePosition), so the last entry with Position <= pos
	// is current.
	var line uint32
	for _, e := range p.Lines {
		if e.Position > pos {
			break
		}
		line = e.Line
	}
	return line
}

// EncodeValueLiteral writes a Value in the PushVal immediate encoding used
// by the instruction stream (spec.md §4.2 opcode table: "PushVal Variant").
// Only the variants listed in spec.md §8 property 3 are required to
// round-trip through bytecode (literal-representable values); Collections,
// iterators, coroutines, user objects and buffers never appear as compiled
// literals.
func EncodeValueLiteral(b *Buffer, v value.Value) {
	b.WriteByte(byte(v.Type()))
	switch v.Type() {
	case value.Null:
	case value.Integer:
		b.WriteI64(v.AsInt())
	case value.Number:
		b.WriteF64(v.AsNumber())
	case value.Boolean:
		if v.AsBool() {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
	case value.String:
		b.WriteString(v.AsString())
	case value.Function:
		b.WriteU64(v.AsFuncID())
	case value.Guid:
		g := v.AsGuid()
		b.WriteU32(g.Data1)
		b.WriteU32(uint32(g.Data2) | uint32(g.Data3)<<16)
		b.WriteBytes(g.Data4[:])
	case value.ValueType:
		b.WriteByte(byte(v.AsValueType()))
	}
}

// DecodeValueLiteral is the inverse of EncodeValueLiteral.
func DecodeValueLiteral(b *Buffer) (value.Value, error) {
	tb, err := b.ReadByte()
	if err != nil {
		return value.Value{}, err
	}
	typ := value.Type(tb)
	switch typ {
	case value.Null:
		return value.NullValue, nil
	case value.Integer:
		n, err := b.ReadI64()
		return value.Int(n), err
	case value.Number:
		f, err := b.ReadF64()
		return value.Num(f), err
	case value.Boolean:
		v, err := b.ReadByte()
		return value.Bool(v != 0), err
	case value.String:
		s, err := b.ReadString()
		return value.Str(s), err
	case value.Function:
		id, err := b.ReadU64()
		return value.FuncID(id), err
	case value.Guid:
		d1, err := b.ReadU32()
		if err != nil {
			return value.Value{}, err
		}
		d23, err := b.ReadU32()
		if err != nil {
			return value.Value{}, err
		}
		d4, err := b.ReadBytes(8)
		if err != nil {
			return value.Value{}, err
		}
		var g value.Guid
		g.Data1 = d1
		g.Data2 = uint16(d23)
		g.Data3 = uint16(d23 >> 16)
		copy(g.Data4[:], d4)
		return value.GuidValue(g), nil
	case value.ValueType:
		vb, err := b.ReadByte()
		return value.TypeValue(value.Type(vb)), err
	default:
		return value.Value{}, errors.Errorf("bytecode: unknown literal tag %d", tb)
	}
}
