package bytecode_test

import (
	"testing"

	"github.com/jinx-lang/jinx/bytecode"
)

func TestBufferPrimitivesRoundTrip(t *testing.T) {
	b := bytecode.NewBuffer()
	b.WriteByte(0xAB)
	b.WriteU32(123456)
	b.WriteI64(-9876543210)
	b.WriteU64(18446744073709551615)
	b.WriteF64(3.14159)
	b.WriteString("hello")

	r := bytecode.NewBufferFromBytes(b.Bytes())

	bv, err := r.ReadByte()
	if err != nil || bv != 0xAB {
		t.Fatalf("ReadByte() = (%v, %v), want (0xAB, nil)", bv, err)
	}
	u32, err := r.ReadU32()
	if err != nil || u32 != 123456 {
		t.Fatalf("ReadU32() = (%v, %v), want (123456, nil)", u32, err)
	}
	i64, err := r.ReadI64()
	if err != nil || i64 != -9876543210 {
		t.Fatalf("ReadI64() = (%v, %v), want (-9876543210, nil)", i64, err)
	}
	u64, err := r.ReadU64()
	if err != nil || u64 != 18446744073709551615 {
		t.Fatalf("ReadU64() = (%v, %v), want (max uint64, nil)", u64, err)
	}
	f64, err := r.ReadF64()
	if err != nil || f64 != 3.14159 {
		t.Fatalf("ReadF64() = (%v, %v), want (3.14159, nil)", f64, err)
	}
	s, err := r.ReadString()
	if err != nil || s != "hello" {
		t.Fatalf("ReadString() = (%q, %v), want (\"hello\", nil)", s, err)
	}
}

func TestBufferReadPastEndErrors(t *testing.T) {
	b := bytecode.NewBufferFromBytes([]byte{1, 2})
	if _, err := b.ReadU64(); err == nil {
		t.Errorf("ReadU64 on a 2-byte buffer should error")
	}
}

func TestBufferSeek(t *testing.T) {
	b := bytecode.NewBuffer()
	b.WriteU32(1)
	b.WriteU32(2)
	r := bytecode.NewBufferFromBytes(b.Bytes())
	r.Seek(4)
	v, err := r.ReadU32()
	if err != nil || v != 2 {
		t.Fatalf("after Seek(4), ReadU32() = (%v, %v), want (2, nil)", v, err)
	}
}

func TestBufferPatchU32(t *testing.T) {
	b := bytecode.NewBuffer()
	pos := b.Len()
	b.WriteU32(0) // placeholder
	b.PatchU32(pos, 42)

	r := bytecode.NewBufferFromBytes(b.Bytes())
	v, err := r.ReadU32()
	if err != nil || v != 42 {
		t.Fatalf("patched value = (%v, %v), want (42, nil)", v, err)
	}
}

func TestBufferWriteBytes(t *testing.T) {
	b := bytecode.NewBuffer()
	b.WriteBytes([]byte{1, 2, 3})
	if got := b.Bytes(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("WriteBytes: got %v", got)
	}
}
