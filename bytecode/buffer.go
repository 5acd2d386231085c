// Package bytecode implements the compact binary bytecode container of
// spec.md §3: a positioned reader/writer over a growable byte buffer, typed
// primitive encode/decode, and the JINX/JDBG header format.
//
// The growable-buffer-with-position shape follows the teacher's
// vm.Image/vm.Load/vm.Save (db47h/ngaro/vm/image.go, mem.go): fixed
// little-endian layout, errors wrapped with github.com/pkg/errors, and a
// small ErrWriter-style guard (internal/ngi/writer.go) against repeating the
// same write error on every subsequent call.
package bytecode

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Buffer is a growable byte container with an independent read and write
// cursor, matching the "positioned read/write over a growable byte buffer"
// contract of spec.md §2 component 2.
type Buffer struct {
	buf    []byte
	wpos   int
	rpos   int
	werr   error
	rerr   error
}

// NewBuffer returns an empty Buffer ready for writing.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferFromBytes wraps existing bytes for reading (and further
// appending).
func NewBufferFromBytes(b []byte) *Buffer {
	return &Buffer{buf: b, wpos: len(b)}
}

// Bytes returns the written portion of the buffer.
func (b *Buffer) Bytes() []byte { return b.buf[:b.wpos] }

// Len returns the number of written bytes.
func (b *Buffer) Len() int { return b.wpos }

// Pos returns the current read position.
func (b *Buffer) Pos() int { return b.rpos }

// Seek repositions the read cursor.
func (b *Buffer) Seek(pos int) { b.rpos = pos }

func (b *Buffer) grow(n int) {
	for b.wpos+n > len(b.buf) {
		b.buf = append(b.buf, make([]byte, 4096)...)
	}
}

func (b *Buffer) write(p []byte) {
	if b.werr != nil {
		return
	}
	b.grow(len(p))
	copy(b.buf[b.wpos:], p)
	b.wpos += len(p)
}

// WriteByte writes a single byte.
func (b *Buffer) WriteByte(v byte) { b.write([]byte{v}) }

// WriteU32 writes a little-endian uint32.
func (b *Buffer) WriteU32(v uint32) {
	var t [4]byte
	binary.LittleEndian.PutUint32(t[:], v)
	b.write(t[:])
}

// WriteI64 writes a little-endian int64.
func (b *Buffer) WriteI64(v int64) {
	var t [8]byte
	binary.LittleEndian.PutUint64(t[:], uint64(v))
	b.write(t[:])
}

// WriteU64 writes a little-endian uint64.
func (b *Buffer) WriteU64(v uint64) {
	var t [8]byte
	binary.LittleEndian.PutUint64(t[:], v)
	b.write(t[:])
}

// WriteF64 writes a little-endian IEEE-754 double.
func (b *Buffer) WriteF64(v float64) {
	b.WriteU64(math.Float64bits(v))
}

// WriteBytes writes a raw byte slice with no length prefix.
func (b *Buffer) WriteBytes(p []byte) { b.write(p) }

// PatchU32 overwrites 4 bytes already written at pos, for backfilling a
// jump address once its forward target becomes known (the same
// write-placeholder-then-patch shape as the teacher's label backfill in
// asm/parser.go, but here patching bytes directly instead of a label table).
func (b *Buffer) PatchU32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[pos:pos+4], v)
}

// WriteString writes a length-prefixed (u32), NUL-terminated UTF-8 string.
// The NUL is included in the written bytes but not counted in the length
// prefix, per spec.md §6.
func (b *Buffer) WriteString(s string) {
	b.WriteU32(uint32(len(s)))
	b.write([]byte(s))
	b.WriteByte(0)
}

// errShort is returned when a read runs past the end of the buffer.
var errShort = errors.New("bytecode: unexpected end of buffer")

func (b *Buffer) read(n int) ([]byte, error) {
	if b.rerr != nil {
		return nil, b.rerr
	}
	if b.rpos+n > b.wpos {
		b.rerr = errShort
		return nil, b.rerr
	}
	p := b.buf[b.rpos : b.rpos+n]
	b.rpos += n
	return p, nil
}

// ReadByte reads a single byte.
func (b *Buffer) ReadByte() (byte, error) {
	p, err := b.read(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadU32 reads a little-endian uint32.
func (b *Buffer) ReadU32() (uint32, error) {
	p, err := b.read(4)
	if err != nil {
		return 0, errors.Wrap(err, "read u32")
	}
	return binary.LittleEndian.Uint32(p), nil
}

// ReadI64 reads a little-endian int64.
func (b *Buffer) ReadI64() (int64, error) {
	p, err := b.read(8)
	if err != nil {
		return 0, errors.Wrap(err, "read i64")
	}
	return int64(binary.LittleEndian.Uint64(p)), nil
}

// ReadU64 reads a little-endian uint64.
func (b *Buffer) ReadU64() (uint64, error) {
	p, err := b.read(8)
	if err != nil {
		return 0, errors.Wrap(err, "read u64")
	}
	return binary.LittleEndian.Uint64(p), nil
}

// ReadF64 reads a little-endian IEEE-754 double.
func (b *Buffer) ReadF64() (float64, error) {
	u, err := b.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// ReadBytes reads n raw bytes.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	p, err := b.read(n)
	if err != nil {
		return nil, errors.Wrap(err, "read bytes")
	}
	return p, nil
}

// ReadString reads a length-prefixed, NUL-terminated UTF-8 string, per
// spec.md §6, and returns its content without the trailing NUL.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadU32()
	if err != nil {
		return "", errors.Wrap(err, "read string length")
	}
	p, err := b.read(int(n) + 1)
	if err != nil {
		return "", errors.Wrap(err, "read string body")
	}
	return string(p[:n]), nil
}
