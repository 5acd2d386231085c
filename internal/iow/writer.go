// Package iow holds small io.Writer helpers shared by the host-facing
// pieces of the engine (currently just cmd/jinx's dump output).
package iow

import (
	"io"

	"github.com/pkg/errors"
)

// ErrWriter wraps an io.Writer and latches the first write error, so a
// caller writing many small fragments (one per disassembled instruction)
// can check for failure once at the end instead of after every Write.
type ErrWriter struct {
	w   io.Writer
	Err error
}

func (w *ErrWriter) Write(p []byte) (n int, err error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err = w.w.Write(p)
	if err != nil {
		w.Err = errors.Wrap(err, "write failed")
	}
	return n, w.Err
}

// NewErrWriter returns a new ErrWriter wrapping w.
func NewErrWriter(w io.Writer) *ErrWriter {
	return &ErrWriter{w: w}
}
