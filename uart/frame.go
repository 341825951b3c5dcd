// Package uart implements the adapter interface over a serial-attached
// device that speaks the framed command/event protocol: a start byte,
// an opcode, a little-endian length and the payload.
package uart

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	frameStart = 0xBC

	offsetOpcode = 1
	offsetLength = 2
	headerLength = 4

	frameTimeout = 500 * time.Millisecond
)

// assembler turns an arbitrary byte stream into whole frames. Partial
// reads accumulate; garbage before the start byte is skipped; a frame
// that stalls longer than frameTimeout is dropped.
type assembler struct {
	b        []byte
	deadline time.Time
	out      chan []byte
}

func newAssembler(out chan []byte) *assembler {
	return &assembler{
		b:   make([]byte, 0, 256),
		out: out,
	}
}

func (a *assembler) assemble(b []byte) {
	switch {
	case len(b) == 0:
		return

	case !a.deadline.IsZero() && time.Now().After(a.deadline):
		// stalled mid-frame, start over
		fallthrough
	case a.b == nil:
		a.reset()

	default:
		// ok
	}

	if len(a.b) == 0 {
		if err := a.waitStart(b); err != nil {
			return
		}
	} else {
		a.b = append(a.b, b...)
	}

	f, err := a.frame()
	if err != nil {
		return
	}
	out := make([]byte, len(f))
	copy(out, f)
	a.out <- out

	// shift anything past the frame back through
	if len(a.b) > len(f) {
		rem := make([]byte, len(a.b)-len(f))
		copy(rem, a.b[len(f):])
		a.reset()
		a.assemble(rem)
	} else {
		a.reset()
	}
}

func (a *assembler) reset() {
	a.b = make([]byte, 0, 256)
	a.deadline = time.Time{}
}

func (a *assembler) waitStart(b []byte) error {
	for i, v := range b {
		if v != frameStart {
			continue
		}
		a.deadline = time.Now().Add(frameTimeout)
		a.b = append(a.b, b[i:]...)
		return nil
	}
	return fmt.Errorf("no start byte")
}

func (a *assembler) frame() ([]byte, error) {
	if len(a.b) < headerLength {
		return nil, fmt.Errorf("not enough bytes")
	}

	tl := headerLength + int(binary.LittleEndian.Uint16(a.b[offsetLength:]))
	if len(a.b) < tl {
		return nil, fmt.Errorf("not enough bytes")
	}
	return a.b[:tl], nil
}

func appendFrame(op byte, payload []byte) []byte {
	f := make([]byte, headerLength, headerLength+len(payload))
	f[0] = frameStart
	f[offsetOpcode] = op
	binary.LittleEndian.PutUint16(f[offsetLength:], uint16(len(payload)))
	return append(f, payload...)
}
