package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakePortWriter is an in-memory PortWriter used to exercise PortGroup
// without any real register access.
type fakePortWriter struct {
	value uint32
}

func (w *fakePortWriter) SetMask(mask uint32)   { w.value |= mask }
func (w *fakePortWriter) ClearMask(mask uint32) { w.value &^= mask }
func (w *fakePortWriter) Value() uint32         { return w.value }

// TestPortGroupScatteredPins exercises the logical-bit-vector-to-physical-
// bit-position remapping for a pin set whose declaration order is not
// ascending physical-bit order: pins 5, 1, 7, 2, in that order, form the
// 4-bit logical vector (bit 3 = pin 5, bit 2 = pin 1, bit 1 = pin 7, bit 0
// = pin 2).
func TestPortGroupScatteredPins(t *testing.T) {
	w := &fakePortWriter{}
	g := NewPortGroup(w, 5, 1, 7, 2)

	// logical 0b1010: pin 5 set, pin 1 clear, pin 7 set, pin 2 clear.
	g.Write(0b1010)

	assert.Equal(t, uint32(1<<5|1<<7), w.value)
	assert.Equal(t, uint32(0b1010), g.Read())
}

// TestPortGroupWriteIgnoresBitsOutsideGroup covers a bank whose other bits
// are driven by something else: PortGroup must not touch them.
func TestPortGroupWriteIgnoresBitsOutsideGroup(t *testing.T) {
	w := &fakePortWriter{value: 1 << 10}
	g := NewPortGroup(w, 3, 4)

	g.Write(0b11)

	assert.Equal(t, uint32(1<<10|1<<3|1<<4), w.value)
	assert.Equal(t, uint32(0b11), g.Read())
}

// TestPortGroupReadMasksToGroup covers Read on a bank where bits outside
// the group happen to be set: they must not leak into the logical vector.
func TestPortGroupReadMasksToGroup(t *testing.T) {
	w := &fakePortWriter{value: 1<<5 | 1<<1 | 1<<9}
	g := NewPortGroup(w, 5, 1)

	assert.Equal(t, uint32(0b11), g.Read())
}
