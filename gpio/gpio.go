// Chip-independent GPIO driver contract
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package gpio declares the capability interfaces every soc/* GPIO driver
// satisfies, plus a PortGroup helper for operating on several pins of the
// same bank atomically.
//
// tamago's soc/nxp/gpio.Pin exposes concrete Out/In/High/Low/Value methods
// directly against a single i.MX GPIO bank, which lacks dedicated set/clear
// registers and therefore performs every write as a read-modify-write
// (internal/reg.Set/Clear, themselves a load/store pair). Several of the
// chips this module targets do have dedicated SET/CLEAR registers (LPC17xx
// FIOSET/FIOCLR, ATSAM4S PIO_SODR/PIO_CODR) that make a single pin write an
// atomic one-cycle operation with no read-modify-write race against an
// interrupt handler touching a neighbouring bit of the same bank. The
// capability interfaces below let each soc/* package pick the fastest
// legal implementation for its hardware while callers depend only on the
// interface.
package gpio

// Input is satisfied by any pin configured to sense its line level.
type Input interface {
	// Get returns the current logic level of the pin.
	Get() bool
}

// Output is satisfied by any pin configured to drive its line level.
type Output interface {
	// Set drives the pin high.
	Set()
	// Clear drives the pin low.
	Clear()
	// Toggle inverts the current driven level.
	Toggle()
}

// InputOutput is satisfied by a pin that can be switched between sensing
// and driving at runtime.
type InputOutput interface {
	Input
	Output
	// Direction configures the pin as an output (out=true) or input.
	Direction(out bool)
}

// OpenDrain is satisfied by a pin driven only low or released to float,
// the output-stage equivalent of an open-collector line (e.g. I2C SDA/SCL
// bit-banged recovery, or a shared reset line).
type OpenDrain interface {
	// Drive pulls the line low.
	Drive()
	// Release floats the line, relying on an external or internal pull-up
	// to restore the high level.
	Release()
	// Get senses the current line level.
	Get() bool
}

// PortWriter is implemented by a soc/* bank driver capable of setting and
// clearing several pins of the same bank in a single register write, via
// dedicated mask-oriented registers (e.g. LPC17xx FIOSET/FIOCLR, ATSAM4S
// PIO_SODR/PIO_CODR) or an OR-mask fallback otherwise.
type PortWriter interface {
	// SetMask drives high every pin whose bit is set in mask.
	SetMask(mask uint32)
	// ClearMask drives low every pin whose bit is set in mask.
	ClearMask(mask uint32)
	// Value returns the bank's current input/output data register.
	Value() uint32
}

// PortGroup aggregates a fixed, ordered set of a bank's pins and presents
// them to callers as a single contiguous logical bit vector -- the first
// pin passed to NewPortGroup is the vector's most significant bit, the last
// pin passed is its least significant bit -- while the pins themselves may
// occupy any scattered set of physical bit positions in the bank's SET/
// CLEAR/data registers.
//
// Grounded on original_source/targets/max32660/io/port.hpp's port_in/
// port_out: map_to_pin_order/map_to_pio_order perform the same logical-bit-
// vector-to-physical-bit-position remapping (pin at tuple index k maps to
// logical bit count-1-k), and port_out::set_pio issues the same two-write
// SET-then-CLEAR sequence this type's Write method does.
type PortGroup struct {
	w    PortWriter
	pins []uint
	mask uint32
}

// NewPortGroup returns a PortGroup driving pins, in the declaration order
// given, through w. pins need not be contiguous or ascending in their
// physical bit position -- logical bit N-1-k always refers to pins[k],
// regardless of which physical bit pins[k] occupies.
func NewPortGroup(w PortWriter, pins ...uint) *PortGroup {
	var mask uint32
	for _, p := range pins {
		mask |= 1 << p
	}

	return &PortGroup{w: w, pins: append([]uint(nil), pins...), mask: mask}
}

// Write drives the group's pins to match the corresponding bits of the
// logical vector values; bits of values beyond len(pins) are ignored.
func (g *PortGroup) Write(values uint32) {
	var set, clear uint32

	n := len(g.pins)
	for k, p := range g.pins {
		logical := uint(n - 1 - k)
		if values&(1<<logical) != 0 {
			set |= 1 << p
		} else {
			clear |= 1 << p
		}
	}

	if set != 0 {
		g.w.SetMask(set)
	}

	if clear != 0 {
		g.w.ClearMask(clear)
	}
}

// Read returns the group's pins as a logical bit vector: bit N-1-k carries
// the current level of the k'th pin passed to NewPortGroup, regardless of
// that pin's physical bit position in the bank.
func (g *PortGroup) Read() uint32 {
	raw := g.w.Value() & g.mask

	var out uint32
	n := len(g.pins)
	for k, p := range g.pins {
		if raw&(1<<p) != 0 {
			out |= 1 << uint(n-1-k)
		}
	}

	return out
}
