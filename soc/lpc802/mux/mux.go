// Package mux implements mux.Router for the NXP LPC802 switch matrix
// (SWM): a "movable" function matrix where each peripheral signal (not
// each pin) owns an 8-bit byte slot across eight PINASSIGN registers, and
// the pin number legal for that signal is written into the slot -- the
// inverse of LPC17xx's PINSEL, which instead writes a function code into
// a field owned by the pin. A handful of analog/debug signals ("fixed
// matrix") are instead a one-bit enable in PINENABLE0 with no movable pin
// choice at all.
//
// Grounded on original_source/targets/chip/lpc802/io/matrix.hpp:
// matrix::setup<Pin, flex_matrix>()/setup<fixed_matrix>()/clear<Pin>() are
// ported directly, including the clock-gate-around-the-write ordering
// (spec.md §4.1's "pin-mux changes must happen with the peripheral clock
// enabled long enough for the write to propagate, then may be gated
// again"). validate_flex_parameter's per-offset pin-range tables are
// exactly what this module's mux.Table.Resolve generalizes to an
// ordinary (pin, role) lookup built once per soc/lpc802 package, so they
// are not reproduced here.
package mux

import (
	"github.com/armhal/hal/internal/reg"
	"github.com/armhal/hal/mux"
	"github.com/armhal/hal/pin"
)

// Function identifies one movable signal's slot in the switch matrix, per
// matrix.hpp's flex_matrix enum. The byte value itself (0-255, a pin
// number or 0xff for "none") is supplied separately to Route.
type Function uint8

const (
	UART0Tx Function = iota
	UART0Rx
	UART0Rts
	UART0Cts
	UART0Sclk
	UART1Tx
	UART1Rx
	UART1Sclk
	SPI0Sck
	SPI0Mosi
	SPI0Miso
	SPI0Ssel0
	I2C0Sda
	I2C0Scl
)

// none marks a matrix byte slot as unassigned, per the SWM's reset value
// and matrix.hpp's clear()'s 0xff sentinel.
const none = 0xff

// ClockGater enables and disables the switch matrix's peripheral clock
// around a Route/Clear call, per matrix.hpp's setup()/clear() bracketing
// every register write with clocks::enable<Matrix>()/disable<Matrix>().
type ClockGater interface {
	EnableClock()
	DisableClock()
}

// Mux drives one LPC802 device's switch matrix.
type Mux struct {
	Base  uint32
	Clock ClockGater
}

func (m *Mux) pinassign(fn Function) uint32 { return m.Base + uint32(fn/4)*4 }
func (m *Mux) shift(fn Function) uint       { return uint(fn%4) * 8 }

func (m *Mux) gate(fn func()) {
	if m.Clock != nil {
		m.Clock.EnableClock()
		defer m.Clock.DisableClock()
	}
	fn()
}

// routePin writes the given pin number (or none) into fn's byte slot, per
// matrix.hpp's setup<Pin, Flex>().
func (m *Mux) routePin(fn Function, pinNumber uint32) {
	m.gate(func() {
		reg.SetN(m.pinassign(fn), int(m.shift(fn)), 0xff, pinNumber)
	})
}

// Route implements mux.Router. af identifies the matrix function slot
// (cast from a Function constant); the routed pin's number is written
// into that slot.
func (m *Mux) Route(p pin.Pin, af pin.AF) {
	m.routePin(Function(af), uint32(p.Number))
}

// Clear releases p from whichever function slot currently references it,
// per matrix.hpp's clear<Pin>(): scan every assignable byte and blank any
// that matches this pin's number.
func (m *Mux) Clear(p pin.Pin) {
	m.gate(func() {
		for fn := Function(0); int(fn/4) < 8; fn++ {
			addr := m.pinassign(fn)
			cur := (reg.Read(addr) >> m.shift(fn)) & 0xff
			if cur == uint32(p.Number) {
				reg.SetN(addr, int(m.shift(fn)), 0xff, none)
			}
		}
	})
}

// EnableFixed implements matrix.hpp's setup<Fixed>() for the fixed-matrix
// analog/debug functions: fixedBit is the PINENABLE0 bit position for the
// desired function (acmp_i1, swclk, adc0, ...).
func (m *Mux) EnableFixed(fixedBit int) {
	m.gate(func() {
		reg.Set(m.pinenable0(), fixedBit)
	})
}

func (m *Mux) pinenable0() uint32 { return m.Base + 0x1c0 }

var _ mux.Router = (*Mux)(nil)
