// Package mux implements mux.Router for the NXP LPC17xx/LPC175x PINCONNECT
// block: a 2-bit alternate-function field per pin, packed 16 pins to a
// 32-bit PINSEL register, plus a companion PINMODE register of the same
// shape for the pullup/repeater/none/pulldown pin-mode field.
//
// Grounded on original_source/targets/core/nxp/lpc175x/port.hpp:
// get_pinselect_offset/set_peripheral/set_pinmode/set_open_drain are ported
// directly. klib resolves the PINSEL register offset and bit shift at
// compile time from the Pin type; this module's mux.Table.Resolve already
// performs the (pin, role) legality check at Bind time (see package mux),
// so Route here only needs to perform the register arithmetic klib's
// set_peripheral does at each of its three "if constexpr" branches.
package mux

import (
	"github.com/armhal/hal/internal/reg"
	"github.com/armhal/hal/mux"
	"github.com/armhal/hal/pin"
)

// Alternate function tags for the LPC17xx PINSEL field, matching
// alternate::func_1/func_2/func_3. pin.None (0) is the default GPIO
// function ("none" in port.hpp).
const (
	Func1 pin.AF = iota + 1
	Func2
	Func3
)

// Pin mode values for the PINMODE field, per port.hpp's enum class mode.
type Mode uint8

const (
	ModePullup Mode = iota
	ModeRepeater
	ModeNone
	ModePulldown
)

// Mux drives one LPC17xx device's PINCONNECT block.
type Mux struct {
	// Base is the PINCONNECT block's base address. PINSEL[n] lives at
	// Base + n*4, PINMODE[n] at Base + 0x40 + n*4 (per the LPC17xx
	// memory map, PINSEL0..10 followed by PINMODE0..9).
	Base uint32
}

func pinselOffset(p pin.Pin) uint32 {
	offset := uint32(p.Port.ID)*2
	if p.Number >= 16 {
		offset++
	}
	return offset
}

func (m *Mux) pinsel(p pin.Pin) uint32 { return m.Base + pinselOffset(p)*4 }
func (m *Mux) pinmode(p pin.Pin) uint32 {
	return m.Base + 0x40 + pinselOffset(p)*4
}

func fieldShift(p pin.Pin) int { return (p.Number * 2) % 32 }

// Route implements mux.Router, per port.hpp's set_peripheral: rewrite the
// pin's 2-bit field within its PINSEL register.
func (m *Mux) Route(p pin.Pin, af pin.AF) {
	reg.SetN(m.pinsel(p), fieldShift(p), 0b11, uint32(af)&0b11)
}

// SetMode implements the pullup/repeater/none/pulldown selection backing
// gpio.Input's Enable{Pullup,Pulldown}, per port.hpp's set_pinmode.
func (m *Mux) SetMode(p pin.Pin, md Mode) {
	reg.SetN(m.pinmode(p), fieldShift(p), 0b11, uint32(md)&0b11)
}

var _ mux.Router = (*Mux)(nil)
