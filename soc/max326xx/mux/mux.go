// Package mux implements mux.Router for the Maxim (now Analog Devices)
// MAX326xx GPIO-integrated pin-mux: a 3-bit alternate-function selector
// per pin, spread one bit each across three registers (EN, EN1, EN2),
// each with its own dedicated SET/CLR half -- the pin's function code is
// a 3-bit value written one bit register at a time rather than a 2-bit
// field packed into a shared PINSEL-style register.
//
// Grounded on original_source/targets/max32660/io/port.hpp's
// set_peripheral<Pin, Periph>(): the four branches (func_1=0b000,
// "gpio"=0b001, func_2=0b010, func_3=0b011) are reproduced as one table
// indexed by function code, replacing the four "if constexpr" blocks
// that each hand-list which of EN/EN1/EN2's SET or CLR half to hit.
package mux

import (
	"github.com/armhal/hal/internal/reg"
	"github.com/armhal/hal/mux"
	"github.com/armhal/hal/pin"
)

// Alternate function codes, per port.hpp's set_peripheral branches. GPIO
// is the hardware's own default/reset function and is what InitInput/
// InitOutput route back to; pin.None (0) is not used here, since on this
// hardware 0 is the func_1 code.
const (
	Func1 pin.AF = 0b000
	GPIO  pin.AF = 0b001
	Func2 pin.AF = 0b010
	Func3 pin.AF = 0b011
)

// Register offsets within one GPIO port's block: EN/EN1/EN2, each
// shadowed by a SET alias at +4 and a CLR alias at +8, per the MAX326xx
// GPIO memory map's "write one, set; write other, clear" register pairs.
const (
	regEN  = 0x00
	regEN1 = 0x0c
	regEN2 = 0x18
	setOff = 0x04
	clrOff = 0x08
)

// Mux drives one MAX326xx GPIO port's alternate-function selector bits.
// Unlike LPC17xx/LPC802, on this hardware the mux registers live
// alongside the GPIO data/direction registers in the same block, so Mux
// and gpio.Port share a Base.
type Mux struct {
	Base uint32
}

func (m *Mux) bit(base uint32, set bool, p pin.Pin) uint32 {
	if set {
		return m.Base + base + setOff
	}
	return m.Base + base + clrOff
}

// Route implements mux.Router, per set_peripheral: write the function
// code's three bits into EN/EN1/EN2's SET or CLR half.
func (m *Mux) Route(p pin.Pin, af pin.AF) {
	code := uint32(af)

	writeBit := func(base uint32, bit uint) {
		if code&(1<<bit) != 0 {
			reg.Write(m.bit(base, true, p), p.Mask())
		} else {
			reg.Write(m.bit(base, false, p), p.Mask())
		}
	}

	writeBit(regEN, 0)
	writeBit(regEN1, 1)
	writeBit(regEN2, 2)
}

var _ mux.Router = (*Mux)(nil)
