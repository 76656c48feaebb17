// Package gpio implements the gpio package's capability interfaces for the
// NXP LPC802 GPIO block, which exposes one byte-wide register per pin (the
// "B" array) in addition to a word-wide DIRSET/DIRCLR pair per port --
// a pin write is a single atomic byte store, with no mask or
// read-modify-write step at all.
//
// Grounded on original_source/targets/lpc802/io/port.hpp's pin_in/pin_out
// classes: DIRCLR0/DIRSET0 direction control and the B[pin] byte accessor
// are ported directly. soc/lpc802/mux.Mux.Clear backs the alternate-
// function release step pin_in::init/pin_out::init perform via
// matrix<matrix0>::clear<Pin>() before touching direction.
package gpio

import (
	"github.com/armhal/hal/internal/reg"

	"github.com/armhal/hal/gpio"
	"github.com/armhal/hal/pin"
)

// Register offsets within the GPIO block. B is a byte array indexed
// directly by global pin number (offset 0x0000); DIRSET0/DIRCLR0 are
// word-wide per-port direction-set/clear registers (offset 0x2000+
// 0x04*port, per the LPC8xx memory map).
const (
	regB       = 0x0000
	regDIRSET0 = 0x2084
	regDIRCLR0 = 0x2094
)

// Clearer releases any alternate function routed to a pin, per
// matrix<matrix0>::clear<Pin>().
type Clearer interface {
	Clear(p pin.Pin)
}

// Pin drives a single LPC802 GPIO pin.
type Pin struct {
	Base uint32 // GPIO peripheral base address
	Pin  pin.Pin
	Mux  Clearer
}

func (g *Pin) byteReg() uint32 { return g.Base + regB + uint32(g.Pin.Number) }
func (g *Pin) dirSet() uint32  { return g.Base + regDIRSET0 + uint32(g.Pin.Port.ID)*4 }
func (g *Pin) dirClr() uint32  { return g.Base + regDIRCLR0 + uint32(g.Pin.Port.ID)*4 }

func (g *Pin) releaseAF() {
	if g.Mux != nil {
		g.Mux.Clear(g.Pin)
	}
}

// InitInput configures the pin as a GPIO input, per pin_in::init.
func (g *Pin) InitInput() {
	g.releaseAF()
	reg.Write(g.dirClr(), g.Pin.Mask())
}

// InitOutput configures the pin as a GPIO output, per pin_out::init.
func (g *Pin) InitOutput() {
	g.releaseAF()
	reg.Write(g.dirSet(), g.Pin.Mask())
}

// Direction implements gpio.InputOutput.
func (g *Pin) Direction(out bool) {
	if out {
		g.InitOutput()
	} else {
		g.InitInput()
	}
}

// Get implements gpio.Input, per pin_in::get's B[pin] byte read.
func (g *Pin) Get() bool {
	return reg.Read8(g.byteReg())&0x01 != 0
}

// Set implements gpio.Output, per pin_out::set(true)'s B[pin] byte write.
func (g *Pin) Set() { reg.Write8(g.byteReg(), 1) }

// Clear implements gpio.Output, per pin_out::set(false).
func (g *Pin) Clear() { reg.Write8(g.byteReg(), 0) }

// Toggle implements gpio.Output.
func (g *Pin) Toggle() {
	if g.Get() {
		g.Clear()
	} else {
		g.Set()
	}
}

var (
	_ gpio.Input       = (*Pin)(nil)
	_ gpio.Output      = (*Pin)(nil)
	_ gpio.InputOutput = (*Pin)(nil)
)
