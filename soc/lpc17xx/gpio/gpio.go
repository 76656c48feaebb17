// Package gpio implements the gpio package's capability interfaces for the
// NXP LPC17xx Fast GPIO (FIO) block: dedicated MASK/PIN/SET/CLR/DIR
// registers per port, giving single-cycle atomic pin writes with no
// read-modify-write race against an interrupt handler touching a
// neighbouring bit of the same port.
//
// Grounded on original_source/targets/core/nxp/lpc175x/port.hpp's pin_in/
// pin_out classes: direction is cleared/set on init, input reads PIN,
// output writes SET/CLR. port.hpp's Pin::port->SET/CLR map directly onto
// this module's dedicated FIOSET/FIOCLR registers; the soc/lpc17xx/mux
// package is used for the alternate-function-release step pin_in::init/
// pin_out::init perform before configuring direction.
package gpio

import (
	"github.com/armhal/hal/internal/reg"
	lpc17xxmux "github.com/armhal/hal/soc/lpc17xx/mux"

	"github.com/armhal/hal/gpio"
	"github.com/armhal/hal/pin"
)

// Register offsets within one port's FIO block (FIODIR, FIOMASK, FIOPIN,
// FIOSET, FIOCLR), per the LPC17xx Fast GPIO memory map.
const (
	regDIR  = 0x00
	regMASK = 0x10
	regPIN  = 0x14
	regSET  = 0x18
	regCLR  = 0x1c
)

// Port drives one LPC17xx FIO port's registers.
type Port struct {
	// Base is this port's FIO block base address (each port's block is
	// 0x20 bytes further into the FIO peripheral than the last).
	Base uint32
	Mux  *lpc17xxmux.Mux
}

func (p *Port) dir() uint32 { return p.Base + regDIR }
func (p *Port) set() uint32 { return p.Base + regSET }
func (p *Port) clr() uint32 { return p.Base + regCLR }
func (p *Port) pin() uint32 { return p.Base + regPIN }

// SetMask implements gpio.PortWriter.
func (p *Port) SetMask(mask uint32) { reg.Write(p.set(), mask) }

// ClearMask implements gpio.PortWriter.
func (p *Port) ClearMask(mask uint32) { reg.Write(p.clr(), mask) }

// Value implements gpio.PortWriter.
func (p *Port) Value() uint32 { return reg.Read(p.pin()) }

// Pin drives a single LPC17xx FIO pin, switchable between sensing and
// driving.
type Pin struct {
	port *Port
	pin  pin.Pin
}

// NewPin returns a Pin for p on the given port.
func NewPin(port *Port, p pin.Pin) *Pin {
	return &Pin{port: port, pin: p}
}

func (g *Pin) releaseAF() {
	if g.port.Mux != nil {
		g.port.Mux.Route(g.pin, pin.None)
	}
}

// InitInput configures the pin as a GPIO input, per pin_in::init: release
// any alternate function, then clear the pin's direction bit.
func (g *Pin) InitInput() {
	g.releaseAF()
	reg.ClearN(g.port.dir(), g.pin.Number, 1)
}

// InitOutput configures the pin as a GPIO output, per pin_out::init.
func (g *Pin) InitOutput() {
	g.releaseAF()
	reg.SetN(g.port.dir(), g.pin.Number, 1, 1)
}

// Direction implements gpio.InputOutput.
func (g *Pin) Direction(out bool) {
	if out {
		g.InitOutput()
	} else {
		g.InitInput()
	}
}

// Get implements gpio.Input, per pin_in::get.
func (g *Pin) Get() bool {
	return reg.Read(g.port.pin())&g.pin.Mask() != 0
}

// Set implements gpio.Output, per pin_out::set<true>.
func (g *Pin) Set() { g.port.SetMask(g.pin.Mask()) }

// Clear implements gpio.Output, per pin_out::set<false>.
func (g *Pin) Clear() { g.port.ClearMask(g.pin.Mask()) }

// Toggle implements gpio.Output.
func (g *Pin) Toggle() {
	if g.Get() {
		g.Clear()
	} else {
		g.Set()
	}
}

// EnablePullup configures the pin's PINMODE field to pullup (or none),
// per pin_in::pullup_enable.
func (g *Pin) EnablePullup(enable bool) {
	md := lpc17xxmux.ModeNone
	if enable {
		md = lpc17xxmux.ModePullup
	}
	g.port.Mux.SetMode(g.pin, md)
}

// EnablePulldown configures the pin's PINMODE field to pulldown (or none),
// per pin_in::pulldown_enable.
func (g *Pin) EnablePulldown(enable bool) {
	md := lpc17xxmux.ModeNone
	if enable {
		md = lpc17xxmux.ModePulldown
	}
	g.port.Mux.SetMode(g.pin, md)
}

// NewPinGroup returns a gpio.PortGroup aggregating pins of this port into a
// single logical bit vector, in the declaration order given -- the pins
// need not be contiguous or in ascending bit-position order within the
// port, e.g. a 4-bit "nibble" wired to whichever pins happened to be free
// on the board.
func NewPinGroup(port *Port, pins ...pin.Pin) *gpio.PortGroup {
	numbers := make([]uint, len(pins))
	for i, p := range pins {
		numbers[i] = uint(p.Number)
	}

	return gpio.NewPortGroup(port, numbers...)
}

var (
	_ gpio.Input       = (*Pin)(nil)
	_ gpio.Output      = (*Pin)(nil)
	_ gpio.InputOutput = (*Pin)(nil)
	_ gpio.PortWriter  = (*Port)(nil)
)
