// Package gpio implements the gpio package's capability interfaces for the
// MAX326xx GPIO block: dedicated OUT_SET/OUT_CLR and OUT_EN_SET/OUT_EN_CLR
// register pairs (set/clear by writing a mask to one register or the
// other, rather than read-modify-write), plus PS/PAD_CFG1 for the
// pullup/pulldown pad configuration.
//
// Grounded on original_source/targets/max32660/io/port.hpp's pin_in/
// pin_out/pin_oc/pin_od classes: OUT_EN_SET/OUT_EN_CLR direction control,
// OUT_SET/OUT_CLR level control, and the PS+PAD_CFG1 pullup/pulldown
// encoding are ported directly. The open-drain/open-collector duals
// (pin_oc/pin_od) are not reproduced as a distinct Go type: this module's
// gpio.OpenDrain capability interface already expresses "drive low or
// release", which Pin's Drive/Release methods implement directly against
// OUT_EN_SET/OUT_EN_CLR, matching pin_od::set's behavior without a
// parallel type.
package gpio

import (
	"github.com/armhal/hal/internal/reg"

	"github.com/armhal/hal/gpio"
	"github.com/armhal/hal/pin"
	max326mux "github.com/armhal/hal/soc/max326xx/mux"
)

// Register offsets within one GPIO port's block.
const (
	regIN       = 0x24
	regOUTSET   = 0x2c
	regOUTCLR   = 0x30
	regOUTENSET = 0x3c
	regOUTENCLR = 0x40
	regPS       = 0x48
	regPADCFG1  = 0x54
)

// Port drives one MAX326xx GPIO port's registers.
type Port struct {
	Base uint32
	Mux  *max326mux.Mux
}

func (p *Port) in() uint32       { return p.Base + regIN }
func (p *Port) outSet() uint32   { return p.Base + regOUTSET }
func (p *Port) outClr() uint32   { return p.Base + regOUTCLR }
func (p *Port) outEnSet() uint32 { return p.Base + regOUTENSET }
func (p *Port) outEnClr() uint32 { return p.Base + regOUTENCLR }

// SetMask implements gpio.PortWriter.
func (p *Port) SetMask(mask uint32) { reg.Write(p.outSet(), mask) }

// ClearMask implements gpio.PortWriter.
func (p *Port) ClearMask(mask uint32) { reg.Write(p.outClr(), mask) }

// Value implements gpio.PortWriter.
func (p *Port) Value() uint32 { return reg.Read(p.in()) }

// Pin drives a single MAX326xx GPIO pin, switchable between sensing,
// driving, and open-drain release.
type Pin struct {
	port *Port
	pin  pin.Pin
}

// NewPin returns a Pin for p on the given port.
func NewPin(port *Port, p pin.Pin) *Pin {
	return &Pin{port: port, pin: p}
}

// InitInput configures the pin as a GPIO input, per pin_in::init: route
// the pin back to the hardware's GPIO function code and disable its output
// stage.
func (g *Pin) InitInput() {
	if g.port.Mux != nil {
		g.port.Mux.Route(g.pin, max326mux.GPIO)
	}
	reg.Write(g.port.outEnClr(), g.pin.Mask())
}

// InitOutput configures the pin as a GPIO output, per pin_out::init.
func (g *Pin) InitOutput() {
	g.InitInput()
	reg.Write(g.port.outEnSet(), g.pin.Mask())
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
	return reg.Read(g.port.in())&g.pin.Mask() != 0
}

// Set implements gpio.Output, per pin_out::set(true).
func (g *Pin) Set() { g.port.SetMask(g.pin.Mask()) }

// Clear implements gpio.Output, per pin_out::set(false).
func (g *Pin) Clear() { g.port.ClearMask(g.pin.Mask()) }

// Toggle implements gpio.Output.
func (g *Pin) Toggle() {
	if g.Get() {
		g.Clear()
	} else {
		g.Set()
	}
}

// Drive implements gpio.OpenDrain, per pin_od::set(false): enable the
// output stage and drive it low.
func (g *Pin) Drive() {
	reg.Write(g.port.outEnSet(), g.pin.Mask())
	g.Clear()
}

// Release implements gpio.OpenDrain, per pin_od::set(true): disable the
// output stage, letting an external or internal pull-up restore the high
// level.
func (g *Pin) Release() {
	reg.Write(g.port.outEnClr(), g.pin.Mask())
}

// EnablePullup configures PS/PAD_CFG1 for a pull-up, per
// pin_in::pullup_enable.
func (g *Pin) EnablePullup(enable bool) {
	if enable {
		reg.Or(g.port.Base+regPS, g.pin.Mask())
		reg.Or(g.port.Base+regPADCFG1, g.pin.Mask())
	} else {
		clearMask(g.port.Base+regPADCFG1, g.pin.Mask())
	}
}

// EnablePulldown configures PS/PAD_CFG1 for a pull-down, per
// pin_in::pulldown_enable.
func (g *Pin) EnablePulldown(enable bool) {
	if enable {
		clearMask(g.port.Base+regPS, g.pin.Mask())
		reg.Or(g.port.Base+regPADCFG1, g.pin.Mask())
	} else {
		clearMask(g.port.Base+regPADCFG1, g.pin.Mask())
	}
}

func clearMask(addr uint32, mask uint32) {
	reg.Write(addr, reg.Read(addr) & ^mask)
}

var (
	_ gpio.Input       = (*Pin)(nil)
	_ gpio.Output      = (*Pin)(nil)
	_ gpio.InputOutput = (*Pin)(nil)
	_ gpio.OpenDrain   = (*Pin)(nil)
	_ gpio.PortWriter  = (*Port)(nil)
)
