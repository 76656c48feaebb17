// Package i2c implements the i2c package's capability interfaces for the
// MAX326xx I2C master block.
//
// Grounded on original_source/targets/max32660/io/i2c.hpp's i2c<I2c> class:
// MASTER_CTRL's start/repeated-start bits, the shared FIFO register, and
// INT_FL0's ack/nack/done status bits are ported directly from
// send_slave_address/send_stop/read/write. The clock-divider math in
// calculate_clock<Speed> is simplified to a single divide against the
// standard 50%-duty-cycle case; the high-speed (3.4Mbps) mode's dual-phase
// timing is out of scope, matching this package's Speed enum which only
// programs CLK_LO/CLK_HI.
package i2c

import (
	"github.com/armhal/hal/i2c"
	"github.com/armhal/hal/internal/reg"
)

// Register offsets within the I2C block.
const (
	regCTRL       = 0x00
	regMasterCtrl = 0x04
	regFIFO       = 0x08
	regClkLo      = 0x0c
	regClkHi      = 0x10
	regIntFl0     = 0x14
)

const (
	masterCtrlStart   = 1 << 0
	masterCtrlRestart = 1 << 1
	masterCtrlStop    = 1 << 2

	intFl0Done = 1 << 6
	intFl0Ack  = 1 << 7
	intFl0Nack = 1 << 10
)

// I2C drives one MAX326xx I2C master instance.
type I2C struct {
	Base  uint32
	Clock uint32 // input clock to the divider, in Hz
}

// Init enables the peripheral at the given bus speed, per i2c<I2c>::init.
func (c *I2C) Init(speed i2c.Speed) {
	reg.Write(c.Base+regCTRL, 0x1)
	c.SetSpeed(speed)
	reg.Or(c.Base+regCTRL, 1<<1)
}

// SetSpeed implements i2c.Configurer, per calculate_clock's 50%-duty case.
func (c *I2C) SetSpeed(speed i2c.Speed) {
	ticks := (c.Clock / 2) / uint32(speed)
	half := (ticks >> 1) - 1

	reg.Write(c.Base+regClkLo, half)
	reg.Write(c.Base+regClkHi, half)
}

func (c *I2C) start(address uint8, read bool, opts []i2c.Option) bool {
	if i2c.Has(opts, i2c.RepeatedStart) {
		reg.Or(c.Base+regMasterCtrl, masterCtrlRestart)
	} else {
		reg.Or(c.Base+regMasterCtrl, masterCtrlStart)
	}

	rw := uint32(0)
	if read {
		rw = 1
	}
	reg.Write(c.Base+regFIFO, (uint32(address)<<1)|rw)

	for reg.Read(c.Base+regIntFl0)&(intFl0Ack|intFl0Nack) == 0 {
	}

	if reg.Read(c.Base+regIntFl0)&intFl0Nack != 0 {
		c.Stop()
		return false
	}

	return true
}

// Stop implements i2c.Controller, per send_stop.
func (c *I2C) Stop() {
	reg.Or(c.Base+regMasterCtrl, masterCtrlStop)

	for reg.Read(c.Base+regIntFl0)&intFl0Done == 0 {
	}
}

// Read implements i2c.Controller, per i2c<I2c>::read.
func (c *I2C) Read(address uint8, data []byte, opts ...i2c.Option) bool {
	reg.Write(c.Base+regIntFl0, 0xffff)

	if !c.start(address, true, opts) {
		return false
	}

	for i := range data {
		data[i] = byte(reg.Read(c.Base + regFIFO))
	}

	if !i2c.Has(opts, i2c.NoStop) {
		c.Stop()
	}

	return true
}

// Write implements i2c.Controller, per i2c<I2c>::write.
func (c *I2C) Write(address uint8, data []byte, opts ...i2c.Option) bool {
	reg.Write(c.Base+regIntFl0, 0xffff)

	if !c.start(address, false, opts) {
		return false
	}

	for _, b := range data {
		reg.Write(c.Base+regFIFO, uint32(b))
	}

	if !i2c.Has(opts, i2c.NoStop) {
		c.Stop()
	}

	return true
}

var (
	_ i2c.Controller = (*I2C)(nil)
	_ i2c.Configurer = (*I2C)(nil)
)
