// Package usb implements usb.Controller for the Atmel/Microchip ATSAM4S
// USB Device Port (UDP): the "per-endpoint CSR with hardware banks"
// variant named in spec.md §4.3.4's second bullet ("a single
// control-and-status register per endpoint, with separate byte-wide FIFO
// ports and a dual-bank ready/free handshake replacing the command
// port").
//
// Grounded on original_source/targets/core/atmel/atsam4s/usb.hpp: the
// per-endpoint CSR bit layout (bit 15 endpoint-enable, bits 8-10 transfer
// type, bit 4 TXPKTRDY, bit 1 RXBYTECNT-cleared-on-ack, bit 5 FORCESTALL)
// and the FDR byte-FIFO/GLB_STAT/FADDR/RST_EP/TXVC register names are
// ported directly; the teacher's register-struct-plus-pointer style is
// replaced with this module's internal/reg atomic accessors, matching
// soc/lpc17xx/usb's approach for the sibling SIE-command-port variant.
package usb

import (
	"fmt"
	"time"

	"github.com/armhal/hal/internal/reg"
	"github.com/armhal/hal/usb"
)

// Register offsets from the UDP peripheral base, per the ATSAM4S
// datasheet's USB Device Port chapter and Usb::port's field order in
// usb.hpp (FADDR, GLB_STAT, IER, ICR, RST_EP, CSR[0..7], FDR[0..7], TXVC).
const (
	regFADDR   = 0x00
	regGLBSTAT = 0x04
	regIER     = 0x10
	regICR     = 0x18
	regRSTEP   = 0x1c
	regCSR0    = 0x30 // CSR[endpoint] = regCSR0 + endpoint*4
	regFDR0    = 0x50 // FDR[endpoint] = regFDR0 + endpoint*4
	regTXVC    = 0x74
)

const endpointResetTimeout = 10 * time.Millisecond

// Controller drives one ATSAM4S UDP instance.
type Controller struct {
	Base uint32

	dispatcher *usb.Dispatcher

	// maxPacketSize records each configured endpoint's max-packet size
	// (the UDP has one CSR per endpoint number, not per direction), so
	// Tx/Rx can chunk an arbitrarily long transfer into hardware packets.
	maxPacketSize map[int]int
}

// New returns a Controller for the UDP peripheral at base.
func New(base uint32, target usb.Target) *Controller {
	c := &Controller{Base: base, maxPacketSize: make(map[int]int)}
	c.dispatcher = &usb.Dispatcher{Controller: c, Target: target}
	return c
}

func (c *Controller) reg(offset uint32) uint32 { return c.Base + offset }
func (c *Controller) csr(ep int) uint32        { return c.reg(regCSR0 + uint32(ep)*4) }
func (c *Controller) fdr(ep int) uint32        { return c.reg(regFDR0 + uint32(ep)*4) }

// Configure realizes a logical endpoint with the given transfer-type CSR
// encoding, per usb.hpp's configure(): reset the endpoint, then program
// CSR with the enable bit (15) and transfer-type field (8-10).
func (c *Controller) Configure(ep int, transferTypeCode uint32, maxPacketSize int) error {
	if err := c.resetEndpoint(ep); err != nil {
		return err
	}

	c.maxPacketSize[ep] = maxPacketSize

	reg.Write(c.csr(ep), (1<<15)|(transferTypeCode<<8))

	return nil
}

func (c *Controller) resetEndpoint(ep int) error {
	mask := uint32(1) << uint(ep)

	reg.Or(c.reg(regRSTEP), mask)
	if !reg.WaitFor(endpointResetTimeout, c.reg(regRSTEP), ep, 1, 1) {
		return fmt.Errorf("atsam4s/usb: endpoint %d reset timed out", ep)
	}
	reg.ClearN(c.reg(regRSTEP), ep, 1)

	return nil
}

// Tx implements usb.Controller: write(), chunking data into max-packet
// hardware packets (txPacket, write_impl's equivalent) via usb.ChunkTx,
// with a trailing zero-length packet when the transfer is an exact
// multiple of the endpoint's configured max packet size.
func (c *Controller) Tx(ep int, data []byte) error {
	return usb.ChunkTx(data, c.maxPacketSize[ep], func(chunk []byte) error {
		return c.txPacket(ep, chunk)
	})
}

// txPacket is write_impl: a byte-at-a-time FDR push followed by setting
// TXPKTRDY (CSR bit 4).
func (c *Controller) txPacket(ep int, data []byte) error {
	for _, b := range data {
		reg.Write(c.fdr(ep), uint32(b))
	}

	reg.Set(c.csr(ep), 4)

	return nil
}

// Rx implements usb.Controller: read(), chunking the transfer into
// max-packet hardware packets (rxPacket, read_impl's equivalent) via
// usb.ChunkRx, stopping early on a short packet.
func (c *Controller) Rx(ep int, length int) ([]byte, error) {
	return usb.ChunkRx(length, c.maxPacketSize[ep], func(n int) ([]byte, error) {
		return c.rxPacket(ep, n)
	})
}

// rxPacket is read_impl, draining FDR for the byte count reported in CSR
// bits 16-23, then clearing RXBYTECNT (CSR bit 1) to notify the hardware
// the data has been consumed.
func (c *Controller) rxPacket(ep int, length int) ([]byte, error) {
	status := reg.Read(c.csr(ep))
	count := int((status >> 16) & 0xff)
	if count > length {
		count = length
	}

	data := make([]byte, count)
	for i := 0; i < count; i++ {
		data[i] = byte(reg.Read(c.fdr(ep)))
	}

	reg.Clear(c.csr(ep), 1)

	return data, nil
}

// Ack implements usb.Controller, per usb.hpp's ack(): IN sets TXPKTRDY
// like Tx with no data, OUT clears RXBYTECNT like the tail of Rx.
func (c *Controller) Ack(ep int, dir usb.Direction) error {
	if dir == usb.In {
		return c.Tx(ep, nil)
	}

	reg.Clear(c.csr(ep), 1)
	return nil
}

// Stall implements usb.Controller, per usb.hpp's stall(): set FORCESTALL
// (CSR bit 5).
func (c *Controller) Stall(ep int, dir usb.Direction) {
	reg.Set(c.csr(ep), 5)
}

// UnStall implements usb.Controller, per usb.hpp's un_stall(): clear
// FORCESTALL (bit 5) and STALLSENT (bit 3). usb.Dispatcher calls this only
// after checking that the endpoint is Stalled, the check-before-clear
// ordering this Controller relies on.
func (c *Controller) UnStall(ep int, dir usb.Direction) {
	reg.Clear(c.csr(ep), 5)
	reg.Clear(c.csr(ep), 3)
}

// SetAddress implements usb.Controller, per usb.hpp's
// set_device_address_impl(): GLB_STAT's FEN/FADDEN bits mark the UDP
// address-enabled state, FADDR carries the address with its own enable
// bit (bit 8).
func (c *Controller) SetAddress(addr uint8) {
	if addr != 0 {
		cur := reg.Read(c.reg(regGLBSTAT))
		reg.Write(c.reg(regGLBSTAT), (cur & ^uint32(1<<1))|0x1)
	} else {
		reg.Write(c.reg(regGLBSTAT), reg.Read(c.reg(regGLBSTAT)) & ^uint32(0x3))
	}

	reg.Write(c.reg(regFADDR), uint32(addr&0x7f)|(1<<8))
}

// Connect enables the 1.5k pullup, per usb.hpp's connect().
func (c *Controller) Connect() { reg.Write(c.reg(regTXVC), 1<<9) }

// Disconnect clears the pullup, per usb.hpp's disconnect().
func (c *Controller) Disconnect() { reg.Write(c.reg(regTXVC), 0) }

// Reset brings up endpoint 0 as a control endpoint and enables all
// endpoint interrupts, per usb.hpp's reset(). Call once after power-up,
// before Connect.
func (c *Controller) Reset(controlTransferTypeCode uint32) {
	c.SetAddress(0)
	reg.Write(c.csr(0), (1<<15)|(controlTransferTypeCode<<8))
	reg.Write(c.reg(regIER), 0xff)
}

// HandleBusReset forwards a detected UDP end-of-reset interrupt to the
// wired Dispatcher, clearing the interrupt-cause bit first. A bare-metal
// main loop wires this to the NVIC's UDP IRQ; NVIC/startup wiring is out
// of this module's scope per spec.md §1.
func (c *Controller) HandleBusReset() {
	reg.Write(c.reg(regICR), 1<<2)
	c.Reset(0x0)
	c.dispatcher.HandleBusEvent(usb.BusReset)
}

// HandleSetup decodes a setup packet received on endpoint 0 and hands it
// to the wired Dispatcher.
func (c *Controller) HandleSetup(raw []byte) error {
	s, ok := usb.ParseSetupPacket(raw)
	if !ok {
		return fmt.Errorf("atsam4s/usb: malformed setup packet %x", raw)
	}

	c.dispatcher.HandleSetup(s)
	return nil
}
