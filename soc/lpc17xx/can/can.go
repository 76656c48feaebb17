// Package can implements the can package's capability interfaces for the
// NXP LPC17xx CAN controller.
//
// Grounded on original_source/targets/core/nxp/lpc175x/can.hpp's can<Can>
// class: the SR status bits tested by has_data/is_busy/has_error, the
// TFI1/TID1/TDA1/TDB1 transmit-buffer quad and CMR "request transmit" write
// in write_impl, and RFS/RID/RDA/RDB plus the CMR "release receive buffer"
// write in read are ported directly. klib's multi-buffer selection (up to
// three free hardware transmit buffers) is simplified to the single first
// buffer, since this package's Frame-at-a-time Controller interface does
// not expose buffer identity to the caller.
package can

import (
	"github.com/armhal/hal/can"
	"github.com/armhal/hal/internal/reg"
)

// Register offsets within the CAN controller.
const (
	regSR  = 0x04
	regCMR = 0x10
	regGSR = 0x08
	regRFS = 0x20
	regRID = 0x24
	regRDA = 0x28
	regRDB = 0x2c
	regTFI = 0x30
	regTID = 0x34
	regTDA = 0x38
	regTDB = 0x3c
)

const (
	srTxBuf1Empty = 1 << 2
	srRxBuf       = 1 << 0
)

// CAN drives one LPC17xx CAN controller instance.
type CAN struct {
	Base uint32
}

// HasData implements can.Controller, per can<Can>::has_data.
func (c *CAN) HasData() bool {
	return reg.Read(c.Base+regSR)&srRxBuf != 0
}

// IsBusy implements can.Controller, per can<Can>::is_busy (single-buffer
// case).
func (c *CAN) IsBusy() bool {
	return reg.Read(c.Base+regSR)&srTxBuf1Empty == 0
}

// HasError implements can.Controller, per can<Can>::has_error.
func (c *CAN) HasError() bool {
	return reg.Read(c.Base+regGSR)&(1<<6) != 0
}

// Write implements can.Controller, per write_impl's buffer-1 path.
func (c *CAN) Write(frame can.Frame) {
	if c.IsBusy() {
		return
	}

	extBit, rtrBit := uint32(0), uint32(0)
	if frame.Extended {
		extBit = 1 << 31
	}
	if frame.Remote {
		rtrBit = 1 << 30
	}

	reg.Write(c.Base+regTFI, extBit|rtrBit|(uint32(frame.Size)<<16))
	reg.Write(c.Base+regTID, frame.Address)

	if !frame.Remote {
		reg.Write(c.Base+regTDA, uint32(frame.Data[0])|uint32(frame.Data[1])<<8|uint32(frame.Data[2])<<16|uint32(frame.Data[3])<<24)
		reg.Write(c.Base+regTDB, uint32(frame.Data[4])|uint32(frame.Data[5])<<8|uint32(frame.Data[6])<<16|uint32(frame.Data[7])<<24)
	}

	reg.Write(c.Base+regCMR, 0x1|(0x1<<5))
}

// Read implements can.Controller, per can<Can>::read.
func (c *CAN) Read() can.Frame {
	rfs := reg.Read(c.Base + regRFS)

	var frame can.Frame
	frame.Size = uint8((rfs >> 16) & 0xf)
	frame.Remote = (rfs>>30)&0x1 != 0
	frame.Extended = rfs>>31 != 0
	frame.Address = reg.Read(c.Base + regRID)

	rda := reg.Read(c.Base + regRDA)
	rdb := reg.Read(c.Base + regRDB)
	frame.Data = [8]byte{
		byte(rda), byte(rda >> 8), byte(rda >> 16), byte(rda >> 24),
		byte(rdb), byte(rdb >> 8), byte(rdb >> 16), byte(rdb >> 24),
	}

	reg.Write(c.Base+regCMR, 1<<2)

	return frame
}

var _ can.Controller = (*CAN)(nil)
