// USB Mass Storage Class Bulk-Only Transport
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package msc implements a USB Mass Storage Class device using the
// Bulk-Only Transport (BOT), grounded on klib/usb/msc/bot.hpp and
// klib/usb/msc/bulk_only_transfer.hpp: a CBW/CSW state machine dispatching
// a small SCSI command subset against a block-addressed memory backend.
package msc

import "encoding/binary"

// Class-specific request codes (USB Mass Storage Class Bulk-Only Transport,
// Revision 1.0, §3).
const (
	RequestBulkOnlyReset = 0xff
	RequestGetMaxLUN     = 0xfe
)

// SCSI command opcodes used by this subset of SCSI Primary/Block Commands.
const (
	ScsiTestUnitReady           = 0x00
	ScsiRequestSense            = 0x03
	ScsiInquiry                 = 0x12
	ScsiModeSense6              = 0x1a
	ScsiStartStopUnit           = 0x1b
	ScsiReceiveDiagnosticResult = 0x1c
	ScsiAllowMediumRemoval      = 0x1e
	ScsiReadFormatCapacities    = 0x23
	ScsiReadCapacity10          = 0x25
	ScsiRead10                  = 0x28
	ScsiWrite10                 = 0x2a
	ScsiModeSense10             = 0x5a
	ScsiReadCapacity16          = 0x9e
)

// CSW status codes.
const (
	StatusPassed     = 0x00
	StatusFailed     = 0x01
	StatusPhaseError = 0x02
)

// CBWSignature and CSWSignature are the little-endian magic values opening
// every Command Block Wrapper and Command Status Wrapper (BOT 1.0 §5.1,
// §5.2).
const (
	CBWSignature = 0x43425355
	CSWSignature = 0x53425355
)

// CBWLength and CSWLength are the wire sizes of the two wrapper structures.
const (
	CBWLength = 31
	CSWLength = 13
)

// BlockSize is the logical block size this package's memory backend
// contract assumes.
const BlockSize = 512

// CommandBlockWrapper implements BOT 1.0 Table 5.1.
type CommandBlockWrapper struct {
	Tag                uint32
	DataTransferLength uint32
	Flags              uint8
	LUN                uint8
	CBLength           uint8
	CB                 [16]byte
}

// ParseCBW decodes a 31-byte Command Block Wrapper, validating its
// signature and CBWCBLength bounds per BOT 1.0 §6.2.
func ParseCBW(buf []byte) (CommandBlockWrapper, bool) {
	var c CommandBlockWrapper

	if len(buf) != CBWLength {
		return c, false
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != CBWSignature {
		return c, false
	}

	c.Tag = binary.LittleEndian.Uint32(buf[4:8])
	c.DataTransferLength = binary.LittleEndian.Uint32(buf[8:12])
	c.Flags = buf[12]
	c.LUN = buf[13] & 0x0f
	c.CBLength = buf[14] & 0x1f
	copy(c.CB[:], buf[15:31])

	if c.CBLength == 0 || c.CBLength > 16 {
		return c, false
	}

	return c, true
}

// DataIn reports whether the CBW's direction bit requests a device-to-host
// data stage (BOT 1.0 §5.1, bmCBWFlags bit 7).
func (c CommandBlockWrapper) DataIn() bool {
	return c.Flags&0x80 != 0
}

// CommandStatusWrapper implements BOT 1.0 Table 5.2.
type CommandStatusWrapper struct {
	Tag         uint32
	DataResidue uint32
	Status      uint8
}

// Bytes renders the 13-byte Command Status Wrapper.
func (c CommandStatusWrapper) Bytes() []byte {
	buf := make([]byte, CSWLength)
	binary.LittleEndian.PutUint32(buf[0:4], CSWSignature)
	binary.LittleEndian.PutUint32(buf[4:8], c.Tag)
	binary.LittleEndian.PutUint32(buf[8:12], c.DataResidue)
	buf[12] = c.Status
	return buf
}

// read10 implements SCSI Block Commands READ(10)/WRITE(10) (SBC-3 §5.18,
// §5.32), whose logical block address and transfer length fields are
// big-endian, unlike every USB descriptor field in this module.
type read10 struct {
	lba    uint32
	blocks uint16
}

func parseRead10(cb [16]byte) read10 {
	return read10{
		lba:    binary.BigEndian.Uint32(cb[2:6]),
		blocks: binary.BigEndian.Uint16(cb[7:9]),
	}
}
