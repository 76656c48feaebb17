package msc

import (
	"encoding/binary"

	"github.com/armhal/hal/usb"
)

// Handler implements Bulk-Only Transport over a pair of bulk endpoints,
// grounded on klib::usb::msc::bulk_only_transfer::handler<Memory,
// InEndpoint, OutEndpoint>. Unlike klib's callback_handler<Usb,State>,
// which advances through named states (wait_for_cbw, receive_cbw,
// memory_read, memory_write, send_csw) across successive IRQ
// continuations, this Handler services one CBW to completion inside a
// single OUT-endpoint continuation, issuing any data-stage Tx/Rx
// synchronously through Controller -- legal because Controller.Tx/Rx are
// themselves specified to block until the hardware transaction completes.
// The OUT endpoint's continuation is armed exactly once (in SetConfig) and
// never returns done, so it is always ready for the next CBW.
type Handler struct {
	dev  *usb.Device
	ctrl usb.Controller
	in   *usb.Endpoint
	out  *usb.Endpoint
	mem  Memory

	VendorID        string
	ProductID       string
	ProductRevision string
}

// NewHandler constructs a BOT Handler serving mem over the given bulk IN/
// OUT endpoint pair, registering both on dev.
func NewHandler(dev *usb.Device, ctrl usb.Controller, in, out *usb.Endpoint, mem Memory) *Handler {
	dev.AddEndpoint(in)
	dev.AddEndpoint(out)

	return &Handler{
		dev:             dev,
		ctrl:            ctrl,
		in:              in,
		out:             out,
		mem:             mem,
		VendorID:        "ARMHAL  ",
		ProductID:       "Mass Storage    ",
		ProductRevision: "1.0 ",
	}
}

// Device implements usb.Target.
func (h *Handler) Device() *usb.Device { return h.dev }

// SetConfig implements usb.ConfigurationHandler: selecting a non-zero
// configuration starts the storage medium and arms the OUT endpoint to
// receive Command Block Wrappers.
func (h *Handler) SetConfig(value uint8) usb.Error {
	if value == 0 {
		return usb.NoError
	}

	if err := h.mem.Start(); err != nil {
		return usb.Stall
	}

	// the IN endpoint is driven directly through Controller.Tx for every
	// data-in stage and CSW, never through its own Arm/Complete cycle, so
	// only the OUT endpoint needs a continuation armed here.
	if _, err := h.out.ArmRx(h.onCommandBlock, CBWLength, CBWLength); err != nil {
		return usb.Stall
	}

	return usb.NoError
}

// HandleClassRequest implements usb.ClassRequestHandler, serving the two
// BOT class requests (BOT 1.0 §3.1, §3.2).
func (h *Handler) HandleClassRequest(s usb.SetupPacket) ([]byte, usb.Error) {
	switch s.Request {
	case RequestGetMaxLUN:
		return []byte{0}, usb.NoError
	case RequestBulkOnlyReset:
		return nil, usb.NoError
	default:
		return nil, usb.Stall
	}
}

// onCommandBlock is the permanently-armed OUT endpoint continuation: each
// completion delivers one 31-byte CBW, which is fully serviced (including
// any data stage and its CSW) before returning, and the endpoint is kept
// transferring to receive the next one.
func (h *Handler) onCommandBlock(data []byte, err usb.Error) ([]byte, bool) {
	if err != usb.NoError {
		return nil, false
	}

	cbw, ok := ParseCBW(data)
	if !ok {
		h.ctrl.Stall(h.in.Number(), usb.In)
		return nil, false
	}

	status, residue := h.execute(cbw)
	h.sendStatus(cbw.Tag, status, residue)

	return nil, false
}

func (h *Handler) sendStatus(tag uint32, status uint8, residue uint32) {
	csw := CommandStatusWrapper{Tag: tag, DataResidue: residue, Status: status}
	h.ctrl.Tx(h.in.Number(), csw.Bytes())
}

// execute dispatches one SCSI command block, returning the CSW status and
// data residue (BOT 1.0 §5.2, §6.1).
func (h *Handler) execute(cbw CommandBlockWrapper) (status uint8, residue uint32) {
	switch cbw.CB[0] {
	case ScsiTestUnitReady:
		if h.mem.Ready() {
			return StatusPassed, 0
		}
		return StatusFailed, cbw.DataTransferLength

	case ScsiRequestSense:
		return h.dataIn(cbw, h.senseData())

	case ScsiInquiry:
		return h.dataIn(cbw, h.inquiryData())

	case ScsiModeSense6, ScsiModeSense10:
		return h.dataIn(cbw, h.modeSenseData())

	case ScsiStartStopUnit:
		return StatusPassed, 0

	case ScsiReceiveDiagnosticResult:
		return h.dataIn(cbw, make([]byte, 32))

	case ScsiAllowMediumRemoval:
		return StatusPassed, 0

	case ScsiReadFormatCapacities:
		return h.dataIn(cbw, h.formatCapacityData())

	case ScsiReadCapacity10:
		return h.dataIn(cbw, h.capacity10Data())

	case ScsiReadCapacity16:
		return h.dataIn(cbw, h.capacity16Data())

	case ScsiRead10:
		return h.read10(cbw)

	case ScsiWrite10:
		return h.write10(cbw)

	default:
		return StatusFailed, cbw.DataTransferLength
	}
}

// dataIn sends buf (truncated to the host-requested transfer length) as
// the CBW's data-in stage.
func (h *Handler) dataIn(cbw CommandBlockWrapper, buf []byte) (uint8, uint32) {
	n := len(buf)
	if uint32(n) > cbw.DataTransferLength {
		n = int(cbw.DataTransferLength)
	}

	if err := h.ctrl.Tx(h.in.Number(), buf[:n]); err != nil {
		return StatusFailed, cbw.DataTransferLength
	}

	return StatusPassed, cbw.DataTransferLength - uint32(n)
}

func (h *Handler) read10(cbw CommandBlockWrapper) (uint8, uint32) {
	r := parseRead10(cbw.CB)
	total := int(r.blocks) * BlockSize

	buf := make([]byte, total)
	if err := h.mem.ReadBlock(r.lba, buf); err != nil {
		return StatusFailed, cbw.DataTransferLength
	}

	return h.dataIn(cbw, buf)
}

func (h *Handler) write10(cbw CommandBlockWrapper) (uint8, uint32) {
	r := parseRead10(cbw.CB)
	total := int(r.blocks) * BlockSize

	buf, err := h.ctrl.Rx(h.out.Number(), total)
	if err != nil || len(buf) != total {
		return StatusFailed, cbw.DataTransferLength
	}

	if !h.mem.IsWritable() {
		return StatusFailed, cbw.DataTransferLength
	}

	if err := h.mem.WriteBlock(r.lba, buf); err != nil {
		return StatusFailed, cbw.DataTransferLength
	}

	return StatusPassed, cbw.DataTransferLength - uint32(total)
}

// inquiryData builds the 36-byte STANDARD INQUIRY DATA response (SPC-4
// §6.4.2). The first eight bytes are fixed (direct-access block device,
// removable medium, SCSI-2 version/response format, 31 bytes of
// additional length, and the SCCS/ACC/TPGS/BQue/EncServ/WBus16 flag
// bytes), followed by the vendor-identification, product-identification
// and product-revision-level ASCII fields.
func (h *Handler) inquiryData() []byte {
	buf := make([]byte, 36)
	copy(buf[0:8], []byte{0x00, 0x80, 0x02, 0x02, 0x1f, 0x73, 0x6d, 0x69})
	copy(buf[8:16], padded(h.VendorID, 8))
	copy(buf[16:32], padded(h.ProductID, 16))
	copy(buf[32:36], padded(h.ProductRevision, 4))
	return buf
}

func padded(s string, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = ' '
	}
	copy(buf, s)
	return buf
}

// senseData builds a 10-byte REQUEST SENSE response. The standard SPC-4
// fixed sense format is 18 bytes; klib's bulk_only_transfer emits a
// truncated 10-byte form carrying only the fields BOT hosts actually
// inspect (response code, sense key, and at byte 4 an additional sense
// code), which this package reproduces for wire compatibility with hosts
// written against it.
func (h *Handler) senseData() []byte {
	buf := make([]byte, 10)
	buf[0] = 0x70 // current errors, fixed format
	if !h.mem.Ready() {
		buf[2] = 0x02 // NOT READY
		buf[4] = 0x3a // ADDITIONAL SENSE CODE: medium not present
	}
	return buf
}

// modeSenseData builds a minimal MODE SENSE response: a 4-byte header
// whose device-specific parameter byte carries the write-protect bit.
func (h *Handler) modeSenseData() []byte {
	buf := make([]byte, 4)
	buf[0] = 3 // mode data length
	if !h.mem.IsWritable() {
		buf[2] = 0x80
	}
	return buf
}

// formatCapacityData builds a 12-byte READ FORMAT CAPACITIES response
// (capacity list header + one current-maximum-capacity descriptor).
func (h *Handler) formatCapacityData() []byte {
	buf := make([]byte, 12)
	buf[3] = 0x08 // capacity list length

	blocks := uint32(h.mem.Size() / BlockSize)
	binary.BigEndian.PutUint32(buf[4:8], blocks)

	buf[8] = 0x02 // descriptor code: formatted media
	binary.BigEndian.PutUint32(buf[8:12], 0x02000000|(BlockSize&0x00ffffff))

	return buf
}

// capacity10Data builds the 8-byte READ CAPACITY(10) response: last valid
// LBA and block size, both big-endian (SBC-3 §5.16).
func (h *Handler) capacity10Data() []byte {
	buf := make([]byte, 8)

	lastLBA := uint32(h.mem.Size()/BlockSize) - 1
	binary.BigEndian.PutUint32(buf[0:4], lastLBA)
	binary.BigEndian.PutUint32(buf[4:8], BlockSize)

	return buf
}

// capacity16Data builds the 32-byte READ CAPACITY(16) response.
func (h *Handler) capacity16Data() []byte {
	buf := make([]byte, 32)

	lastLBA := h.mem.Size()/BlockSize - 1
	binary.BigEndian.PutUint64(buf[0:8], lastLBA)
	binary.BigEndian.PutUint32(buf[8:12], BlockSize)

	return buf
}
