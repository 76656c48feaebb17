package msc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armhal/hal/usb"
)

type fakeController struct {
	tx  [][]byte
	rx  []byte
	rxN int
}

func (f *fakeController) Tx(ep int, data []byte) error {
	f.tx = append(f.tx, append([]byte(nil), data...))
	return nil
}
func (f *fakeController) Rx(ep int, length int) ([]byte, error) {
	f.rxN = length
	return f.rx, nil
}
func (f *fakeController) Ack(ep int, dir usb.Direction) error { return nil }
func (f *fakeController) Stall(ep int, dir usb.Direction)     {}
func (f *fakeController) UnStall(ep int, dir usb.Direction)   {}
func (f *fakeController) SetAddress(addr uint8)               {}

type fakeMemory struct {
	size      uint64
	ready     bool
	writable  bool
	blocks    map[uint32][]byte
	lastWrite []byte
	lastWLBA  uint32
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{
		size:     64 * 1024,
		ready:    true,
		writable: true,
		blocks:   make(map[uint32][]byte),
	}
}

func (m *fakeMemory) Init() error      { return nil }
func (m *fakeMemory) Start() error     { return nil }
func (m *fakeMemory) Stop() error      { return nil }
func (m *fakeMemory) Ready() bool      { return m.ready }
func (m *fakeMemory) CanRemove() bool  { return true }
func (m *fakeMemory) Size() uint64     { return m.size }
func (m *fakeMemory) IsWritable() bool { return m.writable }

func (m *fakeMemory) ReadBlock(lba uint32, buf []byte) error {
	data, ok := m.blocks[lba]
	if !ok {
		data = make([]byte, len(buf))
	}
	copy(buf, data)
	return nil
}

func (m *fakeMemory) WriteBlock(lba uint32, buf []byte) error {
	m.lastWLBA = lba
	m.lastWrite = append([]byte(nil), buf...)
	m.blocks[lba] = append([]byte(nil), buf...)
	return nil
}

func buildCBW(tag uint32, dataLen uint32, flagsIn bool, cb []byte) []byte {
	buf := make([]byte, CBWLength)
	binary.LittleEndian.PutUint32(buf[0:4], CBWSignature)
	binary.LittleEndian.PutUint32(buf[4:8], tag)
	binary.LittleEndian.PutUint32(buf[8:12], dataLen)
	if flagsIn {
		buf[12] = 0x80
	}
	buf[13] = 0
	buf[14] = uint8(len(cb))
	copy(buf[15:], cb)
	return buf
}

// TestInquiry exercises the "MSC INQUIRY" scenario: a CBW carrying the
// SCSI INQUIRY command must yield a 36-byte data-in stage followed by a
// CSW reporting StatusPassed.
func TestInquiry(t *testing.T) {
	dev := usb.NewDevice()
	in := usb.NewEndpoint(1, usb.InMode, 64)
	out := usb.NewEndpoint(1, usb.OutMode, 64)
	in.Enable()
	out.Enable()

	ctrl := &fakeController{}
	mem := newFakeMemory()
	h := NewHandler(dev, ctrl, in, out, mem)
	require.Equal(t, usb.NoError, h.SetConfig(1))

	cb := make([]byte, 6)
	cb[0] = ScsiInquiry
	cb[4] = 36

	cbw := buildCBW(0x1234, 36, true, cb)

	_, done := out.Complete(cbw, usb.NoError)
	assert.False(t, done)

	require.Len(t, ctrl.tx, 2)

	inquiry := ctrl.tx[0]
	require.Len(t, inquiry, 36)
	assert.Equal(t, []byte{0x00, 0x80, 0x02, 0x02, 0x1f, 0x73, 0x6d, 0x69}, inquiry[0:8])
	assert.Equal(t, "ARMHAL  ", string(inquiry[8:16]))

	csw := ctrl.tx[1]
	require.Len(t, csw, CSWLength)
	assert.Equal(t, uint32(CSWSignature), binary.LittleEndian.Uint32(csw[0:4]))
	assert.Equal(t, uint32(0x1234), binary.LittleEndian.Uint32(csw[4:8]))
	assert.Equal(t, uint8(StatusPassed), csw[12])
}

// TestRead10 exercises the "MSC READ(10) of LBA 0, 1 block" scenario.
func TestRead10(t *testing.T) {
	dev := usb.NewDevice()
	in := usb.NewEndpoint(1, usb.InMode, 64)
	out := usb.NewEndpoint(1, usb.OutMode, 64)
	in.Enable()
	out.Enable()

	ctrl := &fakeController{}
	mem := newFakeMemory()
	mem.blocks[0] = append(make([]byte, 0, BlockSize), bytesOf(0xAB, BlockSize)...)
	h := NewHandler(dev, ctrl, in, out, mem)
	require.Equal(t, usb.NoError, h.SetConfig(1))

	cb := make([]byte, 10)
	cb[0] = ScsiRead10
	binary.BigEndian.PutUint32(cb[2:6], 0)
	binary.BigEndian.PutUint16(cb[7:9], 1)

	cbw := buildCBW(0x5678, BlockSize, true, cb)

	out.Complete(cbw, usb.NoError)

	require.Len(t, ctrl.tx, 2)
	assert.Equal(t, bytesOf(0xAB, BlockSize), ctrl.tx[0])

	csw := ctrl.tx[1]
	assert.Equal(t, uint8(StatusPassed), csw[12])
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(csw[8:12]))
}

// TestWrite10 exercises a WRITE(10) data-out stage: the CBW is followed by
// the handler pulling BlockSize bytes via Controller.Rx and handing them to
// Memory.WriteBlock.
func TestWrite10(t *testing.T) {
	dev := usb.NewDevice()
	in := usb.NewEndpoint(1, usb.InMode, 64)
	out := usb.NewEndpoint(1, usb.OutMode, 64)
	in.Enable()
	out.Enable()

	ctrl := &fakeController{rx: bytesOf(0xCD, BlockSize)}
	mem := newFakeMemory()
	h := NewHandler(dev, ctrl, in, out, mem)
	require.Equal(t, usb.NoError, h.SetConfig(1))

	cb := make([]byte, 10)
	cb[0] = ScsiWrite10
	binary.BigEndian.PutUint32(cb[2:6], 7)
	binary.BigEndian.PutUint16(cb[7:9], 1)

	cbw := buildCBW(0x9999, BlockSize, false, cb)

	out.Complete(cbw, usb.NoError)

	assert.Equal(t, uint32(7), mem.lastWLBA)
	assert.Equal(t, bytesOf(0xCD, BlockSize), mem.lastWrite)

	require.Len(t, ctrl.tx, 1) // only the CSW, no data-in stage
	assert.Equal(t, uint8(StatusPassed), ctrl.tx[0][12])
}

// TestGetMaxLUN exercises the GET_MAX_LUN class request.
func TestGetMaxLUN(t *testing.T) {
	dev := usb.NewDevice()
	in := usb.NewEndpoint(1, usb.InMode, 64)
	out := usb.NewEndpoint(1, usb.OutMode, 64)
	in.Enable()
	out.Enable()

	ctrl := &fakeController{}
	h := NewHandler(dev, ctrl, in, out, newFakeMemory())

	data, err := h.HandleClassRequest(usb.SetupPacket{Request: RequestGetMaxLUN})
	require.Equal(t, usb.NoError, err)
	assert.Equal(t, []byte{0}, data)
}

func bytesOf(b byte, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}
