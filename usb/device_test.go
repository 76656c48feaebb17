package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeController is an in-memory Controller used to test Dispatcher without
// any real register access.
type fakeController struct {
	txLog     [][]byte
	acked     []int
	stalled   []int
	address   uint8
	addressed bool
}

func (f *fakeController) Tx(ep int, data []byte) error {
	cp := append([]byte(nil), data...)
	f.txLog = append(f.txLog, cp)
	return nil
}

func (f *fakeController) Rx(ep int, length int) ([]byte, error) {
	return nil, nil
}

func (f *fakeController) Ack(ep int, dir Direction) error {
	f.acked = append(f.acked, ep)
	return nil
}

func (f *fakeController) Stall(ep int, dir Direction) {
	f.stalled = append(f.stalled, ep)
}

func (f *fakeController) UnStall(ep int, dir Direction) {}

func (f *fakeController) SetAddress(addr uint8) {
	f.address = addr
	f.addressed = true
}

type fakeTarget struct {
	dev *Device
}

func (t *fakeTarget) Device() *Device { return t.dev }

func newFakeDevice() *Device {
	dev := NewDevice()
	dev.Descriptor.SetDefaults()
	dev.Descriptor.VendorId = 0x1209
	dev.Descriptor.ProductId = 0x0001

	conf := &ConfigurationDescriptor{}
	conf.SetDefaults()
	dev.AddConfiguration(conf)

	return dev
}

// TestSetAddressDeferred exercises the "USB set address" end-to-end
// scenario: the status stage must be acknowledged before the hardware
// address is programmed, and in that order.
func TestSetAddressDeferred(t *testing.T) {
	dev := newFakeDevice()
	ctrl := &fakeController{}
	d := &Dispatcher{Controller: ctrl, Target: &fakeTarget{dev: dev}}

	s, ok := ParseSetupPacket([]byte{0x00, SetAddress, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00})
	require.True(t, ok)

	d.HandleSetup(s)

	require.Len(t, ctrl.acked, 1)
	assert.Equal(t, 0, ctrl.acked[0])
	assert.True(t, ctrl.addressed)
	assert.EqualValues(t, 5, ctrl.address)
}

func TestGetDescriptorDevice(t *testing.T) {
	dev := newFakeDevice()
	ctrl := &fakeController{}
	d := &Dispatcher{Controller: ctrl, Target: &fakeTarget{dev: dev}}

	s, ok := ParseSetupPacket([]byte{0x80, GetDescriptor, 0x00, 0x01, 0x00, 0x00, 0x40, 0x00})
	require.True(t, ok)

	d.HandleSetup(s)

	require.Len(t, ctrl.txLog, 1)
	assert.Equal(t, dev.Descriptor.Bytes(), ctrl.txLog[0])
	assert.Empty(t, ctrl.stalled)
}

func TestSetConfigurationInvokesHandler(t *testing.T) {
	dev := newFakeDevice()
	ctrl := &fakeController{}

	target := &configTrackingTarget{dev: dev}
	d := &Dispatcher{Controller: ctrl, Target: target}

	s, ok := ParseSetupPacket([]byte{0x00, SetConfiguration, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00})
	require.True(t, ok)

	d.HandleSetup(s)

	assert.EqualValues(t, 1, dev.ConfigurationValue)
	assert.EqualValues(t, 1, target.configured)
	require.Len(t, ctrl.acked, 1)
}

type configTrackingTarget struct {
	dev        *Device
	configured uint8
}

func (t *configTrackingTarget) Device() *Device { return t.dev }

func (t *configTrackingTarget) SetConfig(value uint8) Error {
	t.configured = value
	return NoError
}

func TestUnknownClassRequestStalls(t *testing.T) {
	dev := newFakeDevice()
	ctrl := &fakeController{}
	d := &Dispatcher{Controller: ctrl, Target: &fakeTarget{dev: dev}}

	// bmRequestType type=class(1), recipient=interface
	s, ok := ParseSetupPacket([]byte{0x21, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	require.True(t, ok)

	d.HandleSetup(s)

	require.Len(t, ctrl.stalled, 1)
	assert.Equal(t, 0, ctrl.stalled[0])
}

// TestHandleBusEventResetInvokesEveryArmedEndpoint covers testable property
// 8: a bus reset invokes every endpoint callback armed at the time, exactly
// once, with err == Reset, and returns the device to its unaddressed,
// unconfigured state.
func TestHandleBusEventResetInvokesEveryArmedEndpoint(t *testing.T) {
	dev := newFakeDevice()
	dev.ConfigurationValue = 1
	ctrl := &fakeController{}
	d := &Dispatcher{Controller: ctrl, Target: &fakeTarget{dev: dev}}

	epIn := NewEndpoint(1, InMode, 64)
	epIn.Enable()
	epOut := NewEndpoint(2, OutMode, 64)
	epOut.Enable()
	dev.AddEndpoint(epIn)
	dev.AddEndpoint(epOut)

	var gotIn, gotOut Error
	inCalls, outCalls := 0, 0

	_, err := epIn.Arm(In, func(data []byte, e Error) ([]byte, bool) {
		inCalls++
		gotIn = e
		return nil, true
	})
	require.NoError(t, err)

	_, err = epOut.Arm(Out, func(data []byte, e Error) ([]byte, bool) {
		outCalls++
		gotOut = e
		return nil, true
	})
	require.NoError(t, err)

	d.HandleBusEvent(BusReset)

	assert.Equal(t, 1, inCalls)
	assert.Equal(t, 1, outCalls)
	assert.Equal(t, Reset, gotIn)
	assert.Equal(t, Reset, gotOut)
	assert.EqualValues(t, 0, dev.ConfigurationValue)
	assert.Equal(t, EndpointDisabled, epIn.State())
	assert.Equal(t, EndpointDisabled, epOut.State())
}

// TestHandleSetupClearsControlEndpointPendingInterrupt covers testable
// property 7: a setup packet preempting a pending OUT clears the latch
// before dispatching, so a later Arm(Out, ...) does not see a stale replay.
func TestHandleSetupClearsControlEndpointPendingInterrupt(t *testing.T) {
	dev := newFakeDevice()
	ctrl := &fakeController{}
	ep0 := NewEndpoint(0, OutMode, 64)
	ep0.Enable()

	d := &Dispatcher{Controller: ctrl, Target: &fakeTarget{dev: dev}, ControlEndpoint: ep0}

	require.True(t, ep0.NotifyOutPending())

	s, ok := ParseSetupPacket([]byte{0x00, SetAddress, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00})
	require.True(t, ok)

	d.HandleSetup(s)

	replay, err := ep0.Arm(Out, func(data []byte, e Error) ([]byte, bool) {
		return nil, true
	})
	require.NoError(t, err)
	assert.False(t, replay, "setup must clear a pending OUT latch before dispatching")
}
