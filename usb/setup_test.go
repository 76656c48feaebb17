package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSetupPacket(t *testing.T) {
	// GET_DESCRIPTOR(DEVICE, index 0), wLength 64, device-to-host,
	// standard, device recipient.
	buf := []byte{0x80, GetDescriptor, 0x00, 0x01, 0x00, 0x00, 0x40, 0x00}

	s, ok := ParseSetupPacket(buf)
	assert.True(t, ok)
	assert.Equal(t, uint8(GetDescriptor), s.Request)
	assert.Equal(t, In, s.Direction())
	assert.Equal(t, RecipientDevice, s.Recipient())
	assert.Equal(t, TypeStandard, s.Type())
	assert.EqualValues(t, 0x0100, s.Value)
	assert.EqualValues(t, 64, s.Length)
}

func TestParseSetupPacketShort(t *testing.T) {
	_, ok := ParseSetupPacket([]byte{0x80, 0x06})
	assert.False(t, ok)
}

func TestEndpointAddress(t *testing.T) {
	assert.Equal(t, 0x03, EndpointNumber(0x83))
	assert.Equal(t, 0x03, EndpointNumber(0x03))
}
