package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceDescriptorBytes(t *testing.T) {
	var d DeviceDescriptor
	d.SetDefaults()
	d.VendorId = 0x1209
	d.ProductId = 0x0001

	b := d.Bytes()
	assert.Len(t, b, 18)
	assert.Equal(t, byte(18), b[0])
	assert.Equal(t, byte(DescriptorDevice), b[1])
	// bcdUSB little-endian
	assert.Equal(t, []byte{0x00, 0x02}, b[2:4])
	assert.Equal(t, []byte{0x09, 0x12}, b[8:10])
}

func TestConfigurationDescriptorTotalLength(t *testing.T) {
	conf := &ConfigurationDescriptor{}
	conf.SetDefaults()

	iface := &InterfaceDescriptor{}
	iface.SetDefaults()
	iface.InterfaceClass = 0x03 // HID

	ep := &EndpointDescriptor{}
	ep.SetDefaults()
	ep.EndpointAddress = 0x81
	iface.AddEndpoint(ep)

	conf.AddInterface(iface)

	b := conf.Bytes()
	// 9 (config) + 9 (interface) + 7 (endpoint) = 25
	assert.Len(t, b, 25)
	assert.EqualValues(t, 25, b[2]|uint8(0)) // low byte of total length
	assert.EqualValues(t, 1, conf.NumInterfaces)
}

func TestStringDescriptorLangID(t *testing.T) {
	sd := &StringDescriptor{String: []byte{0x09, 0x04}}
	b := sd.bytesLangID()
	assert.Equal(t, []byte{0x04, DescriptorString, 0x09, 0x04}, b)
}
