package usb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// The descriptor types below follow the byte-exact little-endian layouts of
// USB 2.0 §9.6, adapted from tamago's soc/imx6/usb/descriptor.go (itself
// modeling the same standard tables) and generalized with the BOS,
// Interface Association and Endpoint Companion descriptors klib also
// defines (klib/usb/descriptor.hpp, klib/usb/usb/descriptor.hpp). They are
// assembled once at device construction time, satisfying the "packed wire
// formats" design note: every Bytes() method below performs a plain
// binary.Write over the struct (or, where a slice field must be excluded, a
// manual field-by-field write). The only logic beyond byte order is that the
// ConfigurationDescriptor, StringDescriptor and BOSDescriptor Bytes()
// methods first recompute and store their length and count fields.

// DeviceDescriptor implements USB 2.0 Table 9-8.
type DeviceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	BCDUSB            uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize     uint8
	VendorId          uint16
	ProductId         uint16
	BCDDevice         uint16
	Manufacturer      uint8
	Product           uint8
	SerialNumber      uint8
	NumConfigurations uint8
}

// SetDefaults initializes the fields with typical/valid values.
func (d *DeviceDescriptor) SetDefaults() {
	d.Length = 18
	d.DescriptorType = DescriptorDevice
	d.BCDUSB = 0x0200
	d.MaxPacketSize = 64
	d.NumConfigurations = 1
}

// Bytes converts the descriptor structure to its binary representation.
func (d *DeviceDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, d)
	return buf.Bytes()
}

// DeviceQualifierDescriptor implements USB 2.0 Table 9-9, reported by a
// full-speed-only device to indicate it has no high-speed capability.
type DeviceQualifierDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	BCDUSB            uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize     uint8
	NumConfigurations uint8
	Reserved          uint8
}

func (d *DeviceQualifierDescriptor) SetDefaults() {
	d.Length = 10
	d.DescriptorType = DescriptorDeviceQualifier
	d.BCDUSB = 0x0200
	d.MaxPacketSize = 64
	d.NumConfigurations = 1
}

func (d *DeviceQualifierDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, d)
	return buf.Bytes()
}

// ConfigurationDescriptor implements USB 2.0 Table 9-10.
type ConfigurationDescriptor struct {
	Length             uint8
	DescriptorType     uint8
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	Configuration      uint8
	Attributes         uint8
	MaxPower           uint8

	Interfaces []*InterfaceDescriptor
}

func (c *ConfigurationDescriptor) SetDefaults() {
	c.Length = 9
	c.DescriptorType = DescriptorConfiguration
	c.ConfigurationValue = 1
	c.Attributes = 0x80 // bus powered
	c.MaxPower = 250    // 500mA
}

// AddInterface appends iface to the configuration, auto-numbering it
// unless it is an alternate setting of an interface already present.
func (c *ConfigurationDescriptor) AddInterface(iface *InterfaceDescriptor) {
	if iface.AlternateSetting == 0 {
		iface.InterfaceNumber = uint8(c.NumInterfaces)
		c.NumInterfaces++
	} else {
		iface.InterfaceNumber = uint8(c.NumInterfaces - 1)
	}

	c.Interfaces = append(c.Interfaces, iface)
}

// Bytes assembles the configuration descriptor followed by every interface
// (and its endpoints/class descriptors), computing TotalLength, as
// returned in response to a single GET_DESCRIPTOR(CONFIGURATION) request.
func (c *ConfigurationDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)

	var ifaces []byte
	for _, iface := range c.Interfaces {
		ifaces = append(ifaces, iface.Bytes()...)
	}

	c.TotalLength = uint16(c.Length) + uint16(len(ifaces))

	binary.Write(buf, binary.LittleEndian, c.Length)
	binary.Write(buf, binary.LittleEndian, c.DescriptorType)
	binary.Write(buf, binary.LittleEndian, c.TotalLength)
	binary.Write(buf, binary.LittleEndian, c.NumInterfaces)
	binary.Write(buf, binary.LittleEndian, c.ConfigurationValue)
	binary.Write(buf, binary.LittleEndian, c.Configuration)
	binary.Write(buf, binary.LittleEndian, c.Attributes)
	binary.Write(buf, binary.LittleEndian, c.MaxPower)
	buf.Write(ifaces)

	return buf.Bytes()
}

// InterfaceAssociationDescriptor implements the Interface Association
// Descriptor ECN, grouping a run of interfaces into one function (e.g. a
// composite HID+MSC device).
type InterfaceAssociationDescriptor struct {
	Length           uint8
	DescriptorType   uint8
	FirstInterface   uint8
	InterfaceCount   uint8
	FunctionClass    uint8
	FunctionSubClass uint8
	FunctionProtocol uint8
	Function         uint8
}

func (i *InterfaceAssociationDescriptor) SetDefaults() {
	i.Length = 8
	i.DescriptorType = DescriptorInterfaceAssociation
	i.InterfaceCount = 1
}

func (i *InterfaceAssociationDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, i)
	return buf.Bytes()
}

// InterfaceDescriptor implements USB 2.0 Table 9-12.
type InterfaceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	Interface         uint8

	IAD              *InterfaceAssociationDescriptor
	ClassDescriptors [][]byte
	Endpoints        []*EndpointDescriptor
}

func (i *InterfaceDescriptor) SetDefaults() {
	i.Length = 9
	i.DescriptorType = DescriptorInterface
}

// AddEndpoint appends ep, updating NumEndpoints.
func (i *InterfaceDescriptor) AddEndpoint(ep *EndpointDescriptor) {
	i.Endpoints = append(i.Endpoints, ep)
	i.NumEndpoints = uint8(len(i.Endpoints))
}

func (i *InterfaceDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)

	if i.IAD != nil {
		buf.Write(i.IAD.Bytes())
	}

	binary.Write(buf, binary.LittleEndian, i.Length)
	binary.Write(buf, binary.LittleEndian, i.DescriptorType)
	binary.Write(buf, binary.LittleEndian, i.InterfaceNumber)
	binary.Write(buf, binary.LittleEndian, i.AlternateSetting)
	binary.Write(buf, binary.LittleEndian, i.NumEndpoints)
	binary.Write(buf, binary.LittleEndian, i.InterfaceClass)
	binary.Write(buf, binary.LittleEndian, i.InterfaceSubClass)
	binary.Write(buf, binary.LittleEndian, i.InterfaceProtocol)
	binary.Write(buf, binary.LittleEndian, i.Interface)

	for _, cd := range i.ClassDescriptors {
		buf.Write(cd)
	}

	for _, ep := range i.Endpoints {
		buf.Write(ep.Bytes())
	}

	return buf.Bytes()
}

// EndpointDescriptor implements USB 2.0 Table 9-13.
type EndpointDescriptor struct {
	Length          uint8
	DescriptorType  uint8
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8

	// Companion is non-nil for devices that also publish the USB 3.x
	// SuperSpeed Endpoint Companion descriptor immediately following
	// this one; unused by the full-speed-only controllers this module
	// targets but retained as part of the byte-exact descriptor set
	// klib/usb/usb/descriptor.hpp defines.
	Companion *EndpointCompanionDescriptor
}

func (e *EndpointDescriptor) SetDefaults() {
	e.Length = 7
	e.DescriptorType = DescriptorEndpoint
	e.MaxPacketSize = 64
}

// Number returns the endpoint number (address without the direction bit).
func (e *EndpointDescriptor) Number() int {
	return int(e.EndpointAddress &^ 0x80)
}

// Direction returns the endpoint direction encoded in EndpointAddress.
func (e *EndpointDescriptor) Direction() Direction {
	if e.EndpointAddress&0x80 != 0 {
		return In
	}
	return Out
}

// TransferType maps bits 0:1 of Attributes (USB 2.0 Table 9-13) to an
// EndpointMode: ControlMode for a control endpoint, otherwise InMode or
// OutMode by the direction bit of EndpointAddress.
func (e *EndpointDescriptor) TransferType() EndpointMode {
	switch e.Attributes & 0x3 {
	case 0:
		return ControlMode
	default:
		if e.Direction() == In {
			return InMode
		}
		return OutMode
	}
}

func (e *EndpointDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, e.Length)
	binary.Write(buf, binary.LittleEndian, e.DescriptorType)
	binary.Write(buf, binary.LittleEndian, e.EndpointAddress)
	binary.Write(buf, binary.LittleEndian, e.Attributes)
	binary.Write(buf, binary.LittleEndian, e.MaxPacketSize)
	binary.Write(buf, binary.LittleEndian, e.Interval)

	if e.Companion != nil {
		buf.Write(e.Companion.Bytes())
	}

	return buf.Bytes()
}

// EndpointCompanionDescriptor implements the USB 3.x SuperSpeed Endpoint
// Companion descriptor layout (not exercised at full speed, see
// EndpointDescriptor.Companion).
type EndpointCompanionDescriptor struct {
	Length          uint8
	DescriptorType  uint8
	MaxBurst        uint8
	Attributes      uint8
	BytesPerInterval uint16
}

func (e *EndpointCompanionDescriptor) SetDefaults() {
	e.Length = 6
	e.DescriptorType = DescriptorEndpointCompanion
}

func (e *EndpointCompanionDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, e)
	return buf.Bytes()
}

// StringDescriptor implements USB 2.0 Table 9-15, holding a precomputed
// UTF-16LE string (or, for index 0, a list of LANGID codes).
type StringDescriptor struct {
	Length         uint8
	DescriptorType uint8
	String         []byte
}

func (s *StringDescriptor) SetDefaults() {
	s.DescriptorType = DescriptorString
}

func (s *StringDescriptor) Bytes() []byte {
	s.Length = uint8(2 + len(s.String))

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, s.Length)
	binary.Write(buf, binary.LittleEndian, s.DescriptorType)
	buf.Write(s.String)

	return buf.Bytes()
}

// HIDDescriptor implements the HID 1.11 class descriptor (§6.2.1), which
// interleaves into an interface's ClassDescriptors between the interface
// descriptor and its endpoints.
type HIDDescriptor struct {
	Length               uint8
	DescriptorType       uint8
	BCDHID               uint16
	CountryCode          uint8
	NumDescriptors       uint8
	ClassDescriptorType  uint8
	ClassDescriptorLength uint16
}

const DescriptorHID = 0x21
const DescriptorHIDReport = 0x22

func (h *HIDDescriptor) SetDefaults() {
	h.Length = 9
	h.DescriptorType = DescriptorHID
	h.BCDHID = 0x0111
	h.NumDescriptors = 1
	h.ClassDescriptorType = DescriptorHIDReport
}

func (h *HIDDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// BOSDescriptor implements the Binary device Object Store (USB 2.0 ECN
// / USB 3.x), a container for DeviceCapability descriptors. Reported by
// devices that advertise LPM or other post-2.0 capabilities; the chip
// targets of this module never set one, but the type is retained since
// the class-independent descriptor surface names it explicitly.
type BOSDescriptor struct {
	Length           uint8
	DescriptorType   uint8
	TotalLength      uint16
	NumDeviceCaps    uint8
	DeviceCapabilities [][]byte
}

func (b *BOSDescriptor) SetDefaults() {
	b.Length = 5
	b.DescriptorType = DescriptorBOS
}

func (b *BOSDescriptor) Bytes() []byte {
	var caps []byte
	for _, c := range b.DeviceCapabilities {
		caps = append(caps, c...)
	}

	b.NumDeviceCaps = uint8(len(b.DeviceCapabilities))
	b.TotalLength = uint16(b.Length) + uint16(len(caps))

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, b.Length)
	binary.Write(buf, binary.LittleEndian, b.DescriptorType)
	binary.Write(buf, binary.LittleEndian, b.TotalLength)
	binary.Write(buf, binary.LittleEndian, b.NumDeviceCaps)
	buf.Write(caps)

	return buf.Bytes()
}

// trim truncates buf to at most wLength bytes, matching the host-requested
// upper bound on a control IN data stage.
func trim(buf []byte, wLength uint16) []byte {
	if int(wLength) < len(buf) {
		return buf[:wLength]
	}
	return buf
}

// invalidStringIndex formats the error for an out-of-range string
// descriptor index. Nothing in this package calls it: getDescriptor stalls
// such a request instead.
func invalidStringIndex(index uint16) error {
	return fmt.Errorf("usb: invalid string descriptor index %d", index)
}
