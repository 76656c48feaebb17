package usb

import "encoding/binary"

// SetupPacket implements the wire layout of p276, Table 9-2 "Format of
// Setup Data", USB2.0. Field names match tamago's soc/nxp/usb.SetupData.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// ParseSetupPacket decodes an 8-byte little-endian setup stage buffer as
// delivered by a Controller's RecvSetup.
func ParseSetupPacket(buf []byte) (s SetupPacket, ok bool) {
	if len(buf) < 8 {
		return s, false
	}

	s.RequestType = buf[0]
	s.Request = buf[1]
	s.Value = binary.LittleEndian.Uint16(buf[2:4])
	s.Index = binary.LittleEndian.Uint16(buf[4:6])
	s.Length = binary.LittleEndian.Uint16(buf[6:8])

	return s, true
}

// Direction reports the data-phase direction requested by the host.
func (s SetupPacket) Direction() Direction {
	return direction(s.RequestType)
}

// Recipient reports the bmRequestType recipient field.
func (s SetupPacket) Recipient() int {
	return recipient(s.RequestType)
}

// Type reports the bmRequestType type field (standard/class/vendor).
func (s SetupPacket) Type() int {
	return requestType(s.RequestType)
}

// descriptorType and descriptorIndex split wValue for GET_DESCRIPTOR /
// SET_DESCRIPTOR requests, per p285, 9.4.3, USB2.0.
func (s SetupPacket) descriptorType() uint16 {
	return s.Value >> 8
}

func (s SetupPacket) descriptorIndex() uint16 {
	return s.Value & 0xff
}

// endpointAddress extracts the endpoint address (number | direction bit)
// from wIndex of a SET_FEATURE/CLEAR_FEATURE/GET_STATUS request targeting
// an endpoint, per klib::usb::get_endpoint.
func endpointAddress(wIndex uint16) int {
	return int(wIndex & 0xff)
}

// EndpointNumber strips the direction bit from an endpoint address.
func EndpointNumber(address int) int {
	return address &^ 0x80
}

// feature extracts the feature selector from wValue of a SET_FEATURE/
// CLEAR_FEATURE request, per klib::usb::get_feature.
func feature(wValue uint16) int {
	return int(wValue)
}
