// Chip-independent USB 2.0 device controller dispatch
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package usb implements the chip-independent half of this module's USB 2.0
// device controller stack: setup-packet parsing, the per-endpoint state
// machine, standard request dispatch, and the descriptor byte layouts. The
// per-chip register choreography (soc/*/usb) implements the Controller
// interface declared here and is otherwise unaware of USB protocol
// semantics.
//
// The dispatch logic is grounded on the chip-independent USB layer of the
// original C++ library this module reimplements (klib/usb/usb.hpp and
// klib/usb/setup.hpp): a single handle_setup_packet entry point that
// classifies a request by recipient and type, serves standard requests
// itself, and defers to an optional class/vendor handler detected at
// compile time via a C++ requires-clause. Go has no equivalent of requires
// against a template parameter, so the same optional-hook pattern is
// expressed here with interface type assertions against the Target value
// (see ClassRequestHandler and VendorRequestHandler in device.go) -- a capability check
// performed once per request rather than once per instantiation, but
// otherwise the same shape.
package usb

import "fmt"

// Format of Setup Data (p276, Table 9-2, USB2.0).
const RequestTypeDirBit = 7

// Standard request codes (p279, Table 9-4, USB2.0).
const (
	GetStatus        = 0
	ClearFeature     = 1
	SetFeature       = 3
	SetAddress       = 5
	GetDescriptor    = 6
	SetDescriptor    = 7
	GetConfiguration = 8
	SetConfiguration = 9
	GetInterface     = 10
	SetInterface     = 11
	SynchFrame       = 12
)

// Descriptor types (p279, Table 9-5, USB2.0, plus IAD/BOS ECNs).
const (
	DescriptorDevice                  = 1
	DescriptorConfiguration           = 2
	DescriptorString                  = 3
	DescriptorInterface               = 4
	DescriptorEndpoint                = 5
	DescriptorDeviceQualifier         = 6
	DescriptorOtherSpeedConfiguration = 7
	DescriptorInterfacePower          = 8
	DescriptorOTG                     = 9
	DescriptorDebug                   = 10
	DescriptorInterfaceAssociation    = 11
	DescriptorBOS                     = 15
	DescriptorEndpointCompanion       = 48
)

// Standard feature selectors (p280, Table 9-6, USB2.0).
const (
	FeatureEndpointHalt       = 0
	FeatureDeviceRemoteWakeup = 1
	FeatureTestMode           = 2
)

// bmRequestType recipient field (p248, Table 9-2, USB2.0).
const (
	RecipientDevice    = 0
	RecipientInterface = 1
	RecipientEndpoint  = 2
	RecipientOther     = 3
)

// bmRequestType type field.
const (
	TypeStandard = 0
	TypeClass    = 1
	TypeVendor   = 2
	TypeReserved = 3
)

// Direction identifies the data-phase direction of a control or bulk/
// interrupt transfer, from the host's point of view.
type Direction int

const (
	Out Direction = iota
	In
)

// Error mirrors klib's usb::error enum (klib/usb/usb.hpp), the vocabulary
// an endpoint callback or class handler uses to tell the dispatch layer how
// to conclude a transfer.
type Error int

const (
	// NoError completes the transfer normally (ACK the status stage).
	NoError Error = iota
	// Nak defers the transfer; the host will retry.
	Nak
	// Reset forces a bus reset of the endpoint.
	Reset
	// Stall signals a protocol error; the endpoint is halted.
	Stall
	// UnStall clears a prior Stall condition.
	UnStall
	// Cancel aborts the transfer without an explicit handshake.
	Cancel
)

func (e Error) String() string {
	switch e {
	case NoError:
		return "no_error"
	case Nak:
		return "nak"
	case Reset:
		return "reset"
	case Stall:
		return "stall"
	case UnStall:
		return "un_stall"
	case Cancel:
		return "cancel"
	default:
		return fmt.Sprintf("error(%d)", int(e))
	}
}

// Handshake is the handshake packet the controller sends in response to a
// token, mirroring klib::usb::handshake.
type Handshake int

const (
	Ack Handshake = iota
	NakHandshake
	StallHandshake
	Wait
)

// EndpointMode mirrors klib::usb::endpoint_mode: the transfer type an
// endpoint has been configured for.
type EndpointMode int

const (
	Disabled EndpointMode = iota
	OutMode
	InMode
	ControlMode
)

// direction reports the transfer direction encoded in bmRequestType, per
// klib::usb::get_direction.
func direction(bmRequestType uint8) Direction {
	if bmRequestType&(1<<RequestTypeDirBit) != 0 {
		return In
	}

	return Out
}

// recipient reports the bmRequestType recipient field, per
// klib::usb::get_recipient.
func recipient(bmRequestType uint8) int {
	return int(bmRequestType & 0x1f)
}

// requestType reports the bmRequestType type field (standard/class/vendor).
func requestType(bmRequestType uint8) int {
	return int((bmRequestType >> 5) & 0x3)
}
