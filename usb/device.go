package usb

import "fmt"

// Device is the descriptor set and configuration state of one USB gadget:
// the data a Target presents to the dispatcher and ultimately to the host.
// It holds no hardware state; Controller implementations (soc/*/usb) own
// the registers.
type Device struct {
	Descriptor     DeviceDescriptor
	Qualifier      DeviceQualifierDescriptor
	Configurations []*ConfigurationDescriptor
	BOS            *BOSDescriptor

	// Strings holds UTF-16LE string descriptor payloads indexed by
	// string index; index 0 conventionally holds the LANGID list.
	Strings [][]byte

	// ConfigurationValue is the bConfigurationValue currently selected by
	// the host, or 0 if unconfigured.
	ConfigurationValue uint8

	// AlternateSetting maps interface number to its selected alternate
	// setting.
	AlternateSetting map[int]uint8

	// Endpoints indexes every non-control endpoint by number.
	Endpoints map[int]*Endpoint
}

// NewDevice returns a Device with AlternateSetting and Endpoints
// initialized and Strings holding the (mandatory) LANGID entry for U.S.
// English.
func NewDevice() *Device {
	return &Device{
		AlternateSetting: make(map[int]uint8),
		Endpoints:        make(map[int]*Endpoint),
		Strings:          [][]byte{{0x09, 0x04}},
	}
}

// AddString appends s, returning its descriptor index.
func (d *Device) AddString(s []byte) uint8 {
	d.Strings = append(d.Strings, s)
	return uint8(len(d.Strings) - 1)
}

// AddConfiguration appends a configuration descriptor.
func (d *Device) AddConfiguration(c *ConfigurationDescriptor) {
	d.Configurations = append(d.Configurations, c)
}

// AddEndpoint registers ep so the dispatcher can route endpoint-recipient
// requests (GET_STATUS/CLEAR_FEATURE/SET_FEATURE on ENDPOINT_HALT) to it.
func (d *Device) AddEndpoint(ep *Endpoint) {
	d.Endpoints[ep.Number()] = ep
}

// Configuration returns the assembled bytes of configuration index, or an
// error if out of range.
func (d *Device) Configuration(index uint16) ([]byte, error) {
	if int(index) >= len(d.Configurations) {
		return nil, fmt.Errorf("usb: invalid configuration index %d", index)
	}

	return d.Configurations[index].Bytes(), nil
}

// Target is implemented by a concrete USB gadget (an HID keyboard, an MSC
// BOT device, a composite of both) to plug into the dispatcher.
//
// Additional, optional behaviour is detected by the dispatcher via type
// assertion against the concrete Target value (ClassRequestHandler,
// VendorRequestHandler, GetInterfaceHandler, SetInterfaceHandler,
// ConfigurationHandler below). This is the Go equivalent of the C++
// requires-clause capability detection klib performs at compile time in
// klib/usb/usb.hpp (get_interface<Usb>, set_interface<Usb>, and the
// class/vendor dispatch inside handle_setup_packet<Usb>): there, the
// compiler selects one of two template instantiations depending on
// whether the Usb type provides the optional hook; here, the dispatcher
// selects one of two code paths depending on whether the Target value
// satisfies the optional interface. Both compile the "hook absent" path
// down to nothing extra; the Go version pays one interface check per
// request instead of one per build.
type Target interface {
	Device() *Device
}

// ClassRequestHandler is implemented by a Target that serves class-specific
// control requests (e.g. HID GET_REPORT, MSC GET_MAX_LUN).
type ClassRequestHandler interface {
	HandleClassRequest(s SetupPacket) (data []byte, err Error)
}

// VendorRequestHandler is implemented by a Target that serves
// vendor-specific control requests.
type VendorRequestHandler interface {
	HandleVendorRequest(s SetupPacket) (data []byte, err Error)
}

// GetInterfaceHandler lets a Target override the default GET_INTERFACE
// response (otherwise served from Device.AlternateSetting).
type GetInterfaceHandler interface {
	GetInterfaceAlt(iface int) (alt uint8, err Error)
}

// SetInterfaceHandler lets a Target react to a SET_INTERFACE request
// beyond the default bookkeeping in Device.AlternateSetting (e.g.
// restarting a streaming endpoint on an alternate setting change).
type SetInterfaceHandler interface {
	SetInterfaceAlt(iface int, alt uint8) Error
}

// ConfigurationHandler lets a Target react to SET_CONFIGURATION, typically
// to enable/disable its endpoints.
type ConfigurationHandler interface {
	SetConfig(value uint8) Error
}

// Controller is the hardware contract each soc/*/usb package implements:
// the register choreography needed to move the bytes the dispatcher
// decides to move. It is intentionally narrow -- everything about USB
// protocol semantics lives in this package, not in Controller
// implementations.
type Controller interface {
	// Tx transmits data on the IN direction of endpoint ep (synchronously
	// from the dispatcher's point of view: it returns once the hardware
	// has accepted the data for transmission, matching tamago's hw.tx).
	Tx(ep int, data []byte) error
	// Rx receives up to length bytes from the OUT direction of endpoint
	// ep.
	Rx(ep int, length int) ([]byte, error)
	// Ack sends a zero-length status-stage packet in direction dir of
	// endpoint ep.
	Ack(ep int, dir Direction) error
	// Stall halts direction dir of endpoint ep until un-stalled.
	Stall(ep int, dir Direction)
	// UnStall clears a stalled endpoint direction.
	UnStall(ep int, dir Direction)
	// SetAddress programs the device's bus address. The dispatcher only
	// calls this after acknowledging the SET_ADDRESS status stage, per
	// USB 2.0 §9.4.6: the new address must not take effect until the
	// status stage completes.
	SetAddress(addr uint8)
}

// Dispatcher implements the chip-independent standard request dispatch
// table (USB 2.0 §9.4) against a Controller and a Target, grounded on
// klib::usb::handle_setup_packet / handle_standard_packet
// (klib/usb/usb.hpp).
type Dispatcher struct {
	Controller Controller
	Target     Target

	// ControlEndpoint is the Endpoint, if any, a Controller arms for OUT
	// data stages on endpoint 0. It is nil for the (common) case where EP0
	// is driven solely through Controller.Tx/Rx without ever going through
	// Endpoint.Arm. When set, HandleSetup clears its latched pending-OUT
	// interrupt before dispatching, per §4.3.1 ("on a setup, the saved
	// pending-interrupt flag is cleared, to prevent replaying a stale OUT
	// that preceded the setup").
	ControlEndpoint *Endpoint
}

// HandleSetup processes one setup packet to completion, including its data
// and status stages. It is called by a Controller implementation's bus
// event loop once a setup packet has been received on endpoint 0.
func (d *Dispatcher) HandleSetup(s SetupPacket) {
	dev := d.Target.Device()

	if d.ControlEndpoint != nil {
		d.ControlEndpoint.clearPendingInterrupt()
	}

	var err Error
	acked := false

	switch s.Type() {
	case TypeStandard:
		err, acked = d.handleStandard(dev, s)
	case TypeClass:
		if h, ok := d.Target.(ClassRequestHandler); ok {
			var data []byte
			data, err = h.HandleClassRequest(s)
			if err == NoError && data != nil {
				d.Controller.Tx(0, trim(data, s.Length))
			}
		} else {
			err = Stall
		}
	case TypeVendor:
		if h, ok := d.Target.(VendorRequestHandler); ok {
			var data []byte
			data, err = h.HandleVendorRequest(s)
			if err == NoError && data != nil {
				d.Controller.Tx(0, trim(data, s.Length))
			}
		} else {
			err = Stall
		}
	default:
		err = Stall
	}

	if acked {
		return
	}

	d.finish(0, In, err)
}

// finish mirrors klib::usb::status_callback: a Nak is a silent no-op (the
// host will retry the status stage), NoError acknowledges it, anything
// else stalls the endpoint.
func (d *Dispatcher) finish(ep int, dir Direction, err Error) {
	switch err {
	case Nak:
		return
	case NoError:
		d.Controller.Ack(ep, dir)
	default:
		d.Controller.Stall(ep, dir)
	}
}

func (d *Dispatcher) handleStandard(dev *Device, s SetupPacket) (err Error, acked bool) {
	switch s.Request {
	case GetStatus:
		return d.getStatus(dev, s)
	case ClearFeature:
		return d.setFeature(dev, s, false)
	case SetFeature:
		return d.setFeature(dev, s, true)
	case SetAddress:
		return d.setAddress(s)
	case GetDescriptor:
		return d.getDescriptor(dev, s), false
	case SetDescriptor:
		return Stall, false
	case GetConfiguration:
		if d.Controller.Tx(0, trim([]byte{dev.ConfigurationValue}, s.Length)) != nil {
			return Stall, false
		}
		return NoError, false
	case SetConfiguration:
		return d.setConfiguration(dev, s), false
	case GetInterface:
		return d.getInterface(dev, s), false
	case SetInterface:
		return d.setInterface(dev, s), false
	case SynchFrame:
		return Stall, false
	default:
		return Stall, false
	}
}

func (d *Dispatcher) getStatus(dev *Device, s SetupPacket) (Error, bool) {
	var status uint16

	switch s.Recipient() {
	case RecipientDevice:
		status = 0 // self powered = 0, remote wakeup = 0
	case RecipientInterface:
		status = 0
	case RecipientEndpoint:
		ep, ok := dev.Endpoints[EndpointNumber(endpointAddress(s.Index))]
		if !ok {
			return Stall, false
		}
		if ep.State() == Stalled {
			status = 1
		}
	default:
		return Stall, false
	}

	buf := []byte{byte(status), byte(status >> 8)}

	if d.Controller.Tx(0, trim(buf, s.Length)) != nil {
		return Stall, false
	}

	return NoError, false
}

func (d *Dispatcher) setFeature(dev *Device, s SetupPacket, set bool) (Error, bool) {
	if feature(s.Value) != FeatureEndpointHalt || s.Recipient() != RecipientEndpoint {
		// device/interface remote-wakeup and test-mode features are
		// acknowledged but not independently meaningful to this
		// module's targets.
		return NoError, false
	}

	ep, ok := dev.Endpoints[EndpointNumber(endpointAddress(s.Index))]
	if !ok {
		return Stall, false
	}

	if set {
		ep.Stall()
		d.Controller.Stall(ep.Number(), directionOf(endpointAddress(s.Index)))
	} else if ep.State() == Stalled {
		// check-first-then-clear ordering preserved per endpoint.go's
		// UnStall doc comment.
		ep.UnStall()
		d.Controller.UnStall(ep.Number(), directionOf(endpointAddress(s.Index)))
	}

	return NoError, false
}

func directionOf(address int) Direction {
	if address&0x80 != 0 {
		return In
	}
	return Out
}

// setAddress defers the address change until after the status stage, per
// USB 2.0 §9.4.6 -- acknowledging here and applying the address directly
// afterwards, rather than tamago's soc/nxp/usb.handleSetup (which writes
// DEVICEADDR/USBADRA before the status stage is sent).
func (d *Dispatcher) setAddress(s SetupPacket) (Error, bool) {
	if d.Controller.Ack(0, In) != nil {
		return Stall, true
	}

	d.Controller.SetAddress(uint8(s.Value))

	return NoError, true
}

func (d *Dispatcher) getDescriptor(dev *Device, s SetupPacket) Error {
	switch s.descriptorType() {
	case DescriptorDevice:
		if d.Controller.Tx(0, trim(dev.Descriptor.Bytes(), s.Length)) != nil {
			return Stall
		}
	case DescriptorDeviceQualifier:
		if d.Controller.Tx(0, trim(dev.Qualifier.Bytes(), s.Length)) != nil {
			return Stall
		}
	case DescriptorConfiguration, DescriptorOtherSpeedConfiguration:
		conf, err := dev.Configuration(s.descriptorIndex())
		if err != nil {
			return Stall
		}

		if s.descriptorType() == DescriptorOtherSpeedConfiguration {
			conf = append([]byte(nil), conf...)
			conf[1] = DescriptorOtherSpeedConfiguration
		}

		if d.Controller.Tx(0, trim(conf, s.Length)) != nil {
			return Stall
		}
	case DescriptorString:
		index := s.descriptorIndex()
		if int(index) >= len(dev.Strings) {
			return Stall
		}

		sd := StringDescriptor{String: dev.Strings[index]}

		if index == 0 {
			if d.Controller.Tx(0, trim(sd.bytesLangID(), s.Length)) != nil {
				return Stall
			}
		} else {
			sd.SetDefaults()
			if d.Controller.Tx(0, trim(sd.Bytes(), s.Length)) != nil {
				return Stall
			}
		}
	case DescriptorBOS:
		if dev.BOS == nil {
			return Stall
		}
		if d.Controller.Tx(0, trim(dev.BOS.Bytes(), s.Length)) != nil {
			return Stall
		}
	default:
		return Stall
	}

	return NoError
}

// bytesLangID renders string index 0, which holds raw LANGID codes rather
// than a UTF-16LE string, without re-encoding.
func (s *StringDescriptor) bytesLangID() []byte {
	s.Length = uint8(2 + len(s.String))
	buf := make([]byte, 0, s.Length)
	buf = append(buf, s.Length, DescriptorString)
	buf = append(buf, s.String...)
	return buf
}

func (d *Dispatcher) setConfiguration(dev *Device, s SetupPacket) Error {
	value := uint8(s.Value)

	dev.ConfigurationValue = value

	if h, ok := d.Target.(ConfigurationHandler); ok {
		return h.SetConfig(value)
	}

	return NoError
}

func (d *Dispatcher) getInterface(dev *Device, s SetupPacket) Error {
	iface := int(s.Index)

	var alt uint8
	if h, ok := d.Target.(GetInterfaceHandler); ok {
		var err Error
		alt, err = h.GetInterfaceAlt(iface)
		if err != NoError {
			return err
		}
	} else {
		alt = dev.AlternateSetting[iface]
	}

	if d.Controller.Tx(0, trim([]byte{alt}, s.Length)) != nil {
		return Stall
	}

	return NoError
}

func (d *Dispatcher) setInterface(dev *Device, s SetupPacket) Error {
	iface := int(s.Index)
	alt := uint8(s.Value)

	dev.AlternateSetting[iface] = alt

	if h, ok := d.Target.(SetInterfaceHandler); ok {
		return h.SetInterfaceAlt(iface, alt)
	}

	return NoError
}
