package usb

// BusEvent identifies one of the asynchronous, non-protocol notifications
// a Controller's interrupt handler raises outside of setup-packet
// processing.
type BusEvent int

const (
	BusReset BusEvent = iota
	BusSuspend
	BusResume
	BusVBusValid
	BusVBusLost
	BusStartOfFrame
)

func (e BusEvent) String() string {
	switch e {
	case BusReset:
		return "reset"
	case BusSuspend:
		return "suspend"
	case BusResume:
		return "resume"
	case BusVBusValid:
		return "vbus_valid"
	case BusVBusLost:
		return "vbus_lost"
	case BusStartOfFrame:
		return "start_of_frame"
	default:
		return "bus_event"
	}
}

// BusEventHandler is implemented by a Target that needs to react to bus
// events beyond the dispatcher's own reset bookkeeping (e.g. a
// self-powered device tracking VBus to decide whether it may still draw
// configured current, or a class device that must abort an in-flight
// transfer on suspend).
type BusEventHandler interface {
	HandleBusEvent(e BusEvent)
}

// HandleBusEvent applies the dispatcher's own reset bookkeeping --
// returning the device to the unaddressed, unconfigured state and
// disabling every non-control endpoint -- then forwards the event to the
// Target if it implements BusEventHandler. Controller implementations call
// this from their bus poll/interrupt loop (mirroring tamago's
// soc/nxp/usb.USB.Start, which detects the reset status bit and calls
// hw.Reset() before resuming setup processing).
func (d *Dispatcher) HandleBusEvent(e BusEvent) {
	dev := d.Target.Device()

	if e == BusReset {
		d.Controller.SetAddress(0)
		dev.ConfigurationValue = 0
		dev.AlternateSetting = make(map[int]uint8)

		for _, ep := range dev.Endpoints {
			cont := ep.disableAndTakeContinuation()

			if cont != nil {
				cont(nil, Reset)
			}
		}
	}

	if h, ok := d.Target.(BusEventHandler); ok {
		h.HandleBusEvent(e)
	}
}
