package usb

import (
	"fmt"
	"sync"
)

// State is the lifecycle state of one Endpoint, per the endpoint state
// machine this module's USB stack is built around: an endpoint is either
// idle, has at most one transfer armed in a given direction, is stalled
// pending host/class intervention, or disabled (not part of the active
// configuration).
type State int

const (
	Idle State = iota
	TransferringIn
	TransferringOut
	Stalled
	EndpointDisabled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TransferringIn:
		return "transferring_in"
	case TransferringOut:
		return "transferring_out"
	case Stalled:
		return "stalled"
	case EndpointDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Continuation is the callback an Arm caller supplies to process a
// completed transfer stage and decide whether another stage follows.
//
// This is the Go shape of the IRQ continuation klib builds for every class
// device (klib/usb/device/keyboard.hpp hid_callback<Usb>,
// klib/usb/msc/bulk_only_transfer.hpp callback_handler<Usb,State>): a
// transfer is driven to completion across possibly several hardware
// transactions by a function invoked once per completed stage, rather than
// by blocking the caller until the whole transfer finishes. err carries the
// outcome of the stage that just completed (NoError on success); data is
// the payload delivered (OUT direction) or ignored (IN direction, where
// data is instead the return value). next, when done is false, is the
// buffer to arm for the following stage; when done is true the endpoint
// returns to Idle and next is ignored.
type Continuation func(data []byte, err Error) (next []byte, done bool)

// Endpoint is one direction-typed endpoint of a USB device, driven through
// its state machine by a per-chip Controller implementation.
//
// At most one transfer may be armed on an Endpoint at a time: Arm returns
// an error if called while the endpoint is not Idle. This mirrors klib's
// model, where a new transfer is only initiated from a callback reporting
// that the previous one finished, and is a deliberate simplification
// against tamago's underlying dQH/dTD hardware, which supports queuing
// several transfer descriptors ahead of completion -- this module does not
// use that queuing depth, trading peak throughput for a state machine
// simple enough to reason about one stage at a time.
type Endpoint struct {
	mu sync.Mutex

	number        int
	mode          EndpointMode
	maxPacketSize int

	state        State
	dir          Direction
	continuation Continuation

	// pendingInterrupt, requestedBytes, maxRequestedBytes and
	// transferredBytes are the remaining fields of the Data Model's USB
	// endpoint state (klib's state[endpoint].interrupt_pending/
	// requested_size/max_requested_size/transferred_size). A Controller's
	// OUT interrupt handler that fires while the endpoint is Idle (no Rx
	// armed yet) cannot discard the notification -- the packet is already
	// in the hardware FIFO -- so it latches pendingInterrupt instead;
	// Arm/ArmRx below consume that latch (reporting it as replay) the
	// moment a Rx is armed, and Dispatcher.HandleSetup clears it unconsumed
	// when a setup packet preempts the OUT stage it belongs to.
	pendingInterrupt  bool
	requestedBytes    int
	maxRequestedBytes int
	transferredBytes  int
}

// NewEndpoint constructs an Endpoint in the Disabled state; Enable must be
// called once the owning configuration is selected.
func NewEndpoint(number int, mode EndpointMode, maxPacketSize int) *Endpoint {
	return &Endpoint{
		number:        number,
		mode:          mode,
		maxPacketSize: maxPacketSize,
		state:         EndpointDisabled,
	}
}

// Number returns the endpoint number (without direction bit).
func (e *Endpoint) Number() int { return e.number }

// Mode returns the endpoint's configured transfer type.
func (e *Endpoint) Mode() EndpointMode { return e.mode }

// MaxPacketSize returns the endpoint's configured maximum packet size.
func (e *Endpoint) MaxPacketSize() int { return e.maxPacketSize }

// State returns the endpoint's current lifecycle state.
func (e *Endpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Enable moves a Disabled endpoint to Idle, making it eligible for Arm.
// Controller implementations call this from SetConfiguration.
func (e *Endpoint) Enable() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = Idle
}

// Disable moves the endpoint out of service and invokes any armed
// continuation with Reset, per §4.3.1 ("any state + bus reset -> idle with
// state zeroed; invokes every armed cb with reset"). Controller
// implementations call this when the configuration is cleared or the bus
// is reset.
func (e *Endpoint) Disable() {
	if cont := e.disableAndTakeContinuation(); cont != nil {
		cont(nil, Reset)
	}
}

// disableAndTakeContinuation zeroes the endpoint's state and returns
// whatever continuation was armed, without invoking it: the caller runs
// the continuation outside of e.mu, the same discipline Complete follows,
// so a continuation that itself calls back into this Endpoint (e.g. to
// re-Arm) cannot deadlock against the lock this method holds.
func (e *Endpoint) disableAndTakeContinuation() Continuation {
	e.mu.Lock()
	defer e.mu.Unlock()

	cont := e.continuation

	e.state = EndpointDisabled
	e.continuation = nil
	e.pendingInterrupt = false
	e.requestedBytes = 0
	e.maxRequestedBytes = 0
	e.transferredBytes = 0

	return cont
}

// Arm schedules cont to run when the next transfer stage on dir completes,
// transitioning the endpoint to TransferringIn or TransferringOut. It
// returns an error if the endpoint is not currently Idle, enforcing the
// at-most-one-armed invariant.
//
// For dir == Out, replay reports whether an OUT interrupt had already been
// latched against this endpoint (via NotifyOutPending, while it was Idle
// and nothing was armed to receive it) -- per §4.3.1's "if an OUT interrupt
// had been latched while idle (saved in pending-interrupt), the driver
// replays it by self-triggering the endpoint interrupt". Arm clears the
// latch itself; the caller is responsible for immediately servicing the
// already-pending packet (typically by invoking its own OUT-interrupt
// handling path) rather than waiting for a hardware interrupt that will
// not fire again for data already sitting in the FIFO.
func (e *Endpoint) Arm(dir Direction, cont Continuation) (replay bool, err error) {
	return e.arm(dir, cont, 0, 0)
}

// ArmRx is Arm's OUT-specific counterpart, additionally recording
// requestedBytes/maxRequestedBytes -- klib's read(callback, ep, mode, data,
// min_size, max_size) takes the same pair, sizing the transfer the endpoint
// is being armed to collect rather than leaving it to be discovered
// packet-by-packet. TransferredBytes reports progress against
// maxRequestedBytes as Complete runs.
func (e *Endpoint) ArmRx(cont Continuation, requestedBytes, maxRequestedBytes int) (replay bool, err error) {
	return e.arm(Out, cont, requestedBytes, maxRequestedBytes)
}

func (e *Endpoint) arm(dir Direction, cont Continuation, requestedBytes, maxRequestedBytes int) (replay bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Idle {
		return false, fmt.Errorf("usb: endpoint %d not idle (state %s)", e.number, e.state)
	}

	if dir == In {
		e.state = TransferringIn
	} else {
		e.state = TransferringOut

		if e.pendingInterrupt {
			e.pendingInterrupt = false
			replay = true
		}
	}

	e.dir = dir
	e.continuation = cont
	e.requestedBytes = requestedBytes
	e.maxRequestedBytes = maxRequestedBytes
	e.transferredBytes = 0

	return replay, nil
}

// TransferredBytes reports how many bytes the currently (or most recently)
// armed transfer has moved, per the Data Model's transferred_bytes field.
func (e *Endpoint) TransferredBytes() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.transferredBytes
}

// NotifyOutPending records that an OUT interrupt fired on this endpoint
// while it was Idle (no read armed yet to receive the packet already
// sitting in the hardware FIFO). Controller implementations call this
// instead of Complete when their OUT-interrupt handler observes State() ==
// Idle, deferring delivery until the next Arm(Out, ...) replays it. It
// reports whether the endpoint was actually Idle and the flag was
// therefore latched.
func (e *Endpoint) NotifyOutPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Idle {
		return false
	}

	e.pendingInterrupt = true
	return true
}

// clearPendingInterrupt discards a latched OUT interrupt without replaying
// it. Dispatcher.HandleSetup calls this on the control endpoint before
// dispatching a new setup packet, per §4.3.1's "on a setup, the saved
// pending-interrupt flag is cleared, to prevent replaying a stale OUT that
// preceded the setup."
func (e *Endpoint) clearPendingInterrupt() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pendingInterrupt = false
}

// Complete is invoked by the owning Controller when a hardware transaction
// finishes (or fails). It runs the armed continuation and either re-arms
// the endpoint for the next stage (done == false) or returns it to Idle
// (done == true). The returned buffer, when non-nil, is the data the
// caller should hand back to the Controller to start the next hardware
// transaction in the same direction as the stage that just completed.
//
// Complete panics if called while no continuation is armed: that indicates
// a Controller driver bug (a spurious completion interrupt), not a
// protocol condition a caller should need to recover from.
func (e *Endpoint) Complete(data []byte, err Error) (next []byte, done bool) {
	e.mu.Lock()
	cont := e.continuation
	dir := e.dir
	e.mu.Unlock()

	if cont == nil {
		panic(fmt.Sprintf("usb: spurious completion on endpoint %d", e.number))
	}

	next, done = cont(data, err)

	e.mu.Lock()
	defer e.mu.Unlock()

	if dir == Out {
		e.transferredBytes += len(data)
	}

	if done {
		e.state = Idle
		e.continuation = nil
	} else {
		if dir == In {
			e.state = TransferringIn
		} else {
			e.state = TransferringOut
		}
	}

	return next, done
}

// Stall halts the endpoint; the next token from the host receives a STALL
// handshake until UnStall is called.
func (e *Endpoint) Stall() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = Stalled
	e.continuation = nil
}

// UnStall clears a Stalled endpoint back to Idle.
//
// klib's LPC17xx SIE driver is documented (design notes, Open Question a)
// to check the stall condition before clearing it, an ordering this module
// preserves rather than "fixing": Controller implementations must verify
// State() == Stalled before performing the hardware un-stall sequence,
// not clear unconditionally.
func (e *Endpoint) UnStall() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = Idle
}
