// Chip-independent CAN driver contract
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package can declares the capability interfaces every soc/* CAN driver
// satisfies.
//
// Grounded on original_source/targets/core/nxp/lpc175x/can.hpp's
// can<Can>::write/read/has_data/is_busy/has_error: a frame of up to 8 data
// bytes addressed by an 11-bit standard or 29-bit extended identifier,
// optionally flagged as a remote-transmission request, queued into one of
// several hardware transmit buffers and polled or interrupt-driven on
// completion. Frame mirrors klib::io::can::frame's field set directly.
package can

// Frame is a single CAN data or remote frame, per klib::io::can::frame.
type Frame struct {
	Address  uint32 // 11-bit standard or 29-bit extended identifier
	Extended bool   // Address is a 29-bit extended identifier
	Remote   bool   // remote-transmission request, Data is unused
	Data     [8]byte
	Size     uint8 // number of valid bytes in Data, 0-8
}

// Controller is satisfied by any soc/* CAN controller driver.
type Controller interface {
	// Write queues frame for transmission in the next free hardware
	// buffer, per can<Can>::write. If no buffer is free the frame is
	// dropped, matching write_impl's "if no buffer is available return".
	Write(frame Frame)
	// Read returns the most recently received frame, per can<Can>::read.
	// Undefined if called without HasData first reporting true.
	Read() Frame
	// HasData reports whether a received frame is waiting.
	HasData() bool
	// IsBusy reports whether every hardware transmit buffer is occupied.
	IsBusy() bool
	// HasError reports whether the controller has crossed the
	// CAN-protocol error-passive threshold, per can<Can>::has_error.
	HasError() bool
}

// Callback is fired from a Controller's interrupt handler, per
// can<Can>::init's transmit/receive callback pair.
type Callback func()

// InterruptDriven is satisfied by a CAN controller able to notify via
// Callback instead of requiring HasData/IsBusy polling.
type InterruptDriven interface {
	Controller
	OnTransmitDone(cb Callback)
	OnReceive(cb Callback)
}
