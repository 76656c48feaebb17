// Chip-independent UART driver contract
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uart declares the capability interfaces every soc/* UART driver
// satisfies.
//
// Grounded on original_source/targets/chip/lpc802/io/usart.hpp's usart<Usart>
// (has_data/is_busy/write/read against a single data register, with an
// optional interrupt-driven receive/transmit callback pair) and
// original_source/targets/max32660/io/uart.hpp's peripheral pin tables,
// which describe the same has-data/write/read shape against a FIFO-backed
// register set. Both klib drivers size a frame as a narrow integer (LPC802's
// TXDAT/RXDAT are 16-bit to carry 9-bit frames; MAX326xx's FIFO register is
// byte-wide) so this package settles on byte transfers, the common case, and
// leaves 9-bit frame support as a chip-specific extension.
package uart

// Reader is satisfied by a UART able to receive bytes.
type Reader interface {
	// HasData reports whether a received byte is waiting, per
	// usart::has_data's RBS status check.
	HasData() bool
	// ReadByte returns the most recently received byte. Undefined if
	// called without HasData first reporting true.
	ReadByte() byte
}

// Writer is satisfied by a UART able to transmit bytes.
type Writer interface {
	// IsBusy reports whether the transmit holding register is still
	// occupied by a previous WriteByte, per usart::is_busy.
	IsBusy() bool
	// WriteByte queues a byte for transmission. If IsBusy is still true
	// from a previous call the previous byte may be lost, matching
	// usart::write's documented behavior.
	WriteByte(b byte)
}

// ReadWriter is satisfied by a full-duplex UART.
type ReadWriter interface {
	Reader
	Writer
}

// Callback receives bytes as they are read from, or drains bytes queued for,
// the UART's interrupt handler. Mirrors usart::init's transmit_callback/
// receive_callback pair, fired from the interrupt handler rather than
// polled via HasData/IsBusy.
type Callback func()

// InterruptDriven is satisfied by a UART able to notify a Callback from its
// interrupt handler instead of requiring HasData/IsBusy polling.
type InterruptDriven interface {
	ReadWriter
	// OnReceive registers cb to run once a byte has been received; nil
	// disables the notification.
	OnReceive(cb Callback)
	// OnTransmitReady registers cb to run once the transmit holding
	// register is free for another WriteByte; nil disables it.
	OnTransmitReady(cb Callback)
}

// Configurer is satisfied by a UART whose baud rate can be changed at
// runtime, per usart::init's Baudrate template parameter.
type Configurer interface {
	// SetBaudRate reprograms the baud-rate generator.
	SetBaudRate(baud uint32)
}
