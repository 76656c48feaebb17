// Chip-independent SPI driver contract
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package spi declares the capability interfaces every soc/* SPI driver
// satisfies.
//
// Grounded on original_source/targets/core/nxp/lpc175x/spi.hpp's
// spi<Spi>::write_read/write (single blocking full-duplex transfer over a
// span of bytes, polled via is_done) and
// original_source/targets/max32660/io/spi.hpp's FIFO-backed write_fifo/
// read_fifo pair driving the same write_read/write surface. Both klib
// drivers express a transfer as "write this buffer, optionally capturing
// the simultaneously clocked-in response into another buffer of the same
// length", which is the Transfer method below; a plain Write is the Transfer
// case where the caller has no use for the response.
package spi

// Mode selects clock polarity/phase, per SPI's four standard modes.
type Mode uint8

const (
	Mode0 Mode = iota // CPOL=0, CPHA=0
	Mode1             // CPOL=0, CPHA=1
	Mode2             // CPOL=1, CPHA=0
	Mode3             // CPOL=1, CPHA=1
)

// Transceiver is satisfied by any soc/* SPI controller driver.
type Transceiver interface {
	// Transfer clocks out tx while simultaneously capturing the response
	// into rx. len(rx) must equal len(tx); a nil rx discards the
	// response, equivalent to write_read's rx argument in klib or a bare
	// write when the response is of no interest.
	Transfer(tx []byte, rx []byte)
	// IsBusy reports whether a previous Transfer is still shifting out,
	// per spi::is_done's inverse.
	IsBusy() bool
}

// Configurer is satisfied by an SPI controller whose clock frequency and
// mode can be changed at runtime, per spi::init's Frequency/Mode template
// parameters.
type Configurer interface {
	// SetFrequency reprograms the SPI clock divider.
	SetFrequency(hz uint32)
	// SetMode reprograms clock polarity and phase.
	SetMode(m Mode)
}

// Write clocks out data on t, discarding any simultaneously received
// response. Equivalent to klib's spi<Spi>::write.
func Write(t Transceiver, data []byte) {
	t.Transfer(data, nil)
}
