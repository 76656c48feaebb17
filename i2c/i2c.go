// Chip-independent I2C driver contract
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package i2c declares the capability interfaces every soc/* I2C driver
// satisfies.
//
// Grounded on original_source/targets/max32660/io/i2c.hpp's i2c<I2c>::read/
// write: a start-condition-addressed, optionally-repeated-start, optionally
// stop-terminated transfer against a 7-bit slave address, returning a bool
// success (nack/bus-error produce false rather than a detailed error code,
// which this package keeps as a plain bool to match). Speed is modeled as
// an enum of named standard rates rather than an arbitrary Hz value, per
// i2c::speed's standard/fast/fast_plus/high.
package i2c

// Speed names a standard I2C bus rate, per klib's i2c<I2c>::speed enum.
type Speed uint32

const (
	Standard Speed = 100_000
	Fast     Speed = 400_000
	FastPlus Speed = 1_000_000
	High     Speed = 3_400_000
)

// Option modifies how a single Read or Write is framed on the bus.
type Option uint8

const (
	// NoStop suppresses the trailing stop condition, leaving the bus
	// held for a following repeated-start transfer, per read/write's
	// SendStop=false template argument.
	NoStop Option = 1 << iota
	// RepeatedStart issues a repeated start instead of a normal start,
	// per read/write's RepeatedStart=true template argument.
	RepeatedStart
)

// Has reports whether want is present among opts. Exported for soc/*
// drivers implementing Controller to decode their Option arguments.
func Has(opts []Option, want Option) bool {
	for _, o := range opts {
		if o&want != 0 {
			return true
		}
	}
	return false
}

// Controller is satisfied by any soc/* I2C master driver.
type Controller interface {
	// Read clocks size bytes from the slave at address into data, per
	// i2c<I2c>::read. Returns false on nack or bus error.
	Read(address uint8, data []byte, opts ...Option) bool
	// Write clocks data to the slave at address, per i2c<I2c>::write.
	// Returns false on nack or bus error.
	Write(address uint8, data []byte, opts ...Option) bool
	// Stop terminates a transfer left open by NoStop, per i2c<I2c>::stop.
	Stop()
}

// Configurer is satisfied by an I2C controller whose bus speed can be
// changed at runtime, per i2c<I2c>::init's Speed template parameter.
type Configurer interface {
	SetSpeed(s Speed)
}
