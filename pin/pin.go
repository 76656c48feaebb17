// Pin and port primitives for ARM Cortex-M peripheral routing
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pin provides the chip-independent identity types used throughout
// this module to describe a physical microcontroller pin and the port it
// belongs to.
//
// A Port groups pins that share a single GPIO data/direction register bank
// (e.g. LPC17xx P0/P1/P2/P3, ATSAM4S PIOA/PIOB, MB9BF560L Port0..F). A Pin
// identifies a single bit position within that bank. Neither type carries any
// register address: that binding is supplied by the per-chip soc/* package
// that constructs them, keeping this package reusable across every supported
// family.
package pin

import "fmt"

// Port identifies a bank of pins sharing a GPIO register group.
type Port struct {
	// Name is a short human readable identifier, e.g. "P0", "PIOA".
	Name string
	// ID is the chip-specific bank index (0-based).
	ID int
	// Width is the number of addressable pins in the bank (typically 32).
	Width int
}

// Pin identifies a single pin within a Port.
type Pin struct {
	Port *Port
	// Number is the bit position of this pin within Port.
	Number int
}

// String implements fmt.Stringer.
func (p Pin) String() string {
	if p.Port == nil {
		return fmt.Sprintf("<nil>.%d", p.Number)
	}

	return fmt.Sprintf("%s.%d", p.Port.Name, p.Number)
}

// Mask returns the single-bit mask for this pin within its port register.
func (p Pin) Mask() uint32 {
	return 1 << uint(p.Number)
}

// Valid reports whether the pin number falls within its port's width and the
// port itself is non-nil. New calls Valid and panics on failure, since an
// out-of-range pin number is a programming error detectable at init time
// rather than a recoverable runtime condition. The soc/* constructors that
// take a pin.Pin (NewPin, NewPinGroup) do not call Valid themselves.
func (p Pin) Valid() bool {
	return p.Port != nil && p.Number >= 0 && p.Number < p.Port.Width
}

// New constructs a Pin on the given port, panicking if the pin number is out
// of range for the port's width.
func New(port *Port, number int) Pin {
	p := Pin{Port: port, Number: number}

	if !p.Valid() {
		panic(fmt.Sprintf("pin: invalid pin number %d for port %s", number, port.Name))
	}

	return p
}
