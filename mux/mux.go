// Peripheral pin-routing contract
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mux implements the chip-independent side of the pin/peripheral
// routing contract described in the pin-routing component of this module:
// set_peripheral(pin, af) validated against a per-chip legality table, with
// the actual register write delegated to a Router supplied by the owning
// soc/* package.
//
// klib performs this legality check at compile time, dispatching on a
// non-type template parameter (targets/core/nxp/lpc175x/port.hpp,
// set_peripheral<Pin, Periph>() with if constexpr branches over
// alternate::func_1/func_2/func_3). Go generics cannot express a
// compile-time table lookup over arbitrary (pin, peripheral) pairs, so
// Peripheral.Bind performs the same check through Table.Resolve instead and
// panics on an illegal combination -- a construction-time diagnostic rather than a
// recoverable error, matching how an invalid template instantiation would
// simply fail to build in the original.
package mux

import (
	"fmt"

	"github.com/armhal/hal/pin"
)

// Binding records that a given Pin may be routed to a given alternate
// function when acting in the named Role, e.g. {PA9, "uart0.tx", AF1}. Each
// soc/* package builds a Table listing every legal binding for its chip.
type Binding struct {
	Pin  pin.Pin
	Role string
	AF   pin.AF
}

// Table is the legality table for one chip's pin-mux hardware.
type Table []Binding

// Resolve reports the alternate function that routes p into role, if any
// such binding is legal for this chip.
func (t Table) Resolve(p pin.Pin, role string) (pin.AF, bool) {
	for _, b := range t {
		if b.Pin == p && b.Role == role {
			return b.AF, true
		}
	}

	return pin.None, false
}

// Router commits a resolved (pin, alternate function) pair to the physical
// mux hardware. Implementations live in soc/*/mux/mux.go: one per mux style
// (LPC17xx's 2-bit PINSEL field, LPC802's switch matrix, ...).
type Router interface {
	Route(p pin.Pin, af pin.AF)
}

// Peripheral binds a fixed set of named signal roles (R is normally a small
// int-based enum declared by the calling peripheral driver, e.g. a UART's
// Tx/Rx/Rts/Cts) to concrete pins, validating each binding against a Table
// and committing it through a Router.
//
// Parameterizing on R gives each peripheral kind its own role namespace: a
// UART's Peripheral[uartRole] and an SPI's Peripheral[spiRole] cannot have
// their role keys confused with one another at compile time, even though
// both ultimately route through the same Table/Router machinery.
type Peripheral[R comparable] struct {
	table  Table
	router Router
	bound  map[R]pin.Pin
}

// NewPeripheral constructs a Peripheral bound against the given chip routing
// table and mux router.
func NewPeripheral[R comparable](table Table, router Router) *Peripheral[R] {
	return &Peripheral[R]{
		table:  table,
		router: router,
		bound:  make(map[R]pin.Pin),
	}
}

// Bind routes p to serve the given role, after checking the binding against
// the peripheral's Table. role must match the Role string used when the
// Table was built. Bind panics if the (pin, role) pair is not a legal
// routing for this chip, or if role has already been bound to a different
// pin.
func (p *Peripheral[R]) Bind(role R, roleName string, pn pin.Pin) {
	af, ok := p.table.Resolve(pn, roleName)
	if !ok {
		panic(fmt.Sprintf("mux: pin %s cannot be routed to role %q", pn, roleName))
	}

	if existing, bound := p.bound[role]; bound && existing != pn {
		panic(fmt.Sprintf("mux: role %q already bound to pin %s", roleName, existing))
	}

	p.router.Route(pn, af)
	p.bound[role] = pn
}

// Pin returns the pin currently bound to role, if any.
func (p *Peripheral[R]) Pin(role R) (pin.Pin, bool) {
	v, ok := p.bound[role]
	return v, ok
}
