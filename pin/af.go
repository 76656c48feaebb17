package pin

// AF identifies an alternate function a pin may be routed to, in place of
// its default GPIO role. Each soc/* package defines its own AF constants;
// the zero value None always denotes plain GPIO.
//
// klib expresses this as a set of tag types consumed as C++ non-type
// template parameters (targets/core/nxp/lpc175x/port.hpp,
// alternate::func_1/func_2/func_3). Go has no equivalent compile-time
// template slot, so AF is a small value type checked at routing time by
// mux.Table.Resolve instead (see package mux) -- a runtime panic on an
// illegal (Pin, AF) combination is the accepted fallback noted in the
// design notes.
type AF uint8

// None denotes the pin's default GPIO function, with no peripheral routed.
const None AF = 0
