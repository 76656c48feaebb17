// Chip-independent timer/PWM driver contract
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package timer declares the capability interfaces every soc/* timer driver
// satisfies.
//
// Grounded on original_source/targets/core/nxp/lpc175x/timer.hpp and
// original_source/targets/max32660/io/timer.hpp, which both split one
// hardware timer block into two faces: a free-running counter driving a
// periodic interrupt (timer<Timer>::init/set_frequency/enable/disable/
// get_counter/clear_counter) and, on the same hardware, a PWM duty-cycle
// generator (pwm<Pwm>::init/dutycycle/set). This package keeps that split as
// Counter and PWM rather than merging them, since not every chip exposes
// both faces of a given timer instance simultaneously.
package timer

// Callback is invoked from a Counter's interrupt handler, per
// timer<Timer>::init's irq callback.
type Callback func()

// Counter is satisfied by any soc/* free-running timer driver.
type Counter interface {
	// SetFrequency reprograms the interrupt/overflow rate, per
	// timer::set_frequency.
	SetFrequency(hz uint32)
	// Enable starts the counter, per timer::enable.
	Enable()
	// Disable stops the counter, per timer::disable.
	Disable()
	// Value returns the current counter register, per
	// timer::get_counter.
	Value() uint32
	// Reset clears the counter register, per timer::clear_counter.
	Reset()
}

// InterruptDriven is satisfied by a Counter able to fire a Callback on
// overflow instead of requiring the caller to poll Value.
type InterruptDriven interface {
	Counter
	// OnOverflow registers cb to run on each counter period, per
	// timer::init's irq argument. nil disables the interrupt.
	OnOverflow(cb Callback)
}

// PWM is satisfied by any soc/* timer channel configured as a duty-cycle
// generator, per klib's pwm<Pwm> class.
type PWM interface {
	// Enable starts the PWM output, per pwm::enable.
	Enable()
	// Disable stops the PWM output, per pwm::disable.
	Disable()
	// SetDutyCycle drives the output to the given fraction of its period,
	// in the range [0,1], per pwm::dutycycle(float).
	SetDutyCycle(fraction float32)
}
