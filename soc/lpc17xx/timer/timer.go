// Package timer implements the timer package's capability interfaces for
// the NXP LPC17xx 32-bit timer/PWM block.
//
// Grounded on original_source/targets/core/nxp/lpc175x/timer.hpp: the free-
// running counter (TCR enable/disable, TC the counter register, MR0 the
// match-reset register driving the interrupt period) is ported from
// timer<Timer>::init/set_frequency/enable/disable/get_counter/
// clear_counter. The PWM duty-cycle generator (pwm<Pwm>::dutycycle/set) is
// ported onto the same block's PWM match registers (MR1+), since LPC17xx's
// PWM hardware is the same timer counter with extra match-triggered outputs
// rather than a separate peripheral.
package timer

import (
	"github.com/armhal/hal/internal/reg"
	"github.com/armhal/hal/timer"
)

// Register offsets within the timer block.
const (
	regTCR = 0x04
	regTC  = 0x08
	regMR0 = 0x18
	regMR1 = 0x1c
)

// Timer drives one LPC17xx 32-bit timer/PWM counter.
type Timer struct {
	Base  uint32
	Clock uint32 // counter input clock, in Hz, after the prescaler
}

// Enable implements timer.Counter, per timer::enable.
func (t *Timer) Enable() { reg.Set(t.Base+regTCR, 0) }

// Disable implements timer.Counter, per timer::disable.
func (t *Timer) Disable() { reg.Clear(t.Base+regTCR, 0) }

// Value implements timer.Counter, per timer::get_counter.
func (t *Timer) Value() uint32 { return reg.Read(t.Base + regTC) }

// Reset implements timer.Counter, per timer::clear_counter.
func (t *Timer) Reset() { reg.Set(t.Base+regTCR, 1) }

// SetFrequency implements timer.Counter, per timer::set_frequency: program
// MR0 so the counter resets at the requested period.
func (t *Timer) SetFrequency(hz uint32) {
	reg.Write(t.Base+regMR0, t.Clock/hz)
}

// SetDutyCycle implements timer.PWM, per pwm<Pwm>::dutycycle(float): scale
// the fraction against the current period stored in MR0.
func (t *Timer) SetDutyCycle(fraction float32) {
	period := reg.Read(t.Base + regMR0)
	reg.Write(t.Base+regMR1, uint32(float32(period)*fraction))
}

var (
	_ timer.Counter = (*Timer)(nil)
	_ timer.PWM     = (*Timer)(nil)
)
