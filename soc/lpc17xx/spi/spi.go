// Package spi implements the spi package's capability interfaces for the
// NXP LPC17xx SSP/SPI block.
//
// Grounded on original_source/targets/core/nxp/lpc175x/spi.hpp's spi<Spi>
// class: CCR's clock-divider write in init, SR's busy bit in is_done, and
// the byte-at-a-time DR read/write loop in write_read/write are ported
// directly. klib's compile-time Bits template parameter (8-16 bits per
// transfer) is fixed at 8 here, matching this package's []byte-oriented
// Transceiver interface.
package spi

import (
	"github.com/armhal/hal/internal/reg"
	"github.com/armhal/hal/spi"
)

// Register offsets within the SSP block.
const (
	regCR0 = 0x00
	regCR1 = 0x04
	regDR  = 0x08
	regSR  = 0x0c
	regCCR = 0x10
)

const srBusy = 1 << 4

// SPI drives one LPC17xx SSP/SPI controller instance.
type SPI struct {
	Base  uint32
	Clock uint32 // input clock to the CCR divider, in Hz
}

// Init enables the controller as an 8-bit SPI master at frequency hz, per
// spi<Spi>::init.
func (s *SPI) Init(hz uint32, mode spi.Mode) {
	reg.Write(s.Base+regCR0, 0x07|(uint32(mode)<<6))
	reg.Write(s.Base+regCR1, 0x02)
	s.SetFrequency(hz)
}

// SetFrequency implements spi.Configurer, per init's CCR write.
func (s *SPI) SetFrequency(hz uint32) {
	reg.Write(s.Base+regCCR, s.Clock/hz)
}

// SetMode implements spi.Configurer.
func (s *SPI) SetMode(m spi.Mode) {
	reg.SetN(s.Base+regCR0, 6, 0b11, uint32(m))
}

// IsBusy implements spi.Transceiver, per spi<Spi>::is_done's inverse.
func (s *SPI) IsBusy() bool {
	return reg.Read(s.Base+regSR)&srBusy != 0
}

// Transfer implements spi.Transceiver, per spi<Spi>::write_read/write.
func (s *SPI) Transfer(tx []byte, rx []byte) {
	for i, b := range tx {
		for s.IsBusy() {
		}

		reg.Write(s.Base+regDR, uint32(b))

		for s.IsBusy() {
		}

		in := byte(reg.Read(s.Base + regDR))
		if rx != nil {
			rx[i] = in
		}
	}
}

var _ spi.Transceiver = (*SPI)(nil)
var _ spi.Configurer = (*SPI)(nil)
