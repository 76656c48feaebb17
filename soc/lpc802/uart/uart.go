// Package uart implements the uart package's capability interfaces for the
// NXP LPC802 USART block.
//
// Grounded on original_source/targets/chip/lpc802/io/usart.hpp's usart<Usart>
// class: CFG/BRG/TXDAT/RXDAT/INTSTAT register roles and the has_data/
// is_busy/write/read method shapes are ported directly. Pin routing goes
// through soc/lpc802/mux.Mux.Route with the UART0Tx/UART0Rx function codes
// already declared there, replacing usart::init's matrix::setup<Txd,
// Usart::tx>() call.
package uart

import (
	"github.com/armhal/hal/internal/reg"
	"github.com/armhal/hal/pin"
	lpc802mux "github.com/armhal/hal/soc/lpc802/mux"
	"github.com/armhal/hal/uart"
)

func flex(fn lpc802mux.Function) pin.AF { return pin.AF(fn) }

// Register offsets within the USART block.
const (
	regCFG     = 0x00
	regBRG     = 0x10
	regINTSTAT = 0x24
	regRXDAT   = 0x30
	regTXDAT   = 0x40
)

const (
	intstatRxRdy = 1 << 0
	intstatTxRdy = 1 << 2
)

// UART drives one LPC802 USART instance.
type UART struct {
	Base  uint32
	Mux   *lpc802mux.Mux
	Tx    pin.Pin
	Rx    pin.Pin
	Clock uint32 // input clock to the baud-rate generator, in Hz
}

// Init configures the pins via the switch matrix, enables an 8N1 frame, and
// programs the baud-rate generator, per usart::init.
func (u *UART) Init(baud uint32) {
	u.Mux.Route(u.Tx, flex(lpc802mux.UART0Tx))
	u.Mux.Route(u.Rx, flex(lpc802mux.UART0Rx))

	reg.Write(u.Base+regCFG, 0x1|(0x1<<2))
	reg.Write(u.Base+regBRG, (u.Clock>>4)/baud-1)
}

// SetBaudRate implements uart.Configurer.
func (u *UART) SetBaudRate(baud uint32) {
	reg.Write(u.Base+regBRG, (u.Clock>>4)/baud-1)
}

// HasData implements uart.Reader, per usart::has_data's RBS bit.
func (u *UART) HasData() bool {
	return reg.Read(u.Base+regINTSTAT)&intstatRxRdy != 0
}

// ReadByte implements uart.Reader.
func (u *UART) ReadByte() byte {
	return byte(reg.Read(u.Base + regRXDAT))
}

// IsBusy implements uart.Writer, per usart::is_busy's inverted TXIDLE bit.
func (u *UART) IsBusy() bool {
	return reg.Read(u.Base+regINTSTAT)&intstatTxRdy == 0
}

// WriteByte implements uart.Writer.
func (u *UART) WriteByte(b byte) {
	reg.Write(u.Base+regTXDAT, uint32(b))
}

var (
	_ uart.Reader     = (*UART)(nil)
	_ uart.Writer     = (*UART)(nil)
	_ uart.ReadWriter = (*UART)(nil)
	_ uart.Configurer = (*UART)(nil)
)
