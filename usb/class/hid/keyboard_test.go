package hid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armhal/hal/usb"
)

// TestEncodeReportLetterA exercises the "HID letter 'A'" scenario's
// encoding: {report_id=1, modifier=LSHIFT, keycode=KEY_A}.
func TestEncodeReportLetterA(t *testing.T) {
	r, ok := EncodeReport('A')
	require.True(t, ok)
	assert.Equal(t, byte(ModLeftShift), r.Modifier)
	assert.Equal(t, byte(KeyA), r.Keycode)
	assert.Equal(t, []byte{0x01, 0x02, 0x04}, r.Bytes())
}

func TestEncodeReportLowercaseA(t *testing.T) {
	r, ok := EncodeReport('a')
	require.True(t, ok)
	assert.Equal(t, byte(0), r.Modifier)
	assert.Equal(t, byte(KeyA), r.Keycode)
}

// TestEncodeReportPeriodExclamationDistinct guards against reintroducing
// klib's case-fallthrough bug, where '.' and '!' both ended up encoding as
// '?' because the switch statement lacked break after those cases.
func TestEncodeReportPeriodExclamationDistinct(t *testing.T) {
	period, ok := EncodeReport('.')
	require.True(t, ok)
	assert.Equal(t, byte(KeyPeriod), period.Keycode)
	assert.Equal(t, byte(0), period.Modifier)

	bang, ok := EncodeReport('!')
	require.True(t, ok)
	assert.Equal(t, byte(Key1), bang.Keycode)
	assert.Equal(t, byte(ModLeftShift), bang.Modifier)

	question, ok := EncodeReport('?')
	require.True(t, ok)

	assert.NotEqual(t, period.Bytes(), question.Bytes())
	assert.NotEqual(t, bang.Bytes(), question.Bytes())
}

// TestBuildReportSequenceDoubledLetter exercises the "HID doubled 'L'"
// scenario: typing "LL" must insert a release report between the two L
// reports, plus a trailing release report.
func TestBuildReportSequenceDoubledLetter(t *testing.T) {
	reports := BuildReportSequence([]byte("LL"))
	require.Len(t, reports, 4)

	l, _ := EncodeReport('L')
	assert.Equal(t, l.Bytes(), reports[0])
	assert.Equal(t, Report{}.Bytes(), reports[1])
	assert.Equal(t, l.Bytes(), reports[2])
	assert.Equal(t, Report{}.Bytes(), reports[3])

	assert.Equal(t, [][]byte{
		{0x01, 0x02, 0x0f},
		{0x01, 0x00, 0x00},
		{0x01, 0x02, 0x0f},
		{0x01, 0x00, 0x00},
	}, reports)
}

func TestBuildReportSequenceSingleLetter(t *testing.T) {
	reports := BuildReportSequence([]byte("A"))
	require.Len(t, reports, 2)

	a, _ := EncodeReport('A')
	assert.Equal(t, a.Bytes(), reports[0])
	assert.Equal(t, Report{}.Bytes(), reports[1])
}

type fakeController struct {
	tx [][]byte
}

func (f *fakeController) Tx(ep int, data []byte) error {
	f.tx = append(f.tx, append([]byte(nil), data...))
	return nil
}
func (f *fakeController) Rx(ep int, length int) ([]byte, error) { return nil, nil }
func (f *fakeController) Ack(ep int, dir usb.Direction) error   { return nil }
func (f *fakeController) Stall(ep int, dir usb.Direction)       {}
func (f *fakeController) UnStall(ep int, dir usb.Direction)     {}
func (f *fakeController) SetAddress(addr uint8)                 {}

func TestKeyboardWriteLetterA(t *testing.T) {
	dev := usb.NewDevice()
	dev.ConfigurationValue = 1

	ep := usb.NewEndpoint(1, usb.InMode, 8)
	ep.Enable()

	ctrl := &fakeController{}
	kb := NewKeyboard(dev, ctrl, ep)

	require.NoError(t, kb.Write([]byte("A")))
	require.True(t, kb.IsBusy())
	require.Len(t, ctrl.tx, 1)

	a, _ := EncodeReport('A')
	assert.Equal(t, a.Bytes(), ctrl.tx[0])
	assert.Equal(t, []byte{0x01, 0x02, 0x04}, ctrl.tx[0])

	next, done := ep.Complete(nil, usb.NoError)
	assert.False(t, done)
	assert.Equal(t, Report{}.Bytes(), next)
	assert.True(t, kb.IsBusy())

	_, done = ep.Complete(nil, usb.NoError)
	assert.True(t, done)
	assert.False(t, kb.IsBusy())
}
