// USB HID keyboard class device
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hid implements a USB HID keyboard, grounded on
// klib/usb/device/keyboard.hpp: an IRQ continuation drives one 3-byte
// report per IN token, inserting an all-keys-released report between two
// consecutive identical characters (otherwise the host coalesces them into
// a single keystroke), until the whole buffer has been sent.
//
// klib's encode_report has a case-fallthrough bug (missing `break`
// statements after the '.' and '!' cases in its switch) that makes every
// '.' or '!' character actually encode as '?'. This package reimplements
// the ASCII-to-keycode mapping as an explicit table instead of a
// fall-through switch, so '.' and '!' encode correctly.
package hid

import (
	"github.com/armhal/hal/usb"
)

// Keycode is a USB HID Usage Tables keyboard/keypad usage ID (§10).
type Keycode uint8

const (
	KeyNone      Keycode = 0x00
	KeyA         Keycode = 0x04
	KeyZ         Keycode = 0x1d
	Key1         Keycode = 0x1e
	Key0         Keycode = 0x27
	KeyEnter     Keycode = 0x28
	KeyEscape    Keycode = 0x29
	KeyBackspace Keycode = 0x2a
	KeyTab       Keycode = 0x2b
	KeySpace     Keycode = 0x2c
	KeyMinus     Keycode = 0x2d
	KeyEqual     Keycode = 0x2e
	KeyLeftBrace Keycode = 0x2f
	KeyRightBrace Keycode = 0x30
	KeyBackslash Keycode = 0x31
	KeySemicolon Keycode = 0x33
	KeyApostrophe Keycode = 0x34
	KeyGrave     Keycode = 0x35
	KeyComma     Keycode = 0x36
	KeyPeriod    Keycode = 0x37
	KeySlash     Keycode = 0x38
)

// Modifier bits of Report.Modifier, the second byte of a rendered report.
const (
	ModLeftCtrl  = 1 << 0
	ModLeftShift = 1 << 1
	ModLeftAlt   = 1 << 2
)

// ReportID is this device's sole HID input report id.
const ReportID = 1

// Report is the 3-byte keyboard input report this device emits: a report
// id, a modifier byte, and a single keycode (one key down at a time --
// unlike the six-keycode HID boot-protocol report, klib's keyboard device
// only ever drives one key per report, inserting an all-released report
// between repeats instead of tracking simultaneous keys).
type Report struct {
	Modifier byte
	Keycode  byte
}

// Bytes renders the report for transmission.
func (r Report) Bytes() []byte {
	return []byte{ReportID, r.Modifier, r.Keycode}
}

// encoding pairs a keycode with the shift modifier state required to
// produce a given ASCII character.
type encoding struct {
	code  Keycode
	shift bool
}

// asciiTable maps ASCII characters to their boot-keyboard encoding.
// Declared as an explicit map rather than klib's switch statement, so that
// look-alike cases ('.' / '!') cannot silently fall into one another.
var asciiTable = buildASCIITable()

func buildASCIITable() map[byte]encoding {
	t := make(map[byte]encoding)

	for c := byte('a'); c <= 'z'; c++ {
		t[c] = encoding{code: KeyA + Keycode(c-'a'), shift: false}
	}

	for c := byte('A'); c <= 'Z'; c++ {
		t[c] = encoding{code: KeyA + Keycode(c-'A'), shift: true}
	}

	t['1'], t['!'] = encoding{Key1 + 0, false}, encoding{Key1 + 0, true}
	t['2'], t['@'] = encoding{Key1 + 1, false}, encoding{Key1 + 1, true}
	t['3'], t['#'] = encoding{Key1 + 2, false}, encoding{Key1 + 2, true}
	t['4'], t['$'] = encoding{Key1 + 3, false}, encoding{Key1 + 3, true}
	t['5'], t['%'] = encoding{Key1 + 4, false}, encoding{Key1 + 4, true}
	t['6'], t['^'] = encoding{Key1 + 5, false}, encoding{Key1 + 5, true}
	t['7'], t['&'] = encoding{Key1 + 6, false}, encoding{Key1 + 6, true}
	t['8'], t['*'] = encoding{Key1 + 7, false}, encoding{Key1 + 7, true}
	t['9'], t['('] = encoding{Key1 + 8, false}, encoding{Key1 + 8, true}
	t['0'], t[')'] = encoding{Key0, false}, encoding{Key0, true}

	t['\n'] = encoding{KeyEnter, false}
	t['\t'] = encoding{KeyTab, false}
	t[' '] = encoding{KeySpace, false}
	t['\b'] = encoding{KeyBackspace, false}

	t['-'], t['_'] = encoding{KeyMinus, false}, encoding{KeyMinus, true}
	t['='], t['+'] = encoding{KeyEqual, false}, encoding{KeyEqual, true}
	t['['], t['{'] = encoding{KeyLeftBrace, false}, encoding{KeyLeftBrace, true}
	t[']'], t['}'] = encoding{KeyRightBrace, false}, encoding{KeyRightBrace, true}
	t['\\'], t['|'] = encoding{KeyBackslash, false}, encoding{KeyBackslash, true}
	t[';'], t[':'] = encoding{KeySemicolon, false}, encoding{KeySemicolon, true}
	t['\''], t['"'] = encoding{KeyApostrophe, false}, encoding{KeyApostrophe, true}
	t['`'], t['~'] = encoding{KeyGrave, false}, encoding{KeyGrave, true}
	t[','], t['<'] = encoding{KeyComma, false}, encoding{KeyComma, true}
	t['.'], t['>'] = encoding{KeyPeriod, false}, encoding{KeyPeriod, true}
	t['/'], t['?'] = encoding{KeySlash, false}, encoding{KeySlash, true}

	return t
}

// EncodeReport renders the report for ASCII character c, reporting false
// if c has no keyboard encoding.
func EncodeReport(c byte) (Report, bool) {
	enc, ok := asciiTable[c]
	if !ok {
		return Report{}, false
	}

	r := Report{Keycode: byte(enc.code)}
	if enc.shift {
		r.Modifier = ModLeftShift
	}

	return r, true
}

// Keyboard is a composed-device HID keyboard emitting 3-byte Reports.
type Keyboard struct {
	dev  *usb.Device
	ctrl usb.Controller
	ep   *usb.Endpoint

	busy bool
}

// NewKeyboard constructs a Keyboard presenting a single-interface HID
// device descriptor set, with its interrupt IN endpoint registered on dev
// and driven through ctrl.
func NewKeyboard(dev *usb.Device, ctrl usb.Controller, ep *usb.Endpoint) *Keyboard {
	dev.AddEndpoint(ep)
	return &Keyboard{dev: dev, ctrl: ctrl, ep: ep}
}

// Device implements usb.Target.
func (k *Keyboard) Device() *usb.Device { return k.dev }

// IsConfigured reports whether the host has selected a configuration.
func (k *Keyboard) IsConfigured() bool {
	return k.dev.ConfigurationValue != 0
}

// IsBusy reports whether a Write is still draining to the host.
func (k *Keyboard) IsBusy() bool {
	return k.busy
}

// Write transmits buf one report per character, as a sequence of interrupt
// IN transfers driven by the endpoint's completion continuation. An
// all-keys-released report is inserted between two identical consecutive
// characters so the host does not coalesce them into a single keystroke,
// matching klib::usb::device::keyboard hid_callback<Usb>'s repeated_key
// handling. A trailing all-keys-released report always terminates the
// sequence.
func (k *Keyboard) Write(buf []byte) error {
	if !k.IsConfigured() || k.busy {
		return errBusyOrUnconfigured
	}

	if len(buf) == 0 {
		return nil
	}

	reports := BuildReportSequence(buf)

	k.busy = true
	pos := 0

	if _, err := k.ep.Arm(usb.In, func(data []byte, err usb.Error) ([]byte, bool) {
		if err != usb.NoError {
			k.busy = false
			return nil, true
		}

		pos++

		if pos >= len(reports) {
			k.busy = false
			return nil, true
		}

		return reports[pos], false
	}); err != nil {
		k.busy = false
		return err
	}

	return k.ctrl.Tx(k.ep.Number(), reports[0])
}

// BuildReportSequence renders the full sequence of keyboard reports
// needed to type buf, inserting an all-keys-released report between two
// identical consecutive characters and appending a final all-keys-released
// report.
func BuildReportSequence(buf []byte) [][]byte {
	reports := make([][]byte, 0, len(buf)+1)

	for i, c := range buf {
		if i > 0 && buf[i] == buf[i-1] {
			reports = append(reports, Report{}.Bytes())
		}

		report, ok := EncodeReport(c)
		if !ok {
			report = Report{}
		}

		reports = append(reports, report.Bytes())
	}

	reports = append(reports, Report{}.Bytes())

	return reports
}

var errBusyOrUnconfigured = busyError{}

type busyError struct{}

func (busyError) Error() string { return "hid: keyboard busy or not configured" }
