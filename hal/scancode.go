package hal

// Scan code set 1 make codes (PC/AT keyboard controller at PortKeyboardData).
// Break codes are the make code with bit 7 set.

const ScancodeBreak uint8 = 0x80

var runeScancodes = map[rune]uint8{
	'1': 0x02, '2': 0x03, '3': 0x04, '4': 0x05, '5': 0x06,
	'6': 0x07, '7': 0x08, '8': 0x09, '9': 0x0A, '0': 0x0B,
	'-': 0x0C, '=': 0x0D,
	'q': 0x10, 'w': 0x11, 'e': 0x12, 'r': 0x13, 't': 0x14,
	'y': 0x15, 'u': 0x16, 'i': 0x17, 'o': 0x18, 'p': 0x19,
	'[': 0x1A, ']': 0x1B,
	'a': 0x1E, 's': 0x1F, 'd': 0x20, 'f': 0x21, 'g': 0x22,
	'h': 0x23, 'j': 0x24, 'k': 0x25, 'l': 0x26,
	';': 0x27, '\'': 0x28, '`': 0x29, '\\': 0x2B,
	'z': 0x2C, 'x': 0x2D, 'c': 0x2E, 'v': 0x2F, 'b': 0x30,
	'n': 0x31, 'm': 0x32,
	',': 0x33, '.': 0x34, '/': 0x35,
	' ':  0x39,
	'\n': 0x1C, '\r': 0x1C, '\t': 0x0F, '\b': 0x0E, 0x7f: 0x0E, 0x1b: 0x01,
}

var keyScancodes = map[KeyCode]uint8{
	KeyEscape:    0x01,
	KeyBackspace: 0x0E,
	KeyTab:       0x0F,
	KeyEnter:     0x1C,
	KeyUp:        0x48,
	KeyLeft:      0x4B,
	KeyRight:     0x4D,
	KeyDown:      0x50,
}

var scancodeRunes = func() map[uint8]rune {
	m := make(map[uint8]rune, len(runeScancodes))
	for r, code := range runeScancodes {
		switch r {
		case '\r', 0x7f:
			continue
		}
		m[code] = r
	}
	return m
}()

// Scancode converts a key event into the byte the keyboard controller would
// latch for it.
func Scancode(ev KeyEvent) (uint8, bool) {
	var code uint8
	var ok bool
	if ev.Rune != 0 {
		r := ev.Rune
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		code, ok = runeScancodes[r]
	} else {
		code, ok = keyScancodes[ev.Code]
	}
	if !ok {
		return 0, false
	}
	if !ev.Press {
		code |= ScancodeBreak
	}
	return code, true
}

// ScancodeRune maps a make code back to the unshifted rune it types.
// Break codes and keys without a rune report false.
func ScancodeRune(code uint8) (rune, bool) {
	if code&ScancodeBreak != 0 {
		return 0, false
	}
	r, ok := scancodeRunes[code]
	return r, ok
}
