package memory

import (
	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/bit"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
)

// JoypadKey identifies one key of the joypad matrix.
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// keyLine returns the key's line bit (0-3) and whether it sits in the
// button group (true) or the d-pad group (false).
func (k JoypadKey) keyLine() (uint8, bool) {
	switch k {
	case JoypadA, JoypadB, JoypadSelect, JoypadStart:
		return uint8(k - JoypadA), true
	default:
		return uint8(k), false
	}
}

// writeJoypad stores P1: only the group select bits 4-5 are writable.
func (m *MMU) writeJoypad(value uint8) {
	m.memory[addr.P1] = value & 0b0011_0000
}

// readJoypad composes P1 from the select bits and the key line states.
// Bits 6-7 always read as 1; with both groups selected the lines are
// ANDed; with neither selected the lines float high.
func (m *MMU) readJoypad() uint8 {
	p1 := m.memory[addr.P1]
	result := uint8(0b1100_0000) | p1&0b0011_0000

	selectDpad := !bit.IsSet(4, p1)
	selectButtons := !bit.IsSet(5, p1)

	switch {
	case selectButtons && selectDpad:
		result |= m.joypadButtons & m.joypadDpad & 0x0F
	case selectButtons:
		result |= m.joypadButtons & 0x0F
	case selectDpad:
		result |= m.joypadDpad & 0x0F
	default:
		result |= 0x0F
	}
	return result
}

// PressKey pulls a key line low and requests the joypad interrupt on
// the high to low transition.
func (m *MMU) PressKey(key JoypadKey) {
	line, buttons := key.keyLine()
	if buttons {
		if bit.IsSet(line, m.joypadButtons) {
			m.joypadButtons = bit.Clear(line, m.joypadButtons)
			m.irq.Request(interrupt.Joypad)
		}
	} else {
		if bit.IsSet(line, m.joypadDpad) {
			m.joypadDpad = bit.Clear(line, m.joypadDpad)
			m.irq.Request(interrupt.Joypad)
		}
	}
}

// ReleaseKey lets a key line float high again.
func (m *MMU) ReleaseKey(key JoypadKey) {
	line, buttons := key.keyLine()
	if buttons {
		m.joypadButtons = bit.Set(line, m.joypadButtons)
	} else {
		m.joypadDpad = bit.Set(line, m.joypadDpad)
	}
}
