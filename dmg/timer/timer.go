// Package timer emulates the DIV/TIMA/TMA/TAC timer block. TIMA does
// not tick on fixed cycle boundaries: it increments on falling edges of
// one bit of the free running 16 bit divider, which is what makes the
// DIV write and overflow reload quirks observable.
package timer

import (
	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/bit"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
)

// tacBit maps the TAC clock select (bits 1-0) to the divider bit whose
// falling edge clocks TIMA:
//
//	00 -> bit 9  (4096 Hz)
//	01 -> bit 3  (262144 Hz)
//	10 -> bit 5  (65536 Hz)
//	11 -> bit 7  (16384 Hz)
var tacBit = [4]uint16{9, 3, 5, 7}

// overflowDelay is how many T-cycles TIMA reads 0 after overflowing
// before the TMA reload and interrupt request happen.
const overflowDelay = 4

// Timer holds the timer state for one machine instance.
type Timer struct {
	counter uint16 // internal divider; DIV is its upper byte
	lastBit bool   // previous state of the watched bit, for edge detection

	// overflow counts down the reload window after TIMA wraps. While it
	// is nonzero TIMA reads 0x00; when it hits zero TIMA is reloaded
	// from TMA and the timer interrupt is requested.
	overflow int

	tima uint8
	tma  uint8
	tac  uint8

	irq *interrupt.Controller
}

func New(irq *interrupt.Controller) *Timer {
	return &Timer{irq: irq}
}

// Tick advances the timer by the given number of T-cycles.
func (t *Timer) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		t.counter++

		if t.overflow > 0 {
			t.overflow--
			if t.overflow == 0 {
				t.tima = t.tma
				t.irq.Request(interrupt.Timer)
			}
			continue
		}

		if bit.IsSet(2, t.tac) {
			current := bit.IsSet16(tacBit[t.tac&0x03], t.counter)
			if t.lastBit && !current {
				t.incrementTIMA()
			}
			t.lastBit = current
		} else {
			t.lastBit = false
		}
	}
}

func (t *Timer) incrementTIMA() {
	if t.tima == 0xFF {
		t.overflow = overflowDelay
	}
	t.tima++
}

// Read returns the value of one of the four timer registers.
func (t *Timer) Read(address uint16) uint8 {
	switch address {
	case addr.DIV:
		return uint8(t.counter >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac | 0xF8
	default:
		return 0xFF
	}
}

// Write stores one of the four timer registers, applying side effects.
func (t *Timer) Write(address uint16, value uint8) {
	switch address {
	case addr.DIV:
		// Any write zeroes the whole divider. If the watched bit was
		// high this is itself a falling edge and clocks TIMA.
		t.counter = 0
		if bit.IsSet(2, t.tac) && t.lastBit {
			t.incrementTIMA()
		}
		t.lastBit = false
	case addr.TIMA:
		// A write during the reload window cancels the pending reload
		// and interrupt.
		t.overflow = 0
		t.tima = value
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.tac = value & 0x07
	}
}
