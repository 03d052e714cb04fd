package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
)

func sendByte(s *LogSink, b uint8) {
	s.Write(addr.SB, b)
	s.Write(addr.SC, 0x81)
}

func TestImmediateTransfer(t *testing.T) {
	irq := interrupt.NewController()
	s := NewLogSink(irq)

	sendByte(s, 'A')

	// no peer: all ones shift in, start bit clears, interrupt fires
	assert.Equal(t, uint8(0xFF), s.Read(addr.SB))
	assert.Equal(t, uint8(0x01), s.Read(addr.SC)&0x81)
	assert.True(t, irq.Requested(interrupt.Serial))
}

func TestTimedTransfer(t *testing.T) {
	irq := interrupt.NewController()
	s := NewLogSink(irq, WithTransferTiming())

	sendByte(s, 'A')
	assert.False(t, irq.Requested(interrupt.Serial))

	s.Tick(transferCycles - 1)
	assert.False(t, irq.Requested(interrupt.Serial))

	s.Tick(1)
	assert.True(t, irq.Requested(interrupt.Serial))
	assert.Equal(t, uint8(0xFF), s.Read(addr.SB))
}

func TestExternalClockNeverCompletes(t *testing.T) {
	irq := interrupt.NewController()
	s := NewLogSink(irq)

	s.Write(addr.SB, 'A')
	s.Write(addr.SC, 0x80) // external clock, no peer to drive it

	s.Tick(transferCycles * 4)
	assert.False(t, irq.Requested(interrupt.Serial))
	assert.Equal(t, uint8(0x80), s.Read(addr.SC)&0x80)
}

func TestLineListener(t *testing.T) {
	var lines []string
	irq := interrupt.NewController()
	s := NewLogSink(irq, WithLineListener(func(line string) {
		lines = append(lines, line)
	}))

	for _, b := range []byte("Passed\nall tests\n") {
		sendByte(s, b)
	}

	assert.Equal(t, []string{"Passed", "all tests"}, lines)
}

func TestResetDropsPartialLine(t *testing.T) {
	var lines []string
	irq := interrupt.NewController()
	s := NewLogSink(irq, WithLineListener(func(line string) {
		lines = append(lines, line)
	}))

	sendByte(s, 'x')
	s.Reset()
	sendByte(s, '\n')

	assert.Empty(t, lines)
}
