package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
)

func newTestTimer() (*Timer, *interrupt.Controller) {
	irq := interrupt.NewController()
	irq.WriteEnable(0x1F)
	return New(irq), irq
}

func TestDIVCountsUp(t *testing.T) {
	tmr, _ := newTestTimer()

	assert.Equal(t, uint8(0), tmr.Read(addr.DIV))
	tmr.Tick(256)
	assert.Equal(t, uint8(1), tmr.Read(addr.DIV))
	tmr.Tick(256 * 9)
	assert.Equal(t, uint8(10), tmr.Read(addr.DIV))
}

func TestDIVWriteResets(t *testing.T) {
	tmr, _ := newTestTimer()

	tmr.Tick(0x1234)
	assert.NotEqual(t, uint8(0), tmr.Read(addr.DIV))

	tmr.Write(addr.DIV, 0xAB) // written value is ignored
	assert.Equal(t, uint8(0), tmr.Read(addr.DIV))

	// counter itself resets too, not just the visible byte: the next
	// DIV increment needs a full 256 cycles again
	tmr.Tick(255)
	assert.Equal(t, uint8(0), tmr.Read(addr.DIV))
	tmr.Tick(1)
	assert.Equal(t, uint8(1), tmr.Read(addr.DIV))
}

func TestTIMAIncrementsOnFallingEdge(t *testing.T) {
	tmr, _ := newTestTimer()

	// TAC select 01 watches divider bit 3: one falling edge every 16 cycles.
	tmr.Write(addr.TAC, 0x05)

	tmr.Tick(15)
	assert.Equal(t, uint8(0), tmr.Read(addr.TIMA))
	tmr.Tick(1)
	assert.Equal(t, uint8(1), tmr.Read(addr.TIMA))

	tmr.Tick(16 * 10)
	assert.Equal(t, uint8(11), tmr.Read(addr.TIMA))
}

func TestTIMADoesNotTickWhileDisabled(t *testing.T) {
	tmr, _ := newTestTimer()

	tmr.Write(addr.TAC, 0x01) // select set, enable clear
	tmr.Tick(4096)
	assert.Equal(t, uint8(0), tmr.Read(addr.TIMA))
}

func TestOverflowReloadDelay(t *testing.T) {
	tmr, irq := newTestTimer()

	tmr.Write(addr.TAC, 0x05)
	tmr.Write(addr.TMA, 0x42)
	tmr.Write(addr.TIMA, 0xFF)

	// Falling edge at cycle 16 wraps TIMA past 0xFF.
	tmr.Tick(16)
	assert.Equal(t, uint8(0x00), tmr.Read(addr.TIMA), "TIMA reads 0 during the reload window")
	assert.False(t, irq.Requested(interrupt.Timer), "interrupt not requested before the reload cycle")

	tmr.Tick(3)
	assert.Equal(t, uint8(0x00), tmr.Read(addr.TIMA))
	assert.False(t, irq.Requested(interrupt.Timer))

	tmr.Tick(1)
	assert.Equal(t, uint8(0x42), tmr.Read(addr.TIMA), "TIMA reloaded from TMA")
	assert.True(t, irq.Requested(interrupt.Timer))
}

func TestTIMAWriteCancelsReload(t *testing.T) {
	tmr, irq := newTestTimer()

	tmr.Write(addr.TAC, 0x05)
	tmr.Write(addr.TMA, 0x42)
	tmr.Write(addr.TIMA, 0xFF)

	tmr.Tick(16) // overflow, inside the reload window
	tmr.Write(addr.TIMA, 0x99)

	tmr.Tick(8)
	assert.Equal(t, uint8(0x99), tmr.Read(addr.TIMA))
	assert.False(t, irq.Requested(interrupt.Timer))
}

func TestDIVWriteSpuriousEdge(t *testing.T) {
	tmr, _ := newTestTimer()

	tmr.Write(addr.TAC, 0x05)

	// Run until divider bit 3 is high but no edge has fallen yet.
	tmr.Tick(8)
	assert.Equal(t, uint8(0), tmr.Read(addr.TIMA))

	// Resetting the divider forces the watched bit from 1 to 0, which
	// the timer must treat as a falling edge.
	tmr.Write(addr.DIV, 0x00)
	assert.Equal(t, uint8(1), tmr.Read(addr.TIMA))
}

func TestTACUpperBitsReadAsOne(t *testing.T) {
	tmr, _ := newTestTimer()
	tmr.Write(addr.TAC, 0x05)
	assert.Equal(t, uint8(0xFD), tmr.Read(addr.TAC))
}
