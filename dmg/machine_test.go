package dmg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/cpu"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
	"github.com/halfcarry/dotmatrix/dmg/memory"
)

// buildROM assembles a minimal 32KB image with a valid header and the
// given program at the entry point.
func buildROM(cartType, ramSizeCode byte, program ...byte) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0134:], "TESTROM")
	rom[0x0147] = cartType
	rom[0x0148] = 0x00
	rom[0x0149] = ramSizeCode
	copy(rom[0x0100:], program)
	return rom
}

// spin is an infinite relative jump onto itself.
var spin = []byte{0x18, 0xFE}

func TestNewWithROM(t *testing.T) {
	m, err := NewWithROM(buildROM(0x00, 0x00, spin...))
	require.NoError(t, err)

	assert.Equal(t, "TESTROM", m.Cartridge().Title())
	assert.Equal(t, uint16(0x0100), m.CPU.PC())
	assert.Equal(t, uint64(0), m.Cycles())
}

func TestNewWithROMRejectsBadImage(t *testing.T) {
	_, err := NewWithROM(make([]byte, 0x100))
	assert.ErrorIs(t, err, memory.ErrROMTooSmall)
}

func TestStepAdvancesComponents(t *testing.T) {
	m, err := NewWithROM(buildROM(0x00, 0x00, spin...))
	require.NoError(t, err)

	cycles, err := m.Step()
	require.NoError(t, err)

	assert.Equal(t, 12, cycles, "taken JR")
	assert.Equal(t, uint64(12), m.Cycles())
}

func TestDivCountsWhileRunning(t *testing.T) {
	m, err := NewWithROM(buildROM(0x00, 0x00, spin...))
	require.NoError(t, err)

	for m.Cycles() < 512 {
		_, err := m.Step()
		require.NoError(t, err)
	}

	assert.Equal(t, uint8(2), m.MMU.Read(addr.DIV))
}

func TestRunFrame(t *testing.T) {
	m, err := NewWithROM(buildROM(0x00, 0x00, spin...))
	require.NoError(t, err)

	require.NoError(t, m.RunFrame())

	assert.GreaterOrEqual(t, m.Cycles(), uint64(CyclesPerFrame))
	assert.Equal(t, uint64(1), m.GPU.Frames())
	assert.True(t, m.IRQ.Requested(interrupt.VBlank))
}

func TestStepReportsIllegalOpcode(t *testing.T) {
	m, err := NewWithROM(buildROM(0x00, 0x00, 0xDD))
	require.NoError(t, err)

	_, err = m.Step()
	assert.ErrorIs(t, err, cpu.ErrIllegalOpcode)
}

func TestJoypadRequestsInterrupt(t *testing.T) {
	m, err := NewWithROM(buildROM(0x00, 0x00, spin...))
	require.NoError(t, err)

	m.PressKey(memory.JoypadStart)

	assert.True(t, m.IRQ.Requested(interrupt.Joypad))
	m.ReleaseKey(memory.JoypadStart)
}

func TestBatteryRAMRoundTrip(t *testing.T) {
	// MBC1 with 8KB battery backed RAM
	rom := buildROM(0x03, 0x02, spin...)

	m, err := NewWithROM(rom)
	require.NoError(t, err)

	// enable RAM and store a byte through the bus
	m.MMU.Write(0x0000, 0x0A)
	m.MMU.Write(0xA000, 0x42)

	saved := m.BatteryRAM()
	require.Len(t, saved, 0x2000)
	assert.Equal(t, uint8(0x42), saved[0])

	// a fresh machine restores the snapshot
	m2, err := NewWithROM(rom)
	require.NoError(t, err)
	require.NoError(t, m2.RestoreBatteryRAM(saved))

	m2.MMU.Write(0x0000, 0x0A)
	assert.Equal(t, uint8(0x42), m2.MMU.Read(0xA000))
}

func TestBatteryRAMNilWithoutBattery(t *testing.T) {
	m, err := NewWithROM(buildROM(0x00, 0x00, spin...))
	require.NoError(t, err)

	assert.Nil(t, m.BatteryRAM())
	assert.NoError(t, m.RestoreBatteryRAM([]byte{1, 2, 3}))
}
