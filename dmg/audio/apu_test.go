package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halfcarry/dotmatrix/dmg/addr"
)

// triggerSquare1 sets up channel 1 with a full-volume envelope and a
// mid-range frequency, then triggers it.
func triggerSquare1(a *APU) {
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR13, 0x00)
	a.WriteRegister(addr.NR14, 0x87) // trigger, freq high bits
}

func TestChannelStatusInNR52(t *testing.T) {
	a := New()
	assert.Equal(t, uint8(0xF0), a.ReadRegister(addr.NR52))

	triggerSquare1(a)
	assert.Equal(t, uint8(0xF1), a.ReadRegister(addr.NR52))
}

func TestDACOffSilencesChannel(t *testing.T) {
	a := New()
	triggerSquare1(a)

	// clearing the top 5 bits of NR12 turns the DAC off
	a.WriteRegister(addr.NR12, 0x00)
	assert.Equal(t, uint8(0xF0), a.ReadRegister(addr.NR52))

	// a trigger with the DAC off must not re-enable the channel
	a.WriteRegister(addr.NR14, 0x87)
	assert.Equal(t, uint8(0xF0), a.ReadRegister(addr.NR52))
}

func TestLengthCounterExpires(t *testing.T) {
	a := New()
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR11, 0x3F) // length 64-63 = 1
	a.WriteRegister(addr.NR14, 0xC7) // trigger with length enabled

	assert.Equal(t, uint8(0x01), a.ReadRegister(addr.NR52)&0x0F)

	// the first length clock (frame step 0) silences the channel
	a.Tick(frameSequencerCycles)
	assert.Equal(t, uint8(0x00), a.ReadRegister(addr.NR52)&0x0F)
}

func TestPowerOffClearsRegisters(t *testing.T) {
	a := New()
	a.WriteRegister(addr.NR50, 0x77)
	a.WriteRegister(addr.WaveRAMStart, 0xAB)
	triggerSquare1(a)

	a.WriteRegister(addr.NR52, 0x00)

	assert.Equal(t, uint8(0x70), a.ReadRegister(addr.NR52))
	assert.Equal(t, readOrMask[addr.NR50-addr.AudioStart], a.ReadRegister(addr.NR50))
	// wave RAM survives the power cycle
	assert.Equal(t, uint8(0xAB), a.ReadRegister(addr.WaveRAMStart))
}

func TestRegistersReadOnlyWhilePoweredOff(t *testing.T) {
	a := New()
	a.WriteRegister(addr.NR52, 0x00)

	a.WriteRegister(addr.NR50, 0x77)
	assert.Equal(t, readOrMask[addr.NR50-addr.AudioStart], a.ReadRegister(addr.NR50))

	// wave RAM stays writable
	a.WriteRegister(addr.WaveRAMStart+1, 0x42)
	assert.Equal(t, uint8(0x42), a.ReadRegister(addr.WaveRAMStart+1))

	a.WriteRegister(addr.NR52, 0x80)
	a.WriteRegister(addr.NR50, 0x77)
	assert.Equal(t, uint8(0x77), a.ReadRegister(addr.NR50))
}

func TestReadOrMask(t *testing.T) {
	a := New()
	// NR10's top bit is unused and reads back set
	a.WriteRegister(addr.NR10, 0x00)
	assert.Equal(t, uint8(0x80), a.ReadRegister(addr.NR10))
	// NR13 is write only
	a.WriteRegister(addr.NR13, 0x12)
	assert.Equal(t, uint8(0xFF), a.ReadRegister(addr.NR13))
}

func TestSampleGeneration(t *testing.T) {
	a := New()
	a.WriteRegister(addr.NR50, 0x77)
	a.WriteRegister(addr.NR51, 0xFF)
	triggerSquare1(a)

	// one frame of cycles produces roughly 735 stereo sample pairs
	a.Tick(70224)
	samples := a.Samples()
	assert.NotEmpty(t, samples)
	assert.Equal(t, 0, len(samples)%2)

	// drained: a second call returns nothing
	assert.Empty(t, a.Samples())
}
