// Package audio implements the four channel APU at register level:
// the NR10-NR52 register file with its documented read-back masks, the
// 512 Hz frame sequencer driving length/envelope/sweep, and sample
// synthesis for the host audio output.
package audio

import (
	"sync"

	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/bit"
)

const (
	cpuClock = 4194304

	// SampleRate is the host-facing output rate.
	SampleRate = 44100

	sampleCycles         = cpuClock / SampleRate
	frameSequencerCycles = 8192 // 512 Hz

	lfsrSeed = 0x7FFF

	// bufferCap bounds the pending sample buffer; a frontend that never
	// drains it (headless runs) must not grow it without limit.
	bufferCap = 65536
)

// readOrMask holds the bits that read back as 1 for each register in
// 0xFF10-0xFF3F. Unused registers read 0xFF entirely.
var readOrMask = [0x30]uint8{
	0x00: 0x80, 0x01: 0x3F, 0x02: 0x00, 0x03: 0xFF, 0x04: 0xBF, // NR10-NR14
	0x05: 0xFF, 0x06: 0x3F, 0x07: 0x00, 0x08: 0xFF, 0x09: 0xBF, // NR21-NR24
	0x0A: 0x7F, 0x0B: 0xFF, 0x0C: 0x9F, 0x0D: 0xFF, 0x0E: 0xBF, // NR30-NR34
	0x0F: 0xFF, 0x10: 0xFF, 0x11: 0x00, 0x12: 0x00, 0x13: 0xBF, // NR41-NR44
	0x14: 0x00, 0x15: 0x00, 0x16: 0x70, // NR50-NR52
	0x17: 0xFF, 0x18: 0xFF, 0x19: 0xFF, 0x1A: 0xFF, 0x1B: 0xFF, 0x1C: 0xFF, 0x1D: 0xFF, 0x1E: 0xFF, 0x1F: 0xFF,
}

var dutyTable = [4]uint8{
	0b00000001, // 12.5%
	0b10000001, // 25%
	0b10000111, // 50%
	0b01111110, // 75%
}

var noiseDivisors = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

// channel holds the state shared by the four channels; fields that a
// given channel does not use stay zero.
type channel struct {
	enabled bool
	dacOn   bool

	length        int
	lengthEnabled bool

	freq  uint16
	timer int

	// envelope
	volume    uint8
	envDir    uint8
	envPeriod uint8
	envTimer  uint8

	// square wave
	dutyStep uint8

	// sweep (channel 1 only)
	sweepEnabled bool
	sweepTimer   uint8
	sweepShadow  uint16

	// wave channel
	wavePos uint8

	// noise channel
	lfsr uint16
}

// APU is the audio processing unit for one machine instance.
type APU struct {
	enabled   bool
	registers [0x30]uint8

	frameStep   int
	frameCycles int

	ch [4]channel

	sampleCycles int
	mu           sync.Mutex // guards samples; the host drains from another goroutine
	samples      []int16
}

// New returns an APU with power-on register state.
func New() *APU {
	a := &APU{enabled: true}
	a.ch[3].lfsr = lfsrSeed
	return a
}

// Tick advances the APU by the given number of T-cycles.
func (a *APU) Tick(cycles int) {
	if !a.enabled {
		return
	}

	a.frameCycles += cycles
	for a.frameCycles >= frameSequencerCycles {
		a.frameCycles -= frameSequencerCycles
		a.stepFrameSequencer()
	}

	a.stepWaveforms(cycles)

	a.sampleCycles += cycles
	for a.sampleCycles >= sampleCycles {
		a.sampleCycles -= sampleCycles
		a.mix()
	}
}

// Samples drains and returns the buffered stereo samples.
func (a *APU) Samples() []int16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.samples
	a.samples = nil
	return out
}

func (a *APU) ReadRegister(address uint16) uint8 {
	idx := address - addr.AudioStart
	if address >= addr.WaveRAMStart {
		return a.registers[idx]
	}
	if address == addr.NR52 {
		value := uint8(0x70)
		if a.enabled {
			value |= 0x80
		}
		for i := range a.ch {
			if a.ch[i].enabled {
				value |= 1 << i
			}
		}
		return value
	}
	return a.registers[idx] | readOrMask[idx]
}

func (a *APU) WriteRegister(address uint16, value uint8) {
	// With the APU powered off everything but NR52 and wave RAM is
	// read only.
	if !a.enabled && address != addr.NR52 && address < addr.WaveRAMStart {
		return
	}

	idx := address - addr.AudioStart
	a.registers[idx] = value

	switch address {
	case addr.NR11:
		a.ch[0].length = 64 - int(value&0x3F)
	case addr.NR12:
		a.updateDAC(0, value)
	case addr.NR13:
		a.ch[0].freq = a.ch[0].freq&0x0700 | uint16(value)
	case addr.NR14:
		a.ch[0].freq = a.ch[0].freq&0x00FF | uint16(value&0x07)<<8
		a.ch[0].lengthEnabled = bit.IsSet(6, value)
		if bit.IsSet(7, value) {
			a.trigger(0)
		}

	case addr.NR21:
		a.ch[1].length = 64 - int(value&0x3F)
	case addr.NR22:
		a.updateDAC(1, value)
	case addr.NR23:
		a.ch[1].freq = a.ch[1].freq&0x0700 | uint16(value)
	case addr.NR24:
		a.ch[1].freq = a.ch[1].freq&0x00FF | uint16(value&0x07)<<8
		a.ch[1].lengthEnabled = bit.IsSet(6, value)
		if bit.IsSet(7, value) {
			a.trigger(1)
		}

	case addr.NR30:
		a.ch[2].dacOn = bit.IsSet(7, value)
		if !a.ch[2].dacOn {
			a.ch[2].enabled = false
		}
	case addr.NR31:
		a.ch[2].length = 256 - int(value)
	case addr.NR33:
		a.ch[2].freq = a.ch[2].freq&0x0700 | uint16(value)
	case addr.NR34:
		a.ch[2].freq = a.ch[2].freq&0x00FF | uint16(value&0x07)<<8
		a.ch[2].lengthEnabled = bit.IsSet(6, value)
		if bit.IsSet(7, value) {
			a.trigger(2)
		}

	case addr.NR41:
		a.ch[3].length = 64 - int(value&0x3F)
	case addr.NR42:
		a.updateDAC(3, value)
	case addr.NR44:
		a.ch[3].lengthEnabled = bit.IsSet(6, value)
		if bit.IsSet(7, value) {
			a.trigger(3)
		}

	case addr.NR52:
		wasEnabled := a.enabled
		a.enabled = bit.IsSet(7, value)
		if wasEnabled && !a.enabled {
			a.powerOff()
		}
	}
}

// updateDAC applies an envelope register write: the top 5 bits double
// as the DAC enable, and a disabled DAC silences the channel.
func (a *APU) updateDAC(i int, value uint8) {
	a.ch[i].dacOn = value&0xF8 != 0
	if !a.ch[i].dacOn {
		a.ch[i].enabled = false
	}
}

// powerOff clears every register and channel; wave RAM survives.
func (a *APU) powerOff() {
	for i := range a.registers {
		if addr.AudioStart+uint16(i) < addr.WaveRAMStart {
			a.registers[i] = 0
		}
	}
	for i := range a.ch {
		a.ch[i] = channel{}
	}
	a.ch[3].lfsr = lfsrSeed
	a.frameStep = 0
	a.frameCycles = 0
}

func (a *APU) trigger(i int) {
	c := &a.ch[i]
	c.enabled = c.dacOn
	if c.length == 0 {
		if i == 2 {
			c.length = 256
		} else {
			c.length = 64
		}
	}

	switch i {
	case 0, 1:
		env := a.registers[addr.NR12-addr.AudioStart]
		if i == 1 {
			env = a.registers[addr.NR22-addr.AudioStart]
		}
		c.volume = env >> 4
		c.envDir = bit.Value(3, env)
		c.envPeriod = env & 0x07
		c.envTimer = c.envPeriod
		c.timer = squarePeriod(c.freq)
		if i == 0 {
			a.triggerSweep()
		}
	case 2:
		c.wavePos = 0
		c.timer = wavePeriod(c.freq)
	case 3:
		env := a.registers[addr.NR42-addr.AudioStart]
		c.volume = env >> 4
		c.envDir = bit.Value(3, env)
		c.envPeriod = env & 0x07
		c.envTimer = c.envPeriod
		c.lfsr = lfsrSeed
		c.timer = a.noisePeriod()
	}
}

func (a *APU) triggerSweep() {
	c := &a.ch[0]
	nr10 := a.registers[0]
	period := nr10 >> 4 & 0x07
	shift := nr10 & 0x07

	c.sweepShadow = c.freq
	c.sweepTimer = period
	if c.sweepTimer == 0 {
		c.sweepTimer = 8
	}
	c.sweepEnabled = period != 0 || shift != 0
	if shift != 0 && a.sweepNext(shift) > 2047 {
		c.enabled = false
	}
}

func (a *APU) sweepNext(shift uint8) uint16 {
	c := &a.ch[0]
	delta := c.sweepShadow >> shift
	if bit.IsSet(3, a.registers[0]) {
		return c.sweepShadow - delta
	}
	return c.sweepShadow + delta
}

func (a *APU) stepFrameSequencer() {
	switch a.frameStep {
	case 0, 4:
		a.stepLengths()
	case 2, 6:
		a.stepLengths()
		a.stepSweep()
	case 7:
		a.stepEnvelopes()
	}
	a.frameStep = (a.frameStep + 1) & 7
}

func (a *APU) stepLengths() {
	for i := range a.ch {
		c := &a.ch[i]
		if c.lengthEnabled && c.length > 0 {
			c.length--
			if c.length == 0 {
				c.enabled = false
			}
		}
	}
}

func (a *APU) stepSweep() {
	c := &a.ch[0]
	if !c.sweepEnabled || !c.enabled {
		return
	}
	if c.sweepTimer > 0 {
		c.sweepTimer--
	}
	if c.sweepTimer != 0 {
		return
	}

	nr10 := a.registers[0]
	period := nr10 >> 4 & 0x07
	shift := nr10 & 0x07
	c.sweepTimer = period
	if c.sweepTimer == 0 {
		c.sweepTimer = 8
	}
	if period == 0 {
		return
	}

	next := a.sweepNext(shift)
	if next > 2047 {
		c.enabled = false
		return
	}
	if shift != 0 {
		c.sweepShadow = next
		c.freq = next
		if a.sweepNext(shift) > 2047 {
			c.enabled = false
		}
	}
}

func (a *APU) stepEnvelopes() {
	for _, i := range [...]int{0, 1, 3} {
		c := &a.ch[i]
		if c.envPeriod == 0 {
			continue
		}
		if c.envTimer > 0 {
			c.envTimer--
		}
		if c.envTimer != 0 {
			continue
		}
		c.envTimer = c.envPeriod
		if c.envDir == 1 && c.volume < 15 {
			c.volume++
		} else if c.envDir == 0 && c.volume > 0 {
			c.volume--
		}
	}
}

func squarePeriod(freq uint16) int { return (2048 - int(freq)) * 4 }
func wavePeriod(freq uint16) int   { return (2048 - int(freq)) * 2 }

func (a *APU) noisePeriod() int {
	nr43 := a.registers[addr.NR43-addr.AudioStart]
	return noiseDivisors[nr43&0x07] << (nr43 >> 4)
}

// stepWaveforms advances the per-channel frequency timers.
func (a *APU) stepWaveforms(cycles int) {
	for i := 0; i < 2; i++ {
		c := &a.ch[i]
		if !c.enabled {
			continue
		}
		c.timer -= cycles
		for c.timer <= 0 {
			c.timer += squarePeriod(c.freq)
			c.dutyStep = (c.dutyStep + 1) & 7
		}
	}

	if c := &a.ch[2]; c.enabled {
		c.timer -= cycles
		for c.timer <= 0 {
			c.timer += wavePeriod(c.freq)
			c.wavePos = (c.wavePos + 1) & 31
		}
	}

	if c := &a.ch[3]; c.enabled {
		c.timer -= cycles
		for c.timer <= 0 {
			c.timer += a.noisePeriod()
			feedback := c.lfsr&1 ^ c.lfsr>>1&1
			c.lfsr = c.lfsr>>1 | feedback<<14
			if bit.IsSet(3, a.registers[addr.NR43-addr.AudioStart]) {
				c.lfsr = c.lfsr&^(1<<6) | feedback<<6
			}
		}
	}
}

// output returns the current DAC output (0-15) of a channel.
func (a *APU) output(i int) uint8 {
	c := &a.ch[i]
	if !c.enabled || !c.dacOn {
		return 0
	}
	switch i {
	case 0, 1:
		reg := a.registers[addr.NR11-addr.AudioStart]
		if i == 1 {
			reg = a.registers[addr.NR21-addr.AudioStart]
		}
		if bit.IsSet(7-c.dutyStep, dutyTable[reg>>6]) {
			return c.volume
		}
		return 0
	case 2:
		sample := a.registers[0x20+c.wavePos/2]
		if c.wavePos&1 == 0 {
			sample >>= 4
		}
		sample &= 0x0F
		shift := a.registers[addr.NR32-addr.AudioStart] >> 5 & 0x03
		if shift == 0 {
			return 0
		}
		return sample >> (shift - 1)
	case 3:
		if c.lfsr&1 == 0 {
			return c.volume
		}
		return 0
	}
	return 0
}

// mix combines the four channel outputs per NR50/NR51 into one stereo
// sample pair.
func (a *APU) mix() {
	nr50 := a.registers[addr.NR50-addr.AudioStart]
	nr51 := a.registers[addr.NR51-addr.AudioStart]

	var left, right int
	for i := 0; i < 4; i++ {
		out := int(a.output(i))
		if bit.IsSet(uint8(i+4), nr51) {
			left += out
		}
		if bit.IsSet(uint8(i), nr51) {
			right += out
		}
	}

	// 4 channels x 15 max scaled into int16 range, then master volume.
	left = left * 512 * (int(nr50>>4&0x07) + 1) / 8
	right = right * 512 * (int(nr50&0x07) + 1) / 8

	a.mu.Lock()
	if len(a.samples) < bufferCap {
		a.samples = append(a.samples, int16(left), int16(right))
	}
	a.mu.Unlock()
}
