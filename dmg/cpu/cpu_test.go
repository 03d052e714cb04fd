package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halfcarry/dotmatrix/dmg/interrupt"
)

// flatBus is a bare 64KB address space with no mapping logic.
type flatBus struct {
	mem [0x10000]byte
}

func (b *flatBus) Read(address uint16) uint8 {
	return b.mem[address]
}

func (b *flatBus) Write(address uint16, value uint8) {
	b.mem[address] = value
}

// newTestCPU loads a program at the entry point and returns a CPU
// about to execute its first byte.
func newTestCPU(program ...byte) (*CPU, *flatBus, *interrupt.Controller) {
	bus := &flatBus{}
	copy(bus.mem[0x0100:], program)
	irq := interrupt.NewController()
	return New(bus, irq), bus, irq
}

func step(t *testing.T, cpu *CPU) int {
	t.Helper()
	cycles, err := cpu.Exec()
	assert.NoError(t, err)
	return cycles
}

func TestPostBootState(t *testing.T) {
	cpu, _, _ := newTestCPU()

	assert.Equal(t, uint16(0x01B0), cpu.getAF())
	assert.Equal(t, uint16(0x0013), cpu.getBC())
	assert.Equal(t, uint16(0x00D8), cpu.getDE())
	assert.Equal(t, uint16(0x014D), cpu.getHL())
	assert.Equal(t, uint16(0xFFFE), cpu.sp)
	assert.Equal(t, uint16(0x0100), cpu.pc)
}

func TestArithmeticFlags(t *testing.T) {
	t.Run("add half carry", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.a = 0x0F
		cpu.add(0x01)
		assert.Equal(t, uint8(0x10), cpu.a)
		assert.Equal(t, "--H-", cpu.FlagString())
	})

	t.Run("add full carry", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.a = 0xFF
		cpu.add(0x01)
		assert.Equal(t, uint8(0x00), cpu.a)
		assert.Equal(t, "Z-HC", cpu.FlagString())
	})

	t.Run("adc uses carry in", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.a = 0x00
		cpu.f = uint8(carryFlag)
		cpu.adc(0xFF)
		assert.Equal(t, uint8(0x00), cpu.a)
		assert.Equal(t, "Z-HC", cpu.FlagString())
	})

	t.Run("sub borrow", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.a = 0x10
		cpu.sub(0x20)
		assert.Equal(t, uint8(0xF0), cpu.a)
		assert.Equal(t, "-N-C", cpu.FlagString())
	})

	t.Run("sbc half borrow with carry in", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.a = 0x10
		cpu.f = uint8(carryFlag)
		cpu.sbc(0x0F)
		assert.Equal(t, uint8(0x00), cpu.a)
		assert.Equal(t, "ZNH-", cpu.FlagString())
	})

	t.Run("cp leaves accumulator", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.a = 0x42
		cpu.cp(0x42)
		assert.Equal(t, uint8(0x42), cpu.a)
		assert.True(t, cpu.isSetFlag(zeroFlag))
	})

	t.Run("inc preserves carry", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.f = uint8(carryFlag)
		cpu.b = 0xFF
		cpu.inc(&cpu.b)
		assert.Equal(t, uint8(0x00), cpu.b)
		assert.Equal(t, "Z-HC", cpu.FlagString())
	})

	t.Run("dec preserves carry", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.f = uint8(carryFlag)
		cpu.b = 0x10
		cpu.dec(&cpu.b)
		assert.Equal(t, uint8(0x0F), cpu.b)
		assert.Equal(t, "-NHC", cpu.FlagString())
	})
}

func TestDAA(t *testing.T) {
	t.Run("after addition", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.a = 0x15
		cpu.add(0x27)
		cpu.daa()
		assert.Equal(t, uint8(0x42), cpu.a)
		assert.False(t, cpu.isSetFlag(carryFlag))
	})

	t.Run("addition with carry out", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.a = 0x90
		cpu.add(0x90)
		cpu.daa()
		assert.Equal(t, uint8(0x80), cpu.a)
		assert.True(t, cpu.isSetFlag(carryFlag))
	})

	t.Run("after subtraction", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.a = 0x42
		cpu.sub(0x15)
		cpu.daa()
		assert.Equal(t, uint8(0x27), cpu.a)
	})
}

func TestRotates(t *testing.T) {
	t.Run("rlc sets zero for zero result", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.b = 0x00
		cpu.rlc(&cpu.b)
		assert.True(t, cpu.isSetFlag(zeroFlag))
	})

	t.Run("rlca always clears zero", func(t *testing.T) {
		cpu, _, _ := newTestCPU(0x07) // RLCA
		cpu.a = 0x00
		cpu.f = uint8(zeroFlag)
		step(t, cpu)
		assert.False(t, cpu.isSetFlag(zeroFlag))
	})

	t.Run("rr shifts carry into bit 7", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.b = 0x01
		cpu.f = uint8(carryFlag)
		cpu.rr(&cpu.b)
		assert.Equal(t, uint8(0x80), cpu.b)
		assert.True(t, cpu.isSetFlag(carryFlag))
	})

	t.Run("sra keeps sign bit", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.b = 0x81
		cpu.sra(&cpu.b)
		assert.Equal(t, uint8(0xC0), cpu.b)
		assert.True(t, cpu.isSetFlag(carryFlag))
	})

	t.Run("swap", func(t *testing.T) {
		cpu, _, _ := newTestCPU()
		cpu.b = 0xAB
		cpu.swap(&cpu.b)
		assert.Equal(t, uint8(0xBA), cpu.b)
	})
}

func TestAddToSP(t *testing.T) {
	cpu, _, _ := newTestCPU()
	cpu.sp = 0xFFF8

	result := cpu.addToSP(0x08)

	assert.Equal(t, uint16(0x0000), result)
	assert.Equal(t, "--HC", cpu.FlagString())
}

func TestConditionalCycles(t *testing.T) {
	tests := []struct {
		name       string
		program    []byte
		zero       bool
		wantCycles int
		wantPC     uint16
	}{
		{"JR NZ taken", []byte{0x20, 0x02}, false, 12, 0x0104},
		{"JR NZ not taken", []byte{0x20, 0x02}, true, 8, 0x0102},
		{"JP NZ taken", []byte{0xC2, 0x00, 0x02}, false, 16, 0x0200},
		{"JP NZ not taken", []byte{0xC2, 0x00, 0x02}, true, 12, 0x0103},
		{"CALL NZ taken", []byte{0xC4, 0x00, 0x02}, false, 24, 0x0200},
		{"CALL NZ not taken", []byte{0xC4, 0x00, 0x02}, true, 12, 0x0103},
		{"RET NZ taken", []byte{0xC0}, false, 20, 0x1234},
		{"RET NZ not taken", []byte{0xC0}, true, 8, 0x0101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, _, _ := newTestCPU(tt.program...)
			cpu.pushStack(0x1234)
			cpu.setFlagToCondition(zeroFlag, tt.zero)

			cycles := step(t, cpu)

			assert.Equal(t, tt.wantCycles, cycles)
			assert.Equal(t, tt.wantPC, cpu.pc)
		})
	}
}

func TestJumpBackward(t *testing.T) {
	// JR -2 loops back onto itself.
	cpu, _, _ := newTestCPU(0x18, 0xFE)

	step(t, cpu)

	assert.Equal(t, uint16(0x0100), cpu.pc)
}

func TestCallAndReturn(t *testing.T) {
	cpu, bus, _ := newTestCPU(0xCD, 0x00, 0x02) // CALL 0x0200
	bus.mem[0x0200] = 0xC9                      // RET

	cycles := step(t, cpu)
	assert.Equal(t, 24, cycles)
	assert.Equal(t, uint16(0x0200), cpu.pc)
	assert.Equal(t, uint16(0xFFFC), cpu.sp)

	cycles = step(t, cpu)
	assert.Equal(t, 16, cycles)
	assert.Equal(t, uint16(0x0103), cpu.pc)
	assert.Equal(t, uint16(0xFFFE), cpu.sp)
}

func TestPopAFMasksLowBits(t *testing.T) {
	cpu, _, _ := newTestCPU(0xF1) // POP AF
	cpu.pushStack(0x12FF)

	step(t, cpu)

	assert.Equal(t, uint8(0x12), cpu.a)
	assert.Equal(t, uint8(0xF0), cpu.f)
}

func TestInterruptDispatch(t *testing.T) {
	cpu, bus, irq := newTestCPU(0x00) // NOP
	irq.SetMasterEnable(true)
	irq.WriteEnable(0x04)
	irq.Request(interrupt.Timer)

	cycles := step(t, cpu)

	assert.Equal(t, 20, cycles)
	assert.Equal(t, uint16(0x0050), cpu.pc)
	assert.False(t, irq.MasterEnabled())
	assert.False(t, irq.Requested(interrupt.Timer))
	// return address pushed
	assert.Equal(t, uint16(0xFFFC), cpu.sp)
	assert.Equal(t, uint8(0x00), bus.mem[0xFFFC])
	assert.Equal(t, uint8(0x01), bus.mem[0xFFFD])
}

func TestInterruptPriority(t *testing.T) {
	cpu, _, irq := newTestCPU(0x00)
	irq.SetMasterEnable(true)
	irq.WriteEnable(0x1F)
	irq.Request(interrupt.Serial)
	irq.Request(interrupt.VBlank)

	step(t, cpu)

	assert.Equal(t, uint16(0x0040), cpu.pc)
	assert.True(t, irq.Requested(interrupt.Serial), "lower priority request stays latched")
}

func TestEIDelay(t *testing.T) {
	// EI; NOP; NOP with a timer interrupt already pending. Dispatch must
	// not happen until the instruction after EI has retired.
	cpu, _, irq := newTestCPU(0xFB, 0x00, 0x00)
	irq.WriteEnable(0x04)
	irq.Request(interrupt.Timer)

	step(t, cpu) // EI
	assert.False(t, irq.MasterEnabled())
	assert.Equal(t, uint16(0x0101), cpu.pc)

	step(t, cpu) // NOP, IME turns on as it retires
	assert.True(t, irq.MasterEnabled())
	assert.Equal(t, uint16(0x0102), cpu.pc)

	cycles := step(t, cpu) // dispatch
	assert.Equal(t, 20, cycles)
	assert.Equal(t, uint16(0x0050), cpu.pc)
}

func TestDICancelsPendingEnable(t *testing.T) {
	cpu, _, irq := newTestCPU(0xFB, 0xF3, 0x00) // EI; DI; NOP
	irq.WriteEnable(0x04)
	irq.Request(interrupt.Timer)

	step(t, cpu) // EI
	step(t, cpu) // DI
	step(t, cpu) // NOP

	assert.False(t, irq.MasterEnabled())
	assert.Equal(t, uint16(0x0103), cpu.pc)
}

func TestRETIEnablesImmediately(t *testing.T) {
	cpu, _, irq := newTestCPU(0xD9) // RETI
	cpu.pushStack(0x0200)
	irq.WriteEnable(0x04)
	irq.Request(interrupt.Timer)

	step(t, cpu)
	assert.True(t, irq.MasterEnabled())
	assert.Equal(t, uint16(0x0200), cpu.pc)

	cycles := step(t, cpu)
	assert.Equal(t, 20, cycles)
	assert.Equal(t, uint16(0x0050), cpu.pc)
}

func TestHaltWakesWithoutDispatch(t *testing.T) {
	cpu, _, irq := newTestCPU(0x76, 0x3C) // HALT; INC A

	step(t, cpu)
	assert.True(t, cpu.halted)

	cycles := step(t, cpu)
	assert.Equal(t, idleCycles, cycles)
	assert.True(t, cpu.halted)

	// an enabled request wakes even with IME off
	irq.WriteEnable(0x04)
	irq.Request(interrupt.Timer)

	step(t, cpu)
	assert.False(t, cpu.halted)
	assert.Equal(t, uint16(0x0102), cpu.pc, "continues past HALT without dispatching")
}

func TestHaltBug(t *testing.T) {
	// HALT with IME off and an interrupt already pending does not halt:
	// the byte after HALT executes twice.
	cpu, _, irq := newTestCPU(0x76, 0x3C, 0x00) // HALT; INC A; NOP
	irq.WriteEnable(0x04)
	irq.Request(interrupt.Timer)

	a := cpu.a

	step(t, cpu) // HALT
	assert.False(t, cpu.halted)
	assert.True(t, cpu.haltBug)

	step(t, cpu) // INC A without advancing past it
	assert.Equal(t, a+1, cpu.a)
	assert.Equal(t, uint16(0x0101), cpu.pc)

	step(t, cpu) // INC A again
	assert.Equal(t, a+2, cpu.a)
	assert.Equal(t, uint16(0x0102), cpu.pc)
}

func TestStopWakesOnJoypad(t *testing.T) {
	cpu, _, irq := newTestCPU(0x10, 0x00, 0x3C) // STOP; (padding); INC A

	step(t, cpu)
	assert.True(t, cpu.stopped)

	cycles := step(t, cpu)
	assert.Equal(t, idleCycles, cycles)

	irq.Request(interrupt.Joypad)

	a := cpu.a
	step(t, cpu)
	assert.False(t, cpu.stopped)
	assert.Equal(t, a+1, cpu.a)
}

func TestIllegalOpcode(t *testing.T) {
	cpu, _, _ := newTestCPU(0xDD)

	_, err := cpu.Exec()

	assert.ErrorIs(t, err, ErrIllegalOpcode)
	assert.ErrorContains(t, err, "0xDD")
	assert.ErrorContains(t, err, "0x0100")
}

func TestCBDispatch(t *testing.T) {
	t.Run("SET 7, A", func(t *testing.T) {
		cpu, _, _ := newTestCPU(0xCB, 0xFF)
		cpu.a = 0x00

		cycles := step(t, cpu)

		assert.Equal(t, 8, cycles)
		assert.Equal(t, uint8(0x80), cpu.a)
		assert.Equal(t, uint16(0x0102), cpu.pc)
	})

	t.Run("BIT 7, (HL)", func(t *testing.T) {
		cpu, bus, _ := newTestCPU(0xCB, 0x7E)
		cpu.setHL(0xC000)
		bus.mem[0xC000] = 0x00

		cycles := step(t, cpu)

		assert.Equal(t, 12, cycles)
		assert.True(t, cpu.isSetFlag(zeroFlag))
	})

	t.Run("RLC (HL)", func(t *testing.T) {
		cpu, bus, _ := newTestCPU(0xCB, 0x06)
		cpu.setHL(0xC000)
		bus.mem[0xC000] = 0x80

		cycles := step(t, cpu)

		assert.Equal(t, 16, cycles)
		assert.Equal(t, uint8(0x01), bus.mem[0xC000])
		assert.True(t, cpu.isSetFlag(carryFlag))
	})
}

func TestLDHAccessesHighPage(t *testing.T) {
	cpu, bus, _ := newTestCPU(0xE0, 0x80, 0xF0, 0x80) // LDH (0x80), A; LDH A, (0x80)
	cpu.a = 0x5A

	step(t, cpu)
	assert.Equal(t, uint8(0x5A), bus.mem[0xFF80])

	cpu.a = 0x00
	step(t, cpu)
	assert.Equal(t, uint8(0x5A), cpu.a)
}

func TestOpcodeName(t *testing.T) {
	bus := &flatBus{}
	bus.mem[0x0100] = 0x00
	bus.mem[0x0101] = 0xCB
	bus.mem[0x0102] = 0x37

	assert.Equal(t, "NOP", OpcodeName(bus, 0x0100))
	assert.Equal(t, "SWAP A", OpcodeName(bus, 0x0101))
}
