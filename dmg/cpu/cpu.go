// Package cpu implements the SM83 core: the register file, the full
// base and CB-prefixed opcode tables, interrupt dispatch and the HALT
// and EI timing quirks. Exec runs exactly one instruction (or one
// interrupt dispatch) and reports its cost in T-cycles; stepping the
// rest of the machine by that cost is the caller's job.
package cpu

import (
	"errors"
	"fmt"

	"github.com/halfcarry/dotmatrix/dmg/bit"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
)

// ErrIllegalOpcode is returned by Exec when the program counter lands
// on one of the eleven unassigned encodings. Real hardware locks up;
// reporting the fault upward is more useful than freezing.
var ErrIllegalOpcode = errors.New("illegal opcode")

// Bus is the CPU's view of the memory map.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// Flag is one of the 4 flags in the flag register (low byte of AF).
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

const (
	// interruptDispatchCycles is the cost of servicing an interrupt:
	// two internal delay machine cycles, the PC push, and the jump.
	interruptDispatchCycles = 20

	// idleCycles is the cost of a halted or stopped step.
	idleCycles = 4
)

// CPU holds the processor state for one machine instance.
type CPU struct {
	a  uint8
	f  uint8
	b  uint8
	c  uint8
	d  uint8
	e  uint8
	h  uint8
	l  uint8
	sp uint16
	pc uint16

	halted  bool
	stopped bool

	// haltBug marks that the next instruction runs with the HALT bug:
	// the first opcode-byte fetch does not advance PC, so the byte after
	// HALT is executed twice.
	haltBug bool

	cycles uint64

	bus Bus
	irq *interrupt.Controller
}

// New returns a CPU in the post-boot-ROM state, ready to execute from
// the cartridge entry point.
func New(bus Bus, irq *interrupt.Controller) *CPU {
	cpu := &CPU{
		bus: bus,
		irq: irq,
	}

	cpu.setAF(0x01B0)
	cpu.setBC(0x0013)
	cpu.setDE(0x00D8)
	cpu.setHL(0x014D)
	cpu.sp = 0xFFFE
	cpu.pc = 0x0100

	return cpu
}

// Exec advances the CPU by one step: an interrupt dispatch, an idle
// halted/stopped step, or a single instruction. It returns the
// T-cycles consumed. The error is non-nil only for an illegal opcode,
// in which case PC is left pointing past the offending byte.
func (c *CPU) Exec() (int, error) {
	if c.dispatchInterrupt() {
		return interruptDispatchCycles, nil
	}

	if c.stopped {
		if c.irq.Requested(interrupt.Joypad) {
			c.stopped = false
		} else {
			return idleCycles, nil
		}
	}

	if c.halted {
		// HALT wakes on any requested+enabled interrupt even with the
		// master enable off; dispatch above handles the IME-on case.
		if c.irq.AnyPending() {
			c.halted = false
		} else {
			return idleCycles, nil
		}
	}

	opcodeAddr := c.pc
	opcode := c.bus.Read(c.pc)
	if c.haltBug {
		// Skipping this increment makes the next fetch re-read the same
		// byte; operand reads advance PC normally.
		c.haltBug = false
	} else {
		c.pc++
	}

	var cycles int
	if opcode == 0xCB {
		cycles = opcodesCB[c.readImmediate()](c)
	} else {
		instruction := opcodes[opcode]
		if instruction == nil {
			return 0, fmt.Errorf("%w: 0x%02X at 0x%04X", ErrIllegalOpcode, opcode, opcodeAddr)
		}
		cycles = instruction(c)
	}

	c.cycles += uint64(cycles)

	// Steps the EI delay; IME turns on once the instruction after EI
	// has retired.
	c.irq.InstructionRetired()

	return cycles, nil
}

// dispatchInterrupt services the highest priority pending interrupt
// when the master enable is set: acknowledge, push PC, jump to the
// vector. Reports whether a dispatch happened.
func (c *CPU) dispatchInterrupt() bool {
	if !c.irq.MasterEnabled() {
		return false
	}

	kind, ok := c.irq.Pending()
	if !ok {
		return false
	}

	c.halted = false
	c.stopped = false
	c.irq.Acknowledge(kind)
	c.irq.SetMasterEnable(false)
	c.pushStack(c.pc)
	c.pc = kind.Vector()
	c.cycles += interruptDispatchCycles

	return true
}

// readImmediate returns the byte at PC and advances PC past it.
func (c *CPU) readImmediate() uint8 {
	n := c.bus.Read(c.pc)
	c.pc++
	return n
}

// readImmediateWord returns the little-endian word at PC and advances
// PC past it.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

// readSignedImmediate returns the byte at PC as a signed offset and
// advances PC past it.
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

// flagToBit returns 1 if the flag is set, 0 otherwise.
func (c CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c CPU) getBC() uint16 {
	return bit.Combine(c.b, c.c)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c CPU) getDE() uint16 {
	return bit.Combine(c.d, c.e)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

func (c CPU) getHL() uint16 {
	return bit.Combine(c.h, c.l)
}

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	// low 4 bits of F do not exist in hardware
	c.f = bit.Low(value) & 0xF0
}

func (c CPU) getAF() uint16 {
	return bit.Combine(c.a, c.f)
}

// Register getters for debug output and tests.
func (c *CPU) A() uint8       { return c.a }
func (c *CPU) F() uint8       { return c.f }
func (c *CPU) B() uint8       { return c.b }
func (c *CPU) C() uint8       { return c.c }
func (c *CPU) D() uint8       { return c.d }
func (c *CPU) E() uint8       { return c.e }
func (c *CPU) H() uint8       { return c.h }
func (c *CPU) L() uint8       { return c.l }
func (c *CPU) SP() uint16     { return c.sp }
func (c *CPU) PC() uint16     { return c.pc }
func (c *CPU) Cycles() uint64 { return c.cycles }
func (c *CPU) IsHalted() bool { return c.halted }

// FlagString returns the flag register as "ZNHC" with dashes for
// cleared flags.
func (c *CPU) FlagString() string {
	out := [4]byte{'-', '-', '-', '-'}
	if c.isSetFlag(zeroFlag) {
		out[0] = 'Z'
	}
	if c.isSetFlag(subFlag) {
		out[1] = 'N'
	}
	if c.isSetFlag(halfCarryFlag) {
		out[2] = 'H'
	}
	if c.isSetFlag(carryFlag) {
		out[3] = 'C'
	}
	return string(out[:])
}
