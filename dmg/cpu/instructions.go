package cpu

import "github.com/halfcarry/dotmatrix/dmg/bit"

// Shared instruction bodies. Each opcode function in opcodes.go and
// opcodes_cb.go is a thin wrapper picking operands and a cycle count;
// the flag arithmetic lives here.

func (c *CPU) pushStack(value uint16) {
	c.sp--
	c.bus.Write(c.sp, bit.High(value))
	c.sp--
	c.bus.Write(c.sp, bit.Low(value))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.Read(c.sp)
	c.sp++
	high := c.bus.Read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

// inc increments a register. Carry is left untouched.
func (c *CPU) inc(r *uint8) {
	*r++
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, *r&0x0F == 0)
}

// dec decrements a register. Carry is left untouched.
func (c *CPU) dec(r *uint8) {
	*r--
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, *r&0x0F == 0x0F)
}

func (c *CPU) add(n uint8) {
	result := uint16(c.a) + uint16(n)
	c.setFlagToCondition(zeroFlag, uint8(result) == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.a&0x0F+n&0x0F > 0x0F)
	c.setFlagToCondition(carryFlag, result > 0xFF)
	c.a = uint8(result)
}

func (c *CPU) adc(n uint8) {
	carry := c.flagToBit(carryFlag)
	result := uint16(c.a) + uint16(n) + uint16(carry)
	c.setFlagToCondition(zeroFlag, uint8(result) == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.a&0x0F+n&0x0F+carry > 0x0F)
	c.setFlagToCondition(carryFlag, result > 0xFF)
	c.a = uint8(result)
}

func (c *CPU) sub(n uint8) {
	result := c.a - n
	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.a&0x0F < n&0x0F)
	c.setFlagToCondition(carryFlag, c.a < n)
	c.a = result
}

func (c *CPU) sbc(n uint8) {
	carry := c.flagToBit(carryFlag)
	result := uint16(c.a) - uint16(n) - uint16(carry)
	c.setFlagToCondition(zeroFlag, uint8(result) == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.a&0x0F < n&0x0F+carry)
	c.setFlagToCondition(carryFlag, result > 0xFF)
	c.a = uint8(result)
}

func (c *CPU) and(n uint8) {
	c.a &= n
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) or(n uint8) {
	c.a |= n
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) xor(n uint8) {
	c.a ^= n
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

// cp compares A with n: SUB flags without storing the result.
func (c *CPU) cp(n uint8) {
	c.setFlagToCondition(zeroFlag, c.a == n)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.a&0x0F < n&0x0F)
	c.setFlagToCondition(carryFlag, c.a < n)
}

// addToHL adds a 16 bit value into HL. Zero is left untouched; half
// carry comes from bit 11.
func (c *CPU) addToHL(value uint16) {
	hl := c.getHL()
	result := uint32(hl) + uint32(value)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, hl&0x0FFF+value&0x0FFF > 0x0FFF)
	c.setFlagToCondition(carryFlag, result > 0xFFFF)
	c.setHL(uint16(result))
}

// addToSP computes SP plus a signed offset for ADD SP,e and LD HL,SP+e.
// Half carry and carry come from bits 3 and 7 of the unsigned low-byte
// addition; zero and sub are always cleared.
func (c *CPU) addToSP(offset int8) uint16 {
	value := uint16(int16(offset))
	c.resetFlag(zeroFlag)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.sp&0x000F+value&0x000F > 0x000F)
	c.setFlagToCondition(carryFlag, c.sp&0x00FF+value&0x00FF > 0x00FF)
	return c.sp + value
}

// daa adjusts A after BCD arithmetic, driven by the N, H and C flags
// the preceding instruction left behind.
func (c *CPU) daa() {
	a := c.a
	var adjust uint8
	carry := c.isSetFlag(carryFlag)

	if c.isSetFlag(halfCarryFlag) || (!c.isSetFlag(subFlag) && a&0x0F > 0x09) {
		adjust |= 0x06
	}
	if carry || (!c.isSetFlag(subFlag) && a > 0x99) {
		adjust |= 0x60
		carry = true
	}

	if c.isSetFlag(subFlag) {
		a -= adjust
	} else {
		a += adjust
	}

	c.a = a
	c.setFlagToCondition(zeroFlag, a == 0)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry)
}

// The rotate/shift helpers implement the CB-prefixed semantics, zero
// flag included. RLCA/RLA/RRCA/RRA wrap these and clear Z afterwards.

func (c *CPU) rlc(r *uint8) {
	carry := *r >> 7
	*r = *r<<1 | carry
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry == 1)
}

func (c *CPU) rl(r *uint8) {
	carry := *r >> 7
	*r = *r<<1 | c.flagToBit(carryFlag)
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry == 1)
}

func (c *CPU) rrc(r *uint8) {
	carry := *r & 1
	*r = *r>>1 | carry<<7
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry == 1)
}

func (c *CPU) rr(r *uint8) {
	carry := *r & 1
	*r = *r>>1 | c.flagToBit(carryFlag)<<7
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry == 1)
}

func (c *CPU) sla(r *uint8) {
	carry := *r >> 7
	*r <<= 1
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry == 1)
}

// sra shifts right keeping bit 7 (arithmetic shift).
func (c *CPU) sra(r *uint8) {
	carry := *r & 1
	*r = *r>>1 | *r&0x80
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry == 1)
}

func (c *CPU) swap(r *uint8) {
	*r = *r<<4 | *r>>4
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) srl(r *uint8) {
	carry := *r & 1
	*r >>= 1
	c.setFlagToCondition(zeroFlag, *r == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry == 1)
}

// bitTest sets Z from the bit at index. Carry is left untouched.
func (c *CPU) bitTest(index, value uint8) {
	c.setFlagToCondition(zeroFlag, !bit.IsSet(index, value))
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
}

// readHL and writeHL access the byte HL points at; the (HL) column of
// the CB table routes through these.
func (c *CPU) readHL() uint8 {
	return c.bus.Read(c.getHL())
}

func (c *CPU) writeHL(value uint8) {
	c.bus.Write(c.getHL(), value)
}
