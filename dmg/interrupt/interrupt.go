// Package interrupt implements the interrupt controller: the IF and IE
// registers, the master enable latch with its delayed activation, and
// priority resolution of pending interrupts. Dispatch itself (pushing
// the return address and jumping to the vector) is the CPU's job.
package interrupt

import "github.com/halfcarry/dotmatrix/dmg/bit"

// Kind identifies one of the five interrupt sources. The numeric value
// is both the bit position in IF/IE and the priority (lower wins).
type Kind uint8

const (
	VBlank Kind = iota
	LCDStat
	Timer
	Serial
	Joypad

	numKinds
)

// Vector returns the fixed handler address for the interrupt.
// Handlers sit 8 bytes apart starting at 0x0040.
func (k Kind) Vector() uint16 {
	return 0x0040 + uint16(k)*8
}

func (k Kind) String() string {
	switch k {
	case VBlank:
		return "vblank"
	case LCDStat:
		return "lcdstat"
	case Timer:
		return "timer"
	case Serial:
		return "serial"
	case Joypad:
		return "joypad"
	}
	return "unknown"
}

// Controller owns the interrupt request/enable state for one machine
// instance. It has no side effects beyond these registers.
type Controller struct {
	flags  uint8 // IF, low 5 bits
	enable uint8 // IE, stored as written
	ime    bool

	// enableDelay implements the EI activation delay: EI arms it at 2,
	// each retired instruction steps it down, and IME turns on when it
	// reaches 0. This way a pending interrupt cannot dispatch until the
	// instruction after EI has retired.
	enableDelay uint8
}

func NewController() *Controller {
	return &Controller{}
}

// Request sets the IF bit for the given interrupt. The request is
// latched even when the interrupt is disabled in IE.
func (c *Controller) Request(k Kind) {
	c.flags = bit.Set(uint8(k), c.flags)
}

// Acknowledge clears the IF bit for the given interrupt.
func (c *Controller) Acknowledge(k Kind) {
	c.flags = bit.Clear(uint8(k), c.flags)
}

// Requested reports whether the IF bit for the given interrupt is set,
// regardless of IE.
func (c *Controller) Requested(k Kind) bool {
	return bit.IsSet(uint8(k), c.flags)
}

// Pending returns the highest priority interrupt that is both requested
// and enabled. It does not consult the master enable.
func (c *Controller) Pending() (Kind, bool) {
	masked := c.flags & c.enable & 0x1F
	if masked == 0 {
		return 0, false
	}
	for k := VBlank; k < numKinds; k++ {
		if bit.IsSet(uint8(k), masked) {
			return k, true
		}
	}
	return 0, false
}

// AnyPending reports whether any interrupt is requested and enabled.
// This is the HALT wake condition, which ignores the master enable.
func (c *Controller) AnyPending() bool {
	return c.flags&c.enable&0x1F != 0
}

// MasterEnabled reports the state of the IME latch.
func (c *Controller) MasterEnabled() bool {
	return c.ime
}

// SetMasterEnable sets IME immediately. Used by DI, RETI and by the CPU
// when dispatching. Disabling also cancels a scheduled delayed enable.
func (c *Controller) SetMasterEnable(on bool) {
	c.ime = on
	if !on {
		c.enableDelay = 0
	}
}

// ScheduleEnable arms the delayed IME activation triggered by EI.
// A delay already counting down is left alone.
func (c *Controller) ScheduleEnable() {
	if !c.ime && c.enableDelay == 0 {
		c.enableDelay = 2
	}
}

// InstructionRetired steps the EI delay. The CPU calls this once after
// every fully executed instruction, EI itself included, so IME turns on
// only after the instruction following EI retires.
func (c *Controller) InstructionRetired() {
	if c.enableDelay > 0 {
		c.enableDelay--
		if c.enableDelay == 0 {
			c.ime = true
		}
	}
}

// ReadFlags returns the IF register. The unused upper 3 bits read as 1.
func (c *Controller) ReadFlags() uint8 {
	return c.flags | 0xE0
}

// WriteFlags stores the IF register.
func (c *Controller) WriteFlags(value uint8) {
	c.flags = value & 0x1F
}

// ReadEnable returns the IE register as written.
func (c *Controller) ReadEnable() uint8 {
	return c.enable
}

// WriteEnable stores the IE register. All 8 bits are kept even though
// only the low 5 gate interrupts.
func (c *Controller) WriteEnable(value uint8) {
	c.enable = value
}
