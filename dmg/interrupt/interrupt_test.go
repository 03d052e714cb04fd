package interrupt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectors(t *testing.T) {
	assert.Equal(t, uint16(0x40), VBlank.Vector())
	assert.Equal(t, uint16(0x48), LCDStat.Vector())
	assert.Equal(t, uint16(0x50), Timer.Vector())
	assert.Equal(t, uint16(0x58), Serial.Vector())
	assert.Equal(t, uint16(0x60), Joypad.Vector())
}

func TestRequestAcknowledge(t *testing.T) {
	c := NewController()

	c.Request(Timer)
	assert.True(t, c.Requested(Timer))
	assert.Equal(t, uint8(0xE0|0x04), c.ReadFlags())

	c.Acknowledge(Timer)
	assert.False(t, c.Requested(Timer))
	assert.Equal(t, uint8(0xE0), c.ReadFlags())
}

func TestPendingRespectsEnable(t *testing.T) {
	c := NewController()

	c.Request(Serial)
	_, ok := c.Pending()
	assert.False(t, ok, "disabled interrupt must stay latched, not pending")
	assert.True(t, c.Requested(Serial))

	c.WriteEnable(0x08)
	k, ok := c.Pending()
	assert.True(t, ok)
	assert.Equal(t, Serial, k)
}

func TestPriorityOrder(t *testing.T) {
	c := NewController()
	c.WriteEnable(0x1F)
	c.WriteFlags(0x1F)

	want := []Kind{VBlank, LCDStat, Timer, Serial, Joypad}
	for _, expected := range want {
		k, ok := c.Pending()
		assert.True(t, ok)
		assert.Equal(t, expected, k)
		c.Acknowledge(k)
	}
	_, ok := c.Pending()
	assert.False(t, ok)
}

func TestDelayedEnable(t *testing.T) {
	c := NewController()

	c.ScheduleEnable()
	assert.False(t, c.MasterEnabled())

	// EI itself retires: still off.
	c.InstructionRetired()
	assert.False(t, c.MasterEnabled())

	// The following instruction retires: now on.
	c.InstructionRetired()
	assert.True(t, c.MasterEnabled())
}

func TestDisableCancelsDelayedEnable(t *testing.T) {
	c := NewController()

	c.ScheduleEnable()
	c.InstructionRetired()
	c.SetMasterEnable(false) // DI right after EI
	c.InstructionRetired()
	c.InstructionRetired()
	assert.False(t, c.MasterEnabled())
}

func TestFlagsUpperBitsReadAsOne(t *testing.T) {
	c := NewController()
	c.WriteFlags(0x00)
	assert.Equal(t, uint8(0xE0), c.ReadFlags())
	c.WriteFlags(0xFF)
	assert.Equal(t, uint8(0xFF), c.ReadFlags())
}
