package bit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	testCases := []struct {
		high, low uint8
		want      uint16
	}{
		{0x00, 0x00, 0x0000},
		{0x12, 0x34, 0x1234},
		{0xFF, 0x01, 0xFF01},
	}
	for _, tC := range testCases {
		assert.Equal(t, tC.want, Combine(tC.high, tC.low))
		assert.Equal(t, tC.high, High(tC.want))
		assert.Equal(t, tC.low, Low(tC.want))
	}
}

func TestSetClear(t *testing.T) {
	var v uint8
	for i := uint8(0); i < 8; i++ {
		v = Set(i, v)
		assert.True(t, IsSet(i, v))
	}
	assert.Equal(t, uint8(0xFF), v)
	for i := uint8(0); i < 8; i++ {
		v = Clear(i, v)
		assert.False(t, IsSet(i, v))
	}
	assert.Equal(t, uint8(0x00), v)
}

func TestIsSet16(t *testing.T) {
	assert.True(t, IsSet16(9, 1<<9))
	assert.False(t, IsSet16(9, 1<<8))
	assert.True(t, IsSet16(15, 0x8000))
}

func TestValue(t *testing.T) {
	assert.Equal(t, uint8(1), Value(3, 0b1000))
	assert.Equal(t, uint8(0), Value(2, 0b1000))
}
