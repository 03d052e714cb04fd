package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// headerROM builds a minimal 32KB image with the given header fields.
func headerROM(title string, cartType, ramCode uint8) []byte {
	rom := make([]byte, 2*romBankSize)
	copy(rom[titleAddress:], title)
	rom[cartridgeTypeAddress] = cartType
	rom[romSizeAddress] = 0x00
	rom[ramSizeAddress] = ramCode
	return rom
}

func TestNewCartridge(t *testing.T) {
	cart, err := NewCartridge(headerROM("POCKET TEST", 0x03, 0x03))
	assert.NoError(t, err)
	assert.Equal(t, "POCKET TEST", cart.Title())
	assert.Equal(t, MBC1Type, cart.Type())
	assert.True(t, cart.HasBattery())
	assert.Equal(t, 4*ramBankSize, cart.RAMSize())
}

func TestNewCartridgeTypes(t *testing.T) {
	tests := []struct {
		cartType uint8
		mbc      MBCType
		battery  bool
	}{
		{0x00, NoMBCType, false},
		{0x01, MBC1Type, false},
		{0x06, MBC2Type, true},
		{0x10, MBC3Type, true},
		{0x13, MBC3Type, true},
		{0x19, MBC5Type, false},
		{0x1B, MBC5Type, true},
	}
	for _, tt := range tests {
		cart, err := NewCartridge(headerROM("T", tt.cartType, 0x00))
		assert.NoError(t, err)
		assert.Equal(t, tt.mbc, cart.Type(), "type 0x%02X", tt.cartType)
		assert.Equal(t, tt.battery, cart.HasBattery(), "type 0x%02X", tt.cartType)
	}
}

func TestNewCartridgeErrors(t *testing.T) {
	_, err := NewCartridge(make([]byte, 0x100))
	assert.ErrorIs(t, err, ErrROMTooSmall)

	_, err = NewCartridge(headerROM("T", 0x20, 0x00))
	assert.ErrorIs(t, err, ErrUnsupportedCartridge)

	// declared size does not match the data
	rom := headerROM("T", 0x00, 0x00)
	rom[romSizeAddress] = 0x02
	_, err = NewCartridge(rom)
	assert.ErrorIs(t, err, ErrBadROMSize)

	rom = headerROM("T", 0x00, 0x00)
	rom[romSizeAddress] = 0x09
	_, err = NewCartridge(rom)
	assert.ErrorIs(t, err, ErrBadROMSize)

	_, err = NewCartridge(headerROM("T", 0x00, 0x06))
	assert.ErrorIs(t, err, ErrBadRAMSize)
}

func TestMBC2ReportsBuiltInRAM(t *testing.T) {
	cart, err := NewCartridge(headerROM("T", 0x06, 0x00))
	assert.NoError(t, err)
	assert.Equal(t, mbc2RAMSize, cart.RAMSize())
}

func TestCleanTitle(t *testing.T) {
	raw := []byte{'Z', 'E', 'L', 'D', 'A', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	assert.Equal(t, "ZELDA", cleanTitle(raw))

	raw = []byte{'A', 0x80, 'B'}
	assert.Equal(t, "A?B", cleanTitle(raw))
}
