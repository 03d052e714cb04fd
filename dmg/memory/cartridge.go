package memory

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Header field offsets in the ROM image.
const (
	titleAddress         = 0x0134
	titleLength          = 16
	cartridgeTypeAddress = 0x0147
	romSizeAddress       = 0x0148
	ramSizeAddress       = 0x0149
	headerEnd            = 0x0150

	romBankSize = 0x4000
	ramBankSize = 0x2000
)

// Load-time cartridge errors. A header the mapper cannot honor is fatal
// before emulation starts: silently guessing a banking policy corrupts
// game state in ways that are invisible until much later.
var (
	ErrROMTooSmall          = errors.New("cartridge: ROM smaller than header")
	ErrUnsupportedCartridge = errors.New("cartridge: unsupported cartridge type")
	ErrBadROMSize           = errors.New("cartridge: ROM size field does not match data")
	ErrBadRAMSize           = errors.New("cartridge: invalid RAM size field")
)

// MBCType is the banking policy selected by the cartridge type byte.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC2Type
	MBC3Type
	MBC5Type
)

func (t MBCType) String() string {
	switch t {
	case NoMBCType:
		return "none"
	case MBC1Type:
		return "MBC1"
	case MBC2Type:
		return "MBC2"
	case MBC3Type:
		return "MBC3"
	case MBC5Type:
		return "MBC5"
	}
	return "unknown"
}

// Cartridge holds a parsed ROM image and the banking attributes decoded
// from its header.
type Cartridge struct {
	data  []byte
	title string

	mbcType    MBCType
	hasBattery bool
	hasRTC     bool
	hasRumble  bool

	romBanks int
	ramBanks int
}

// NewCartridge parses the header of a ROM image and validates that the
// declared sizes are consistent with the data.
func NewCartridge(data []byte) (*Cartridge, error) {
	if len(data) < headerEnd {
		return nil, fmt.Errorf("%w: got %d bytes", ErrROMTooSmall, len(data))
	}

	cart := &Cartridge{
		data:  data,
		title: cleanTitle(data[titleAddress : titleAddress+titleLength]),
	}

	cartType := data[cartridgeTypeAddress]
	switch cartType {
	case 0x00:
		cart.mbcType = NoMBCType
	case 0x08:
		cart.mbcType = NoMBCType
	case 0x09:
		cart.mbcType = NoMBCType
		cart.hasBattery = true
	case 0x01, 0x02:
		cart.mbcType = MBC1Type
	case 0x03:
		cart.mbcType = MBC1Type
		cart.hasBattery = true
	case 0x05:
		cart.mbcType = MBC2Type
	case 0x06:
		cart.mbcType = MBC2Type
		cart.hasBattery = true
	case 0x0F, 0x10:
		cart.mbcType = MBC3Type
		cart.hasBattery = true
		cart.hasRTC = true
	case 0x11, 0x12:
		cart.mbcType = MBC3Type
	case 0x13:
		cart.mbcType = MBC3Type
		cart.hasBattery = true
	case 0x19, 0x1A:
		cart.mbcType = MBC5Type
	case 0x1B:
		cart.mbcType = MBC5Type
		cart.hasBattery = true
	case 0x1C, 0x1D:
		cart.mbcType = MBC5Type
		cart.hasRumble = true
	case 0x1E:
		cart.mbcType = MBC5Type
		cart.hasRumble = true
		cart.hasBattery = true
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnsupportedCartridge, cartType)
	}

	romCode := data[romSizeAddress]
	if romCode > 0x08 {
		return nil, fmt.Errorf("%w: size code 0x%02X", ErrBadROMSize, romCode)
	}
	cart.romBanks = 2 << romCode
	if len(data) != cart.romBanks*romBankSize {
		return nil, fmt.Errorf("%w: header declares %d banks (%d bytes), data is %d bytes",
			ErrBadROMSize, cart.romBanks, cart.romBanks*romBankSize, len(data))
	}

	switch data[ramSizeAddress] {
	case 0x00:
		cart.ramBanks = 0
	case 0x01, 0x02:
		// 2KB carts exist but occupy a full bank slot
		cart.ramBanks = 1
	case 0x03:
		cart.ramBanks = 4
	case 0x04:
		cart.ramBanks = 16
	case 0x05:
		cart.ramBanks = 8
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadRAMSize, data[ramSizeAddress])
	}

	return cart, nil
}

// Title returns the game title from the header.
func (c *Cartridge) Title() string { return c.title }

// Type returns the banking policy selected from the header.
func (c *Cartridge) Type() MBCType { return c.mbcType }

// HasBattery reports whether the cartridge RAM is battery backed and
// should be persisted across sessions.
func (c *Cartridge) HasBattery() bool { return c.hasBattery }

// RAMSize returns the size in bytes of the cartridge RAM.
func (c *Cartridge) RAMSize() int {
	if c.mbcType == MBC2Type {
		return mbc2RAMSize
	}
	return c.ramBanks * ramBankSize
}

// cleanTitle turns the raw header title bytes into printable text.
func cleanTitle(raw []byte) string {
	runes := make([]rune, 0, len(raw))
	for _, b := range raw {
		r := rune(b)
		switch {
		case r == 0:
			r = ' '
		case !unicode.IsPrint(r):
			r = '?'
		}
		runes = append(runes, r)
	}
	return strings.TrimSpace(string(runes))
}
