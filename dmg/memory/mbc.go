package memory

import (
	"fmt"
	"time"
)

// MBC is the bank-select contract every cartridge mapper implements.
// Reads and writes cover both the ROM window (0x0000-0x7FFF, where
// writes are banking commands) and the external RAM window
// (0xA000-0xBFFF).
type MBC interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// BatteryBacked is implemented by mappers whose external RAM survives
// power-off. The snapshot is handed to the persistence collaborator at
// flush points and restored before the first instruction runs.
type BatteryBacked interface {
	RAMSnapshot() []byte
	RestoreRAM(data []byte) error
}

// NewMBC builds the mapper selected by the cartridge header.
func NewMBC(cart *Cartridge) MBC {
	switch cart.mbcType {
	case NoMBCType:
		return newNoMBC(cart.data, cart.ramBanks)
	case MBC1Type:
		return newMBC1(cart.data, cart.ramBanks)
	case MBC2Type:
		return newMBC2(cart.data)
	case MBC3Type:
		return newMBC3(cart.data, cart.ramBanks, cart.hasRTC, nil)
	case MBC5Type:
		return newMBC5(cart.data, cart.ramBanks)
	}
	// NewCartridge rejects anything else at load time.
	panic(fmt.Sprintf("memory: no mapper for MBC type %d", cart.mbcType))
}

// bankedROMRead resolves a read in the switchable window against the
// selected bank, wrapping past the end of the ROM the way hardware
// mirrors undersized cartridges.
func bankedROMRead(rom []uint8, bank uint32, addr uint16) uint8 {
	offset := bank*romBankSize + uint32(addr-0x4000)
	return rom[offset%uint32(len(rom))]
}

func ramOffset(ram []uint8, bank uint8, addr uint16) uint32 {
	offset := uint32(bank)*ramBankSize + uint32(addr-0xA000)
	return offset % uint32(len(ram))
}

func restoreRAM(dst, src []byte) error {
	if len(src) != len(dst) {
		return fmt.Errorf("memory: save data is %d bytes, cartridge RAM is %d", len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

func snapshotRAM(ram []byte) []byte {
	out := make([]byte, len(ram))
	copy(out, ram)
	return out
}

// noMBC is the direct mapping used by 32KB cartridges: no banking,
// optionally a single external RAM bank.
type noMBC struct {
	rom []uint8
	ram []uint8
}

func newNoMBC(rom []uint8, ramBanks int) *noMBC {
	return &noMBC{
		rom: rom,
		ram: make([]uint8, ramBanks*ramBankSize),
	}
}

func (m *noMBC) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x7FFF:
		return m.rom[uint32(addr)%uint32(len(m.rom))]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[ramOffset(m.ram, 0, addr)]
	}
	return 0xFF
}

func (m *noMBC) Write(addr uint16, value uint8) {
	if addr >= 0xA000 && addr <= 0xBFFF && len(m.ram) > 0 {
		m.ram[ramOffset(m.ram, 0, addr)] = value
	}
}

func (m *noMBC) RAMSnapshot() []byte          { return snapshotRAM(m.ram) }
func (m *noMBC) RestoreRAM(data []byte) error { return restoreRAM(m.ram, data) }

// mbc1 supports up to 2MB ROM and 32KB RAM. The 5 bit bank register
// never selects bank 0, and a second 2 bit register acts as either the
// upper ROM bank bits or the RAM bank depending on the banking mode.
type mbc1 struct {
	rom []uint8
	ram []uint8

	romBank    uint8
	ramBank    uint8
	ramEnabled bool
	mode       uint8
}

func newMBC1(rom []uint8, ramBanks int) *mbc1 {
	return &mbc1{
		rom:     rom,
		ram:     make([]uint8, ramBanks*ramBankSize),
		romBank: 1,
	}
}

func (m *mbc1) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		return bankedROMRead(m.rom, uint32(m.romBank), addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[ramOffset(m.ram, m.ramBank, addr)]
	}
	return 0xFF
}

func (m *mbc1) Write(addr uint16, value uint8) {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case addr <= 0x3FFF:
		bank := value & 0x1F
		if bank == 0 {
			bank = 1
		}
		m.romBank = m.romBank&0x60 | bank
	case addr <= 0x5FFF:
		if m.mode == 0 {
			m.romBank = m.romBank&0x1F | (value&0x03)<<5
		} else {
			m.ramBank = value & 0x03
		}
	case addr <= 0x7FFF:
		m.mode = value & 0x01
		if m.mode == 1 {
			m.romBank &= 0x1F
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		m.ram[ramOffset(m.ram, m.ramBank, addr)] = value
	}
}

func (m *mbc1) RAMSnapshot() []byte          { return snapshotRAM(m.ram) }
func (m *mbc1) RestoreRAM(data []byte) error { return restoreRAM(m.ram, data) }

// mbc2RAMSize is the built-in 512x4 bit RAM of the MBC2.
const mbc2RAMSize = 512

// mbc2 has a 4 bit ROM bank register and 512 half-bytes of built-in
// RAM. Bit 8 of the address distinguishes the RAM enable command from
// the bank select command.
type mbc2 struct {
	rom []uint8
	ram [mbc2RAMSize]uint8

	romBank    uint8
	ramEnabled bool
}

func newMBC2(rom []uint8) *mbc2 {
	return &mbc2{rom: rom, romBank: 1}
}

func (m *mbc2) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		return bankedROMRead(m.rom, uint32(m.romBank), addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		// RAM repeats every 512 bytes through the window; only the low
		// nibble is real storage.
		return m.ram[addr&0x1FF] | 0xF0
	}
	return 0xFF
}

func (m *mbc2) Write(addr uint16, value uint8) {
	switch {
	case addr <= 0x3FFF:
		if addr&0x0100 == 0 {
			m.ramEnabled = value&0x0F == 0x0A
		} else {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if m.ramEnabled {
			m.ram[addr&0x1FF] = value & 0x0F
		}
	}
}

func (m *mbc2) RAMSnapshot() []byte          { return snapshotRAM(m.ram[:]) }
func (m *mbc2) RestoreRAM(data []byte) error { return restoreRAM(m.ram[:], data) }

// Clock abstracts the wall clock feeding the MBC3 RTC so tests can
// drive it deterministically.
type Clock interface {
	Now() time.Time
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

// mbc3 adds a 7 bit ROM bank register and, for RTC carts, five clock
// registers mapped through the RAM bank select.
type mbc3 struct {
	rom []uint8
	ram []uint8
	rtc [5]uint8

	romBank    uint8
	ramBank    uint8
	ramEnabled bool
	hasRTC     bool
	rtcLatched bool

	clock    Clock
	rtcSince time.Time
}

func newMBC3(rom []uint8, ramBanks int, hasRTC bool, clock Clock) *mbc3 {
	if clock == nil {
		clock = clockFunc(time.Now)
	}
	return &mbc3{
		rom:      rom,
		ram:      make([]uint8, ramBanks*ramBankSize),
		romBank:  1,
		hasRTC:   hasRTC,
		clock:    clock,
		rtcSince: clock.Now(),
	}
}

func (m *mbc3) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		return bankedROMRead(m.rom, uint32(m.romBank), addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		switch {
		case m.ramBank <= 0x03:
			if len(m.ram) == 0 {
				return 0xFF
			}
			return m.ram[ramOffset(m.ram, m.ramBank, addr)]
		case m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C:
			return m.rtc[m.ramBank-0x08]
		}
		return 0xFF
	}
	return 0xFF
}

func (m *mbc3) Write(addr uint16, value uint8) {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case addr <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case addr <= 0x5FFF:
		m.ramBank = value
	case addr <= 0x7FFF:
		// Writing 0x00 then 0x01 latches the clock registers.
		if value == 0x01 && !m.rtcLatched {
			m.updateRTC()
		}
		m.rtcLatched = value == 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		switch {
		case m.ramBank <= 0x03:
			if len(m.ram) == 0 {
				return
			}
			m.ram[ramOffset(m.ram, m.ramBank, addr)] = value
		case m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C:
			m.rtc[m.ramBank-0x08] = value
		}
	}
}

func (m *mbc3) updateRTC() {
	now := m.clock.Now()
	elapsed := now.Sub(m.rtcSince)
	m.rtcSince = now

	total := int64(m.rtc[0]) + int64(elapsed.Seconds())
	seconds := total % 60
	total = int64(m.rtc[1]) + total/60
	minutes := total % 60
	total = int64(m.rtc[2]) + total/60
	hours := total % 24
	days := int64(m.rtc[3]) | int64(m.rtc[4]&0x01)<<8
	days += total / 24

	m.rtc[0] = uint8(seconds)
	m.rtc[1] = uint8(minutes)
	m.rtc[2] = uint8(hours)
	m.rtc[3] = uint8(days)
	m.rtc[4] = m.rtc[4]&0xFE | uint8(days>>8)&0x01
	if days > 0x1FF {
		m.rtc[4] |= 0x80 // day counter carry
	}
}

func (m *mbc3) RAMSnapshot() []byte          { return snapshotRAM(m.ram) }
func (m *mbc3) RestoreRAM(data []byte) error { return restoreRAM(m.ram, data) }

// mbc5 has a flat 9 bit ROM bank register (bank 0 is selectable) and up
// to 16 RAM banks. The rumble motor shares the RAM bank register's bit
// 3 on rumble carts; this core ignores the motor.
type mbc5 struct {
	rom []uint8
	ram []uint8

	romBank    uint16
	ramBank    uint8
	ramEnabled bool
}

func newMBC5(rom []uint8, ramBanks int) *mbc5 {
	return &mbc5{
		rom:     rom,
		ram:     make([]uint8, ramBanks*ramBankSize),
		romBank: 1,
	}
}

func (m *mbc5) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		return bankedROMRead(m.rom, uint32(m.romBank), addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[ramOffset(m.ram, m.ramBank, addr)]
	}
	return 0xFF
}

func (m *mbc5) Write(addr uint16, value uint8) {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case addr <= 0x2FFF:
		m.romBank = m.romBank&0x100 | uint16(value)
	case addr <= 0x3FFF:
		m.romBank = m.romBank&0xFF | uint16(value&0x01)<<8
	case addr <= 0x5FFF:
		m.ramBank = value & 0x0F
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		m.ram[ramOffset(m.ram, m.ramBank, addr)] = value
	}
}

func (m *mbc5) RAMSnapshot() []byte          { return snapshotRAM(m.ram) }
func (m *mbc5) RestoreRAM(data []byte) error { return restoreRAM(m.ram, data) }
