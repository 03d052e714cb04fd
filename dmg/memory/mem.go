// Package memory implements the memory bus: the 64K address decoder,
// the cartridge mapper variants behind it, and the I/O register routing
// that makes every subsystem's registers visible at their canonical
// addresses.
package memory

import (
	"fmt"
	"log/slog"

	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/audio"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
	"github.com/halfcarry/dotmatrix/dmg/timer"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// SerialPort is the minimal contract for a device wired to SB/SC.
type SerialPort interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	Tick(cycles int)
	Reset()
}

// MMU routes every 16 bit address to the owning store: cartridge
// ROM/RAM through the mapper, VRAM/WRAM/OAM/HRAM from its own backing
// array, and I/O registers to the subsystem that owns them.
type MMU struct {
	cart *Cartridge
	mbc  MBC

	memory    []byte
	regionMap [256]memRegion

	irq    *interrupt.Controller
	timer  *timer.Timer
	serial SerialPort

	// APU is exported so the scheduler can tick it directly.
	APU *audio.APU

	joypadButtons uint8 // A/B/Select/Start lines, 0 = pressed
	joypadDpad    uint8 // direction lines, 0 = pressed
}

// New creates a memory unit with no cartridge inserted, equivalent to
// powering on with an empty slot. Reads from the cartridge windows
// return open bus (0xFF).
func New(irq *interrupt.Controller, tmr *timer.Timer) *MMU {
	m := &MMU{
		memory:        make([]byte, 0x10000),
		irq:           irq,
		timer:         tmr,
		APU:           audio.New(),
		joypadButtons: 0x0F,
		joypadDpad:    0x0F,
	}
	m.initRegionMap()
	m.initIODefaults()
	return m
}

// NewWithCartridge creates a memory unit with the given (already
// validated) cartridge mapped in.
func NewWithCartridge(cart *Cartridge, irq *interrupt.Controller, tmr *timer.Timer) *MMU {
	m := New(irq, tmr)
	m.cart = cart
	m.mbc = NewMBC(cart)
	return m
}

// SetSerialPort replaces the device wired to SB/SC.
func (m *MMU) SetSerialPort(port SerialPort) {
	m.serial = port
}

// Serial returns the device wired to SB/SC, if any.
func (m *MMU) Serial() SerialPort {
	return m.serial
}

// MBC exposes the active mapper, used by the machine for the battery
// RAM persistence boundary.
func (m *MMU) MBC() MBC {
	return m.mbc
}

func (m *MMU) initRegionMap() {
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	m.regionMap[0xFE] = regionOAM
	m.regionMap[0xFF] = regionIO
}

// initIODefaults applies the register values left behind by the boot
// ROM, so execution can start at 0x0100 without running it.
func (m *MMU) initIODefaults() {
	m.Write(addr.P1, 0xCF)
	m.Write(addr.IF, 0x01)
	m.Write(addr.LCDC, 0x91)
	m.Write(addr.STAT, 0x85)
	m.Write(addr.BGP, 0xFC)
	m.Write(addr.OBP0, 0xFF)
	m.Write(addr.OBP1, 0xFF)

	m.Write(addr.NR10, 0x80)
	m.Write(addr.NR11, 0xBF)
	m.Write(addr.NR12, 0xF3)
	m.Write(addr.NR14, 0xBF)
	m.Write(addr.NR21, 0x3F)
	m.Write(addr.NR22, 0x00)
	m.Write(addr.NR24, 0xBF)
	m.Write(addr.NR30, 0x7F)
	m.Write(addr.NR31, 0xFF)
	m.Write(addr.NR32, 0x9F)
	m.Write(addr.NR34, 0xBF)
	m.Write(addr.NR41, 0xFF)
	m.Write(addr.NR42, 0x00)
	m.Write(addr.NR43, 0x00)
	m.Write(addr.NR44, 0xBF)
	m.Write(addr.NR50, 0x77)
	m.Write(addr.NR51, 0xF3)
	m.Write(addr.NR52, 0xF1)
}

func (m *MMU) Read(address uint16) uint8 {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM, regionWRAM:
		return m.memory[address]
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		if address <= addr.OAMEnd {
			return m.memory[address]
		}
		// 0xFEA0-0xFEFF is not wired to anything
		return 0xFF
	case regionIO:
		return m.readIO(address)
	}
	panic(fmt.Sprintf("memory: unmapped read at 0x%04X", address))
}

func (m *MMU) Write(address uint16, value uint8) {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("cartridge write with no cartridge inserted",
				"addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM, regionWRAM:
		m.memory[address] = value
	case regionEcho:
		m.memory[address-0x2000] = value
	case regionOAM:
		if address <= addr.OAMEnd {
			m.memory[address] = value
		}
		// writes into the unusable gap are dropped
	case regionIO:
		m.writeIO(address, value)
	default:
		panic(fmt.Sprintf("memory: unmapped write at 0x%04X", address))
	}
}

func (m *MMU) readIO(address uint16) uint8 {
	switch {
	case address == addr.P1:
		return m.readJoypad()
	case address == addr.SB || address == addr.SC:
		if m.serial == nil {
			return 0xFF
		}
		return m.serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return m.timer.Read(address)
	case address == addr.IF:
		return m.irq.ReadFlags()
	case address == addr.IE:
		return m.irq.ReadEnable()
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.APU.ReadRegister(address)
	default:
		return m.memory[address]
	}
}

func (m *MMU) writeIO(address uint16, value uint8) {
	switch {
	case address == addr.P1:
		m.writeJoypad(value)
	case address == addr.SB || address == addr.SC:
		if m.serial != nil {
			m.serial.Write(address, value)
		}
	case address >= addr.DIV && address <= addr.TAC:
		m.timer.Write(address, value)
	case address == addr.IF:
		m.irq.WriteFlags(value)
	case address == addr.IE:
		m.irq.WriteEnable(value)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.APU.WriteRegister(address, value)
	case address == addr.DMA:
		m.dmaTransfer(value)
	default:
		m.memory[address] = value
	}
}

// dmaTransfer copies 160 bytes from value<<8 into OAM. The copy is
// performed synchronously; the CPU restriction to HRAM during the
// transfer is not enforced.
func (m *MMU) dmaTransfer(value uint8) {
	source := uint16(value) << 8
	for i := uint16(0); i < 160; i++ {
		m.memory[addr.OAMStart+i] = m.Read(source + i)
	}
	m.memory[addr.DMA] = value
}
