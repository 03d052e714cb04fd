// Package dmg assembles the subsystems into a complete machine: the
// CPU steps one instruction at a time and every other component is
// advanced by the cycles that instruction consumed.
package dmg

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/halfcarry/dotmatrix/dmg/cpu"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
	"github.com/halfcarry/dotmatrix/dmg/memory"
	"github.com/halfcarry/dotmatrix/dmg/serial"
	"github.com/halfcarry/dotmatrix/dmg/timer"
	"github.com/halfcarry/dotmatrix/dmg/video"
)

const (
	// ClockSpeed is the machine clock in T-cycles per second.
	ClockSpeed = 4194304

	// CyclesPerFrame is one full LCD refresh: 154 scanlines of 456
	// T-cycles each, 59.7 frames per second.
	CyclesPerFrame = 70224
)

// Machine is one complete unit: CPU, memory bus, LCD, audio, timer,
// serial port and the cartridge plugged into it.
type Machine struct {
	CPU   *cpu.CPU
	MMU   *memory.MMU
	GPU   *video.GPU
	IRQ   *interrupt.Controller
	Timer *timer.Timer

	cart   *memory.Cartridge
	cycles uint64
}

// NewWithROM builds a machine around the given ROM image.
func NewWithROM(data []byte, opts ...serial.Option) (*Machine, error) {
	cart, err := memory.NewCartridge(data)
	if err != nil {
		return nil, fmt.Errorf("loading cartridge: %w", err)
	}

	irq := interrupt.NewController()
	tmr := timer.New(irq)
	mmu := memory.NewWithCartridge(cart, irq, tmr)
	mmu.SetSerialPort(serial.NewLogSink(irq, opts...))

	m := &Machine{
		CPU:   cpu.New(mmu, irq),
		MMU:   mmu,
		GPU:   video.New(mmu, irq),
		IRQ:   irq,
		Timer: tmr,
		cart:  cart,
	}

	slog.Info("cartridge loaded",
		"title", cart.Title(),
		"type", cart.Type(),
		"battery", cart.HasBattery())

	return m, nil
}

// NewFromFile builds a machine from a ROM on disk.
func NewFromFile(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rom: %w", err)
	}
	return NewWithROM(data)
}

// Step executes one CPU instruction (or interrupt dispatch) and
// advances the rest of the machine by its cost. Returns the T-cycles
// consumed.
func (m *Machine) Step() (int, error) {
	cycles, err := m.CPU.Exec()
	if err != nil {
		return 0, err
	}

	m.Timer.Tick(cycles)
	m.GPU.Tick(cycles)
	m.MMU.APU.Tick(cycles)
	if port := m.MMU.Serial(); port != nil {
		port.Tick(cycles)
	}

	m.cycles += uint64(cycles)
	return cycles, nil
}

// RunFrame steps the machine for one full frame worth of cycles.
func (m *Machine) RunFrame() error {
	target := m.cycles + CyclesPerFrame
	for m.cycles < target {
		if _, err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Cycles returns the total T-cycles executed since power on.
func (m *Machine) Cycles() uint64 {
	return m.cycles
}

// Cartridge returns the cartridge plugged into the machine.
func (m *Machine) Cartridge() *memory.Cartridge {
	return m.cart
}

// Framebuffer returns the LCD output buffer.
func (m *Machine) Framebuffer() *video.FrameBuffer {
	return m.GPU.Framebuffer()
}

// PressKey and ReleaseKey feed joypad state changes into the machine.
func (m *Machine) PressKey(key memory.JoypadKey) {
	m.MMU.PressKey(key)
}

func (m *Machine) ReleaseKey(key memory.JoypadKey) {
	m.MMU.ReleaseKey(key)
}

// BatteryRAM returns a snapshot of the cartridge RAM when the
// cartridge is battery backed, nil otherwise.
func (m *Machine) BatteryRAM() []byte {
	if !m.cart.HasBattery() {
		return nil
	}
	if mbc, ok := m.MMU.MBC().(memory.BatteryBacked); ok {
		return mbc.RAMSnapshot()
	}
	return nil
}

// RestoreBatteryRAM loads a previously saved cartridge RAM image.
func (m *Machine) RestoreBatteryRAM(data []byte) error {
	if !m.cart.HasBattery() {
		return nil
	}
	mbc, ok := m.MMU.MBC().(memory.BatteryBacked)
	if !ok {
		return nil
	}
	return mbc.RestoreRAM(data)
}
