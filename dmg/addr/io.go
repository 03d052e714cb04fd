// Package addr holds the canonical addresses of the memory mapped I/O
// registers. Every subsystem refers to its registers through these
// constants so the bus stays the single source of truth for the map.
package addr

// joypad
const (
	// P1 is the joypad matrix register: bits 4-5 select a button group,
	// bits 0-3 read the selected group (0 = pressed).
	P1 uint16 = 0xFF00
)

// serial port
const (
	// SB holds the byte being shifted out (and, after a transfer, the
	// byte shifted in from the peer).
	SB uint16 = 0xFF01
	// SC controls transfers: bit 7 starts one, bit 0 selects the
	// internal clock. Hardware clears bit 7 on completion.
	SC uint16 = 0xFF02
)

// timer
const (
	// DIV is the visible upper byte of the internal 16 bit divider.
	// Writing any value resets the whole divider to zero.
	DIV uint16 = 0xFF04
	// TIMA is the timer counter; overflow requests the timer interrupt.
	TIMA uint16 = 0xFF05
	// TMA is the value reloaded into TIMA after an overflow.
	TMA uint16 = 0xFF06
	// TAC selects the timer input clock (bits 0-1) and enables it (bit 2).
	TAC uint16 = 0xFF07
)

// interrupts
const (
	// IF is the interrupt request register. Upper 3 bits read as 1.
	IF uint16 = 0xFF0F
	// IE is the interrupt enable register.
	IE uint16 = 0xFFFF
)

// video
const (
	// LCDC is the LCD control register.
	LCDC uint16 = 0xFF40
	// STAT is the LCD status register: mode bits, LYC compare, and the
	// four STAT interrupt source enables.
	STAT uint16 = 0xFF41
	// SCY is the background vertical scroll.
	SCY uint16 = 0xFF42
	// SCX is the background horizontal scroll.
	SCX uint16 = 0xFF43
	// LY is the current scanline (read only on hardware).
	LY uint16 = 0xFF44
	// LYC is compared against LY each line.
	LYC uint16 = 0xFF45
	// DMA starts a 160 byte OAM transfer from value<<8.
	DMA uint16 = 0xFF46
	// BGP is the background palette.
	BGP uint16 = 0xFF47
	// OBP0 is sprite palette 0.
	OBP0 uint16 = 0xFF48
	// OBP1 is sprite palette 1.
	OBP1 uint16 = 0xFF49
	// WY is the window top position.
	WY uint16 = 0xFF4A
	// WX is the window left position plus 7.
	WX uint16 = 0xFF4B
)

// audio
const (
	// AudioStart and AudioEnd bracket the APU register block,
	// wave RAM included.
	AudioStart uint16 = 0xFF10
	AudioEnd   uint16 = 0xFF3F

	NR10 uint16 = 0xFF10 // channel 1 sweep
	NR11 uint16 = 0xFF11 // channel 1 length & duty
	NR12 uint16 = 0xFF12 // channel 1 envelope
	NR13 uint16 = 0xFF13 // channel 1 period low
	NR14 uint16 = 0xFF14 // channel 1 period high & control

	NR21 uint16 = 0xFF16 // channel 2 length & duty
	NR22 uint16 = 0xFF17 // channel 2 envelope
	NR23 uint16 = 0xFF18 // channel 2 period low
	NR24 uint16 = 0xFF19 // channel 2 period high & control

	NR30 uint16 = 0xFF1A // channel 3 DAC enable
	NR31 uint16 = 0xFF1B // channel 3 length
	NR32 uint16 = 0xFF1C // channel 3 output level
	NR33 uint16 = 0xFF1D // channel 3 period low
	NR34 uint16 = 0xFF1E // channel 3 period high & control

	NR41 uint16 = 0xFF20 // channel 4 length
	NR42 uint16 = 0xFF21 // channel 4 envelope
	NR43 uint16 = 0xFF22 // channel 4 frequency & randomness
	NR44 uint16 = 0xFF23 // channel 4 control

	NR50 uint16 = 0xFF24 // master volume
	NR51 uint16 = 0xFF25 // panning
	NR52 uint16 = 0xFF26 // power & channel status

	WaveRAMStart uint16 = 0xFF30
	WaveRAMEnd   uint16 = 0xFF3F
)

// sprite attribute table
const (
	// OAMStart is the first byte of OAM (40 sprites, 4 bytes each).
	OAMStart uint16 = 0xFE00
	// OAMEnd is the last byte of OAM.
	OAMEnd uint16 = 0xFE9F
)

// tile data and tile maps
const (
	// TileData0 is the unsigned tile data region (tiles 0-255).
	TileData0 uint16 = 0x8000
	// TileData1 is the base of the signed tile addressing mode.
	TileData1 uint16 = 0x9000

	// TileMap0 and TileMap1 are the two 32x32 background/window maps.
	TileMap0 uint16 = 0x9800
	TileMap1 uint16 = 0x9C00
)
