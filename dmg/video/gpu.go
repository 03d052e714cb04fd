// Package video implements the pixel processing unit: the mode state
// machine with its STAT/LYC interrupts and a per-scanline renderer for
// the background, window and sprite layers.
package video

import (
	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/bit"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
)

// Bus is the GPU's view of VRAM, OAM and the LCD registers.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// Mode values match the low 2 bits of STAT.
type Mode uint8

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeOAMScan
	ModeTransfer
)

const (
	oamScanCycles  = 80
	transferCycles = 172
	hblankCycles   = 204
	scanlineCycles = oamScanCycles + transferCycles + hblankCycles

	visibleLines  = 144
	linesPerFrame = 154
)

// LCDC bit positions.
const (
	lcdEnable        = 7
	windowMapSelect  = 6
	windowEnable     = 5
	tileDataSelect   = 4
	bgMapSelect      = 3
	spriteSizeSelect = 2
	spriteEnable     = 1
	bgEnable         = 0
)

// GPU drives the LCD: it keeps the line/mode state machine in sync
// with the cycle count it is fed and rasterizes each visible scanline
// into a framebuffer at the end of its transfer period.
type GPU struct {
	bus Bus
	irq *interrupt.Controller

	framebuffer *FrameBuffer

	mode       Mode
	line       int
	windowLine int
	cycles     int
	enabled    bool

	frames  uint64
	onFrame func(*FrameBuffer)

	spriteBuffer [10]sprite
}

func New(bus Bus, irq *interrupt.Controller) *GPU {
	return &GPU{
		bus:         bus,
		irq:         irq,
		framebuffer: NewFrameBuffer(),
		mode:        ModeOAMScan,
		enabled:     true,
	}
}

// SetFrameListener registers a callback invoked once per completed
// frame, at the start of vblank, with the framebuffer just rendered.
func (g *GPU) SetFrameListener(fn func(*FrameBuffer)) {
	g.onFrame = fn
}

// Framebuffer returns the buffer frames are rendered into.
func (g *GPU) Framebuffer() *FrameBuffer {
	return g.framebuffer
}

// Frames returns the number of completed frames.
func (g *GPU) Frames() uint64 {
	return g.frames
}

func (g *GPU) Mode() Mode {
	return g.mode
}

func (g *GPU) Line() int {
	return g.line
}

// Tick advances the LCD state machine by the given T-cycles.
func (g *GPU) Tick(cycles int) {
	if !bit.IsSet(lcdEnable, g.bus.Read(addr.LCDC)) {
		if g.enabled {
			// switching the LCD off blanks the panel and holds the
			// state machine at line 0
			g.enabled = false
			g.line = 0
			g.cycles = 0
			g.mode = ModeHBlank
			g.bus.Write(addr.LY, 0)
			g.framebuffer.Fill(WhiteColor)
		}
		return
	}

	if !g.enabled {
		g.enabled = true
		g.line = 0
		g.windowLine = 0
		g.cycles = 0
		g.setMode(ModeOAMScan)
		g.bus.Write(addr.LY, 0)
		g.compareLYC()
	}

	g.cycles += cycles

	for {
		switch g.mode {
		case ModeOAMScan:
			if g.cycles < oamScanCycles {
				return
			}
			g.cycles -= oamScanCycles
			g.setMode(ModeTransfer)

		case ModeTransfer:
			if g.cycles < transferCycles {
				return
			}
			g.cycles -= transferCycles
			g.renderScanline()
			g.setMode(ModeHBlank)

		case ModeHBlank:
			if g.cycles < hblankCycles {
				return
			}
			g.cycles -= hblankCycles
			g.advanceLine()

			if g.line == visibleLines {
				g.setMode(ModeVBlank)
				g.irq.Request(interrupt.VBlank)
				g.frames++
				if g.onFrame != nil {
					g.onFrame(g.framebuffer)
				}
			} else {
				g.setMode(ModeOAMScan)
			}

		case ModeVBlank:
			if g.cycles < scanlineCycles {
				return
			}
			g.cycles -= scanlineCycles

			if g.line == linesPerFrame-1 {
				g.line = 0
				g.windowLine = 0
				g.bus.Write(addr.LY, 0)
				g.compareLYC()
				g.setMode(ModeOAMScan)
			} else {
				g.advanceLine()
			}
		}
	}
}

func (g *GPU) advanceLine() {
	g.line++
	g.bus.Write(addr.LY, uint8(g.line))
	g.compareLYC()
}

// compareLYC updates the STAT coincidence bit and requests the STAT
// interrupt when LY matches LYC and the LYC source is enabled.
func (g *GPU) compareLYC() {
	stat := g.bus.Read(addr.STAT)
	match := uint8(g.line) == g.bus.Read(addr.LYC)

	if match {
		stat = bit.Set(2, stat)
	} else {
		stat = bit.Clear(2, stat)
	}
	g.bus.Write(addr.STAT, stat)

	if match && bit.IsSet(6, stat) {
		g.irq.Request(interrupt.LCDStat)
	}
}

// setMode publishes the mode in STAT and fires the matching STAT
// interrupt source if enabled. Transfer (mode 3) has no source.
func (g *GPU) setMode(mode Mode) {
	g.mode = mode

	stat := g.bus.Read(addr.STAT)
	stat = stat&0xFC | uint8(mode)
	g.bus.Write(addr.STAT, stat)

	var source uint8
	switch mode {
	case ModeHBlank:
		source = 3
	case ModeVBlank:
		source = 4
	case ModeOAMScan:
		source = 5
	default:
		return
	}

	if bit.IsSet(source, stat) {
		g.irq.Request(interrupt.LCDStat)
	}
}

func (g *GPU) renderScanline() {
	lcdc := g.bus.Read(addr.LCDC)

	// raw background color indices for this line, kept around so sprite
	// priority can tell color 0 apart from darker shades
	var bgIndices [FrameWidth]int

	if bit.IsSet(bgEnable, lcdc) {
		g.renderBackground(lcdc, &bgIndices)
		if bit.IsSet(windowEnable, lcdc) {
			g.renderWindow(lcdc, &bgIndices)
		}
	} else {
		for x := 0; x < FrameWidth; x++ {
			g.framebuffer.SetPixel(x, g.line, WhiteColor)
		}
	}

	if bit.IsSet(spriteEnable, lcdc) {
		g.renderSprites(lcdc, &bgIndices)
	}
}

// tileDataAddr resolves a tile number to its pattern address using the
// addressing mode selected in LCDC: unsigned from 0x8000 or signed
// around 0x9000.
func tileDataAddr(lcdc, tileNum uint8) uint16 {
	if bit.IsSet(tileDataSelect, lcdc) {
		return addr.TileData0 + uint16(tileNum)*16
	}
	return uint16(int(addr.TileData1) + int(int8(tileNum))*16)
}

func (g *GPU) renderBackground(lcdc uint8, bgIndices *[FrameWidth]int) {
	palette := g.bus.Read(addr.BGP)
	scy := g.bus.Read(addr.SCY)
	scx := g.bus.Read(addr.SCX)

	mapBase := addr.TileMap0
	if bit.IsSet(bgMapSelect, lcdc) {
		mapBase = addr.TileMap1
	}

	mapY := (g.line + int(scy)) & 0xFF
	row := mapY % 8

	for x := 0; x < FrameWidth; x++ {
		mapX := (x + int(scx)) & 0xFF

		tileNum := g.bus.Read(mapBase + uint16(mapY/8*32+mapX/8))
		tileRow := fetchTileRow(g.bus, tileDataAddr(lcdc, tileNum), row)

		index := tileRow.GetPixel(mapX % 8)
		bgIndices[x] = index
		g.framebuffer.SetPixel(x, g.line, shades[palette>>(index*2)&3])
	}
}

func (g *GPU) renderWindow(lcdc uint8, bgIndices *[FrameWidth]int) {
	wy := int(g.bus.Read(addr.WY))
	wx := int(g.bus.Read(addr.WX)) - 7

	if g.line < wy || wx >= FrameWidth {
		return
	}

	palette := g.bus.Read(addr.BGP)

	mapBase := addr.TileMap0
	if bit.IsSet(windowMapSelect, lcdc) {
		mapBase = addr.TileMap1
	}

	// the window keeps its own line counter so hiding it mid-frame
	// resumes where it left off
	row := g.windowLine % 8

	start := wx
	if start < 0 {
		start = 0
	}

	for x := start; x < FrameWidth; x++ {
		winX := x - wx

		tileNum := g.bus.Read(mapBase + uint16(g.windowLine/8*32+winX/8))
		tileRow := fetchTileRow(g.bus, tileDataAddr(lcdc, tileNum), row)

		index := tileRow.GetPixel(winX % 8)
		bgIndices[x] = index
		g.framebuffer.SetPixel(x, g.line, shades[palette>>(index*2)&3])
	}

	g.windowLine++
}

func (g *GPU) renderSprites(lcdc uint8, bgIndices *[FrameWidth]int) {
	height := 8
	if bit.IsSet(spriteSizeSelect, lcdc) {
		height = 16
	}

	sprites := spritesOnLine(g.bus, g.line, height, g.spriteBuffer[:])

	// lowest priority first, so higher priority sprites overdraw
	for i := len(sprites) - 1; i >= 0; i-- {
		s := sprites[i]

		row := g.line - s.y
		if s.flipY {
			row = height - 1 - row
		}

		tileNum := s.tile
		if height == 16 {
			// 8x16 sprites ignore bit 0; the second tile follows the first
			tileNum &= 0xFE
		}
		tileRow := fetchTileRow(g.bus, addr.TileData0+uint16(tileNum)*16, row)

		palette := g.bus.Read(addr.OBP0)
		if s.paletteOBP1 {
			palette = g.bus.Read(addr.OBP1)
		}

		for px := 0; px < 8; px++ {
			x := s.x + px
			if x < 0 || x >= FrameWidth {
				continue
			}

			var index int
			if s.flipX {
				index = tileRow.GetPixelFlipped(px)
			} else {
				index = tileRow.GetPixel(px)
			}

			// color 0 is transparent for sprites
			if index == 0 {
				continue
			}
			// the behind-background flag only loses to non-zero colors
			if s.behindBG && bgIndices[x] != 0 {
				continue
			}

			g.framebuffer.SetPixel(x, g.line, shades[palette>>(index*2)&3])
		}
	}
}
