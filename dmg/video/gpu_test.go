package video

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
)

type testBus struct {
	mem [0x10000]byte
}

func (b *testBus) Read(address uint16) uint8 {
	return b.mem[address]
}

func (b *testBus) Write(address uint16, value uint8) {
	b.mem[address] = value
}

func newTestGPU() (*GPU, *testBus, *interrupt.Controller) {
	bus := &testBus{}
	bus.mem[addr.LCDC] = 0x91
	bus.mem[addr.BGP] = 0xE4 // identity palette: 3 2 1 0
	irq := interrupt.NewController()
	return New(bus, irq), bus, irq
}

func TestModeProgression(t *testing.T) {
	gpu, bus, _ := newTestGPU()

	assert.Equal(t, ModeOAMScan, gpu.Mode())

	gpu.Tick(oamScanCycles)
	assert.Equal(t, ModeTransfer, gpu.Mode())

	gpu.Tick(transferCycles)
	assert.Equal(t, ModeHBlank, gpu.Mode())

	gpu.Tick(hblankCycles)
	assert.Equal(t, ModeOAMScan, gpu.Mode())
	assert.Equal(t, 1, gpu.Line())
	assert.Equal(t, uint8(1), bus.mem[addr.LY])
}

func TestStatReflectsMode(t *testing.T) {
	gpu, bus, _ := newTestGPU()

	gpu.Tick(oamScanCycles)
	assert.Equal(t, uint8(ModeTransfer), bus.mem[addr.STAT]&0x03)

	gpu.Tick(transferCycles)
	assert.Equal(t, uint8(ModeHBlank), bus.mem[addr.STAT]&0x03)
}

func TestVBlankInterruptAndFrameListener(t *testing.T) {
	gpu, _, irq := newTestGPU()

	var frames int
	gpu.SetFrameListener(func(fb *FrameBuffer) {
		frames++
		assert.NotNil(t, fb)
	})

	gpu.Tick(scanlineCycles * visibleLines)

	assert.Equal(t, ModeVBlank, gpu.Mode())
	assert.True(t, irq.Requested(interrupt.VBlank))
	assert.Equal(t, 1, frames)
	assert.Equal(t, uint64(1), gpu.Frames())
}

func TestFrameWrapsToLineZero(t *testing.T) {
	gpu, bus, _ := newTestGPU()

	gpu.Tick(scanlineCycles * linesPerFrame)

	assert.Equal(t, 0, gpu.Line())
	assert.Equal(t, uint8(0), bus.mem[addr.LY])
	assert.Equal(t, ModeOAMScan, gpu.Mode())
}

func TestLYCInterrupt(t *testing.T) {
	gpu, bus, irq := newTestGPU()
	bus.mem[addr.LYC] = 2
	bus.mem[addr.STAT] = 0x40 // LYC source enabled

	gpu.Tick(scanlineCycles)
	assert.False(t, irq.Requested(interrupt.LCDStat))

	gpu.Tick(scanlineCycles)
	assert.True(t, irq.Requested(interrupt.LCDStat))
	assert.Equal(t, uint8(0x04), bus.mem[addr.STAT]&0x04, "coincidence bit set")
}

func TestHBlankStatInterrupt(t *testing.T) {
	gpu, bus, irq := newTestGPU()
	bus.mem[addr.STAT] = 0x08 // hblank source enabled

	gpu.Tick(oamScanCycles + transferCycles)

	assert.True(t, irq.Requested(interrupt.LCDStat))
}

func TestLCDOffHoldsLineZero(t *testing.T) {
	gpu, bus, _ := newTestGPU()

	gpu.Tick(scanlineCycles * 10)
	assert.Equal(t, 10, gpu.Line())

	bus.mem[addr.LCDC] = 0x11 // LCD off
	gpu.Tick(scanlineCycles)

	assert.Equal(t, 0, gpu.Line())
	assert.Equal(t, uint8(0), bus.mem[addr.LY])
	assert.Equal(t, uint32(WhiteColor), gpu.Framebuffer().GetPixel(0, 0))

	// stays held while off
	gpu.Tick(scanlineCycles * 5)
	assert.Equal(t, 0, gpu.Line())
}

// writeTile stores an 8x8 tile where every pixel has the given color
// index.
func writeTile(bus *testBus, base uint16, index int) {
	var low, high byte
	if index&1 != 0 {
		low = 0xFF
	}
	if index&2 != 0 {
		high = 0xFF
	}
	for row := uint16(0); row < 8; row++ {
		bus.mem[base+row*2] = low
		bus.mem[base+row*2+1] = high
	}
}

func TestBackgroundRendering(t *testing.T) {
	gpu, bus, _ := newTestGPU()

	// tile 1 is solid color 3, mapped at the top-left of the background
	writeTile(bus, addr.TileData0+16, 3)
	bus.mem[addr.TileMap0] = 1

	// render the first visible line
	gpu.Tick(oamScanCycles + transferCycles)

	assert.Equal(t, uint32(BlackColor), gpu.Framebuffer().GetPixel(0, 0))
	assert.Equal(t, uint32(BlackColor), gpu.Framebuffer().GetPixel(7, 0))
	// tile 0 is solid color 0
	assert.Equal(t, uint32(WhiteColor), gpu.Framebuffer().GetPixel(8, 0))
}

func TestBackgroundScroll(t *testing.T) {
	gpu, bus, _ := newTestGPU()

	writeTile(bus, addr.TileData0+16, 3)
	bus.mem[addr.TileMap0] = 1
	bus.mem[addr.SCX] = 4

	gpu.Tick(oamScanCycles + transferCycles)

	// the solid tile is shifted 4 pixels to the left
	assert.Equal(t, uint32(BlackColor), gpu.Framebuffer().GetPixel(3, 0))
	assert.Equal(t, uint32(WhiteColor), gpu.Framebuffer().GetPixel(4, 0))
}

func TestSignedTileAddressing(t *testing.T) {
	gpu, bus, _ := newTestGPU()

	// switch to the signed addressing mode; tile 0xFF sits just below
	// 0x9000
	bus.mem[addr.LCDC] = 0x81
	writeTile(bus, addr.TileData1-16, 2)
	bus.mem[addr.TileMap0] = 0xFF

	gpu.Tick(oamScanCycles + transferCycles)

	assert.Equal(t, uint32(DarkGreyColor), gpu.Framebuffer().GetPixel(0, 0))
}

func TestWindowOverlaysBackground(t *testing.T) {
	gpu, bus, _ := newTestGPU()

	// background is solid color 3; the window, on the other tile map,
	// shows tile 0 (color 0) and covers the right half from x=80
	writeTile(bus, addr.TileData0+16, 3)
	for i := uint16(0); i < 32; i++ {
		bus.mem[addr.TileMap0+i] = 1
	}
	bus.mem[addr.LCDC] = 0xF1 // LCD + window (map 1) + bg enabled
	bus.mem[addr.WY] = 0
	bus.mem[addr.WX] = 80 + 7

	gpu.Tick(oamScanCycles + transferCycles)

	assert.Equal(t, uint32(BlackColor), gpu.Framebuffer().GetPixel(79, 0))
	assert.Equal(t, uint32(WhiteColor), gpu.Framebuffer().GetPixel(80, 0))
}

func TestSpriteRendering(t *testing.T) {
	gpu, bus, _ := newTestGPU()
	bus.mem[addr.LCDC] = 0x93 // sprites enabled
	bus.mem[addr.OBP0] = 0xE4

	writeTile(bus, addr.TileData0+16, 3)

	// sprite at screen (10, 0)
	bus.mem[addr.OAMStart+0] = 16
	bus.mem[addr.OAMStart+1] = 18
	bus.mem[addr.OAMStart+2] = 1
	bus.mem[addr.OAMStart+3] = 0

	gpu.Tick(oamScanCycles + transferCycles)

	assert.Equal(t, uint32(WhiteColor), gpu.Framebuffer().GetPixel(9, 0))
	assert.Equal(t, uint32(BlackColor), gpu.Framebuffer().GetPixel(10, 0))
	assert.Equal(t, uint32(BlackColor), gpu.Framebuffer().GetPixel(17, 0))
	assert.Equal(t, uint32(WhiteColor), gpu.Framebuffer().GetPixel(18, 0))
}

func TestSpritePriorityLowerXWins(t *testing.T) {
	gpu, bus, _ := newTestGPU()
	bus.mem[addr.LCDC] = 0x93
	bus.mem[addr.OBP0] = 0xE4
	bus.mem[addr.OBP1] = 0x90 // color 3 renders dark grey

	writeTile(bus, addr.TileData0+16, 3)

	// sprite 0 at x=12 with OBP1, sprite 1 at x=10 with OBP0; the lower
	// X one wins where they overlap despite its higher OAM index
	bus.mem[addr.OAMStart+0] = 16
	bus.mem[addr.OAMStart+1] = 20
	bus.mem[addr.OAMStart+2] = 1
	bus.mem[addr.OAMStart+3] = 0x10

	bus.mem[addr.OAMStart+4] = 16
	bus.mem[addr.OAMStart+5] = 18
	bus.mem[addr.OAMStart+6] = 1
	bus.mem[addr.OAMStart+7] = 0

	gpu.Tick(oamScanCycles + transferCycles)

	assert.Equal(t, uint32(BlackColor), gpu.Framebuffer().GetPixel(13, 0), "overlap goes to the lower X sprite")
	assert.Equal(t, uint32(DarkGreyColor), gpu.Framebuffer().GetPixel(19, 0), "tail of the higher X sprite")
}

func TestSpriteBehindBackground(t *testing.T) {
	gpu, bus, _ := newTestGPU()
	bus.mem[addr.LCDC] = 0x93
	bus.mem[addr.OBP0] = 0xE4

	// background: first tile solid color 1, second tile color 0
	writeTile(bus, addr.TileData0+16, 1)
	bus.mem[addr.TileMap0] = 1

	// behind-background sprite spanning both tiles
	writeTile(bus, addr.TileData0+32, 3)
	bus.mem[addr.OAMStart+0] = 16
	bus.mem[addr.OAMStart+1] = 12
	bus.mem[addr.OAMStart+2] = 2
	bus.mem[addr.OAMStart+3] = 0x80

	gpu.Tick(oamScanCycles + transferCycles)

	assert.Equal(t, uint32(LightGreyColor), gpu.Framebuffer().GetPixel(5, 0), "hidden behind non-zero background")
	assert.Equal(t, uint32(BlackColor), gpu.Framebuffer().GetPixel(10, 0), "visible over background color 0")
}

func TestSpriteScanlineLimit(t *testing.T) {
	bus := &testBus{}
	bus.mem[addr.LCDC] = 0x93

	// 12 sprites on line 0; only the first 10 in OAM order are kept
	for i := 0; i < 12; i++ {
		base := addr.OAMStart + uint16(i*4)
		bus.mem[base] = 16
		bus.mem[base+1] = uint8(8 + i*8)
		bus.mem[base+2] = 1
	}

	var buffer [10]sprite
	sprites := spritesOnLine(bus, 0, 8, buffer[:])

	assert.Len(t, sprites, 10)
	for _, s := range sprites {
		assert.Less(t, s.oamIndex, 10)
	}
}

func TestTileRowDecoding(t *testing.T) {
	row := TileRow{Low: 0x3C, High: 0x7E}

	want := [8]int{0, 2, 3, 3, 3, 3, 2, 0}
	for x, expected := range want {
		assert.Equal(t, expected, row.GetPixel(x), "pixel %d", x)
	}

	// flipped reads the same row mirrored
	assert.Equal(t, row.GetPixel(0), row.GetPixelFlipped(7))
	assert.Equal(t, row.GetPixel(2), row.GetPixelFlipped(5))
}
