package video

import (
	"sort"

	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/bit"
)

// sprite is one OAM entry with the hardware position offsets already
// applied, so x/y are real screen coordinates (possibly negative for
// partially off-screen sprites).
type sprite struct {
	y, x     int
	tile     uint8
	oamIndex int

	paletteOBP1 bool
	flipX       bool
	flipY       bool
	behindBG    bool
}

// spritesOnLine scans OAM in index order and collects the sprites
// overlapping the scanline, honoring the hardware limit of 10. The
// result is sorted by drawing priority: lower X first, ties broken by
// OAM index.
//
// Reference: https://gbdev.io/pandocs/OAM.html#drawing-priority
func spritesOnLine(bus Bus, line, height int, buffer []sprite) []sprite {
	sprites := buffer[:0]

	for i := 0; i < 40 && len(sprites) < 10; i++ {
		base := addr.OAMStart + uint16(i*4)

		y := int(bus.Read(base)) - 16
		if line < y || line >= y+height {
			continue
		}

		flags := bus.Read(base + 3)
		sprites = append(sprites, sprite{
			y:           y,
			x:           int(bus.Read(base+1)) - 8,
			tile:        bus.Read(base + 2),
			oamIndex:    i,
			paletteOBP1: bit.IsSet(4, flags),
			flipX:       bit.IsSet(5, flags),
			flipY:       bit.IsSet(6, flags),
			behindBG:    bit.IsSet(7, flags),
		})
	}

	sort.SliceStable(sprites, func(a, b int) bool {
		if sprites[a].x != sprites[b].x {
			return sprites[a].x < sprites[b].x
		}
		return sprites[a].oamIndex < sprites[b].oamIndex
	})

	return sprites
}
