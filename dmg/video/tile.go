package video

import "github.com/halfcarry/dotmatrix/dmg/bit"

// TileRow is one 8 pixel row of a tile in the 2 bit-plane format: the
// low byte provides bit 0 of each pixel's color index, the high byte
// bit 1. Bit 7 of each byte is the leftmost pixel.
//
// Reference: https://gbdev.io/pandocs/Tile_Data.html
type TileRow struct {
	Low  byte
	High byte
}

// GetPixel extracts the 2 bit color index of a pixel. pixelX is 0-7
// with 0 the leftmost pixel.
func (t TileRow) GetPixel(pixelX int) int {
	bitIndex := uint8(7 - pixelX)

	pixel := 0
	if bit.IsSet(bitIndex, t.Low) {
		pixel |= 1
	}
	if bit.IsSet(bitIndex, t.High) {
		pixel |= 2
	}

	return pixel
}

// GetPixelFlipped extracts a pixel color with the row mirrored, for
// sprites with the flip X attribute.
func (t TileRow) GetPixelFlipped(pixelX int) int {
	pixel := 0
	if bit.IsSet(uint8(pixelX), t.Low) {
		pixel |= 1
	}
	if bit.IsSet(uint8(pixelX), t.High) {
		pixel |= 2
	}

	return pixel
}

// fetchTileRow reads one row of the tile stored at baseAddr.
func fetchTileRow(bus Bus, baseAddr uint16, row int) TileRow {
	rowAddr := baseAddr + uint16(row*2)
	return TileRow{
		Low:  bus.Read(rowAddr),
		High: bus.Read(rowAddr + 1),
	}
}
