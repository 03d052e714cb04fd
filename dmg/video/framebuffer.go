package video

// GBColor is a pixel in ARGB order.
type GBColor uint32

const (
	WhiteColor     GBColor = 0xFFFFFFFF
	LightGreyColor GBColor = 0xFF989898
	DarkGreyColor  GBColor = 0xFF4C4C4C
	BlackColor     GBColor = 0xFF000000
)

// shades maps a 2 bit palette shade to its display color.
var shades = [4]GBColor{WhiteColor, LightGreyColor, DarkGreyColor, BlackColor}

const (
	// FrameWidth and FrameHeight are the visible LCD dimensions.
	FrameWidth  = 160
	FrameHeight = 144
)

// FrameBuffer holds one rendered frame.
type FrameBuffer struct {
	buffer []uint32
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{
		buffer: make([]uint32, FrameWidth*FrameHeight),
	}
}

func (fb *FrameBuffer) GetPixel(x, y int) uint32 {
	return fb.buffer[y*FrameWidth+x]
}

func (fb *FrameBuffer) SetPixel(x, y int, color GBColor) {
	fb.buffer[y*FrameWidth+x] = uint32(color)
}

// Fill paints the whole frame a single color, used when the LCD is
// switched off.
func (fb *FrameBuffer) Fill(color GBColor) {
	for i := range fb.buffer {
		fb.buffer[i] = uint32(color)
	}
}

// ToSlice exposes the raw pixels, row major.
func (fb *FrameBuffer) ToSlice() []uint32 {
	return fb.buffer
}
