//go:build !sdl2

package sdl2

import (
	"errors"

	"github.com/halfcarry/dotmatrix/dmg/backend"
	"github.com/halfcarry/dotmatrix/dmg/video"
)

// Backend is the placeholder used when the binary is built without the
// sdl2 tag.
type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (s *Backend) Init(config backend.Config) error {
	return errors.New("SDL2 backend not available: rebuild with -tags sdl2 and the SDL2 development libraries installed")
}

func (s *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	return nil, errors.New("SDL2 backend not available")
}

func (s *Backend) Cleanup() error {
	return nil
}
