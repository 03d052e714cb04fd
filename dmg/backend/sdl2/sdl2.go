//go:build sdl2

// Package sdl2 renders frames into an SDL window. It needs the SDL2
// development libraries and the sdl2 build tag.
package sdl2

import (
	"fmt"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/halfcarry/dotmatrix/dmg/backend"
	"github.com/halfcarry/dotmatrix/dmg/video"
)

const defaultScale = 3

type Backend struct {
	config   backend.Config
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
}

func New() *Backend {
	return &Backend{}
}

func (s *Backend) Init(config backend.Config) error {
	s.config = config

	scale := config.Scale
	if scale <= 0 {
		scale = defaultScale
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("initializing SDL: %w", err)
	}

	window, err := sdl.CreateWindow(config.Title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(video.FrameWidth*scale), int32(video.FrameHeight*scale),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		return fmt.Errorf("creating renderer: %w", err)
	}

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING,
		video.FrameWidth, video.FrameHeight)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		return fmt.Errorf("creating texture: %w", err)
	}

	s.window = window
	s.renderer = renderer
	s.texture = texture
	return nil
}

func (s *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	var events []backend.InputEvent

	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch ev := ev.(type) {
		case *sdl.QuitEvent:
			if s.config.OnQuit != nil {
				s.config.OnQuit()
			}
			return events, nil
		case *sdl.KeyboardEvent:
			if ev.Keysym.Sym == sdl.K_ESCAPE && ev.Type == sdl.KEYDOWN {
				if s.config.OnQuit != nil {
					s.config.OnQuit()
				}
				return events, nil
			}
			if key, ok := mapKey(ev.Keysym.Sym); ok && ev.Repeat == 0 {
				eventType := backend.Press
				if ev.Type == sdl.KEYUP {
					eventType = backend.Release
				}
				events = append(events, backend.InputEvent{Key: key, Type: eventType})
			}
		}
	}

	pixels := frame.ToSlice()
	if err := s.texture.Update(nil,
		unsafe.Pointer(&pixels[0]), video.FrameWidth*4); err != nil {
		return events, fmt.Errorf("updating texture: %w", err)
	}

	s.renderer.Clear()
	s.renderer.Copy(s.texture, nil, nil)
	s.renderer.Present()

	return events, nil
}

func (s *Backend) Cleanup() error {
	if s.texture != nil {
		s.texture.Destroy()
	}
	if s.renderer != nil {
		s.renderer.Destroy()
	}
	if s.window != nil {
		s.window.Destroy()
	}
	sdl.Quit()
	return nil
}

func mapKey(sym sdl.Keycode) (backend.Key, bool) {
	switch sym {
	case sdl.K_UP:
		return backend.KeyUp, true
	case sdl.K_DOWN:
		return backend.KeyDown, true
	case sdl.K_LEFT:
		return backend.KeyLeft, true
	case sdl.K_RIGHT:
		return backend.KeyRight, true
	case sdl.K_z:
		return backend.KeyA, true
	case sdl.K_x:
		return backend.KeyB, true
	case sdl.K_BACKSPACE:
		return backend.KeySelect, true
	case sdl.K_RETURN:
		return backend.KeyStart, true
	}
	return 0, false
}
