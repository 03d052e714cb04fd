// Package terminal renders frames into the terminal with tcell, two
// vertical pixels per character cell using the half-block glyph.
package terminal

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/halfcarry/dotmatrix/dmg/backend"
	"github.com/halfcarry/dotmatrix/dmg/video"
)

// Terminals report key presses but never releases, so a key is
// considered held until it has not repeated for this long.
const keyTimeout = 150 * time.Millisecond

type Backend struct {
	screen tcell.Screen
	config backend.Config

	lastSeen map[backend.Key]time.Time
	active   map[backend.Key]bool
}

func New() *Backend {
	return &Backend{
		lastSeen: make(map[backend.Key]time.Time),
		active:   make(map[backend.Key]bool),
	}
}

func (t *Backend) Init(config backend.Config) error {
	t.config = config

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}

	screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	screen.Clear()

	t.screen = screen
	return nil
}

func (t *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	now := time.Now()

	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if isQuitKey(ev) {
				if t.config.OnQuit != nil {
					t.config.OnQuit()
				}
				return nil, nil
			}
			if key, ok := mapKey(ev); ok {
				t.lastSeen[key] = now
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	events := t.collectEvents(now)
	t.render(frame)

	return events, nil
}

// collectEvents turns the press timestamps into press/release pairs:
// a key seen recently and not yet active produces a press, an active
// key that timed out produces a release.
func (t *Backend) collectEvents(now time.Time) []backend.InputEvent {
	var events []backend.InputEvent

	for key, seen := range t.lastSeen {
		held := now.Sub(seen) < keyTimeout

		switch {
		case held && !t.active[key]:
			t.active[key] = true
			events = append(events, backend.InputEvent{Key: key, Type: backend.Press})
		case !held && t.active[key]:
			delete(t.active, key)
			delete(t.lastSeen, key)
			events = append(events, backend.InputEvent{Key: key, Type: backend.Release})
		}
	}

	return events
}

func (t *Backend) render(frame *video.FrameBuffer) {
	for y := 0; y < video.FrameHeight; y += 2 {
		for x := 0; x < video.FrameWidth; x++ {
			style := tcell.StyleDefault.
				Foreground(cellColor(frame.GetPixel(x, y))).
				Background(cellColor(frame.GetPixel(x, y+1)))
			t.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
	t.screen.Show()
}

func (t *Backend) Cleanup() error {
	if t.screen != nil {
		t.screen.Fini()
	}
	return nil
}

func cellColor(pixel uint32) tcell.Color {
	return tcell.NewRGBColor(
		int32(pixel>>16&0xFF),
		int32(pixel>>8&0xFF),
		int32(pixel&0xFF))
}

func isQuitKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q'
	}
	return false
}

func mapKey(ev *tcell.EventKey) (backend.Key, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return backend.KeyUp, true
	case tcell.KeyDown:
		return backend.KeyDown, true
	case tcell.KeyLeft:
		return backend.KeyLeft, true
	case tcell.KeyRight:
		return backend.KeyRight, true
	case tcell.KeyEnter:
		return backend.KeyStart, true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'z':
			return backend.KeyA, true
		case 'x':
			return backend.KeyB, true
		case ' ':
			return backend.KeySelect, true
		}
	}
	return 0, false
}
