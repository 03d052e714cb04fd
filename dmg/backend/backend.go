// Package backend defines the host platform boundary: everything that
// renders frames and produces input lives behind the Backend interface
// so the machine core stays free of platform dependencies.
package backend

import "github.com/halfcarry/dotmatrix/dmg/video"

// Key is a host-independent joypad key.
type Key uint8

const (
	KeyRight Key = iota
	KeyLeft
	KeyUp
	KeyDown
	KeyA
	KeyB
	KeySelect
	KeyStart
)

// EventType distinguishes presses from releases.
type EventType uint8

const (
	Press EventType = iota
	Release
)

// InputEvent is one key state change reported by a backend.
type InputEvent struct {
	Key  Key
	Type EventType
}

// Config holds the settings shared by all backends; each backend
// ignores the fields it has no use for.
type Config struct {
	Title string
	Scale int

	// MaxFrames stops a run after this many frames when positive.
	MaxFrames int

	// OnQuit is invoked when the backend wants the run to end (window
	// closed, quit key, frame budget reached).
	OnQuit func()
}

// Backend is a complete host platform: frame output plus input.
type Backend interface {
	// Init prepares the backend. Must be called before Update.
	Init(config Config) error

	// Update presents a finished frame and returns the input events
	// collected since the previous call.
	Update(frame *video.FrameBuffer) ([]InputEvent, error)

	// Cleanup releases platform resources.
	Cleanup() error
}
