// Package headless is the no-output backend used for automated runs:
// it counts frames, optionally saves PNG snapshots, and stops the run
// once the frame budget is spent.
package headless

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/halfcarry/dotmatrix/dmg/backend"
	"github.com/halfcarry/dotmatrix/dmg/video"
)

// Backend implements backend.Backend without any host output.
type Backend struct {
	config     backend.Config
	frameCount int

	// snapshot settings
	snapshotEvery int
	snapshotDir   string
	baseName      string
}

// Option configures the headless backend.
type Option func(*Backend)

// WithSnapshots saves a PNG of every Nth frame into dir.
func WithSnapshots(every int, dir, baseName string) Option {
	return func(b *Backend) {
		b.snapshotEvery = every
		b.snapshotDir = dir
		b.baseName = baseName
	}
}

func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Init(config backend.Config) error {
	b.config = config

	if b.snapshotEvery > 0 {
		if err := os.MkdirAll(b.snapshotDir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	slog.Info("headless run started",
		"frames", config.MaxFrames,
		"snapshot_every", b.snapshotEvery)

	return nil
}

func (b *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	b.frameCount++

	if b.snapshotEvery > 0 && b.frameCount%b.snapshotEvery == 0 {
		if err := b.saveSnapshot(frame); err != nil {
			slog.Error("snapshot failed", "frame", b.frameCount, "error", err)
		}
	}

	if b.config.MaxFrames > 0 && b.frameCount >= b.config.MaxFrames {
		slog.Info("headless run completed", "frames", b.frameCount)
		if b.config.OnQuit != nil {
			b.config.OnQuit()
		}
	}

	return nil, nil
}

func (b *Backend) Cleanup() error {
	return nil
}

// Frames returns the number of frames presented so far.
func (b *Backend) Frames() int {
	return b.frameCount
}

func (b *Backend) saveSnapshot(frame *video.FrameBuffer) error {
	img := image.NewRGBA(image.Rect(0, 0, video.FrameWidth, video.FrameHeight))
	for y := 0; y < video.FrameHeight; y++ {
		for x := 0; x < video.FrameWidth; x++ {
			pixel := frame.GetPixel(x, y)
			img.Set(x, y, color.RGBA{
				R: uint8(pixel >> 16),
				G: uint8(pixel >> 8),
				B: uint8(pixel),
				A: 0xFF,
			})
		}
	}

	name := fmt.Sprintf("%s_frame_%d.png", b.baseName, b.frameCount)
	f, err := os.Create(filepath.Join(b.snapshotDir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, img)
}
