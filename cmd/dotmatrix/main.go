package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/halfcarry/dotmatrix/dmg"
	"github.com/halfcarry/dotmatrix/dmg/backend"
	"github.com/halfcarry/dotmatrix/dmg/backend/headless"
	"github.com/halfcarry/dotmatrix/dmg/backend/sdl2"
	"github.com/halfcarry/dotmatrix/dmg/backend/terminal"
	"github.com/halfcarry/dotmatrix/dmg/memory"
)

const frameDuration = time.Second * dmg.CyclesPerFrame / dmg.ClockSpeed

func main() {
	app := cli.NewApp()
	app.Name = "dotmatrix"
	app.Description = "A Game Boy (DMG) emulator"
	app.Usage = "dotmatrix [options] <ROM file>"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "Output backend: terminal, sdl2 or headless",
			Value: "terminal",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Stop after N frames (required for the headless backend)",
		},
		cli.IntFlag{
			Name:  "scale",
			Usage: "Window scale factor for the sdl2 backend",
			Value: 3,
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save a PNG snapshot every N frames in headless mode (0 = disabled)",
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory for frame snapshots (default: temp directory)",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
		cli.BoolFlag{
			Name:  "no-save",
			Usage: "Skip loading and writing the battery RAM .sav file",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("emulator exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() == 0 {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
		romPath = c.Args().Get(0)
	}

	machine, err := dmg.NewFromFile(romPath)
	if err != nil {
		return err
	}

	savePath := savePathFor(romPath)
	if !c.Bool("no-save") {
		if err := loadBatteryRAM(machine, savePath); err != nil {
			return err
		}
	}

	host, err := selectBackend(c, romPath)
	if err != nil {
		return err
	}

	quit := false
	config := backend.Config{
		Title:     fmt.Sprintf("dotmatrix - %s", machine.Cartridge().Title()),
		Scale:     c.Int("scale"),
		MaxFrames: c.Int("frames"),
		OnQuit:    func() { quit = true },
	}

	if err := host.Init(config); err != nil {
		return err
	}
	defer host.Cleanup()

	pace := c.String("backend") != "headless"
	next := time.Now()

	for !quit {
		if err := machine.RunFrame(); err != nil {
			return err
		}

		events, err := host.Update(machine.Framebuffer())
		if err != nil {
			return err
		}
		applyInput(machine, events)

		if pace {
			next = next.Add(frameDuration)
			if wait := time.Until(next); wait > 0 {
				time.Sleep(wait)
			} else {
				next = time.Now()
			}
		}
	}

	if !c.Bool("no-save") {
		if err := flushBatteryRAM(machine, savePath); err != nil {
			return err
		}
	}
	return nil
}

func selectBackend(c *cli.Context, romPath string) (backend.Backend, error) {
	switch name := c.String("backend"); name {
	case "terminal":
		return terminal.New(), nil
	case "sdl2":
		return sdl2.New(), nil
	case "headless":
		if c.Int("frames") <= 0 {
			return nil, errors.New("the headless backend requires --frames with a positive value")
		}
		var opts []headless.Option
		if interval := c.Int("snapshot-interval"); interval > 0 {
			dir := c.String("snapshot-dir")
			if dir == "" {
				tempDir, err := os.MkdirTemp("", "dotmatrix-snapshots-*")
				if err != nil {
					return nil, fmt.Errorf("creating snapshot directory: %w", err)
				}
				dir = tempDir
			}
			name := strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))
			opts = append(opts, headless.WithSnapshots(interval, dir, name))
		}
		return headless.New(opts...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func applyInput(machine *dmg.Machine, events []backend.InputEvent) {
	for _, ev := range events {
		key, ok := joypadKey(ev.Key)
		if !ok {
			continue
		}
		if ev.Type == backend.Press {
			machine.PressKey(key)
		} else {
			machine.ReleaseKey(key)
		}
	}
}

func joypadKey(key backend.Key) (memory.JoypadKey, bool) {
	switch key {
	case backend.KeyRight:
		return memory.JoypadRight, true
	case backend.KeyLeft:
		return memory.JoypadLeft, true
	case backend.KeyUp:
		return memory.JoypadUp, true
	case backend.KeyDown:
		return memory.JoypadDown, true
	case backend.KeyA:
		return memory.JoypadA, true
	case backend.KeyB:
		return memory.JoypadB, true
	case backend.KeySelect:
		return memory.JoypadSelect, true
	case backend.KeyStart:
		return memory.JoypadStart, true
	}
	return 0, false
}

// savePathFor derives the battery RAM file next to the ROM.
func savePathFor(romPath string) string {
	return strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".sav"
}

func loadBatteryRAM(machine *dmg.Machine, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading save file: %w", err)
	}

	if err := machine.RestoreBatteryRAM(data); err != nil {
		return fmt.Errorf("restoring save file: %w", err)
	}
	slog.Info("battery RAM restored", "path", path, "bytes", len(data))
	return nil
}

func flushBatteryRAM(machine *dmg.Machine, path string) error {
	data := machine.BatteryRAM()
	if data == nil {
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing save file: %w", err)
	}
	slog.Info("battery RAM saved", "path", path, "bytes", len(data))
	return nil
}
