// Package blargg runs Blargg's cpu_instrs test ROMs against the full
// machine. The ROMs report results over the link port, so the harness
// captures serial output and looks for the final verdict line. Tests
// skip when the ROMs are not checked out; set BLARGG_ROM_DIR to point
// at a directory containing the individual .gb files.
package blargg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/halfcarry/dotmatrix/dmg"
	"github.com/halfcarry/dotmatrix/dmg/serial"
)

type romTest struct {
	file      string
	maxFrames int
}

func romDir() string {
	if dir := os.Getenv("BLARGG_ROM_DIR"); dir != "" {
		return dir
	}
	return "../../test-roms/blargg/cpu_instrs/individual"
}

func cpuInstrsTests() []romTest {
	return []romTest{
		{"01-special.gb", 1500},
		{"02-interrupts.gb", 1500},
		{"03-op sp,hl.gb", 1500},
		{"04-op r,imm.gb", 1500},
		{"05-op rp.gb", 1500},
		{"06-ld r,r.gb", 1500},
		{"07-jr,jp,call,ret,rst.gb", 1500},
		{"08-misc instrs.gb", 1500},
		{"09-op r,r.gb", 3000},
		{"10-bit ops.gb", 3000},
		{"11-op a,(hl).gb", 5000},
	}
}

func TestCPUInstrs(t *testing.T) {
	for _, tc := range cpuInstrsTests() {
		t.Run(strings.TrimSuffix(tc.file, ".gb"), func(t *testing.T) {
			runROM(t, filepath.Join(romDir(), tc.file), tc.maxFrames)
		})
	}
}

func runROM(t *testing.T, path string, maxFrames int) {
	t.Helper()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Skipf("ROM not found: %s", path)
	}
	if err != nil {
		t.Fatalf("reading ROM: %v", err)
	}

	var output []string
	machine, err := dmg.NewWithROM(data, serial.WithLineListener(func(line string) {
		output = append(output, line)
	}))
	if err != nil {
		t.Fatalf("loading ROM: %v", err)
	}

	for frame := 0; frame < maxFrames; frame++ {
		if err := machine.RunFrame(); err != nil {
			t.Fatalf("frame %d: %v\noutput so far:\n%s", frame, err, strings.Join(output, "\n"))
		}
		if verdict, done := verdict(output); done {
			if !verdict {
				t.Fatalf("ROM reported failure:\n%s", strings.Join(output, "\n"))
			}
			return
		}
	}
	t.Fatalf("no verdict after %d frames, output:\n%s", maxFrames, strings.Join(output, "\n"))
}

// verdict scans the captured lines for the ROM's final result.
func verdict(lines []string) (passed, done bool) {
	for _, line := range lines {
		if strings.Contains(line, "Passed") {
			return true, true
		}
		if strings.Contains(line, "Failed") {
			return false, true
		}
	}
	return false, false
}
