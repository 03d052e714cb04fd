// Package serial implements the link port. The only device shipped is
// a sink that logs outgoing bytes, which doubles as the output channel
// for test ROMs that report results over the link cable.
package serial

import (
	"log/slog"

	"github.com/halfcarry/dotmatrix/dmg/addr"
	"github.com/halfcarry/dotmatrix/dmg/bit"
	"github.com/halfcarry/dotmatrix/dmg/interrupt"
)

// transferCycles is the length of one byte transfer on the internal
// clock (8 bits at 8192 Hz).
const transferCycles = 4096

// LogSink is a serial device with no peer: outgoing bytes are logged,
// incoming bits read as 1. Completed transfers request the serial
// interrupt like a real link partner would.
type LogSink struct {
	irq    *interrupt.Controller
	logger *slog.Logger

	sb, sc    uint8
	active    bool
	countdown int

	// immediate completes transfers on the same write instead of after
	// the hardware transfer time. Cheaper, and what test ROM harnesses
	// want.
	immediate bool

	line   []byte // buffered output up to the next newline
	onLine func(line string)
}

// Option configures a LogSink.
type Option func(*LogSink)

// WithTransferTiming makes transfers take the hardware 4096 cycles
// instead of completing immediately.
func WithTransferTiming() Option {
	return func(s *LogSink) { s.immediate = false }
}

// WithLogger routes transferred bytes to the given logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *LogSink) { s.logger = logger }
}

// WithLineListener calls fn with every completed output line, in
// addition to logging it. Test ROM harnesses use this to read results.
func WithLineListener(fn func(line string)) Option {
	return func(s *LogSink) { s.onLine = fn }
}

// NewLogSink creates a serial sink requesting interrupts through irq.
func NewLogSink(irq *interrupt.Controller, opts ...Option) *LogSink {
	s := &LogSink{
		irq:       irq,
		logger:    slog.Default(),
		immediate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

func (s *LogSink) Read(address uint16) uint8 {
	switch address {
	case addr.SB:
		return s.sb
	case addr.SC:
		return s.sc | 0x7E
	}
	return 0xFF
}

func (s *LogSink) Write(address uint16, value uint8) {
	switch address {
	case addr.SB:
		s.sb = value
	case addr.SC:
		s.sc = value
		s.maybeStart()
	}
}

func (s *LogSink) Tick(cycles int) {
	if !s.active {
		return
	}
	s.countdown -= cycles
	if s.countdown <= 0 {
		s.complete()
	}
}

func (s *LogSink) Reset() {
	s.sb = 0x00
	s.sc = 0x00
	s.active = false
	s.countdown = 0
	s.line = s.line[:0]
}

// maybeStart begins a transfer when bit 7 (start) and bit 0 (internal
// clock) are both set. With an external clock and no peer nothing ever
// drives the line, so those transfers never complete.
func (s *LogSink) maybeStart() {
	if s.active || !bit.IsSet(7, s.sc) || !bit.IsSet(0, s.sc) {
		return
	}

	s.record(s.sb)

	if s.immediate {
		s.complete()
		return
	}
	s.active = true
	s.countdown = transferCycles
}

// record buffers outgoing bytes until a line break for readable logs.
func (s *LogSink) record(b uint8) {
	if b == 0 || b == '\n' || b == '\r' {
		if len(s.line) > 0 {
			s.logger.Info("serial", "line", string(s.line))
			if s.onLine != nil {
				s.onLine(string(s.line))
			}
			s.line = s.line[:0]
		}
		return
	}
	s.line = append(s.line, b)
}

func (s *LogSink) complete() {
	s.sb = 0xFF // no peer: all ones shift in
	s.sc = bit.Clear(7, s.sc)
	s.active = false
	s.countdown = 0
	s.irq.Request(interrupt.Serial)
}
