package jtag

import (
	"errors"
	"fmt"
)

// SimTarget is whatever sits on the far side of the simulated JTAG pins. Clock
// is called once per TCK cycle with the pin levels driven for that cycle and
// returns the level sampled on TDO.
type SimTarget interface {
	Clock(tms, tdi bool) (tdo bool)
}

// Loopback is a SimTarget that wires TDI straight back to TDO.
type Loopback struct{}

func (Loopback) Clock(_, tdi bool) bool { return tdi }

// SimTransport interprets the MPSSE command stream in memory and clocks a
// SimTarget, so the engine can be exercised without hardware. Commands may be
// split across Write calls.
type SimTransport struct {
	Target SimTarget

	// Call counters, for tests that assert no I/O happened.
	Writes   int
	Reads    int
	Controls int

	// Observed configuration.
	Mode         BitMode
	LatencyTimer int
	Divisor      uint16
	LowValue     byte
	LowDir       byte
	Clocks       uint64

	tms     bool
	pending []byte
	rx      []byte
	closed  bool
}

// NewSimTransport returns a transport driving target.
func NewSimTransport(target SimTarget) *SimTransport {
	return &SimTransport{Target: target, tms: true}
}

var errSimClosed = errors.New("jtag: simulator closed")

// Calls is the total number of transport calls made.
func (s *SimTransport) Calls() int {
	return s.Writes + s.Reads + s.Controls
}

// Closed reports whether Close has been called.
func (s *SimTransport) Closed() bool {
	return s.closed
}

func (s *SimTransport) control() error {
	s.Controls++
	if s.closed {
		return errSimClosed
	}
	return nil
}

func (s *SimTransport) Reset() error {
	if err := s.control(); err != nil {
		return err
	}
	s.pending = nil
	s.rx = nil
	return nil
}

func (s *SimTransport) SetLatencyTimer(ms int) error {
	if err := s.control(); err != nil {
		return err
	}
	s.LatencyTimer = ms
	return nil
}

func (s *SimTransport) SetChunkSizes(write, read int) error {
	return s.control()
}

func (s *SimTransport) SetBitMode(mask byte, mode BitMode) error {
	if err := s.control(); err != nil {
		return err
	}
	s.Mode = mode
	s.pending = nil
	return nil
}

func (s *SimTransport) PurgeReceiveBuffer() error {
	if err := s.control(); err != nil {
		return err
	}
	s.rx = nil
	return nil
}

func (s *SimTransport) Close() error {
	s.Controls++
	s.closed = true
	return nil
}

// Write queues p and executes every complete command in the queue.
func (s *SimTransport) Write(p []byte) (int, error) {
	s.Writes++
	if s.closed {
		return 0, errSimClosed
	}
	if s.Mode != BitModeMPSSE {
		return 0, fmt.Errorf("jtag: simulator not in mpsse mode (%s)", s.Mode)
	}
	s.pending = append(s.pending, p...)
	for len(s.pending) > 0 {
		n := s.execute(s.pending)
		if n == 0 {
			break
		}
		s.pending = s.pending[n:]
	}
	return len(p), nil
}

// Read returns whatever responses are queued, possibly none.
func (s *SimTransport) Read(p []byte) (int, error) {
	s.Reads++
	if s.closed {
		return 0, errSimClosed
	}
	n := copy(p, s.rx)
	s.rx = s.rx[n:]
	return n, nil
}

// execute runs the command at the front of buf and returns how many bytes it
// consumed, or 0 if the command is not complete yet.
func (s *SimTransport) execute(buf []byte) int {
	op := buf[0]
	switch op {
	case OpBytesOut, OpBytesInOut:
		if len(buf) < 3 {
			return 0
		}
		n := int(buf[1]) | int(buf[2])<<8 + 1
		if len(buf) < 3+n {
			return 0
		}
		for _, b := range buf[3 : 3+n] {
			var in byte
			for i := 0; i < 8; i++ {
				if s.clock(s.tms, b&(1<<uint(i)) != 0) {
					in |= 1 << uint(i)
				}
			}
			if op == OpBytesInOut {
				s.rx = append(s.rx, in)
			}
		}
		return 3 + n

	case OpBitsOut, OpBitsInOut:
		if len(buf) < 3 {
			return 0
		}
		n := int(buf[1]&7) + 1
		var in byte
		for i := 0; i < n; i++ {
			in >>= 1
			if s.clock(s.tms, buf[2]&(1<<uint(i)) != 0) {
				in |= 0x80
			}
		}
		if op == OpBitsInOut {
			s.rx = append(s.rx, in)
		}
		return 3

	case OpTMSOut, OpTMSDataOut, OpTMSDataInOut:
		if len(buf) < 3 {
			return 0
		}
		n := int(buf[1]&7) + 1
		tdi := buf[2]&0x80 != 0
		var in byte
		for i := 0; i < n; i++ {
			s.tms = buf[2]&(1<<uint(i)) != 0
			in >>= 1
			if s.clock(s.tms, tdi) {
				in |= 0x80
			}
		}
		if op == OpTMSDataInOut {
			s.rx = append(s.rx, in)
		}
		return 3

	case OpClockBits:
		if len(buf) < 2 {
			return 0
		}
		s.idle(uint64(buf[1]) + 1)
		return 2

	case OpClockBytes:
		if len(buf) < 3 {
			return 0
		}
		s.idle((uint64(buf[1]) | uint64(buf[2])<<8 + 1) * 8)
		return 3

	case OpSetLowGPIO:
		if len(buf) < 3 {
			return 0
		}
		s.LowValue, s.LowDir = buf[1], buf[2]
		s.tms = buf[1]&0x08 != 0
		return 3

	case OpSetHighGPIO:
		if len(buf) < 3 {
			return 0
		}
		return 3

	case OpSetDivisor:
		if len(buf) < 3 {
			return 0
		}
		s.Divisor = uint16(buf[1]) | uint16(buf[2])<<8
		return 3

	case OpLoopbackOff, OpDisableDiv5, OpThreePhaseOff, OpAdaptiveOff:
		return 1
	}
	s.rx = append(s.rx, RespBadCommand, op)
	return 1
}

func (s *SimTransport) idle(n uint64) {
	for i := uint64(0); i < n; i++ {
		s.clock(s.tms, false)
	}
}

func (s *SimTransport) clock(tms, tdi bool) bool {
	s.Clocks++
	if s.Target == nil {
		return false
	}
	return s.Target.Clock(tms, tdi)
}
