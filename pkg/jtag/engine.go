package jtag

import (
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/otload/pkg/bits"
	"github.com/OpenTraceLab/otload/pkg/tap"
)

// Options tune the transport bring-up in Initialize.
type Options struct {
	LatencyTimer int           // ms
	ChunkSize    int           // USB transfer size for both directions
	Settle       time.Duration // wait after entering MPSSE mode
}

// DefaultOptions match what the FT2232H on the Alchitry boards needs.
func DefaultOptions() Options {
	return Options{
		LatencyTimer: 16,
		ChunkSize:    65535,
		Settle:       100 * time.Millisecond,
	}
}

// Engine drives a TAP through an MPSSE transport. It is not safe for
// concurrent use and owns its transport exclusively.
type Engine struct {
	t    Transport
	opts Options

	live   bool
	closed bool
	freq   physic.Frequency

	sleep func(time.Duration)
}

// NewEngine wraps t. Nothing is sent until Initialize.
func NewEngine(t Transport, opts Options) *Engine {
	return &Engine{t: t, opts: opts, sleep: time.Sleep}
}

// SetSleep replaces time.Sleep for the settle delay.
func (e *Engine) SetSleep(fn func(time.Duration)) {
	e.sleep = fn
}

// Frequency returns the TCK rate last programmed with SetFrequency, or zero.
func (e *Engine) Frequency() physic.Frequency {
	return e.freq
}

// Initialize resets the chip, enters MPSSE mode, synchronises the command
// stream and configures clocks and pins. On any failure the transport is
// released and the engine becomes unusable.
func (e *Engine) Initialize() error {
	if e.closed {
		return ErrClosed
	}
	if e.live {
		return nil
	}
	if err := e.bringUp(); err != nil {
		glog.Errorf("jtag: initialize failed: %v", err)
		e.release()
		return err
	}
	e.live = true
	glog.V(1).Info("jtag: MPSSE engine ready")
	return nil
}

func (e *Engine) bringUp() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"usb reset", e.t.Reset},
		{"set latency timer", func() error { return e.t.SetLatencyTimer(e.opts.LatencyTimer) }},
		{"set chunk size", func() error { return e.t.SetChunkSizes(e.opts.ChunkSize, e.opts.ChunkSize) }},
		{"reset bit mode", func() error { return e.t.SetBitMode(0, BitModeReset) }},
		{"enter mpsse", func() error { return e.t.SetBitMode(0, BitModeMPSSE) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return &IOError{Step: s.name, Err: err}
		}
	}
	if e.opts.Settle > 0 {
		e.sleep(e.opts.Settle)
	}
	if err := e.t.PurgeReceiveBuffer(); err != nil {
		return &IOError{Step: "purge", Err: err}
	}
	if err := e.sync(); err != nil {
		return err
	}
	return e.write("configure", initCommands())
}

// Close leaves MPSSE mode and releases the transport. It is safe to call more
// than once and after a failed Initialize.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	if e.live {
		if err := e.t.SetBitMode(0, BitModeReset); err != nil {
			glog.Warningf("jtag: leaving mpsse mode: %v", err)
		}
	}
	return e.release()
}

func (e *Engine) release() error {
	e.live = false
	e.closed = true
	return e.t.Close()
}

func (e *Engine) ready() error {
	if e.closed {
		return ErrClosed
	}
	if !e.live {
		return ErrNotInitialized
	}
	return nil
}

// SetFrequency programs the TCK rate.
func (e *Engine) SetFrequency(f physic.Frequency) error {
	if err := e.ready(); err != nil {
		return err
	}
	div, err := Divisor(f)
	if err != nil {
		return err
	}
	if err := e.write("set divisor", EncodeDivisor(div)); err != nil {
		return err
	}
	e.freq = f
	glog.V(1).Infof("jtag: TCK %s (divisor %d)", f, div)
	return nil
}

// Navigate clocks the shortest TMS sequence from one state to another with
// TDI held low. It trusts from; the engine does not track TAP state.
func (e *Engine) Navigate(from, to tap.State) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, err := tap.ShortestPath(from, to)
	if err != nil {
		return err
	}
	if p.Moves == 0 {
		return nil
	}
	var buf []byte
	for off := 0; off < p.Moves; off += MaxTMSBits {
		n := p.Moves - off
		if n > MaxTMSBits {
			n = MaxTMSBits
		}
		buf = append(buf, EncodeTMS(byte(p.TMS>>uint(off)), n, false)...)
	}
	glog.V(2).Infof("jtag: navigate %s -> %s (%d moves, tms %#b)", from, to, p.Moves, p.TMS)
	return e.write("navigate", buf)
}

// SendClocks emits n TCK cycles with TMS held at its last level.
func (e *Engine) SendClocks(n uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	glog.V(2).Infof("jtag: %d idle clocks", n)
	return e.write("clocks", EncodeClocks(nil, n))
}

// Shift clocks req.Width bits out of TDI starting in Shift-IR or Shift-DR and
// leaves the TAP in the matching Exit1 state. Captured TDO is returned when
// req asks for it. A TDO mismatch is returned as *VerifyError along with the
// captured value.
func (e *Engine) Shift(req ShiftRequest) (bits.Vector, error) {
	if err := e.ready(); err != nil {
		return bits.Vector{}, err
	}
	if err := req.Validate(); err != nil {
		return bits.Vector{}, err
	}
	if err := e.sync(); err != nil {
		return bits.Vector{}, err
	}

	read := req.reads()
	tdo := bits.New(req.Width)
	full := (req.Width - 1) / 8
	part := (req.Width - 1) % 8
	data := req.TDI.Bytes()

	for off := 0; off < full; off += MaxChunk {
		n := full - off
		if n > MaxChunk {
			n = MaxChunk
		}
		if err := e.write("shift bytes", EncodeBytes(data[off:off+n], read)); err != nil {
			return bits.Vector{}, err
		}
		if read {
			if err := e.readFull("shift bytes", tdo.Bytes()[off:off+n]); err != nil {
				return bits.Vector{}, err
			}
		}
	}

	var tail []byte
	if part > 0 {
		tail = append(tail, EncodeBits(req.TDI.Byte(full), part, read)...)
	}
	tail = append(tail, EncodeLastBit(req.TDI.Bit(req.Width-1), read)...)
	if err := e.write("shift tail", tail); err != nil {
		return bits.Vector{}, err
	}

	if !read {
		return bits.Vector{}, nil
	}

	resp := make([]byte, 1)
	if part > 0 {
		resp = make([]byte, 2)
	}
	if err := e.readFull("shift tail", resp); err != nil {
		return bits.Vector{}, err
	}
	if part > 0 {
		// Bit-mode input shifts in from bit 7.
		tdo.Bytes()[full] = resp[0] >> uint(8-part)
	}
	tdo.Set(req.Width-1, resp[len(resp)-1]&0x80 != 0)

	if req.Expect == nil {
		return tdo, nil
	}
	mask := bits.Ones(req.Width)
	if req.Mask != nil {
		mask = *req.Mask
	}
	if err := bits.MatchMasked(tdo.Hex(), req.Expect.Hex(), mask.Hex()); err != nil {
		glog.Errorf("jtag: TDO mismatch (%v)", err)
		glog.Errorf("jtag:   actual   %s", tdo.Hex())
		glog.Errorf("jtag:   expected %s", req.Expect.Hex())
		glog.Errorf("jtag:   mask     %s", mask.Hex())
		return tdo, &VerifyError{Actual: tdo.Hex(), Expected: req.Expect.Hex(), Mask: mask.Hex()}
	}
	return tdo, nil
}

// sync sends a bogus opcode and waits for the chip to report it, which drains
// anything left over in the command pipeline.
func (e *Engine) sync() error {
	if err := e.write("sync", []byte{OpBadCommand}); err != nil {
		return err
	}
	resp := make([]byte, 2)
	if err := e.readFull("sync", resp); err != nil {
		return err
	}
	if resp[0] != RespBadCommand || resp[1] != OpBadCommand {
		return &IOError{Step: "sync", Want: 2, Got: 2, Err: errUnexpected(resp)}
	}
	return nil
}

func (e *Engine) write(step string, p []byte) error {
	if glog.V(2) {
		glog.Infof("jtag: %s -> % x", step, truncate(p))
	}
	n, err := e.t.Write(p)
	if err != nil || n != len(p) {
		return &IOError{Step: step, Want: len(p), Got: n, Err: err}
	}
	return nil
}

// readFull fills p. A read returning no data is reported rather than retried.
func (e *Engine) readFull(step string, p []byte) error {
	got := 0
	for got < len(p) {
		n, err := e.t.Read(p[got:])
		got += n
		if err != nil || n == 0 {
			return &IOError{Step: step, Want: len(p), Got: got, Err: err}
		}
	}
	if glog.V(2) {
		glog.Infof("jtag: %s <- % x", step, truncate(p))
	}
	return nil
}

func truncate(p []byte) []byte {
	const max = 32
	if len(p) > max {
		return p[:max]
	}
	return p
}
