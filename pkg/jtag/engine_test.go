package jtag

import (
	"errors"
	"math/rand"
	"testing"

	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/otload/pkg/bits"
	"github.com/OpenTraceLab/otload/pkg/tap"
)

func testOptions() Options {
	o := DefaultOptions()
	o.Settle = 0
	return o
}

func newSimEngine(t *testing.T, target SimTarget) (*Engine, *SimTransport) {
	t.Helper()
	tr := NewSimTransport(target)
	e := NewEngine(tr, testOptions())
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e, tr
}

func randomVector(r *rand.Rand, n int) bits.Vector {
	b := make([]byte, bits.ByteLen(n))
	r.Read(b)
	return bits.FromBytes(b, n)
}

func TestInitializeConfiguresChip(t *testing.T) {
	_, tr := newSimEngine(t, Loopback{})

	if tr.Mode != BitModeMPSSE {
		t.Errorf("Mode = %s, want mpsse", tr.Mode)
	}
	if tr.LatencyTimer != 16 {
		t.Errorf("LatencyTimer = %d, want 16", tr.LatencyTimer)
	}
	if tr.Divisor != 0x05DB {
		t.Errorf("Divisor = %#04x, want 0x05db", tr.Divisor)
	}
	if tr.LowValue != 0x08 || tr.LowDir != 0x0B {
		t.Errorf("low GPIO = %#02x/%#02x, want 0x08/0x0b", tr.LowValue, tr.LowDir)
	}
}

func TestLoopbackRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	widths := []int{1, 2, 7, 8, 9, 16, 17, 64, 520, 131073, MaxChunk*8 + 9}
	for _, w := range widths {
		e, _ := newSimEngine(t, Loopback{})
		tdi := randomVector(r, w)
		got, err := e.Shift(ShiftRequest{Width: w, TDI: tdi, Capture: true})
		if err != nil {
			t.Fatalf("width %d: Shift: %v", w, err)
		}
		if !got.Equal(tdi) {
			t.Errorf("width %d: tdo %s, want %s", w, got.Hex(), tdi.Hex())
		}
	}
}

func TestLoopbackVerify(t *testing.T) {
	e, _ := newSimEngine(t, Loopback{})

	req := MustShiftRequest(32, "DEADBEEF", "deadbeef", "")
	if _, err := e.Shift(req); err != nil {
		t.Fatalf("matching shift failed: %v", err)
	}

	req = MustShiftRequest(32, "DEADBEEF", "DEADBEEE", "")
	_, err := e.Shift(req)
	var ve *VerifyError
	if !errors.As(err, &ve) {
		t.Fatalf("Shift error = %v, want *VerifyError", err)
	}
	if ve.Actual != "DEADBEEF" || ve.Expected != "DEADBEEE" || ve.Mask != "FFFFFFFF" {
		t.Errorf("VerifyError = %+v", ve)
	}

	req = MustShiftRequest(32, "DEADBEEF", "DEADBEEE", "FFFFFFFE")
	if _, err := e.Shift(req); err != nil {
		t.Fatalf("masked shift failed: %v", err)
	}
}

func TestShiftWithoutCaptureReturnsEmpty(t *testing.T) {
	e, tr := newSimEngine(t, Loopback{})
	reads := tr.Reads
	got, err := e.Shift(ShiftVector(bits.MustParseHex("1234", 16)))
	if err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("got %d bits, want none", got.Len())
	}
	// Only the sync response is read.
	if tr.Reads-reads != 1 {
		t.Errorf("reads = %d, want 1", tr.Reads-reads)
	}
}

// irDevice is a 6-bit TAP whose IR captures the given value.
func irDevice(capture uint64) *SimDevice {
	d := NewSimDevice(6, 0x09)
	d.IRCapture = func() uint64 { return capture }
	d.Registers[0x09] = DataRegister{
		Capture: func() bits.Vector { return bits.FromUint(0x0362D093, 32) },
	}
	return d
}

func TestMaskedIRCapture(t *testing.T) {
	tests := []struct {
		name    string
		capture uint64
		wantErr bool
	}{
		{"init complete", 0x11, false},
		{"unmasked bit differs", 0x15, false},
		{"done already set", 0x31, true},
		{"init not complete", 0x01, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := irDevice(tt.capture)
			e, _ := newSimEngine(t, dev)
			if err := e.Navigate(tap.StateTestLogicReset, tap.StateShiftIR); err != nil {
				t.Fatalf("Navigate: %v", err)
			}
			_, err := e.Shift(MustShiftRequest(6, "14", "11", "31"))
			var ve *VerifyError
			if tt.wantErr != errors.As(err, &ve) {
				t.Fatalf("Shift error = %v, wantErr %v", err, tt.wantErr)
			}
			if dev.State() != tap.StateExit1IR {
				t.Errorf("device state = %s, want Exit1IR", dev.State())
			}
		})
	}
}

func TestInstructionLatchedOnUpdate(t *testing.T) {
	dev := irDevice(0x11)
	e, _ := newSimEngine(t, dev)

	if err := e.Navigate(tap.StateTestLogicReset, tap.StateShiftIR); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if _, err := e.Shift(ShiftVector(bits.FromUint(0x0B, 6))); err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if err := e.Navigate(tap.StateExit1IR, tap.StateRunTestIdle); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if dev.Instruction() != 0x0B {
		t.Errorf("instruction = %#x, want 0x0b", dev.Instruction())
	}
	if dev.State() != tap.StateRunTestIdle {
		t.Errorf("state = %s, want RunTestIdle", dev.State())
	}
}

func TestReadIDCodeThroughDevice(t *testing.T) {
	e, _ := newSimEngine(t, irDevice(0x11))
	if err := e.Navigate(tap.StateTestLogicReset, tap.StateShiftDR); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	got, err := e.Shift(MustShiftRequest(32, "00000000", "0362D093", "0FFFFFFF"))
	if err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if got.Uint64() != 0x0362D093 {
		t.Errorf("idcode = %s", got.Hex())
	}
}

func TestShortTDIRejectedWithoutIO(t *testing.T) {
	if _, err := NewShiftRequest(13, "123", "", ""); !errors.Is(err, ErrInvalidShift) || !errors.Is(err, bits.ErrShortHex) {
		t.Fatalf("NewShiftRequest error = %v", err)
	}

	e, tr := newSimEngine(t, Loopback{})
	before := tr.Calls()
	cases := []ShiftRequest{
		{Width: 13, TDI: bits.New(12)},
		{Width: 0, TDI: bits.New(0)},
		{Width: 8, TDI: bits.New(8), Expect: ptr(bits.New(4))},
		{Width: 8, TDI: bits.New(8), Mask: ptr(bits.New(8))},
	}
	for i, req := range cases {
		if _, err := e.Shift(req); !errors.Is(err, ErrInvalidShift) {
			t.Errorf("case %d: error = %v, want ErrInvalidShift", i, err)
		}
	}
	if tr.Calls() != before {
		t.Errorf("transport calls = %d, want %d", tr.Calls(), before)
	}
}

func ptr(v bits.Vector) *bits.Vector { return &v }

func TestLifecycle(t *testing.T) {
	tr := NewSimTransport(Loopback{})
	e := NewEngine(tr, testOptions())

	if _, err := e.Shift(ShiftVector(bits.New(8))); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Shift before Initialize = %v", err)
	}
	if tr.Calls() != 0 {
		t.Fatalf("transport used before Initialize")
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !tr.Closed() || tr.Mode != BitModeReset {
		t.Errorf("transport not released: closed=%v mode=%s", tr.Closed(), tr.Mode)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := e.SendClocks(8); !errors.Is(err, ErrClosed) {
		t.Errorf("SendClocks after Close = %v", err)
	}
	if err := e.Initialize(); !errors.Is(err, ErrClosed) {
		t.Errorf("Initialize after Close = %v", err)
	}
}

func TestSendClocks(t *testing.T) {
	for _, n := range []uint64{1, 5, 7, 8, 13, 100, 100000, MaxChunk*8 + 3} {
		e, tr := newSimEngine(t, Loopback{})
		before := tr.Clocks
		if err := e.SendClocks(n); err != nil {
			t.Fatalf("SendClocks(%d): %v", n, err)
		}
		if got := tr.Clocks - before; got != n {
			t.Errorf("SendClocks(%d) clocked %d", n, got)
		}
	}
}

func TestEncodeClocks(t *testing.T) {
	tests := []struct {
		n    uint64
		want []byte
	}{
		{5, []byte{OpClockBits, 4}},
		{8, []byte{OpClockBytes, 0, 0}},
		{10000, []byte{OpClockBytes, 0xE1, 0x04}},
		{100, []byte{OpClockBytes, 11, 0, OpClockBits, 3}},
	}
	for _, tt := range tests {
		got := EncodeClocks(nil, tt.n)
		if string(got) != string(tt.want) {
			t.Errorf("EncodeClocks(%d) = % x, want % x", tt.n, got, tt.want)
		}
	}
}

func TestSetFrequency(t *testing.T) {
	e, tr := newSimEngine(t, Loopback{})
	tests := []struct {
		f   physic.Frequency
		div uint16
	}{
		{10 * physic.MegaHertz, 2},
		{1500 * physic.KiloHertz, 19},
		{30 * physic.MegaHertz, 0},
	}
	for _, tt := range tests {
		if err := e.SetFrequency(tt.f); err != nil {
			t.Fatalf("SetFrequency(%s): %v", tt.f, err)
		}
		if tr.Divisor != tt.div {
			t.Errorf("SetFrequency(%s) divisor = %d, want %d", tt.f, tr.Divisor, tt.div)
		}
	}
	if err := e.SetFrequency(0); err == nil {
		t.Error("SetFrequency(0) should fail")
	}
	if err := e.SetFrequency(60 * physic.MegaHertz); err == nil {
		t.Error("SetFrequency(60MHz) should fail")
	}
}

func TestNavigateReachesEveryState(t *testing.T) {
	dev := NewSimDevice(6, 0x09)
	e, _ := newSimEngine(t, dev)
	from := tap.StateTestLogicReset
	for to := tap.State(0); to < tap.NumStates; to++ {
		if err := e.Navigate(from, to); err != nil {
			t.Fatalf("Navigate(%s, %s): %v", from, to, err)
		}
		if dev.State() != to {
			t.Fatalf("Navigate(%s, %s) left device in %s", from, to, dev.State())
		}
		from = to
	}
}

func TestUnknownOpcodeIsEchoed(t *testing.T) {
	_, tr := newSimEngine(t, Loopback{})
	if _, err := tr.Write([]byte{0xAB}); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	n, _ := tr.Read(buf)
	if n != 2 || buf[0] != RespBadCommand || buf[1] != 0xAB {
		t.Errorf("response = % x", buf[:n])
	}
}
