package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/otload/pkg/bits"
	"github.com/OpenTraceLab/otload/pkg/jtag"
	"github.com/OpenTraceLab/otload/pkg/tap"
)

type simRig struct {
	fpga    *SimFPGA
	tr      *jtag.SimTransport
	eng     *jtag.Engine
	session *Session
	slept   []time.Duration
}

func newSimRig(t *testing.T) *simRig {
	t.Helper()
	r := &simRig{fpga: NewSimFPGA()}
	r.tr = jtag.NewSimTransport(r.fpga)
	opts := jtag.DefaultOptions()
	opts.Settle = 0
	r.eng = jtag.NewEngine(r.tr, opts)
	require.NoError(t, r.eng.Initialize())
	t.Cleanup(func() { r.eng.Close() })
	r.session = NewSession(r.eng)
	r.session.SetSleeper(func(d time.Duration) { r.slept = append(r.slept, d) })
	return r
}

// testBitstream builds n bytes that start like a real .bin file.
func testBitstream(name string, n int, seed byte) *Bitstream {
	data := make([]byte, n)
	copy(data, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xAA, 0x99, 0x55, 0x66})
	for i := 8; i < n; i++ {
		data[i] = byte(i)*7 + seed
	}
	return NewBitstream(name, data)
}

func TestBitstreamTransforms(t *testing.T) {
	bs := testBitstream("design.bin", 100, 3)

	cfg := bs.Vector(TransformConfig)
	raw := bs.Vector(TransformPassThrough)
	assert.Equal(t, 800, cfg.Len())
	assert.Equal(t, 800, raw.Len())
	assert.False(t, cfg.Equal(raw), "transforms should differ")

	assert.Equal(t, bs.Bytes(), raw.Bytes())
	for i, b := range bs.Bytes() {
		require.Equal(t, bits.ReverseByte(b), cfg.Bytes()[i], "byte %d", i)
	}

	// The hex form leads with the last file byte.
	hex := bs.Hex(TransformPassThrough)
	assert.Len(t, hex, 200)
	last := bs.Bytes()[99]
	assert.Equal(t, bits.FromUint(uint64(last), 8).Hex(), hex[:2])
	assert.Equal(t, "FF", hex[198:])
	assert.True(t, bs.HasSyncWord())
}

func TestReadBitstream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "top.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xAA, 0x99, 0x55, 0x66}, 0o644))

	bs, err := ReadBitstream(path)
	require.NoError(t, err)
	assert.Equal(t, "top.bin", bs.Name)
	assert.Equal(t, 4, bs.Len())

	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ReadBitstream(empty)
	assert.Error(t, err)

	_, err = ReadBitstream(filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBitstream(t *testing.T) {
	r := newSimRig(t)
	bs := testBitstream("design.bin", 100, 1)

	require.NoError(t, r.session.LoadBitstream(bs))
	assert.True(t, r.fpga.Done)
	require.Len(t, r.fpga.Loaded, 1)
	assert.Equal(t, bs.Bytes(), r.fpga.Loaded[0])
	assert.Equal(t, tap.StateTestLogicReset, r.session.State())
	assert.Equal(t, tap.StateTestLogicReset, r.fpga.State())
	assert.Equal(t, ConfigFrequency, r.eng.Frequency())
	assert.Equal(t, []time.Duration{InitDelay}, r.slept)
}

func TestLoadBitstreamRejected(t *testing.T) {
	r := newSimRig(t)
	r.fpga.RejectConfig = true

	err := r.session.LoadBitstream(testBitstream("bad.bin", 64, 9))
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "load", stepErr.Op)
	assert.Equal(t, "check status", stepErr.Step)
	var verr *jtag.VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "375E0D40", verr.Actual)
	assert.False(t, r.fpga.Done)
}

func TestLoadEmptyBitstream(t *testing.T) {
	r := newSimRig(t)
	calls := r.tr.Calls()
	err := r.session.LoadBitstream(NewBitstream("empty.bin", nil))
	assert.Error(t, err)
	assert.Equal(t, calls, r.tr.Calls())
}

func TestEraseFlashLoadsBridgeFirst(t *testing.T) {
	r := newSimRig(t)
	bridge := testBitstream("bridge.bin", 96, 5)

	require.NoError(t, r.session.EraseFlash(bridge))
	require.Len(t, r.fpga.Loaded, 1)
	assert.Equal(t, bridge.Bytes(), r.fpga.Loaded[0])
	assert.Equal(t, 1, r.fpga.Erases)
	assert.Equal(t, 2, r.fpga.Programs)
	assert.False(t, r.fpga.Done, "JPROGRAM should clear the bridge")
	assert.Equal(t, tap.StateTestLogicReset, r.session.State())
	assert.Equal(t, BridgeFrequency, r.eng.Frequency())
	assert.Equal(t, []time.Duration{InitDelay, EraseDelay}, r.slept)
}

func TestWriteFlash(t *testing.T) {
	r := newSimRig(t)
	bridge := testBitstream("bridge.bin", 96, 5)
	bin := testBitstream("design.bin", 100, 11)

	require.NoError(t, r.session.WriteFlash(bin, bridge))
	require.Len(t, r.fpga.Loaded, 1)
	assert.Equal(t, bridge.Bytes(), r.fpga.Loaded[0], "bridge must be loaded before the payload")
	assert.Equal(t, bin.Bytes(), r.fpga.Flash)
	assert.Equal(t, 1, r.fpga.Erases)
	assert.Equal(t, tap.StateTestLogicReset, r.session.State())
	assert.Equal(t, []time.Duration{InitDelay, FlashSetupDelay, FlashSetupDelay}, r.slept)
}

func TestWriteFlashStopsWhenBridgeFails(t *testing.T) {
	r := newSimRig(t)
	r.fpga.RejectConfig = true

	err := r.session.WriteFlash(testBitstream("design.bin", 100, 11), testBitstream("bridge.bin", 96, 5))
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "flash", stepErr.Op)
	assert.Equal(t, "load bridge", stepErr.Step)
	assert.Nil(t, r.fpga.Flash)
	assert.Zero(t, r.fpga.Erases)
}

func TestWriteRAM(t *testing.T) {
	r := newSimRig(t)
	bin := testBitstream("design.bin", 100, 2)

	require.NoError(t, r.session.WriteRAM(bin))
	assert.True(t, r.fpga.Done)
	assert.Equal(t, bin.Bytes(), r.fpga.Loaded[0])
	assert.Nil(t, r.fpga.Flash)
	assert.Equal(t, tap.StateTestLogicReset, r.session.State())
}

func TestCheckIDCode(t *testing.T) {
	tests := []struct {
		name    string
		idcode  uint32
		wantErr bool
	}{
		{"xc7a35t", 0x0362D093, false},
		{"other silicon revision", 0x5362D093, false},
		{"xc7a100t", 0x13631093, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newSimRig(t)
			r.fpga.IDCode = tt.idcode
			err := r.session.CheckIDCode()
			if !tt.wantErr {
				assert.NoError(t, err)
				assert.Equal(t, tap.StateRunTestIdle, r.session.State())
				return
			}
			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, "check idcode", stepErr.Step)
			var verr *jtag.VerifyError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestReadIDCode(t *testing.T) {
	r := newSimRig(t)
	r.fpga.IDCode = 0x13631093
	id, err := r.session.ReadIDCode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x13631093), id)
}

// recordingEngine logs what a Session asks for without any TAP behind it.
type recordingEngine struct {
	navs      [][2]tap.State
	shifts    []jtag.ShiftRequest
	clocks    []uint64
	freqs     []physic.Frequency
	shiftErrs []error
}

func (e *recordingEngine) SetFrequency(f physic.Frequency) error {
	e.freqs = append(e.freqs, f)
	return nil
}

func (e *recordingEngine) Navigate(from, to tap.State) error {
	e.navs = append(e.navs, [2]tap.State{from, to})
	return nil
}

func (e *recordingEngine) Shift(req jtag.ShiftRequest) (bits.Vector, error) {
	e.shifts = append(e.shifts, req)
	if len(e.shiftErrs) > 0 {
		err := e.shiftErrs[0]
		e.shiftErrs = e.shiftErrs[1:]
		return bits.Vector{}, err
	}
	return bits.New(req.Width), nil
}

func (e *recordingEngine) SendClocks(n uint64) error {
	e.clocks = append(e.clocks, n)
	return nil
}

func TestFirstOperationResets(t *testing.T) {
	eng := &recordingEngine{}
	s := NewSession(eng)

	require.NoError(t, s.CheckIDCode())
	require.GreaterOrEqual(t, len(eng.navs), 2)
	assert.Equal(t, [2]tap.State{tap.StateCaptureDR, tap.StateTestLogicReset}, eng.navs[0])
	assert.Equal(t, [2]tap.State{tap.StateTestLogicReset, tap.StateShiftIR}, eng.navs[1])
	assert.Equal(t, uint64(IDCode), eng.shifts[0].TDI.Uint64())
	assert.Equal(t, IRLength, eng.shifts[0].Width)
}

func TestIOErrorForgetsState(t *testing.T) {
	eng := &recordingEngine{shiftErrs: []error{&jtag.IOError{Step: "shift tail", Want: 6, Got: 0}}}
	s := NewSession(eng)

	err := s.SetInstruction(JProgram)
	var ioErr *jtag.IOError
	require.ErrorAs(t, err, &ioErr)

	eng.navs = nil
	require.NoError(t, s.SetInstruction(ISCNoop))
	assert.Equal(t, [2]tap.State{tap.StateCaptureDR, tap.StateTestLogicReset}, eng.navs[0])
	assert.Equal(t, tap.StateRunTestIdle, s.State())
}

func TestLoadBitstreamShiftWidth(t *testing.T) {
	eng := &recordingEngine{}
	s := NewSession(eng)
	s.SetSleeper(func(time.Duration) {})

	require.NoError(t, s.LoadBitstream(testBitstream("design.bin", 100, 4)))

	var widths []int
	for _, req := range eng.shifts {
		widths = append(widths, req.Width)
	}
	assert.Contains(t, widths, 800)
	assert.Equal(t, []physic.Frequency{ConfigFrequency}, eng.freqs)
	assert.Equal(t, uint64(initClocks), eng.clocks[0])
}
