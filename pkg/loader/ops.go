package loader

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/otload/pkg/jtag"
	"github.com/OpenTraceLab/otload/pkg/tap"
)

// Protocol timing and constants for the 7-series configuration sequence.
const (
	ConfigFrequency = 10 * physic.MegaHertz
	BridgeFrequency = 1500 * physic.KiloHertz

	InitDelay       = 100 * time.Millisecond
	EraseDelay      = 10 * time.Second
	FlashSetupDelay = 100 * time.Millisecond

	initClocks    = 10000
	startupClocks = 100000
	jstartClocks  = 100
	resetClocks   = 5

	// ExpectedIDCode is the XC7A35T on the Alchitry Au; the version nibble is
	// masked off.
	ExpectedIDCode = 0x0362D093
)

var (
	// IR capture with INIT_COMPLETE set and DONE clear.
	checkInit = jtag.MustShiftRequest(IRLength, "14", "11", "31")
	// IR capture with INIT_COMPLETE still set after startup.
	checkDone = jtag.MustShiftRequest(IRLength, "09", "31", "11")

	// Sync word followed by a type 1 read of the STAT register.
	statusReadPacket = jtag.MustShiftRequest(160, "0000000400000004800700140000000466aa9955", "", "")
	statusCheck      = jtag.MustShiftRequest(32, "00000000", "3f5e0d40", "08000000")

	idcodeCheck = jtag.MustShiftRequest(32, "00000000", fmt.Sprintf("%08X", ExpectedIDCode), "0FFFFFFF")

	// A single 0 bit on USER1 tells the bridge to erase the flash.
	bridgeErase = jtag.MustShiftRequest(1, "0", "", "")
)

type step struct {
	name string
	fn   func() error
}

func (s *Session) run(op string, steps []step) error {
	for _, st := range steps {
		glog.V(1).Infof("loader: %s: %s", op, st.name)
		if err := st.fn(); err != nil {
			return &StepError{Op: op, Step: st.name, Err: err}
		}
	}
	return nil
}

func (s *Session) instruction(inst Instruction) step {
	return step{inst.String(), func() error { return s.SetInstruction(inst) }}
}

func (s *Session) shiftIR(name string, req jtag.ShiftRequest) step {
	return step{name, func() error { _, err := s.ShiftIR(req); return err }}
}

func (s *Session) shiftDR(name string, req jtag.ShiftRequest) step {
	return step{name, func() error { _, err := s.ShiftDR(req); return err }}
}

func (s *Session) clocks(n uint64) step {
	return step{fmt.Sprintf("%d clocks", n), func() error { return s.SendClocks(n) }}
}

func (s *Session) wait(d time.Duration) step {
	return step{fmt.Sprintf("wait %s", d), func() error { s.sleep(d); return nil }}
}

func (s *Session) frequency(f physic.Frequency) step {
	return step{fmt.Sprintf("set frequency %s", f), func() error { return s.SetFrequency(f) }}
}

func (s *Session) reset() step {
	return step{"reset", s.ResetState}
}

func (s *Session) idle() step {
	return step{"idle", func() error { return s.SetState(tap.StateRunTestIdle) }}
}

// LoadBitstream clears configuration memory, shifts bs into the configuration
// port and starts the design, checking INIT and the status register.
func (s *Session) LoadBitstream(bs *Bitstream) error {
	if bs == nil || bs.Len() == 0 {
		return &StepError{Op: "load", Step: "bitstream", Err: fmt.Errorf("empty bitstream")}
	}
	if !bs.HasSyncWord() {
		glog.Warningf("loader: %s has no sync word, device will likely reject it", bs.Name)
	}
	payload := jtag.ShiftVector(bs.Vector(TransformConfig))
	return s.run("load", []step{
		s.frequency(ConfigFrequency),
		s.reset(),
		s.idle(),
		s.instruction(JProgram),
		s.instruction(ISCNoop),
		s.wait(InitDelay),
		s.clocks(initClocks),
		s.shiftIR("check init", checkInit),
		s.instruction(CfgIn),
		s.shiftDR("shift bitstream", payload),
		s.idle(),
		s.clocks(startupClocks),
		s.instruction(JStart),
		s.idle(),
		s.clocks(jstartClocks),
		s.shiftIR("check done", checkDone),
		s.reset(),
		s.clocks(resetClocks),
		s.instruction(CfgIn),
		s.shiftDR("request status", statusReadPacket),
		s.instruction(CfgOut),
		s.shiftDR("check status", statusCheck),
		s.reset(),
		s.clocks(resetClocks),
	})
}

func (s *Session) loadBridge(bridge *Bitstream) step {
	return step{"load bridge", func() error { return s.LoadBitstream(bridge) }}
}

// EraseFlash loads the bridge design and has it erase the flash.
func (s *Session) EraseFlash(bridge *Bitstream) error {
	return s.run("erase", []step{
		s.loadBridge(bridge),
		s.frequency(BridgeFrequency),
		s.instruction(User1),
		s.shiftDR("erase command", bridgeErase),
		s.wait(EraseDelay),
		s.instruction(JProgram),
		s.reset(),
	})
}

// WriteFlash loads the bridge design, erases the flash and streams bin to it.
// The FPGA is cleared afterwards so it boots from the new flash contents.
func (s *Session) WriteFlash(bin, bridge *Bitstream) error {
	if bin == nil || bin.Len() == 0 {
		return &StepError{Op: "flash", Step: "bitstream", Err: fmt.Errorf("empty bitstream")}
	}
	payload := jtag.ShiftVector(bin.Vector(TransformPassThrough))
	return s.run("flash", []step{
		s.loadBridge(bridge),
		s.frequency(BridgeFrequency),
		s.instruction(User1),
		s.shiftDR("erase command", bridgeErase),
		s.wait(FlashSetupDelay),
		s.instruction(User2),
		s.shiftDR("write flash", payload),
		s.reset(),
		s.wait(FlashSetupDelay),
		s.instruction(JProgram),
		s.reset(),
	})
}

// WriteRAM configures the FPGA directly; the design is lost on power cycle.
func (s *Session) WriteRAM(bin *Bitstream) error {
	return s.run("ram", []step{
		{"load bitstream", func() error { return s.LoadBitstream(bin) }},
		s.reset(),
	})
}

// CheckIDCode verifies the device is the XC7A35T the Au carries.
func (s *Session) CheckIDCode() error {
	return s.run("idcode", []step{
		s.instruction(IDCode),
		s.shiftDR("check idcode", idcodeCheck),
	})
}

// ReadIDCode returns the raw IDCODE without checking it.
func (s *Session) ReadIDCode() (uint32, error) {
	req := jtag.MustShiftRequest(32, "00000000", "", "")
	req.Capture = true
	var id uint32
	err := s.run("idcode", []step{
		s.instruction(IDCode),
		{"read idcode", func() error {
			tdo, err := s.ShiftDR(req)
			id = uint32(tdo.Uint64())
			return err
		}},
	})
	return id, err
}
