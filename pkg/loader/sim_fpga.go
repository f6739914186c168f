package loader

import (
	"github.com/OpenTraceLab/otload/pkg/bits"
	"github.com/OpenTraceLab/otload/pkg/jtag"
)

// IR capture bits.
const (
	irCaptureInit = 0x11 // fixed 01 plus INIT_COMPLETE
	irCaptureDone = 0x20
)

// Status register as read back through CFG_OUT; bit 27 is the DONE pin
// state.
const (
	simStatus     = 0x3F5E0D40
	simStatusDone = 0x08000000
)

// SimFPGA models enough of a 7-series device and the flash bridge design for
// the loader to run end to end without hardware. Attach it to a
// jtag.SimTransport.
type SimFPGA struct {
	*jtag.SimDevice

	IDCode uint32

	// RejectConfig keeps DONE low whatever is loaded.
	RejectConfig bool

	Done bool

	// Loaded holds every bitstream shifted through CFG_IN after a JPROGRAM,
	// in file byte order.
	Loaded [][]byte
	// Flash is the image the bridge last wrote.
	Flash []byte

	Programs int
	Erases   int

	configured bool
	erased     bool
}

// NewSimFPGA returns an unconfigured XC7A35T.
func NewSimFPGA() *SimFPGA {
	f := &SimFPGA{
		SimDevice: jtag.NewSimDevice(IRLength, uint64(IDCode)),
		IDCode:    ExpectedIDCode,
	}
	f.IRCapture = func() uint64 {
		if f.Done {
			return irCaptureInit | irCaptureDone
		}
		return irCaptureInit
	}
	f.OnInstruction = f.instruction
	f.Registers[uint64(IDCode)] = jtag.DataRegister{
		Capture: func() bits.Vector { return bits.FromUint(uint64(f.IDCode), 32) },
	}
	f.Registers[uint64(CfgIn)] = jtag.DataRegister{Update: f.configIn}
	f.Registers[uint64(CfgOut)] = jtag.DataRegister{
		Capture: func() bits.Vector {
			st := uint64(simStatus &^ simStatusDone)
			if f.Done {
				st = simStatus
			}
			return bits.FromUint(st, 32)
		},
	}
	f.Registers[uint64(User1)] = jtag.DataRegister{
		Capture: func() bits.Vector { return bits.New(1) },
		Update:  f.bridgeCommand,
	}
	f.Registers[uint64(User2)] = jtag.DataRegister{Update: f.bridgeData}
	return f
}

func (f *SimFPGA) instruction(ir uint64) {
	switch Instruction(ir) {
	case JProgram:
		f.Programs++
		f.Done = false
		f.configured = false
		f.erased = false
	case JStart:
		if f.configured && !f.RejectConfig {
			f.Done = true
		}
	}
}

func (f *SimFPGA) configIn(shifted bits.Vector) {
	if f.configured || f.Done || shifted.Len() == 0 || shifted.Len()%8 != 0 {
		return
	}
	data := append([]byte(nil), shifted.Bytes()...)
	for i := range data {
		data[i] = bits.ReverseByte(data[i])
	}
	f.Loaded = append(f.Loaded, data)
	f.configured = true
}

// bridgeCommand handles USER1 scans; only the bridge design listens.
func (f *SimFPGA) bridgeCommand(shifted bits.Vector) {
	if !f.Done || shifted.Len() != 1 || shifted.Bit(0) {
		return
	}
	f.Erases++
	f.Flash = nil
	f.erased = true
}

func (f *SimFPGA) bridgeData(shifted bits.Vector) {
	if !f.Done || !f.erased {
		return
	}
	f.Flash = append([]byte(nil), shifted.Bytes()...)
}
