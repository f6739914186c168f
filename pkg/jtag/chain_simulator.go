package jtag

import (
	"github.com/OpenTraceLab/otload/pkg/bits"
	"github.com/OpenTraceLab/otload/pkg/tap"
)

// DataRegister models the data register an instruction selects.
type DataRegister struct {
	// Capture returns the value parallel-loaded in Capture-DR; its width is
	// the register length. A nil Capture or a zero-width value makes the
	// register a sink that reads back zeros.
	Capture func() bits.Vector

	// Update receives every TDI bit shifted during the scan, in clock order.
	Update func(shifted bits.Vector)
}

// SimDevice is a single TAP with an instruction register and a table of data
// registers. Instructions without an entry behave as BYPASS.
type SimDevice struct {
	IRLength int

	// IRCapture is loaded in Capture-IR. Nil captures the mandatory 0b01.
	IRCapture func() uint64

	// ResetInstruction is selected in Test-Logic-Reset.
	ResetInstruction uint64

	Registers map[uint64]DataRegister

	// OnInstruction is called in Update-IR with the new instruction.
	OnInstruction func(ir uint64)

	tap     *tap.StateMachine
	ir      uint64
	reg     []bool
	shifted bits.Vector
}

// NewSimDevice returns a device in Test-Logic-Reset.
func NewSimDevice(irLength int, resetInstruction uint64) *SimDevice {
	return &SimDevice{
		IRLength:         irLength,
		ResetInstruction: resetInstruction,
		Registers:        make(map[uint64]DataRegister),
		tap:              tap.NewStateMachine(),
		ir:               resetInstruction,
	}
}

// State reports the device's TAP state.
func (d *SimDevice) State() tap.State {
	return d.tap.State()
}

// Instruction reports the instruction currently selected.
func (d *SimDevice) Instruction() uint64 {
	return d.ir
}

// Clock implements SimTarget.
func (d *SimDevice) Clock(tms, tdi bool) bool {
	tdo := false
	switch d.tap.State() {
	case tap.StateCaptureIR:
		var v uint64 = 0x01
		if d.IRCapture != nil {
			v = d.IRCapture()
		}
		d.load(bits.FromUint(v, d.IRLength))
	case tap.StateCaptureDR:
		var v bits.Vector
		if r, ok := d.Registers[d.ir]; ok {
			if r.Capture != nil {
				v = r.Capture()
			}
		} else {
			v = bits.New(1)
		}
		d.load(v)
	case tap.StateShiftIR, tap.StateShiftDR:
		tdo = d.shift(tdi)
	}

	switch d.tap.Clock(tms) {
	case tap.StateTestLogicReset:
		d.ir = d.ResetInstruction
	case tap.StateUpdateIR:
		d.ir = d.registerValue()
		if d.OnInstruction != nil {
			d.OnInstruction(d.ir)
		}
	case tap.StateUpdateDR:
		if r, ok := d.Registers[d.ir]; ok && r.Update != nil {
			r.Update(d.shifted)
		}
	}
	return tdo
}

func (d *SimDevice) load(v bits.Vector) {
	d.reg = d.reg[:0]
	for i := 0; i < v.Len(); i++ {
		d.reg = append(d.reg, v.Bit(i))
	}
	d.shifted = bits.Vector{}
}

// shift moves the register one place towards TDO.
func (d *SimDevice) shift(tdi bool) bool {
	d.shifted.Append(tdi)
	if len(d.reg) == 0 {
		return false
	}
	out := d.reg[0]
	copy(d.reg, d.reg[1:])
	d.reg[len(d.reg)-1] = tdi
	return out
}

func (d *SimDevice) registerValue() uint64 {
	var v uint64
	for i, b := range d.reg {
		if b && i < 64 {
			v |= 1 << uint(i)
		}
	}
	return v
}
