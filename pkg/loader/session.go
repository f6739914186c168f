// Package loader sequences the Xilinx 7-series JTAG configuration protocol:
// loading bitstreams into configuration memory and driving a bridge design
// that programs the board's SPI flash.
package loader

import (
	"errors"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/otload/pkg/bits"
	"github.com/OpenTraceLab/otload/pkg/jtag"
	"github.com/OpenTraceLab/otload/pkg/tap"
)

// Engine is the part of *jtag.Engine a Session drives.
type Engine interface {
	SetFrequency(f physic.Frequency) error
	Navigate(from, to tap.State) error
	Shift(req jtag.ShiftRequest) (bits.Vector, error)
	SendClocks(n uint64) error
}

// Sleeper waits out device timing requirements.
type Sleeper func(time.Duration)

// Session tracks the TAP state of one device and sequences operations on it.
// Sessions are not safe for concurrent use, and two sessions sharing one TAP
// will disagree about its state.
type Session struct {
	eng     Engine
	current tap.State
	known   bool
	sleep   Sleeper
}

// NewSession assumes nothing about the TAP; the first operation resets it.
func NewSession(eng Engine) *Session {
	return &Session{
		eng:     eng,
		current: tap.StateTestLogicReset,
		sleep:   time.Sleep,
	}
}

// SetSleeper replaces time.Sleep, mainly for tests.
func (s *Session) SetSleeper(fn Sleeper) {
	s.sleep = fn
}

// State returns the TAP state the session believes the device is in.
func (s *Session) State() tap.State {
	return s.current
}

// SetFrequency changes TCK.
func (s *Session) SetFrequency(f physic.Frequency) error {
	return s.eng.SetFrequency(f)
}

// SendClocks runs n TCK cycles in the current state.
func (s *Session) SendClocks(n uint64) error {
	if err := s.ensureKnown(); err != nil {
		return err
	}
	return s.eng.SendClocks(n)
}

// Sleep waits d using the session's Sleeper.
func (s *Session) Sleep(d time.Duration) {
	s.sleep(d)
}

// SetState moves the TAP to the given state.
func (s *Session) SetState(to tap.State) error {
	if err := s.ensureKnown(); err != nil {
		return err
	}
	return s.move(to)
}

// ResetState forces Test-Logic-Reset with five TMS=1 clocks, which works from
// any state.
func (s *Session) ResetState() error {
	s.known = false
	if err := s.eng.Navigate(tap.StateCaptureDR, tap.StateTestLogicReset); err != nil {
		return err
	}
	s.current = tap.StateTestLogicReset
	s.known = true
	return nil
}

func (s *Session) ensureKnown() error {
	if s.known {
		return nil
	}
	glog.V(1).Info("loader: TAP state unknown, resetting")
	return s.ResetState()
}

func (s *Session) move(to tap.State) error {
	if err := s.eng.Navigate(s.current, to); err != nil {
		s.known = false
		return err
	}
	s.current = to
	return nil
}

// SetInstruction loads inst into the IR and returns to Run-Test/Idle.
func (s *Session) SetInstruction(inst Instruction) error {
	glog.V(1).Infof("loader: IR <- %s", inst)
	_, err := s.ShiftIR(jtag.ShiftVector(bits.FromUint(uint64(inst), IRLength)))
	return err
}

// ShiftIR scans req through the IR and ends in Run-Test/Idle.
func (s *Session) ShiftIR(req jtag.ShiftRequest) (bits.Vector, error) {
	return s.ScanIR(req, tap.StateRunTestIdle)
}

// ShiftDR scans req through the selected DR and ends in Run-Test/Idle.
func (s *Session) ShiftDR(req jtag.ShiftRequest) (bits.Vector, error) {
	return s.ScanDR(req, tap.StateRunTestIdle)
}

// ScanIR scans req through the IR and then moves to end.
func (s *Session) ScanIR(req jtag.ShiftRequest, end tap.State) (bits.Vector, error) {
	return s.scan(tap.StateShiftIR, tap.StateExit1IR, req, end)
}

// ScanDR scans req through the selected DR and then moves to end.
func (s *Session) ScanDR(req jtag.ShiftRequest, end tap.State) (bits.Vector, error) {
	return s.scan(tap.StateShiftDR, tap.StateExit1DR, req, end)
}

func (s *Session) scan(shift, exit tap.State, req jtag.ShiftRequest, end tap.State) (bits.Vector, error) {
	if err := req.Validate(); err != nil {
		return bits.Vector{}, err
	}
	if err := s.ensureKnown(); err != nil {
		return bits.Vector{}, err
	}
	if err := s.move(shift); err != nil {
		return bits.Vector{}, err
	}
	tdo, err := s.eng.Shift(req)
	if err != nil {
		var verr *jtag.VerifyError
		if errors.As(err, &verr) {
			// The scan itself completed.
			s.current = exit
		} else {
			s.known = false
		}
		return tdo, err
	}
	s.current = exit
	if err := s.move(end); err != nil {
		return tdo, err
	}
	return tdo, nil
}
