package svf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/otload/pkg/bits"
	"github.com/OpenTraceLab/otload/pkg/jtag"
	"github.com/OpenTraceLab/otload/pkg/loader"
	"github.com/OpenTraceLab/otload/pkg/tap"
)

// ErrUnsupported marks SVF features the player does not implement.
var ErrUnsupported = errors.New("svf: unsupported")

// CommandError reports the statement a script stopped at.
type CommandError struct {
	Line    int
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("svf: line %d: %s: %v", e.Line, e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// scanParams carries the TDI and MASK values SVF reuses between scans of the
// same length.
type scanParams struct {
	length int
	tdi    string
	mask   string
}

// Player executes scripts against one session. State set by ENDIR, ENDDR and
// RUNTEST persists across Run calls.
type Player struct {
	s *loader.Session

	endIR    tap.State
	endDR    tap.State
	runState tap.State
	runEnd   tap.State

	sir scanParams
	sdr scanParams
}

// NewPlayer returns a player with the SVF defaults: every end state is
// Run-Test/Idle.
func NewPlayer(s *loader.Session) *Player {
	return &Player{
		s:        s,
		endIR:    tap.StateRunTestIdle,
		endDR:    tap.StateRunTestIdle,
		runState: tap.StateRunTestIdle,
		runEnd:   tap.StateRunTestIdle,
	}
}

// Run plays every command of f in order and stops at the first failure.
func (p *Player) Run(f *File) error {
	for _, c := range f.Commands {
		glog.V(1).Infof("svf: line %d: %s", c.Pos.Line, c.Name())
		if err := p.exec(c); err != nil {
			return &CommandError{Line: c.Pos.Line, Command: c.Name(), Err: err}
		}
	}
	return nil
}

func (p *Player) exec(c *Command) error {
	switch {
	case c.Frequency != nil:
		return p.frequency(c.Frequency)
	case c.State != nil:
		return p.state(c.State)
	case c.End != nil:
		return p.endState(c.End)
	case c.Scan != nil:
		return p.scan(c.Scan)
	case c.RunTest != nil:
		return p.runTest(c.RunTest)
	case c.TRST != nil:
		return p.trst(c.TRST)
	}
	return fmt.Errorf("empty command")
}

func (p *Player) frequency(f *Frequency) error {
	if f.Hz == nil {
		return nil
	}
	if *f.Hz <= 0 {
		return fmt.Errorf("frequency %g Hz", *f.Hz)
	}
	return p.s.SetFrequency(physic.Frequency(*f.Hz * float64(physic.Hertz)))
}

func (p *Player) state(c *StateCmd) error {
	for _, name := range c.Path {
		st, err := tap.ParseState(name)
		if err != nil {
			return err
		}
		if st == tap.StateTestLogicReset {
			err = p.s.ResetState()
		} else {
			err = p.s.SetState(st)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Player) endState(c *EndState) error {
	st, err := stableState(c.State)
	if err != nil {
		return err
	}
	if strings.EqualFold(c.Register, "ENDIR") {
		p.endIR = st
	} else {
		p.endDR = st
	}
	return nil
}

func (p *Player) scan(c *Scan) error {
	var params *scanParams
	switch strings.ToUpper(c.Kind) {
	case "SIR":
		params = &p.sir
	case "SDR":
		params = &p.sdr
	default:
		// A single device on the chain needs no header or trailer bits.
		if c.Length != 0 {
			return fmt.Errorf("%w: %s with %d bits", ErrUnsupported, strings.ToUpper(c.Kind), c.Length)
		}
		return nil
	}
	if c.Length < 0 {
		return fmt.Errorf("length %d", c.Length)
	}

	if c.Length != params.length {
		*params = scanParams{length: c.Length}
	}
	var tdo string
	for _, prm := range c.Params {
		v := pad(prm.Digits(), c.Length)
		switch strings.ToUpper(prm.Name) {
		case "TDI":
			params.tdi = v
		case "TDO":
			tdo = v
		case "MASK":
			params.mask = v
		}
	}

	end := p.endDR
	if params == &p.sir {
		end = p.endIR
	}
	if c.Length == 0 {
		return p.s.SetState(end)
	}
	if params.tdi == "" {
		return fmt.Errorf("no TDI for %d bit scan", c.Length)
	}
	mask := ""
	if tdo != "" {
		mask = params.mask
	}
	req, err := jtag.NewShiftRequest(c.Length, params.tdi, tdo, mask)
	if err != nil {
		return err
	}
	if params == &p.sir {
		_, err = p.s.ScanIR(req, end)
	} else {
		_, err = p.s.ScanDR(req, end)
	}
	return err
}

func (p *Player) runTest(c *RunTest) error {
	if c.RunState != "" {
		st, err := stableState(c.RunState)
		if err != nil {
			return err
		}
		p.runState = st
		// Without ENDSTATE the end state follows the run state.
		p.runEnd = st
	}
	if c.EndState != "" {
		st, err := stableState(c.EndState)
		if err != nil {
			return err
		}
		p.runEnd = st
	}
	if c.Clocks == nil && c.MinTime == nil {
		return fmt.Errorf("neither clock count nor time given")
	}

	if err := p.s.SetState(p.runState); err != nil {
		return err
	}
	if c.Clocks != nil {
		if !strings.EqualFold(c.Clocks.Source, "TCK") {
			return fmt.Errorf("%w: %s clock", ErrUnsupported, strings.ToUpper(c.Clocks.Source))
		}
		if c.Clocks.Count < 0 {
			return fmt.Errorf("clock count %g", c.Clocks.Count)
		}
		if n := uint64(c.Clocks.Count); n > 0 {
			if err := p.s.SendClocks(n); err != nil {
				return err
			}
		}
	}
	if c.MinTime != nil && *c.MinTime > 0 {
		p.s.Sleep(time.Duration(*c.MinTime * float64(time.Second)))
	}
	return p.s.SetState(p.runEnd)
}

func (p *Player) trst(c *TRST) error {
	switch strings.ToUpper(c.Mode) {
	case "OFF", "ABSENT", "Z":
		return nil
	case "ON":
		return fmt.Errorf("%w: adapter has no TRST line", ErrUnsupported)
	}
	return fmt.Errorf("TRST mode %q", c.Mode)
}

// stableState accepts only the states SVF allows a command to end in.
func stableState(name string) (tap.State, error) {
	st, err := tap.ParseState(name)
	if err != nil {
		return st, err
	}
	switch st {
	case tap.StateTestLogicReset, tap.StateRunTestIdle, tap.StatePauseDR, tap.StatePauseIR:
		return st, nil
	}
	return st, fmt.Errorf("%s is not a stable state", st.SVFName())
}

// pad left-fills SVF hex, which may drop leading zeros, to the digits a
// width-bit scan needs.
func pad(digits string, width int) string {
	if n := bits.HexLen(width); len(digits) < n {
		return strings.Repeat("0", n-len(digits)) + digits
	}
	return digits
}
