package tap

import (
	"fmt"
	"strings"
	"sync"
)

// State represents one of the 16 defined IEEE 1149.1 TAP controller states.
type State uint8

const (
	StateTestLogicReset State = iota
	StateRunTestIdle
	StateSelectDRScan
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIRScan
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR

	// NumStates is the number of TAP states.
	NumStates = 16
)

var stateNames = [NumStates]string{
	StateTestLogicReset: "TestLogicReset",
	StateRunTestIdle:    "RunTestIdle",
	StateSelectDRScan:   "SelectDRScan",
	StateCaptureDR:      "CaptureDR",
	StateShiftDR:        "ShiftDR",
	StateExit1DR:        "Exit1DR",
	StatePauseDR:        "PauseDR",
	StateExit2DR:        "Exit2DR",
	StateUpdateDR:       "UpdateDR",
	StateSelectIRScan:   "SelectIRScan",
	StateCaptureIR:      "CaptureIR",
	StateShiftIR:        "ShiftIR",
	StateExit1IR:        "Exit1IR",
	StatePauseIR:        "PauseIR",
	StateExit2IR:        "Exit2IR",
	StateUpdateIR:       "UpdateIR",
}

// svfNames are the state names used by SVF files.
var svfNames = [NumStates]string{
	StateTestLogicReset: "RESET",
	StateRunTestIdle:    "IDLE",
	StateSelectDRScan:   "DRSELECT",
	StateCaptureDR:      "DRCAPTURE",
	StateShiftDR:        "DRSHIFT",
	StateExit1DR:        "DREXIT1",
	StatePauseDR:        "DRPAUSE",
	StateExit2DR:        "DREXIT2",
	StateUpdateDR:       "DRUPDATE",
	StateSelectIRScan:   "IRSELECT",
	StateCaptureIR:      "IRCAPTURE",
	StateShiftIR:        "IRSHIFT",
	StateExit1IR:        "IREXIT1",
	StatePauseIR:        "IRPAUSE",
	StateExit2IR:        "IREXIT2",
	StateUpdateIR:       "IRUPDATE",
}

func (s State) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// SVFName returns the SVF spelling of the state (e.g. "DRSHIFT").
func (s State) SVFName() string {
	if s.Valid() {
		return svfNames[s]
	}
	return s.String()
}

// Valid reports whether s is one of the 16 TAP states.
func (s State) Valid() bool {
	return s < NumStates
}

// ParseState accepts either the SVF name ("IRSHIFT") or the Go name
// ("ShiftIR"), case-insensitively.
func ParseState(name string) (State, error) {
	for i := 0; i < NumStates; i++ {
		if strings.EqualFold(name, svfNames[i]) || strings.EqualFold(name, stateNames[i]) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("tap: unknown state %q", name)
}

// transitions is indexed by [state][tms].
var transitions = [NumStates][2]State{
	StateTestLogicReset: {StateRunTestIdle, StateTestLogicReset},
	StateRunTestIdle:    {StateRunTestIdle, StateSelectDRScan},
	StateSelectDRScan:   {StateCaptureDR, StateSelectIRScan},
	StateCaptureDR:      {StateShiftDR, StateExit1DR},
	StateShiftDR:        {StateShiftDR, StateExit1DR},
	StateExit1DR:        {StatePauseDR, StateUpdateDR},
	StatePauseDR:        {StatePauseDR, StateExit2DR},
	StateExit2DR:        {StateShiftDR, StateUpdateDR},
	StateUpdateDR:       {StateRunTestIdle, StateSelectDRScan},
	StateSelectIRScan:   {StateCaptureIR, StateTestLogicReset},
	StateCaptureIR:      {StateShiftIR, StateExit1IR},
	StateShiftIR:        {StateShiftIR, StateExit1IR},
	StateExit1IR:        {StatePauseIR, StateUpdateIR},
	StatePauseIR:        {StatePauseIR, StateExit2IR},
	StateExit2IR:        {StateShiftIR, StateUpdateIR},
	StateUpdateIR:       {StateRunTestIdle, StateSelectDRScan},
}

// NextState returns the next TAP state after clocking TCK with the provided TMS
// value. It panics if an invalid state is supplied, which should never happen
// when interacting through the exported API.
func NextState(current State, tms bool) State {
	if !current.Valid() {
		panic(fmt.Sprintf("tap: unhandled state %d", current))
	}
	if tms {
		return transitions[current][1]
	}
	return transitions[current][0]
}

// Path is the TMS sequence that moves the TAP between two states. Bit i of TMS
// is presented on clock i, so the LSB is the first move.
type Path struct {
	Moves  int
	TMS    uint32
	States []State
}

// Bit returns the TMS value for move i.
func (p Path) Bit(i int) bool {
	return p.TMS&(1<<uint(i)) != 0
}

// Replay clocks the TMS bits of p starting from "from" and returns the state
// reached.
func Replay(from State, p Path) State {
	s := from
	for i := 0; i < p.Moves; i++ {
		s = NextState(s, p.Bit(i))
	}
	return s
}

var (
	pathOnce  sync.Once
	pathTable [NumStates][NumStates]Path
)

// ShortestPath returns the shortest TMS sequence from one state to another.
// Ties are broken by exploring TMS=0 before TMS=1. All 256 pairs are computed
// once on first use.
func ShortestPath(from, to State) (Path, error) {
	if !from.Valid() {
		return Path{}, fmt.Errorf("tap: invalid start state %d", from)
	}
	if !to.Valid() {
		return Path{}, fmt.Errorf("tap: invalid target state %d", to)
	}
	pathOnce.Do(func() {
		for f := State(0); f < NumStates; f++ {
			for t := State(0); t < NumStates; t++ {
				pathTable[f][t] = computePath(f, t)
			}
		}
	})
	p := pathTable[from][to]
	p.States = append([]State(nil), p.States...)
	return p, nil
}

// computePath uses BFS across the TAP state diagram. The graph is strongly
// connected so a path always exists.
func computePath(from, to State) Path {
	type node struct {
		state State
		path  Path
	}

	queue := []node{{state: from, path: Path{States: []State{from}}}}
	var visited [NumStates]bool
	visited[from] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.state == to {
			return current.path
		}

		for _, bit := range [2]bool{false, true} {
			next := NextState(current.state, bit)
			if visited[next] {
				continue
			}
			visited[next] = true

			p := Path{
				Moves:  current.path.Moves + 1,
				TMS:    current.path.TMS,
				States: append(append([]State{}, current.path.States...), next),
			}
			if bit {
				p.TMS |= 1 << uint(current.path.Moves)
			}
			queue = append(queue, node{state: next, path: p})
		}
	}

	panic(fmt.Sprintf("tap: no path from %s to %s", from, to))
}

// StateMachine tracks the TAP controller state locally. It does not perform any
// I/O; instead it produces the sequences of TMS bits needed so a hardware
// adapter can be instructed separately.
type StateMachine struct {
	state State
}

// NewStateMachine creates a TAP state machine initialized to Test-Logic-Reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateTestLogicReset}
}

// State reports the current TAP state tracked by the machine.
func (m *StateMachine) State() State {
	return m.state
}

// Clock advances the machine one TCK cycle with the provided TMS bit and
// returns the new state.
func (m *StateMachine) Clock(tms bool) State {
	m.state = NextState(m.state, tms)
	return m.state
}

// Reset applies the IEEE recommendation of clocking five consecutive TMS=1
// cycles and returns the resulting path.
func (m *StateMachine) Reset() Path {
	p := Path{Moves: 5, TMS: 0x1f, States: []State{m.state}}
	for i := 0; i < 5; i++ {
		p.States = append(p.States, m.Clock(true))
	}
	return p
}

// GoTo computes the minimal sequence of TMS values needed to reach the target
// state from the current state. It updates the machine as a side effect.
func (m *StateMachine) GoTo(target State) (Path, error) {
	p, err := ShortestPath(m.state, target)
	if err != nil {
		return Path{}, err
	}
	m.state = Replay(m.state, p)
	return p, nil
}
