package svf

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// SVFLexer tokenises Serial Vector Format scripts. Hex data is one token
// including its parentheses, since it may run over several lines.
var SVFLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `(!|//)[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Hex", Pattern: `\([0-9A-Fa-f\s]*\)`},
	{Name: "Number", Pattern: `[0-9]+(\.[0-9]*)?([Ee][-+]?[0-9]+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Semicolon", Pattern: `;`},
})

// File is a parsed SVF script.
type File struct {
	Commands []*Command `@@*`
}

// Command is one statement. Exactly one field is set.
type Command struct {
	Pos lexer.Position

	Frequency *Frequency `  @@`
	State     *StateCmd  `| @@`
	End       *EndState  `| @@`
	Scan      *Scan      `| @@`
	RunTest   *RunTest   `| @@`
	TRST      *TRST      `| @@`
}

// Name returns the statement keyword, for diagnostics.
func (c *Command) Name() string {
	switch {
	case c.Frequency != nil:
		return "FREQUENCY"
	case c.State != nil:
		return "STATE"
	case c.End != nil:
		return strings.ToUpper(c.End.Register)
	case c.Scan != nil:
		return strings.ToUpper(c.Scan.Kind)
	case c.RunTest != nil:
		return "RUNTEST"
	case c.TRST != nil:
		return "TRST"
	}
	return "?"
}

// Frequency sets TCK; without a value the current rate is kept.
type Frequency struct {
	Hz *float64 `"FREQUENCY" ( @Number "HZ" )? ";"`
}

// StateCmd walks through the listed stable states in order.
type StateCmd struct {
	Path []string `"STATE" @Ident+ ";"`
}

// EndState sets where later SIR or SDR scans finish.
type EndState struct {
	Register string `@( "ENDIR" | "ENDDR" )`
	State    string `@Ident ";"`
}

// Scan is SIR, SDR or one of the header and trailer commands.
type Scan struct {
	Kind   string   `@( "SIR" | "SDR" | "HIR" | "HDR" | "TIR" | "TDR" )`
	Length int      `@Number`
	Params []*Param `@@* ";"`
}

// Param is a TDI, TDO, MASK or SMASK value.
type Param struct {
	Name  string `@( "TDI" | "TDO" | "MASK" | "SMASK" )`
	Value string `@Hex`
}

// Digits returns the hex digits without parentheses or whitespace.
func (p *Param) Digits() string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, p.Value)
}

// RunTest idles the TAP for a number of clocks, a minimum time, or both.
type RunTest struct {
	RunState string   `"RUNTEST" @Ident?`
	Clocks   *Clocks  `@@?`
	MinTime  *float64 `( @Number "SEC" )?`
	MaxTime  *float64 `( "MAXIMUM" @Number "SEC" )?`
	EndState string   `( "ENDSTATE" @Ident )? ";"`
}

// Clocks is the run_count part of RUNTEST.
type Clocks struct {
	Count  float64 `@Number`
	Source string  `@( "TCK" | "SCK" )`
}

// TRST drives the optional test reset line.
type TRST struct {
	Mode string `"TRST" @Ident ";"`
}
