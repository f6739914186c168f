package jtag

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidShift rejects a shift request before any transport I/O.
	ErrInvalidShift = errors.New("jtag: invalid shift request")
	// ErrNotInitialized is returned when the engine is used before Initialize.
	ErrNotInitialized = errors.New("jtag: engine not initialized")
	// ErrClosed is returned when the engine is used after Close.
	ErrClosed = errors.New("jtag: engine closed")
)

// IOError reports a failed or partial transport transfer.
type IOError struct {
	Step string
	Want int
	Got  int
	Err  error
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jtag: %s: transferred %d of %d bytes: %v", e.Step, e.Got, e.Want, e.Err)
	}
	return fmt.Sprintf("jtag: %s: transferred %d of %d bytes", e.Step, e.Got, e.Want)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// VerifyError reports captured TDO that does not match the expected value
// under the mask. All three fields are hex strings of the same length.
type VerifyError struct {
	Actual   string
	Expected string
	Mask     string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("jtag: TDO mismatch: got %s, want %s (mask %s)", e.Actual, e.Expected, e.Mask)
}

func invalidShift(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidShift, fmt.Sprintf(format, args...))
}

func errUnexpected(resp []byte) error {
	return fmt.Errorf("unexpected response % x", resp)
}
