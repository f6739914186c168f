package jtag

import (
	"fmt"

	"github.com/OpenTraceLab/otload/pkg/bits"
)

// ShiftRequest is one scan through Shift-IR or Shift-DR. The last TDI bit is
// clocked with TMS=1, so the TAP leaves the shift state on it.
type ShiftRequest struct {
	Width int
	TDI   bits.Vector

	// Expect, when set, is compared against captured TDO under Mask (all
	// bits when Mask is nil).
	Expect *bits.Vector
	Mask   *bits.Vector

	// Capture reads TDO back even when nothing is compared.
	Capture bool
}

// NewShiftRequest builds a request from hex strings. Each string contributes
// its least significant ceil(width/4) digits. tdo and mask may be empty.
func NewShiftRequest(width int, tdi, tdo, mask string) (ShiftRequest, error) {
	if width < 1 {
		return ShiftRequest{}, invalidShift("width %d", width)
	}
	req := ShiftRequest{Width: width}
	v, err := bits.ParseHex(tdi, width)
	if err != nil {
		return ShiftRequest{}, fmt.Errorf("%w: tdi: %w", ErrInvalidShift, err)
	}
	req.TDI = v
	if tdo != "" {
		e, err := bits.ParseHex(tdo, width)
		if err != nil {
			return ShiftRequest{}, fmt.Errorf("%w: tdo: %w", ErrInvalidShift, err)
		}
		req.Expect = &e
	}
	if mask != "" {
		if tdo == "" {
			return ShiftRequest{}, invalidShift("mask without expected tdo")
		}
		m, err := bits.ParseHex(mask, width)
		if err != nil {
			return ShiftRequest{}, fmt.Errorf("%w: mask: %w", ErrInvalidShift, err)
		}
		req.Mask = &m
	}
	return req, nil
}

// MustShiftRequest is NewShiftRequest for protocol constants.
func MustShiftRequest(width int, tdi, tdo, mask string) ShiftRequest {
	req, err := NewShiftRequest(width, tdi, tdo, mask)
	if err != nil {
		panic(err)
	}
	return req
}

// ShiftVector shifts v with no TDO check.
func ShiftVector(v bits.Vector) ShiftRequest {
	return ShiftRequest{Width: v.Len(), TDI: v}
}

// Validate checks widths before any I/O is attempted.
func (r ShiftRequest) Validate() error {
	if r.Width < 1 {
		return invalidShift("width %d", r.Width)
	}
	if r.TDI.Len() != r.Width {
		return invalidShift("tdi has %d bits, want %d", r.TDI.Len(), r.Width)
	}
	if r.Expect != nil && r.Expect.Len() != r.Width {
		return invalidShift("tdo has %d bits, want %d", r.Expect.Len(), r.Width)
	}
	if r.Mask != nil {
		if r.Expect == nil {
			return invalidShift("mask without expected tdo")
		}
		if r.Mask.Len() != r.Width {
			return invalidShift("mask has %d bits, want %d", r.Mask.Len(), r.Width)
		}
	}
	return nil
}

func (r ShiftRequest) reads() bool {
	return r.Capture || r.Expect != nil
}
