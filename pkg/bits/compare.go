package bits

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLengthMismatch is returned by MatchMasked when the strings being compared
// have different digit counts.
var ErrLengthMismatch = errors.New("bits: length mismatch")

// MismatchError locates the first differing nibble, counted from the least
// significant digit.
type MismatchError struct {
	Digit int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("bits: mismatch at digit %d", e.Digit)
}

// MatchMasked compares two hex strings digit by digit from the least
// significant end, ignoring bits that are clear in mask. An empty mask
// compares every bit. Length differences are reported before the mask is
// looked at.
func MatchMasked(actual, expected, mask string) error {
	if len(actual) != len(expected) {
		return fmt.Errorf("%w: actual %d digits, expected %d", ErrLengthMismatch, len(actual), len(expected))
	}
	if mask == "" {
		if !strings.EqualFold(actual, expected) {
			return &MismatchError{Digit: firstDiff(actual, expected)}
		}
		return nil
	}
	if len(mask) != len(actual) {
		return fmt.Errorf("%w: mask %d digits, values %d", ErrLengthMismatch, len(mask), len(actual))
	}
	for d := 0; d < len(actual); d++ {
		i := len(actual) - 1 - d
		a, okA := hexDigit(actual[i])
		e, okE := hexDigit(expected[i])
		m, okM := hexDigit(mask[i])
		if !okA || !okE || !okM {
			return fmt.Errorf("bits: invalid hex digit at position %d", i)
		}
		if a&m != e&m {
			return &MismatchError{Digit: d}
		}
	}
	return nil
}

func firstDiff(a, b string) int {
	for d := 0; d < len(a); d++ {
		i := len(a) - 1 - d
		if !strings.EqualFold(a[i:i+1], b[i:i+1]) {
			return d
		}
	}
	return -1
}

// Ones returns an n-bit vector with every bit set.
func Ones(n int) Vector {
	v := New(n)
	for i := range v.data {
		v.data[i] = 0xff
	}
	v.clearTail()
	return v
}

// ReverseByte mirrors the bit order of b.
func ReverseByte(b byte) byte {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}
