// Package bits holds JTAG shift payloads as a bit count plus packed bytes.
//
// Bit i of a Vector is the i-th bit clocked through the TAP. Bytes are packed
// LSB first, which is also the order the MPSSE engine uses for LSB-first
// transfers, so a Vector's bytes can be written to the wire unchanged.
//
// Hexadecimal is only used at the edges (files, scripts, diagnostics). A hex
// string is read as a number: its last digit holds bits 0-3.
package bits

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShortHex is returned when a hex string has fewer digits than the width
// requires.
var ErrShortHex = errors.New("bits: hex string too short")

// Vector is a fixed-width bit string.
type Vector struct {
	data []byte
	n    int
}

// New returns an all-zero vector of n bits.
func New(n int) Vector {
	if n < 0 {
		n = 0
	}
	return Vector{data: make([]byte, ByteLen(n)), n: n}
}

// FromBytes wraps b as an n-bit vector. b is copied; bits above n are cleared.
func FromBytes(b []byte, n int) Vector {
	v := New(n)
	copy(v.data, b)
	v.clearTail()
	return v
}

// FromUint returns the low n bits (n <= 64) of x.
func FromUint(x uint64, n int) Vector {
	v := New(n)
	for i := 0; i < n && i < 64; i++ {
		if x&(1<<uint(i)) != 0 {
			v.data[i/8] |= 1 << uint(i%8)
		}
	}
	return v
}

// ByteLen is ceil(n/8).
func ByteLen(n int) int {
	return (n + 7) / 8
}

// HexLen is ceil(n/4).
func HexLen(n int) int {
	return (n + 3) / 4
}

// ParseHex reads the least-significant ceil(n/4) digits of s as an n-bit
// value. Extra leading digits are ignored. Upper and lower case are accepted.
func ParseHex(s string, n int) (Vector, error) {
	s = strings.TrimSpace(s)
	need := HexLen(n)
	if len(s) < need {
		return Vector{}, fmt.Errorf("%w: %d bits need %d digits, got %d", ErrShortHex, n, need, len(s))
	}
	v := New(n)
	// Walk from the last digit (bits 0-3) towards the front.
	for d := 0; d < need; d++ {
		nib, ok := hexDigit(s[len(s)-1-d])
		if !ok {
			return Vector{}, fmt.Errorf("bits: invalid hex digit %q in %q", s[len(s)-1-d], s)
		}
		v.data[d/2] |= nib << uint(4*(d%2))
	}
	v.clearTail()
	return v, nil
}

// MustParseHex is ParseHex for constants; it panics on error.
func MustParseHex(s string, n int) Vector {
	v, err := ParseHex(s, n)
	if err != nil {
		panic(err)
	}
	return v
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Len returns the width in bits.
func (v Vector) Len() int {
	return v.n
}

// Bit returns bit i.
func (v Vector) Bit(i int) bool {
	return v.data[i/8]&(1<<uint(i%8)) != 0
}

// Set assigns bit i.
func (v Vector) Set(i int, b bool) {
	if b {
		v.data[i/8] |= 1 << uint(i%8)
	} else {
		v.data[i/8] &^= 1 << uint(i%8)
	}
}

// Append adds a bit at position Len().
func (v *Vector) Append(b bool) {
	if v.n%8 == 0 {
		v.data = append(v.data, 0)
	}
	v.n++
	v.Set(v.n-1, b)
}

// Bytes returns the packed bytes (ceil(Len/8) of them). The slice is shared
// with the vector.
func (v Vector) Bytes() []byte {
	return v.data
}

// Byte returns byte i of the packed form, or 0 past the end.
func (v Vector) Byte(i int) byte {
	if i < len(v.data) {
		return v.data[i]
	}
	return 0
}

// Uint64 returns the low 64 bits.
func (v Vector) Uint64() uint64 {
	var x uint64
	for i := 0; i < len(v.data) && i < 8; i++ {
		x |= uint64(v.data[i]) << uint(8*i)
	}
	return x
}

// Equal reports whether both vectors have the same width and bits.
func (v Vector) Equal(o Vector) bool {
	if v.n != o.n {
		return false
	}
	for i := range v.data {
		if v.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// Hex renders the vector as ceil(Len/4) upper-case digits, most significant
// first.
func (v Vector) Hex() string {
	const digits = "0123456789ABCDEF"
	need := HexLen(v.n)
	out := make([]byte, need)
	for d := 0; d < need; d++ {
		nib := (v.data[d/2] >> uint(4*(d%2))) & 0xf
		out[need-1-d] = digits[nib]
	}
	return string(out)
}

func (v Vector) String() string {
	return fmt.Sprintf("%d'h%s", v.n, v.Hex())
}

func (v Vector) clearTail() {
	if r := v.n % 8; r != 0 {
		v.data[len(v.data)-1] &= byte(1<<uint(r)) - 1
	}
}
