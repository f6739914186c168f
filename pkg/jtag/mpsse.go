package jtag

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// MPSSE command opcodes. Data transfers are LSB first with TDI clocked out on
// the falling edge.
const (
	OpBytesOut      = 0x19
	OpBytesInOut    = 0x39
	OpBitsOut       = 0x1B
	OpBitsInOut     = 0x3B
	OpTMSOut        = 0x4B
	OpTMSDataOut    = 0x4E
	OpTMSDataInOut  = 0x6E
	OpSetLowGPIO    = 0x80
	OpSetHighGPIO   = 0x82
	OpLoopbackOff   = 0x85
	OpSetDivisor    = 0x86
	OpDisableDiv5   = 0x8A
	OpThreePhaseOff = 0x8D
	OpClockBits     = 0x8E
	OpClockBytes    = 0x8F
	OpAdaptiveOff   = 0x97
	OpBadCommand    = 0xAA

	// RespBadCommand precedes the echoed opcode the chip did not understand.
	RespBadCommand = 0xFA
)

const (
	// MaxChunk is the largest byte transfer a single MPSSE command accepts.
	MaxChunk = 65536
	// MaxTMSBits is the most TMS moves one TMS command carries.
	MaxTMSBits = 7

	// BaseClock is the MPSSE clock with the divide-by-5 prescaler off, halved
	// by the TCK waveform.
	BaseClock = 30 * physic.MegaHertz
)

// Pin assignment on ADBUS: TCK=0, TDI=1, TDO=2, TMS=3.
const (
	initLowValue     = 0x08
	initLowDirection = 0x0B
	initDivisor      uint16 = 0x05DB
)

// EncodeTMS moves the TAP with n (1..7) TMS bits, LSB first, holding TDI at
// the given level.
func EncodeTMS(tms byte, n int, tdi bool) []byte {
	b := tms & 0x7F
	if tdi {
		b |= 0x80
	}
	return []byte{OpTMSOut, byte(n - 1), b}
}

// EncodeLastBit clocks one TMS=1 cycle carrying the final data bit on TDI.
func EncodeLastBit(tdi, read bool) []byte {
	op := byte(OpTMSDataOut)
	if read {
		op = OpTMSDataInOut
	}
	b := byte(0x03)
	if tdi {
		b |= 0x80
	}
	return []byte{op, 0x00, b}
}

// EncodeBits shifts the low n (1..8) bits of data.
func EncodeBits(data byte, n int, read bool) []byte {
	op := byte(OpBitsOut)
	if read {
		op = OpBitsInOut
	}
	return []byte{op, byte(n - 1), data}
}

// EncodeBytes shifts 1..MaxChunk whole bytes.
func EncodeBytes(data []byte, read bool) []byte {
	op := byte(OpBytesOut)
	if read {
		op = OpBytesInOut
	}
	n := len(data) - 1
	out := make([]byte, 0, 3+len(data))
	out = append(out, op, byte(n), byte(n>>8))
	return append(out, data...)
}

// EncodeClocks appends free-running TCK pulses with no data for n cycles.
func EncodeClocks(buf []byte, n uint64) []byte {
	whole := n / 8
	for whole > 0 {
		c := whole
		if c > MaxChunk {
			c = MaxChunk
		}
		buf = append(buf, OpClockBytes, byte(c-1), byte((c-1)>>8))
		whole -= c
	}
	if rem := n % 8; rem > 0 {
		buf = append(buf, OpClockBits, byte(rem-1))
	}
	return buf
}

// EncodeDivisor programs the TCK divisor.
func EncodeDivisor(div uint16) []byte {
	return []byte{OpSetDivisor, byte(div), byte(div >> 8)}
}

// Divisor converts a TCK frequency into the MPSSE clock divisor,
// BaseClock/f - 1.
func Divisor(f physic.Frequency) (uint16, error) {
	if f <= 0 || f > BaseClock {
		return 0, fmt.Errorf("jtag: frequency %s out of range (max %s)", f, BaseClock)
	}
	d := int64(BaseClock/f) - 1
	if d > 0xFFFF {
		return 0, fmt.Errorf("jtag: frequency %s too low", f)
	}
	return uint16(d), nil
}

// initCommands returns the clock and pin setup sent once after sync.
func initCommands() []byte {
	buf := []byte{
		OpDisableDiv5, OpAdaptiveOff, OpThreePhaseOff,
		OpSetLowGPIO, initLowValue, initLowDirection,
		OpSetHighGPIO, 0x00, 0x00,
	}
	buf = append(buf, EncodeDivisor(initDivisor)...)
	return append(buf, OpLoopbackOff)
}
