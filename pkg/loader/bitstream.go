package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OpenTraceLab/otload/pkg/bits"
)

// Transform selects how file bytes map onto the shifted bit stream. Both
// transforms shift the file's first byte first.
type Transform int

const (
	// TransformConfig sends every byte MSB first, as the configuration port
	// expects. Used for anything shifted through CFG_IN.
	TransformConfig Transform = iota
	// TransformPassThrough sends every byte LSB first, unchanged. Used for the
	// payload the bridge design forwards to flash over USER2.
	TransformPassThrough
)

func (t Transform) String() string {
	switch t {
	case TransformConfig:
		return "config"
	case TransformPassThrough:
		return "pass-through"
	}
	return fmt.Sprintf("Transform(%d)", int(t))
}

// syncWord marks the start of configuration packets in a 7-series bitstream.
var syncWord = []byte{0xAA, 0x99, 0x55, 0x66}

// Bitstream is a raw .bin file. Headers are not interpreted.
type Bitstream struct {
	Name string
	data []byte
}

// NewBitstream copies data.
func NewBitstream(name string, data []byte) *Bitstream {
	return &Bitstream{Name: name, data: append([]byte(nil), data...)}
}

// ReadBitstream loads a whole file.
func ReadBitstream(path string) (*Bitstream, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bitstream: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read bitstream: %s is empty", path)
	}
	return &Bitstream{Name: filepath.Base(path), data: data}, nil
}

// Len returns the size in bytes.
func (b *Bitstream) Len() int {
	return len(b.data)
}

// Bytes returns a copy of the file contents.
func (b *Bitstream) Bytes() []byte {
	return append([]byte(nil), b.data...)
}

// HasSyncWord reports whether the file contains the configuration sync word.
// A .bit file with its header stripped or a .bin file will.
func (b *Bitstream) HasSyncWord() bool {
	return bytes.Contains(b.data, syncWord)
}

// Vector converts the file into a shift payload of 8*Len bits.
func (b *Bitstream) Vector(t Transform) bits.Vector {
	v := bits.FromBytes(b.data, 8*len(b.data))
	if t == TransformConfig {
		out := v.Bytes()
		for i := range out {
			out[i] = bits.ReverseByte(out[i])
		}
	}
	return v
}

// Hex renders the payload as a hex number: the last file byte leads.
func (b *Bitstream) Hex(t Transform) string {
	return b.Vector(t).Hex()
}
