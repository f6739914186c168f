package jtag

//go:generate mockgen -destination=mocks/transport.go -package=mocks github.com/OpenTraceLab/otload/pkg/jtag Transport

// BitMode selects the FTDI chip operating mode.
type BitMode byte

const (
	BitModeReset BitMode = 0x00
	BitModeMPSSE BitMode = 0x02
)

func (m BitMode) String() string {
	switch m {
	case BitModeReset:
		return "reset"
	case BitModeMPSSE:
		return "mpsse"
	}
	return "unknown"
}

// Transport is the contract the engine needs from a serial-engine driver.
// Read may return fewer bytes than requested; the engine keeps reading until
// its buffer is full and fails only on an error or a read that returns no
// data.
type Transport interface {
	Reset() error
	SetLatencyTimer(ms int) error
	SetChunkSizes(write, read int) error
	SetBitMode(mask byte, mode BitMode) error
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	PurgeReceiveBuffer() error
	Close() error
}
