package deviceinfo

import "github.com/OpenTraceLab/otload/pkg/idcode"

// DeviceInfo contains rich information about a JTAG device
type DeviceInfo struct {
	// Key fields
	IDCode       idcode.IDCode
	Manufacturer idcode.Manufacturer

	// Human-friendly
	Name        string // "XC7A35T"
	Family      string // "Artix-7"
	Description string

	HasBoundaryScan bool
	IsFPGA          bool

	// JTAG specifics
	IRLength int
}

// Known reports whether the entry came from the database.
func (d DeviceInfo) Known() bool {
	return d.Family != ""
}
