package idcode

import "fmt"

// IDCode is an IEEE 1149.1 IDCODE split into its fields.
type IDCode struct {
	Raw              uint32
	Version          uint8  // bits 31:28
	PartNumber       uint16 // bits 27:12
	ManufacturerCode uint16 // bits 11:1, JEP106 bank and identity
	HasIDCode        bool   // bit 0; devices without IDCODE capture BYPASS
}

// VersionMask clears the version nibble so silicon revisions compare equal.
const VersionMask = 0x0FFFFFFF

// ParseIDCode parses a raw 32-bit IDCODE into its component fields
func ParseIDCode(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8((raw >> 28) & 0xF),
		PartNumber:       uint16((raw >> 12) & 0xFFFF),
		ManufacturerCode: uint16((raw >> 1) & 0x7FF),
		HasIDCode:        (raw & 0x1) == 0x1,
	}
}

// Bank is the JEP106 bank number (1-based) encoded in the manufacturer field.
func (id IDCode) Bank() int {
	return int(id.ManufacturerCode>>7) + 1
}

func (id IDCode) String() string {
	m, _ := LookupManufacturer(id.ManufacturerCode)
	return fmt.Sprintf("0x%08X (Mfg: %s, Part: 0x%04X, Ver: %d)",
		id.Raw, m.Name, id.PartNumber, id.Version)
}
