package deviceinfo

import "github.com/OpenTraceLab/otload/pkg/idcode"

// db maps IDCODEs with the version nibble cleared to their entries.
var db = make(map[uint32]DeviceInfo)

func register(id uint32, info DeviceInfo) {
	db[id&idcode.VersionMask] = info
}

// Lookup returns what is known about rawID. Silicon revisions share an entry.
// Unknown devices still get the decoded IDCODE and manufacturer.
func Lookup(rawID uint32) DeviceInfo {
	id := idcode.ParseIDCode(rawID)
	m, _ := idcode.LookupManufacturer(id.ManufacturerCode)

	info, ok := db[rawID&idcode.VersionMask]
	if !ok {
		info = DeviceInfo{Name: "unknown"}
	}
	info.IDCode = id
	info.Manufacturer = m
	return info
}
