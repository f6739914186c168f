package deviceinfo

// Xilinx 7-series parts. The Alchitry Au carries an XC7A35T, the Au+ an
// XC7A100T.
func init() {
	// JEP106 0x049 in bits 11:1 plus the marker bit.
	const xilinx = 0x049<<1 | 1

	artix := func(part uint32, name string) {
		register(part<<12|xilinx, DeviceInfo{
			Name:            name,
			Family:          "Artix-7",
			Description:     "Xilinx 7-series FPGA",
			HasBoundaryScan: true,
			IsFPGA:          true,
			IRLength:        6,
		})
	}
	artix(0x362E, "XC7A15T")
	artix(0x362D, "XC7A35T")
	artix(0x362C, "XC7A50T")
	artix(0x3632, "XC7A75T")
	artix(0x3631, "XC7A100T")
	artix(0x3636, "XC7A200T")
}
