package jtag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/gousb"
)

// BoardKind identifies which Alchitry board an FTDI chip belongs to.
type BoardKind string

const (
	BoardAu      BoardKind = "Alchitry Au"
	BoardCu      BoardKind = "Alchitry Cu"
	BoardUnknown BoardKind = "unknown"
)

// Supported reports whether the JTAG loader can drive the board.
func (k BoardKind) Supported() bool {
	return k == BoardAu
}

// BoardInfo describes a detected FTDI device.
type BoardInfo struct {
	Index        int
	Kind         BoardKind
	Manufacturer string
	Description  string
	Serial       string
	VendorID     uint16
	ProductID    uint16
}

// Label formats the board as "index: manufacturer|description|serial". An
// unreadable description falls back to the USB IDs.
func (b BoardInfo) Label() string {
	desc := b.Description
	if desc == "" {
		desc = fmt.Sprintf("%04X:%04X", b.VendorID, b.ProductID)
	}
	return fmt.Sprintf("%d: %s|%s|%s", b.Index, b.Manufacturer, desc, b.Serial)
}

// ClassifyBoard maps a USB product string to a board kind.
func ClassifyBoard(product string) BoardKind {
	switch strings.TrimSpace(product) {
	case string(BoardAu):
		return BoardAu
	case string(BoardCu):
		return BoardCu
	}
	return BoardUnknown
}

type usbAddr struct {
	bus, address int
}

// boardMatcher numbers matching descriptors in enumeration order, including
// devices that later fail to open, so that list output and board indexes
// agree.
type boardMatcher struct {
	vid, pid uint16
	order    map[usbAddr]int
}

func newBoardMatcher(vid, pid uint16) *boardMatcher {
	return &boardMatcher{vid: vid, pid: pid, order: make(map[usbAddr]int)}
}

// match reports whether desc is a candidate board and records its index.
func (m *boardMatcher) match(desc *gousb.DeviceDesc) bool {
	if uint16(desc.Vendor) != m.vid || uint16(desc.Product) != m.pid {
		return false
	}
	addr := usbAddr{desc.Bus, desc.Address}
	if _, ok := m.order[addr]; !ok {
		m.order[addr] = len(m.order)
	}
	return true
}

// index returns the board number of a matched descriptor, or -1.
func (m *boardMatcher) index(desc *gousb.DeviceDesc) int {
	if i, ok := m.order[usbAddr{desc.Bus, desc.Address}]; ok {
		return i
	}
	return -1
}

// DiscoverBoards lists FTDI devices with the given IDs in the order OpenUSB
// indexes them.
func DiscoverBoards(ctx context.Context, vid, pid uint16) ([]BoardInfo, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	m := newBoardMatcher(vid, pid)
	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return m.match(desc)
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil && err != gousb.ErrorAccess {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]BoardInfo, 0, len(devs))
	for _, d := range devs {
		mfg, _ := d.Manufacturer()
		product, _ := d.Product()
		serial, _ := d.SerialNumber()
		results = append(results, BoardInfo{
			Index:        m.index(d.Desc),
			Kind:         ClassifyBoard(product),
			Manufacturer: mfg,
			Description:  product,
			Serial:       serial,
			VendorID:     uint16(d.Desc.Vendor),
			ProductID:    uint16(d.Desc.Product),
		})
	}
	return results, nil
}
