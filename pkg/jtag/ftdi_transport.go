package jtag

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"
)

const (
	// FTDI FT2232H identifiers, as used on the Alchitry boards.
	VendorIDFTDI    = 0x0403
	ProductIDFT2232 = 0x6010

	DefaultTimeout = 5 * time.Second
)

// FTDI vendor control requests.
const (
	sioReset           = 0x00
	sioSetLatencyTimer = 0x09
	sioSetBitMode      = 0x0B

	sioResetSIO     = 0
	sioResetPurgeRX = 1

	ftdiModemStatusLen = 2
)

// USBConfig selects which FTDI chip and channel to open.
type USBConfig struct {
	VendorID  uint16
	ProductID uint16
	// Index picks among matching devices in enumeration order.
	Index int
	// Interface is the FTDI channel, 0 for A.
	Interface int
	Timeout   time.Duration
}

// DefaultUSBConfig targets channel A of the first FT2232H.
func DefaultUSBConfig() USBConfig {
	return USBConfig{
		VendorID:  VendorIDFTDI,
		ProductID: ProductIDFT2232,
		Timeout:   DefaultTimeout,
	}
}

// USBTransport talks to an FTDI chip through libusb. Bulk IN packets carry
// two modem status bytes which Read strips.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	index      uint16
	packetSize int
	writeChunk int
	readChunk  int
	timeout    time.Duration

	rx []byte
}

// OpenUSB opens and claims the configured FTDI channel.
func OpenUSB(c USBConfig) (*USBTransport, error) {
	ctx := gousb.NewContext()

	m := newBoardMatcher(c.VendorID, c.ProductID)
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return m.match(desc) && m.index(desc) == c.Index
	})
	if len(devs) == 0 {
		ctx.Close()
		if err != nil {
			return nil, fmt.Errorf("USB error: %w", err)
		}
		return nil, fmt.Errorf("device %d not found (VID:0x%04X PID:0x%04X)", c.Index, c.VendorID, c.ProductID)
	}
	dev := devs[0]
	for _, extra := range devs[1:] {
		extra.Close()
	}

	if err := dev.SetAutoDetach(true); err != nil {
		glog.Warningf("jtag: auto-detach not supported: %v", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &USBTransport{
		ctx:        ctx,
		dev:        dev,
		index:      uint16(c.Interface + 1),
		packetSize: 512,
		writeChunk: 4096,
		readChunk:  4096,
		timeout:    timeout,
	}
	if err := t.claim(c.Interface); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *USBTransport) claim(num int) error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	t.cfg = cfg

	intf, err := cfg.Interface(num, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", num, err)
	}
	t.intf = intf

	var inAddr, outAddr int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && inAddr == 0 {
			inAddr = ep.Number
			t.packetSize = ep.MaxPacketSize
		}
		if ep.Direction == gousb.EndpointDirectionOut && outAddr == 0 {
			outAddr = ep.Number
		}
	}
	if inAddr == 0 || outAddr == 0 {
		return fmt.Errorf("bulk endpoints not found on interface %d", num)
	}

	if t.epIn, err = intf.InEndpoint(inAddr); err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	if t.epOut, err = intf.OutEndpoint(outAddr); err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	return nil
}

func (t *USBTransport) control(request uint8, value uint16) error {
	rType := uint8(gousb.ControlOut | gousb.ControlVendor | gousb.ControlDevice)
	glog.V(2).Infof("jtag: ftdi control req=%#02x value=%#04x index=%d", request, value, t.index)
	if _, err := t.dev.Control(rType, request, value, t.index, nil); err != nil {
		return fmt.Errorf("ftdi control %#02x: %w", request, err)
	}
	return nil
}

func (t *USBTransport) Reset() error {
	t.rx = nil
	return t.control(sioReset, sioResetSIO)
}

func (t *USBTransport) SetLatencyTimer(ms int) error {
	if ms < 1 || ms > 255 {
		return fmt.Errorf("latency timer %dms out of range", ms)
	}
	return t.control(sioSetLatencyTimer, uint16(ms))
}

func (t *USBTransport) SetChunkSizes(write, read int) error {
	if write <= 0 || read <= 0 {
		return fmt.Errorf("invalid chunk sizes %d/%d", write, read)
	}
	t.writeChunk = write
	t.readChunk = read
	return nil
}

func (t *USBTransport) SetBitMode(mask byte, mode BitMode) error {
	return t.control(sioSetBitMode, uint16(mode)<<8|uint16(mask))
}

func (t *USBTransport) PurgeReceiveBuffer() error {
	t.rx = nil
	return t.control(sioReset, sioResetPurgeRX)
}

// Write sends p in chunks of at most the configured write size.
func (t *USBTransport) Write(p []byte) (int, error) {
	done := 0
	for done < len(p) {
		end := done + t.writeChunk
		if end > len(p) {
			end = len(p)
		}
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		n, err := t.epOut.WriteContext(ctx, p[done:end])
		cancel()
		done += n
		if err != nil {
			return done, fmt.Errorf("USB write failed: %w", err)
		}
	}
	return done, nil
}

// Read returns up to len(p) data bytes. It polls until at least one byte
// arrives or the timeout passes, in which case it returns 0 and no error.
func (t *USBTransport) Read(p []byte) (int, error) {
	deadline := time.Now().Add(t.timeout)
	for len(t.rx) == 0 && time.Now().Before(deadline) {
		if err := t.fill(deadline); err != nil {
			return 0, err
		}
	}
	n := copy(p, t.rx)
	t.rx = t.rx[n:]
	return n, nil
}

func (t *USBTransport) fill(deadline time.Time) error {
	size := t.readChunk
	if size < t.packetSize {
		size = t.packetSize
	}
	size -= size % t.packetSize
	buf := make([]byte, size)

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	n, err := t.epIn.ReadContext(ctx, buf)
	if err != nil && n == 0 {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("USB read failed: %w", err)
	}
	for off := 0; off < n; off += t.packetSize {
		end := off + t.packetSize
		if end > n {
			end = n
		}
		if end-off > ftdiModemStatusLen {
			t.rx = append(t.rx, buf[off+ftdiModemStatusLen:end]...)
		}
	}
	return nil
}

// Close releases USB resources.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
