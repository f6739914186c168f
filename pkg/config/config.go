// Package config holds otload settings and reads them from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/otload/pkg/jtag"
)

// Adapter kinds.
const (
	AdapterFTDI = "ftdi"
	AdapterSim  = "sim"
)

// Frequency is a physic.Frequency written as "10MHz" in YAML.
type Frequency physic.Frequency

// UnmarshalYAML parses strings such as "1.5MHz".
func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	var pf physic.Frequency
	if err := pf.Set(value.Value); err != nil {
		return fmt.Errorf("line %d: frequency %q: %w", value.Line, value.Value, err)
	}
	*f = Frequency(pf)
	return nil
}

// MarshalYAML writes the frequency in its human form.
func (f Frequency) MarshalYAML() (interface{}, error) {
	return physic.Frequency(f).String(), nil
}

// USB selects the FTDI chip.
type USB struct {
	VendorID  uint16        `yaml:"vendor_id"`
	ProductID uint16        `yaml:"product_id"`
	Interface string        `yaml:"interface"` // "A" or "B"
	Timeout   time.Duration `yaml:"timeout"`
}

// Config controls how otload reaches the board.
type Config struct {
	// Adapter is "ftdi" for hardware or "sim" for the built-in simulated Au.
	Adapter string `yaml:"adapter"`
	USB     USB    `yaml:"usb"`

	// Board picks among matching FTDI devices (default: 0)
	Board int `yaml:"board"`
	// Bridge is the flash bridge bitstream used when -p is not given.
	Bridge string `yaml:"bridge,omitempty"`

	LatencyTimer int           `yaml:"latency_timer"` // ms
	ChunkSize    int           `yaml:"chunk_size"`
	Settle       time.Duration `yaml:"settle"`

	// Frequency is the TCK rate for SVF playback until a script sets its own.
	Frequency Frequency `yaml:"frequency"`
}

// DefaultConfig returns the settings for an Alchitry Au on channel A.
func DefaultConfig() *Config {
	opts := jtag.DefaultOptions()
	return &Config{
		Adapter: AdapterFTDI,
		USB: USB{
			VendorID:  jtag.VendorIDFTDI,
			ProductID: jtag.ProductIDFT2232,
			Interface: "A",
			Timeout:   jtag.DefaultTimeout,
		},
		LatencyTimer: opts.LatencyTimer,
		ChunkSize:    opts.ChunkSize,
		Settle:       opts.Settle,
		Frequency:    Frequency(10 * physic.MegaHertz),
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return c, nil
}

// Validate checks ranges and normalises the interface letter.
func (c *Config) Validate() error {
	c.Adapter = strings.ToLower(strings.TrimSpace(c.Adapter))
	switch c.Adapter {
	case AdapterFTDI, AdapterSim:
	default:
		return fmt.Errorf("unknown adapter %q (want %s or %s)", c.Adapter, AdapterFTDI, AdapterSim)
	}

	c.USB.Interface = strings.ToUpper(strings.TrimSpace(c.USB.Interface))
	if _, err := c.interfaceNumber(); err != nil {
		return err
	}
	if c.USB.Timeout <= 0 {
		c.USB.Timeout = jtag.DefaultTimeout
	}

	if c.Board < 0 {
		return fmt.Errorf("board index %d", c.Board)
	}
	if c.LatencyTimer < 1 || c.LatencyTimer > 255 {
		return fmt.Errorf("latency timer %d ms out of range 1-255", c.LatencyTimer)
	}
	if c.ChunkSize < 64 || c.ChunkSize > 65535 {
		return fmt.Errorf("chunk size %d out of range 64-65535", c.ChunkSize)
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	if _, err := jtag.Divisor(physic.Frequency(c.Frequency)); err != nil {
		return err
	}
	return nil
}

func (c *Config) interfaceNumber() (int, error) {
	switch c.USB.Interface {
	case "", "A":
		return 0, nil
	case "B":
		return 1, nil
	}
	return 0, fmt.Errorf("FTDI interface %q (want A or B)", c.USB.Interface)
}

// USBConfig converts the settings for jtag.OpenUSB.
func (c *Config) USBConfig() jtag.USBConfig {
	intf, _ := c.interfaceNumber()
	return jtag.USBConfig{
		VendorID:  c.USB.VendorID,
		ProductID: c.USB.ProductID,
		Index:     c.Board,
		Interface: intf,
		Timeout:   c.USB.Timeout,
	}
}

// EngineOptions converts the settings for jtag.NewEngine.
func (c *Config) EngineOptions() jtag.Options {
	return jtag.Options{
		LatencyTimer: c.LatencyTimer,
		ChunkSize:    c.ChunkSize,
		Settle:       c.Settle,
	}
}
