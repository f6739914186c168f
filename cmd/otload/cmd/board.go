package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/otload/pkg/config"
	"github.com/OpenTraceLab/otload/pkg/jtag"
	"github.com/OpenTraceLab/otload/pkg/loader"
)

const discoverTimeout = 5 * time.Second

// newSimFPGA builds the device behind --adapter sim.
var newSimFPGA = loader.NewSimFPGA

// simBoards is what "otload list" reports for the simulator.
var simBoards = []jtag.BoardInfo{{
	Index:        0,
	Kind:         jtag.BoardAu,
	Manufacturer: "Alchitry",
	Description:  string(jtag.BoardAu),
	Serial:       "SIM00000",
	VendorID:     jtag.VendorIDFTDI,
	ProductID:    jtag.ProductIDFT2232,
}}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List detected boards",
	Long: `List the FTDI devices with the configured USB IDs as
"index: manufacturer|description|serial". The index is what -b selects.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listBoards(ctx context.Context) ([]jtag.BoardInfo, error) {
	if cfg.Adapter == config.AdapterSim {
		return simBoards, nil
	}
	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	boards, err := jtag.DiscoverBoards(ctx, cfg.USB.VendorID, cfg.USB.ProductID)
	if err != nil {
		return nil, fmt.Errorf("discover boards: %w", err)
	}
	return boards, nil
}

func runList(cmd *cobra.Command, args []string) error {
	boards, err := listBoards(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(boards) == 0 {
		fmt.Fprintln(out, "No devices found!")
		return nil
	}
	for _, b := range boards {
		fmt.Fprintln(out, b.Label())
	}
	return nil
}

// checkBoard refuses anything but an Au before the USB device is claimed.
func checkBoard(ctx context.Context) error {
	boards, err := listBoards(ctx)
	if err != nil {
		return err
	}
	if cfg.Board >= len(boards) {
		return fmt.Errorf("board %d not found (%d detected)", cfg.Board, len(boards))
	}
	b := boards[cfg.Board]
	switch {
	case b.Kind.Supported():
		glog.V(1).Infof("otload: using %s", b.Label())
		return nil
	case b.Kind == jtag.BoardCu:
		return fmt.Errorf("%s is not supported: only the Au can be configured over JTAG", b.Kind)
	}
	return fmt.Errorf("unknown board type %q", b.Description)
}

// openSession brings up the engine on the selected board. The returned
// engine must be closed.
func openSession(ctx context.Context) (*jtag.Engine, *loader.Session, error) {
	if err := checkBoard(ctx); err != nil {
		return nil, nil, err
	}

	sim := cfg.Adapter == config.AdapterSim
	var t jtag.Transport
	if sim {
		t = jtag.NewSimTransport(newSimFPGA())
	} else {
		usb, err := jtag.OpenUSB(cfg.USBConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("open board %d: %w", cfg.Board, err)
		}
		t = usb
	}

	eng := jtag.NewEngine(t, cfg.EngineOptions())
	s := loader.NewSession(eng)
	if sim {
		// Nothing to wait for in the simulator.
		noWait := func(time.Duration) {}
		eng.SetSleep(noWait)
		s.SetSleeper(noWait)
	}
	if err := eng.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialize JTAG: %w", err)
	}
	return eng, s, nil
}

// withSession runs fn on the selected board and shuts the engine down
// afterwards, whatever fn returns.
func withSession(cmd *cobra.Command, fn func(s *loader.Session) error) (err error) {
	eng, s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, eng.Close())
	}()
	return fn(s)
}
