package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/otload/pkg/config"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	adapterType string
	boardIndex  int

	// cfg is the merged config file and flag settings for the running command.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "otload",
	Short: "Alchitry Au FPGA loader over FTDI JTAG",
	Long: `otload configures the Xilinx Artix-7 on an Alchitry Au through the board's
FTDI chip. Bitstreams can be loaded straight into configuration memory or
written to the SPI flash through a bridge design.

Examples:
  otload list                                  # List detected boards
  otload ram top.bin                           # Load top.bin until power off
  otload flash top.bin -p au_loader.bin        # Write top.bin to flash
  otload erase -p au_loader.bin -b 1           # Erase the flash of board 1
  otload idcode --adapter sim                  # Read the IDCODE of the simulated Au
  otload svf readback.svf --v=2                # Play an SVF script with wire logging`,
	Version:           "0.9.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() {
	err := rootCmd.Execute()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// glog writes files by default; a CLI wants its diagnostics on stderr.
	flag.Set("logtostderr", "true")

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&verbose, "verbose", false, "log protocol steps (same as --v=1)")
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVarP(&adapterType, "adapter", "a", "", "adapter: ftdi or sim (default from config, else ftdi)")
	pf.IntVarP(&boardIndex, "board", "b", 0, "board index as shown by 'otload list'")
	pf.AddGoFlagSet(flag.CommandLine)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// glog checks that the Go flag set was parsed; cobra already did it.
	flag.CommandLine.Parse(nil)
	if verbose && !bool(glog.V(1)) {
		flag.Set("v", "1")
	}

	c := config.DefaultConfig()
	if configPath != "" {
		var err error
		if c, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if adapterType != "" {
		c.Adapter = adapterType
	}
	if cmd.Flags().Changed("board") {
		c.Board = boardIndex
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	glog.V(1).Infof("otload: adapter %s, board %d", cfg.Adapter, cfg.Board)
	return nil
}
