package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/otload/pkg/loader"
)

var (
	bridgePath string
)

var ramCmd = &cobra.Command{
	Use:   "ram <config.bin>",
	Short: "Load a bitstream into FPGA configuration memory",
	Long: `Load a raw .bin bitstream straight into the FPGA. The design runs at once
and is lost when the board loses power.`,
	Args: cobra.ExactArgs(1),
	RunE: runRAM,
}

var flashCmd = &cobra.Command{
	Use:   "flash <config.bin>",
	Short: "Write a bitstream to the board's SPI flash",
	Long: `Load the bridge design, erase the flash and write config.bin to it. The FPGA
is then cleared so it boots from the new flash contents.

The bridge bitstream comes from -p or the "bridge" key of the config file.`,
	Args: cobra.ExactArgs(1),
	RunE: runFlash,
}

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase the board's SPI flash",
	Args:  cobra.NoArgs,
	RunE:  runErase,
}

func init() {
	rootCmd.AddCommand(ramCmd)
	rootCmd.AddCommand(flashCmd)
	rootCmd.AddCommand(eraseCmd)

	for _, c := range []*cobra.Command{flashCmd, eraseCmd} {
		c.Flags().StringVarP(&bridgePath, "bridge", "p", "", "Au bridge bitstream (au_loader.bin)")
	}
}

func loadBridge() (*loader.Bitstream, error) {
	path := bridgePath
	if path == "" {
		path = cfg.Bridge
	}
	if path == "" {
		return nil, errors.New("no Au bridge bitstream provided (use -p or set bridge in the config file)")
	}
	bs, err := loader.ReadBitstream(path)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	return bs, nil
}

// step prints "msg... " and then "Done." or "failed." around fn.
func step(out io.Writer, msg string, fn func() error) error {
	fmt.Fprintf(out, "%s... ", msg)
	if err := fn(); err != nil {
		fmt.Fprintln(out, "failed.")
		return err
	}
	fmt.Fprintln(out, "Done.")
	return nil
}

func runRAM(cmd *cobra.Command, args []string) error {
	bin, err := loader.ReadBitstream(args[0])
	if err != nil {
		return err
	}
	return withSession(cmd, func(s *loader.Session) error {
		msg := fmt.Sprintf("Programming FPGA RAM with %s (%d bytes)", bin.Name, bin.Len())
		if err := step(cmd.OutOrStdout(), msg, func() error { return s.WriteRAM(bin) }); err != nil {
			return fmt.Errorf("write FPGA RAM: %w", err)
		}
		return nil
	})
}

func runFlash(cmd *cobra.Command, args []string) error {
	bin, err := loader.ReadBitstream(args[0])
	if err != nil {
		return err
	}
	bridge, err := loadBridge()
	if err != nil {
		return err
	}
	return withSession(cmd, func(s *loader.Session) error {
		msg := fmt.Sprintf("Writing %s (%d bytes) to flash", bin.Name, bin.Len())
		if err := step(cmd.OutOrStdout(), msg, func() error { return s.WriteFlash(bin, bridge) }); err != nil {
			return fmt.Errorf("write FPGA flash: %w", err)
		}
		return nil
	})
}

func runErase(cmd *cobra.Command, args []string) error {
	bridge, err := loadBridge()
	if err != nil {
		return err
	}
	return withSession(cmd, func(s *loader.Session) error {
		if err := step(cmd.OutOrStdout(), "Erasing", func() error { return s.EraseFlash(bridge) }); err != nil {
			return fmt.Errorf("erase flash: %w", err)
		}
		return nil
	})
}
