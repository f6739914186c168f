package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/otload/pkg/idcode"
	"github.com/OpenTraceLab/otload/pkg/idcode/deviceinfo"
	"github.com/OpenTraceLab/otload/pkg/loader"
)

var (
	checkIDCode bool
)

var idcodeCmd = &cobra.Command{
	Use:   "idcode",
	Short: "Read and decode the FPGA's IDCODE",
	Long: `Read the 32-bit IDCODE, decode it, and by default check that the device is the
XC7A35T fitted to the Alchitry Au. The version nibble is ignored by the check.`,
	Args: cobra.NoArgs,
	RunE: runIDCode,
}

func init() {
	rootCmd.AddCommand(idcodeCmd)
	idcodeCmd.Flags().BoolVar(&checkIDCode, "check", true, "fail unless the device is an XC7A35T")
}

func runIDCode(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(s *loader.Session) error {
		raw, err := s.ReadIDCode()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "IDCODE: %s\n", idcode.ParseIDCode(raw))
		if info := deviceinfo.Lookup(raw); info.Known() {
			fmt.Fprintf(out, "Device: %s (%s)\n", info.Name, info.Family)
		} else {
			fmt.Fprintln(out, "Device: unknown")
		}

		if !checkIDCode {
			return nil
		}
		if err := s.CheckIDCode(); err != nil {
			return fmt.Errorf("IDCODE check failed: %w", err)
		}
		fmt.Fprintln(out, "IDCODE check passed.")
		return nil
	})
}
