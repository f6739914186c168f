package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/otload/pkg/loader"
	"github.com/OpenTraceLab/otload/pkg/svf"
)

var svfCmd = &cobra.Command{
	Use:   "svf <script.svf>",
	Short: "Play a Serial Vector Format script",
	Long: `Play an SVF script against the FPGA. TCK starts at the configured frequency
until the script sets its own. Header and trailer commands must have zero
length, since the Au has a single device on its chain.`,
	Args: cobra.ExactArgs(1),
	RunE: runSVF,
}

func init() {
	rootCmd.AddCommand(svfCmd)
}

func runSVF(cmd *cobra.Command, args []string) error {
	script, err := svf.ParseFile(args[0])
	if err != nil {
		return err
	}
	return withSession(cmd, func(s *loader.Session) error {
		if err := s.SetFrequency(physic.Frequency(cfg.Frequency)); err != nil {
			return err
		}
		if err := svf.NewPlayer(s).Run(script); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Played %d commands from %s\n", len(script.Commands), args[0])
		return nil
	})
}
