package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/engine"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>...",
	Short: "Show the metadata embedded in one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, verbose := printerFromFlags(cmd)
		p := core.NewPrinter(jsonMode, verbose)
		for _, path := range args {
			report, err := engine.Inspect(path)
			if err != nil {
				return err
			}
			p.PrintReport(report)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
