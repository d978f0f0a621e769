package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/engine"
)

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize <file>...",
	Short: "Remove identifying metadata, replacing each file atomically",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, verbose := printerFromFlags(cmd)
		p := core.NewPrinter(jsonMode, verbose)
		opts := sanitizeOptions(cmd)
		for _, path := range args {
			if err := engine.Sanitize(path, opts); err != nil {
				return err
			}
			p.PrintSuccess(path + " sanitized")
		}
		return nil
	},
}

func sanitizeOptions(cmd *cobra.Command) engine.Options {
	sibling, _ := cmd.Flags().GetBool("sibling")
	if !sibling {
		sibling = viper.GetBool("sanitize.sibling")
	}
	return engine.Options{Sibling: sibling}
}

func init() {
	sanitizeCmd.Flags().BoolP("sibling", "s", false, "Write a _sin_metadata sibling instead of replacing the original")
	rootCmd.AddCommand(sanitizeCmd)
}
