package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/engine"
)

var editCmd = &cobra.Command{
	Use:   "edit <file> Field=Value...",
	Short: "Set metadata fields of an office document",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, verbose := printerFromFlags(cmd)
		p := core.NewPrinter(jsonMode, verbose)
		path := args[0]
		opts := editOptions(cmd)
		for _, kv := range args[1:] {
			key, value, ok := core.ParseKV(kv)
			if !ok {
				return fmt.Errorf("expected Field=Value, got %q", kv)
			}
			if err := engine.EditField(path, key, value, opts); err != nil {
				return err
			}
			p.PrintSuccess(fmt.Sprintf("%s: %s set", path, key))
		}
		return nil
	},
}

func editOptions(cmd *cobra.Command) engine.Options {
	sibling, _ := cmd.Flags().GetBool("sibling")
	return engine.Options{Sibling: sibling}
}

func init() {
	editCmd.Flags().BoolP("sibling", "s", false, "Write a _modificado sibling instead of replacing the original")
	rootCmd.AddCommand(editCmd)
}
