package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/engine"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file-or-dir>...",
	Short: "Sanitize many files, reporting per-file progress",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, verbose := printerFromFlags(cmd)
		p := core.NewPrinter(jsonMode, verbose)

		paths, err := collectPaths(args)
		if err != nil {
			return err
		}

		extFilter, _ := cmd.Flags().GetString("ext")
		var filter func(string) bool
		if extFilter != "" {
			allowed := map[string]bool{}
			for _, e := range strings.Split(extFilter, ",") {
				e = strings.TrimSpace(strings.ToLower(e))
				if !strings.HasPrefix(e, ".") {
					e = "." + e
				}
				allowed[e] = true
			}
			filter = func(path string) bool {
				return allowed[strings.ToLower(filepath.Ext(path))]
			}
		}

		opts := sanitizeOptions(cmd)
		var failures int
		for ev := range engine.BatchSanitize(paths, filter, opts) {
			switch ev.Kind {
			case engine.EventStarted:
				p.PrintInfo(fmt.Sprintf("Sanitizing %d file(s)", ev.Total))
			case engine.EventProcessing:
				p.PrintInfo(fmt.Sprintf("[%d] %s", ev.Index, ev.Path))
			case engine.EventSuccess:
				p.PrintSuccess(ev.Path)
			case engine.EventFailure:
				core.PrintError(fmt.Sprintf("%s: %v", ev.Path, ev.Err))
			case engine.EventFinished:
				failures = ev.Failures
				p.PrintInfo(fmt.Sprintf("Done: %d ok, %d failed", ev.Successes, ev.Failures))
			}
		}
		if failures > 0 {
			return fmt.Errorf("%d file(s) failed", failures)
		}
		return nil
	},
}

// collectPaths expands directory arguments one level deep into their
// regular files.
func collectPaths(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				paths = append(paths, filepath.Join(a, e.Name()))
			}
		}
	}
	return paths, nil
}

func init() {
	batchCmd.Flags().BoolP("sibling", "s", false, "Write _sin_metadata siblings instead of replacing originals")
	batchCmd.Flags().StringP("ext", "e", "", "Only process files with these extensions (comma-separated)")
	rootCmd.AddCommand(batchCmd)
}
