// Package cli implements the kickstart-trace command-line interface using
// Cobra. It reads the trace files written by the preload library.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/majorcontext/interpose/internal/log"
)

var (
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "kickstart-trace",
	Short: "Inspect file I/O traces written by libinterpose",
	Long: `kickstart-trace reads the <prefix>.<pid> files written by the
libinterpose preload library and reports per-file byte counts, CPU time
and wall-clock duration of the traced processes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := log.Init(log.Options{
			Verbose:    verbose,
			JSONFormat: jsonOut,
			Stderr:     cmd.ErrOrStderr(),
			Component:  "kickstart-trace",
		}); err != nil {
			cmd.PrintErrf("Warning: failed to initialize logging: %v\n", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}
