// pushgp CLI - evolve, run and format Push programs
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "pushgp",
		Short: "Push genetic programming toolkit",
		Long: `pushgp evolves Push programs with an island model, and runs or formats
single programs.

Experiments are configured by experiment.toml (or experiment.yaml), found by
walking up from the current directory unless --config is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			setLogger(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(
		newRunCmd(),
		newExecCmd(),
		newFmtCmd(),
		newWeightsCmd(),
		newHistoryCmd(),
	)
	return root
}
