package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func newWeightsCmd() *cobra.Command {
	var (
		configPath string
		runs       int
	)
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Estimate instruction weights from random programs",
		Long: `Estimate instruction weights by evaluating random populations of the
configured experiment. The output is an [engine.weights] table that can be
pasted into the experiment file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runs < 1 {
				return fmt.Errorf("--runs must be positive, got %d", runs)
			}
			m, err := loadManifest(configPath)
			if err != nil {
				return err
			}
			world, err := buildWorld(m)
			if err != nil {
				return err
			}

			weights, err := world.HeuristicInstructionWeights(cmd.Context(), runs)
			if err != nil {
				return err
			}
			logger.Info("estimated weights", "runs", runs, "instructions", len(weights))

			enc := toml.NewEncoder(cmd.OutOrStdout())
			enc.Indent = ""
			return enc.Encode(map[string]any{
				"engine": map[string]any{"weights": weights},
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Experiment file (default: search for experiment.toml)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of random populations to sample")
	return cmd
}
