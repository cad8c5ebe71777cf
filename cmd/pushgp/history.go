package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/pushgp/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		database   string
	)
	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List recorded runs, or the generations of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if database == "" {
				m, err := loadManifest(configPath)
				if err != nil {
					return err
				}
				database = m.History.Database
			}
			if database == "" {
				return errors.New("no history database: set [history] database or pass --db")
			}

			rec, err := history.Open(database)
			if err != nil {
				return err
			}
			defer rec.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if len(args) == 0 {
				runs, err := rec.Runs(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "RUN\tSTARTED\tSEED\tGENERATIONS\tMIGRATIONS")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
						r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Seed, r.Generations, r.Migrations)
				}
				return nil
			}

			gens, err := rec.Generations(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "GEN\tISLAND\tFAILED\tBEST\tPOINTS\tDURATION")
			for _, g := range gens {
				fmt.Fprintf(tw, "%d\t%s\t%d/%d\t%s\t%d\t%s\n",
					g.Generation, g.Island, g.Failed, g.Evaluated, g.BestResult, g.BestPoints, g.Duration)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Experiment file naming the database")
	cmd.Flags().StringVar(&database, "db", "", "History database (overrides the experiment file)")
	return cmd
}
