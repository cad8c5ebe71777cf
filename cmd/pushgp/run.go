package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/chazu/pushgp/evolve"
	"github.com/chazu/pushgp/experiments/regression"
	"github.com/chazu/pushgp/history"
	"github.com/chazu/pushgp/manifest"
)

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		seed        uint64
		generations int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve a program for the configured regression target",
		Long: `Run the integer symbolic regression experiment described by the
experiment file. Generations continue until [run] generations is reached or
the best error drops to [run] stop-at-error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := loadManifest(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				m.Engine.Seed = seed
			}
			if cmd.Flags().Changed("generations") {
				m.Run.Generations = generations
			}
			if err := m.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runExperiment(ctx, cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Experiment file (default: search for experiment.toml)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Override [engine] seed")
	cmd.Flags().IntVar(&generations, "generations", 0, "Override [run] generations")
	return cmd
}

// runExperiment runs m to completion and prints the best program found.
func runExperiment(ctx context.Context, out io.Writer, m *manifest.Manifest) error {
	var opts []evolve.WorldOption

	if m.History.Database != "" {
		rec, err := history.Open(m.History.Database)
		if err != nil {
			return err
		}
		defer rec.Close()

		config, err := encodeManifest(m)
		if err != nil {
			return err
		}
		runID, err := rec.StartRun(ctx, m.Engine.Seed, config)
		if err != nil {
			return err
		}
		logger.Info("recording run", "run", runID, "database", m.History.Database)
		opts = append(opts, evolve.WithObserver(rec))
	}

	if m.Metrics.Listen != "" {
		_, shutdown, err := serveMetrics(m.Metrics.Listen)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	world, err := buildWorld(m, opts...)
	if err != nil {
		return err
	}

	err = world.RunGenerationsWhile(ctx, func(w *evolve.World[regression.Score]) bool {
		if w.Generation() >= m.Run.Generations {
			return false
		}
		_, score, ok := regression.Best(w)
		return !ok || score.Error > m.Run.StopAtError
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	best, score, ok := regression.Best(world)
	if !ok {
		return errors.New("no individual was evaluated successfully")
	}
	fmt.Fprintf(out, "generation %d: %s\n", world.Generation(), score)
	fmt.Fprintln(out, world.Engine().Format(best.Code))
	return nil
}

// serveMetrics exposes the Prometheus registry at /metrics on addr. It
// returns the bound address and a function that stops the server.
func serveMetrics(addr string) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
