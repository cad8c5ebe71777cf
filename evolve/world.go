package evolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/pushgp/vm"
)

// fillRetries bounds attempts to produce an individual that fits
// MaxPointsInProgram.
const fillRetries = 5

// ErrFillFailed is returned when FillAllIslands cannot produce an individual
// within the program size limit.
var ErrFillFailed = errors.New("evolve: unable to generate an individual within the program size limit")

// ThreadingModel chooses how islands are evaluated.
type ThreadingModel int

const (
	// ThreadingNone evaluates islands one after another.
	ThreadingNone ThreadingModel = iota
	// ThreadingPerIsland evaluates each island in its own goroutine.
	ThreadingPerIsland
)

func (t ThreadingModel) String() string {
	if t == ThreadingPerIsland {
		return "per-island"
	}
	return "none"
}

// ParseThreadingModel accepts "none" and "per-island".
func ParseThreadingModel(s string) (ThreadingModel, error) {
	switch s {
	case "none", "":
		return ThreadingNone, nil
	case "per-island":
		return ThreadingPerIsland, nil
	}
	return ThreadingNone, fmt.Errorf("evolve: unknown threading model %q", s)
}

// WorldConfiguration controls population size, elitism, selection and
// migration.
type WorldConfiguration struct {
	// IndividualsPerIsland is the population of every island.
	IndividualsPerIsland int

	// EliteIndividualsPerGeneration individuals are copied unchanged into the
	// next generation. Zero disables elitism.
	EliteIndividualsPerGeneration int

	// GenerationsBetweenMigrations is the migration interval. Zero disables
	// migration.
	GenerationsBetweenMigrations int

	// NumberOfIndividualsMigrating is the number of individuals each source
	// island sends per migration.
	NumberOfIndividualsMigrating int

	MigrationAlgorithm MigrationAlgorithm

	// CloneMigratedIndividuals leaves the emigrant at home and sends a copy.
	// Otherwise the emigrant trades places with the individual it replaces.
	CloneMigratedIndividuals bool

	SelectForMigration   SelectionCurve
	SelectForReplacement SelectionCurve
	SelectAsParent       SelectionCurve
	SelectAsElite        SelectionCurve

	Threading ThreadingModel
}

// DefaultWorldConfiguration returns the default settings.
func DefaultWorldConfiguration() WorldConfiguration {
	return WorldConfiguration{
		IndividualsPerIsland:          100,
		EliteIndividualsPerGeneration: 2,
		GenerationsBetweenMigrations:  10,
		NumberOfIndividualsMigrating:  10,
		MigrationAlgorithm:            Circular(),
		CloneMigratedIndividuals:      true,
		SelectForMigration:            PreferenceForFit,
		SelectForReplacement:          StrongPreferenceForUnfit,
		SelectAsParent:                PreferenceForFit,
		SelectAsElite:                 StrongPreferenceForFit,
		Threading:                     ThreadingNone,
	}
}

// Validate reports the first inconsistent setting.
func (c WorldConfiguration) Validate() error {
	switch {
	case c.IndividualsPerIsland < 1:
		return fmt.Errorf("evolve: individuals per island must be positive, got %d", c.IndividualsPerIsland)
	case c.EliteIndividualsPerGeneration < 0 || c.EliteIndividualsPerGeneration > c.IndividualsPerIsland:
		return fmt.Errorf("evolve: elite individuals must be in [0, %d], got %d",
			c.IndividualsPerIsland, c.EliteIndividualsPerGeneration)
	case c.GenerationsBetweenMigrations < 0:
		return fmt.Errorf("evolve: generations between migrations must not be negative")
	case c.NumberOfIndividualsMigrating < 0:
		return fmt.Errorf("evolve: individuals migrating must not be negative")
	case (c.MigrationAlgorithm.Kind == MigrateCyclical || c.MigrationAlgorithm.Kind == MigrateIncremental) &&
		c.MigrationAlgorithm.Distance < 1:
		return fmt.Errorf("evolve: %s needs a positive distance", c.MigrationAlgorithm.Kind)
	}
	return nil
}

// WorldOption configures a World.
type WorldOption func(*worldOptions)

type worldOptions struct {
	logger    *slog.Logger
	observers []Observer
	tracer    trace.Tracer
}

// WithLogger sets the world's logger.
func WithLogger(logger *slog.Logger) WorldOption {
	return func(o *worldOptions) { o.logger = logger }
}

// WithTracerProvider traces the world's generations and migrations with tp
// instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) WorldOption {
	return func(o *worldOptions) { o.tracer = tp.Tracer(tracerName) }
}

// WithObserver adds an observer notified after each generation and
// migration.
func WithObserver(obs Observer) WorldOption {
	return func(o *worldOptions) { o.observers = append(o.observers, obs) }
}

// ---------------------------------------------------------------------------
// World
// ---------------------------------------------------------------------------

// World owns an engine and a fixed set of islands, and drives generations
// and scheduled migration. The world engine fills islands and picks
// migrants; each island evaluates on its own engine forked at creation, so a
// run is reproducible from the world engine's seed whatever the threading
// model.
type World[R any] struct {
	engine    *vm.Engine
	config    WorldConfiguration
	islands   []*Island[R]
	logger    *slog.Logger
	observers []Observer
	tracer    trace.Tracer

	generation     int
	untilMigration int
}

// NewWorld creates a world without islands.
func NewWorld[R any](engine *vm.Engine, cfg WorldConfiguration, opts ...WorldOption) (*World[R], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := worldOptions{logger: engine.Logger(), tracer: defaultTracer}
	for _, opt := range opts {
		opt(&o)
	}
	return &World[R]{
		engine:         engine,
		config:         cfg,
		logger:         o.logger,
		observers:      o.observers,
		tracer:         o.tracer,
		untilMigration: cfg.GenerationsBetweenMigrations,
	}, nil
}

func (w *World[R]) Engine() *vm.Engine                { return w.engine }
func (w *World[R]) Configuration() WorldConfiguration { return w.config }
func (w *World[R]) Len() int                          { return len(w.islands) }

// Generation returns the number of generations run so far.
func (w *World[R]) Generation() int { return w.generation }

// CreateIsland adds an island and returns its id. Its engine is forked from
// the world engine with the next seed the world engine draws.
func (w *World[R]) CreateIsland(name string, callbacks IslandCallbacks[R]) int {
	id := len(w.islands)
	engine := w.engine.Fork(w.engine.Rand().Uint64())
	w.islands = append(w.islands, newIsland(name, callbacks, engine))
	return id
}

// Island returns the island with the given id.
func (w *World[R]) Island(id int) (*Island[R], bool) {
	if id < 0 || id >= len(w.islands) {
		return nil, false
	}
	return w.islands[id], true
}

// ResetAllIslands removes every individual from every island.
func (w *World[R]) ResetAllIslands() {
	for _, island := range w.islands {
		island.Clear()
	}
}

// ResetConfiguration installs cfg on the world engine and every island
// engine.
func (w *World[R]) ResetConfiguration(cfg *vm.Configuration) {
	w.engine.ResetConfiguration(cfg)
	for _, island := range w.islands {
		island.engine.ResetConfiguration(cfg)
	}
}

// FillAllIslands stages a full generation on every island and makes it
// current. An empty island gets random programs; otherwise the next
// generation is the elites followed by children of parents chosen with
// SelectAsParent.
func (w *World[R]) FillAllIslands() error {
	e := w.engine
	rng := e.Rand()
	for _, island := range w.islands {
		elites := w.config.EliteIndividualsPerGeneration
		for island.lenFuture() < w.config.IndividualsPerIsland {
			e.Clear()

			var next *Individual[R]
			var err error
			switch {
			case island.Len() == 0:
				next, err = w.randomIndividual()
			case elites > 0:
				elites--
				elite, _ := island.SelectOne(w.config.SelectAsElite, rng)
				next = elite.Clone()
			default:
				next, err = w.child(island)
			}
			if err != nil {
				return fmt.Errorf("fill island %s: %w", island.name, err)
			}
			island.addToFuture(next)
		}
		island.advanceGeneration()
	}
	return nil
}

func (w *World[R]) randomIndividual() (*Individual[R], error) {
	limit := w.engine.Configuration().MaxPointsInProgram
	for range fillRetries {
		code := w.engine.RandomCode()
		if limit <= 0 || code.Points() <= limit {
			return NewIndividual[R](code, nil), nil
		}
	}
	return nil, ErrFillFailed
}

// child produces an offspring by mutation or crossover, retrying when the
// result exceeds the program size limit.
func (w *World[R]) child(island *Island[R]) (*Individual[R], error) {
	e := w.engine
	rng := e.Rand()
	var lastErr error
	for range fillRetries {
		left, _ := island.SelectOne(w.config.SelectAsParent, rng)
		right, _ := island.SelectOne(w.config.SelectAsParent, rng)

		var code vm.Code
		var err error
		var parents []*Individual[R]
		if e.SelectGeneticOperation() == vm.Mutation {
			code, err = e.Mutate(left.Code)
			parents = []*Individual[R]{left}
		} else {
			code, err = e.Crossover(left.Code, right.Code)
			parents = []*Individual[R]{right, left}
		}
		if err == nil {
			return descendant(code, parents...), nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %w", ErrFillFailed, lastErr)
}

// RunOneGeneration evaluates every island, notifies observers and migrates
// when the interval has elapsed.
func (w *World[R]) RunOneGeneration(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "evolve.World.RunOneGeneration",
		trace.WithAttributes(
			attribute.Int("generation", w.generation+1),
			attribute.Int("islands", len(w.islands)),
			attribute.String("threading", w.config.Threading.String()),
		),
	)
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	stats, err := w.evaluate(ctx)
	if err != nil {
		return fail(fmt.Errorf("generation %d: %w", w.generation+1, err))
	}
	w.generation++
	generationsTotal.Inc()

	report := GenerationReport{Generation: w.generation, Duration: time.Since(start)}
	for i, island := range w.islands {
		ir := w.islandReport(island, stats[i])
		recordIslandStats(stats[i], ir.BestPoints)
		report.Islands = append(report.Islands, ir)
		w.logger.Debug("island evaluated",
			"island", island.name, "generation", w.generation,
			"failed", ir.Failed, "best_points", ir.BestPoints, "best_result", ir.BestResult)
	}
	w.logger.Info("generation complete",
		"generation", w.generation, "islands", len(w.islands), "duration", report.Duration)

	for _, obs := range w.observers {
		if err := obs.GenerationCompleted(ctx, report); err != nil {
			return fail(fmt.Errorf("observer: %w", err))
		}
	}

	if w.config.GenerationsBetweenMigrations > 0 {
		w.untilMigration--
		if w.untilMigration <= 0 {
			w.untilMigration = w.config.GenerationsBetweenMigrations
			if err := w.MigrateIndividualsBetweenIslands(ctx); err != nil {
				return fail(err)
			}
		}
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// evaluate runs each island's generation, concurrently under
// ThreadingPerIsland.
func (w *World[R]) evaluate(ctx context.Context) ([]IslandStats, error) {
	stats := make([]IslandStats, len(w.islands))
	if w.config.Threading != ThreadingPerIsland || len(w.islands) < 2 {
		for i, island := range w.islands {
			s, err := island.runOneGeneration(ctx)
			if err != nil {
				return nil, fmt.Errorf("island %s: %w", island.name, err)
			}
			stats[i] = s
		}
		return stats, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, island := range w.islands {
		g.Go(func() error {
			s, err := island.runOneGeneration(gctx)
			if err != nil {
				return fmt.Errorf("island %s: %w", island.name, err)
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (w *World[R]) islandReport(island *Island[R], stats IslandStats) IslandReport {
	ir := IslandReport{IslandStats: stats, Population: island.Len()}
	best, ok := island.MostFit()
	if !ok {
		return ir
	}
	result, ok := best.RunResult()
	if !ok {
		return ir
	}
	ir.BestID = best.ID
	ir.BestCode = island.engine.Format(best.Code)
	ir.BestPoints = best.Code.Points()
	ir.BestResult = fmt.Sprint(result)
	return ir
}

// RunGenerationsWhile fills and runs generations until fn returns false. At
// least one generation always runs.
func (w *World[R]) RunGenerationsWhile(ctx context.Context, fn func(*World[R]) bool) error {
	for {
		if err := w.FillAllIslands(); err != nil {
			return err
		}
		if err := w.RunOneGeneration(ctx); err != nil {
			return err
		}
		if !fn(w) {
			return nil
		}
	}
}

// MigrateIndividualsBetweenIslands runs one migration step now. Islands must
// hold evaluated generations.
func (w *World[R]) MigrateIndividualsBetweenIslands(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "evolve.World.Migrate",
		trace.WithAttributes(attribute.String("algorithm", w.config.MigrationAlgorithm.String())),
	)
	defer span.End()

	report := w.migrate()
	migrationsTotal.WithLabelValues(w.config.MigrationAlgorithm.Kind.String()).Add(float64(report.Moves))
	span.SetAttributes(attribute.Int("moves", report.Moves))
	w.logger.Info("migration complete",
		"generation", report.Generation, "algorithm", report.Algorithm, "moves", report.Moves)

	for _, obs := range w.observers {
		if err := obs.MigrationCompleted(ctx, report); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("observer: %w", err)
		}
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
