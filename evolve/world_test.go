package evolve

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/chazu/pushgp/vm"
)

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

// depthCallbacks scores a program by how many integers it leaves behind.
type depthCallbacks struct {
	NopGenerationHooks[int]
}

func (depthCallbacks) RunIndividual(e *vm.Engine, ind *Individual[int]) (int, error) {
	ind.Load(e)
	status := e.Run(200)
	if err := status.Err(); err != nil {
		return 0, err
	}
	return e.Integer().Len(), nil
}

func (depthCallbacks) SortIndividuals(a, b *Individual[int]) int {
	return cmp.Compare(result(a), result(b))
}

func result(ind *Individual[int]) int {
	r, _ := ind.RunResult()
	return r
}

type recordingObserver struct {
	generations []GenerationReport
	migrations   []MigrationReport
	err          error
	migrationErr error
}

func (o *recordingObserver) GenerationCompleted(_ context.Context, r GenerationReport) error {
	o.generations = append(o.generations, r)
	return o.err
}

func (o *recordingObserver) MigrationCompleted(_ context.Context, r MigrationReport) error {
	o.migrations = append(o.migrations, r)
	if o.migrationErr != nil {
		return o.migrationErr
	}
	return o.err
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testEngine(seed uint64) *vm.Engine {
	cfg := vm.NewConfiguration()
	cfg.MaxPointsInRandomExpressions = 20
	return vm.NewEngine(vm.NewBaseTable(), cfg, vm.WithSeed(seed), vm.WithLogger(discardLogger))
}

func smallConfig() WorldConfiguration {
	cfg := DefaultWorldConfiguration()
	cfg.IndividualsPerIsland = 12
	cfg.EliteIndividualsPerGeneration = 2
	cfg.GenerationsBetweenMigrations = 0
	cfg.NumberOfIndividualsMigrating = 3
	return cfg
}

func newTestWorld(t *testing.T, seed uint64, cfg WorldConfiguration, islands int, opts ...WorldOption) *World[int] {
	t.Helper()
	opts = append([]WorldOption{WithLogger(discardLogger)}, opts...)
	w, err := NewWorld[int](testEngine(seed), cfg, opts...)
	require.NoError(t, err)
	for i := range islands {
		w.CreateIsland(string(rune('a'+i)), depthCallbacks{})
	}
	return w
}

func allIndividuals(w *World[int]) []*Individual[int] {
	var out []*Individual[int]
	for id := range w.Len() {
		island, _ := w.Island(id)
		out = append(out, island.Individuals()...)
	}
	return out
}

func allIDs(w *World[int]) []uuid.UUID {
	var ids []uuid.UUID
	for id := range w.Len() {
		island, _ := w.Island(id)
		for _, ind := range island.Individuals() {
			ids = append(ids, ind.ID)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return cmp.Compare(a.String(), b.String()) })
	return ids
}

func bestCodes(w *World[int]) []string {
	var out []string
	for id := range w.Len() {
		island, _ := w.Island(id)
		for _, ind := range island.Individuals() {
			out = append(out, island.Engine().Format(ind.Code))
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

func TestWorldConfigurationValidate(t *testing.T) {
	require.NoError(t, DefaultWorldConfiguration().Validate())

	tests := []struct {
		name   string
		modify func(*WorldConfiguration)
	}{
		{"no individuals", func(c *WorldConfiguration) { c.IndividualsPerIsland = 0 }},
		{"too many elites", func(c *WorldConfiguration) { c.EliteIndividualsPerGeneration = c.IndividualsPerIsland + 1 }},
		{"negative elites", func(c *WorldConfiguration) { c.EliteIndividualsPerGeneration = -1 }},
		{"negative interval", func(c *WorldConfiguration) { c.GenerationsBetweenMigrations = -1 }},
		{"negative migrants", func(c *WorldConfiguration) { c.NumberOfIndividualsMigrating = -1 }},
		{"cyclical zero", func(c *WorldConfiguration) { c.MigrationAlgorithm = Cyclical(0) }},
		{"incremental zero", func(c *WorldConfiguration) { c.MigrationAlgorithm = Incremental(0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultWorldConfiguration()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := NewWorld[int](testEngine(1), cfg)
			assert.Error(t, err)
		})
	}
}

func TestParseMigrationAlgorithm(t *testing.T) {
	tests := []struct {
		in   string
		want MigrationAlgorithm
	}{
		{"circular", Circular()},
		{"cyclical(3)", Cyclical(3)},
		{"incremental(1)", Incremental(1)},
		{"random-circular", RandomCircular()},
		{"completely-random", CompletelyRandom()},
		{" cyclical(2) ", Cyclical(2)},
	}
	for _, tt := range tests {
		got, err := ParseMigrationAlgorithm(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)

		again, err := ParseMigrationAlgorithm(got.String())
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}

	for _, bad := range []string{"", "spiral", "cyclical(x)", "cyclical(0)", "incremental(-2)",
		"cyclical(3)xyz", "cyclical(3", "cyclical(3))", "incremental( 2)"} {
		_, err := ParseMigrationAlgorithm(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseThreadingModel(t *testing.T) {
	for _, m := range []ThreadingModel{ThreadingNone, ThreadingPerIsland} {
		got, err := ParseThreadingModel(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseThreadingModel("per-individual")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Filling and running
// ---------------------------------------------------------------------------

func TestCreateIsland(t *testing.T) {
	w := newTestWorld(t, 1, smallConfig(), 0)
	assert.Equal(t, 0, w.CreateIsland("first", depthCallbacks{}))
	assert.Equal(t, 1, w.CreateIsland("second", depthCallbacks{}))
	assert.Equal(t, 2, w.Len())

	island, ok := w.Island(1)
	require.True(t, ok)
	assert.Equal(t, "second", island.Name())
	assert.NotSame(t, w.Engine(), island.Engine())

	_, ok = w.Island(2)
	assert.False(t, ok)
	_, ok = w.Island(-1)
	assert.False(t, ok)
}

func TestFillAllIslands(t *testing.T) {
	cfg := smallConfig()
	w := newTestWorld(t, 7, cfg, 3)
	require.NoError(t, w.FillAllIslands())

	for id := range w.Len() {
		island, _ := w.Island(id)
		assert.Equal(t, cfg.IndividualsPerIsland, island.Len())
		for _, ind := range island.Individuals() {
			assert.LessOrEqual(t, ind.Code.Points(), 20)
			assert.False(t, ind.Evaluated())
			assert.Empty(t, ind.Parents)
		}
	}
}

func TestElitesAreCarriedForward(t *testing.T) {
	cfg := smallConfig()
	w := newTestWorld(t, 3, cfg, 1)
	ctx := context.Background()

	require.NoError(t, w.FillAllIslands())
	require.NoError(t, w.RunOneGeneration(ctx))
	before := allIDs(w)

	require.NoError(t, w.FillAllIslands())
	island, _ := w.Island(0)
	assert.Equal(t, cfg.IndividualsPerIsland, island.Len())

	kept, children := 0, 0
	for _, ind := range island.Individuals() {
		if _, found := slices.BinarySearchFunc(before, ind.ID, func(a, b uuid.UUID) int {
			return cmp.Compare(a.String(), b.String())
		}); found {
			kept++
			continue
		}
		children++
		assert.NotEmpty(t, ind.Parents)
		for _, p := range ind.Parents {
			_, found := slices.BinarySearchFunc(before, p, func(a, b uuid.UUID) int {
				return cmp.Compare(a.String(), b.String())
			})
			assert.True(t, found, "parent %s is not from the previous generation", p)
		}
	}
	assert.Equal(t, cfg.EliteIndividualsPerGeneration, kept)
	assert.Equal(t, cfg.IndividualsPerIsland-cfg.EliteIndividualsPerGeneration, children)
}

func TestFillFailsWhenProgramsCannotFit(t *testing.T) {
	w := newTestWorld(t, 1, smallConfig(), 1)
	cfg := w.Engine().Configuration().Clone()
	cfg.MaxPointsInProgram = 1
	cfg.MaxPointsInRandomExpressions = 1000
	w.ResetConfiguration(cfg)

	err := w.FillAllIslands()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFillFailed)
}

func TestRunOneGenerationSortsIslands(t *testing.T) {
	obs := &recordingObserver{}
	w := newTestWorld(t, 11, smallConfig(), 2, WithObserver(obs))
	ctx := context.Background()

	require.NoError(t, w.FillAllIslands())
	require.NoError(t, w.RunOneGeneration(ctx))
	assert.Equal(t, 1, w.Generation())

	for id := range w.Len() {
		island, _ := w.Island(id)
		inds := island.Individuals()
		for i := 1; i < len(inds); i++ {
			assert.LessOrEqual(t, result(inds[i-1]), result(inds[i]))
		}
		best, ok := island.MostFit()
		require.True(t, ok)
		assert.Same(t, inds[len(inds)-1], best)
	}

	require.Len(t, obs.generations, 1)
	report := obs.generations[0]
	assert.Equal(t, 1, report.Generation)
	require.Len(t, report.Islands, 2)
	for _, ir := range report.Islands {
		assert.Equal(t, 12, ir.Population)
		assert.Equal(t, 12, ir.Evaluated)
	}
	assert.Empty(t, obs.migrations)
}

func TestRunGenerationsWhile(t *testing.T) {
	w := newTestWorld(t, 5, smallConfig(), 2)
	calls := 0
	err := w.RunGenerationsWhile(context.Background(), func(w *World[int]) bool {
		calls++
		return w.Generation() < 4
	})
	require.NoError(t, err)
	assert.Equal(t, 4, w.Generation())
	assert.Equal(t, 4, calls)

	// The predicate is checked after the generation runs.
	w = newTestWorld(t, 5, smallConfig(), 1)
	require.NoError(t, w.RunGenerationsWhile(context.Background(), func(*World[int]) bool { return false }))
	assert.Equal(t, 1, w.Generation())
}

func TestSameSeedSameEvolution(t *testing.T) {
	run := func(threading ThreadingModel) []string {
		cfg := smallConfig()
		cfg.Threading = threading
		cfg.GenerationsBetweenMigrations = 2
		w := newTestWorld(t, 42, cfg, 3)
		require.NoError(t, w.RunGenerationsWhile(context.Background(), func(w *World[int]) bool {
			return w.Generation() < 5
		}))
		return bestCodes(w)
	}

	sequential := run(ThreadingNone)
	assert.Equal(t, sequential, run(ThreadingNone))
	assert.Equal(t, sequential, run(ThreadingPerIsland))
}

func TestObserverErrorStopsRun(t *testing.T) {
	obs := &recordingObserver{err: errors.New("disk full")}
	w := newTestWorld(t, 1, smallConfig(), 1, WithObserver(obs))

	err := w.RunGenerationsWhile(context.Background(), func(*World[int]) bool { return true })
	require.Error(t, err)
	assert.ErrorIs(t, err, obs.err)
	assert.Len(t, obs.generations, 1)
}

func TestCancelledContextStopsGeneration(t *testing.T) {
	w := newTestWorld(t, 1, smallConfig(), 2)
	require.NoError(t, w.FillAllIslands())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.RunOneGeneration(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, w.Generation())
}

// ---------------------------------------------------------------------------
// Migration
// ---------------------------------------------------------------------------

func TestMigrationPreservesPopulation(t *testing.T) {
	algorithms := []MigrationAlgorithm{
		Circular(), Cyclical(2), Incremental(1), RandomCircular(), CompletelyRandom(),
	}
	for _, algo := range algorithms {
		for _, clone := range []bool{true, false} {
			t.Run(algo.String(), func(t *testing.T) {
				cfg := smallConfig()
				cfg.MigrationAlgorithm = algo
				cfg.CloneMigratedIndividuals = clone
				obs := &recordingObserver{}
				w := newTestWorld(t, 9, cfg, 3, WithObserver(obs))
				ctx := context.Background()

				require.NoError(t, w.FillAllIslands())
				require.NoError(t, w.RunOneGeneration(ctx))
				before := allIDs(w)
				codes := make(map[uuid.UUID]vm.Code)
				for _, ind := range allIndividuals(w) {
					codes[ind.ID] = ind.Code
				}

				require.NoError(t, w.MigrateIndividualsBetweenIslands(ctx))
				require.Len(t, obs.migrations, 1)
				assert.Equal(t, 9, obs.migrations[0].Moves)

				for id := range w.Len() {
					island, _ := w.Island(id)
					assert.Equal(t, cfg.IndividualsPerIsland, island.Len())
				}

				after := allIDs(w)
				assert.Len(t, slices.Compact(slices.Clone(after)), len(after), "ids must stay unique")
				if clone {
					for _, ind := range allIndividuals(w) {
						if slices.Contains(before, ind.ID) {
							continue
						}
						require.Len(t, ind.Parents, 1, "a migrated copy names its emigrant")
						code, ok := codes[ind.Parents[0]]
						require.True(t, ok)
						assert.True(t, code.Equal(ind.Code))
						assert.True(t, ind.Evaluated())
					}
				} else {
					assert.Equal(t, before, after)
				}
			})
		}
	}
}

func TestCyclicalWrapsToSelf(t *testing.T) {
	cfg := smallConfig()
	cfg.MigrationAlgorithm = Cyclical(3)
	obs := &recordingObserver{}
	w := newTestWorld(t, 2, cfg, 3, WithObserver(obs))
	ctx := context.Background()

	require.NoError(t, w.FillAllIslands())
	require.NoError(t, w.RunOneGeneration(ctx))
	require.NoError(t, w.MigrateIndividualsBetweenIslands(ctx))
	require.Len(t, obs.migrations, 1)
	assert.Equal(t, 0, obs.migrations[0].Moves)
}

func TestIncrementalDistanceAdvances(t *testing.T) {
	cfg := smallConfig()
	cfg.MigrationAlgorithm = Incremental(1)
	w := newTestWorld(t, 4, cfg, 3)
	ctx := context.Background()

	require.NoError(t, w.FillAllIslands())
	require.NoError(t, w.RunOneGeneration(ctx))

	require.NoError(t, w.MigrateIndividualsBetweenIslands(ctx))
	assert.Equal(t, 2, w.Configuration().MigrationAlgorithm.Distance)
	require.NoError(t, w.MigrateIndividualsBetweenIslands(ctx))
	assert.Equal(t, 1, w.Configuration().MigrationAlgorithm.Distance)
}

func TestMigrationSchedule(t *testing.T) {
	cfg := smallConfig()
	cfg.GenerationsBetweenMigrations = 2
	obs := &recordingObserver{}
	w := newTestWorld(t, 6, cfg, 2, WithObserver(obs))

	require.NoError(t, w.RunGenerationsWhile(context.Background(), func(w *World[int]) bool {
		return w.Generation() < 5
	}))
	require.Len(t, obs.migrations, 2)
	assert.Equal(t, 2, obs.migrations[0].Generation)
	assert.Equal(t, 4, obs.migrations[1].Generation)
	assert.Equal(t, "circular", obs.migrations[0].Algorithm)
}

func TestGenerationSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	cfg := smallConfig()
	cfg.GenerationsBetweenMigrations = 2
	w := newTestWorld(t, 6, cfg, 2, WithTracerProvider(tp))
	ctx := context.Background()
	require.NoError(t, w.FillAllIslands())
	require.NoError(t, w.RunOneGeneration(ctx))
	require.NoError(t, w.FillAllIslands())
	require.NoError(t, w.RunOneGeneration(ctx))

	statuses := make(map[string][]codes.Code)
	for _, span := range recorder.Ended() {
		statuses[span.Name()] = append(statuses[span.Name()], span.Status().Code)
	}
	assert.Equal(t, []codes.Code{codes.Ok, codes.Ok}, statuses["evolve.World.RunOneGeneration"])
	assert.Equal(t, []codes.Code{codes.Ok}, statuses["evolve.World.Migrate"])
}

func TestGenerationSpanRecordsObserverError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	cfg := smallConfig()
	cfg.GenerationsBetweenMigrations = 1
	obs := &recordingObserver{migrationErr: errors.New("disk full")}
	w := newTestWorld(t, 6, cfg, 2, WithTracerProvider(tp), WithObserver(obs))
	require.NoError(t, w.FillAllIslands())
	require.Error(t, w.RunOneGeneration(context.Background()))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, codes.Error, span.Status().Code, span.Name())
	}
}

func TestMigrationDisabled(t *testing.T) {
	obs := &recordingObserver{}
	w := newTestWorld(t, 6, smallConfig(), 2, WithObserver(obs))
	require.NoError(t, w.RunGenerationsWhile(context.Background(), func(w *World[int]) bool {
		return w.Generation() < 3
	}))
	assert.Len(t, obs.generations, 3)
	assert.Empty(t, obs.migrations)
}

func TestMigrationNeedsTwoIslands(t *testing.T) {
	obs := &recordingObserver{}
	w := newTestWorld(t, 6, smallConfig(), 1, WithObserver(obs))
	ctx := context.Background()
	require.NoError(t, w.FillAllIslands())
	require.NoError(t, w.RunOneGeneration(ctx))
	require.NoError(t, w.MigrateIndividualsBetweenIslands(ctx))
	require.Len(t, obs.migrations, 1)
	assert.Equal(t, 0, obs.migrations[0].Moves)
}

// ---------------------------------------------------------------------------
// Instruction weights
// ---------------------------------------------------------------------------

func TestHeuristicInstructionWeights(t *testing.T) {
	cfg := smallConfig()
	w := newTestWorld(t, 8, cfg, 2)

	weights, err := w.HeuristicInstructionWeights(context.Background(), 3)
	require.NoError(t, err)
	assert.NotEmpty(t, weights)
	assert.NotContains(t, weights, vm.ListInstructionName)
	for name := range weights {
		_, ok := w.Engine().Table().Lookup(name)
		assert.True(t, ok, name)
	}

	assert.Equal(t, cfg, w.Configuration())
	for id := range w.Len() {
		island, _ := w.Island(id)
		assert.Equal(t, 0, island.Len())
	}
}
