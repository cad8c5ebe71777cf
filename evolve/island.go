package evolve

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/chazu/pushgp/vm"
)

// IslandCallbacks is implemented by an experiment to evaluate and rank the
// individuals of one island.
//
// RunIndividual receives an engine that has just been cleared; a typical
// implementation calls ind.Load(e), sets up inputs, runs the engine and
// scores what is left on the stacks. A returned error marks the individual
// failed: it sorts below every successful individual and the generation
// continues.
//
// SortIndividuals is a total order, ascending from least to most fit. It is
// only called for successfully evaluated individuals.
type IslandCallbacks[R any] interface {
	PreGenerationRun(e *vm.Engine, individuals []*Individual[R])
	RunIndividual(e *vm.Engine, ind *Individual[R]) (R, error)
	PostGenerationRun(e *vm.Engine, individuals []*Individual[R])
	SortIndividuals(a, b *Individual[R]) int
}

// NopGenerationHooks can be embedded by callbacks that need no per-generation
// setup or cleanup.
type NopGenerationHooks[R any] struct{}

func (NopGenerationHooks[R]) PreGenerationRun(*vm.Engine, []*Individual[R])  {}
func (NopGenerationHooks[R]) PostGenerationRun(*vm.Engine, []*Individual[R]) {}

// IslandStats summarizes one island's generation.
type IslandStats struct {
	Island    string
	Evaluated int
	Failed    int
	Duration  time.Duration
}

// Island is a sub-population with its own callbacks and its own engine. The
// current generation is kept sorted least fit first once it has run.
type Island[R any] struct {
	name        string
	callbacks   IslandCallbacks[R]
	engine      *vm.Engine
	individuals []*Individual[R]
	future      []*Individual[R]
}

func newIsland[R any](name string, callbacks IslandCallbacks[R], engine *vm.Engine) *Island[R] {
	return &Island[R]{name: name, callbacks: callbacks, engine: engine}
}

func (is *Island[R]) Name() string                  { return is.name }
func (is *Island[R]) Callbacks() IslandCallbacks[R] { return is.callbacks }
func (is *Island[R]) Engine() *vm.Engine            { return is.engine }
func (is *Island[R]) Len() int                      { return len(is.individuals) }
func (is *Island[R]) Individuals() []*Individual[R] { return slices.Clone(is.individuals) }

// MostFit returns the last individual of the sorted generation.
func (is *Island[R]) MostFit() (*Individual[R], bool) {
	if len(is.individuals) == 0 {
		return nil, false
	}
	return is.individuals[len(is.individuals)-1], true
}

// LeastFit returns the first individual of the sorted generation.
func (is *Island[R]) LeastFit() (*Individual[R], bool) {
	if len(is.individuals) == 0 {
		return nil, false
	}
	return is.individuals[0], true
}

// SelectOne picks an individual from the current generation with curve.
func (is *Island[R]) SelectOne(curve SelectionCurve, rng *rand.Rand) (*Individual[R], bool) {
	if len(is.individuals) == 0 {
		return nil, false
	}
	return is.individuals[curve.Pick(rng, len(is.individuals))], true
}

// Clear removes every individual, current and staged.
func (is *Island[R]) Clear() {
	is.individuals = nil
	is.future = nil
}

func (is *Island[R]) lenFuture() int { return len(is.future) }

func (is *Island[R]) addToFuture(ind *Individual[R]) {
	is.future = append(is.future, ind)
}

// advanceGeneration makes the staged individuals the current generation.
func (is *Island[R]) advanceGeneration() {
	is.individuals, is.future = is.future, nil
	for _, ind := range is.individuals {
		ind.resetResult()
	}
}

// compare puts failed and unevaluated individuals first.
func (is *Island[R]) compare(a, b *Individual[R]) int {
	aRanked := a.Evaluated() && !a.Failed()
	bRanked := b.Evaluated() && !b.Failed()
	switch {
	case !aRanked && !bRanked:
		return 0
	case !aRanked:
		return -1
	case !bRanked:
		return 1
	}
	return is.callbacks.SortIndividuals(a, b)
}

func (is *Island[R]) sort() {
	slices.SortStableFunc(is.individuals, is.compare)
}

// runOneGeneration evaluates every individual and sorts the result.
func (is *Island[R]) runOneGeneration(ctx context.Context) (IslandStats, error) {
	start := time.Now()
	stats := IslandStats{Island: is.name}
	e := is.engine

	is.callbacks.PreGenerationRun(e, is.individuals)
	for _, ind := range is.individuals {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		e.Clear()
		result, err := is.callbacks.RunIndividual(e, ind)
		stats.Evaluated++
		if err != nil {
			ind.setFailed(err)
			stats.Failed++
			e.Logger().Debug("individual failed", "island", is.name, "individual", ind.ID, "error", err)
			continue
		}
		ind.setResult(result)
	}
	is.callbacks.PostGenerationRun(e, is.individuals)

	is.sort()
	stats.Duration = time.Since(start)
	return stats, nil
}
