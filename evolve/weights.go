package evolve

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/pushgp/vm"
)

// HeuristicInstructionWeights estimates instruction weights from random
// programs. Each run fills every island with ten random individuals and
// evaluates one generation; the instructions of each island's most and least
// fit individual are counted. An instruction's weight is
// floor((fitFreq - unfitFreq/2) * 255), clamped to [0, 255], where a
// frequency is the instruction's share of all counted atoms. Instructions
// never seen are left out of the result.
//
// All islands are cleared before and after, and the world configuration is
// restored afterwards, so call this before starting a normal run.
func (w *World[R]) HeuristicInstructionWeights(ctx context.Context, runs int) (map[string]uint8, error) {
	saved := w.config
	savedUntil := w.untilMigration
	w.config = WorldConfiguration{
		IndividualsPerIsland: 10,
		MigrationAlgorithm:   Circular(),
		SelectForMigration:   Fair,
		SelectAsParent:       Fair,
		SelectAsElite:        Fair,
		Threading:            saved.Threading,
	}
	defer func() {
		w.ResetAllIslands()
		w.config = saved
		w.untilMigration = savedUntil
	}()

	table := w.engine.Table()
	fit := make(map[string]int)
	unfit := make(map[string]int)
	count := func(counts map[string]int, c vm.Code) {
		for _, atom := range c.ExtractAtoms() {
			counts[table.Name(atom.Opcode())]++
		}
	}

	for run := range runs {
		w.ResetAllIslands()
		if err := w.FillAllIslands(); err != nil {
			return nil, fmt.Errorf("heuristic run %d: %w", run, err)
		}
		stats, err := w.evaluate(ctx)
		if err != nil {
			return nil, fmt.Errorf("heuristic run %d: %w", run, err)
		}
		for i, island := range w.islands {
			if best, ok := island.MostFit(); ok {
				count(fit, best.Code)
			}
			if worst, ok := island.LeastFit(); ok {
				count(unfit, worst.Code)
			}
			w.logger.Debug("heuristic run evaluated", "run", run, "island", island.name, "failed", stats[i].Failed)
		}
	}

	fitTotal, unfitTotal := total(fit), total(unfit)
	weights := make(map[string]uint8)
	for _, name := range table.Names() {
		if name == vm.ListInstructionName {
			continue
		}
		fitFreq := frequency(fit[name], fitTotal)
		unfitFreq := frequency(unfit[name], unfitTotal) * 0.5
		if fitFreq == 0 && unfitFreq == 0 {
			continue
		}
		score := fitFreq - unfitFreq
		if score <= 0 {
			weights[name] = 0
			continue
		}
		weights[name] = uint8(min(math.Floor(score*255), 255))
	}
	return weights, nil
}

func total(counts map[string]int) int {
	sum := 0
	for _, n := range counts {
		sum += n
	}
	return sum
}

func frequency(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
