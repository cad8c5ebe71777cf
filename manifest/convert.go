package manifest

import (
	"fmt"
	"slices"

	"github.com/chazu/pushgp/evolve"
	"github.com/chazu/pushgp/vm"
)

// VMConfiguration builds the engine configuration. Weighted and disabled
// instruction names must exist in table.
func (m *Manifest) VMConfiguration(table *vm.InstructionTable) (*vm.Configuration, error) {
	e := m.Engine
	cfg := vm.NewConfiguration()
	cfg.MaxMemorySize = e.MaxMemorySize
	cfg.MaxPointsInRandomExpressions = e.MaxPointsInRandomExpressions
	cfg.MaxPointsInProgram = e.MaxPointsInProgram
	cfg.CrossoverRate = e.CrossoverRate
	cfg.MutationRate = e.MutationRate
	cfg.DefinedNameWeight = e.DefinedNameWeight
	cfg.MinRandomInteger = e.MinRandomInteger
	cfg.MaxRandomInteger = e.MaxRandomInteger
	cfg.MinRandomFloat = e.MinRandomFloat
	cfg.MaxRandomFloat = e.MaxRandomFloat

	// Sorted so the first unknown name reported is stable.
	names := make([]string, 0, len(e.Weights))
	for name := range e.Weights {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, ok := table.Lookup(name); !ok {
			return nil, fmt.Errorf("engine.weights: unknown instruction %q", name)
		}
		cfg.SetWeight(name, e.Weights[name])
	}
	for _, name := range e.Disable {
		if _, ok := table.Lookup(name); !ok {
			return nil, fmt.Errorf("engine.disable: unknown instruction %q", name)
		}
		cfg.Disable(name)
	}
	for _, tag := range e.DisableTags {
		cfg.DisableTag(tag)
	}
	return cfg, nil
}

// WorldConfiguration builds the evolve configuration, parsing the named
// migration algorithm, selection curves and threading model.
func (m *Manifest) WorldConfiguration() (evolve.WorldConfiguration, error) {
	w := m.World
	cfg := evolve.WorldConfiguration{
		IndividualsPerIsland:          w.IndividualsPerIsland,
		EliteIndividualsPerGeneration: w.EliteIndividualsPerGeneration,
		GenerationsBetweenMigrations:  w.GenerationsBetweenMigrations,
		NumberOfIndividualsMigrating:  w.NumberOfIndividualsMigrating,
		CloneMigratedIndividuals:      w.CloneMigratedIndividuals,
	}

	var err error
	if cfg.MigrationAlgorithm, err = evolve.ParseMigrationAlgorithm(w.MigrationAlgorithm); err != nil {
		return cfg, err
	}
	if cfg.Threading, err = evolve.ParseThreadingModel(w.Threading); err != nil {
		return cfg, err
	}

	curves := []struct {
		key  string
		name string
		dst  *evolve.SelectionCurve
	}{
		{"select-for-migration", w.SelectForMigration, &cfg.SelectForMigration},
		{"select-for-replacement", w.SelectForReplacement, &cfg.SelectForReplacement},
		{"select-as-parent", w.SelectAsParent, &cfg.SelectAsParent},
		{"select-as-elite", w.SelectAsElite, &cfg.SelectAsElite},
	}
	for _, c := range curves {
		if *c.dst, err = evolve.ParseSelectionCurve(c.name); err != nil {
			return cfg, fmt.Errorf("world.%s: %w", c.key, err)
		}
	}

	return cfg, cfg.Validate()
}
