package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/pushgp/evolve"
	"github.com/chazu/pushgp/experiments/regression"
	"github.com/chazu/pushgp/manifest"
	"github.com/chazu/pushgp/vm"
)

// loadManifest loads path, or searches upward from the working directory when
// path is empty. Without any file the defaults are used.
func loadManifest(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.Load(path)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		logger.Debug("no experiment file found, using defaults")
		return manifest.Default(), nil
	}
	logger.Debug("loaded experiment", "path", m.Path)
	return m, nil
}

// encodeManifest renders m as TOML, as stored with each recorded run.
func encodeManifest(m *manifest.Manifest) (string, error) {
	var sb strings.Builder
	enc := toml.NewEncoder(&sb)
	enc.Indent = ""
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}
	return sb.String(), nil
}

// buildWorld creates the regression world described by m, with one island
// (and one set of callbacks) per configured island.
func buildWorld(m *manifest.Manifest, opts ...evolve.WorldOption) (*evolve.World[regression.Score], error) {
	table, err := regression.NewTable()
	if err != nil {
		return nil, err
	}
	vmCfg, err := m.VMConfiguration(table)
	if err != nil {
		return nil, err
	}
	worldCfg, err := m.WorldConfiguration()
	if err != nil {
		return nil, err
	}

	engine := vm.NewEngine(table, vmCfg, vm.WithSeed(m.Engine.Seed), vm.WithLogger(logger))
	opts = append([]evolve.WorldOption{evolve.WithLogger(logger)}, opts...)
	world, err := evolve.NewWorld[regression.Score](engine, worldCfg, opts...)
	if err != nil {
		return nil, err
	}

	problem := regression.Problem{
		Target:   m.Run.Target,
		Cases:    m.Run.Cases,
		InputMin: m.Run.InputMin,
		InputMax: m.Run.InputMax,
		MaxSteps: m.Run.MaxSteps,
	}
	for i := range m.World.Islands {
		world.CreateIsland(fmt.Sprintf("island-%d", i), regression.NewCallbacks(problem))
	}
	return world, nil
}
