// Package manifest handles experiment.toml (or experiment.yaml) run
// configuration.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Names searched for by FindAndLoad, in order.
var FileNames = []string{"experiment.toml", "experiment.yaml", "experiment.yml"}

var validate = validator.New()

// Manifest represents an experiment configuration.
type Manifest struct {
	Engine  Engine  `toml:"engine" yaml:"engine"`
	World   World   `toml:"world" yaml:"world"`
	Run     Run     `toml:"run" yaml:"run"`
	History History `toml:"history" yaml:"history"`
	Metrics Metrics `toml:"metrics" yaml:"metrics"`

	// Path is the file the manifest was loaded from (set at load time).
	Path string `toml:"-" yaml:"-"`
}

// Engine configures the push engine shared by every island.
type Engine struct {
	Seed uint64 `toml:"seed" yaml:"seed"`

	MaxMemorySize                int   `toml:"max-memory-size" yaml:"max-memory-size" validate:"gte=1"`
	MaxPointsInRandomExpressions int   `toml:"max-points-in-random-expressions" yaml:"max-points-in-random-expressions" validate:"gte=1"`
	MaxPointsInProgram           int   `toml:"max-points-in-program" yaml:"max-points-in-program" validate:"gte=1"`
	CrossoverRate                uint8 `toml:"crossover-rate" yaml:"crossover-rate"`
	MutationRate                 uint8 `toml:"mutation-rate" yaml:"mutation-rate"`
	DefinedNameWeight            uint8 `toml:"defined-name-weight" yaml:"defined-name-weight"`

	MinRandomInteger int64   `toml:"min-random-integer" yaml:"min-random-integer"`
	MaxRandomInteger int64   `toml:"max-random-integer" yaml:"max-random-integer" validate:"gtefield=MinRandomInteger"`
	MinRandomFloat   float64 `toml:"min-random-float" yaml:"min-random-float"`
	MaxRandomFloat   float64 `toml:"max-random-float" yaml:"max-random-float" validate:"gtefield=MinRandomFloat"`

	// Disable lists instruction names and DisableTags whole families that
	// random code never uses.
	Disable     []string `toml:"disable" yaml:"disable"`
	DisableTags []string `toml:"disable-tags" yaml:"disable-tags"`

	Weights map[string]uint8 `toml:"weights" yaml:"weights"`
}

// World configures the island model.
type World struct {
	Islands                       int    `toml:"islands" yaml:"islands" validate:"gte=1"`
	IndividualsPerIsland          int    `toml:"individuals-per-island" yaml:"individuals-per-island" validate:"gte=1"`
	EliteIndividualsPerGeneration int    `toml:"elite-individuals-per-generation" yaml:"elite-individuals-per-generation" validate:"gte=0,ltefield=IndividualsPerIsland"`
	GenerationsBetweenMigrations  int    `toml:"generations-between-migrations" yaml:"generations-between-migrations" validate:"gte=0"`
	NumberOfIndividualsMigrating  int    `toml:"individuals-migrating" yaml:"individuals-migrating" validate:"gte=0"`
	MigrationAlgorithm            string `toml:"migration-algorithm" yaml:"migration-algorithm" validate:"required"`
	CloneMigratedIndividuals      bool   `toml:"clone-migrated-individuals" yaml:"clone-migrated-individuals"`

	SelectForMigration   string `toml:"select-for-migration" yaml:"select-for-migration" validate:"required"`
	SelectForReplacement string `toml:"select-for-replacement" yaml:"select-for-replacement" validate:"required"`
	SelectAsParent       string `toml:"select-as-parent" yaml:"select-as-parent" validate:"required"`
	SelectAsElite        string `toml:"select-as-elite" yaml:"select-as-elite" validate:"required"`

	Threading string `toml:"threading" yaml:"threading" validate:"oneof=none per-island"`
}

// Run configures the regression experiment and when it stops.
type Run struct {
	Generations int `toml:"generations" yaml:"generations" validate:"gte=1"`
	MaxSteps    int `toml:"max-steps" yaml:"max-steps" validate:"gte=1"`

	// Target holds polynomial coefficients, constant term first.
	Target []int64 `toml:"target" yaml:"target" validate:"min=1"`
	Cases  int     `toml:"cases" yaml:"cases" validate:"gte=1"`

	InputMin int64 `toml:"input-min" yaml:"input-min"`
	InputMax int64 `toml:"input-max" yaml:"input-max" validate:"gtefield=InputMin"`

	// StopAtError ends the run once any island's best error is at most this.
	StopAtError int64 `toml:"stop-at-error" yaml:"stop-at-error" validate:"gte=0"`
}

// History configures the run-history database.
type History struct {
	Database string `toml:"database" yaml:"database"`
}

// Metrics configures the Prometheus listener.
type Metrics struct {
	Listen string `toml:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}

// Default returns the manifest used for any key a file leaves out.
func Default() *Manifest {
	return &Manifest{
		Engine: Engine{
			Seed:                         1,
			MaxMemorySize:                65536,
			MaxPointsInRandomExpressions: 50,
			MaxPointsInProgram:           200,
			CrossoverRate:                90,
			MutationRate:                 10,
			DefinedNameWeight:            1,
			MinRandomInteger:             -10,
			MaxRandomInteger:             10,
			MinRandomFloat:               -1,
			MaxRandomFloat:               1,
			Weights:                      map[string]uint8{},
		},
		World: World{
			Islands:                       4,
			IndividualsPerIsland:          100,
			EliteIndividualsPerGeneration: 2,
			GenerationsBetweenMigrations:  10,
			NumberOfIndividualsMigrating:  10,
			MigrationAlgorithm:            "circular",
			CloneMigratedIndividuals:      true,
			SelectForMigration:            "preference-for-fit",
			SelectForReplacement:          "strong-preference-for-unfit",
			SelectAsParent:                "preference-for-fit",
			SelectAsElite:                 "strong-preference-for-fit",
			Threading:                     "none",
		},
		Run: Run{
			Generations: 50,
			MaxSteps:    200,
			Target:      []int64{1, 0, 1},
			Cases:       10,
			InputMin:    -10,
			InputMax:    10,
		},
	}
}

// Load parses the manifest at path. The format follows the extension:
// .toml, or .yaml/.yml.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if db := m.History.Database; db != "" && db != ":memory:" && !filepath.IsAbs(db) {
		m.History.Database = filepath.Join(filepath.Dir(m.Path), db)
	}
	return m, nil
}

// Parse decodes and validates manifest data. ext selects the format and is
// ".toml", ".yaml" or ".yml".
func Parse(data []byte, ext string) (*Manifest, error) {
	m := Default()
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), m)
		if err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %s", undecoded[0])
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", ext)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks field ranges and that every named algorithm and curve
// exists.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if m.Engine.CrossoverRate == 0 && m.Engine.MutationRate == 0 {
		return errors.New("invalid manifest: crossover-rate and mutation-rate cannot both be zero")
	}
	if _, err := m.WorldConfiguration(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}

// FindAndLoad walks up from startDir to find an experiment file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return Load(path)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}
