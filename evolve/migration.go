package evolve

import (
	"fmt"
	"strconv"
	"strings"
)

// MigrationKind names a strategy for choosing destination islands.
type MigrationKind int

const (
	// MigrateCircular sends every island's migrants to the next island.
	MigrateCircular MigrationKind = iota
	// MigrateCyclical sends migrants Distance islands ahead.
	MigrateCyclical
	// MigrateIncremental is MigrateCyclical with a distance that grows by one
	// after every migration, wrapping around and skipping zero.
	MigrateIncremental
	// MigrateRandomCircular shuffles the islands and sends each island's
	// migrants to the next one in the shuffled order.
	MigrateRandomCircular
	// MigrateCompletelyRandom sends each migrant to a random other island.
	MigrateCompletelyRandom
)

var migrationNames = [...]string{
	MigrateCircular:         "circular",
	MigrateCyclical:         "cyclical",
	MigrateIncremental:      "incremental",
	MigrateRandomCircular:   "random-circular",
	MigrateCompletelyRandom: "completely-random",
}

func (k MigrationKind) String() string {
	if k >= 0 && int(k) < len(migrationNames) {
		return migrationNames[k]
	}
	return fmt.Sprintf("MigrationKind(%d)", int(k))
}

// MigrationAlgorithm is a MigrationKind plus the island distance used by the
// cyclical and incremental kinds.
type MigrationAlgorithm struct {
	Kind     MigrationKind
	Distance int
}

func Circular() MigrationAlgorithm { return MigrationAlgorithm{Kind: MigrateCircular, Distance: 1} }

func Cyclical(n int) MigrationAlgorithm { return MigrationAlgorithm{Kind: MigrateCyclical, Distance: n} }

func Incremental(n int) MigrationAlgorithm {
	return MigrationAlgorithm{Kind: MigrateIncremental, Distance: n}
}

func RandomCircular() MigrationAlgorithm { return MigrationAlgorithm{Kind: MigrateRandomCircular} }

func CompletelyRandom() MigrationAlgorithm { return MigrationAlgorithm{Kind: MigrateCompletelyRandom} }

func (m MigrationAlgorithm) String() string {
	switch m.Kind {
	case MigrateCyclical, MigrateIncremental:
		return fmt.Sprintf("%s(%d)", m.Kind, m.Distance)
	}
	return m.Kind.String()
}

// ParseMigrationAlgorithm accepts "circular", "cyclical(3)",
// "incremental(1)", "random-circular" and "completely-random".
func ParseMigrationAlgorithm(s string) (MigrationAlgorithm, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(s), "(")
	distance := 1
	if hasArg {
		digits, ok := strings.CutSuffix(arg, ")")
		n, err := strconv.Atoi(digits)
		if !ok || err != nil {
			return MigrationAlgorithm{}, fmt.Errorf("evolve: bad migration distance in %q", s)
		}
		distance = n
		if distance < 1 {
			return MigrationAlgorithm{}, fmt.Errorf("evolve: migration distance must be positive in %q", s)
		}
	}
	switch name {
	case "circular":
		return Circular(), nil
	case "cyclical":
		return Cyclical(distance), nil
	case "incremental":
		return Incremental(distance), nil
	case "random-circular":
		return RandomCircular(), nil
	case "completely-random":
		return CompletelyRandom(), nil
	}
	return MigrationAlgorithm{}, fmt.Errorf("evolve: unknown migration algorithm %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m MigrationAlgorithm) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MigrationAlgorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseMigrationAlgorithm(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ---------------------------------------------------------------------------
// Migration between islands
// ---------------------------------------------------------------------------

// MigrationReport describes one migration step.
type MigrationReport struct {
	Generation int
	Algorithm  string
	// Moves counts individual transfers across all island pairs.
	Moves int
}

// migrate runs one migration step with the configured algorithm. The islands
// must hold sorted, evaluated generations.
func (w *World[R]) migrate() MigrationReport {
	report := MigrationReport{Generation: w.generation, Algorithm: w.config.MigrationAlgorithm.String()}
	n := len(w.islands)
	if n < 2 {
		return report
	}

	rng := w.engine.Rand()
	algo := &w.config.MigrationAlgorithm
	switch algo.Kind {
	case MigrateCircular:
		report.Moves = w.migrateAllAtDistance(1)
	case MigrateCyclical:
		report.Moves = w.migrateAllAtDistance(algo.Distance)
	case MigrateIncremental:
		report.Moves = w.migrateAllAtDistance(algo.Distance)
		next := (algo.Distance + 1) % n
		if next == 0 {
			next = 1
		}
		algo.Distance = next
	case MigrateRandomCircular:
		order := rng.Perm(n)
		for i, src := range order {
			report.Moves += w.migrateBetween(src, order[(i+1)%n])
		}
	case MigrateCompletelyRandom:
		for src := range n {
			for range w.config.NumberOfIndividualsMigrating {
				dst := rng.IntN(n - 1)
				if dst >= src {
					dst++
				}
				if w.migrateOne(src, dst) {
					report.Moves++
				}
			}
		}
	}

	for _, island := range w.islands {
		island.sort()
	}
	return report
}

func (w *World[R]) migrateAllAtDistance(distance int) int {
	moves := 0
	for src := range w.islands {
		moves += w.migrateBetween(src, (src+distance)%len(w.islands))
	}
	return moves
}

func (w *World[R]) migrateBetween(src, dst int) int {
	if src == dst {
		return 0
	}
	moves := 0
	for range w.config.NumberOfIndividualsMigrating {
		if w.migrateOne(src, dst) {
			moves++
		}
	}
	return moves
}

// migrateOne moves one individual from src to dst. The emigrant is chosen by
// SelectForMigration and the slot it takes by SelectForReplacement. With
// cloning a copy under a new id overwrites the slot; otherwise the two individuals swap, so
// population sizes never change.
func (w *World[R]) migrateOne(src, dst int) bool {
	from, to := w.islands[src], w.islands[dst]
	if from.Len() == 0 || to.Len() == 0 {
		return false
	}
	rng := w.engine.Rand()
	i := w.config.SelectForMigration.Pick(rng, from.Len())
	j := w.config.SelectForReplacement.Pick(rng, to.Len())

	emigrant := from.individuals[i]
	if w.config.CloneMigratedIndividuals {
		to.individuals[j] = emigrant.immigrant()
	} else {
		from.individuals[i], to.individuals[j] = to.individuals[j], emigrant
	}
	w.logger.Debug("individual migrated",
		"from", from.name, "to", to.name, "individual", emigrant.ID, "clone", w.config.CloneMigratedIndividuals)
	return true
}
