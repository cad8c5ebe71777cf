package evolve

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IslandReport summarizes one island after a generation has been evaluated
// and sorted.
type IslandReport struct {
	IslandStats
	Population int

	// Best* describe the most fit individual. They are zero when the island
	// is empty or every individual failed.
	BestID     uuid.UUID
	BestCode   string
	BestPoints int
	BestResult string
}

// GenerationReport summarizes one World generation.
type GenerationReport struct {
	Generation int
	Islands    []IslandReport
	Duration   time.Duration
}

// Observer receives reports as a World runs. Observers are called
// synchronously between generations; an error stops the run.
type Observer interface {
	GenerationCompleted(ctx context.Context, report GenerationReport) error
	MigrationCompleted(ctx context.Context, report MigrationReport) error
}
