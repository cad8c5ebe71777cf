package evolve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

const tracerName = "github.com/chazu/pushgp/evolve"

// defaultTracer follows the global provider unless a world is given its own
// with WithTracerProvider.
var defaultTracer = otel.Tracer(tracerName)

var (
	// generationsTotal counts completed world generations.
	generationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pushgp",
		Subsystem: "world",
		Name:      "generations_total",
		Help:      "Total generations run across all worlds",
	})

	// evaluationsTotal counts individual evaluations.
	// Labels: island, outcome (ok, failed)
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pushgp",
		Subsystem: "island",
		Name:      "evaluations_total",
		Help:      "Total individuals evaluated",
	}, []string{"island", "outcome"})

	// generationDuration measures how long one island takes to evaluate a
	// generation.
	// Labels: island
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pushgp",
		Subsystem: "island",
		Name:      "generation_duration_seconds",
		Help:      "Time to evaluate and sort one island generation",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"island"})

	// migrationsTotal counts individuals moved between islands.
	// Labels: algorithm
	migrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pushgp",
		Subsystem: "world",
		Name:      "migrations_total",
		Help:      "Total individuals migrated between islands",
	}, []string{"algorithm"})

	// bestPoints tracks the size of each island's most fit program.
	// Labels: island
	bestPoints = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pushgp",
		Subsystem: "island",
		Name:      "best_points",
		Help:      "Points in the most fit program of the latest generation",
	}, []string{"island"})
)

func recordIslandStats(stats IslandStats, best int) {
	evaluationsTotal.WithLabelValues(stats.Island, "ok").Add(float64(stats.Evaluated - stats.Failed))
	evaluationsTotal.WithLabelValues(stats.Island, "failed").Add(float64(stats.Failed))
	generationDuration.WithLabelValues(stats.Island).Observe(stats.Duration.Seconds())
	bestPoints.WithLabelValues(stats.Island).Set(float64(best))
}
