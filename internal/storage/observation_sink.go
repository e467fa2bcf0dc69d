package storage

import (
	"context"

	"github.com/case-scanner/internal/circuitbreaker"
	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/models"
)

// observationWriter is the write slice of the observation repository.
type observationWriter interface {
	Record(ctx context.Context, observations []models.Observation) error
}

// GuardedObservations wraps the ClickHouse observation writer with a circuit
// breaker. The history is best-effort: a ClickHouse outage must not stall
// the crawl, so while the breaker is open batches are dropped and counted.
type GuardedObservations struct {
	inner   observationWriter
	breaker *circuitbreaker.CircuitBreaker
	dropped int
}

// NewGuardedObservations wraps a writer with a breaker named for the sink.
func NewGuardedObservations(inner observationWriter) *GuardedObservations {
	return &GuardedObservations{
		inner:   inner,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("clickhouse-observations")),
	}
}

// Record ships one batch of observations, dropping it when the breaker is
// open.
func (g *GuardedObservations) Record(ctx context.Context, observations []models.Observation) error {
	err := g.breaker.Execute(ctx, func() error {
		return g.inner.Record(ctx, observations)
	})
	if err != nil {
		g.dropped += len(observations)
		logging.FromContext(ctx).WithFields(map[string]any{
			"batch":        len(observations),
			"totalDropped": g.dropped,
			"breaker":      string(g.breaker.CurrentState()),
		}).Warn("observation batch dropped")
	}
	return err
}
