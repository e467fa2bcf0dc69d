package storage

import (
	"context"
	"fmt"

	"github.com/case-scanner/internal/models"
)

// observationsDDL keeps the history table append-only and cheap to scan by
// case. Applied at startup; ClickHouse treats it as a no-op when present.
const observationsDDL = `
	CREATE TABLE IF NOT EXISTS case_observations (
		run_id             UUID,
		mode               LowCardinality(String),
		application_number String,
		outcome            LowCardinality(String),
		title              String,
		last_major_event   String,
		is_closed          UInt8,
		event_count        UInt32,
		changed            UInt8,
		observed_at        DateTime
	)
	ENGINE = MergeTree()
	ORDER BY (application_number, observed_at)
`

// ObservationRepository appends probe outcomes to ClickHouse, building the
// per-case change history over time. Writes are best-effort from the crawl's
// point of view; callers decide how failures degrade.
type ObservationRepository struct {
	db *ClickHouseDB
}

// NewObservationRepository creates the repository and ensures the table.
func NewObservationRepository(ctx context.Context, db *ClickHouseDB) (*ObservationRepository, error) {
	if err := db.Conn().Exec(ctx, observationsDDL); err != nil {
		return nil, fmt.Errorf("failed to ensure case_observations table: %w", err)
	}
	return &ObservationRepository{db: db}, nil
}

// Record appends a batch of observations.
func (r *ObservationRepository) Record(ctx context.Context, observations []models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO case_observations (
			run_id, mode, application_number, outcome, title,
			last_major_event, is_closed, event_count, changed, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare observation batch: %w", err)
	}

	for _, obs := range observations {
		err := batch.Append(
			obs.RunID,
			string(obs.Mode),
			obs.ApplicationNumber,
			string(obs.Outcome),
			obs.Title,
			obs.LastMajorEvent,
			boolToUInt8(obs.IsClosed),
			uint32(obs.EventCount), // #nosec G115 - event counts are small
			boolToUInt8(obs.Changed),
			obs.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append observation for %s: %w", obs.ApplicationNumber, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send observation batch: %w", err)
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
