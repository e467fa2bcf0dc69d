// Package crawler implements the two crawl control loops: the bulk monthly
// walk over the identifier space and the weekly re-check of subscribed
// cases, together with the batch buffer that feeds the persistence layer.
package crawler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/case-scanner/internal/types"
)

// Stats aggregates per-run counters. All per-attempt errors end up here: the
// run itself never aborts because one probe or flush failed. Safe for
// concurrent reads (the status endpoint snapshots it while the loop runs).
type Stats struct {
	mu sync.RWMutex

	runID     uuid.UUID
	mode      types.CrawlMode
	startedAt time.Time

	found           int
	notFound        int
	fetchErrors     int
	persisted       int
	persistFailures int
	flushes         int

	currentYear   int
	currentNumber int
}

// StatsSnapshot is an immutable copy of the counters, for logging and the
// status API.
type StatsSnapshot struct {
	RunID           uuid.UUID       `json:"runId"`
	Mode            types.CrawlMode `json:"mode"`
	StartedAt       time.Time       `json:"startedAt"`
	Found           int             `json:"found"`
	NotFound        int             `json:"notFound"`
	FetchErrors     int             `json:"fetchErrors"`
	Attempts        int             `json:"attempts"`
	Persisted       int             `json:"persisted"`
	PersistFailures int             `json:"persistFailures"`
	Flushes         int             `json:"flushes"`
	CurrentYear     int             `json:"currentYear"`
	CurrentNumber   int             `json:"currentNumber"`
}

// NewStats creates counters for a fresh run.
func NewStats(mode types.CrawlMode) *Stats {
	return &Stats{
		runID:     uuid.New(),
		mode:      mode,
		startedAt: time.Now().UTC(),
	}
}

// RunID identifies this run in logs and observations.
func (s *Stats) RunID() uuid.UUID {
	return s.runID
}

// CountOutcome tallies one probe result.
func (s *Stats) CountOutcome(outcome types.FetchOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case types.OutcomeFound:
		s.found++
	case types.OutcomeNotFound:
		s.notFound++
	case types.OutcomeError:
		s.fetchErrors++
	}
}

// CountFlush tallies the per-record results of one flush.
func (s *Stats) CountFlush(succeeded, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	s.persisted += succeeded
	s.persistFailures += failed
}

// SetPosition records the identifier the loop probes next.
func (s *Stats) SetPosition(year, number int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentYear = year
	s.currentNumber = number
}

// Snapshot returns a consistent copy of all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		RunID:           s.runID,
		Mode:            s.mode,
		StartedAt:       s.startedAt,
		Found:           s.found,
		NotFound:        s.notFound,
		FetchErrors:     s.fetchErrors,
		Attempts:        s.found + s.notFound + s.fetchErrors,
		Persisted:       s.persisted,
		PersistFailures: s.persistFailures,
		Flushes:         s.flushes,
		CurrentYear:     s.currentYear,
		CurrentNumber:   s.currentNumber,
	}
}

// Fields renders the snapshot for structured logging.
func (s StatsSnapshot) Fields() map[string]any {
	return map[string]any{
		"runId":           s.RunID.String(),
		"mode":            string(s.Mode),
		"found":           s.Found,
		"notFound":        s.NotFound,
		"fetchErrors":     s.FetchErrors,
		"attempts":        s.Attempts,
		"persisted":       s.Persisted,
		"persistFailures": s.PersistFailures,
		"flushes":         s.Flushes,
	}
}
