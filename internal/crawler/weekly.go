package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/case-scanner/internal/fetch"
	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/models"
	"github.com/case-scanner/internal/normalize"
	"github.com/case-scanner/internal/storage"
	"github.com/case-scanner/internal/types"
)

// SubscriptionLister yields the active subscriptions due for a re-check.
type SubscriptionLister interface {
	ListActive(ctx context.Context) ([]models.Subscription, error)
}

// ApplicationStore is the slice of the application repository the weekly
// loop needs: read the persisted state for change detection and write the
// refetched record back on the single-record path.
type ApplicationStore interface {
	GetByNumber(ctx context.Context, applicationNumber string) (*models.Application, error)
	Upsert(ctx context.Context, rec *models.CaseRecord) error
	MarkNotFound(ctx context.Context, applicationNumber string) error
}

// WeeklyConfig wires the subscription re-check loop.
type WeeklyConfig struct {
	Fetcher       fetch.Fetcher
	Subscriptions SubscriptionLister
	Applications  ApplicationStore

	// Observations is optional; nil disables the change history.
	Observations ObservationSink

	PolitenessDelay time.Duration
}

// Weekly re-fetches every subscribed case one at a time, refreshing the
// persisted record and flagging whether the last major event moved since
// the previous check.
type Weekly struct {
	fetcher       fetch.Fetcher
	subscriptions SubscriptionLister
	applications  ApplicationStore
	observations  ObservationSink
	limiter       *rate.Limiter
}

// NewWeekly creates the subscription re-check loop.
func NewWeekly(cfg *WeeklyConfig) (*Weekly, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if cfg.Subscriptions == nil {
		return nil, fmt.Errorf("subscription lister cannot be nil")
	}
	if cfg.Applications == nil {
		return nil, fmt.Errorf("application store cannot be nil")
	}

	limit := rate.Inf
	if cfg.PolitenessDelay > 0 {
		limit = rate.Every(cfg.PolitenessDelay)
	}

	return &Weekly{
		fetcher:       cfg.Fetcher,
		subscriptions: cfg.Subscriptions,
		applications:  cfg.Applications,
		observations:  cfg.Observations,
		limiter:       rate.NewLimiter(limit, 1),
	}, nil
}

// Run re-checks every active subscription once. A failed case never stops
// the pass: the remaining subscriptions are still due their check. Only
// cancellation and a failed subscription listing abort the run.
func (w *Weekly) Run(ctx context.Context) (StatsSnapshot, error) {
	stats := NewStats(types.ModeWeekly)
	logger := logging.FromContext(ctx).WithField("runId", stats.RunID().String())
	ctx = logging.WithLogger(ctx, logger)

	subs, err := w.subscriptions.ListActive(ctx)
	if err != nil {
		return stats.Snapshot(), fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	logger.WithField("subscriptions", len(subs)).Info("weekly re-check starting")

	var pending []models.Observation
	for _, sub := range subs {
		if err := w.limiter.Wait(ctx); err != nil {
			return stats.Snapshot(), err
		}

		obs, outcome := w.check(ctx, sub, stats.RunID())
		stats.CountOutcome(outcome)
		if w.observations != nil {
			pending = append(pending, obs)
		}
	}

	if w.observations != nil && len(pending) > 0 {
		if err := w.observations.Record(ctx, pending); err != nil {
			logger.ErrorWithErr("failed to record observations", err)
		}
	}

	snapshot := stats.Snapshot()
	logger.WithFields(snapshot.Fields()).Info("weekly re-check finished")
	return snapshot, nil
}

// check re-fetches one subscribed case, persists the fresh record on the
// single-record path, and reports whether its last major event changed.
func (w *Weekly) check(ctx context.Context, sub models.Subscription, runID uuid.UUID) (models.Observation, types.FetchOutcome) {
	logger := logging.FromContext(ctx).WithField("applicationNumber", sub.ApplicationNumber)
	obs := models.Observation{
		RunID:             runID,
		Mode:              types.ModeWeekly,
		ApplicationNumber: sub.ApplicationNumber,
		ObservedAt:        time.Now().UTC(),
	}

	number, year, err := models.ParseApplicationID(sub.ApplicationNumber)
	if err != nil {
		logger.ErrorWithErr("subscription carries a malformed application number", err)
		obs.Outcome = types.OutcomeError
		return obs, obs.Outcome
	}

	// The persisted state before the refetch is the change baseline. A case
	// we cannot read is still re-checked; it just cannot report a delta.
	var previousEvent string
	if app, err := w.applications.GetByNumber(ctx, sub.ApplicationNumber); err == nil {
		if app.LastMajorEvent != nil {
			previousEvent = *app.LastMajorEvent
		}
	} else if !errors.Is(err, storage.ErrApplicationNotFound) {
		logger.ErrorWithErr("failed to read persisted case", err)
	}

	record, err := w.fetcher.Fetch(ctx, number, year)
	switch {
	case err == nil:
		if upsertErr := w.applications.Upsert(ctx, record); upsertErr != nil {
			logger.ErrorWithErr("failed to persist re-checked case", upsertErr)
			obs.Outcome = types.OutcomeError
			return obs, obs.Outcome
		}
		obs.Outcome = types.OutcomeFound
		obs.Title = record.Title
		obs.EventCount = len(record.Events)
		if last, ok := record.LastEvent(); ok {
			obs.LastMajorEvent = last.Description
			obs.IsClosed = normalize.IsClosed(last.Description)
		}
		obs.Changed = obs.LastMajorEvent != previousEvent
		if obs.Changed {
			logger.WithFields(map[string]any{
				"previousEvent": previousEvent,
				"currentEvent":  obs.LastMajorEvent,
			}).Info("subscribed case changed")
		}

	case fetch.IsNotFound(err):
		// A case that was once registered and now answers not-found counts
		// toward the permanent skip flag like any other miss.
		if markErr := w.applications.MarkNotFound(ctx, sub.ApplicationNumber); markErr != nil {
			logger.ErrorWithErr("failed to mark case not found", markErr)
		}
		obs.Outcome = types.OutcomeNotFound

	default:
		logger.ErrorWithErr("re-check fetch failed", err)
		obs.Outcome = types.OutcomeError
	}

	return obs, obs.Outcome
}
