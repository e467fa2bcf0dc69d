package crawler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/case-scanner/internal/fetch"
	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/models"
	"github.com/case-scanner/internal/normalize"
	"github.com/case-scanner/internal/storage"
	"github.com/case-scanner/internal/types"
)

// NotFoundMarker eagerly increments the per-case not-found counter. There is
// no record payload to batch on that path, so it bypasses the buffer.
type NotFoundMarker interface {
	MarkNotFound(ctx context.Context, applicationNumber string) error
}

// ObservationSink appends probe outcomes to the change history. Sink
// failures degrade the history, never the crawl.
type ObservationSink interface {
	Record(ctx context.Context, observations []models.Observation) error
}

// Checkpointer persists the resumable crawl position.
type Checkpointer interface {
	Save(ctx context.Context, cp storage.Checkpoint) error
	Load(ctx context.Context) (storage.Checkpoint, bool, error)
	Clear(ctx context.Context) error
}

// CrawlerConfig wires the bulk crawl loop.
type CrawlerConfig struct {
	Fetcher fetch.Fetcher
	Loader  Loader
	Marker  NotFoundMarker

	// Observations and Checkpoints are optional; nil disables them.
	Observations ObservationSink
	Checkpoints  Checkpointer

	StartYear           int
	MaxYear             int
	StartNumber         int
	MaxConsecutiveSkips int
	BatchFlushAttempts  int
	PolitenessDelay     time.Duration
	Resume              bool
}

// segment is the per-year state machine: the identifier being probed and the
// current run of consecutive skips.
type segment struct {
	year             int
	number           int
	consecutiveSkips int
}

// Crawler walks the identifier space year by year, probing sequential
// numbers until the consecutive-skip budget of a year is spent, buffering
// found records and flushing them in bounded batches. One fetch-then-wait
// cycle executes at a time; there are no concurrent probes.
type Crawler struct {
	fetcher      fetch.Fetcher
	batch        *Batch
	marker       NotFoundMarker
	observations ObservationSink
	checkpoints  Checkpointer
	limiter      *rate.Limiter
	cfg          *CrawlerConfig
	stats        *Stats

	pendingObs []models.Observation
}

// NewCrawler creates a bulk crawler. Missing collaborators or nonsensical
// bounds are configuration errors: the run must not start.
func NewCrawler(cfg *CrawlerConfig) (*Crawler, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if cfg.Loader == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}
	if cfg.Marker == nil {
		return nil, fmt.Errorf("not-found marker cannot be nil")
	}
	if cfg.StartYear > cfg.MaxYear {
		return nil, fmt.Errorf("start year %d exceeds max year %d", cfg.StartYear, cfg.MaxYear)
	}
	if cfg.StartNumber < 1 {
		return nil, fmt.Errorf("start number must be positive, got %d", cfg.StartNumber)
	}
	if cfg.MaxConsecutiveSkips < 1 {
		return nil, fmt.Errorf("max consecutive skips must be positive, got %d", cfg.MaxConsecutiveSkips)
	}
	if cfg.BatchFlushAttempts < 1 {
		return nil, fmt.Errorf("batch flush attempts must be positive, got %d", cfg.BatchFlushAttempts)
	}

	limit := rate.Inf
	if cfg.PolitenessDelay > 0 {
		limit = rate.Every(cfg.PolitenessDelay)
	}

	return &Crawler{
		fetcher:      cfg.Fetcher,
		batch:        NewBatch(cfg.Loader, cfg.BatchFlushAttempts),
		marker:       cfg.Marker,
		observations: cfg.Observations,
		checkpoints:  cfg.Checkpoints,
		limiter:      rate.NewLimiter(limit, 1),
		cfg:          cfg,
		stats:        NewStats(types.ModeMonthly),
	}, nil
}

// Stats exposes the live counters, e.g. for the status endpoint.
func (c *Crawler) Stats() *Stats {
	return c.stats
}

// Run walks every year segment until exhaustion. Per-attempt errors are
// converted into statistics; only cancellation stops the run early.
func (c *Crawler) Run(ctx context.Context) (StatsSnapshot, error) {
	logger := logging.FromContext(ctx).WithField("runId", c.stats.RunID().String())
	ctx = logging.WithLogger(ctx, logger)

	startYear, startNumber := c.resumePosition(ctx)
	logger.WithFields(map[string]any{
		"startYear":   startYear,
		"maxYear":     c.cfg.MaxYear,
		"startNumber": startNumber,
	}).Info("bulk crawl starting")

	for year := startYear; year <= c.cfg.MaxYear; year++ {
		number := c.cfg.StartNumber
		if year == startYear {
			number = startNumber
		}

		if err := c.runSegment(ctx, year, number); err != nil {
			// Cancellation: already-flushed data is durable, the rest of the
			// buffer is the accepted loss window.
			snapshot := c.stats.Snapshot()
			logger.WithFields(snapshot.Fields()).Warn("bulk crawl interrupted")
			return snapshot, err
		}
	}

	c.finishRun(ctx)
	snapshot := c.stats.Snapshot()
	logger.WithFields(snapshot.Fields()).Info("bulk crawl finished")
	return snapshot, nil
}

// runSegment probes one year until the consecutive-skip budget is spent,
// then flushes the buffer unconditionally so no record is dropped at the
// boundary.
func (c *Crawler) runSegment(ctx context.Context, year, startNumber int) error {
	logger := logging.FromContext(ctx)
	seg := segment{year: year, number: startNumber}

	for seg.consecutiveSkips < c.cfg.MaxConsecutiveSkips {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		c.attempt(ctx, &seg)

		seg.number++
		c.stats.SetPosition(seg.year, seg.number)

		if result, flushed := c.batch.MaybeFlush(ctx); flushed {
			c.afterFlush(ctx, result, seg.year, seg.number)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	result := c.batch.Flush(ctx)
	c.afterFlush(ctx, result, seg.year+1, c.cfg.StartNumber)

	logger.WithFields(map[string]any{
		"year":        seg.year,
		"lastNumber":  seg.number - 1,
		"skipsInARow": seg.consecutiveSkips,
	}).Info("year segment exhausted")
	return nil
}

// attempt performs one probe and routes its outcome. A transport failure is
// deliberately treated like not-found for skip counting: the loop cannot
// tell a transient failure from a true negative, so both consume budget.
func (c *Crawler) attempt(ctx context.Context, seg *segment) {
	logger := logging.FromContext(ctx)
	id := models.ApplicationID(seg.number, seg.year)

	record, err := c.fetcher.Fetch(ctx, seg.number, seg.year)
	c.batch.CountAttempt()

	switch {
	case err == nil:
		seg.consecutiveSkips = 0
		c.stats.CountOutcome(types.OutcomeFound)
		c.batch.Buffer(record)
		c.observe(record, types.OutcomeFound)

	case fetch.IsNotFound(err):
		seg.consecutiveSkips++
		c.stats.CountOutcome(types.OutcomeNotFound)
		if markErr := c.marker.MarkNotFound(ctx, id); markErr != nil {
			logger.WithField("applicationNumber", id).ErrorWithErr("failed to mark case not found", markErr)
		}
		c.observe(&models.CaseRecord{ApplicationNumber: id}, types.OutcomeNotFound)

	default:
		seg.consecutiveSkips++
		c.stats.CountOutcome(types.OutcomeError)
		logger.WithFields(map[string]any{
			"applicationNumber": id,
			"error":             err.Error(),
		}).Warn("fetch failed")
		c.observe(&models.CaseRecord{ApplicationNumber: id}, types.OutcomeError)
	}
}

// observe queues one history row; it is shipped at the next flush boundary.
func (c *Crawler) observe(rec *models.CaseRecord, outcome types.FetchOutcome) {
	if c.observations == nil {
		return
	}
	obs := models.Observation{
		RunID:             c.stats.RunID(),
		Mode:              types.ModeMonthly,
		ApplicationNumber: rec.ApplicationNumber,
		Outcome:           outcome,
		ObservedAt:        time.Now().UTC(),
	}
	if outcome == types.OutcomeFound {
		obs.Title = rec.Title
		obs.EventCount = len(rec.Events)
		if last, ok := rec.LastEvent(); ok {
			obs.LastMajorEvent = last.Description
			obs.IsClosed = normalize.IsClosed(last.Description)
		}
	}
	c.pendingObs = append(c.pendingObs, obs)
}

// afterFlush books the flush results, ships pending observations, and saves
// the checkpoint so a restart resumes at this boundary.
func (c *Crawler) afterFlush(ctx context.Context, result storage.LoadResult, nextYear, nextNumber int) {
	logger := logging.FromContext(ctx)
	if result.Succeeded+result.Failed > 0 {
		c.stats.CountFlush(result.Succeeded, result.Failed)
	}

	if c.observations != nil && len(c.pendingObs) > 0 {
		if err := c.observations.Record(ctx, c.pendingObs); err != nil {
			logger.ErrorWithErr("failed to record observations", err)
		}
		c.pendingObs = c.pendingObs[:0]
	}

	if c.checkpoints != nil {
		cp := storage.Checkpoint{
			Year:   nextYear,
			Number: nextNumber,
			RunID:  c.stats.RunID().String(),
		}
		if err := c.checkpoints.Save(ctx, cp); err != nil {
			logger.ErrorWithErr("failed to save checkpoint", err)
		}
	}

	logger.WithFields(c.stats.Snapshot().Fields()).Info("crawl progress")
}

// resumePosition returns where the run should begin, consulting the saved
// checkpoint when resuming is enabled.
func (c *Crawler) resumePosition(ctx context.Context) (int, int) {
	logger := logging.FromContext(ctx)
	if !c.cfg.Resume || c.checkpoints == nil {
		return c.cfg.StartYear, c.cfg.StartNumber
	}

	cp, ok, err := c.checkpoints.Load(ctx)
	if err != nil {
		logger.ErrorWithErr("failed to load checkpoint, starting fresh", err)
		return c.cfg.StartYear, c.cfg.StartNumber
	}
	if !ok || cp.Completed || cp.Year < c.cfg.StartYear || cp.Year > c.cfg.MaxYear {
		return c.cfg.StartYear, c.cfg.StartNumber
	}

	logger.WithFields(map[string]any{
		"year":   cp.Year,
		"number": cp.Number,
	}).Info("resuming from checkpoint")
	return cp.Year, cp.Number
}

// finishRun marks the checkpoint completed so the next run starts fresh.
func (c *Crawler) finishRun(ctx context.Context) {
	if c.checkpoints == nil {
		return
	}
	if err := c.checkpoints.Clear(ctx); err != nil {
		logging.FromContext(ctx).ErrorWithErr("failed to clear checkpoint", err)
	}
}
