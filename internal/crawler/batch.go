package crawler

import (
	"context"

	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/models"
	"github.com/case-scanner/internal/storage"
)

// Loader persists one flushed batch, reporting per-record outcomes.
type Loader interface {
	Load(ctx context.Context, records []*models.CaseRecord) storage.LoadResult
}

// Batch buffers fetched records between flushes. The flush trigger counts
// attempts, not buffered records: a stretch of not-found probes still drains
// the buffer on schedule.
type Batch struct {
	loader    Loader
	threshold int

	records  []*models.CaseRecord
	attempts int
}

// NewBatch creates a buffer flushing after threshold attempts.
func NewBatch(loader Loader, threshold int) *Batch {
	return &Batch{
		loader:    loader,
		threshold: threshold,
		records:   make([]*models.CaseRecord, 0, threshold),
	}
}

// CountAttempt registers one probe, whatever its outcome.
func (b *Batch) CountAttempt() {
	b.attempts++
}

// Buffer appends a successfully fetched record, preserving fetch order.
func (b *Batch) Buffer(rec *models.CaseRecord) {
	b.records = append(b.records, rec)
}

// Pending returns the number of buffered records.
func (b *Batch) Pending() int {
	return len(b.records)
}

// MaybeFlush flushes when the attempt counter has reached the threshold.
func (b *Batch) MaybeFlush(ctx context.Context) (storage.LoadResult, bool) {
	if b.attempts < b.threshold {
		return storage.LoadResult{}, false
	}
	return b.Flush(ctx), true
}

// Flush hands the buffer to the loader and clears buffer and attempt counter
// unconditionally. A failed flush is logged and reported through the result
// but never re-queued: retrying would grow the buffer without bound across
// repeated failures.
func (b *Batch) Flush(ctx context.Context) storage.LoadResult {
	records := b.records
	b.records = make([]*models.CaseRecord, 0, b.threshold)
	b.attempts = 0

	if len(records) == 0 {
		return storage.LoadResult{}
	}

	result := b.loader.Load(ctx, records)
	if result.Failed > 0 {
		logging.FromContext(ctx).WithFields(map[string]any{
			"records":   len(records),
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		}).Error("flush persisted only part of the batch")
	}
	return result
}
