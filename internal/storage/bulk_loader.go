package storage

import (
	"context"

	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/models"
)

// BatchUpserter is the fast bulk persistence path.
type BatchUpserter interface {
	UpsertBatch(ctx context.Context, records []*models.CaseRecord) error
}

// RecordUpserter is the per-record fallback path.
type RecordUpserter interface {
	Upsert(ctx context.Context, rec *models.CaseRecord) error
}

// LoadResult reports per-record outcomes of one flush. Partial success is an
// accepted, reported outcome, not an error state for the run.
type LoadResult struct {
	Succeeded int
	Failed    int
}

// BulkLoader persists a buffered batch through the fast bulk transport,
// falling back to one-by-one upserts when the bulk path fails. The fallback
// is best-effort and non-transactional.
type BulkLoader struct {
	batch  BatchUpserter
	single RecordUpserter
}

// NewBulkLoader creates a loader over one repository serving both paths.
func NewBulkLoader(repo *ApplicationRepository) *BulkLoader {
	return &BulkLoader{batch: repo, single: repo}
}

// NewBulkLoaderWithPaths wires the two paths independently, for callers that
// need to intercept either one.
func NewBulkLoaderWithPaths(batch BatchUpserter, single RecordUpserter) *BulkLoader {
	return &BulkLoader{batch: batch, single: single}
}

// Load persists the batch. On bulk failure every record is still attempted
// individually; independent per-record errors are tolerated and counted.
func (l *BulkLoader) Load(ctx context.Context, records []*models.CaseRecord) LoadResult {
	if len(records) == 0 {
		return LoadResult{}
	}
	logger := logging.FromContext(ctx)

	err := l.batch.UpsertBatch(ctx, records)
	if err == nil {
		return LoadResult{Succeeded: len(records)}
	}
	logger.WithFields(map[string]any{
		"records": len(records),
		"error":   err.Error(),
	}).Warn("bulk load failed, falling back to per-record upserts")

	var result LoadResult
	for _, rec := range records {
		if err := l.single.Upsert(ctx, rec); err != nil {
			result.Failed++
			logger.WithFields(map[string]any{
				"applicationNumber": rec.ApplicationNumber,
				"error":             err.Error(),
			}).Error("fallback upsert failed")
			continue
		}
		result.Succeeded++
	}
	return result
}
