package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/case-scanner/internal/models"
)

type fakeBatchUpserter struct {
	calls int
	err   error
}

func (f *fakeBatchUpserter) UpsertBatch(_ context.Context, _ []*models.CaseRecord) error {
	f.calls++
	return f.err
}

type fakeRecordUpserter struct {
	upserted []string
	failOn   map[string]bool
}

func (f *fakeRecordUpserter) Upsert(_ context.Context, rec *models.CaseRecord) error {
	f.upserted = append(f.upserted, rec.ApplicationNumber)
	if f.failOn[rec.ApplicationNumber] {
		return errors.New("boom")
	}
	return nil
}

func testRecords(n int) []*models.CaseRecord {
	records := make([]*models.CaseRecord, n)
	for i := range records {
		records[i] = &models.CaseRecord{
			ApplicationNumber: fmt.Sprintf("%d/21", i+1),
			Title:             fmt.Sprintf("Applicant %d v. State", i+1),
		}
	}
	return records
}

func TestBulkLoaderFastPath(t *testing.T) {
	batch := &fakeBatchUpserter{}
	single := &fakeRecordUpserter{}
	loader := NewBulkLoaderWithPaths(batch, single)

	result := loader.Load(context.Background(), testRecords(5))

	if result.Succeeded != 5 || result.Failed != 0 {
		t.Errorf("Load() = %+v, want 5 succeeded", result)
	}
	if batch.calls != 1 {
		t.Errorf("bulk path called %d times, want 1", batch.calls)
	}
	if len(single.upserted) != 0 {
		t.Errorf("fallback invoked on healthy bulk path: %v", single.upserted)
	}
}

func TestBulkLoaderFallbackAttemptsEveryRecord(t *testing.T) {
	batch := &fakeBatchUpserter{err: errors.New("bulk transport down")}
	single := &fakeRecordUpserter{failOn: map[string]bool{"2/21": true, "4/21": true}}
	loader := NewBulkLoaderWithPaths(batch, single)

	records := testRecords(5)
	result := loader.Load(context.Background(), records)

	if len(single.upserted) != len(records) {
		t.Errorf("fallback attempted %d records, want %d", len(single.upserted), len(records))
	}
	if result.Succeeded != 3 || result.Failed != 2 {
		t.Errorf("Load() = %+v, want {Succeeded:3 Failed:2}", result)
	}
	if result.Succeeded+result.Failed != len(records) {
		t.Errorf("counts sum to %d, want batch size %d", result.Succeeded+result.Failed, len(records))
	}
}

func TestBulkLoaderFallbackPreservesOrder(t *testing.T) {
	batch := &fakeBatchUpserter{err: errors.New("bulk transport down")}
	single := &fakeRecordUpserter{}
	loader := NewBulkLoaderWithPaths(batch, single)

	records := testRecords(3)
	loader.Load(context.Background(), records)

	for i, rec := range records {
		if single.upserted[i] != rec.ApplicationNumber {
			t.Fatalf("fallback order %v, want buffer-fill order", single.upserted)
		}
	}
}

func TestBulkLoaderEmptyBatch(t *testing.T) {
	batch := &fakeBatchUpserter{}
	loader := NewBulkLoaderWithPaths(batch, &fakeRecordUpserter{})

	result := loader.Load(context.Background(), nil)
	if result != (LoadResult{}) {
		t.Errorf("Load(nil) = %+v, want zero result", result)
	}
	if batch.calls != 0 {
		t.Error("bulk path invoked for empty batch")
	}
}
