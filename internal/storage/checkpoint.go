package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	checkpointKey = "case-scanner:crawl:checkpoint"
	checkpointTTL = 14 * 24 * time.Hour
)

// Checkpoint is the resumable position of a bulk crawl: the year segment and
// identifier the loop would probe next.
type Checkpoint struct {
	Year      int       `json:"year"`
	Number    int       `json:"number"`
	SavedAt   time.Time `json:"savedAt"`
	RunID     string    `json:"runId"`
	Completed bool      `json:"completed"`
}

// CheckpointStore persists the crawl position in Redis so an interrupted run
// resumes at the last flush boundary instead of re-walking years.
type CheckpointStore struct {
	client *redis.Client
}

// NewCheckpointStore creates a checkpoint store over an established client.
func NewCheckpointStore(store *RedisStore) *CheckpointStore {
	return &CheckpointStore{client: store.Client()}
}

// Save records the next position to probe.
func (s *CheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	cp.SavedAt = time.Now().UTC()
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, checkpointKey, payload, checkpointTTL).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns the saved position, or ok=false when none exists.
func (s *CheckpointStore) Load(ctx context.Context) (Checkpoint, bool, error) {
	payload, err := s.client.Get(ctx, checkpointKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, true, nil
}

// Clear removes the checkpoint, typically after a completed run.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, checkpointKey).Err(); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}
