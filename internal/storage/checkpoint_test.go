package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCheckpointStore(t *testing.T) *CheckpointStore {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &CheckpointStore{client: client}
}

func TestCheckpointStoreRoundTrip(t *testing.T) {
	store := setupCheckpointStore(t)
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "expected no checkpoint before first save")

	saved := Checkpoint{Year: 21, Number: 815, RunID: "run-1"}
	require.NoError(t, store.Save(ctx, saved))

	loaded, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 21, loaded.Year)
	assert.Equal(t, 815, loaded.Number)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.False(t, loaded.SavedAt.IsZero(), "SavedAt should be stamped on save")
}

func TestCheckpointStoreOverwrite(t *testing.T) {
	store := setupCheckpointStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Checkpoint{Year: 20, Number: 1}))
	require.NoError(t, store.Save(ctx, Checkpoint{Year: 22, Number: 340, Completed: true}))

	loaded, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 22, loaded.Year)
	assert.Equal(t, 340, loaded.Number)
	assert.True(t, loaded.Completed)
}

func TestCheckpointStoreClear(t *testing.T) {
	store := setupCheckpointStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Checkpoint{Year: 21, Number: 5}))
	require.NoError(t, store.Clear(ctx))

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "checkpoint should be gone after Clear")
}
