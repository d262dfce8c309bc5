package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNow is a settable clock for expiry tests
type fakeNow struct {
	mu sync.Mutex
	at time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.at
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.at = f.at.Add(d)
}

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeNow) {
	t.Helper()
	clock := &fakeNow{at: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore()
	store.now = clock.now
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("first mark wins, replay within ttl is rejected", func(t *testing.T) {
		store, clock := newTestStore(t)

		isNew, err := store.MarkProcessed(ctx, "WH-1", 96*time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)

		clock.advance(95 * time.Hour)
		isNew, err = store.MarkProcessed(ctx, "WH-1", 96*time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("marker can be taken again after expiry", func(t *testing.T) {
		store, clock := newTestStore(t)

		_, err := store.MarkProcessed(ctx, "WH-2", time.Hour)
		require.NoError(t, err)
		clock.advance(time.Hour)

		isNew, err := store.MarkProcessed(ctx, "WH-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	processed, err := store.IsProcessed(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "WH-3", time.Minute)
	require.NoError(t, err)
	processed, err = store.IsProcessed(ctx, "WH-3")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.advance(2 * time.Minute)
	processed, err = store.IsProcessed(ctx, "WH-3")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Forget(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.MarkProcessed(ctx, "WH-4", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, "WH-4"))

	isNew, err := store.MarkProcessed(ctx, "WH-4", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NoError(t, store.Forget(ctx, "never-seen"))
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	_, _ = store.MarkProcessed(ctx, "short-1", time.Second)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Second)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	assert.Equal(t, 3, store.Size())

	clock.advance(time.Minute)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	const workers = 100

	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(ctx, "WH-race", time.Hour)
			results <- err == nil && isNew
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for won := range results {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
