package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreClaim(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.Claim(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Claim(ctx, "evt_2", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	ok, _ := store.Claim(ctx, "evt_1", time.Minute)
	require.True(t, ok)

	current = current.Add(2 * time.Minute)
	ok, _ = store.Claim(ctx, "evt_1", time.Minute)
	assert.True(t, ok)
}

func TestMemoryStoreConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Claim(ctx, "evt_same", time.Hour); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestNewWithoutRedis(t *testing.T) {
	store, err := New(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestMemoryStoreRelease(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.Claim(ctx, "stripe:evt_2", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, "stripe:evt_2"))

	ok, err = s.Claim(ctx, "stripe:evt_2", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "released key can be claimed again")
}
