package dedupe_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/verdict-radar/backend/internal/dedupe"
)

func TestCacheSeenDuplicate(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	require.False(t, cache.IsSeen("alpha"))
	cache.MarkSeen("alpha")
	require.True(t, cache.IsSeen("alpha"))
}

func TestCacheTTLExpiry(t *testing.T) {
	now := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	cache := dedupe.NewCache(10, time.Minute).WithClock(func() time.Time { return now })

	cache.MarkSeen("beta")
	require.True(t, cache.IsSeen("beta"))

	now = now.Add(61 * time.Second)
	require.False(t, cache.IsSeen("beta"))
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache := dedupe.NewCache(1, time.Minute)
	cache.MarkSeen("first")
	cache.MarkSeen("second")

	require.False(t, cache.IsSeen("first"))
	require.True(t, cache.IsSeen("second"))
	require.Equal(t, 1, cache.Len())
}

func TestCacheCheckAndMarkSingleWinner(t *testing.T) {
	cache := dedupe.NewCache(100, time.Minute)

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !cache.CheckAndMark("clarin|titulo") {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), fresh.Load())
	require.True(t, cache.CheckAndMark("clarin|titulo"))
}
