package acquisition

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/cinefluent/internal/provider"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]Entry)}
}

func (m *memoryStore) PutCacheEntry(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Key] = e
	return nil
}

func (m *memoryStore) GetCacheEntry(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *memoryStore) DeleteExpiredCacheEntries(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) CacheStats(_ context.Context, now time.Time) (StoreStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s StoreStats
	langs := map[string]struct{}{}
	movies := map[string]struct{}{}
	for _, e := range m.entries {
		s.TotalEntries++
		if e.Expired(now) {
			s.ExpiredEntries++
			continue
		}
		s.ActiveEntries++
		langs[e.Language] = struct{}{}
		movies[e.MovieID] = struct{}{}
	}
	s.LanguagesCached = len(langs)
	s.MoviesCached = len(movies)
	return s, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func payload(movieID string) Payload {
	return Payload{
		MovieID:    movieID,
		Language:   "en",
		Candidates: []provider.Candidate{{ID: "1", FileID: 42, Language: "en"}},
	}
}

func TestKey_IsDeterministicAndNormalized(t *testing.T) {
	assert.Equal(t, Key("m1", "EN", " The Matrix "), Key("m1", "en", "the matrix"))
	assert.NotEqual(t, Key("m1", "en", "a"), Key("m1", "en", "b"))
	assert.NotEqual(t, Key("m1a", "en", ""), Key("m1", "aen", ""))
	assert.Len(t, Key("m", "en", ""), 64)
}

func TestCache_PutGet(t *testing.T) {
	c := New(newMemoryStore(), Options{})
	ctx := context.Background()

	_, ok := c.Get(ctx, "m1", "en", "Title")
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "m1", "en", "Title", payload("m1"), time.Hour))
	got, ok := c.Get(ctx, "m1", "EN", "title")
	require.True(t, ok)
	assert.Equal(t, int64(42), got.Candidates[0].FileID)

	require.NoError(t, c.Put(ctx, "m1", "en", "Title", Payload{MovieID: "m1"}, time.Hour))
	got, ok = c.Get(ctx, "m1", "en", "Title")
	require.True(t, ok)
	assert.Empty(t, got.Candidates, "last write wins")
}

func TestCache_NonPositiveTTLIsImmediateMiss(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Minute} {
		c := New(newMemoryStore(), Options{})
		require.NoError(t, c.Put(context.Background(), "m1", "en", "", payload("m1"), ttl))
		_, ok := c.Get(context.Background(), "m1", "en", "")
		assert.False(t, ok, "ttl %v", ttl)
	}
}

func TestCache_ExpiredUnsweptIsMissThenSwept(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := newMemoryStore()
	c := New(store, Options{}, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "m1", "en", "", payload("m1"), time.Hour))
	require.NoError(t, c.Put(ctx, "m2", "ja", "", payload("m2"), 3*time.Hour))
	clock.Advance(2 * time.Hour)

	_, ok := c.Get(ctx, "m1", "en", "")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "m2", "ja", "")
	assert.True(t, ok)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.ActiveEntries)
	assert.Equal(t, 1, stats.ExpiredEntries)
	assert.Equal(t, 1, stats.LanguagesCached)
	assert.Equal(t, 1, stats.MoviesCached)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRatio, 1e-9)

	n, err := c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "sweep is idempotent")

	stats, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.MemoryEntries)
}

func TestCache_LoadsFromStoreAfterRestart(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	require.NoError(t, New(store, Options{}).Put(ctx, "m1", "en", "", payload("m1"), time.Hour))

	restarted := New(store, Options{})
	got, ok := restarted.Get(ctx, "m1", "en", "")
	require.True(t, ok)
	assert.Equal(t, "m1", got.MovieID)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(nil, Options{MaxMemoryItems: 2}, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", "en", "", payload("a"), time.Hour))
	clock.Advance(time.Second)
	require.NoError(t, c.Put(ctx, "b", "en", "", payload("b"), time.Hour))
	clock.Advance(time.Second)
	_, ok := c.Get(ctx, "a", "en", "")
	require.True(t, ok)
	clock.Advance(time.Second)
	require.NoError(t, c.Put(ctx, "c", "en", "", payload("c"), time.Hour))

	_, ok = c.Get(ctx, "b", "en", "")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a", "en", "")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c", "en", "")
	assert.True(t, ok)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(newMemoryStore(), Options{MaxMemoryItems: 8})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(3)
		movie := fmt.Sprintf("m%d", i%4)
		go func() {
			defer wg.Done()
			_ = c.Put(ctx, movie, "en", "", payload(movie), time.Hour)
		}()
		go func() {
			defer wg.Done()
			c.Get(ctx, movie, "en", "")
		}()
		go func() {
			defer wg.Done()
			_, _ = c.Sweep(ctx)
		}()
	}
	wg.Wait()

	for i := range 4 {
		_, ok := c.Get(ctx, fmt.Sprintf("m%d", i), "en", "")
		assert.True(t, ok)
	}
}

func TestCache_MemoryLayerIsBounded(t *testing.T) {
	store := newMemoryStore()
	c := New(store, Options{MaxMemoryItems: 3})
	ctx := context.Background()

	for i := range 10 {
		movie := fmt.Sprintf("m%d", i)
		require.NoError(t, c.Put(ctx, movie, "en", "", payload(movie), time.Hour))
	}

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.MemoryEntries)
	assert.Equal(t, 10, stats.TotalEntries)

	got, ok := c.Get(ctx, "m0", "en", "")
	require.True(t, ok, "evicted entries are reloaded from the store")
	assert.Equal(t, "m0", got.MovieID)
}
