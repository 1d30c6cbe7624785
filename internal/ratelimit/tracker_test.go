package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func intPtr(v int) *int { return &v }

func TestTracker_AllowIsOptimisticWithoutMetadata(t *testing.T) {
	tr := New(nil)
	assert.True(t, tr.Allow("opensubtitles"))

	require.NoError(t, tr.RecordAttempt(context.Background(), "opensubtitles", "search", false, nil, nil))
	assert.True(t, tr.Allow("opensubtitles"))
}

func TestTracker_DeniesUntilReset(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	tr := New(nil, WithClock(clock.Now))
	reset := clock.Now().Add(10 * time.Minute)

	require.NoError(t, tr.RecordAttempt(context.Background(), "opensubtitles", "search", false, intPtr(0), &reset))
	assert.False(t, tr.Allow("opensubtitles"))
	assert.True(t, tr.Allow("other"))

	at, ok := tr.RetryAt("opensubtitles")
	require.True(t, ok)
	assert.Equal(t, reset, at)

	clock.Advance(10 * time.Minute)
	assert.True(t, tr.Allow("opensubtitles"))
}

func TestTracker_ExhaustedWithoutResetCoolsDown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	tr := New(nil, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, tr.RecordAttempt(ctx, "opensubtitles", "download", false, intPtr(0), nil))
	assert.False(t, tr.Allow("opensubtitles"))
	at, ok := tr.RetryAt("opensubtitles")
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(DefaultCooldown), at)

	rows, err := tr.Usage(ctx, "opensubtitles", time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].RateLimitReset, "cool-down is persisted for restarts")

	clock.Advance(DefaultCooldown)
	assert.True(t, tr.Allow("opensubtitles"))

	require.NoError(t, tr.RecordAttempt(ctx, "opensubtitles", "download", true, intPtr(5), nil))
	assert.True(t, tr.Allow("opensubtitles"))
}

func TestTracker_NewDayClearsGate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)}
	tr := New(nil, WithClock(clock.Now))
	reset := clock.Now().Add(48 * time.Hour)

	require.NoError(t, tr.RecordAttempt(context.Background(), "opensubtitles", "search", false, intPtr(0), &reset))
	assert.False(t, tr.Allow("opensubtitles"))

	clock.Advance(2 * time.Hour)
	assert.True(t, tr.Allow("opensubtitles"))
	_, ok := tr.RetryAt("opensubtitles")
	assert.False(t, ok)
}

func TestTracker_CountsPerEndpointAndDay(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)}
	tr := New(NewMemoryStore(), WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, tr.RecordAttempt(ctx, "opensubtitles", "search", true, intPtr(10), nil))
	require.NoError(t, tr.RecordAttempt(ctx, "opensubtitles", "search", false, nil, nil))
	require.NoError(t, tr.RecordAttempt(ctx, "opensubtitles", "download", true, nil, nil))

	rows, err := tr.Usage(ctx, "opensubtitles", time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "download", rows[0].Endpoint)
	search := rows[1]
	assert.Equal(t, "2026-05-01", search.Date)
	assert.Equal(t, 2, search.RequestCount)
	assert.Equal(t, 1, search.SuccessCount)
	assert.Equal(t, 1, search.ErrorCount)
	require.NotNil(t, search.RateLimitRemaining)
	assert.Equal(t, 10, *search.RateLimitRemaining)

	clock.Advance(2 * time.Minute)
	require.NoError(t, tr.RecordAttempt(ctx, "opensubtitles", "search", true, nil, nil))
	today, err := tr.Usage(ctx, "opensubtitles", time.Time{})
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "2026-05-02", today[0].Date)
	assert.Equal(t, 1, today[0].RequestCount)
}

func TestTracker_ConcurrentIncrements(t *testing.T) {
	tr := New(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.RecordAttempt(ctx, "opensubtitles", "search", true, nil, nil)
		}()
	}
	wg.Wait()

	rows, err := tr.Usage(ctx, "opensubtitles", time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 50, rows[0].RequestCount)
}

func TestTracker_HydrateRestoresGate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	reset := clock.Now().Add(time.Hour)
	require.NoError(t, New(store, WithClock(clock.Now)).RecordAttempt(context.Background(), "opensubtitles", "search", false, intPtr(0), &reset))

	restarted := New(store, WithClock(clock.Now))
	assert.True(t, restarted.Allow("opensubtitles"))
	require.NoError(t, restarted.Hydrate(context.Background()))
	assert.False(t, restarted.Allow("opensubtitles"))
}

func TestTracker_RequiresAPIName(t *testing.T) {
	assert.Error(t, New(nil).RecordAttempt(context.Background(), "", "search", true, nil, nil))
}
