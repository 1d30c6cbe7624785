package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{Workers: 1, MaxRetries: 3, PollInterval: 5 * time.Millisecond}
}

func TestQueue_Enqueue_DeduplicatesSameKey(t *testing.T) {
	q := NewQueue(testOptions(), nil)

	jobA, createdA := q.Enqueue(EnqueueRequest{
		MovieID:   "m1",
		Source:    "search",
		DedupeKey: "m1|en|101",
	})
	jobB, createdB := q.Enqueue(EnqueueRequest{
		MovieID:   "m1",
		Source:    "manual",
		DedupeKey: "m1|en|101",
	})

	require.True(t, createdA)
	require.False(t, createdB)
	require.NotNil(t, jobA)
	require.NotNil(t, jobB)
	assert.Equal(t, jobA.ID, jobB.ID)
	assert.Equal(t, StatusQueued, jobA.Status)
	assert.Equal(t, 0, jobA.RetryCount)
	assert.Equal(t, 5, jobA.Priority)
}

func TestQueue_ClaimOrder_PriorityThenFIFO(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewQueue(testOptions(), nil, WithClock(func() time.Time { return now }))

	ids := make([]string, 0, 4)
	for _, p := range []int{5, 1, 5, 3} {
		job, created := q.Enqueue(EnqueueRequest{Priority: p})
		require.True(t, created)
		ids = append(ids, job.ID)
	}

	got := make([]string, 0, 4)
	for {
		job, ok := q.claim(context.Background())
		if !ok {
			break
		}
		assert.Equal(t, StatusProcessing, job.Status)
		require.NotNil(t, job.StartedAt)
		got = append(got, job.ID)
	}
	assert.Equal(t, []string{ids[1], ids[3], ids[0], ids[2]}, got)
}

func TestQueue_Workers_DispatchInPriorityOrder(t *testing.T) {
	q := NewQueue(testOptions(), nil)
	for _, p := range []int{5, 1, 5, 3} {
		q.Enqueue(EnqueueRequest{Priority: p, MovieID: "m"})
	}

	var mu sync.Mutex
	var priorities []int
	q.Start(func(_ context.Context, job *Job) error {
		mu.Lock()
		priorities = append(priorities, job.Priority)
		mu.Unlock()
		return nil
	})
	defer q.Stop()

	require.Eventually(t, func() bool {
		return q.Stats().Completed == 4
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 3, 5, 5}, priorities)
}

func TestQueue_RetryCeiling(t *testing.T) {
	q := NewQueue(testOptions(), nil, WithErrorDescriber(func(err error) string {
		return "[fetch:Timeout] " + err.Error()
	}))

	var attempts atomic.Int32
	q.Start(func(_ context.Context, _ *Job) error {
		attempts.Add(1)
		return errors.New("deadline exceeded")
	})
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{MovieID: "m1", DedupeKey: "k"})

	require.Eventually(t, func() bool {
		got, ok := q.Get(job.ID)
		return ok && got.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	// give a stray retry the chance to show up
	time.Sleep(30 * time.Millisecond)
	got, _ := q.Get(job.ID)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, 8, got.Priority)
	assert.EqualValues(t, 4, attempts.Load())
	assert.Contains(t, got.ErrorMessage, ErrJobExhausted.Error())
	assert.Contains(t, got.ErrorMessage, "[fetch:Timeout]")
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, StatusFailed, got.Status)

	_, created := q.Enqueue(EnqueueRequest{MovieID: "m1", DedupeKey: "k"})
	assert.True(t, created, "dedupe key is released once the job is terminal")
}

func TestQueue_RetryRequeuesWithBackoff(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	opts := testOptions()
	opts.RetryBackoff = time.Second
	q := NewQueue(opts, nil, WithClock(clock))

	job, _ := q.Enqueue(EnqueueRequest{Priority: 10})
	claimed, ok := q.claim(context.Background())
	require.True(t, ok)
	q.finish(claimed, errors.New("boom"))

	got, _ := q.Get(job.ID)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, LowestPriority, got.Priority)
	assert.Equal(t, "boom", got.ErrorMessage)
	assert.Equal(t, now.Add(time.Second), got.NotBefore)

	_, ok = q.claim(context.Background())
	assert.False(t, ok, "job is not dispatched before its backoff elapses")

	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()
	_, ok = q.claim(context.Background())
	assert.True(t, ok)
}

func TestQueue_GateHoldsJobs(t *testing.T) {
	var open atomic.Bool
	q := NewQueue(testOptions(), nil, WithGate(func(job *Job) bool {
		return job.Provider != "opensubtitles" || open.Load()
	}))

	blocked, _ := q.Enqueue(EnqueueRequest{Provider: "opensubtitles", Priority: 1})
	free, _ := q.Enqueue(EnqueueRequest{Provider: "http", Priority: 9})

	first, ok := q.claim(context.Background())
	require.True(t, ok)
	assert.Equal(t, free.ID, first.ID)
	_, ok = q.claim(context.Background())
	assert.False(t, ok)

	open.Store(true)
	second, ok := q.claim(context.Background())
	require.True(t, ok)
	assert.Equal(t, blocked.ID, second.ID)
}

func TestQueue_RecoversFromPanickingExecutor(t *testing.T) {
	opts := testOptions()
	opts.MaxRetries = 0
	q := NewQueue(opts, nil)
	q.Start(func(_ context.Context, _ *Job) error { panic("kaboom") })
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{})
	require.Eventually(t, func() bool {
		got, ok := q.Get(job.ID)
		return ok && got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	got, _ := q.Get(job.ID)
	assert.Contains(t, got.ErrorMessage, "kaboom")
}

func TestQueue_PruneRemovesOldTerminalJobs(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	q := NewQueue(testOptions(), nil, WithClock(clock))

	done, _ := q.Enqueue(EnqueueRequest{MovieID: "old"})
	claimed, _ := q.claim(context.Background())
	q.finish(claimed, nil)
	waiting, _ := q.Enqueue(EnqueueRequest{MovieID: "waiting"})

	mu.Lock()
	now = now.Add(8 * 24 * time.Hour)
	mu.Unlock()

	assert.Equal(t, 1, q.Prune(7*24*time.Hour))
	_, ok := q.Get(done.ID)
	assert.False(t, ok)
	_, ok = q.Get(waiting.ID)
	assert.True(t, ok)
	assert.Equal(t, 0, q.Prune(7*24*time.Hour))
}

func TestQueue_ListAndStats(t *testing.T) {
	q := NewQueue(testOptions(), nil)
	a, _ := q.Enqueue(EnqueueRequest{MovieID: "a"})
	b, _ := q.Enqueue(EnqueueRequest{MovieID: "b"})
	claimed, _ := q.claim(context.Background())
	require.Equal(t, a.ID, claimed.ID)

	all := q.List("")
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, b.ID, all[1].ID)

	queued := q.List(StatusQueued)
	require.Len(t, queued, 1)
	assert.Equal(t, b.ID, queued[0].ID)

	assert.Equal(t, Stats{Total: 2, Queued: 1, Processing: 1}, q.Stats())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(0, time.Minute, 3))
	assert.Equal(t, 2*time.Second, Backoff(2*time.Second, time.Minute, 1))
	assert.Equal(t, 4*time.Second, Backoff(2*time.Second, time.Minute, 2))
	assert.Equal(t, 8*time.Second, Backoff(2*time.Second, time.Minute, 3))
	assert.Equal(t, time.Minute, Backoff(2*time.Second, time.Minute, 10))
}
