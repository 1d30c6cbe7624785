package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Worker_TransitionsStatus(t *testing.T) {
	q := NewQueue(testOptions(), nil)
	q.Start(func(_ context.Context, _ *Job) error { return nil })
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "k1",
	})

	require.Eventually(t, func() bool {
		got, ok := q.Get(job.ID)
		if !ok || got == nil {
			return false
		}
		return got.Status == StatusCompleted && got.StartedAt != nil && got.CompletedAt != nil
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_Workers_NeverRunAJobTwice(t *testing.T) {
	opts := testOptions()
	opts.Workers = 4
	q := NewQueue(opts, newMemoryStore())

	var mu sync.Mutex
	runs := map[string]int{}
	q.Start(func(_ context.Context, job *Job) error {
		mu.Lock()
		runs[job.ID]++
		mu.Unlock()
		time.Sleep(time.Millisecond)
		return nil
	})
	defer q.Stop()

	for range 40 {
		q.Enqueue(EnqueueRequest{MovieID: "m"})
	}

	require.Eventually(t, func() bool {
		return q.Stats().Completed == 40
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, runs, 40)
	for id, n := range runs {
		assert.Equal(t, 1, n, id)
	}
}
