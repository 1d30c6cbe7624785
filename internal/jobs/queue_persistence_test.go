package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: make(map[string]*Job)}
}

func (m *memoryStore) LoadJobs(_ context.Context) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		ret = append(ret, cloneJob(j))
	}
	return ret, nil
}

func (m *memoryStore) UpsertJob(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memoryStore) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *memoryStore) CompareAndSwapStatus(_ context.Context, jobID string, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = to
	return true, nil
}

func (m *memoryStore) get(id string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneJob(m.jobs[id])
}

func TestQueue_RecoversQueuedAndProcessingJobsFromStore(t *testing.T) {
	store := newMemoryStore()
	now := time.Now()
	store.jobs["job-1"] = &Job{
		ID:        "job-1",
		MovieID:   "m1",
		Source:    "search",
		DedupeKey: "m1|en|1",
		Status:    StatusQueued,
		Priority:  5,
		CreatedAt: now,
		UpdatedAt: now,
	}
	store.jobs["job-7"] = &Job{
		ID:        "job-7",
		MovieID:   "m2",
		Source:    "search",
		DedupeKey: "m2|en|2",
		Status:    StatusProcessing,
		Priority:  5,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q := NewQueue(testOptions(), store)

	jobs := q.List("")
	require.Len(t, jobs, 2)
	byID := map[string]*Job{}
	for _, j := range jobs {
		byID[j.ID] = j
	}
	require.Contains(t, byID, "job-7")
	assert.Equal(t, StatusQueued, byID["job-7"].Status)
	assert.Equal(t, StatusQueued, store.get("job-7").Status)

	next, created := q.Enqueue(EnqueueRequest{MovieID: "m3"})
	require.True(t, created)
	assert.Equal(t, "job-8", next.ID)

	_, created = q.Enqueue(EnqueueRequest{DedupeKey: "m2|en|2"})
	assert.False(t, created)

	q.Start(func(_ context.Context, _ *Job) error { return nil })
	defer q.Stop()

	for _, id := range []string{"job-1", "job-7", "job-8"} {
		require.Eventually(t, func() bool {
			got, ok := q.Get(id)
			return ok && got.Status == StatusCompleted
		}, time.Second, 10*time.Millisecond)
		require.Eventually(t, func() bool {
			stored := store.get(id)
			return stored != nil && stored.Status == StatusCompleted && stored.CompletedAt != nil
		}, time.Second, 10*time.Millisecond)
	}
}

func TestQueue_ClaimSkipsJobTakenByAnotherProcess(t *testing.T) {
	store := newMemoryStore()
	q := NewQueue(testOptions(), store)

	job, _ := q.Enqueue(EnqueueRequest{MovieID: "m1"})
	_, err := store.CompareAndSwapStatus(context.Background(), job.ID, StatusQueued, StatusProcessing)
	require.NoError(t, err)

	_, ok := q.claim(context.Background())
	assert.False(t, ok)
	_, ok = q.Get(job.ID)
	assert.False(t, ok)
}

func TestQueue_PruneDeletesFromStore(t *testing.T) {
	store := newMemoryStore()
	q := NewQueue(testOptions(), store)

	job, _ := q.Enqueue(EnqueueRequest{MovieID: "m1"})
	claimed, ok := q.claim(context.Background())
	require.True(t, ok)
	q.finish(claimed, nil)
	require.NotNil(t, store.get(job.ID))

	assert.Equal(t, 1, q.Prune(0))
	assert.Nil(t, store.get(job.ID))
}
