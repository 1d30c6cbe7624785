package jobs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/cinefluent/pkg/log"
)

type Executor func(ctx context.Context, job *Job) error

type Options struct {
	Workers         int
	MaxRetries      int
	DefaultPriority int
	// RetryBackoff is the delay before the first retry; it doubles per retry
	// up to MaxBackoff. Zero retries immediately.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	PollInterval time.Duration
	// MaxJobs bounds how many jobs are kept in memory; the oldest terminal
	// jobs are pruned first.
	MaxJobs int
}

var DefaultOptions = Options{
	Workers:         3,
	MaxRetries:      3,
	DefaultPriority: 5,
	RetryBackoff:    2 * time.Second,
	MaxBackoff:      60 * time.Second,
	PollInterval:    250 * time.Millisecond,
	MaxJobs:         1000,
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	o.DefaultPriority = clampPriority(o.DefaultPriority, DefaultOptions.DefaultPriority)
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultOptions.MaxBackoff
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultOptions.PollInterval
	}
	if o.MaxJobs <= 0 {
		o.MaxJobs = DefaultOptions.MaxJobs
	}
	return o
}

// Gate reports whether a queued job may be dispatched now. Jobs it rejects
// stay queued and are reconsidered on the next poll.
type Gate func(job *Job) bool

type Option func(*Queue)

func WithGate(gate Gate) Option {
	return func(q *Queue) { q.gate = gate }
}

// WithErrorDescriber sets how executor errors are rendered into
// Job.ErrorMessage.
func WithErrorDescriber(describe func(error) string) Option {
	return func(q *Queue) {
		if describe != nil {
			q.describe = describe
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// Queue is a priority job queue with retries, backed by an optional Store.
// Dispatch order is lowest Priority first, then earliest CreatedAt, then
// enqueue order.
type Queue struct {
	opts     Options
	store    Store
	gate     Gate
	describe func(error) string
	now      func() time.Time

	mu        sync.Mutex
	jobs      map[string]*Job
	seq       map[string]uint64
	dedupe    map[string]string
	idCounter uint64
	started   bool
	wake      chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewQueue(opts Options, store Store, options ...Option) *Queue {
	opts = opts.normalized()
	q := &Queue{
		opts:     opts,
		store:    store,
		describe: func(err error) string { return err.Error() },
		now:      time.Now,
		jobs:     make(map[string]*Job),
		seq:      make(map[string]uint64),
		dedupe:   make(map[string]string),
		wake:     make(chan struct{}, opts.Workers),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(q)
	}
	q.hydrateFromStore(context.Background())
	return q
}

func (q *Queue) Options() Options {
	return q.opts
}

// Enqueue adds a job. When an active job already holds req.DedupeKey that
// job is returned with created == false.
func (q *Queue) Enqueue(req EnqueueRequest) (*Job, bool) {
	now := q.now()

	q.mu.Lock()
	if req.DedupeKey != "" {
		if id, ok := q.dedupe[req.DedupeKey]; ok {
			if existing, exists := q.jobs[id]; exists {
				snapshot := cloneJob(existing)
				q.mu.Unlock()
				return snapshot, false
			}
			delete(q.dedupe, req.DedupeKey)
		}
	}

	q.idCounter++
	id := fmt.Sprintf("job-%d", q.idCounter)
	job := &Job{
		ID:                 id,
		MovieID:            req.MovieID,
		Language:           req.Language,
		Title:              req.Title,
		ExternalSubtitleID: req.ExternalSubtitleID,
		FileID:             req.FileID,
		Provider:           req.Provider,
		Source:             req.Source,
		FileURL:            req.FileURL,
		Status:             StatusQueued,
		Priority:           clampPriority(req.Priority, q.opts.DefaultPriority),
		DedupeKey:          req.DedupeKey,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	q.jobs[id] = job
	q.seq[id] = q.idCounter
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = id
	}
	snapshot := cloneJob(job)
	pruned := q.pruneOverflowLocked()
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
	q.notify()
	return snapshot, true
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns jobs in enqueue order, optionally filtered by status.
func (q *Queue) List(status Status) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	ret := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if status != "" && job.Status != status {
			continue
		}
		ret = append(ret, cloneJob(job))
	}
	sort.Slice(ret, func(i, j int) bool {
		return q.seq[ret[i].ID] < q.seq[ret[j].ID]
	})
	return ret
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Stats
	for _, job := range q.jobs {
		s.Total++
		switch job.Status {
		case StatusQueued:
			s.Queued++
		case StatusProcessing:
			s.Processing++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	for range q.opts.Workers {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

// Stop waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	timer := time.NewTimer(q.opts.PollInterval)
	defer timer.Stop()
	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		job, ok := q.claim(context.Background())
		if ok {
			q.finish(job, q.run(exec, job))
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(q.opts.PollInterval)
		select {
		case <-q.stopCh:
			return
		case <-q.wake:
		case <-timer.C:
		}
	}
}

func (q *Queue) run(exec Executor, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return exec(context.Background(), job)
}

// claim moves the next dispatchable job to processing. The in-memory
// transition happens under the queue lock; the store swap then guards
// against another process sharing the same store.
func (q *Queue) claim(ctx context.Context) (*Job, bool) {
	for {
		now := q.now()

		q.mu.Lock()
		var next *Job
		for _, job := range q.jobs {
			if job.Status != StatusQueued || now.Before(job.NotBefore) {
				continue
			}
			if next != nil && !q.lessLocked(job, next) {
				continue
			}
			if q.gate != nil && !q.gate(cloneJob(job)) {
				continue
			}
			next = job
		}
		if next == nil {
			q.mu.Unlock()
			return nil, false
		}
		next.Status = StatusProcessing
		started := now
		next.StartedAt = &started
		next.UpdatedAt = now
		snapshot := cloneJob(next)
		q.mu.Unlock()

		if q.store != nil {
			swapped, err := q.store.CompareAndSwapStatus(ctx, snapshot.ID, StatusQueued, StatusProcessing)
			if err != nil {
				log.Error("Failed to claim job %s in store: %v", snapshot.ID, err)
			} else if !swapped {
				log.Warn("Job %s was claimed elsewhere, dropping local copy", snapshot.ID)
				q.mu.Lock()
				q.forgetLocked(snapshot.ID)
				q.mu.Unlock()
				continue
			}
		}
		q.persistJob(snapshot)
		return snapshot, true
	}
}

func (q *Queue) lessLocked(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return q.seq[a.ID] < q.seq[b.ID]
}

// finish applies the outcome of an execution: completed, re-queued for a
// retry, or terminally failed.
func (q *Queue) finish(claimed *Job, execErr error) {
	now := q.now()

	q.mu.Lock()
	job, ok := q.jobs[claimed.ID]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.UpdatedAt = now

	var pruned []string
	switch {
	case execErr == nil:
		job.Status = StatusCompleted
		job.ErrorMessage = ""
		completed := now
		job.CompletedAt = &completed
		q.releaseDedupeLocked(job)
		pruned = q.pruneOverflowLocked()
		log.Info("Job %s completed (movie %s, %s)", job.ID, job.MovieID, job.Language)

	case job.RetryCount < q.opts.MaxRetries:
		job.RetryCount++
		job.Status = StatusQueued
		job.Priority = min(job.Priority+1, LowestPriority)
		job.ErrorMessage = q.describe(execErr)
		job.NotBefore = now.Add(Backoff(q.opts.RetryBackoff, q.opts.MaxBackoff, job.RetryCount))
		log.Warn("Job %s failed, retry %d/%d at priority %d: %s",
			job.ID, job.RetryCount, q.opts.MaxRetries, job.Priority, job.ErrorMessage)

	default:
		job.Status = StatusFailed
		exhausted := fmt.Errorf("%w after %d retries: %s", ErrJobExhausted, job.RetryCount, q.describe(execErr))
		job.ErrorMessage = exhausted.Error()
		completed := now
		job.CompletedAt = &completed
		q.releaseDedupeLocked(job)
		pruned = q.pruneOverflowLocked()
		log.Error("Job %s failed terminally: %s", job.ID, job.ErrorMessage)
	}
	snapshot := cloneJob(job)
	q.mu.Unlock()

	if q.store != nil {
		if _, err := q.store.CompareAndSwapStatus(context.Background(), snapshot.ID, StatusProcessing, snapshot.Status); err != nil {
			log.Error("Failed to transition job %s in store: %v", snapshot.ID, err)
		}
	}
	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
	if snapshot.Status == StatusQueued {
		q.notify()
	}
}

// Prune removes terminal jobs last updated before now-olderThan and returns
// how many were removed.
func (q *Queue) Prune(olderThan time.Duration) int {
	cutoff := q.now().Add(-olderThan)

	q.mu.Lock()
	pruned := make([]string, 0)
	for id, job := range q.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			q.forgetLocked(id)
			pruned = append(pruned, id)
		}
	}
	q.mu.Unlock()

	q.deleteJobsFromStore(pruned)
	return len(pruned)
}

func (q *Queue) notify() {
	for range q.opts.Workers {
		select {
		case q.wake <- struct{}{}:
		default:
			return
		}
	}
}

func (q *Queue) forgetLocked(id string) {
	if job, ok := q.jobs[id]; ok {
		q.releaseDedupeLocked(job)
	}
	delete(q.jobs, id)
	delete(q.seq, id)
}

func (q *Queue) releaseDedupeLocked(job *Job) {
	if job == nil || job.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[job.DedupeKey]; ok && id == job.ID {
		delete(q.dedupe, job.DedupeKey)
	}
}

func (q *Queue) pruneOverflowLocked() []string {
	if len(q.jobs) <= q.opts.MaxJobs {
		return nil
	}

	terminal := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.Status.Terminal() {
			terminal = append(terminal, job)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
	})

	toRemove := min(len(q.jobs)-q.opts.MaxJobs, len(terminal))
	pruned := make([]string, 0, toRemove)
	for _, job := range terminal[:toRemove] {
		pruned = append(pruned, job.ID)
		q.forgetLocked(job.ID)
	}
	return pruned
}

func (q *Queue) deleteJobsFromStore(ids []string) {
	if q.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := q.now()
	toPersist := make([]*Job, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		if job.Status == StatusProcessing {
			job.Status = StatusQueued
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		q.jobs[job.ID] = job
		n := jobNumber(job.ID)
		q.seq[job.ID] = n
		if n > q.idCounter {
			q.idCounter = n
		}
		if job.Status == StatusQueued && job.DedupeKey != "" {
			q.dedupe[job.DedupeKey] = job.ID
		}
	}
	q.mu.Unlock()

	for _, job := range toPersist {
		q.persistJob(job)
	}
	if len(loaded) > 0 {
		log.Info("Restored %d jobs from store (%d interrupted)", len(loaded), len(toPersist))
	}
}

func jobNumber(jobID string) uint64 {
	if !strings.HasPrefix(jobID, "job-") {
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(jobID, "job-"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (q *Queue) persistJob(job *Job) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

// Backoff is the delay before retry n (1-based): base doubled per retry and
// capped at ceiling.
func Backoff(base, ceiling time.Duration, n int) time.Duration {
	if base <= 0 || n <= 0 {
		return 0
	}
	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return min(d, ceiling)
}

func clampPriority(p, fallback int) int {
	if p == 0 {
		return fallback
	}
	return max(HighestPriority, min(p, LowestPriority))
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	if job.StartedAt != nil {
		v := *job.StartedAt
		tmp.StartedAt = &v
	}
	if job.CompletedAt != nil {
		v := *job.CompletedAt
		tmp.CompletedAt = &v
	}
	return &tmp
}
