package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MimeLyc/cinefluent/pkg/log"
)

// DefaultCooldown bounds a denial reported without a reset time.
const DefaultCooldown = 60 * time.Second

// window is the latest rate-limit metadata seen for one API on day date.
type window struct {
	date      string
	remaining *int
	reset     *time.Time
}

// Tracker counts provider requests per day and gates dispatch to providers
// that reported an exhausted quota.
type Tracker struct {
	store Store
	now   func() time.Time

	mu      sync.RWMutex
	windows map[string]window
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New returns a Tracker. A nil store selects a MemoryStore.
func New(store Store, opts ...Option) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	t := &Tracker{
		store:   store,
		now:     time.Now,
		windows: make(map[string]window),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordAttempt increments today's counters for (apiName, endpoint). When
// remaining or reset are reported they replace the gate state for apiName.
// An exhausted quota without a reset time is held for DefaultCooldown.
func (t *Tracker) RecordAttempt(ctx context.Context, apiName, endpoint string, success bool, remaining *int, reset *time.Time) error {
	if apiName == "" {
		return fmt.Errorf("record attempt: api name is required")
	}
	now := t.now()
	if remaining != nil && *remaining <= 0 && reset == nil {
		until := now.Add(DefaultCooldown).UTC()
		reset = &until
	}
	row, err := t.store.IncrementUsage(ctx, Attempt{
		APIName:   apiName,
		Endpoint:  endpoint,
		Date:      DateKey(now),
		Success:   success,
		Remaining: remaining,
		Reset:     reset,
		At:        now,
	})
	if err != nil {
		return fmt.Errorf("record attempt for %s %s: %w", apiName, endpoint, err)
	}

	if remaining != nil || reset != nil {
		t.mu.Lock()
		w := t.windows[apiName]
		if today := DateKey(now); w.date != today {
			w = window{date: today}
		}
		if remaining != nil {
			w.remaining = row.RateLimitRemaining
		}
		if reset != nil {
			w.reset = row.RateLimitReset
		}
		t.windows[apiName] = w
		t.mu.Unlock()

		if remaining != nil && *remaining <= 0 {
			log.Warn("Rate limit exhausted for %s (endpoint %s), reset at %v", apiName, endpoint, formatReset(reset))
		}
	}
	return nil
}

// Allow reports whether a job targeting apiName may be dispatched. It denies
// only when today's remaining is known, non-positive, and the reset time is
// still in the future. Metadata from an earlier day is ignored.
func (t *Tracker) Allow(apiName string) bool {
	now := t.now()
	w, ok := t.current(apiName, now)
	if !ok || w.remaining == nil || *w.remaining > 0 || w.reset == nil {
		return true
	}
	return !now.Before(*w.reset)
}

// RetryAt is when a denied apiName is expected to allow again.
func (t *Tracker) RetryAt(apiName string) (time.Time, bool) {
	w, ok := t.current(apiName, t.now())
	if !ok || w.reset == nil {
		return time.Time{}, false
	}
	return *w.reset, true
}

func (t *Tracker) current(apiName string, now time.Time) (window, bool) {
	t.mu.RLock()
	w, ok := t.windows[apiName]
	t.mu.RUnlock()
	if !ok || w.date != DateKey(now) {
		return window{}, false
	}
	return w, true
}

// Usage lists the counter rows for apiName on the day of day. An empty
// apiName lists every API.
func (t *Tracker) Usage(ctx context.Context, apiName string, day time.Time) ([]Usage, error) {
	if day.IsZero() {
		day = t.now()
	}
	rows, err := t.store.ListUsage(ctx, apiName, DateKey(day))
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	return rows, nil
}

// Hydrate restores the gate from today's persisted rows, so a restart does
// not forget an exhausted quota.
func (t *Tracker) Hydrate(ctx context.Context) error {
	rows, err := t.store.ListUsage(ctx, "", DateKey(t.now()))
	if err != nil {
		return fmt.Errorf("hydrate rate limits: %w", err)
	}

	// the most recently updated row carries the freshest headers
	latest := make(map[string]Usage)
	for _, row := range rows {
		if row.RateLimitRemaining == nil && row.RateLimitReset == nil {
			continue
		}
		if prev, ok := latest[row.APIName]; ok && !row.UpdatedAt.After(prev.UpdatedAt) {
			continue
		}
		latest[row.APIName] = row
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for api, row := range latest {
		t.windows[api] = window{date: row.Date, remaining: row.RateLimitRemaining, reset: row.RateLimitReset}
	}
	return nil
}

func formatReset(reset *time.Time) string {
	if reset == nil {
		return "unknown"
	}
	return reset.UTC().Format(time.RFC3339)
}
