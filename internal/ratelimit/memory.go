package ratelimit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*Usage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Usage)}
}

func (m *MemoryStore) IncrementUsage(_ context.Context, a Attempt) (Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := a.APIName + "|" + a.Endpoint + "|" + a.Date
	row, ok := m.rows[key]
	if !ok {
		row = &Usage{APIName: a.APIName, Endpoint: a.Endpoint, Date: a.Date}
		m.rows[key] = row
	}
	applyAttempt(row, a)
	return cloneUsage(row), nil
}

func (m *MemoryStore) ListUsage(_ context.Context, apiName, date string) ([]Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Usage, 0)
	for _, row := range m.rows {
		if (apiName == "" || row.APIName == apiName) && (date == "" || row.Date == date) {
			out = append(out, cloneUsage(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].APIName != out[j].APIName {
			return out[i].APIName < out[j].APIName
		}
		return out[i].Endpoint < out[j].Endpoint
	})
	return out, nil
}

// applyAttempt mirrors the SQL upsert: counters increment, rate-limit fields
// are overwritten only when reported.
func applyAttempt(row *Usage, a Attempt) {
	row.RequestCount++
	if a.Success {
		row.SuccessCount++
	} else {
		row.ErrorCount++
	}
	if a.Remaining != nil {
		v := *a.Remaining
		row.RateLimitRemaining = &v
	}
	if a.Reset != nil {
		v := *a.Reset
		row.RateLimitReset = &v
	}
	row.UpdatedAt = a.At
}

func cloneUsage(u *Usage) Usage {
	out := *u
	if u.RateLimitRemaining != nil {
		v := *u.RateLimitRemaining
		out.RateLimitRemaining = &v
	}
	if u.RateLimitReset != nil {
		v := *u.RateLimitReset
		out.RateLimitReset = &v
	}
	return out
}
