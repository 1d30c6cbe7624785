package acquisition

import (
	"context"
	"time"

	"github.com/MimeLyc/cinefluent/internal/provider"
	"github.com/MimeLyc/cinefluent/internal/segment"
)

// ProcessedSubtitle points at a subtitle document produced from a
// search result.
type ProcessedSubtitle struct {
	SubtitleID string          `json:"subtitle_id"`
	JobID      string          `json:"job_id,omitempty"`
	Summary    segment.Summary `json:"summary"`
}

// Payload is the cached search result for one (movie, language, title).
type Payload struct {
	MovieID    string               `json:"movie_id"`
	Language   string               `json:"language"`
	Title      string               `json:"title,omitempty"`
	Candidates []provider.Candidate `json:"candidates"`
	Subtitle   *ProcessedSubtitle   `json:"subtitle,omitempty"`
}

// Entry is an immutable cache record.
type Entry struct {
	Key       string    `json:"key"`
	MovieID   string    `json:"movie_id"`
	Language  string    `json:"language"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// StoreStats are the aggregate counts of a Store at a point in time.
type StoreStats struct {
	TotalEntries    int `json:"total_entries"`
	ActiveEntries   int `json:"active_entries"`
	ExpiredEntries  int `json:"expired_entries"`
	LanguagesCached int `json:"languages_cached"`
	MoviesCached    int `json:"movies_cached"`
}

// Stats extends StoreStats with the process-local hit counters.
type Stats struct {
	StoreStats
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	HitRatio      float64 `json:"hit_ratio"`
	MemoryEntries int     `json:"memory_entries"`
}

// Store persists cache entries. PutCacheEntry replaces any entry with the
// same key.
type Store interface {
	PutCacheEntry(ctx context.Context, e Entry) error
	GetCacheEntry(ctx context.Context, key string) (Entry, bool, error)
	DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int, error)
	CacheStats(ctx context.Context, now time.Time) (StoreStats, error)
}
