package acquisition

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MimeLyc/cinefluent/pkg/log"
)

type Options struct {
	DefaultTTL     time.Duration
	MaxMemoryItems int
}

var DefaultOptions = Options{
	DefaultTTL:     24 * time.Hour,
	MaxMemoryItems: 200,
}

// Cache is a TTL cache of search results: a bounded in-memory LRU in
// front of an optional persistent Store. Expired entries read as misses
// until a sweep removes them.
type Cache struct {
	store  Store
	opts   Options
	now    func() time.Time
	memory *expirable.LRU[string, Entry]

	hits   atomic.Uint64
	misses atomic.Uint64
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(store Store, opts Options, options ...Option) *Cache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultOptions.DefaultTTL
	}
	if opts.MaxMemoryItems <= 0 {
		opts.MaxMemoryItems = DefaultOptions.MaxMemoryItems
	}
	c := &Cache{
		store:  store,
		opts:   opts,
		now:    time.Now,
		memory: expirable.NewLRU[string, Entry](opts.MaxMemoryItems, nil, opts.DefaultTTL),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Cache) DefaultTTL() time.Duration {
	return c.opts.DefaultTTL
}

// Key is the hex SHA-256 of the normalized (movieID, language, title).
func Key(movieID, language, title string) string {
	h := sha256.New()
	for _, part := range []string{
		strings.TrimSpace(movieID),
		strings.ToLower(strings.TrimSpace(language)),
		strings.ToLower(strings.TrimSpace(title)),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the live payload for the tuple.
func (c *Cache) Get(ctx context.Context, movieID, language, title string) (Payload, bool) {
	key := Key(movieID, language, title)
	now := c.now()

	if entry, ok := c.memory.Get(key); ok {
		if entry.Expired(now) {
			c.misses.Add(1)
			return Payload{}, false
		}
		c.hits.Add(1)
		return entry.Payload, true
	}

	if c.store != nil {
		entry, found, err := c.store.GetCacheEntry(ctx, key)
		if err != nil {
			log.Warn("Cache lookup for movie %s (%s) failed: %v", movieID, language, err)
		} else if found && !entry.Expired(now) {
			c.memory.Add(key, entry)
			c.hits.Add(1)
			return entry.Payload, true
		}
	}
	c.misses.Add(1)
	return Payload{}, false
}

// Put stores payload for ttl. A non-positive ttl writes an entry that is
// already expired.
func (c *Cache) Put(ctx context.Context, movieID, language, title string, payload Payload, ttl time.Duration) error {
	now := c.now()
	entry := Entry{
		Key:       Key(movieID, language, title),
		MovieID:   movieID,
		Language:  strings.ToLower(strings.TrimSpace(language)),
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if c.store != nil {
		if err := c.store.PutCacheEntry(ctx, entry); err != nil {
			return fmt.Errorf("put cache entry: %w", err)
		}
	}
	c.memory.Add(entry.Key, entry)
	return nil
}

// Sweep removes expired entries from memory and the store. It is safe to
// run concurrently with Get and Put.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	now := c.now()

	removed := 0
	for _, key := range c.memory.Keys() {
		if entry, ok := c.memory.Peek(key); ok && entry.Expired(now) {
			c.memory.Remove(key)
			removed++
		}
	}

	if c.store == nil {
		return removed, nil
	}
	n, err := c.store.DeleteExpiredCacheEntries(ctx, now)
	if err != nil {
		return removed, fmt.Errorf("sweep cache: %w", err)
	}
	return n, nil
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	now := c.now()

	var s Stats
	if c.store != nil {
		base, err := c.store.CacheStats(ctx, now)
		if err != nil {
			return Stats{}, fmt.Errorf("cache stats: %w", err)
		}
		s.StoreStats = base
	}

	s.MemoryEntries = c.memory.Len()
	if c.store == nil {
		languages := make(map[string]struct{})
		movies := make(map[string]struct{})
		for _, entry := range c.memory.Values() {
			s.TotalEntries++
			if entry.Expired(now) {
				s.ExpiredEntries++
				continue
			}
			s.ActiveEntries++
			languages[entry.Language] = struct{}{}
			movies[entry.MovieID] = struct{}{}
		}
		s.LanguagesCached = len(languages)
		s.MoviesCached = len(movies)
	}

	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s, nil
}
