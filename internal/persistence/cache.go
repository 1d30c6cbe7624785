package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MimeLyc/cinefluent/internal/acquisition"
)

func (s *SQLiteStore) PutCacheEntry(ctx context.Context, e acquisition.Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO subtitle_cache (cache_key, movie_id, language, payload_json, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			movie_id=excluded.movie_id,
			language=excluded.language,
			payload_json=excluded.payload_json,
			created_at=excluded.created_at,
			expires_at=excluded.expires_at`,
		e.Key,
		e.MovieID,
		e.Language,
		string(payload),
		formatTime(e.CreatedAt),
		formatTime(e.ExpiresAt),
	)
	return err
}

func (s *SQLiteStore) GetCacheEntry(ctx context.Context, key string) (acquisition.Entry, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT cache_key, movie_id, language, payload_json, created_at, expires_at
		 FROM subtitle_cache
		 WHERE cache_key = ?`,
		key,
	)
	var (
		e                    acquisition.Entry
		payload              string
		createdAt, expiresAt string
	)
	if err := row.Scan(&e.Key, &e.MovieID, &e.Language, &payload, &createdAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return acquisition.Entry{}, false, nil
		}
		return acquisition.Entry{}, false, err
	}
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return acquisition.Entry{}, false, fmt.Errorf("decode cache payload: %w", err)
	}
	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return acquisition.Entry{}, false, err
	}
	if e.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return acquisition.Entry{}, false, err
	}
	return e, true, nil
}

// DeleteExpiredCacheEntries removes rows whose expires_at is at or before now.
func (s *SQLiteStore) DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subtitle_cache WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) CacheStats(ctx context.Context, now time.Time) (acquisition.StoreStats, error) {
	var st acquisition.StoreStats
	cutoff := formatTime(now)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT CASE WHEN expires_at > ? THEN language END),
			COUNT(DISTINCT CASE WHEN expires_at > ? THEN movie_id END)
		 FROM subtitle_cache`,
		cutoff, cutoff, cutoff,
	).Scan(&st.TotalEntries, &st.ActiveEntries, &st.LanguagesCached, &st.MoviesCached)
	if err != nil {
		return acquisition.StoreStats{}, err
	}
	st.ExpiredEntries = st.TotalEntries - st.ActiveEntries
	return st, nil
}
