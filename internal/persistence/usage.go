package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MimeLyc/cinefluent/internal/ratelimit"
)

// IncrementUsage upserts the (api, endpoint, day) row and returns it.
// Rate-limit columns keep their previous value when the attempt has none.
func (s *SQLiteStore) IncrementUsage(ctx context.Context, a ratelimit.Attempt) (ratelimit.Usage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ratelimit.Usage{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var remaining sql.NullInt64
	if a.Remaining != nil {
		remaining = sql.NullInt64{Int64: int64(*a.Remaining), Valid: true}
	}
	success := boolToInt(a.Success)
	if _, err = tx.ExecContext(
		ctx,
		`INSERT INTO api_usage (
			api_name, endpoint, usage_date, request_count, success_count, error_count,
			rate_limit_remaining, rate_limit_reset, updated_at
		) VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(api_name, endpoint, usage_date) DO UPDATE SET
			request_count = request_count + 1,
			success_count = success_count + excluded.success_count,
			error_count = error_count + excluded.error_count,
			rate_limit_remaining = COALESCE(excluded.rate_limit_remaining, rate_limit_remaining),
			rate_limit_reset = COALESCE(excluded.rate_limit_reset, rate_limit_reset),
			updated_at = excluded.updated_at`,
		a.APIName,
		a.Endpoint,
		a.Date,
		success,
		1-success,
		remaining,
		nullableTime(a.Reset),
		formatTime(a.At),
	); err != nil {
		return ratelimit.Usage{}, fmt.Errorf("upsert usage: %w", err)
	}

	rows, err := tx.QueryContext(ctx, usageSelect+` WHERE api_name = ? AND endpoint = ? AND usage_date = ?`, a.APIName, a.Endpoint, a.Date)
	if err != nil {
		return ratelimit.Usage{}, err
	}
	list, err := scanUsage(rows)
	if err != nil {
		return ratelimit.Usage{}, err
	}
	if len(list) != 1 {
		return ratelimit.Usage{}, fmt.Errorf("usage row for %s %s %s not found", a.APIName, a.Endpoint, a.Date)
	}
	if err = tx.Commit(); err != nil {
		return ratelimit.Usage{}, err
	}
	return list[0], nil
}

// ListUsage filters by api name and day; empty values match everything.
func (s *SQLiteStore) ListUsage(ctx context.Context, apiName, date string) ([]ratelimit.Usage, error) {
	rows, err := s.db.QueryContext(
		ctx,
		usageSelect+` WHERE (? = '' OR api_name = ?) AND (? = '' OR usage_date = ?)
		 ORDER BY usage_date, api_name, endpoint`,
		apiName, apiName, date, date,
	)
	if err != nil {
		return nil, err
	}
	return scanUsage(rows)
}

const usageSelect = `SELECT api_name, endpoint, usage_date, request_count, success_count, error_count,
	rate_limit_remaining, rate_limit_reset, updated_at FROM api_usage`

func scanUsage(rows *sql.Rows) ([]ratelimit.Usage, error) {
	defer rows.Close()

	ret := make([]ratelimit.Usage, 0)
	for rows.Next() {
		var (
			u         ratelimit.Usage
			remaining sql.NullInt64
			reset     sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&u.APIName, &u.Endpoint, &u.Date, &u.RequestCount, &u.SuccessCount, &u.ErrorCount,
			&remaining, &reset, &updatedAt); err != nil {
			return nil, err
		}
		if remaining.Valid {
			v := int(remaining.Int64)
			u.RateLimitRemaining = &v
		}
		var err error
		if u.RateLimitReset, err = parseNullableTime(reset); err != nil {
			return nil, err
		}
		if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		ret = append(ret, u)
	}
	return ret, rows.Err()
}
