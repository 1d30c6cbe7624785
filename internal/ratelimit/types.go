package ratelimit

import (
	"context"
	"time"
)

// Usage is the counter row for one (api, endpoint, day).
type Usage struct {
	APIName            string     `json:"api_name"`
	Endpoint           string     `json:"endpoint"`
	Date               string     `json:"date"`
	RequestCount       int        `json:"request_count"`
	SuccessCount       int        `json:"success_count"`
	ErrorCount         int        `json:"error_count"`
	RateLimitRemaining *int       `json:"rate_limit_remaining,omitempty"`
	RateLimitReset     *time.Time `json:"rate_limit_reset,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Attempt is a single increment applied by Store.IncrementUsage.
type Attempt struct {
	APIName   string
	Endpoint  string
	Date      string
	Success   bool
	Remaining *int
	Reset     *time.Time
	At        time.Time
}

// Store persists usage counters. IncrementUsage must be an atomic
// upsert-increment for the attempt's key and return the updated row.
type Store interface {
	IncrementUsage(ctx context.Context, a Attempt) (Usage, error)
	ListUsage(ctx context.Context, apiName, date string) ([]Usage, error)
}

// DateKey is the UTC calendar day used to bucket counters.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
