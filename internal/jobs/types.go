package jobs

import (
	"errors"
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	HighestPriority = 1
	LowestPriority  = 10
)

// ErrJobExhausted marks a job that failed after its last allowed retry.
var ErrJobExhausted = errors.New("job exhausted")

type EnqueueRequest struct {
	MovieID            string
	Language           string
	Title              string
	ExternalSubtitleID string
	FileID             int64
	Provider           string
	Source             string
	FileURL            string
	// Priority 1 is dispatched first; 0 selects the queue default.
	Priority  int
	DedupeKey string
}

// Job is one unit of asynchronous fetch and processing work.
type Job struct {
	ID                 string     `json:"id"`
	MovieID            string     `json:"movie_id"`
	Language           string     `json:"language"`
	Title              string     `json:"title,omitempty"`
	ExternalSubtitleID string     `json:"external_subtitle_id,omitempty"`
	FileID             int64      `json:"file_id,omitempty"`
	Provider           string     `json:"provider,omitempty"`
	Source             string     `json:"source"`
	FileURL            string     `json:"file_url,omitempty"`
	Status             Status     `json:"status"`
	Priority           int        `json:"priority"`
	RetryCount         int        `json:"retry_count"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	DedupeKey          string     `json:"dedupe_key,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	// NotBefore delays a retried job until its backoff has elapsed.
	NotBefore time.Time `json:"not_before,omitzero"`
}

// Stats counts jobs per status.
type Stats struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
