package provider

import (
	"context"
	"time"
)

// Candidate is one subtitle returned by a provider search.
type Candidate struct {
	ID              string  `json:"id"`
	FileID          int64   `json:"file_id,omitempty"`
	Provider        string  `json:"provider"`
	Language        string  `json:"language"`
	Release         string  `json:"release,omitempty"`
	Title           string  `json:"title,omitempty"`
	Year            int     `json:"year,omitempty"`
	Downloads       int     `json:"downloads"`
	Rating          float64 `json:"rating,omitempty"`
	HearingImpaired bool    `json:"hearing_impaired,omitempty"`
	FileURL         string  `json:"file_url,omitempty"`
}

type SearchRequest struct {
	MovieID   string
	IMDBID    string
	Query     string
	Year      string
	Languages []string
}

type Download struct {
	Data     []byte
	FileName string
	Language string
	URL      string
}

// Searcher finds subtitle candidates.
type Searcher interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) ([]Candidate, error)
}

// Fetcher downloads a provider file by id.
type Fetcher interface {
	Download(ctx context.Context, fileID int64) (Download, error)
}

// UsageRecorder receives one call per provider request. remaining and reset
// are nil when the provider did not report rate-limit headers.
type UsageRecorder interface {
	RecordAttempt(ctx context.Context, apiName, endpoint string, success bool, remaining *int, reset *time.Time) error
}
