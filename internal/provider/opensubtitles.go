package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MimeLyc/cinefluent/pkg/log"
)

const (
	OpenSubtitlesName = "opensubtitles"

	defaultBaseURL     = "https://api.opensubtitles.com/api/v1"
	defaultUserAgent   = "CineFluent v1.0"
	defaultHTTPTimeout = 30 * time.Second

	// DefaultMinInterval spaces consecutive API requests.
	DefaultMinInterval = time.Second
	// RateLimitCooldown is assumed when a 429 carries no reset hint.
	RateLimitCooldown = 60 * time.Second
)

type Config struct {
	APIKey     string
	UserAgent  string
	BaseURL    string
	HTTPClient *http.Client
	Recorder   UsageRecorder
	// MinInterval between API requests; zero selects DefaultMinInterval.
	MinInterval time.Duration
	// Now is used to resolve relative reset headers.
	Now func() time.Time
}

// OpenSubtitles wraps the OpenSubtitles REST API.
type OpenSubtitles struct {
	apiKey    string
	userAgent string
	baseURL   *url.URL
	http      *http.Client
	recorder  UsageRecorder
	limiter   *rate.Limiter
	now       func() time.Time
}

func NewOpenSubtitles(cfg Config) (*OpenSubtitles, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("opensubtitles: api key is required")
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	return &OpenSubtitles{
		apiKey:    apiKey,
		userAgent: userAgent,
		baseURL:   baseURL,
		http:      client,
		recorder:  cfg.Recorder,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		now:       now,
	}, nil
}

func (c *OpenSubtitles) Name() string {
	return OpenSubtitlesName
}

// Search lists subtitles, best rated first and then by download count.
func (c *OpenSubtitles) Search(ctx context.Context, req SearchRequest) ([]Candidate, error) {
	endpoint := c.baseURL.JoinPath("subtitles")
	params := url.Values{}
	if imdb := sanitizeIMDBID(req.IMDBID); imdb != "" {
		params.Set("imdb_id", imdb)
	}
	if req.Query != "" {
		params.Set("query", req.Query)
	}
	if len(req.Languages) > 0 {
		params.Set("languages", strings.Join(req.Languages, ","))
	}
	if req.Year != "" {
		params.Set("year", req.Year)
	}
	params.Set("order_by", "download_count")
	params.Set("order_direction", "desc")
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: build search request: %w", err)
	}
	c.applyHeaders(httpReq)

	resp, err := c.do(ctx, "search", httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &FetchError{Kind: KindTransport, Provider: OpenSubtitlesName, Op: "search", Err: fmt.Errorf("decode search response: %w", err)}
	}

	candidates := make([]Candidate, 0, len(payload.Data))
	for _, entry := range payload.Data {
		if entry.Attributes.Language == "" || len(entry.Attributes.Files) == 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:              entry.ID,
			FileID:          entry.Attributes.Files[0].FileID,
			Provider:        OpenSubtitlesName,
			Language:        entry.Attributes.Language,
			Release:         entry.Attributes.Release,
			Title:           entry.Attributes.FeatureDetails.Title,
			Year:            entry.Attributes.FeatureDetails.Year,
			Downloads:       entry.Attributes.DownloadCount,
			Rating:          entry.Attributes.Ratings,
			HearingImpaired: entry.Attributes.HearingImpaired,
		})
	}
	RankCandidates(candidates)
	return candidates, nil
}

// Download negotiates a temporary link for fileID and fetches the payload.
func (c *OpenSubtitles) Download(ctx context.Context, fileID int64) (Download, error) {
	if fileID <= 0 {
		return Download{}, &FetchError{Kind: KindNotFound, Provider: OpenSubtitlesName, Op: "download", Err: errors.New("invalid file id")}
	}
	body, err := json.Marshal(map[string]any{"file_id": fileID, "sub_format": "srt"})
	if err != nil {
		return Download{}, fmt.Errorf("opensubtitles: encode download request: %w", err)
	}

	endpoint := c.baseURL.JoinPath("download")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Download{}, fmt.Errorf("opensubtitles: build download request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.applyHeaders(httpReq)

	resp, err := c.do(ctx, "download", httpReq)
	if err != nil {
		return Download{}, err
	}
	defer resp.Body.Close()

	var info downloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Download{}, &FetchError{Kind: KindTransport, Provider: OpenSubtitlesName, Op: "download", Err: fmt.Errorf("decode download response: %w", err)}
	}
	if info.Link == "" {
		return Download{}, &FetchError{Kind: KindTransport, Provider: OpenSubtitlesName, Op: "download", Err: errors.New("response missing link")}
	}
	link, err := endpoint.Parse(info.Link)
	if err != nil {
		return Download{}, &FetchError{Kind: KindTransport, Provider: OpenSubtitlesName, Op: "download", Err: err}
	}

	data, err := getBody(ctx, c.http, OpenSubtitlesName, link.String(), c.userAgent)
	if err != nil {
		return Download{}, err
	}
	return Download{
		Data:     data,
		FileName: info.FileName,
		Language: info.Language,
		URL:      link.String(),
	}, nil
}

// do executes req, records usage and turns error statuses into FetchErrors.
func (c *OpenSubtitles) do(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Kind: KindTimeout, Provider: OpenSubtitlesName, Op: op, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.record(ctx, op, false, nil, nil)
		return nil, Classify(OpenSubtitlesName, op, err)
	}

	remaining, reset := parseRateLimit(resp.Header, c.now())
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		fe := statusError(OpenSubtitlesName, op, resp, string(body))
		if fe.Kind == KindRateLimited {
			if remaining == nil {
				zero := 0
				remaining = &zero
			}
			if reset == nil {
				until := c.now().Add(RateLimitCooldown).UTC()
				reset = &until
			}
		}
		c.record(ctx, op, false, remaining, reset)
		return nil, fe
	}
	c.record(ctx, op, true, remaining, reset)
	return resp, nil
}

func (c *OpenSubtitles) record(ctx context.Context, op string, success bool, remaining *int, reset *time.Time) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordAttempt(ctx, OpenSubtitlesName, op, success, remaining, reset); err != nil {
		log.Warn("Failed to record %s %s usage: %v", OpenSubtitlesName, op, err)
	}
}

func (c *OpenSubtitles) applyHeaders(req *http.Request) {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
}

// parseRateLimit reads X-RateLimit-Remaining and X-RateLimit-Reset (or
// Retry-After). Reset values are either unix seconds or seconds from now.
func parseRateLimit(h http.Header, now time.Time) (*int, *time.Time) {
	var remaining *int
	if raw := strings.TrimSpace(h.Get("X-RateLimit-Remaining")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			remaining = &n
		}
	}

	raw := strings.TrimSpace(h.Get("X-RateLimit-Reset"))
	if raw == "" {
		raw = strings.TrimSpace(h.Get("Retry-After"))
	}
	if raw == "" {
		return remaining, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		var reset time.Time
		if secs > 1_000_000_000 {
			reset = time.Unix(secs, 0).UTC()
		} else {
			reset = now.Add(time.Duration(secs) * time.Second).UTC()
		}
		return remaining, &reset
	}
	if t, err := http.ParseTime(raw); err == nil {
		t = t.UTC()
		return remaining, &t
	}
	return remaining, nil
}

// RankCandidates orders candidates by rating, then download count, both
// descending.
func RankCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Rating != candidates[j].Rating {
			return candidates[i].Rating > candidates[j].Rating
		}
		return candidates[i].Downloads > candidates[j].Downloads
	})
}

func sanitizeIMDBID(value string) string {
	value = strings.TrimPrefix(strings.TrimSpace(value), "tt")
	if value == "" {
		return ""
	}
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return ""
	}
	return value
}

type searchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Language        string  `json:"language"`
			Release         string  `json:"release"`
			DownloadCount   int     `json:"download_count"`
			Ratings         float64 `json:"ratings"`
			HearingImpaired bool    `json:"hearing_impaired"`
			FeatureDetails  struct {
				Title string `json:"title"`
				Year  int    `json:"year"`
			} `json:"feature_details"`
			Files []struct {
				FileID int64 `json:"file_id"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

type downloadResponse struct {
	Link     string `json:"link"`
	FileName string `json:"file_name"`
	Language string `json:"language"`
}
