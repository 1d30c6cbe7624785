package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/MimeLyc/cinefluent/internal/acquisition"
	"github.com/MimeLyc/cinefluent/internal/enrich"
	"github.com/MimeLyc/cinefluent/internal/jobs"
	"github.com/MimeLyc/cinefluent/internal/persistence"
	"github.com/MimeLyc/cinefluent/internal/provider"
	"github.com/MimeLyc/cinefluent/internal/ratelimit"
	"github.com/MimeLyc/cinefluent/internal/segment"
	"github.com/MimeLyc/cinefluent/internal/subtitle"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

const (
	SourceUpload = "upload"
	SourceImport = "import"
)

// documentNamespace seeds the deterministic IDs of documents built from
// external subtitles, so reprocessing replaces the previous document.
var documentNamespace = uuid.MustParse("6f1c9f4e-4c1b-4a55-9a51-2f4f1f0d7c3e")

// DocumentStore persists processed subtitle documents.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc persistence.Document) error
	LoadDocument(ctx context.Context, id string) (persistence.Document, error)
	LoadSegments(ctx context.Context, subtitleID string) ([]segment.Segment, error)
	LoadCues(ctx context.Context, subtitleID string) ([]enrich.Cue, error)
	FindDocuments(ctx context.Context, movieID, language string) ([]persistence.Document, error)
}

// URLDownloader fetches a subtitle file by direct URL.
type URLDownloader interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Deps are the collaborators of a Service. Searcher, Fetcher and Downloader
// are optional; without them external acquisition is unavailable.
type Deps struct {
	Documents  DocumentStore
	Cache      *acquisition.Cache
	Queue      *jobs.Queue
	Tracker    *ratelimit.Tracker
	Engine     *enrich.Engine
	Segmenter  *segment.Segmenter
	Searcher   provider.Searcher
	Fetcher    provider.Fetcher
	Downloader URLDownloader
}

type Options struct {
	TargetLanguage string
	FetchTimeout   time.Duration
	CacheTTL       time.Duration
	JobRetention   time.Duration
	// EnqueueLimit is how many of the top search candidates get a job.
	EnqueueLimit int
}

var DefaultOptions = Options{
	TargetLanguage: "en",
	FetchTimeout:   30 * time.Second,
	CacheTTL:       24 * time.Hour,
	JobRetention:   7 * 24 * time.Hour,
	EnqueueLimit:   1,
}

type counters struct {
	searches  atomic.Uint64
	enqueued  atomic.Uint64
	processed atomic.Uint64
}

type Service struct {
	docs       DocumentStore
	cache      *acquisition.Cache
	queue      *jobs.Queue
	tracker    *ratelimit.Tracker
	engine     *enrich.Engine
	segmenter  *segment.Segmenter
	searcher   provider.Searcher
	fetcher    provider.Fetcher
	downloader URLDownloader
	opts       Options

	flight  singleflight.Group
	counter counters
}

func New(deps Deps, opts Options) (*Service, error) {
	if deps.Documents == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("job queue is required")
	}
	if deps.Cache == nil {
		deps.Cache = acquisition.New(nil, acquisition.DefaultOptions)
	}
	if deps.Tracker == nil {
		deps.Tracker = ratelimit.New(nil)
	}
	if deps.Engine == nil {
		deps.Engine = enrich.NewDefaultEngine(enrich.DefaultThresholds)
	}
	if deps.Segmenter == nil {
		deps.Segmenter = segment.New(segment.DefaultWindowSeconds)
	}

	if strings.TrimSpace(opts.TargetLanguage) == "" {
		opts.TargetLanguage = DefaultOptions.TargetLanguage
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultOptions.FetchTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = deps.Cache.DefaultTTL()
	}
	if opts.JobRetention <= 0 {
		opts.JobRetention = DefaultOptions.JobRetention
	}
	if opts.EnqueueLimit <= 0 {
		opts.EnqueueLimit = DefaultOptions.EnqueueLimit
	}

	return &Service{
		docs:       deps.Documents,
		cache:      deps.Cache,
		queue:      deps.Queue,
		tracker:    deps.Tracker,
		engine:     deps.Engine,
		segmenter:  deps.Segmenter,
		searcher:   deps.Searcher,
		fetcher:    deps.Fetcher,
		downloader: deps.Downloader,
		opts:       opts,
	}, nil
}

// ProviderGate holds queued jobs whose provider reported an exhausted quota.
func ProviderGate(tracker *ratelimit.Tracker) jobs.Gate {
	return func(job *jobs.Job) bool {
		if job.Provider == "" {
			return true
		}
		return tracker.Allow(job.Provider)
	}
}

// Start restores the rate-limit gate and starts the queue workers.
func (s *Service) Start(ctx context.Context) {
	if err := s.tracker.Hydrate(ctx); err != nil {
		log.Warn("Failed to restore rate-limit state: %v", err)
	}
	s.queue.Start(s.ExecuteJob)
}

func (s *Service) Stop() {
	s.queue.Stop()
}

type UploadRequest struct {
	Data      []byte
	Extension string
	MovieID   string
	Language  string
	Title     string
	// Source defaults to SourceUpload.
	Source string
}

type UploadResult struct {
	SubtitleID string `json:"subtitle_id"`
	segment.Summary
}

// ProcessUpload parses, enriches and segments an uploaded subtitle file and
// stores the result. Nothing is stored when any step fails.
func (s *Service) ProcessUpload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	movieID := strings.TrimSpace(req.MovieID)
	if movieID == "" {
		return UploadResult{}, NewError(ErrValidation, "movie id is required")
	}
	format, err := subtitle.ParseFormat(req.Extension)
	if err != nil {
		return UploadResult{}, WrapError(err, ErrParse, "unsupported subtitle format").
			WithContext("extension", req.Extension)
	}
	cues, err := subtitle.Parse(req.Data, format)
	if err != nil {
		return UploadResult{}, WrapError(err, ErrParse, "failed to parse subtitle").
			WithContext("movie_id", movieID)
	}

	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		tag := subtitle.DetectLanguage(cues)
		if tag == language.Und {
			return UploadResult{}, NewError(ErrValidation, "language is required and could not be detected")
		}
		lang = tag.String()
		log.Info("Detected language %s for upload of movie %s", lang, movieID)
	} else if lang, err = normalizeLanguage(lang); err != nil {
		return UploadResult{}, WrapError(err, ErrValidation, "invalid language").WithContext("language", req.Language)
	}

	source := req.Source
	if source == "" {
		source = SourceUpload
	}
	doc := s.build(cues, format)
	doc.ID = uuid.NewString()
	doc.MovieID = movieID
	doc.Language = lang
	doc.Title = strings.TrimSpace(req.Title)
	doc.Source = source

	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return UploadResult{}, WrapError(err, ErrStorage, "failed to save subtitle").WithContext("movie_id", movieID)
	}
	s.counter.processed.Add(1)
	log.Info("Processed %s subtitle %s: %d cues, %d segments",
		source, doc.ID, doc.Summary.TotalCues, doc.Summary.TotalSegments)

	return UploadResult{SubtitleID: doc.ID, Summary: doc.Summary}, nil
}

// build runs the pure part of the pipeline.
func (s *Service) build(cues []subtitle.Cue, format subtitle.Format) persistence.Document {
	enriched := s.engine.Enrich(cues, s.opts.TargetLanguage)
	segments := s.segmenter.Segment(enriched)
	return persistence.Document{
		Format:    format,
		Summary:   segment.Summarize(enriched, segments),
		CreatedAt: time.Now(),
		Cues:      enriched,
		Segments:  segments,
	}
}

type SegmentList struct {
	SubtitleID string            `json:"subtitle_id"`
	Segments   []segment.Segment `json:"segments"`
	Total      int               `json:"total"`
}

func (s *Service) GetSegments(ctx context.Context, subtitleID string) (SegmentList, error) {
	segments, err := s.docs.LoadSegments(ctx, subtitleID)
	if err != nil {
		return SegmentList{}, s.loadError(err, subtitleID)
	}
	return SegmentList{SubtitleID: subtitleID, Segments: segments, Total: len(segments)}, nil
}

type CueList struct {
	SubtitleID string       `json:"subtitle_id"`
	Cues       []enrich.Cue `json:"cues"`
	Total      int          `json:"total"`
}

func (s *Service) GetCues(ctx context.Context, subtitleID string) (CueList, error) {
	cues, err := s.docs.LoadCues(ctx, subtitleID)
	if err != nil {
		return CueList{}, s.loadError(err, subtitleID)
	}
	return CueList{SubtitleID: subtitleID, Cues: cues, Total: len(cues)}, nil
}

func (s *Service) GetDocument(ctx context.Context, subtitleID string) (persistence.Document, error) {
	doc, err := s.docs.LoadDocument(ctx, subtitleID)
	if err != nil {
		return persistence.Document{}, s.loadError(err, subtitleID)
	}
	return doc, nil
}

func (s *Service) loadError(err error, subtitleID string) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return WrapError(err, ErrNotFound, "subtitle not found").WithContext("subtitle_id", subtitleID)
	}
	return WrapError(err, ErrStorage, "failed to load subtitle").WithContext("subtitle_id", subtitleID)
}

func (s *Service) GetCacheStats(ctx context.Context) (acquisition.Stats, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return acquisition.Stats{}, WrapError(err, ErrStorage, "failed to read cache stats")
	}
	return stats, nil
}

type SearchRequest struct {
	MovieID  string
	Language string
	Title    string
	IMDBID   string
	Year     string
	// Priority for the jobs created on a miss; 0 selects the queue default.
	Priority int
}

type SearchResult struct {
	Payload acquisition.Payload `json:"payload"`
	Cached  bool                `json:"cached"`
	// Stored is set when the movie already has processed documents in the
	// requested language; Documents lists them newest first.
	Stored    bool                   `json:"stored"`
	Documents []persistence.Document `json:"documents,omitempty"`
	Jobs      []*jobs.Job            `json:"jobs,omitempty"`
}

// Search answers from stored documents or the cache when possible. On a miss
// it queries the provider once per key, caches the candidates and queues jobs
// that fetch and process the best of them.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	req.MovieID = strings.TrimSpace(req.MovieID)
	if req.MovieID == "" {
		return SearchResult{}, NewError(ErrValidation, "movie id is required")
	}
	lang, err := normalizeLanguage(req.Language)
	if err != nil {
		return SearchResult{}, WrapError(err, ErrValidation, "invalid language").WithContext("language", req.Language)
	}
	req.Language = lang
	req.Title = strings.TrimSpace(req.Title)

	docs, err := s.docs.FindDocuments(ctx, req.MovieID, req.Language)
	if err != nil {
		return SearchResult{}, WrapError(err, ErrStorage, "failed to look up stored subtitles").
			WithContext("movie_id", req.MovieID)
	}
	payload, cached := s.cache.Get(ctx, req.MovieID, req.Language, req.Title)
	if len(docs) > 0 {
		if !cached {
			payload = acquisition.Payload{MovieID: req.MovieID, Language: req.Language, Title: req.Title}
		}
		if payload.Subtitle == nil {
			payload.Subtitle = &acquisition.ProcessedSubtitle{
				SubtitleID: docs[0].ID,
				JobID:      docs[0].JobID,
				Summary:    docs[0].Summary,
			}
		}
		return SearchResult{Payload: payload, Cached: cached, Stored: true, Documents: docs}, nil
	}
	if cached {
		return SearchResult{Payload: payload, Cached: true}, nil
	}
	if s.searcher == nil {
		return SearchResult{}, NewError(ErrUnavailable, "no subtitle provider configured")
	}

	key := acquisition.Key(req.MovieID, req.Language, req.Title)
	v, err, _ := s.flight.Do(key, func() (any, error) {
		return s.searchProvider(ctx, req)
	})
	if err != nil {
		return SearchResult{}, err
	}
	return v.(SearchResult), nil
}

func (s *Service) searchProvider(ctx context.Context, req SearchRequest) (SearchResult, error) {
	name := s.searcher.Name()
	if !s.tracker.Allow(name) {
		err := &provider.FetchError{Kind: provider.KindRateLimited, Provider: name, Op: "search", Err: errors.New("daily quota exhausted")}
		return SearchResult{}, WrapError(err, ErrFetch, "provider rate limited").WithContext("provider", name)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	candidates, err := s.searcher.Search(fetchCtx, provider.SearchRequest{
		MovieID:   req.MovieID,
		IMDBID:    req.IMDBID,
		Query:     req.Title,
		Year:      req.Year,
		Languages: []string{req.Language},
	})
	s.counter.searches.Add(1)
	if err != nil {
		return SearchResult{}, WrapError(err, ErrFetch, "subtitle search failed").
			WithContext("provider", name).
			WithContext("movie_id", req.MovieID)
	}

	payload := acquisition.Payload{
		MovieID:    req.MovieID,
		Language:   req.Language,
		Title:      req.Title,
		Candidates: candidates,
	}
	if err := s.cache.Put(ctx, req.MovieID, req.Language, req.Title, payload, s.opts.CacheTTL); err != nil {
		log.Warn("Failed to cache search result for movie %s: %v", req.MovieID, err)
	}

	result := SearchResult{Payload: payload}
	for _, c := range candidates[:min(s.opts.EnqueueLimit, len(candidates))] {
		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			MovieID:            req.MovieID,
			Language:           req.Language,
			Title:              req.Title,
			ExternalSubtitleID: c.ID,
			FileID:             c.FileID,
			Provider:           c.Provider,
			Source:             c.Provider,
			FileURL:            c.FileURL,
			Priority:           req.Priority,
			DedupeKey:          strings.Join([]string{req.MovieID, req.Language, c.Provider, c.ID}, "|"),
		})
		if created {
			s.counter.enqueued.Add(1)
		}
		result.Jobs = append(result.Jobs, job)
	}
	log.Info("Search for movie %s (%s) found %d candidates, %d jobs",
		req.MovieID, req.Language, len(candidates), len(result.Jobs))
	return result, nil
}

// languageCandidateLimit caps the candidates kept per language by
// SearchLanguages.
const languageCandidateLimit = 5

// SearchLanguages lists subtitle candidates for a movie in several languages.
// Languages already cached are answered from the cache; the rest share one
// provider request whose results are grouped by language, trimmed to the
// best languageCandidateLimit and cached per language. No jobs are queued.
func (s *Service) SearchLanguages(ctx context.Context, movieID, title string, langs []string) (map[string]acquisition.Payload, error) {
	movieID = strings.TrimSpace(movieID)
	if movieID == "" {
		return nil, NewError(ErrValidation, "movie id is required")
	}
	title = strings.TrimSpace(title)

	out := make(map[string]acquisition.Payload, len(langs))
	var missing []string
	for _, raw := range langs {
		lang, err := normalizeLanguage(raw)
		if err != nil {
			return nil, WrapError(err, ErrValidation, "invalid language").WithContext("language", raw)
		}
		if _, seen := out[lang]; seen || slices.Contains(missing, lang) {
			continue
		}
		if payload, ok := s.cache.Get(ctx, movieID, lang, title); ok {
			out[lang] = payload
			continue
		}
		missing = append(missing, lang)
	}
	if len(out) == 0 && len(missing) == 0 {
		return nil, NewError(ErrValidation, "at least one language is required")
	}
	if len(missing) == 0 {
		return out, nil
	}
	if s.searcher == nil {
		return nil, NewError(ErrUnavailable, "no subtitle provider configured")
	}

	name := s.searcher.Name()
	if !s.tracker.Allow(name) {
		err := &provider.FetchError{Kind: provider.KindRateLimited, Provider: name, Op: "search", Err: errors.New("daily quota exhausted")}
		return nil, WrapError(err, ErrFetch, "provider rate limited").WithContext("provider", name)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	candidates, err := s.searcher.Search(fetchCtx, provider.SearchRequest{
		MovieID:   movieID,
		Query:     title,
		Languages: missing,
	})
	s.counter.searches.Add(1)
	if err != nil {
		return nil, WrapError(err, ErrFetch, "subtitle search failed").
			WithContext("provider", name).
			WithContext("movie_id", movieID)
	}

	grouped := make(map[string][]provider.Candidate, len(missing))
	for _, c := range candidates {
		lang, err := normalizeLanguage(c.Language)
		if err != nil || len(grouped[lang]) >= languageCandidateLimit {
			continue
		}
		grouped[lang] = append(grouped[lang], c)
	}
	for _, lang := range missing {
		payload := acquisition.Payload{
			MovieID:    movieID,
			Language:   lang,
			Title:      title,
			Candidates: grouped[lang],
		}
		if err := s.cache.Put(ctx, movieID, lang, title, payload, s.opts.CacheTTL); err != nil {
			log.Warn("Failed to cache %s candidates for movie %s: %v", lang, movieID, err)
		}
		out[lang] = payload
	}
	log.Info("Language search for movie %s found %d candidates across %d languages",
		movieID, len(candidates), len(missing))
	return out, nil
}

// EnqueueURL queues processing of a subtitle at a direct URL.
func (s *Service) EnqueueURL(req jobs.EnqueueRequest) (*jobs.Job, error) {
	if strings.TrimSpace(req.MovieID) == "" {
		return nil, NewError(ErrValidation, "movie id is required")
	}
	if _, err := url.ParseRequestURI(req.FileURL); err != nil {
		return nil, WrapError(err, ErrValidation, "invalid file url")
	}
	lang, err := normalizeLanguage(req.Language)
	if err != nil {
		return nil, WrapError(err, ErrValidation, "invalid language")
	}
	req.Language = lang
	if req.Source == "" {
		req.Source = "url"
	}
	if req.DedupeKey == "" {
		req.DedupeKey = strings.Join([]string{req.MovieID, req.Language, req.FileURL}, "|")
	}
	job, created := s.queue.Enqueue(req)
	if created {
		s.counter.enqueued.Add(1)
	}
	return job, nil
}

// ExecuteJob is the queue executor: fetch, parse, enrich, segment, store
// and cache the processed result. A panic in any step fails the attempt with
// an ErrInternal error.
func (s *Service) ExecuteJob(ctx context.Context, job *jobs.Job) error {
	return SafeExecute(func() error {
		return s.executeJob(ctx, job)
	})
}

func (s *Service) executeJob(ctx context.Context, job *jobs.Job) error {
	data, name, err := s.fetch(ctx, job)
	if err != nil {
		return err
	}

	format := subtitle.DetectFormat(name, data)
	cues, err := subtitle.Parse(data, format)
	if err != nil {
		return err
	}

	doc := s.build(cues, format)
	doc.ID = documentID(job)
	doc.MovieID = job.MovieID
	doc.Language = job.Language
	doc.Title = job.Title
	doc.Source = job.Source
	doc.JobID = job.ID
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	s.counter.processed.Add(1)

	payload, ok := s.cache.Get(ctx, job.MovieID, job.Language, job.Title)
	if !ok {
		payload = acquisition.Payload{MovieID: job.MovieID, Language: job.Language, Title: job.Title}
	}
	payload.Subtitle = &acquisition.ProcessedSubtitle{
		SubtitleID: doc.ID,
		JobID:      job.ID,
		Summary:    doc.Summary,
	}
	if err := s.cache.Put(ctx, job.MovieID, job.Language, job.Title, payload, s.opts.CacheTTL); err != nil {
		log.Warn("Failed to cache processed subtitle %s: %v", doc.ID, err)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, job *jobs.Job) ([]byte, string, error) {
	if job.Provider != "" && !s.tracker.Allow(job.Provider) {
		until := "unknown"
		if at, ok := s.tracker.RetryAt(job.Provider); ok {
			until = at.Format(time.RFC3339)
		}
		return nil, "", &provider.FetchError{
			Kind:     provider.KindRateLimited,
			Provider: job.Provider,
			Op:       "download",
			Err:      fmt.Errorf("quota exhausted until %s", until),
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	switch {
	case job.FileID > 0 && s.fetcher != nil:
		d, err := s.fetcher.Download(fetchCtx, job.FileID)
		if err != nil {
			return nil, "", err
		}
		return d.Data, d.FileName, nil
	case job.FileURL != "" && s.downloader != nil:
		data, err := s.downloader.Get(fetchCtx, job.FileURL)
		if err != nil {
			return nil, "", err
		}
		return data, fileNameFromURL(job.FileURL), nil
	default:
		return nil, "", &provider.FetchError{
			Kind:     provider.KindNotFound,
			Provider: job.Provider,
			Op:       "download",
			Err:      errors.New("job has no downloadable source"),
		}
	}
}

func documentID(job *jobs.Job) string {
	ref := job.ExternalSubtitleID
	if ref == "" {
		ref = job.FileURL
	}
	return uuid.NewSHA1(documentNamespace, []byte(job.Source+"|"+ref+"|"+job.Language)).String()
}

func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

type JobList struct {
	Jobs  []*jobs.Job `json:"jobs"`
	Stats jobs.Stats  `json:"stats"`
}

func (s *Service) ListJobs(status string) (JobList, error) {
	st := jobs.Status(strings.ToLower(strings.TrimSpace(status)))
	switch st {
	case "", jobs.StatusQueued, jobs.StatusProcessing, jobs.StatusCompleted, jobs.StatusFailed:
	default:
		return JobList{}, NewError(ErrValidation, "unknown job status").WithContext("status", status)
	}
	return JobList{Jobs: s.queue.List(st), Stats: s.queue.Stats()}, nil
}

// GetJob returns a job. A terminally failed job is returned together with
// an ErrJobExhausted error describing the failure.
func (s *Service) GetJob(id string) (*jobs.Job, error) {
	job, ok := s.queue.Get(id)
	if !ok {
		return nil, NewError(ErrNotFound, "job not found").WithContext("job_id", id)
	}
	if job.Status == jobs.StatusFailed {
		return job, fromJob(job)
	}
	return job, nil
}

// GetUsage returns the usage rows of apiName for day. A zero day is today.
func (s *Service) GetUsage(ctx context.Context, apiName string, day time.Time) ([]ratelimit.Usage, error) {
	if strings.TrimSpace(apiName) == "" {
		return nil, NewError(ErrValidation, "api name is required")
	}
	rows, err := s.tracker.Usage(ctx, apiName, day)
	if err != nil {
		return nil, WrapError(err, ErrStorage, "failed to read api usage").WithContext("api", apiName)
	}
	return rows, nil
}

type SweepResult struct {
	CacheEntries int `json:"cache_entries"`
	Jobs         int `json:"jobs"`
}

// Sweep deletes expired cache entries and terminal jobs older than the
// retention period.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	n, err := s.cache.Sweep(ctx)
	if err != nil {
		return res, WrapError(err, ErrStorage, "failed to sweep cache")
	}
	res.CacheEntries = n
	res.Jobs = s.queue.Prune(s.opts.JobRetention)
	if res.CacheEntries > 0 || res.Jobs > 0 {
		log.Info("Sweep removed %d cache entries and %d jobs", res.CacheEntries, res.Jobs)
	}
	return res, nil
}

type Stats struct {
	SearchesPerformed  uint64     `json:"searches_performed"`
	JobsEnqueued       uint64     `json:"jobs_enqueued"`
	DocumentsProcessed uint64     `json:"documents_processed"`
	Queue              jobs.Stats `json:"queue"`
}

func (s *Service) Stats() Stats {
	return Stats{
		SearchesPerformed:  s.counter.searches.Load(),
		JobsEnqueued:       s.counter.enqueued.Load(),
		DocumentsProcessed: s.counter.processed.Load(),
		Queue:              s.queue.Stats(),
	}
}

func normalizeLanguage(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("language is required")
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", err
	}
	return strings.ToLower(tag.String()), nil
}
