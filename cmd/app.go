package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gofrs/flock"

	"github.com/MimeLyc/cinefluent/internal/acquisition"
	"github.com/MimeLyc/cinefluent/internal/config"
	"github.com/MimeLyc/cinefluent/internal/enrich"
	"github.com/MimeLyc/cinefluent/internal/jobs"
	"github.com/MimeLyc/cinefluent/internal/persistence"
	"github.com/MimeLyc/cinefluent/internal/provider"
	"github.com/MimeLyc/cinefluent/internal/ratelimit"
	"github.com/MimeLyc/cinefluent/internal/segment"
	"github.com/MimeLyc/cinefluent/internal/service"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

// app is the wired set of components shared by every command. It holds
// the data directory lock: the job queue rewrites interrupted jobs when it
// loads, so only one process may own the store at a time.
type app struct {
	cfg     *config.Config
	lock    *flock.Flock
	store   *persistence.SQLiteStore
	tracker *ratelimit.Tracker
	queue   *jobs.Queue
	cache   *acquisition.Cache
	svc     *service.Service
}

func newApp(cfg *config.Config) (_ *app, err error) {
	lock := flock.New(cfg.LockPath())
	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another cinefluent process is using " + cfg.System.DataDir)
	}
	defer func() {
		if err != nil {
			_ = lock.Unlock()
		}
	}()

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tracker := ratelimit.New(store)
	queue := jobs.NewQueue(
		jobs.Options{
			Workers:         cfg.Queue.Workers,
			MaxRetries:      cfg.Queue.MaxRetries,
			DefaultPriority: cfg.Queue.DefaultPriority,
			RetryBackoff:    cfg.Queue.RetryBackoff,
			MaxBackoff:      jobs.DefaultOptions.MaxBackoff,
			PollInterval:    jobs.DefaultOptions.PollInterval,
			MaxJobs:         jobs.DefaultOptions.MaxJobs,
		},
		store,
		jobs.WithGate(service.ProviderGate(tracker)),
		jobs.WithErrorDescriber(service.DescribeJobError),
	)
	cache := acquisition.New(store, acquisition.Options{
		DefaultTTL:     cfg.Cache.TTL,
		MaxMemoryItems: cfg.Cache.MemoryItems,
	})

	deps := service.Deps{
		Documents: store,
		Cache:     cache,
		Queue:     queue,
		Tracker:   tracker,
		Engine: enrich.NewDefaultEngine(enrich.Thresholds{
			Beginner:     cfg.Learning.BeginnerMax,
			Intermediate: cfg.Learning.IntermediateMax,
		}),
		Segmenter:  segment.New(cfg.Learning.WindowSeconds),
		Downloader: provider.NewHTTPDownloader(&http.Client{Timeout: cfg.Provider.FetchTimeout}, cfg.Provider.UserAgent),
	}
	if cfg.Provider.Enabled() {
		client, err := provider.NewOpenSubtitles(provider.Config{
			APIKey:     cfg.Provider.APIKey,
			UserAgent:  cfg.Provider.UserAgent,
			BaseURL:    cfg.Provider.APIURL,
			HTTPClient: &http.Client{Timeout: cfg.Provider.FetchTimeout},
			Recorder:   tracker,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.Searcher = client
		deps.Fetcher = client
	} else {
		log.Info("OPENSUBTITLES_API_KEY not set, external subtitle search disabled")
	}

	svc, err := service.New(deps, service.Options{
		TargetLanguage: cfg.Learning.TargetLanguage.String(),
		FetchTimeout:   cfg.Provider.FetchTimeout,
		CacheTTL:       cfg.Cache.TTL,
		JobRetention:   cfg.Queue.JobRetention,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		lock:    lock,
		store:   store,
		tracker: tracker,
		queue:   queue,
		cache:   cache,
		svc:     svc,
	}, nil
}

func (a *app) Close() error {
	a.svc.Stop()
	err := a.store.Close()
	if unlockErr := a.lock.Unlock(); unlockErr != nil {
		log.Warn("Failed to release lock: %v", unlockErr)
	}
	return err
}
