package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/cinefluent/pkg/icron"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

// Config holds all application configuration, read from environment
// variables with sensible defaults.
//
// Environment Variables:
// System:
// - DATA_DIR: database and lock directory (default: /app/data)
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - HTTP_ADDR: listen address for serve (default: :8080)
//
// Provider:
// - OPENSUBTITLES_API_KEY: API key; external search is disabled when empty
// - OPENSUBTITLES_API_URL: API endpoint (default: https://api.opensubtitles.com/api/v1)
// - OPENSUBTITLES_USER_AGENT: User-Agent header (default: CineFluent v1.0)
// - FETCH_TIMEOUT: per request timeout in seconds (default: 30)
//
// Queue:
// - QUEUE_WORKERS (default: 3)
// - QUEUE_MAX_RETRIES (default: 3)
// - QUEUE_DEFAULT_PRIORITY: 1 is highest, 10 lowest (default: 5)
// - QUEUE_RETRY_BACKOFF: first retry delay in seconds (default: 2)
// - JOB_RETENTION_HOURS: terminal jobs older than this are pruned (default: 168)
//
// Cache:
// - CACHE_TTL_HOURS (default: 24)
// - CACHE_MEMORY_ITEMS (default: 200)
// - SWEEP_CRON (default: @every 10m)
//
// Learning:
// - SEGMENT_WINDOW_SECONDS (default: 30)
// - DIFFICULTY_BEGINNER_MAX (default: 3000)
// - DIFFICULTY_INTERMEDIATE_MAX (default: 7000)
// - TARGET_LANGUAGE: translation language kept on enriched words (default: en)
type Config struct {
	System   SystemConfig   `json:"system"`
	HTTP     HTTPConfig     `json:"http"`
	Provider ProviderConfig `json:"provider"`
	Queue    QueueConfig    `json:"queue"`
	Cache    CacheConfig    `json:"cache"`
	Learning LearningConfig `json:"learning"`
}

type SystemConfig struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

// ProviderConfig configures the OpenSubtitles client.
type ProviderConfig struct {
	APIKey       string        `json:"-"`
	APIURL       string        `json:"api_url"`
	UserAgent    string        `json:"user_agent"`
	FetchTimeout time.Duration `json:"fetch_timeout"`
}

func (c ProviderConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type QueueConfig struct {
	Workers         int           `json:"workers"`
	MaxRetries      int           `json:"max_retries"`
	DefaultPriority int           `json:"default_priority"`
	RetryBackoff    time.Duration `json:"retry_backoff"`
	JobRetention    time.Duration `json:"job_retention"`
}

type CacheConfig struct {
	TTL         time.Duration `json:"ttl"`
	MemoryItems int           `json:"memory_items"`
	SweepCron   string        `json:"sweep_cron"`
}

type LearningConfig struct {
	WindowSeconds   float64      `json:"window_seconds"`
	BeginnerMax     int          `json:"beginner_max"`
	IntermediateMax int          `json:"intermediate_max"`
	TargetLanguage  language.Tag `json:"target_language"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	target, err := language.Parse(getEnvString("TARGET_LANGUAGE", "en"))
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_LANGUAGE: %w", err)
	}

	config := &Config{
		System: SystemConfig{
			DataDir:  getEnvString("DATA_DIR", "/app/data"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
		Provider: ProviderConfig{
			APIKey:       getEnvString("OPENSUBTITLES_API_KEY", ""),
			APIURL:       getEnvString("OPENSUBTITLES_API_URL", "https://api.opensubtitles.com/api/v1"),
			UserAgent:    getEnvString("OPENSUBTITLES_USER_AGENT", "CineFluent v1.0"),
			FetchTimeout: getEnvSeconds("FETCH_TIMEOUT", 30*time.Second),
		},
		Queue: QueueConfig{
			Workers:         getEnvInt("QUEUE_WORKERS", 3),
			MaxRetries:      getEnvInt("QUEUE_MAX_RETRIES", 3),
			DefaultPriority: getEnvInt("QUEUE_DEFAULT_PRIORITY", 5),
			RetryBackoff:    getEnvSeconds("QUEUE_RETRY_BACKOFF", 2*time.Second),
			JobRetention:    time.Duration(getEnvInt("JOB_RETENTION_HOURS", 168)) * time.Hour,
		},
		Cache: CacheConfig{
			TTL:         time.Duration(getEnvInt("CACHE_TTL_HOURS", 24)) * time.Hour,
			MemoryItems: getEnvInt("CACHE_MEMORY_ITEMS", 200),
			SweepCron:   getEnvString("SWEEP_CRON", "@every 10m"),
		},
		Learning: LearningConfig{
			WindowSeconds:   getEnvFloat("SEGMENT_WINDOW_SECONDS", 30),
			BeginnerMax:     getEnvInt("DIFFICULTY_BEGINNER_MAX", 3000),
			IntermediateMax: getEnvInt("DIFFICULTY_INTERMEDIATE_MAX", 7000),
			TargetLanguage:  target,
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	log.Debug("Config: data_dir=%s workers=%d provider_enabled=%t sweep=%q",
		config.System.DataDir, config.Queue.Workers, config.Provider.Enabled(), config.Cache.SweepCron)

	return config, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.System.DataDir) == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("QUEUE_WORKERS must be at least 1")
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("QUEUE_MAX_RETRIES must not be negative")
	}
	if c.Queue.DefaultPriority < 1 || c.Queue.DefaultPriority > 10 {
		return fmt.Errorf("QUEUE_DEFAULT_PRIORITY must be between 1 and 10")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL_HOURS must be positive")
	}
	if c.Provider.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.Learning.WindowSeconds <= 0 {
		return fmt.Errorf("SEGMENT_WINDOW_SECONDS must be positive")
	}
	if c.Learning.BeginnerMax <= 0 || c.Learning.IntermediateMax <= c.Learning.BeginnerMax {
		return fmt.Errorf("difficulty thresholds must be positive and DIFFICULTY_INTERMEDIATE_MAX above DIFFICULTY_BEGINNER_MAX")
	}
	if err := icron.Validate(c.Cache.SweepCron); err != nil {
		return fmt.Errorf("SWEEP_CRON: %w", err)
	}
	return nil
}

func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "cinefluent.db")
}

func (c *Config) LockPath() string {
	return filepath.Join(c.System.DataDir, "cinefluent.lock")
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvSeconds reads a whole number of seconds.
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
