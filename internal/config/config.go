package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beneyalraj/listing/internal/model"
)

// Config is the root configuration for the listing crawler.
type Config struct {
	ScheduleInterval time.Duration
	Queries          QueriesConfig
	LinkedIn         LinkedInConfig
	CareersFuture    CareersFutureConfig
	HTTP             HTTPConfig
	Quota            QuotaConfig
	Store            StoreConfig
	AI               AIConfig
	AuditLog         string
}

// QueriesConfig lists the search queries per source. A source with no queries
// is not crawled.
type QueriesConfig struct {
	LinkedIn      []model.CrawlQuery `yaml:"linkedin"`
	CareersFuture []model.CrawlQuery `yaml:"careersfuture"`
}

// LinkedInConfig tunes the guest listing API parameters.
type LinkedInConfig struct {
	GeoID        string `yaml:"geo_id"`
	PostedWithin string `yaml:"posted_within"` // f_TPR value, e.g. "r86400"
	JobType      string `yaml:"job_type"`      // f_JT value
	WorkType     string `yaml:"work_type"`     // f_WT value
	MaxStart     int    `yaml:"max_start"`
}

// CareersFutureConfig tunes the board search filters.
type CareersFutureConfig struct {
	Categories      []string `yaml:"categories"`
	EmploymentTypes []string `yaml:"employment_types"`
}

// HTTPConfig controls fetch pacing and retry behavior.
type HTTPConfig struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	ListingDelayMin time.Duration
	ListingDelayMax time.Duration
	DetailDelayMin  time.Duration
	DetailDelayMax  time.Duration
}

// QuotaConfig bounds the enrichment call rate.
type QuotaConfig struct {
	StateFile    string
	MaxPerMinute int
	MaxPerDay    int
}

// StoreConfig selects and configures the job store.
type StoreConfig struct {
	Type string `yaml:"type"` // "sqlite" or "postgres"
	Path string `yaml:"path"` // sqlite database file
	DSN  string `yaml:"dsn"`  // postgres connection string
}

// AIConfig controls the optional markdown enrichment layer.
type AIConfig struct {
	Enabled bool
	BaseURL string        // defaults to https://api.openai.com/v1
	Model   string        // OpenAI model identifier, e.g. "gpt-4o-mini"
	APIKey  string        // expanded from env var by Load
	Timeout time.Duration // per-request timeout
}

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as
// strings).
type rawConfig struct {
	ScheduleInterval string              `yaml:"schedule_interval"`
	Queries          QueriesConfig       `yaml:"queries"`
	LinkedIn         LinkedInConfig      `yaml:"linkedin"`
	CareersFuture    CareersFutureConfig `yaml:"careersfuture"`
	HTTP             rawHTTPConfig       `yaml:"http"`
	Quota            QuotaConfig         `yaml:"quota"`
	Store            StoreConfig         `yaml:"store"`
	AI               rawAIConfig         `yaml:"ai"`
	AuditLog         string              `yaml:"audit_log"`
}

type rawHTTPConfig struct {
	Timeout         string `yaml:"timeout"`
	MaxRetries      *int   `yaml:"max_retries"`
	RetryDelay      string `yaml:"retry_delay"`
	ListingDelayMin string `yaml:"listing_delay_min"`
	ListingDelayMax string `yaml:"listing_delay_max"`
	DetailDelayMin  string `yaml:"detail_delay_min"`
	DetailDelayMax  string `yaml:"detail_delay_max"`
}

type rawAIConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval := 6 * time.Hour // default
	if raw.ScheduleInterval != "" {
		interval, err = time.ParseDuration(raw.ScheduleInterval)
		if err != nil {
			return nil, fmt.Errorf("parse schedule_interval %q: %w", raw.ScheduleInterval, err)
		}
	}

	httpCfg := HTTPConfig{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      60 * time.Second,
		ListingDelayMin: 2 * time.Second,
		ListingDelayMax: 5 * time.Second,
		DetailDelayMin:  3 * time.Second,
		DetailDelayMax:  6 * time.Second,
	}
	if raw.HTTP.MaxRetries != nil {
		httpCfg.MaxRetries = *raw.HTTP.MaxRetries
	}
	for _, field := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"http.timeout", raw.HTTP.Timeout, &httpCfg.Timeout},
		{"http.retry_delay", raw.HTTP.RetryDelay, &httpCfg.RetryDelay},
		{"http.listing_delay_min", raw.HTTP.ListingDelayMin, &httpCfg.ListingDelayMin},
		{"http.listing_delay_max", raw.HTTP.ListingDelayMax, &httpCfg.ListingDelayMax},
		{"http.detail_delay_min", raw.HTTP.DetailDelayMin, &httpCfg.DetailDelayMin},
		{"http.detail_delay_max", raw.HTTP.DetailDelayMax, &httpCfg.DetailDelayMax},
	} {
		if field.raw == "" {
			continue
		}
		d, err := time.ParseDuration(field.raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", field.name, field.raw, err)
		}
		*field.dst = d
	}

	quota := raw.Quota
	if quota.StateFile == "" {
		quota.StateFile = "quota_state.json"
	}
	if quota.MaxPerMinute == 0 {
		quota.MaxPerMinute = 4
	}
	if quota.MaxPerDay == 0 {
		quota.MaxPerDay = 20
	}

	storeCfg := raw.Store
	if storeCfg.Type == "" {
		storeCfg.Type = "sqlite"
	}
	if storeCfg.Type == "sqlite" && storeCfg.Path == "" {
		storeCfg.Path = "listing.db"
	}

	aiTimeout := 30 * time.Second // default
	if raw.AI.Timeout != "" {
		aiTimeout, err = time.ParseDuration(raw.AI.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse ai.timeout %q: %w", raw.AI.Timeout, err)
		}
	}

	aiBaseURL := raw.AI.BaseURL
	if aiBaseURL == "" {
		aiBaseURL = defaultOpenAIBaseURL
	}

	linkedIn := raw.LinkedIn
	if linkedIn.MaxStart == 0 {
		linkedIn.MaxStart = 990
	}

	cfg := &Config{
		ScheduleInterval: interval,
		Queries:          raw.Queries,
		LinkedIn:         linkedIn,
		CareersFuture:    raw.CareersFuture,
		HTTP:             httpCfg,
		Quota:            quota,
		Store:            storeCfg,
		AI: AIConfig{
			Enabled: raw.AI.Enabled,
			BaseURL: aiBaseURL,
			Model:   raw.AI.Model,
			APIKey:  raw.AI.APIKey,
			Timeout: aiTimeout,
		},
		AuditLog: raw.AuditLog,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.ScheduleInterval <= 0 {
		return fmt.Errorf("schedule_interval must be positive, got %v", cfg.ScheduleInterval)
	}

	if len(cfg.Queries.LinkedIn)+len(cfg.Queries.CareersFuture) == 0 {
		return fmt.Errorf("at least one query must be configured")
	}
	for source, queries := range map[string][]model.CrawlQuery{
		"linkedin":      cfg.Queries.LinkedIn,
		"careersfuture": cfg.Queries.CareersFuture,
	} {
		for _, q := range queries {
			if q.Search == "" {
				return fmt.Errorf("queries.%s entries must set search", source)
			}
		}
	}

	if cfg.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative, got %d", cfg.HTTP.MaxRetries)
	}
	if cfg.HTTP.ListingDelayMin > cfg.HTTP.ListingDelayMax {
		return fmt.Errorf("http.listing_delay_min %v exceeds http.listing_delay_max %v",
			cfg.HTTP.ListingDelayMin, cfg.HTTP.ListingDelayMax)
	}
	if cfg.HTTP.DetailDelayMin > cfg.HTTP.DetailDelayMax {
		return fmt.Errorf("http.detail_delay_min %v exceeds http.detail_delay_max %v",
			cfg.HTTP.DetailDelayMin, cfg.HTTP.DetailDelayMax)
	}

	if cfg.Quota.MaxPerMinute < 1 {
		return fmt.Errorf("quota.max_per_minute must be positive, got %d", cfg.Quota.MaxPerMinute)
	}
	if cfg.Quota.MaxPerDay < 1 {
		return fmt.Errorf("quota.max_per_day must be positive, got %d", cfg.Quota.MaxPerDay)
	}

	switch cfg.Store.Type {
	case "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required when store.type is \"sqlite\"")
		}
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.type is \"postgres\"")
		}
	default:
		return fmt.Errorf("store.type must be \"sqlite\" or \"postgres\", got %q", cfg.Store.Type)
	}

	if cfg.AI.Enabled {
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when ai.enabled is true")
		}
		if cfg.AI.Model == "" {
			return fmt.Errorf("ai.model is required when ai.enabled is true")
		}
	}

	return nil
}
