// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Baseline BaselineConfig `mapstructure:"baseline"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	SSL      SSLConfig      `mapstructure:"ssl"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sites    []SiteConfig   `mapstructure:"sites"`
}

// ServerConfig controls the health/metrics HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig sets run-wide crawl defaults. Per-site values override them.
type CrawlerConfig struct {
	Concurrency          int `mapstructure:"concurrency"`
	MaxDepthDefault      int `mapstructure:"max_depth_default"`
	MaxLinksDefault      int `mapstructure:"max_links_default"`
	SlowThresholdMs      int `mapstructure:"slow_threshold_ms"`
	RunTimeoutSeconds    int `mapstructure:"run_timeout_seconds"`
	CheckIntervalSeconds int `mapstructure:"check_interval_seconds"`
}

// HTTPConfig configures the plain HTTP fetcher.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRedirects   int    `mapstructure:"max_redirects"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	RetryBackoffMs int    `mapstructure:"retry_backoff_ms"`
}

// HeadlessConfig configures the headless rendering fetcher.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// BaselineConfig selects where page fingerprints persist between runs.
type BaselineConfig struct {
	Provider string `mapstructure:"provider"`
	Dir      string `mapstructure:"dir"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// SnapshotConfig selects where drifted page bodies are archived.
type SnapshotConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// SSLConfig toggles certificate expiry checks.
type SSLConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
}

// PubSubConfig holds metadata for run report notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SiteConfig describes one monitored site.
type SiteConfig struct {
	ID                string   `mapstructure:"id"`
	Origin            string   `mapstructure:"origin"`
	Seeds             []string `mapstructure:"seeds"`
	MaxDepth          int      `mapstructure:"max_depth"`
	MaxLinks          int      `mapstructure:"max_links"`
	Concurrency       int      `mapstructure:"concurrency"`
	SlowThresholdMs   int      `mapstructure:"slow_threshold_ms"`
	RunTimeoutSeconds int      `mapstructure:"run_timeout_seconds"`
	// CheckExternal is a pointer so an absent key means "check them":
	// external links are validated unless a site opts out explicitly.
	CheckExternal  *bool    `mapstructure:"check_external"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
	MonitoredPages    []string `mapstructure:"monitored_pages"`
	ExcludeSelectors  []string `mapstructure:"exclude_selectors"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEMONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.max_depth_default", 3)
	v.SetDefault("crawler.max_links_default", 500)
	v.SetDefault("crawler.slow_threshold_ms", 3000)
	v.SetDefault("crawler.run_timeout_seconds", 300)
	v.SetDefault("crawler.check_interval_seconds", 0)
	v.SetDefault("http.user_agent", "site-monitor-bot/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("http.retry_backoff_ms", 250)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("baseline.provider", "memory")
	v.SetDefault("baseline.table", "baselines")
	v.SetDefault("snapshot.provider", "none")
	v.SetDefault("ssl.enabled", true)
	v.SetDefault("ssl.timeout_seconds", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Malformed site
// configuration (bad origin, seed, or exclusion regex) fails here, before
// any run starts.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Baseline.Provider {
	case "memory":
	case "file":
		if c.Baseline.Dir == "" {
			return fmt.Errorf("baseline.dir must be set for the file provider")
		}
	case "postgres":
		if c.Baseline.DSN == "" {
			return fmt.Errorf("baseline.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("unknown baseline.provider %q", c.Baseline.Provider)
	}
	switch c.Snapshot.Provider {
	case "none", "memory":
	case "local":
		if c.Snapshot.BaseDir == "" {
			return fmt.Errorf("snapshot.base_dir must be set for the local provider")
		}
	case "gcs":
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown snapshot.provider %q", c.Snapshot.Provider)
	}
	if len(c.Sites) == 0 {
		return fmt.Errorf("at least one site must be configured")
	}
	for _, site := range c.Sites {
		if _, err := site.RunConfig(c.Crawler); err != nil {
			return fmt.Errorf("site %q: %w", site.ID, err)
		}
	}
	return nil
}

// RunConfig converts a site entry into the engine's run configuration,
// filling unset values from the crawl defaults.
func (s SiteConfig) RunConfig(defaults CrawlerConfig) (monitor.RunConfig, error) {
	if s.ID == "" {
		return monitor.RunConfig{}, fmt.Errorf("site id is required")
	}
	if s.Origin == "" {
		return monitor.RunConfig{}, fmt.Errorf("origin is required")
	}
	seeds := s.Seeds
	if len(seeds) == 0 {
		seeds = []string{s.Origin}
	}

	patterns := make([]*regexp.Regexp, 0, len(s.IgnorePatterns))
	for _, raw := range s.IgnorePatterns {
		p, err := regexp.Compile(raw)
		if err != nil {
			return monitor.RunConfig{}, fmt.Errorf("compile ignore pattern %q: %w", raw, err)
		}
		patterns = append(patterns, p)
	}

	monitored := make(map[string]bool, len(s.MonitoredPages))
	for _, path := range s.MonitoredPages {
		monitored[path] = true
	}

	checkExternal := true
	if s.CheckExternal != nil {
		checkExternal = *s.CheckExternal
	}

	cfg := monitor.RunConfig{
		SiteID:               s.ID,
		Origin:               s.Origin,
		SeedPages:            seeds,
		MaxDepth:             s.MaxDepth,
		MaxLinks:             s.MaxLinks,
		MaxConcurrentFetches: s.Concurrency,
		SlowThreshold:        time.Duration(s.SlowThresholdMs) * time.Millisecond,
		RunTimeout:           time.Duration(s.RunTimeoutSeconds) * time.Second,
		CheckExternal:        checkExternal,
		IgnorePatterns:       patterns,
		MonitoredPages:       monitored,
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = defaults.MaxDepthDefault
	}
	if cfg.MaxLinks == 0 {
		cfg.MaxLinks = defaults.MaxLinksDefault
	}
	if cfg.MaxConcurrentFetches == 0 {
		cfg.MaxConcurrentFetches = defaults.Concurrency
	}
	if cfg.SlowThreshold == 0 {
		cfg.SlowThreshold = time.Duration(defaults.SlowThresholdMs) * time.Millisecond
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = time.Duration(defaults.RunTimeoutSeconds) * time.Second
	}
	return cfg, nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryBackoff is the wait before a transient fetch failure's single retry.
func (c Config) RetryBackoff() time.Duration {
	return time.Duration(c.HTTP.RetryBackoffMs) * time.Millisecond
}

// CheckInterval is how often sites are re-checked; zero means run once.
func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.Crawler.CheckIntervalSeconds) * time.Second
}
