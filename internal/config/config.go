// Package config provides YAML-based configuration loading for Quillback.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Quillback configuration, loaded from quillback.yaml.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Activity   ActivityConfig   `yaml:"activity"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Notify     NotifyConfig     `yaml:"notify"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"` // "sqlite" (default) or "mysql"
	Path     string `yaml:"path"`    // sqlite database file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// ActivityConfig controls the in-memory session liveness tracker.
type ActivityConfig struct {
	TimeoutSec       int `yaml:"timeout_sec"`        // liveness window, default 120
	SweepIntervalSec int `yaml:"sweep_interval_sec"` // prune cadence, default 30
}

// SweepConfig controls the background metrics sweep driver.
type SweepConfig struct {
	Enabled     bool   `yaml:"enabled"` // default false; the sweep never runs unless turned on
	IntervalSec int    `yaml:"interval_sec"`
	BatchSize   int    `yaml:"batch_size"`
	Schedule    string `yaml:"schedule"` // optional 5-field cron expression for catch-up runs
}

// EnrichmentConfig controls the delayed AI enrichment sweep and model access.
type EnrichmentConfig struct {
	APIKey      string `yaml:"api_key"` // empty disables enrichment entirely
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	DelayMin    int    `yaml:"delay_minutes"`   // minimum settle time, default 10
	MaxAgeMin   int    `yaml:"max_age_minutes"` // bounded staleness, default 60
	IntervalSec int    `yaml:"interval_sec"`
	BatchSize   int    `yaml:"batch_size"`
}

// DashboardConfig holds settings for the read-only dashboard server.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig configures best-effort Slack notification of terminal failures.
type NotifyConfig struct {
	SlackToken   string `yaml:"slack_token"`
	SlackChannel string `yaml:"slack_channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = os.ExpandEnv("${HOME}/.quillback/quillback.db")
	}
	if c.Store.Host == "" {
		c.Store.Host = "127.0.0.1"
	}
	if c.Store.Port == 0 {
		c.Store.Port = 3306
	}
	if c.Store.Database == "" {
		c.Store.Database = "quillback"
	}
	if c.Activity.TimeoutSec == 0 {
		c.Activity.TimeoutSec = 120
	}
	if c.Activity.SweepIntervalSec == 0 {
		c.Activity.SweepIntervalSec = 30
	}
	if c.Sweep.IntervalSec == 0 {
		c.Sweep.IntervalSec = 10
	}
	if c.Sweep.BatchSize == 0 {
		c.Sweep.BatchSize = 5
	}
	if c.Enrichment.Model == "" {
		c.Enrichment.Model = "gpt-4o-mini"
	}
	if c.Enrichment.DelayMin == 0 {
		c.Enrichment.DelayMin = 10
	}
	if c.Enrichment.MaxAgeMin == 0 {
		c.Enrichment.MaxAgeMin = 60
	}
	if c.Enrichment.IntervalSec == 0 {
		c.Enrichment.IntervalSec = 60
	}
	if c.Enrichment.BatchSize == 0 {
		c.Enrichment.BatchSize = 10
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Store.Backend {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be sqlite or mysql, got %q", c.Store.Backend))
	}
	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		errs = append(errs, "store.path is required for the sqlite backend")
	}
	if c.Enrichment.DelayMin < 0 {
		errs = append(errs, "enrichment.delay_minutes must not be negative")
	}
	if c.Enrichment.MaxAgeMin < c.Enrichment.DelayMin {
		errs = append(errs, "enrichment.max_age_minutes must be at least delay_minutes")
	}
	if c.Notify.SlackToken != "" && c.Notify.SlackChannel == "" {
		errs = append(errs, "notify.slack_channel is required when slack_token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
