// Package config provides YAML-based configuration loading for the OmniWatch
// field client.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level OmniWatch client configuration, loaded from
// omniwatch.yaml.
type Config struct {
	APIURL    string          `yaml:"api_url"`
	Storage   StorageConfig   `yaml:"storage"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Patrol    PatrolConfig    `yaml:"patrol"`
	Notify    NotifyConfig    `yaml:"notify"`
	Digest    DigestConfig    `yaml:"digest"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// StorageConfig selects the device storage backend. The default is a local
// sqlite file; shared kiosk installs may point several devices at one MySQL
// database instead.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // mysql DSN, required when driver is mysql
}

// SamplerConfig holds location sampling thresholds and the gpsd address.
type SamplerConfig struct {
	GpsdAddr       string  `yaml:"gpsd_addr"`
	MinDistanceM   float64 `yaml:"min_distance_m"`
	MinIntervalSec int     `yaml:"min_interval_s"`
}

// MinInterval returns the minimum interval between accepted fixes.
func (s SamplerConfig) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalSec) * time.Second
}

// PatrolConfig holds patrol session manager settings.
type PatrolConfig struct {
	FlushIntervalSec int `yaml:"flush_interval_s"`
}

// FlushInterval returns the interval between periodic location uploads.
func (p PatrolConfig) FlushInterval() time.Duration {
	return time.Duration(p.FlushIntervalSec) * time.Second
}

// NotifyConfig configures the optional patrol event notification channels.
// A channel is enabled when its token and channel ID are both set.
type NotifyConfig struct {
	Discord DiscordConfig `yaml:"discord"`
	Slack   SlackConfig   `yaml:"slack"`
}

// DiscordConfig holds Discord bot credentials for notifications.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SlackConfig holds Slack bot credentials for notifications.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DigestConfig schedules the daily patrol digest. Cron is a standard
// 5-field cron expression; empty disables the digest.
type DigestConfig struct {
	Cron string `yaml:"cron"`
}

// DashboardConfig holds settings for the local web dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
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
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "omniwatch.db"
	}
	if c.Sampler.GpsdAddr == "" {
		c.Sampler.GpsdAddr = "127.0.0.1:2947"
	}
	if c.Sampler.MinDistanceM == 0 {
		c.Sampler.MinDistanceM = 10
	}
	if c.Sampler.MinIntervalSec == 0 {
		c.Sampler.MinIntervalSec = 5
	}
	if c.Patrol.FlushIntervalSec == 0 {
		c.Patrol.FlushIntervalSec = 30
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.APIURL == "" {
		errs = append(errs, "api_url is required")
	}
	switch c.Storage.Driver {
	case "sqlite":
	case "mysql":
		if c.Storage.DSN == "" {
			errs = append(errs, "storage.dsn is required when storage.driver is mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q is not supported (sqlite, mysql)", c.Storage.Driver))
	}
	if c.Sampler.MinDistanceM < 0 {
		errs = append(errs, "sampler.min_distance_m must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
