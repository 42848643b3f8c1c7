// Package config provides YAML-based configuration loading for Masquerade.
//
// Non-secret settings live in masquerade.yaml. Secrets (Discord bot token,
// Google API key, MongoDB URI) are read from the environment so they never
// land in a checked-in file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable names for secrets.
const (
	EnvDiscordToken = "DISCORD_TOKEN"
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvMongoURI     = "MONGO_URI"
)

// Config is the top-level Masquerade configuration.
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	AI        AIConfig        `yaml:"ai"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Reminder  ReminderConfig  `yaml:"reminder"`

	// Secrets, populated from the environment by Load.
	DiscordToken string `yaml:"-"`
	GoogleAPIKey string `yaml:"-"`
	MongoURI     string `yaml:"-"`
}

// DiscordConfig holds Discord gateway settings.
type DiscordConfig struct {
	// GuildID scopes slash-command registration to a single guild for fast
	// propagation during development. Empty registers commands globally.
	GuildID string `yaml:"guild_id"`
}

// AIConfig holds Gemini settings.
type AIConfig struct {
	Model             string `yaml:"model"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

// MongoConfig holds MongoDB settings. The connection URI comes from MONGO_URI.
type MongoConfig struct {
	Database string `yaml:"database"`
}

// DashboardConfig holds the status HTTP endpoint settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// ReminderConfig holds the blood-timer reminder settings.
type ReminderConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // 5-field cron expression
	Mention  string `yaml:"mention"`  // role or group tag prepended to reminders
}

// Load reads a YAML config file from path and returns a validated Config with
// secrets resolved from the environment. A missing file is not an error: the
// bot runs fine on defaults plus environment secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			data = nil
		} else {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.DiscordToken = os.Getenv(EnvDiscordToken)
	cfg.GoogleAPIKey = os.Getenv(EnvGoogleAPIKey)
	cfg.MongoURI = os.Getenv(EnvMongoURI)
	return cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.0-flash-001"
	}
	if c.AI.RequestTimeoutSec == 0 {
		c.AI.RequestTimeoutSec = 60
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "persona_bot"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Reminder.Schedule == "" {
		c.Reminder.Schedule = "0 */12 * * *"
	}
	if c.Reminder.Mention == "" {
		c.Reminder.Mention = "@vrising"
	}
}

// validate checks that all provided values are consistent.
func (c *Config) validate() error {
	var errs []string
	if c.AI.RequestTimeoutSec < 0 {
		errs = append(errs, "ai.request_timeout_sec must not be negative")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d out of range", c.Dashboard.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
