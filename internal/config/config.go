// Package config provides YAML-based configuration loading for StoryForge.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level StoryForge configuration, loaded from storyforge.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	ADO      ADOConfig      `yaml:"ado"`
	Cache    CacheConfig    `yaml:"cache"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects the local store. Driver is "sqlite" (default) or "mysql".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ADOConfig tunes the Azure DevOps client. Connection details (org, project,
// PAT) live in the settings table, not here.
type ADOConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Auth    string        `yaml:"auth"` // basic or bearer
}

// CacheConfig controls the work item snapshot refresh.
type CacheConfig struct {
	Schedule    string        `yaml:"schedule"`
	WarmupDelay time.Duration `yaml:"warmup_delay"`
	Disabled    bool          `yaml:"disabled"`
}

// SecretsConfig selects where the ADO PAT is stored: "db" or "keyring".
type SecretsConfig struct {
	Backend    string `yaml:"backend"`
	KeyringDir string `yaml:"keyring_dir"`
}

// NotifyConfig holds optional chat destinations for funnel stage changes.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig posts funnel events with a bot token.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig posts funnel events with a bot token.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist. A file that exists but fails to parse is still an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
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
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "./storage/storyforge.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "storyforge"
		}
	}
	if c.ADO.Timeout == 0 {
		c.ADO.Timeout = 30 * time.Second
	}
	if c.ADO.Auth == "" {
		c.ADO.Auth = "basic"
	}
	if c.Cache.Schedule == "" {
		c.Cache.Schedule = "0 * * * *"
	}
	if c.Cache.WarmupDelay == 0 {
		c.Cache.WarmupDelay = 2 * time.Second
	}
	if c.Secrets.Backend == "" {
		c.Secrets.Backend = "db"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	switch c.ADO.Auth {
	case "basic", "bearer":
	default:
		errs = append(errs, fmt.Sprintf("ado.auth %q must be basic or bearer", c.ADO.Auth))
	}
	if c.ADO.Timeout < 0 {
		errs = append(errs, "ado.timeout must be positive")
	}
	switch c.Secrets.Backend {
	case "db", "keyring":
	default:
		errs = append(errs, fmt.Sprintf("secrets.backend %q must be db or keyring", c.Secrets.Backend))
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required when bot_token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when bot_token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
