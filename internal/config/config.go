package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Providers ProvidersConfig `yaml:"providers"`
	Tools     ToolsConfig     `yaml:"tools"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Confirm   ConfirmConfig   `yaml:"confirmations"`
	Trace     TraceConfig     `yaml:"trace"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Admins    []string        `yaml:"admins"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ProvidersConfig holds the fallback cascade tiers in order
type ProvidersConfig struct {
	Primary   ProviderConfig `yaml:"primary"`
	Secondary ProviderConfig `yaml:"secondary"`
	Tertiary  ProviderConfig `yaml:"tertiary"`
}

// ProviderConfig holds one provider backend
type ProviderConfig struct {
	Type      string `yaml:"type"` // openai, anthropic, ollama
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// APIKey resolves the provider API key from the environment
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// ToolsConfig holds tool endpoints and enablement
type ToolsConfig struct {
	InfraURL string   `yaml:"infra_url"`
	MediaURL string   `yaml:"media_url"`
	Disabled []string `yaml:"disabled"`
}

// ChannelsConfig holds chat transport settings
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	Webchat  WebchatConfig  `yaml:"webchat"`
}

// TelegramConfig holds the Telegram bot settings
type TelegramConfig struct {
	TokenEnv string `yaml:"token_env"`
}

// Token resolves the bot token from the environment
func (t TelegramConfig) Token() string {
	if t.TokenEnv == "" {
		return ""
	}
	return os.Getenv(t.TokenEnv)
}

// DiscordConfig holds the Discord bot settings
type DiscordConfig struct {
	TokenEnv string `yaml:"token_env"`
}

// Token resolves the bot token from the environment
func (d DiscordConfig) Token() string {
	if d.TokenEnv == "" {
		return ""
	}
	return os.Getenv(d.TokenEnv)
}

// WebchatConfig holds the websocket chat settings
type WebchatConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ConfirmConfig holds confirmation session settings
type ConfirmConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// TraceConfig holds trace retention settings
type TraceConfig struct {
	MaxTraces int           `yaml:"max_traces"`
	TTL       time.Duration `yaml:"ttl"`
}

// ArchiveConfig holds the Redis archive settings
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisAddr string `yaml:"redis_addr"`
	MaxLen    int64  `yaml:"max_len"`
}

// SchedulerConfig holds retention sweep settings
type SchedulerConfig struct {
	SweepSpec string `yaml:"sweep_spec"`
}

// Load reads the YAML config at path, after loading a .env file if present
func Load(path string) (*Config, error) {
	// .env is optional; environment wins for secrets
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with sane defaults applied
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "localhost", Port: 18700},
		Logging: LoggingConfig{Level: "info"},
		Channels: ChannelsConfig{
			Webchat: WebchatConfig{Enabled: true, Path: "/ws"},
		},
		Confirm: ConfirmConfig{DefaultTTL: 5 * time.Minute},
		Trace:   TraceConfig{MaxTraces: 1000, TTL: 24 * time.Hour},
		Archive: ArchiveConfig{MaxLen: 10000},
		Scheduler: SchedulerConfig{
			SweepSpec: "*/5 * * * *",
		},
	}
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Trace.MaxTraces <= 0 {
		return fmt.Errorf("trace.max_traces must be positive")
	}
	if c.Confirm.DefaultTTL <= 0 {
		return fmt.Errorf("confirmations.default_ttl must be positive")
	}
	for _, p := range []struct {
		name string
		cfg  ProviderConfig
	}{
		{"primary", c.Providers.Primary},
		{"secondary", c.Providers.Secondary},
		{"tertiary", c.Providers.Tertiary},
	} {
		if p.cfg.Type == "" {
			continue // tier not configured
		}
		switch p.cfg.Type {
		case "openai", "anthropic", "ollama":
		default:
			return fmt.Errorf("unsupported provider type %q for %s tier", p.cfg.Type, p.name)
		}
	}
	if c.Archive.Enabled && c.Archive.RedisAddr == "" {
		return fmt.Errorf("archive.redis_addr required when archive is enabled")
	}
	return nil
}

// IsAdmin reports whether the user id is in the admin list
func (c *Config) IsAdmin(userID string) bool {
	for _, a := range c.Admins {
		if a == userID {
			return true
		}
	}
	return false
}
