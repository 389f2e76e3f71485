// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Quotes     QuotesConfig     `mapstructure:"quotes"`
	References []ReferenceEntry `mapstructure:"references"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Sound      SoundConfig      `mapstructure:"sound"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ReferenceEntry maps one ticker to its fixed reference price. Entries are a
// list rather than a map because viper lowercases map keys, which would mangle
// exchange-qualified symbols.
type ReferenceEntry struct {
	Ticker string  `mapstructure:"ticker"`
	Price  float64 `mapstructure:"price"`
}

// QuotesConfig holds quote source configuration
type QuotesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Range          string        `mapstructure:"range"`
	Interval       string        `mapstructure:"interval"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// WatchConfig holds polling and alerting behavior configuration
type WatchConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ThresholdPercent float64       `mapstructure:"threshold_percent"`
	GraceMinutes     int           `mapstructure:"grace_minutes"`
	Watchlist        []string      `mapstructure:"watchlist"`
	Background       bool          `mapstructure:"background"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// SoundConfig holds the sound cue configuration
type SoundConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SourceURL string `mapstructure:"source_url"`
	FilePath  string `mapstructure:"file_path"`
	Repeats   int    `mapstructure:"repeats"`
}

// AuthConfig holds credential store configuration
type AuthConfig struct {
	Backend       string `mapstructure:"backend"` // "file" or "remote"
	FilePath      string `mapstructure:"file_path"`
	RemoteURL     string `mapstructure:"remote_url"`
	RemoteToken   string `mapstructure:"remote_token"`
	AdminPassword string `mapstructure:"admin_password"`
}

// StorageConfig holds history persistence configuration
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"`
	MaxAlerts int    `mapstructure:"max_alerts"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("LEVELWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("quotes.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("quotes.range", "1d")
	v.SetDefault("quotes.interval", "1m")
	v.SetDefault("quotes.timeout", "10s")
	v.SetDefault("quotes.max_retries", 3)
	v.SetDefault("quotes.retry_delay_base", "1s")

	v.SetDefault("watch.poll_interval", "1m")
	v.SetDefault("watch.threshold_percent", -5.0)
	v.SetDefault("watch.grace_minutes", 15)
	v.SetDefault("watch.background", true)

	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("sound.source_url", "https://www.soundjay.com/buttons/sounds/beep-07a.mp3")
	v.SetDefault("sound.repeats", 1)

	v.SetDefault("auth.backend", "file")
	v.SetDefault("auth.file_path", "./data/users.json")

	v.SetDefault("storage.db_path", "./data/levelwatch.db")
	v.SetDefault("storage.max_alerts", 500)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8501)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Quotes.BaseURL == "" {
		return fmt.Errorf("quotes.base_url is required")
	}
	if c.Quotes.Timeout < time.Second {
		return fmt.Errorf("quotes.timeout must be at least 1 second")
	}
	if c.Quotes.MaxRetries < 1 {
		return fmt.Errorf("quotes.max_retries must be at least 1")
	}

	if len(c.References) == 0 {
		return fmt.Errorf("references must contain at least one ticker")
	}
	// Invalid reference prices are rejected here, never at compute time.
	seen := make(map[string]bool, len(c.References))
	for _, ref := range c.References {
		if ref.Ticker == "" {
			return fmt.Errorf("references entries must have a ticker")
		}
		if ref.Price <= 0 {
			return fmt.Errorf("reference price for %s must be positive, got %v", ref.Ticker, ref.Price)
		}
		if seen[ref.Ticker] {
			return fmt.Errorf("duplicate reference entry for %s", ref.Ticker)
		}
		seen[ref.Ticker] = true
	}

	if c.Watch.PollInterval < 5*time.Second {
		return fmt.Errorf("watch.poll_interval must be at least 5 seconds")
	}
	if c.Watch.ThresholdPercent >= 0 {
		return fmt.Errorf("watch.threshold_percent must be negative, got %v", c.Watch.ThresholdPercent)
	}
	if c.Watch.GraceMinutes < 1 {
		return fmt.Errorf("watch.grace_minutes must be at least 1")
	}
	for _, ticker := range c.Watch.Watchlist {
		if !seen[ticker] {
			return fmt.Errorf("watch.watchlist ticker %s has no reference price", ticker)
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Sound.Repeats < 1 || c.Sound.Repeats > 10 {
		return fmt.Errorf("sound.repeats must be between 1 and 10")
	}

	switch c.Auth.Backend {
	case "file":
		if c.Auth.FilePath == "" {
			return fmt.Errorf("auth.file_path is required for the file backend")
		}
	case "remote":
		if c.Auth.RemoteURL == "" {
			return fmt.Errorf("auth.remote_url is required for the remote backend")
		}
	default:
		return fmt.Errorf("auth.backend must be one of: file, remote")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxAlerts < 1 {
		return fmt.Errorf("storage.max_alerts must be at least 1")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ReferenceTable returns the configured ticker -> reference price table as decimals.
func (c *Config) ReferenceTable() map[string]decimal.Decimal {
	refs := make(map[string]decimal.Decimal, len(c.References))
	for _, ref := range c.References {
		refs[ref.Ticker] = decimal.NewFromFloat(ref.Price)
	}
	return refs
}

// Tickers returns the configured tickers in declaration order.
func (c *Config) Tickers() []string {
	tickers := make([]string, 0, len(c.References))
	for _, ref := range c.References {
		tickers = append(tickers, ref.Ticker)
	}
	return tickers
}

// Threshold returns the alert threshold as a decimal percentage.
func (c *Config) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(c.Watch.ThresholdPercent)
}
