// Package config loads server settings from the environment, after reading
// an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/payroll-engine/leave"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	AutoCredit AutoCreditConfig
	Rules      RulesConfig
}

// AppConfig holds HTTP and process settings.
type AppConfig struct {
	Addr        string
	Timezone    string
	LogLevel    string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Path string
}

// AutoCreditConfig controls the periodic roster-wide rule pass.
type AutoCreditConfig struct {
	Enabled  bool
	Interval time.Duration
}

// RulesConfig tunes the leave rule evaluator.
type RulesConfig struct {
	CompOffLookbackDays int
	MergeMode           leave.MergeMode
}

// Load reads .env (if present) and the environment. A missing .env is not
// an error; a malformed value is.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	config := &Config{}

	config.App = AppConfig{
		Addr:        getEnv("APP_ADDR", ":8080"),
		Timezone:    getEnv("APP_TIMEZONE", "UTC"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"*"}),
	}

	config.Database = DatabaseConfig{
		Path: getEnv("DB_PATH", "payroll.db"),
	}

	enabled, err := strconv.ParseBool(getEnv("AUTO_CREDIT_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_CREDIT_ENABLED: %w", err)
	}
	interval, err := time.ParseDuration(getEnv("AUTO_CREDIT_INTERVAL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_CREDIT_INTERVAL: %w", err)
	}
	config.AutoCredit = AutoCreditConfig{Enabled: enabled, Interval: interval}

	lookback, err := strconv.Atoi(getEnv("COMPOFF_LOOKBACK_DAYS", strconv.Itoa(leave.DefaultLookbackDays)))
	if err != nil {
		return nil, fmt.Errorf("invalid COMPOFF_LOOKBACK_DAYS: %w", err)
	}
	mode, err := leave.ParseMergeMode(getEnv("RULE_MERGE_MODE", string(leave.MergeLastWriteWins)))
	if err != nil {
		return nil, fmt.Errorf("invalid RULE_MERGE_MODE: %w", err)
	}
	config.Rules = RulesConfig{CompOffLookbackDays: lookback, MergeMode: mode}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Addr == "" {
		return fmt.Errorf("APP_ADDR is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.AutoCredit.Enabled && c.AutoCredit.Interval < time.Minute {
		return fmt.Errorf("AUTO_CREDIT_INTERVAL must be at least 1m, got %s", c.AutoCredit.Interval)
	}
	if c.Rules.CompOffLookbackDays < 1 {
		return fmt.Errorf("COMPOFF_LOOKBACK_DAYS must be positive, got %d", c.Rules.CompOffLookbackDays)
	}
	return nil
}

// Location is the zone punches are bucketed into local days with.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.App.Timezone)
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.App.LogLevel, err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
