package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite vault (default: ./steamauth.db)

	APIURL       string // Optional: override api.steampowered.com (tests, proxies)
	CommunityURL string // Optional: override steamcommunity.com
	DeviceName   string // Optional: device_friendly_name shown in Steam's session list

	ClockStaleness time.Duration // Optional: how long a synced clock offset is trusted (default: 5m)
	ConfirmRate    float64       // Optional: confirmations per second in batch mode (default: 2)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: text)
}

// fileConfig is the optional YAML overlay. Environment variables win over
// the file so one-off overrides never require editing it.
type fileConfig struct {
	DatabaseFile   string  `yaml:"database_file"`
	APIURL         string  `yaml:"api_url"`
	CommunityURL   string  `yaml:"community_url"`
	DeviceName     string  `yaml:"device_name"`
	ClockStaleness string  `yaml:"clock_staleness"`
	ConfirmRate    float64 `yaml:"confirm_rate"`
	Env            string  `yaml:"env"`
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"`
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by STEAMAUTH_CONFIG (if any), then environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{
		DatabaseFile:   "steamauth.db",
		DeviceName:     "Steam Authenticator (Linux)",
		ClockStaleness: 5 * time.Minute,
		ConfirmRate:    2,
		Env:            "dev",
		LogLevel:       "info",
		LogFormat:      "text",
	}

	if path := os.Getenv("STEAMAUTH_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.DatabaseFile = getEnvOrDefault("STEAMAUTH_DATABASE_FILE", cfg.DatabaseFile)
	cfg.APIURL = getEnvOrDefault("STEAMAUTH_API_URL", cfg.APIURL)
	cfg.CommunityURL = getEnvOrDefault("STEAMAUTH_COMMUNITY_URL", cfg.CommunityURL)
	cfg.DeviceName = getEnvOrDefault("STEAMAUTH_DEVICE_NAME", cfg.DeviceName)
	cfg.ClockStaleness = getEnvDurationOrDefault("STEAMAUTH_CLOCK_STALENESS", cfg.ClockStaleness)
	cfg.ConfirmRate = getEnvFloatOrDefault("STEAMAUTH_CONFIRM_RATE", cfg.ConfirmRate)
	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if fc.DatabaseFile != "" {
		c.DatabaseFile = fc.DatabaseFile
	}
	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	if fc.CommunityURL != "" {
		c.CommunityURL = fc.CommunityURL
	}
	if fc.DeviceName != "" {
		c.DeviceName = fc.DeviceName
	}
	if fc.ClockStaleness != "" {
		d, err := time.ParseDuration(fc.ClockStaleness)
		if err != nil {
			return fmt.Errorf("config file %s: clock_staleness: %w", path, err)
		}
		c.ClockStaleness = d
	}
	if fc.ConfirmRate > 0 {
		c.ConfirmRate = fc.ConfirmRate
	}
	if fc.Env != "" {
		c.Env = fc.Env
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		c.LogFormat = fc.LogFormat
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
		return f
	}
	return defaultValue
}
