// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	FrontendURL  string
	DBPath       string
	AssistantURL string
	GeocoderURL  string
	AuthToken    string
	Reconnect    ReconnectConfig
	SendRate     float64 // user messages per second through the gateway
	SendBurst    int
}

// ReconnectConfig controls the assistant connection retry policy.
type ReconnectConfig struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/geochat.db"),
		AssistantURL: getEnv("ASSISTANT_URL", "ws://localhost:8000/ws"),
		GeocoderURL:  getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/search"),
		AuthToken:    getEnv("AUTH_TOKEN", ""),
		Reconnect: ReconnectConfig{
			BaseDelay:   getEnvDuration("RECONNECT_BASE_DELAY", 2*time.Second),
			MaxAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 5),
		},
		SendRate:  getEnvFloat("SEND_RATE", 1),
		SendBurst: getEnvInt("SEND_BURST", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if !strings.HasPrefix(c.AssistantURL, "ws://") && !strings.HasPrefix(c.AssistantURL, "wss://") {
		return fmt.Errorf("ASSISTANT_URL must be a ws:// or wss:// URL")
	}
	if c.GeocoderURL == "" {
		return fmt.Errorf("GEOCODER_URL cannot be empty")
	}
	if c.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("RECONNECT_BASE_DELAY must be > 0")
	}
	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be > 0")
	}
	if c.SendRate <= 0 {
		return fmt.Errorf("SEND_RATE must be > 0")
	}
	if c.SendBurst <= 0 {
		return fmt.Errorf("SEND_BURST must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
