package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:         "8080",
		DBPath:       "./data/geochat.db",
		AssistantURL: "ws://localhost:8000/ws",
		GeocoderURL:  "https://nominatim.openstreetmap.org/search",
		Reconnect: ReconnectConfig{
			BaseDelay:   2 * time.Second,
			MaxAttempts: 5,
		},
		SendRate:  1,
		SendBurst: 3,
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ASSISTANT_URL", "wss://assistant.example.com/ws")
	t.Setenv("RECONNECT_BASE_DELAY", "500ms")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "7")
	t.Setenv("SEND_RATE", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.AssistantURL != "wss://assistant.example.com/ws" {
		t.Errorf("AssistantURL = %q", cfg.AssistantURL)
	}
	if cfg.Reconnect.BaseDelay != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 500ms", cfg.Reconnect.BaseDelay)
	}
	if cfg.Reconnect.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7", cfg.Reconnect.MaxAttempts)
	}
	if cfg.SendRate != 2.5 {
		t.Errorf("SendRate = %v, want 2.5", cfg.SendRate)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("RECONNECT_BASE_DELAY", "not a duration")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Reconnect.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want default 2s", cfg.Reconnect.BaseDelay)
	}
	if cfg.Reconnect.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want default 5", cfg.Reconnect.MaxAttempts)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "DB_PATH"},
		{"http assistant url", func(c *Config) { c.AssistantURL = "http://localhost:8000" }, "ASSISTANT_URL"},
		{"empty geocoder url", func(c *Config) { c.GeocoderURL = "" }, "GEOCODER_URL"},
		{"zero base delay", func(c *Config) { c.Reconnect.BaseDelay = 0 }, "RECONNECT_BASE_DELAY"},
		{"zero max attempts", func(c *Config) { c.Reconnect.MaxAttempts = 0 }, "RECONNECT_MAX_ATTEMPTS"},
		{"zero send rate", func(c *Config) { c.SendRate = 0 }, "SEND_RATE"},
		{"zero send burst", func(c *Config) { c.SendBurst = 0 }, "SEND_BURST"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://geochat.example.com", false},
	}

	for _, tt := range tests {
		cfg := validConfig()
		cfg.FrontendURL = tt.frontendURL
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.frontendURL, got, tt.want)
		}
	}
}
