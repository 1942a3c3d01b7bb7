package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"SERVICE_PRINCIPAL", "CLIENT_ID", "CLIENT_NAME",
		"API_BASE_URL", "API_TOKEN", "API_TIMEOUT",
		"PUSH_URL", "PUSH_TOKEN", "PUSH_MAX_RECONNECT_ATTEMPTS",
		"PUSH_RECONNECT_BASE_DELAY", "PUSH_RECONNECT_MAX_DELAY",
		"REALTIME_URL", "REALTIME_TOKEN", "REALTIME_VOICE",
		"REALTIME_MAX_RECONNECT_ATTEMPTS",
		"REALTIME_RECONNECT_BASE_DELAY", "REALTIME_RECONNECT_MAX_DELAY",
		"SYNC_POLL_INTERVAL",
		"KAFKA_BROKERS", "KAFKA_TOPIC_PARTIAL", "KAFKA_TOPIC_FINAL",
		"KAFKA_TOPIC_STATUS", "KAFKA_PRINCIPAL", "KAFKA_ENABLED",
		"LOG_LEVEL", "LOG_FORMAT", "OBSERVABILITY_ADDR",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.Principal != "svc-livesync" {
		t.Errorf("expected default principal 'svc-livesync', got %s", cfg.Service.Principal)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("expected default API base URL, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout.Std() != 15*time.Second {
		t.Errorf("expected default API timeout 15s, got %v", cfg.API.Timeout)
	}
	if cfg.Push.MaxReconnectAttempts != 10 {
		t.Errorf("expected default push reconnect attempts 10, got %d", cfg.Push.MaxReconnectAttempts)
	}
	if cfg.Realtime.Voice != "alloy" {
		t.Errorf("expected default voice 'alloy', got %s", cfg.Realtime.Voice)
	}
	if cfg.Realtime.MaxReconnectAttempts != 5 {
		t.Errorf("expected default realtime reconnect attempts 5, got %d", cfg.Realtime.MaxReconnectAttempts)
	}
	if cfg.Sync.PollInterval.Std() != 30*time.Second {
		t.Errorf("expected default poll interval 30s, got %v", cfg.Sync.PollInterval)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.TopicPartial != "bot.transcript.partial" {
		t.Errorf("unexpected default partial topic %s", cfg.Kafka.TopicPartial)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
	if cfg.Observability.Addr != ":9090" {
		t.Errorf("unexpected default observability addr %s", cfg.Observability.Addr)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
service:
  client_id: client-42
  client_name: Jordan
api:
  base_url: https://api.example.com
realtime:
  voice: nova
sync:
  poll_interval: 10s
kafka:
  enabled: true
  brokers:
    - kafka-1:9092
    - kafka-2:9092
logging:
  level: debug
  format: console
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.ClientID != "client-42" || cfg.Service.ClientName != "Jordan" {
		t.Errorf("unexpected service config %+v", cfg.Service)
	}
	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("unexpected API base URL %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout.Std() != 15*time.Second {
		t.Errorf("expected untouched timeout to keep default, got %v", cfg.API.Timeout)
	}
	if cfg.Realtime.Voice != "nova" {
		t.Errorf("unexpected voice %s", cfg.Realtime.Voice)
	}
	if cfg.Sync.PollInterval.Std() != 10*time.Second {
		t.Errorf("unexpected poll interval %v", cfg.Sync.PollInterval)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("unexpected kafka config %+v", cfg.Kafka)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "realtime:\n  voice: nova\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	os.Setenv("REALTIME_VOICE", "echo")
	os.Setenv("SYNC_POLL_INTERVAL", "5s")
	os.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	defer clearEnv(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Realtime.Voice != "echo" {
		t.Errorf("expected env to win over file, got %s", cfg.Realtime.Voice)
	}
	if cfg.Sync.PollInterval.Std() != 5*time.Second {
		t.Errorf("unexpected poll interval %v", cfg.Sync.PollInterval)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "a:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_InvalidEnvValuesFallBack(t *testing.T) {
	clearEnv(t)

	os.Setenv("SYNC_POLL_INTERVAL", "not-a-duration")
	os.Setenv("PUSH_MAX_RECONNECT_ATTEMPTS", "not-a-number")
	os.Setenv("KAFKA_ENABLED", "invalid")
	defer clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Sync.PollInterval.Std() != 30*time.Second {
		t.Errorf("expected default poll interval on invalid input, got %v", cfg.Sync.PollInterval)
	}
	if cfg.Push.MaxReconnectAttempts != 10 {
		t.Errorf("expected default attempts on invalid input, got %d", cfg.Push.MaxReconnectAttempts)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled on invalid input")
	}
}

func TestLoad_KafkaPrincipalFallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)

	os.Setenv("SERVICE_PRINCIPAL", "my-client")
	defer clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kafka.Principal != "my-client" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing api base url", func(c *Config) { c.API.BaseURL = "" }},
		{"zero api timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"missing push url", func(c *Config) { c.Push.URL = "" }},
		{"negative realtime attempts", func(c *Config) { c.Realtime.MaxReconnectAttempts = -1 }},
		{"zero poll interval", func(c *Config) { c.Sync.PollInterval = 0 }},
		{"kafka enabled without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
