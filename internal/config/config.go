// Package config loads service configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use Go duration
// strings ("30s", "1m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Config represents the complete service configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	API           APIConfig           `yaml:"api"`
	Push          PushConfig          `yaml:"push"`
	Realtime      RealtimeConfig      `yaml:"realtime"`
	Sync          SyncConfig          `yaml:"sync"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig identifies this client instance.
type ServiceConfig struct {
	Principal  string `yaml:"principal"`
	ClientID   string `yaml:"client_id"`
	ClientName string `yaml:"client_name"`
}

// APIConfig contains the REST collaborator endpoint.
type APIConfig struct {
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
}

// PushConfig contains the event-push websocket endpoint.
type PushConfig struct {
	URL                  string   `yaml:"url"`
	Token                string   `yaml:"token"`
	MaxReconnectAttempts int      `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    Duration `yaml:"reconnect_max_delay"`
}

// RealtimeConfig contains the voice websocket endpoint.
type RealtimeConfig struct {
	URL                  string   `yaml:"url"`
	Token                string   `yaml:"token"`
	Voice                string   `yaml:"voice"`
	MaxReconnectAttempts int      `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    Duration `yaml:"reconnect_max_delay"`
}

// SyncConfig contains transcript sync engine tuning.
type SyncConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
}

// KafkaConfig contains event publishing configuration.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topic_partial"`
	TopicFinal   string   `yaml:"topic_final"`
	TopicStatus  string   `yaml:"topic_status"`
	Principal    string   `yaml:"principal"`
	Enabled      bool     `yaml:"enabled"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig contains the metrics/health HTTP listener.
type ObservabilityConfig struct {
	Addr string `yaml:"addr"`
}

func defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal: "svc-livesync",
		},
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: Duration(15 * time.Second),
		},
		Push: PushConfig{
			URL:                  "ws://localhost:8000",
			MaxReconnectAttempts: 10,
			ReconnectBaseDelay:   Duration(time.Second),
			ReconnectMaxDelay:    Duration(30 * time.Second),
		},
		Realtime: RealtimeConfig{
			URL:                  "ws://localhost:8000",
			Voice:                "alloy",
			MaxReconnectAttempts: 5,
			ReconnectBaseDelay:   Duration(time.Second),
			ReconnectMaxDelay:    Duration(30 * time.Second),
		},
		Sync: SyncConfig{
			PollInterval: Duration(30 * time.Second),
		},
		Kafka: KafkaConfig{
			TopicPartial: "bot.transcript.partial",
			TopicFinal:   "bot.transcript.final",
			TopicStatus:  "bot.status",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			Addr: ":9090",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path when non-empty, then environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.ClientID = envOrDefault("CLIENT_ID", c.Service.ClientID)
	c.Service.ClientName = envOrDefault("CLIENT_NAME", c.Service.ClientName)

	c.API.BaseURL = envOrDefault("API_BASE_URL", c.API.BaseURL)
	c.API.Token = envOrDefault("API_TOKEN", c.API.Token)
	c.API.Timeout = envOrDefaultDuration("API_TIMEOUT", c.API.Timeout)

	c.Push.URL = envOrDefault("PUSH_URL", c.Push.URL)
	c.Push.Token = envOrDefault("PUSH_TOKEN", c.Push.Token)
	c.Push.MaxReconnectAttempts = envOrDefaultInt("PUSH_MAX_RECONNECT_ATTEMPTS", c.Push.MaxReconnectAttempts)
	c.Push.ReconnectBaseDelay = envOrDefaultDuration("PUSH_RECONNECT_BASE_DELAY", c.Push.ReconnectBaseDelay)
	c.Push.ReconnectMaxDelay = envOrDefaultDuration("PUSH_RECONNECT_MAX_DELAY", c.Push.ReconnectMaxDelay)

	c.Realtime.URL = envOrDefault("REALTIME_URL", c.Realtime.URL)
	c.Realtime.Token = envOrDefault("REALTIME_TOKEN", c.Realtime.Token)
	c.Realtime.Voice = envOrDefault("REALTIME_VOICE", c.Realtime.Voice)
	c.Realtime.MaxReconnectAttempts = envOrDefaultInt("REALTIME_MAX_RECONNECT_ATTEMPTS", c.Realtime.MaxReconnectAttempts)
	c.Realtime.ReconnectBaseDelay = envOrDefaultDuration("REALTIME_RECONNECT_BASE_DELAY", c.Realtime.ReconnectBaseDelay)
	c.Realtime.ReconnectMaxDelay = envOrDefaultDuration("REALTIME_RECONNECT_MAX_DELAY", c.Realtime.ReconnectMaxDelay)

	c.Sync.PollInterval = envOrDefaultDuration("SYNC_POLL_INTERVAL", c.Sync.PollInterval)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Kafka.TopicPartial = envOrDefault("KAFKA_TOPIC_PARTIAL", c.Kafka.TopicPartial)
	c.Kafka.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", c.Kafka.TopicFinal)
	c.Kafka.TopicStatus = envOrDefault("KAFKA_TOPIC_STATUS", c.Kafka.TopicStatus)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.Logging.Level = envOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envOrDefault("LOG_FORMAT", c.Logging.Format)

	c.Observability.Addr = envOrDefault("OBSERVABILITY_ADDR", c.Observability.Addr)
}

// Validate checks the configuration for values the client cannot run
// with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got %v", c.API.Timeout)
	}
	if c.Push.URL == "" {
		return fmt.Errorf("push url is required")
	}
	if c.Push.MaxReconnectAttempts < 0 {
		return fmt.Errorf("push max_reconnect_attempts must not be negative, got %d", c.Push.MaxReconnectAttempts)
	}
	if c.Realtime.URL == "" {
		return fmt.Errorf("realtime url is required")
	}
	if c.Realtime.MaxReconnectAttempts < 0 {
		return fmt.Errorf("realtime max_reconnect_attempts must not be negative, got %d", c.Realtime.MaxReconnectAttempts)
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync poll_interval must be positive, got %v", c.Sync.PollInterval)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def Duration) Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return Duration(d)
}
