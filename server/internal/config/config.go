package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one reading-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "temperature > 90", "vibration >= 6",
	// "status == ANOMALY", "status == FAILURE LIKELY", "risk == FAILURE_RISK".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 5001
	DefaultMotorID         = "motor-1"
	DefaultHistoryWindow   = 30
	DefaultDashboardLimit  = 50
	DefaultForecastSteps   = 10
	DefaultStreamInterval  = 2 * time.Second
	DefaultMemoryCapacity  = 10000
	DefaultSQLitePath      = "motortwin.db"
	DefaultRedisKey        = "motortwin:readings"
	DefaultDynamoTable     = "MotorReadings"
	DefaultRateLimit       = 20
	DefaultRateLimitWindow = time.Second
	DefaultExchange        = "motortwin"
	DefaultQueue           = "readings"
	DefaultRoutingKey      = "readings.ingest"
	DefaultInstance        = "motortwin"
)

// minHistoryWindow matches the minimum history the trend and anomaly
// analytics need before they activate.
const minHistoryWindow = 20

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket stream and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// MotorID is assigned to readings that arrive without one.
	MotorID string `yaml:"motor_id"`

	// Auth configures how the server authenticates write requests.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit throttles the ingest endpoint per client address.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// CORS lists the origins allowed to call the API from a browser.
	CORS CORSConfig `yaml:"cors"`

	// Storage selects and configures the reading store.
	Storage StorageConfig `yaml:"storage"`

	// Analytics sizes the history windows handed to the analytics core.
	Analytics AnalyticsConfig `yaml:"analytics"`

	// Ingest controls input sanitising and the optional AMQP consumer.
	Ingest IngestConfig `yaml:"ingest"`

	// Stream controls the WebSocket dashboard broadcast.
	Stream StreamConfig `yaml:"stream"`

	// Discovery advertises the server over mDNS.
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// RateLimitConfig configures the Redis-backed fixed-window rate limiter.
type RateLimitConfig struct {
	Enabled   bool          `yaml:"enabled"`
	RedisAddr string        `yaml:"redis_addr"`
	Limit     int           `yaml:"limit"`
	Window    time.Duration `yaml:"window"`
}

// CORSConfig lists allowed browser origins. "*" allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects the reading store backend.
type StorageConfig struct {
	// Backend is one of: memory | sqlite | redis | dynamodb.
	Backend string `yaml:"backend"`

	// Capacity bounds the memory backend; the oldest readings are dropped.
	Capacity int `yaml:"capacity"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	Redis    RedisConfig    `yaml:"redis"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

// RedisConfig configures the Redis sorted-set backend.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	// Key is the sorted set holding readings scored by timestamp.
	Key string `yaml:"key"`
}

// Password returns the Redis password resolved from the environment.
func (r RedisConfig) Password() string {
	if r.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(r.PasswordEnv)
}

// DynamoDBConfig configures the DynamoDB backend.
type DynamoDBConfig struct {
	Table  string `yaml:"table"`
	Region string `yaml:"region"`
	// Endpoint overrides the AWS endpoint, e.g. for DynamoDB Local.
	Endpoint string `yaml:"endpoint"`
}

// AnalyticsConfig sizes the history windows.
type AnalyticsConfig struct {
	// HistoryWindow is the number of most recent readings used at ingestion
	// and for forecasts. Must be at least 20.
	HistoryWindow int `yaml:"history_window"`

	// DashboardLimit is the number of readings served to the dashboard.
	DashboardLimit int `yaml:"dashboard_limit"`

	// ForecastSteps is the default forecast horizon.
	ForecastSteps int `yaml:"forecast_steps"`
}

// IngestConfig controls the ingestion pipeline.
type IngestConfig struct {
	// Clamp forces temperature, vibration and load into their physical ranges
	// before analysis and persistence.
	Clamp bool `yaml:"clamp"`

	Queue QueueConfig `yaml:"queue"`
}

// QueueConfig configures the AMQP ingest consumer.
type QueueConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URLEnv     string `yaml:"url_env"`
	Exchange   string `yaml:"exchange"`
	Queue      string `yaml:"queue"`
	RoutingKey string `yaml:"routing_key"`
}

// URL returns the AMQP URL resolved from the environment.
func (q QueueConfig) URL() string {
	if q.URLEnv == "" {
		return ""
	}
	return os.Getenv(q.URLEnv)
}

// StreamConfig controls the WebSocket broadcast.
type StreamConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// DiscoveryConfig controls mDNS advertisement.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			MotorID:  DefaultMotorID,
			RateLimit: RateLimitConfig{
				Limit:  DefaultRateLimit,
				Window: DefaultRateLimitWindow,
			},
			CORS: CORSConfig{AllowedOrigins: []string{"*"}},
			Storage: StorageConfig{
				Backend:  "memory",
				Capacity: DefaultMemoryCapacity,
				Path:     DefaultSQLitePath,
				Redis:    RedisConfig{Addr: "localhost:6379", Key: DefaultRedisKey},
				DynamoDB: DynamoDBConfig{Table: DefaultDynamoTable},
			},
			Analytics: AnalyticsConfig{
				HistoryWindow:  DefaultHistoryWindow,
				DashboardLimit: DefaultDashboardLimit,
				ForecastSteps:  DefaultForecastSteps,
			},
			Ingest: IngestConfig{
				Clamp: true,
				Queue: QueueConfig{
					URLEnv:     "AMQP_URL",
					Exchange:   DefaultExchange,
					Queue:      DefaultQueue,
					RoutingKey: DefaultRoutingKey,
				},
			},
			Stream:    StreamConfig{Interval: DefaultStreamInterval},
			Discovery: DiscoveryConfig{Instance: DefaultInstance},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.MotorID == "" {
		return fmt.Errorf("server.motor_id must not be empty")
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.RateLimit.Enabled {
		if s.RateLimit.RedisAddr == "" {
			return fmt.Errorf("server.rate_limit.redis_addr is required when enabled")
		}
		if s.RateLimit.Limit <= 0 || s.RateLimit.Window <= 0 {
			return fmt.Errorf("server.rate_limit.limit and window must be positive")
		}
	}
	switch s.Storage.Backend {
	case "memory":
		if s.Storage.Capacity <= 0 {
			return fmt.Errorf("server.storage.capacity must be positive")
		}
	case "sqlite":
		if s.Storage.Path == "" {
			return fmt.Errorf("server.storage.path is required for sqlite")
		}
	case "redis":
		if s.Storage.Redis.Addr == "" || s.Storage.Redis.Key == "" {
			return fmt.Errorf("server.storage.redis.addr and key are required for redis")
		}
	case "dynamodb":
		if s.Storage.DynamoDB.Table == "" || s.Storage.DynamoDB.Region == "" {
			return fmt.Errorf("server.storage.dynamodb.table and region are required for dynamodb")
		}
	default:
		return fmt.Errorf("server.storage.backend %q unknown: want memory|sqlite|redis|dynamodb", s.Storage.Backend)
	}
	if s.Analytics.HistoryWindow < minHistoryWindow {
		return fmt.Errorf("server.analytics.history_window must be at least %d", minHistoryWindow)
	}
	if s.Analytics.DashboardLimit <= 0 {
		return fmt.Errorf("server.analytics.dashboard_limit must be positive")
	}
	if s.Analytics.ForecastSteps <= 0 {
		return fmt.Errorf("server.analytics.forecast_steps must be positive")
	}
	if s.Ingest.Queue.Enabled && (s.Ingest.Queue.Queue == "" || s.Ingest.Queue.Exchange == "") {
		return fmt.Errorf("server.ingest.queue.exchange and queue are required when enabled")
	}
	if s.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d] %q: condition is required", i, r.Name)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
