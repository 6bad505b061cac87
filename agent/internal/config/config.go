package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval   = 2 * time.Second
	DefaultBufferSize = 1000
	DefaultMotorID    = "motor-1"
	DefaultExchange   = "motortwin"
	DefaultRoutingKey = "readings.ingest"
)

// Config is the agent's view of config.yaml. The `server:` key in the same
// file is ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the base URL of motortwin-server, e.g.
	// http://localhost:5001. Leave empty with Discovery on to find it over mDNS.
	ServerEndpoint string `yaml:"server_endpoint"`

	// Discovery browses for a server over mDNS when ServerEndpoint is empty.
	Discovery bool `yaml:"discovery"`

	// Transport is one of: http | amqp.
	Transport string `yaml:"transport"`

	// AMQP configures the publisher used when Transport == "amqp".
	AMQP AMQPConfig `yaml:"amqp"`

	// Interval controls how often the source is read.
	Interval time.Duration `yaml:"interval"`

	// BufferSize is the maximum number of readings held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// ServerAuth configures how the agent authenticates to motortwin-server.
	// Supports mtls | apikey | none.
	ServerAuth AuthConfig `yaml:"server_auth"`

	// Source is the motor the agent reads.
	Source Source `yaml:"source"`
}

// AMQPConfig names the exchange readings are published to.
type AMQPConfig struct {
	URLEnv     string `yaml:"url_env"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// URL returns the broker URL resolved from the environment.
func (a AMQPConfig) URL() string {
	if a.URLEnv == "" {
		return ""
	}
	return os.Getenv(a.URLEnv)
}

// Source describes where readings come from.
type Source struct {
	// Type is one of: synthetic | prometheus.
	Type string `yaml:"type"`

	// MotorID is stamped on every reading.
	MotorID string `yaml:"motor_id"`

	// Seed fixes the synthetic generator's random sequence. Zero picks a
	// time-based seed.
	Seed int64 `yaml:"seed"`

	// Endpoint is the exporter's /metrics URL for the prometheus source.
	Endpoint string `yaml:"endpoint"`

	// Metrics maps reading fields to exporter metric names.
	Metrics MetricNames `yaml:"metrics"`

	// Labels restricts the prometheus source to series carrying all of these
	// label values, e.g. {motor: "pump-7"} on a multi-motor exporter.
	Labels map[string]string `yaml:"labels"`

	// Auth configures how the agent authenticates to the exporter.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// MetricNames are the exporter metric names read by the prometheus source.
type MetricNames struct {
	Temperature string `yaml:"temperature"`
	Vibration   string `yaml:"vibration"`
	RPM         string `yaml:"rpm"`
	Load        string `yaml:"load"`
}

// AuthConfig specifies an authentication mode.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// API key fields, used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// Bearer token fields, used when Mode == "bearer".
	// TokenEnv is the name of the environment variable that holds the token.
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	// Username is the literal username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("agent config: parse yaml: %w", err)
	}
	fillMetricNames(&cfg.Agent.Source.Metrics)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Transport:  "http",
			Interval:   DefaultInterval,
			BufferSize: DefaultBufferSize,
			AMQP: AMQPConfig{
				Exchange:   DefaultExchange,
				RoutingKey: DefaultRoutingKey,
			},
			Source: Source{
				Type:    "synthetic",
				MotorID: DefaultMotorID,
			},
		},
	}
}

// fillMetricNames defaults any metric name the config left blank.
func fillMetricNames(m *MetricNames) {
	if m.Temperature == "" {
		m.Temperature = "motor_temperature_celsius"
	}
	if m.Vibration == "" {
		m.Vibration = "motor_vibration"
	}
	if m.RPM == "" {
		m.RPM = "motor_rpm"
	}
	if m.Load == "" {
		m.Load = "motor_load_percent"
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	switch a.Transport {
	case "http":
		if a.ServerEndpoint == "" && !a.Discovery {
			return fmt.Errorf("agent.server_endpoint is required unless discovery is enabled")
		}
	case "amqp":
		if a.AMQP.URLEnv == "" {
			return fmt.Errorf("agent.amqp.url_env is required for the amqp transport")
		}
	default:
		return fmt.Errorf("agent.transport: unknown transport %q", a.Transport)
	}
	if a.Interval <= 0 {
		return fmt.Errorf("agent.interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	switch a.ServerAuth.Mode {
	case "mtls", "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth: unknown auth mode %q", a.ServerAuth.Mode)
	}

	src := a.Source
	if src.MotorID == "" {
		return fmt.Errorf("source.motor_id is required")
	}
	switch src.Type {
	case "synthetic":
	case "prometheus":
		if src.Endpoint == "" {
			return fmt.Errorf("source %q: endpoint is required for the prometheus source", src.MotorID)
		}
	default:
		return fmt.Errorf("source %q: unknown type %q", src.MotorID, src.Type)
	}
	switch src.Auth.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("source %q: unknown auth mode %q", src.MotorID, src.Auth.Mode)
	}
	return nil
}
