package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/voting"
)

// Config is the complete boardflow configuration.
type Config struct {
	// Server holds the streaming and metrics endpoints.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Deliberation parametrizes the session engine.
	Deliberation DeliberationConfig `yaml:"deliberation" env:"DELIBERATION"`

	// Redis configures the Redis decision store.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database configures the relational decision store.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures OTLP trace and metric export.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds the network endpoints of the demo server.
type ServerConfig struct {
	// WebSocket listen port for round streaming.
	StreamPort int `yaml:"stream_port" env:"STREAM_PORT"`
	// Prometheus metrics port.
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DeliberationConfig mirrors deliberation.Config with YAML/env bindings.
// Weights cannot be set from the environment; use the YAML file.
type DeliberationConfig struct {
	MaxRounds               int           `yaml:"max_rounds" env:"MAX_ROUNDS"`
	MinConsensusThreshold   float64       `yaml:"min_consensus_threshold" env:"MIN_CONSENSUS_THRESHOLD"`
	StallDetectionThreshold float64       `yaml:"stall_detection_threshold" env:"STALL_DETECTION_THRESHOLD"`
	Stall                   StallConfig   `yaml:"stall" env:"STALL"`
	ParticipantTimeout      time.Duration `yaml:"participant_timeout" env:"PARTICIPANT_TIMEOUT"`
	Voting                  VotingConfig  `yaml:"voting" env:"VOTING"`

	Weights map[string]float64 `yaml:"weights" env:"-"`

	RequestRate  float64 `yaml:"request_rate" env:"REQUEST_RATE"`
	RequestBurst int     `yaml:"request_burst" env:"REQUEST_BURST"`
}

// StallConfig holds the stall detector knobs.
type StallConfig struct {
	Threshold         float64 `yaml:"threshold" env:"THRESHOLD"`
	ConsecutiveRounds int     `yaml:"consecutive_rounds" env:"CONSECUTIVE_ROUNDS"`
}

// VotingConfig selects and parametrizes the voting protocol.
type VotingConfig struct {
	Protocol                   string  `yaml:"protocol" env:"PROTOCOL"`
	Threshold                  float64 `yaml:"threshold" env:"THRESHOLD"`
	DelphiMaxRounds            int     `yaml:"delphi_max_rounds" env:"DELPHI_MAX_ROUNDS"`
	DelphiConvergenceThreshold float64 `yaml:"delphi_convergence_threshold" env:"DELPHI_CONVERGENCE_THRESHOLD"`
}

// RedisConfig configures the Redis decision store.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`

	// TTL bounds how long archived decisions stay readable; zero keeps
	// them indefinitely.
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// DatabaseConfig configures the relational decision store.
type DatabaseConfig struct {
	// Driver selects the backend; sqlite is the only bundled driver.
	Driver string `yaml:"driver" env:"DRIVER"`
	// Path is the sqlite database file; ":memory:" for ephemeral stores.
	Path string `yaml:"path" env:"PATH"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`

	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the default BOARDFLOW env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "BOARDFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends an additional validation step.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration. Precedence: defaults, then the YAML file,
// then environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing file falls back to defaults.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks the struct recursively, composing env keys from the
// prefix and the env tags, e.g. BOARDFLOW_DELIBERATION_MAX_ROUNDS.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices only.
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// MustLoad loads the configuration or panics. For main functions only.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks structural constraints of the loaded configuration. Engine
// semantics are validated again by deliberation.Config.Validate.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.StreamPort < 0 || c.Server.StreamPort > 65535 {
		errs = append(errs, "invalid stream port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if err := c.Deliberation.Engine().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Engine converts the loaded section into the engine's own configuration.
func (d *DeliberationConfig) Engine() deliberation.Config {
	return deliberation.Config{
		MaxRounds:               d.MaxRounds,
		MinConsensusThreshold:   d.MinConsensusThreshold,
		StallDetectionThreshold: d.StallDetectionThreshold,
		Stall: deliberation.StallOptions{
			Threshold:         d.Stall.Threshold,
			ConsecutiveRounds: d.Stall.ConsecutiveRounds,
		},
		ParticipantTimeout: d.ParticipantTimeout,
		Voting: voting.Config{
			Protocol:                   d.Voting.Protocol,
			Threshold:                  d.Voting.Threshold,
			DelphiMaxRounds:            d.Voting.DelphiMaxRounds,
			DelphiConvergenceThreshold: d.Voting.DelphiConvergenceThreshold,
		},
		Weights:      d.Weights,
		RequestRate:  d.RequestRate,
		RequestBurst: d.RequestBurst,
	}
}
