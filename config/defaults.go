package config

import (
	"time"

	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/voting"
)

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Deliberation: DefaultDeliberationConfig(),
		Redis:        DefaultRedisConfig(),
		Database:     DefaultDatabaseConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server endpoints.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		StreamPort:      8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultDeliberationConfig mirrors deliberation.DefaultConfig.
func DefaultDeliberationConfig() DeliberationConfig {
	d := deliberation.DefaultConfig()
	return DeliberationConfig{
		MaxRounds:               d.MaxRounds,
		MinConsensusThreshold:   d.MinConsensusThreshold,
		StallDetectionThreshold: d.StallDetectionThreshold,
		Stall: StallConfig{
			Threshold:         d.Stall.Threshold,
			ConsecutiveRounds: d.Stall.ConsecutiveRounds,
		},
		ParticipantTimeout: d.ParticipantTimeout,
		Voting: VotingConfig{
			Protocol:                   voting.ProtocolSimpleMajority,
			Threshold:                  d.Voting.Threshold,
			DelphiMaxRounds:            d.Voting.DelphiMaxRounds,
			DelphiConvergenceThreshold: d.Voting.DelphiConvergenceThreshold,
		},
	}
}

// DefaultRedisConfig returns the default Redis store configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		TTL:          0,
	}
}

// DefaultDatabaseConfig returns the default relational store configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Path:            "boardflow.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "boardflow",
		SampleRate:   0.1,
	}
}
