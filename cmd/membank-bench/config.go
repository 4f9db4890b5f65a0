package main

import "errors"

// Config validation errors
var (
	ErrInvalidMetricsAddr  = errors.New("metrics_addr cannot be empty")
	ErrInvalidPoolSize     = errors.New("pool_size must be positive")
	ErrInvalidWorkers      = errors.New("workers must be positive")
	ErrInvalidRounds       = errors.New("rounds must be positive")
	ErrInvalidOpsPerRound  = errors.New("ops_per_round must be positive")
	ErrInvalidMaxAllocSize = errors.New("max_alloc_size must be positive and fit the pool")
	ErrInvalidListValues   = errors.New("list_values must be >= 0")
	ErrInvalidLogFormat    = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel     = errors.New("log_level must be debug, info, warn, or error")
)

// Config is populated from MEMBANK_* environment variables.
type Config struct {
	MetricsAddr  string `envconfig:"METRICS_ADDR" default:"0.0.0.0:9090"`
	PoolSize     int    `envconfig:"POOL_SIZE" default:"67108864"` // 64MB
	Workers      int    `envconfig:"WORKERS" default:"8"`
	Rounds       int    `envconfig:"ROUNDS" default:"50"`
	OpsPerRound  int    `envconfig:"OPS_PER_ROUND" default:"2000"`
	MaxAllocSize int    `envconfig:"MAX_ALLOC_SIZE" default:"4096"`
	ListValues   int    `envconfig:"LIST_VALUES" default:"5000"`
	Seed         int64  `envconfig:"SEED" default:"1"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.MetricsAddr == "" {
		return ErrInvalidMetricsAddr
	}
	if cfg.PoolSize <= 0 {
		return ErrInvalidPoolSize
	}
	if cfg.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if cfg.Rounds <= 0 {
		return ErrInvalidRounds
	}
	if cfg.OpsPerRound <= 0 {
		return ErrInvalidOpsPerRound
	}
	if cfg.MaxAllocSize <= 0 || cfg.MaxAllocSize > cfg.PoolSize {
		return ErrInvalidMaxAllocSize
	}
	if cfg.ListValues < 0 {
		return ErrInvalidListValues
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}
