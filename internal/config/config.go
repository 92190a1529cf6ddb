package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
)

// Env tags carry the overwrite option: the struct is already populated
// from TOML when envconfig runs, and without it a set env var would
// never replace a non-zero TOML value.
type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host" env:"PUMP_HOST, overwrite"`
	Port        int    `toml:"port" env:"PUMP_PORT, overwrite"`

	// logging
	LogLevel    string `toml:"log_level" env:"PUMP_LOG_LEVEL, overwrite"`
	LogsPath    string `toml:"logs_path" env:"PUMP_LOGS_PATH, overwrite"`
	LogToStdout bool   `toml:"log_to_stdout" env:"PUMP_LOG_TO_STDOUT, overwrite"`

	// postgres
	PostgresHost   string `toml:"postgres_host" env:"PUMP_POSTGRES_HOST, overwrite"`
	PostgresPort   string `toml:"postgres_port" env:"PUMP_POSTGRES_PORT, overwrite"`
	PostgresDBName string `toml:"postgres_db_name" env:"PUMP_POSTGRES_DB_NAME, overwrite"`

	// prometheus metrics server
	PrometheusMetricsHost string `toml:"prometheus_metrics_host" env:"PUMP_METRICS_HOST, overwrite"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port" env:"PUMP_METRICS_PORT, overwrite"`

	// debounce quiet period for exercise log edits, in milliseconds
	LogFlushDebounceMillis int `toml:"log_flush_debounce_millis" env:"PUMP_LOG_FLUSH_DEBOUNCE_MILLIS, overwrite"`

	SentryEnabled  bool `toml:"sentry_enabled" env:"PUMP_SENTRY_ENABLED, overwrite"`
	TracingEnabled bool `toml:"tracing_enabled" env:"PUMP_TRACING_ENABLED, overwrite"`

	// history page size used when the client does not provide a limit
	HistoryDefaultLimit int `toml:"history_default_limit"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Load reads the TOML config for the given environment, then applies
// env var overrides on top of it.
func Load(ctx context.Context, env, path string) (*Config, error) {
	var tomlCfg Toml
	if _, err := toml.DecodeFile(path, &tomlCfg); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := tomlCfg.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}

	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}

	cfg.Environment = env
	if cfg.HistoryDefaultLimit <= 0 {
		cfg.HistoryDefaultLimit = 50
	}
	if cfg.LogFlushDebounceMillis <= 0 {
		cfg.LogFlushDebounceMillis = 500
	}

	return cfg, nil
}
