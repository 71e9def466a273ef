package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env is the environment configuration of the arbor CLI.
// Command-line flags take precedence over these values.
type Env struct {
	LogLevel     string `env:"ARBOR_LOG_LEVEL" envDefault:"info"`
	HistoryLimit int    `env:"ARBOR_HISTORY_LIMIT" envDefault:"64"`
	RedisAddr    string `env:"ARBOR_REDIS_ADDR"`
	RedisPrefix  string `env:"ARBOR_REDIS_PREFIX" envDefault:"arbor:instance:"`
	HTTPAddr     string `env:"ARBOR_HTTP_ADDR" envDefault:":8080"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Env from the process environment.
func Load() (Env, error) {
	var cfg Env
	if err := ParseEnv(&cfg); err != nil {
		return Env{}, err
	}
	if cfg.HistoryLimit < 0 {
		return Env{}, fmt.Errorf("ARBOR_HISTORY_LIMIT must not be negative, got %d", cfg.HistoryLimit)
	}
	return cfg, nil
}
