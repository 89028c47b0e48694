// Package config loads and validates process-level settings from the
// environment. All variables share the CHATFLOW_ prefix.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v9"
)

// Config holds the settings shared by the completion client and its
// supporting services.
type Config struct {
	// Endpoint settings.
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL" envDefault:"https://api.openai.com/v1"`

	// Model defaults applied to requests that leave them zero.
	Model        string  `env:"MODEL" envDefault:"gpt-4o-mini"`
	Temperature  float64 `env:"TEMPERATURE" envDefault:"0.7"`
	MaxTokens    int64   `env:"MAX_TOKENS"`
	MaxToolDepth int     `env:"MAX_TOOL_DEPTH" envDefault:"10"`

	// Conversation history budget in tokens. Zero disables trimming.
	HistoryTokenBudget int `env:"HISTORY_TOKEN_BUDGET"`

	// Runner settings.
	MaxConcurrency int `env:"MAX_CONCURRENCY" envDefault:"4"`

	// Optional Redis-backed rate limiting. Disabled while Addr is empty.
	Redis RedisConfig `envPrefix:"REDIS_"`
}

// RedisConfig configures the Redis connection used by the distributed
// rate limiter.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"chatflow"`
}

// FromEnv builds a Config from CHATFLOW_-prefixed environment variables
// and validates it.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "CHATFLOW_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	v := NewValidator()

	v.RequireNonEmpty("model", c.Model)
	v.ValidateFloatRange("temperature", c.Temperature, 0.0, 2.0)
	v.RequirePositive("maxToolDepth", c.MaxToolDepth)
	v.RequirePositive("maxConcurrency", c.MaxConcurrency)

	if c.Redis.Addr != "" {
		v.ValidateDBNumber("redis.db", c.Redis.DB)
		v.RequireNonEmpty("redis.prefix", c.Redis.Prefix)
	}

	return v.Error()
}
