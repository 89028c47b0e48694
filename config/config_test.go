package config

import (
	"strings"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Expected default model, got %q", cfg.Model)
	}
	if cfg.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("Expected default base URL, got %q", cfg.BaseURL)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Expected default temperature 0.7, got %v", cfg.Temperature)
	}
	if cfg.MaxToolDepth != 10 {
		t.Errorf("Expected default tool depth 10, got %d", cfg.MaxToolDepth)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("Expected default concurrency 4, got %d", cfg.MaxConcurrency)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Expected Redis disabled by default, got %q", cfg.Redis.Addr)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CHATFLOW_API_KEY", "sk-test")
	t.Setenv("CHATFLOW_MODEL", "gpt-4o")
	t.Setenv("CHATFLOW_TEMPERATURE", "0.2")
	t.Setenv("CHATFLOW_MAX_TOOL_DEPTH", "3")
	t.Setenv("CHATFLOW_REDIS_ADDR", "localhost:6379")
	t.Setenv("CHATFLOW_REDIS_DB", "2")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.APIKey != "sk-test" {
		t.Errorf("Expected API key from env, got %q", cfg.APIKey)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("Expected model override, got %q", cfg.Model)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("Expected temperature override, got %v", cfg.Temperature)
	}
	if cfg.MaxToolDepth != 3 {
		t.Errorf("Expected tool depth override, got %d", cfg.MaxToolDepth)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Expected Redis settings from env, got %+v", cfg.Redis)
	}
	if cfg.Redis.Prefix != "chatflow" {
		t.Errorf("Expected default Redis prefix, got %q", cfg.Redis.Prefix)
	}
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("CHATFLOW_TEMPERATURE", "3.5")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("Expected validation error for out-of-range temperature")
	}
	if !strings.Contains(err.Error(), "temperature") {
		t.Errorf("Expected temperature in error, got %v", err)
	}
}

func TestValidateRedisOnlyWhenEnabled(t *testing.T) {
	cfg := &Config{
		Model:          "gpt-4o-mini",
		Temperature:    0.7,
		MaxToolDepth:   10,
		MaxConcurrency: 4,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config without Redis, got %v", err)
	}

	cfg.Redis = RedisConfig{Addr: "localhost:6379", DB: 42, Prefix: "chatflow"}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for out-of-range Redis DB")
	}
}
