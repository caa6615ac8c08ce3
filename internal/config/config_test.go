package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"PORT", "MODEL_PROVIDER", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL",
	"ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL",
	"AI_TEMPERATURE", "AI_TOP_P", "AI_MAX_TOKENS", "AI_MAX_RETRIES",
	"TAVILY_API_KEY", "TAVILY_BASE_URL", "SEARCH_DEPTH", "SEARCH_MAX_RESULTS", "SEARCH_TIMEOUT", "SEARCH_CACHE_TTL",
	"MEMORY_ENABLED", "MEMORY_ID", "MEMORY_PATH", "MEMORY_INJECT_PREFERENCES", "MEMORY_PREFERENCE_LIMIT", "MEMORY_EMBEDDER",
	"CHECKPOINT_MODE", "CHECKPOINT_DB", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderAnthropic || cfg.AI.AnthropicModel != "claude-opus-4-6" {
		t.Fatalf("unexpected AI defaults %+v", cfg.AI)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0 || cfg.AI.MaxRetries != 2 {
		t.Fatalf("unexpected AI sampling defaults %+v", cfg.AI)
	}
	if cfg.Search.MaxResults != 3 || cfg.Search.Timeout != 10*time.Second || cfg.Search.CacheTTL != 0 {
		t.Fatalf("unexpected search defaults %+v", cfg.Search)
	}
	if cfg.Memory.Enabled || !cfg.Memory.InjectPreferences || cfg.Memory.PreferenceLimit != 5 || cfg.Memory.MemoryID != DefaultMemoryID {
		t.Fatalf("unexpected memory defaults %+v", cfg.Memory)
	}
	if cfg.Checkpoint.Mode != CheckpointNone {
		t.Fatalf("unexpected checkpoint mode %q", cfg.Checkpoint.Mode)
	}
	if cfg.RateLimit.RequestsPerMinute != 60 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("unexpected rate limit defaults %+v", cfg.RateLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AI_MAX_RETRIES", "0")
	t.Setenv("SEARCH_CACHE_TTL", "30")
	t.Setenv("MEMORY_ENABLED", "true")
	t.Setenv("MEMORY_INJECT_PREFERENCES", "false")
	t.Setenv("CHECKPOINT_MODE", "SQLite")
	t.Setenv("RATE_LIMIT_RPM", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.AI.MaxRetries != 0 {
		t.Fatalf("expected retries disabled, got %d", cfg.AI.MaxRetries)
	}
	if cfg.Search.CacheTTL != 30*time.Second {
		t.Fatalf("unexpected cache ttl %v", cfg.Search.CacheTTL)
	}
	if !cfg.Memory.Enabled || cfg.Memory.InjectPreferences {
		t.Fatalf("unexpected memory config %+v", cfg.Memory)
	}
	if cfg.Checkpoint.Mode != CheckpointSQLite {
		t.Fatalf("unexpected checkpoint mode %q", cfg.Checkpoint.Mode)
	}
	if cfg.RateLimit.RequestsPerMinute != 0 {
		t.Fatalf("expected rate limiting disabled, got %d", cfg.RateLimit.RequestsPerMinute)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":            "80 80",
		"MODEL_PROVIDER":  "openai",
		"AI_TEMPERATURE":  "warm",
		"MEMORY_ENABLED":  "maybe",
		"MEMORY_EMBEDDER": "bert",
		"CHECKPOINT_MODE": "redis",
		"RATE_LIMIT_RPM":  "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestValidateRequiresKeys(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingModelKey) {
		t.Fatalf("expected ErrMissingModelKey, got %v", err)
	}

	cfg.AI.AnthropicAPIKey = "sk-test"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingSearchKey) {
		t.Fatalf("expected ErrMissingSearchKey, got %v", err)
	}

	cfg.Search.APIKey = "tvly-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestArkProviderNeedsModelAndCredentials(t *testing.T) {
	cfg := AIConfig{Provider: ProviderArk, APIKey: "ark-key"}
	if cfg.Enabled() {
		t.Fatal("ark without a model should be disabled")
	}
	cfg.Model = "doubao"
	if !cfg.Enabled() {
		t.Fatal("ark with key and model should be enabled")
	}
}

func TestNewChatModelWithoutKey(t *testing.T) {
	if _, err := (AIConfig{Provider: ProviderAnthropic}).NewChatModel(context.Background()); !errors.Is(err, ErrMissingModelKey) {
		t.Fatalf("expected ErrMissingModelKey, got %v", err)
	}
}
