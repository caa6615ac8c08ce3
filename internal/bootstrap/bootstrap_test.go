package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/zhouzirui/z-scout/backend/internal/config"
	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
	"github.com/zhouzirui/z-scout/backend/internal/service/checkpoint"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		AI: config.AIConfig{
			Provider:        config.ProviderAnthropic,
			AnthropicAPIKey: "test-key",
			AnthropicModel:  "claude-test",
			MaxRetries:      2,
		},
		Search: config.SearchConfig{
			APIKey:     "tvly-test",
			MaxResults: 3,
			Timeout:    time.Second,
			CacheTTL:   time.Minute,
		},
		Memory: config.MemoryConfig{
			Enabled:           true,
			MemoryID:          "test-memory",
			InjectPreferences: true,
			PreferenceLimit:   5,
			Embedder:          "hash",
		},
		Checkpoint: config.CheckpointConfig{
			Mode:   config.CheckpointSQLite,
			DBPath: filepath.Join(t.TempDir(), "checkpoints.db"),
		},
	}
}

func TestNewWiresEveryAdapter(t *testing.T) {
	rt, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer rt.Close()

	if rt.Agent == nil {
		t.Fatal("expected an agent")
	}

	ctx := context.Background()
	if _, err := rt.Agent.RecordPreference(ctx, "u1", "likes tea"); err != nil {
		t.Fatalf("memory should be wired: %v", err)
	}
	if _, err := rt.Agent.History(ctx, chat.NewSession("u1", "t1")); !errors.Is(err, checkpoint.ErrSessionNotFound) {
		t.Fatalf("checkpointer should be wired, got %v", err)
	}
}

func TestNewFailsWithoutModelKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.AnthropicAPIKey = ""

	if _, err := New(context.Background(), cfg); !errors.Is(err, config.ErrMissingModelKey) {
		t.Fatalf("expected ErrMissingModelKey, got %v", err)
	}
}

func TestNewCheckpointerModes(t *testing.T) {
	store, closer, err := newCheckpointer(config.CheckpointConfig{Mode: config.CheckpointNone})
	if err != nil || store != nil || closer != nil {
		t.Fatalf("none mode should disable checkpointing, got %v %v", store, err)
	}

	store, _, err = newCheckpointer(config.CheckpointConfig{Mode: config.CheckpointMemory})
	if err != nil {
		t.Fatalf("memory mode returned error: %v", err)
	}
	if _, ok := store.(*checkpoint.MemoryStore); !ok {
		t.Fatalf("expected a memory store, got %T", store)
	}
}
