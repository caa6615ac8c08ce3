// Package bootstrap builds the agent and its adapters from configuration.
// Both the HTTP server and the console share it.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	chromem "github.com/philippgille/chromem-go"

	"github.com/zhouzirui/z-scout/backend/internal/config"
	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
	"github.com/zhouzirui/z-scout/backend/internal/service/checkpoint"
	memoryservice "github.com/zhouzirui/z-scout/backend/internal/service/memory"
	"github.com/zhouzirui/z-scout/backend/internal/service/search"
)

// Runtime is a fully wired agent plus the resources to release on exit.
type Runtime struct {
	Agent   *agent.Agent
	closers []func()
}

// Close releases caches and database handles in reverse order of creation.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// New constructs every adapter once and injects them into the agent.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	log.Printf("[bootstrap] chat model provider=%s", cfg.AI.Provider)

	searcher, err := search.NewTavily(search.Config{
		APIKey:   cfg.Search.APIKey,
		BaseURL:  cfg.Search.BaseURL,
		Depth:    cfg.Search.Depth,
		Timeout:  cfg.Search.Timeout,
		CacheTTL: cfg.Search.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}
	rt.closers = append(rt.closers, searcher.Close)

	opts := []agent.Option{agent.WithSearchResults(cfg.Search.MaxResults)}

	if cfg.Memory.Enabled {
		store, err := memoryservice.New(memoryservice.Config{
			MemoryID: cfg.Memory.MemoryID,
			Path:     cfg.Memory.Path,
			Embed:    newEmbedder(cfg.Memory),
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to open memory store: %w", err)
		}
		mw := agent.NewMemoryMiddleware(store,
			agent.WithPreferenceLimit(cfg.Memory.PreferenceLimit),
			agent.WithPreferenceInjection(cfg.Memory.InjectPreferences),
		)
		opts = append(opts, agent.WithMemory(mw))
		log.Printf("[bootstrap] memory enabled id=%s embedder=%s", cfg.Memory.MemoryID, cfg.Memory.Embedder)
	}

	checkpointer, closeCheckpointer, err := newCheckpointer(cfg.Checkpoint)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if checkpointer != nil {
		opts = append(opts, agent.WithCheckpointer(checkpointer))
		log.Printf("[bootstrap] checkpointing mode=%s", cfg.Checkpoint.Mode)
	}
	if closeCheckpointer != nil {
		rt.closers = append(rt.closers, closeCheckpointer)
	}

	a, err := agent.New(ctx, chatModel, searcher, opts...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	rt.Agent = a
	return rt, nil
}

func newEmbedder(cfg config.MemoryConfig) chromem.EmbeddingFunc {
	if cfg.Embedder == "ollama" {
		return chromem.NewEmbeddingFuncOllama(cfg.OllamaEmbedModel, cfg.OllamaBaseURL)
	}
	return memoryservice.NewHashEmbedder(0)
}

func newCheckpointer(cfg config.CheckpointConfig) (checkpoint.Store, func(), error) {
	switch cfg.Mode {
	case config.CheckpointMemory:
		return checkpoint.NewMemoryStore(), nil, nil
	case config.CheckpointSQLite:
		store, err := checkpoint.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open checkpoint db: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Printf("[bootstrap] close checkpoint db: %v", err)
			}
		}, nil
	default:
		return nil, nil, nil
	}
}
