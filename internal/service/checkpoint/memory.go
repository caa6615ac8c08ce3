package checkpoint

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
)

// MemoryStore keeps checkpoints in process, suitable for a single replica.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]*schema.Message
}

// NewMemoryStore bootstraps an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]*schema.Message),
	}
}

// Load returns a copy of the stored history for the session.
func (s *MemoryStore) Load(_ context.Context, session chat.Session) ([]*schema.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[session.Key()]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]*schema.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Save replaces the stored history for the session.
func (s *MemoryStore) Save(_ context.Context, session chat.Session, messages []*schema.Message) error {
	copied := make([]*schema.Message, len(messages))
	copy(copied, messages)

	s.mu.Lock()
	s.messages[session.Key()] = copied
	s.mu.Unlock()
	return nil
}
