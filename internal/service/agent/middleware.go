package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
	"github.com/zhouzirui/z-scout/backend/internal/model/memory"
)

const defaultPreferenceLimit = 5

// MemoryMiddleware persists the turn's messages around the respond node's
// model call and looks up the actor's stored preferences.
type MemoryMiddleware struct {
	store  memory.Store
	limit  int
	inject bool
	newID  func() string
}

// MemoryOption customises a MemoryMiddleware.
type MemoryOption func(*MemoryMiddleware)

// WithPreferenceLimit caps how many preference records Before retrieves.
func WithPreferenceLimit(limit int) MemoryOption {
	return func(m *MemoryMiddleware) {
		if limit > 0 {
			m.limit = limit
		}
	}
}

// WithPreferenceInjection controls whether retrieved preferences reach the
// response prompt. When off they are only logged.
func WithPreferenceInjection(enabled bool) MemoryOption {
	return func(m *MemoryMiddleware) {
		m.inject = enabled
	}
}

// NewMemoryMiddleware wraps store.
func NewMemoryMiddleware(store memory.Store, opts ...MemoryOption) *MemoryMiddleware {
	m := &MemoryMiddleware{
		store:  store,
		limit:  defaultPreferenceLimit,
		inject: true,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Before stores the most recent user message under the session namespace,
// then searches the actor's preferences with it. A failed write is returned;
// a failed preference lookup is logged and yields no records.
func (m *MemoryMiddleware) Before(ctx context.Context, state chat.State, session chat.Session) ([]memory.Record, error) {
	msg := chat.LastOfRole(state.Messages, schema.User)
	if msg == nil {
		return nil, nil
	}

	ns := memory.SessionNamespace(session)
	if err := m.store.Put(ctx, ns, m.newID(), msg); err != nil {
		return nil, fmt.Errorf("store user message in %s: %w", ns, err)
	}

	prefNS := memory.PreferencesNamespace(session.ActorID)
	records, err := m.store.Search(ctx, prefNS, msg.Content, m.limit)
	if err != nil {
		log.Printf("[memory] preference lookup in %s failed: %v", prefNS, err)
		return nil, nil
	}

	for _, rec := range records {
		if rec.Message != nil {
			log.Printf("[memory] retrieved preference %s: %s", rec.ID, rec.Message.Content)
		}
	}
	return records, nil
}

// After stores the most recent assistant message under the session namespace.
func (m *MemoryMiddleware) After(ctx context.Context, state chat.State, session chat.Session) error {
	msg := chat.LastOfRole(state.Messages, schema.Assistant)
	if msg == nil {
		return nil
	}

	ns := memory.SessionNamespace(session)
	if err := m.store.Put(ctx, ns, m.newID(), msg); err != nil {
		return fmt.Errorf("store assistant message in %s: %w", ns, err)
	}
	return nil
}

// Inject returns the records to merge into the prompt, or nil when
// injection is disabled.
func (m *MemoryMiddleware) Inject(records []memory.Record) []memory.Record {
	if !m.inject {
		return nil
	}
	return records
}

// RecordPreference stores a preference statement for actorID so later
// lookups can find it.
func (m *MemoryMiddleware) RecordPreference(ctx context.Context, actorID, text string) (string, error) {
	id := m.newID()
	ns := memory.PreferencesNamespace(chat.NewSession(actorID, "").ActorID)
	if err := m.store.Put(ctx, ns, id, schema.UserMessage(text)); err != nil {
		return "", fmt.Errorf("store preference in %s: %w", ns, err)
	}
	return id, nil
}
