// Package checkpoint persists conversation history per session so a thread
// can resume across invocations.
package checkpoint

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// Store loads and saves the full message history of a session. Load returns
// ErrSessionNotFound for a session that was never saved.
type Store interface {
	Load(ctx context.Context, session chat.Session) ([]*schema.Message, error)
	Save(ctx context.Context, session chat.Session, messages []*schema.Message) error
}
