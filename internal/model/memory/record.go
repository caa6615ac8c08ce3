package memory

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
)

// PreferencesScope is the first element of every preference namespace.
const PreferencesScope = "preferences"

// Namespace is a compound key scoping stored records.
type Namespace []string

// SessionNamespace scopes records to one conversation thread.
func SessionNamespace(s chat.Session) Namespace {
	return Namespace{s.ActorID, s.ThreadID}
}

// PreferencesNamespace scopes long-term preference records to an actor
// across all of their threads.
func PreferencesNamespace(actorID string) Namespace {
	return Namespace{PreferencesScope, actorID}
}

func (n Namespace) String() string {
	return strings.Join(n, "/")
}

// Record is one persisted message snapshot.
type Record struct {
	Namespace Namespace       `json:"namespace"`
	ID        string          `json:"id"`
	Message   *schema.Message `json:"message"`
	CreatedAt time.Time       `json:"createdAt"`
	Score     float32         `json:"score,omitempty"`
}

// Store persists message records. Records are write-once; there is no update
// or delete path.
type Store interface {
	Put(ctx context.Context, ns Namespace, id string, msg *schema.Message) error
	// Search returns records ranked by relevance to query, best first, at
	// most limit of them.
	Search(ctx context.Context, ns Namespace, query string, limit int) ([]Record, error)
}
