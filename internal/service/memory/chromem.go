package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	chromem "github.com/philippgille/chromem-go"

	"github.com/zhouzirui/z-scout/backend/internal/model/memory"
)

// ErrEmptyQuery is returned by Search for a blank query text.
var ErrEmptyQuery = errors.New("memory query is empty")

// Config selects the store instance and how it embeds text.
type Config struct {
	// MemoryID prefixes every collection so several logical stores can share
	// one database.
	MemoryID string
	// Path enables on-disk persistence. Empty keeps everything in process.
	Path string
	// Embed overrides the default hash embedder.
	Embed chromem.EmbeddingFunc
}

// ChromemStore keeps one chromem collection per namespace.
type ChromemStore struct {
	db       *chromem.DB
	memoryID string
	embed    chromem.EmbeddingFunc
}

// New opens the store described by cfg.
func New(cfg Config) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("open memory db at %s: %w", cfg.Path, err)
		}
	}

	embed := cfg.Embed
	if embed == nil {
		embed = NewHashEmbedder(0)
	}

	return &ChromemStore{db: db, memoryID: cfg.MemoryID, embed: embed}, nil
}

func (s *ChromemStore) collection(ns memory.Namespace) (*chromem.Collection, error) {
	name := ns.String()
	if s.memoryID != "" {
		name = s.memoryID + ":" + name
	}
	col, err := s.db.GetOrCreateCollection(name, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", name, err)
	}
	return col, nil
}

// Put stores msg under ns with the given id.
func (s *ChromemStore) Put(ctx context.Context, ns memory.Namespace, id string, msg *schema.Message) error {
	if msg == nil {
		return errors.New("memory record has no message")
	}
	col, err := s.collection(ns)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	// Embed up front: chromem refuses documents with neither content nor
	// embedding, and assistant turns can be empty.
	embedding, err := s.embed(ctx, msg.Content)
	if err != nil {
		return fmt.Errorf("embed message: %w", err)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   msg.Content,
		Embedding: embedding,
		Metadata: map[string]string{
			"role":       string(msg.Role),
			"namespace":  ns.String(),
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
			"message":    string(payload),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	log.Printf("[memory] stored record id=%s namespace=%s role=%s", id, ns, msg.Role)
	return nil
}

// Search ranks the records of ns by similarity to query.
func (s *ChromemStore) Search(ctx context.Context, ns memory.Namespace, query string, limit int) ([]memory.Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, nil
	}
	col, err := s.collection(ns)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", ns, err)
	}

	records := make([]memory.Record, 0, len(results))
	for i, result := range results {
		record, err := decodeRecord(ns, result)
		if err != nil {
			log.Printf("[memory] skipping result #%d in %s: %v", i+1, ns, err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeRecord(ns memory.Namespace, result chromem.Result) (memory.Record, error) {
	msg := &schema.Message{}
	if raw := result.Metadata["message"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), msg); err != nil {
			return memory.Record{}, fmt.Errorf("unmarshal message: %w", err)
		}
	} else {
		msg.Role = schema.RoleType(result.Metadata["role"])
		msg.Content = result.Content
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])

	return memory.Record{
		Namespace: ns,
		ID:        result.ID,
		Message:   msg,
		CreatedAt: createdAt,
		Score:     result.Similarity,
	}, nil
}
