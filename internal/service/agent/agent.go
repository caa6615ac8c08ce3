// Package agent routes a query through decide, optional search and respond
// nodes, with optional memory hooks and checkpointed history.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
	"github.com/zhouzirui/z-scout/backend/internal/service/checkpoint"
)

const defaultSearchResults = 3

var (
	ErrMemoryDisabled       = errors.New("memory is not enabled")
	ErrCheckpointerDisabled = errors.New("checkpointing is not enabled")
)

// Step reports one executed node.
type Step struct {
	Node        Node          `json:"-"`
	Name        string        `json:"node"`
	Index       int           `json:"index"`
	NeedsSearch *bool         `json:"needsSearch,omitempty"`
	Message     *chat.Message `json:"message,omitempty"`
}

// StepObserver is called after every executed node. It may be nil.
type StepObserver func(Step)

// RunResult is the outcome of one turn.
type RunResult struct {
	Answer string
	Steps  int
	State  chat.State
}

// Agent owns the graph and the adapters it calls.
type Agent struct {
	chatModel     model.BaseChatModel
	decision      compose.Runnable[map[string]any, *schema.Message]
	searcher      Searcher
	memory        *MemoryMiddleware
	checkpoints   checkpoint.Store
	searchResults int
	graph         Graph
}

// Option customises an Agent.
type Option func(*Agent)

// WithMemory wraps the respond node's model call with mw.
func WithMemory(mw *MemoryMiddleware) Option {
	return func(a *Agent) {
		a.memory = mw
	}
}

// WithCheckpointer restores and saves session history through store.
func WithCheckpointer(store checkpoint.Store) Option {
	return func(a *Agent) {
		a.checkpoints = store
	}
}

// WithSearchResults sets how many hits the search node requests.
func WithSearchResults(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.searchResults = n
		}
	}
}

// New builds an agent. chatModel serves both the decide and respond nodes.
func New(ctx context.Context, chatModel model.BaseChatModel, searcher Searcher, opts ...Option) (*Agent, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}

	decision, err := newDecisionChain(ctx, chatModel)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		chatModel:     chatModel,
		decision:      decision,
		searcher:      searcher,
		searchResults: defaultSearchResults,
		graph:         NewGraph(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Graph returns the routing graph.
func (a *Agent) Graph() Graph {
	return a.graph
}

// Run executes one turn for session. History is restored from and saved to
// the checkpointer when one is configured.
func (a *Agent) Run(ctx context.Context, session chat.Session, prompt string, observe StepObserver) (*RunResult, error) {
	history, err := a.loadHistory(ctx, session)
	if err != nil {
		return nil, err
	}

	state := chat.NewState(history, prompt)
	steps := 0
	for node := a.graph.Entry(); node != NodeEnd; node = a.graph.Next(node, state) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		update, err := a.execute(ctx, node, state, session)
		if err != nil {
			return nil, fmt.Errorf("%s node: %w", node, err)
		}
		state.Apply(update)
		steps++

		if observe != nil {
			observe(newStep(node, steps, update))
		}
	}

	answer := ""
	if msg := chat.LastOfRole(state.Turn(), schema.Assistant); msg != nil {
		answer = msg.Content
	}

	if a.checkpoints != nil {
		if err := a.checkpoints.Save(ctx, session, state.Messages); err != nil {
			log.Printf("[agent] checkpoint save failed for %s: %v", session.Key(), err)
		}
	}

	log.Printf("[agent] session=%s steps=%d answer_len=%d", session.Key(), steps, len(answer))
	return &RunResult{Answer: answer, Steps: steps, State: state}, nil
}

// History returns the checkpointed messages of session.
func (a *Agent) History(ctx context.Context, session chat.Session) ([]*schema.Message, error) {
	if a.checkpoints == nil {
		return nil, ErrCheckpointerDisabled
	}
	return a.checkpoints.Load(ctx, session)
}

// RecordPreference stores a long-term preference for actorID.
func (a *Agent) RecordPreference(ctx context.Context, actorID, text string) (string, error) {
	if a.memory == nil {
		return "", ErrMemoryDisabled
	}
	return a.memory.RecordPreference(ctx, actorID, text)
}

func (a *Agent) loadHistory(ctx context.Context, session chat.Session) ([]*schema.Message, error) {
	if a.checkpoints == nil {
		return nil, nil
	}

	history, err := a.checkpoints.Load(ctx, session)
	if errors.Is(err, checkpoint.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return history, nil
}

func (a *Agent) execute(ctx context.Context, node Node, state chat.State, session chat.Session) (chat.Update, error) {
	switch node {
	case NodeDecide:
		return a.decide(ctx, state)
	case NodeSearch:
		return a.runSearch(ctx, state)
	case NodeRespond:
		return a.respond(ctx, state, session)
	default:
		return chat.Update{}, fmt.Errorf("unknown node %s", node)
	}
}

func newStep(node Node, index int, update chat.Update) Step {
	step := Step{Node: node, Name: node.String(), Index: index, NeedsSearch: update.NeedsSearch}
	if len(update.Messages) > 0 {
		view := chat.Transcript(update.Messages[len(update.Messages)-1:])
		if len(view) == 1 {
			step.Message = &view[0]
		}
	}
	return step
}

// FormatStep renders a step as one console line.
func FormatStep(step Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", step.Index, step.Name)
	if step.NeedsSearch != nil {
		fmt.Fprintf(&b, " needs_search=%t", *step.NeedsSearch)
	}
	if step.Message != nil {
		fmt.Fprintf(&b, "\n    %s: %s", step.Message.Role, strings.ReplaceAll(step.Message.Content, "\n", "\n    "))
	}
	return b.String()
}
