package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
	"github.com/zhouzirui/z-scout/backend/internal/model/memory"
	"github.com/zhouzirui/z-scout/backend/internal/service/search"
)

const (
	decisionSystemPrompt = "Determine if this query requires current/real-time information or factual verification that might change over time. Respond ONLY with 'yes' or 'no'."
	decisionUserPrompt   = "Query: {query}"

	responseSystemPrompt = "You are a helpful assistant. Answer the user's question based on the provided information."

	searchContextMarker = "Search results"
)

var errEmptyState = errors.New("conversation state has no messages")

// Searcher runs a web search and returns at most maxResults hits.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

// newDecisionChain compiles the yes/no classifier used by the decide node.
func newDecisionChain(ctx context.Context, chatModel model.BaseChatModel) (compose.Runnable[map[string]any, *schema.Message], error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(decisionSystemPrompt),
		schema.UserMessage(decisionUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile decision chain: %w", err)
	}
	return runnable, nil
}

// decide classifies the latest message. Anything without "yes" in it
// routes straight to respond.
func (a *Agent) decide(ctx context.Context, state chat.State) (chat.Update, error) {
	latest := state.Latest()
	if latest == nil {
		return chat.Update{}, errEmptyState
	}

	msg, err := a.decision.Invoke(ctx, map[string]any{"query": latest.Content})
	if err != nil {
		return chat.Update{}, fmt.Errorf("classify query: %w", err)
	}

	needsSearch := msg != nil && strings.Contains(strings.ToLower(msg.Content), "yes")
	log.Printf("[agent] decide needs_search=%t", needsSearch)
	return chat.Update{NeedsSearch: &needsSearch}, nil
}

// runSearch queries the search adapter with the latest message and appends
// the formatted results as assistant context.
func (a *Agent) runSearch(ctx context.Context, state chat.State) (chat.Update, error) {
	latest := state.Latest()
	if latest == nil {
		return chat.Update{}, errEmptyState
	}

	query := latest.Content
	results, err := a.searcher.Search(ctx, query, a.searchResults)
	if err != nil {
		return chat.Update{}, fmt.Errorf("search %q: %w", query, err)
	}

	log.Printf("[agent] search returned %d results", len(results))
	content := fmt.Sprintf("%s for '%s':\n%s", searchContextMarker, query, formatSearchResults(results))
	return chat.Update{Messages: []*schema.Message{schema.AssistantMessage(content, nil)}}, nil
}

// respond builds the final prompt and calls the model once, wrapped by the
// memory hooks when configured.
func (a *Agent) respond(ctx context.Context, state chat.State, session chat.Session) (chat.Update, error) {
	var preferences []memory.Record
	if a.memory != nil {
		records, err := a.memory.Before(ctx, state, session)
		if err != nil {
			return chat.Update{}, err
		}
		preferences = a.memory.Inject(records)
	}

	messages, err := buildResponsePrompt(state.Turn(), preferences)
	if err != nil {
		return chat.Update{}, err
	}

	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return chat.Update{}, fmt.Errorf("generate answer: %w", err)
	}

	content := ""
	if resp != nil {
		content = resp.Content
	}
	update := chat.Update{Messages: []*schema.Message{schema.AssistantMessage(content, nil)}}

	if a.memory != nil {
		next := state
		next.Messages = append(append([]*schema.Message(nil), state.Messages...), update.Messages...)
		if err := a.memory.After(ctx, next, session); err != nil {
			return chat.Update{}, err
		}
	}
	return update, nil
}

// formatSearchResults renders hits as "Result i: content" lines, 1-indexed.
func formatSearchResults(results []search.Result) string {
	lines := make([]string, 0, len(results))
	for i, r := range results {
		lines = append(lines, fmt.Sprintf("Result %d: %s", i+1, r.Content))
	}
	return strings.Join(lines, "\n")
}

// buildResponsePrompt keeps only the system instruction, the search context
// and the turn's first user message, which always comes last.
func buildResponsePrompt(turn []*schema.Message, preferences []memory.Record) ([]*schema.Message, error) {
	var query, searchContext *schema.Message
	for _, msg := range turn {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.User:
			if query == nil {
				query = msg
			}
		case schema.Assistant:
			if searchContext == nil && strings.Contains(msg.Content, searchContextMarker) {
				searchContext = msg
			}
		}
	}

	if query == nil {
		return nil, errors.New("no user message in current turn")
	}

	messages := []*schema.Message{schema.SystemMessage(buildSystemInstruction(preferences))}
	if searchContext != nil {
		messages = append(messages, schema.AssistantMessage(searchContext.Content, nil))
	}
	messages = append(messages, schema.UserMessage(query.Content))
	return messages, nil
}

func buildSystemInstruction(preferences []memory.Record) string {
	if len(preferences) == 0 {
		return responseSystemPrompt
	}

	var b strings.Builder
	b.WriteString(responseSystemPrompt)
	for _, rec := range preferences {
		if rec.Message == nil {
			continue
		}
		text := strings.TrimSpace(rec.Message.Content)
		if text == "" {
			continue
		}
		b.WriteString("\nMemory: ")
		b.WriteString(text)
	}
	return b.String()
}
