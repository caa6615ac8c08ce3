package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
)

// These messages are part of the invocation response contract and are
// returned to clients verbatim, so they keep their sentence form.
var (
	ErrInvalidPayload = errors.New("Invalid payload format. Expected JSON dict with 'prompt' key")
	ErrEmptyPrompt    = errors.New("No prompt found in input. Please provide a 'prompt' key with your question.")
	ErrNoAnswer       = errors.New("Agent failed to generate a response")
)

// InvocationResult is the record returned by the invocation entrypoint.
// Result is null whenever Error is set.
type InvocationResult struct {
	Result  *string `json:"result"`
	Steps   int     `json:"steps,omitempty"`
	Success bool    `json:"success,omitempty"`
	Error   string  `json:"error,omitempty"`

	err error
}

// Err returns the error behind Error, nil on success. Validation failures
// match ErrInvalidPayload or ErrEmptyPrompt.
func (r InvocationResult) Err() error {
	if r.err == nil && r.Error != "" {
		return errors.New(r.Error)
	}
	return r.err
}

// Request is the parsed invocation payload.
type Request struct {
	Prompt  string
	Session chat.Session
}

// ParsePayload validates a decoded JSON payload. thread_id falls back to
// session_id.
func ParsePayload(payload any) (Request, error) {
	fields, ok := payload.(map[string]any)
	if !ok {
		return Request{}, ErrInvalidPayload
	}

	prompt := strings.TrimSpace(stringField(fields, "prompt"))
	if prompt == "" {
		return Request{}, ErrEmptyPrompt
	}

	threadID := stringField(fields, "thread_id")
	if strings.TrimSpace(threadID) == "" {
		threadID = stringField(fields, "session_id")
	}

	return Request{
		Prompt:  prompt,
		Session: chat.NewSession(stringField(fields, "actor_id"), threadID),
	}, nil
}

// Invoke validates payload, runs one turn and folds every outcome into an
// InvocationResult. It never returns a Go error.
func (a *Agent) Invoke(ctx context.Context, payload any, observe StepObserver) InvocationResult {
	req, err := ParsePayload(payload)
	if err != nil {
		return failure(err)
	}

	log.Printf("[invoke] session=%s prompt_len=%d", req.Session.Key(), len(req.Prompt))
	result, err := a.Run(ctx, req.Session, req.Prompt, observe)
	if err != nil {
		log.Printf("[invoke] run failed: %v", err)
		return failure(fmt.Errorf("Error during agent execution: %w", err))
	}

	if strings.TrimSpace(result.Answer) == "" {
		return failure(ErrNoAnswer)
	}

	answer := result.Answer
	return InvocationResult{Result: &answer, Steps: result.Steps, Success: true}
}

func failure(err error) InvocationResult {
	return InvocationResult{Error: err.Error(), err: err}
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
