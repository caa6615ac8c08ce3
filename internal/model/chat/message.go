package chat

import "github.com/cloudwego/eino/schema"

// Message is the transcript view of a stored turn returned to HTTP clients.
type Message struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	ToolCalls []string `json:"toolCalls,omitempty"`
}

// Transcript flattens schema messages into their client view.
func Transcript(messages []*schema.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		view := Message{Role: string(msg.Role), Content: msg.Content}
		for _, call := range msg.ToolCalls {
			view.ToolCalls = append(view.ToolCalls, call.Function.Name)
		}
		out = append(out, view)
	}
	return out
}

// LastOfRole scans messages newest first and returns the first one with the
// given role, or nil.
func LastOfRole(messages []*schema.Message, role schema.RoleType) *schema.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i] != nil && messages[i].Role == role {
			return messages[i]
		}
	}
	return nil
}
