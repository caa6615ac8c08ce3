package chat

import "github.com/cloudwego/eino/schema"

// State is the conversation state threaded through the agent graph.
type State struct {
	Messages    []*schema.Message
	NeedsSearch bool

	// TurnStart indexes the first message of the current turn. Messages
	// before it were restored from a checkpoint.
	TurnStart int
}

// Update is a partial state produced by one node. Messages are appended,
// NeedsSearch overwrites when set.
type Update struct {
	Messages    []*schema.Message
	NeedsSearch *bool
}

// NewState starts a turn on top of restored history.
func NewState(history []*schema.Message, query string) State {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(query))
	return State{Messages: messages, TurnStart: len(history)}
}

// Apply merges an update into the state.
func (s *State) Apply(u Update) {
	if len(u.Messages) > 0 {
		s.Messages = append(s.Messages, u.Messages...)
	}
	if u.NeedsSearch != nil {
		s.NeedsSearch = *u.NeedsSearch
	}
}

// Turn returns the messages belonging to the current turn.
func (s State) Turn() []*schema.Message {
	if s.TurnStart < 0 || s.TurnStart > len(s.Messages) {
		return s.Messages
	}
	return s.Messages[s.TurnStart:]
}

// Latest returns the most recent message, or nil for an empty state.
func (s State) Latest() *schema.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}
