package chat

import "strings"

const (
	DefaultActorID  = "default-user"
	DefaultThreadID = "default-session"
)

// Session identifies whose conversation a turn belongs to. It is only ever
// used as a namespace key; nothing beyond presence is validated.
type Session struct {
	ActorID  string `json:"actorId"`
	ThreadID string `json:"threadId"`
}

// NewSession applies the default identities to blank values.
func NewSession(actorID, threadID string) Session {
	actorID = strings.TrimSpace(actorID)
	threadID = strings.TrimSpace(threadID)
	if actorID == "" {
		actorID = DefaultActorID
	}
	if threadID == "" {
		threadID = DefaultThreadID
	}
	return Session{ActorID: actorID, ThreadID: threadID}
}

// Key returns a flat identifier for map and table lookups.
func (s Session) Key() string {
	return s.ActorID + "/" + s.ThreadID
}
