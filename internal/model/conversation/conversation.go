package conversation

import "time"

// Status values for the conversation lifecycle. Ended is terminal.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Context holds the running topic set and the periodically regenerated
// free-text summary for one conversation.
type Context struct {
	Topics  []string `json:"topics"`
	Summary string   `json:"summary"`
}

// Conversation owns its ordered, append-only message sequence. messages[0] is
// always the persona's greeting.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	PersonaID    string    `json:"personaId"`
	Status       Status    `json:"status"`
	Messages     []Message `json:"messages"`
	Context      Context   `json:"context"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	EndedAt      time.Time `json:"endedAt,omitzero"`
}

// Snapshot returns a deep copy safe to hand out of the engine's lock.
func (c Conversation) Snapshot() Conversation {
	c.Messages = append([]Message(nil), c.Messages...)
	c.Context.Topics = append([]string(nil), c.Context.Topics...)
	return c
}

// Window returns the most recent n messages, oldest first. Older history is
// excluded from the prompt context, never deleted.
func (c Conversation) Window(n int) []Message {
	msgs := c.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]Message(nil), msgs...)
}
