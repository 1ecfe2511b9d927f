package conversation

import "time"

// Message origin tags.
const (
	OriginUser  = "user"
	OriginAgent = "agent"
)

// Message is a single turn owned by exactly one conversation. IDs are ULIDs so
// lexical order matches chronological append order.
type Message struct {
	ID        string    `json:"id"`
	Origin    string    `json:"origin"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`

	// Agent-origin metadata; zero-valued on user messages.
	Strategy   string  `json:"strategy,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	TokenCount int     `json:"tokenCount,omitempty"`
	Fallback   bool    `json:"fallback,omitempty"`
}
