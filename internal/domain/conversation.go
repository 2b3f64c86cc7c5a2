package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationStatus enumerates lifecycle states for conversations.
type ConversationStatus string

const (
	ConversationActive      ConversationStatus = "ACTIVE"
	ConversationCaseCreated ConversationStatus = "CASE_CREATED"
	ConversationAbandoned   ConversationStatus = "ABANDONED"
)

// Turn is a single immutable utterance. Turns are strictly time-ordered and
// never rewritten once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the per-user aggregate: ordered turn history plus the
// in-progress case draft. At most one exists per Messenger user id.
type Conversation struct {
	UserID       string             `json:"user_id"`
	Turns        []Turn             `json:"turns"`
	Draft        CaseDraft          `json:"draft"`
	Status       ConversationStatus `json:"status"`
	CaseID       *string            `json:"case_id,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	LastActivity time.Time          `json:"last_activity"`
}

// Clone returns a deep copy so callers can never mutate store-held history.
func (c Conversation) Clone() Conversation {
	out := c
	out.Turns = make([]Turn, len(c.Turns))
	copy(out.Turns, c.Turns)
	out.Draft = c.Draft.Clone()
	if c.CaseID != nil {
		id := *c.CaseID
		out.CaseID = &id
	}
	return out
}
