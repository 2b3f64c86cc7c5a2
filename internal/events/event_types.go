package events

import (
	"time"

	"github.com/caseline/messenger-intake/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConversationStarted   EventType = "conversation_started"
	EventConversationTurnAdded EventType = "conversation_turn_added"
	EventCaseCreated           EventType = "case_created"
	EventConversationArchived  EventType = "conversation_archived"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ConversationStartedPayload payload.
type ConversationStartedPayload struct {
	Phase domain.Phase `json:"phase"`
}

// ConversationTurnAddedPayload payload.
type ConversationTurnAddedPayload struct {
	Role        domain.Role  `json:"role"`
	Phase       domain.Phase `json:"phase"`
	TextPreview string       `json:"text_preview"`
}

// CaseCreatedPayload payload.
type CaseCreatedPayload struct {
	CaseID   string             `json:"case_id"`
	Points   int                `json:"points"`
	Ranking  domain.CaseRanking `json:"ranking"`
	Eligible bool               `json:"eligible"`
}

// ConversationArchivedPayload payload.
type ConversationArchivedPayload struct {
	Status  domain.ConversationStatus `json:"status"`
	Turns   int                       `json:"turns"`
	Phase   domain.Phase              `json:"phase"`
	Expired bool                      `json:"expired"`
}
