package store

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/domain"
)

// ConversationStore keeps in-flight conversations in memory, keyed by the
// Messenger sender id. All returned conversations are deep copies; callers
// mutate state only through store methods.
type ConversationStore struct {
	mu     sync.RWMutex
	byUser map[string]*domain.Conversation
	logger *zap.Logger
	now    func() time.Time
}

// NewConversationStore builds an empty store.
func NewConversationStore(logger *zap.Logger) *ConversationStore {
	return &ConversationStore{
		byUser: make(map[string]*domain.Conversation),
		logger: logger,
		now:    time.Now,
	}
}

// GetOrCreate returns the conversation for a user, creating one at the age
// phase when none exists. The second return is true when the conversation
// was just created.
func (s *ConversationStore) GetOrCreate(userID string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.byUser[userID]; ok {
		return conv.Clone(), false
	}

	now := s.now()
	conv := &domain.Conversation{
		UserID:       userID,
		Draft:        domain.NewCaseDraft(),
		Status:       domain.ConversationActive,
		CreatedAt:    now,
		LastActivity: now,
	}
	s.byUser[userID] = conv
	s.logger.Info("conversation started", zap.String("user_id", userID))
	return conv.Clone(), true
}

// Get returns a copy of an existing conversation.
func (s *ConversationStore) Get(userID string) (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.byUser[userID]
	if !ok {
		return domain.Conversation{}, false
	}
	return conv.Clone(), true
}

// AppendTurn records one turn on the transcript and refreshes activity.
func (s *ConversationStore) AppendTurn(userID string, role domain.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byUser[userID]
	if !ok {
		return
	}
	now := s.now()
	conv.Turns = append(conv.Turns, domain.Turn{Role: role, Text: text, Timestamp: now})
	conv.LastActivity = now
}

// SetDraft replaces the conversation's draft with an updated copy.
func (s *ConversationStore) SetDraft(userID string, draft domain.CaseDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byUser[userID]
	if !ok {
		return
	}
	conv.Draft = draft.Clone()
	conv.LastActivity = s.now()
}

// MarkCaseCreated transitions a conversation to the case-created state.
// It returns false when the conversation is absent or already has a case,
// which makes materialization idempotent.
func (s *ConversationStore) MarkCaseCreated(userID, caseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byUser[userID]
	if !ok || conv.Status == domain.ConversationCaseCreated {
		return false
	}
	conv.Status = domain.ConversationCaseCreated
	conv.CaseID = &caseID
	conv.LastActivity = s.now()
	return true
}

// Archive removes a conversation from the active set.
func (s *ConversationStore) Archive(userID string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byUser[userID]
	if !ok {
		return domain.Conversation{}, false
	}
	delete(s.byUser, userID)
	if conv.Status == domain.ConversationActive {
		conv.Status = domain.ConversationAbandoned
	}
	return conv.Clone(), true
}

// ArchiveInactive drops every conversation idle longer than maxIdle and
// returns the archived copies.
func (s *ConversationStore) ArchiveInactive(maxIdle time.Duration) []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	var archived []domain.Conversation
	for userID, conv := range s.byUser {
		if conv.LastActivity.Before(cutoff) {
			delete(s.byUser, userID)
			if conv.Status == domain.ConversationActive {
				conv.Status = domain.ConversationAbandoned
			}
			archived = append(archived, conv.Clone())
			s.logger.Info("conversation expired", zap.String("user_id", userID))
		}
	}
	return archived
}

// CountActive returns the number of conversations still in the active
// status. Conversations waiting on the reaper after case creation are
// not in-flight load and are excluded.
func (s *ConversationStore) CountActive() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, conv := range s.byUser {
		if conv.Status == domain.ConversationActive {
			n++
		}
	}
	return n
}
