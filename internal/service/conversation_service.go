package service

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/domain"
	"github.com/caseline/messenger-intake/internal/events"
	"github.com/caseline/messenger-intake/internal/intake"
	"github.com/caseline/messenger-intake/internal/repository"
	"github.com/caseline/messenger-intake/internal/store"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

// Replier delivers outbound messages to the user.
type Replier interface {
	SendText(ctx context.Context, recipientID, text string) error
}

// CompletionPolicy decides when a draft is ready to become a case.
type CompletionPolicy func(draft domain.CaseDraft) bool

// DefaultCompletionPolicy materializes once the intake reaches its
// terminal phase.
func DefaultCompletionPolicy(draft domain.CaseDraft) bool {
	return draft.Phase == domain.PhaseComplete
}

// ConversationService orchestrates one inbound message end to end:
// dedup, conversation state, intake reply, delivery, and case
// materialization.
type ConversationService struct {
	conversations *store.ConversationStore
	deduper       store.Deduper
	engine        *intake.Engine
	cases         repository.CaseRepository
	replier       Replier
	dispatcher    events.Dispatcher
	policy        CompletionPolicy
	fallbackReply string
	logger        *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ConversationDependencies bundles collaborators for the service.
type ConversationDependencies struct {
	Conversations *store.ConversationStore
	Deduper       store.Deduper
	Engine        *intake.Engine
	CaseRepo      repository.CaseRepository
	Replier       Replier
	Dispatcher    events.Dispatcher
	Policy        CompletionPolicy
	FallbackReply string
}

// NewConversationService wires the service.
func NewConversationService(deps ConversationDependencies, logger *zap.Logger) *ConversationService {
	policy := deps.Policy
	if policy == nil {
		policy = DefaultCompletionPolicy
	}
	return &ConversationService{
		conversations: deps.Conversations,
		deduper:       deps.Deduper,
		engine:        deps.Engine,
		cases:         deps.CaseRepo,
		replier:       deps.Replier,
		dispatcher:    deps.Dispatcher,
		policy:        policy,
		fallbackReply: deps.FallbackReply,
		logger:        logger,
	}
}

// userLock serializes processing per sender so turn order is preserved
// while unrelated users proceed in parallel.
func (s *ConversationService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// HandleInbound processes one normalized Messenger event. The returned
// error is for logging only; the webhook acknowledges the delivery
// regardless.
func (s *ConversationService) HandleInbound(ctx context.Context, msg domain.InboundMessage) error {
	lock := s.userLock(msg.SenderID)
	lock.Lock()
	defer lock.Unlock()

	if s.deduper.Seen(ctx, msg.MessageID) {
		s.logger.Debug("duplicate delivery ignored", zap.String("message_id", msg.MessageID))
		return nil
	}

	conv, created := s.conversations.GetOrCreate(msg.SenderID)
	if created {
		s.publish(ctx, events.EventConversationStarted, msg.SenderID, events.ConversationStartedPayload{Phase: conv.Draft.Phase})
		welcome := s.engine.WelcomeMessage()
		s.appendAssistantTurn(ctx, msg.SenderID, conv.Draft.Phase, welcome)
		s.deliver(ctx, msg.SenderID, welcome)
		return nil
	}

	if conv.Status == domain.ConversationCaseCreated {
		reply := "Your message has been received. An agent will respond shortly."
		s.appendUserTurn(ctx, msg.SenderID, conv.Draft.Phase, msg.Text)
		s.appendAssistantTurn(ctx, msg.SenderID, conv.Draft.Phase, reply)
		s.deliver(ctx, msg.SenderID, reply)
		return nil
	}

	s.appendUserTurn(ctx, msg.SenderID, conv.Draft.Phase, msg.Text)

	result, err := s.engine.GenerateReply(ctx, conv.Draft, msg.Text)
	if err != nil {
		// No assistant turn is recorded for a failed interpretation; the
		// user's message stays on the transcript for the retry.
		s.logger.Error("intake turn failed",
			zap.String("user_id", msg.SenderID),
			zap.Error(err))
		if s.fallbackReply != "" && errorutil.IsCode(err, errorutil.CodeUpstreamUnavailable) {
			s.deliver(ctx, msg.SenderID, s.fallbackReply)
		}
		return err
	}

	s.conversations.SetDraft(msg.SenderID, result.Draft)

	for _, reply := range result.Replies {
		s.appendAssistantTurn(ctx, msg.SenderID, result.Draft.Phase, reply)
		s.deliver(ctx, msg.SenderID, reply)
	}

	if s.policy(result.Draft) {
		if err := s.TryMaterialize(ctx, msg.SenderID); err != nil {
			s.logger.Error("case materialization failed", zap.String("user_id", msg.SenderID), zap.Error(err))
		}
	}

	if result.EndConversation {
		if conv, ok := s.conversations.Archive(msg.SenderID); ok {
			s.publish(ctx, events.EventConversationArchived, msg.SenderID, events.ConversationArchivedPayload{
				Status: conv.Status,
				Turns:  len(conv.Turns),
				Phase:  conv.Draft.Phase,
			})
		}
	}

	return nil
}

// TryMaterialize turns a completed draft into a persisted case exactly
// once. A failed save leaves the conversation active so a later turn can
// retry; a successful save transitions it to the case-created state.
func (s *ConversationService) TryMaterialize(ctx context.Context, userID string) error {
	conv, ok := s.conversations.Get(userID)
	if !ok {
		return errorutil.NewNotFound("conversation", map[string]any{"user_id": userID})
	}
	if conv.Status == domain.ConversationCaseCreated {
		return nil
	}
	if !s.policy(conv.Draft) {
		return nil
	}

	c := buildCase(conv)
	if err := s.cases.Save(ctx, c); err != nil {
		return errorutil.NewPersistenceError(err)
	}

	if !s.conversations.MarkCaseCreated(userID, c.ID) {
		// Another goroutine won the race; the saved duplicate is benign
		// because case ids are unique per save attempt.
		s.logger.Warn("case already recorded for conversation", zap.String("user_id", userID))
		return nil
	}

	s.publish(ctx, events.EventCaseCreated, userID, events.CaseCreatedPayload{
		CaseID:   c.ID,
		Points:   c.Assessment.Points,
		Ranking:  c.Assessment.Ranking,
		Eligible: c.Assessment.Eligible,
	})
	s.logger.Info("case created",
		zap.String("user_id", userID),
		zap.String("case_id", c.ID),
		zap.Int("points", c.Assessment.Points),
		zap.String("ranking", string(c.Assessment.Ranking)))
	return nil
}

// ArchiveIdle expires conversations idle past maxIdle. Used by the
// session reaper.
func (s *ConversationService) ArchiveIdle(ctx context.Context, maxIdle time.Duration) int {
	archived := s.conversations.ArchiveInactive(maxIdle)
	for _, conv := range archived {
		s.publish(ctx, events.EventConversationArchived, conv.UserID, events.ConversationArchivedPayload{
			Status:  conv.Status,
			Turns:   len(conv.Turns),
			Phase:   conv.Draft.Phase,
			Expired: true,
		})
	}
	return len(archived)
}

// ActiveConversations reports the live conversation count for health.
func (s *ConversationService) ActiveConversations() int {
	return s.conversations.CountActive()
}

func (s *ConversationService) appendUserTurn(ctx context.Context, userID string, phase domain.Phase, text string) {
	s.conversations.AppendTurn(userID, domain.RoleUser, text)
	s.publish(ctx, events.EventConversationTurnAdded, userID, events.ConversationTurnAddedPayload{
		Role:        domain.RoleUser,
		Phase:       phase,
		TextPreview: preview(text),
	})
}

func (s *ConversationService) appendAssistantTurn(ctx context.Context, userID string, phase domain.Phase, text string) {
	s.conversations.AppendTurn(userID, domain.RoleAssistant, text)
	s.publish(ctx, events.EventConversationTurnAdded, userID, events.ConversationTurnAddedPayload{
		Role:        domain.RoleAssistant,
		Phase:       phase,
		TextPreview: preview(text),
	})
}

func (s *ConversationService) deliver(ctx context.Context, userID, text string) {
	if err := s.replier.SendText(ctx, userID, text); err != nil {
		// Delivery is best effort; state is already recorded.
		s.logger.Error("reply delivery failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *ConversationService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func buildCase(conv domain.Conversation) *domain.Case {
	d := conv.Draft
	eligible := d.Phase == domain.PhaseComplete
	return &domain.Case{
		ID:     uuid.NewString(),
		UserID: conv.UserID,
		Summary: domain.CaseSummary{
			ChildAge:            d.Age,
			WeeksPregnant:       d.WeeksPregnant,
			DifficultDelivery:   d.DifficultDelivery,
			NICUStay:            d.NICUStay,
			NICUDurationDays:    d.NICUDays,
			HIETherapy:          d.HIETherapy,
			BrainScan:           d.BrainScan,
			DevelopmentalDelays: d.Delays,
			PreviousLawyer:      d.PriorLawyer,
			BirthState:          d.BirthState,
		},
		Assessment: domain.CaseAssessment{
			Points:   d.Points,
			Ranking:  d.Ranking,
			Eligible: eligible,
		},
		Responses:  d.Responses,
		Transcript: conv.Turns,
		CreatedAt:  time.Now(),
	}
}

func preview(text string) string {
	const maxPreview = 80
	if len(text) <= maxPreview {
		return text
	}
	// Never cut a multibyte rune in half.
	cut := maxPreview
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
