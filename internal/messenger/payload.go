package messenger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caseline/messenger-intake/internal/domain"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

// webhookPayload is the page-subscription envelope delivered by the platform.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string           `json:"id"`
		Time      int64            `json:"time"`
		Messaging []messagingEvent `json:"messaging"`
	} `json:"entry"`
}

type messagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		MID  string `json:"mid"`
		Text string `json:"text"`
	} `json:"message"`
	Postback *struct {
		MID     string `json:"mid"`
		Title   string `json:"title"`
		Payload string `json:"payload"`
	} `json:"postback"`
}

// ParseEvents unwraps a verified webhook body into normalized inbound
// messages. Events that are malformed or carry no text are skipped
// individually so one bad event never fails the batch.
func ParseEvents(body []byte) ([]domain.InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errorutil.NewValidationError("malformed webhook payload", map[string]any{"reason": err.Error()})
	}
	if payload.Object != "page" {
		return nil, errorutil.NewNotFound("page subscription", map[string]any{"object": payload.Object})
	}

	var messages []domain.InboundMessage
	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			msg, ok := normalizeEvent(event)
			if !ok {
				continue
			}
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func normalizeEvent(event messagingEvent) (domain.InboundMessage, bool) {
	senderID := strings.TrimSpace(event.Sender.ID)
	if senderID == "" {
		return domain.InboundMessage{}, false
	}

	switch {
	case event.Message != nil:
		text := strings.TrimSpace(event.Message.Text)
		if text == "" {
			// Attachment-only messages carry no text to interpret.
			return domain.InboundMessage{}, false
		}
		return domain.InboundMessage{
			SenderID:  senderID,
			MessageID: event.Message.MID,
			Kind:      domain.InboundText,
			Text:      text,
		}, true
	case event.Postback != nil:
		payload := strings.TrimSpace(event.Postback.Payload)
		if payload == "" {
			return domain.InboundMessage{}, false
		}
		mid := event.Postback.MID
		if mid == "" {
			// Postbacks have no provider mid; synthesize a stable one from
			// sender and delivery timestamp so retries still dedup.
			mid = fmt.Sprintf("pb.%s.%d", senderID, event.Timestamp)
		}
		return domain.InboundMessage{
			SenderID:  senderID,
			MessageID: mid,
			Kind:      domain.InboundPostback,
			Text:      payload,
		}, true
	default:
		return domain.InboundMessage{}, false
	}
}
