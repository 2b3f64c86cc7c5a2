package domain

// InboundKind distinguishes Messenger event flavors.
type InboundKind string

const (
	InboundText     InboundKind = "text"
	InboundPostback InboundKind = "postback"
)

// InboundMessage is a normalized Messenger event: one sender, one utterance,
// one provider-assigned id used for idempotent dedup.
type InboundMessage struct {
	SenderID  string
	MessageID string
	Kind      InboundKind
	Text      string
}
