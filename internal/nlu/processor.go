package nlu

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/ai"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

// PregnancyDetails holds gestational age and delivery difficulty extracted
// from one utterance.
type PregnancyDetails struct {
	Weeks             *int `json:"weeks"`
	DifficultDelivery bool `json:"difficult_delivery"`
}

// Processor interprets free-text answers. It asks the language model first
// and falls back to pattern matching when the model is unavailable or
// returns something unusable. An upstream error is surfaced only when the
// model definitively failed and the patterns extracted nothing either.
type Processor struct {
	asker  ai.Asker
	logger *zap.Logger
}

// NewProcessor wires a Processor to a completion client.
func NewProcessor(asker ai.Asker, logger *zap.Logger) *Processor {
	return &Processor{asker: asker, logger: logger}
}

const (
	ageSystemPrompt = `Extract the child's age in years from this text. Respond with ONLY a number.
If the age includes partial years (like "5 and a half"), convert to a decimal (5.5).
If the age is given in months (like "18 months"), convert to years (1.5).
If you can't determine the age, respond with "unknown".`

	pregnancySystemPrompt = `Extract two pieces of information from this text about a child's birth:
1. The number of weeks pregnant (gestational age) when the child was born
2. Whether there was a difficult delivery

Respond with ONLY a JSON object with two keys:
- "weeks": number (or null if not mentioned)
- "difficult_delivery": boolean (true if any indication of difficult/complicated/not easy delivery)

Example response: {"weeks": 34, "difficult_delivery": true}`

	durationSystemPrompt = `Extract the duration mentioned in this text and convert it to total days.
Respond with ONLY the number of days as an integer.

For example:
- "2 weeks" -> 14
- "3 days" -> 3
- "a week and a half" -> 10
- "2 months and 5 days" -> 65
- "a couple of days" -> 2
- "a few weeks" -> 21

If you can't determine a specific duration, respond with "0".`

	stateSystemPrompt = `Extract the U.S. state mentioned in this text.
Respond with ONLY the full state name with proper capitalization.
Convert state abbreviations to full names (e.g., "NY" -> "New York").

If you can't determine a specific state, respond with "unknown".`
)

// InterpretAge extracts a child's age in years. A nil result with nil error
// means the utterance carried no recognizable age and the caller should
// re-ask.
func (p *Processor) InterpretAge(ctx context.Context, text string) (*float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	reply, askErr := p.asker.Ask(ctx, ageSystemPrompt, text, 0)
	if askErr == nil {
		normalized := strings.ReplaceAll(strings.TrimSpace(reply), ",", ".")
		if age, err := strconv.ParseFloat(normalized, 64); err == nil {
			return &age, nil
		}
	}

	if age := parseAgePatterns(text); age != nil {
		return age, nil
	}
	return nil, p.fallbackExhausted(askErr, "age")
}

// InterpretPregnancyDetails extracts gestational weeks and whether the
// delivery was difficult.
func (p *Processor) InterpretPregnancyDetails(ctx context.Context, text string) (PregnancyDetails, error) {
	if strings.TrimSpace(text) == "" {
		return PregnancyDetails{}, nil
	}

	reply, askErr := p.asker.Ask(ctx, pregnancySystemPrompt, text, 0)
	if askErr == nil {
		var details PregnancyDetails
		if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &details); err == nil {
			return details, nil
		}
	}

	details := parsePregnancyPatterns(text)
	if details.Weeks != nil || details.DifficultDelivery {
		return details, nil
	}
	return details, p.fallbackExhausted(askErr, "pregnancy")
}

// InterpretYesNo decides whether an utterance is affirmative. The question
// context enables topic-specific overrides (milestones, cooling, scans).
func (p *Processor) InterpretYesNo(ctx context.Context, text, questionContext string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	lower := strings.ToLower(strings.TrimSpace(text))

	if strings.Contains(strings.ToLower(questionContext), "developmental milestones") {
		if containsAny(lower, normalDevelopmentIndicators) {
			return false, nil
		}
	}

	if contains(quickYes, lower) {
		return true, nil
	}
	if contains(quickNo, lower) {
		return false, nil
	}

	system := `Determine if this response is affirmative (yes) or negative (no).
Context about the question: ` + questionContext + `

Respond with ONLY "yes" or "no".
When in doubt and the response indicates any affirmative element, respond with "yes".`

	reply, askErr := p.asker.Ask(ctx, system, text, 0)
	if askErr == nil {
		return strings.EqualFold(strings.TrimSpace(reply), "yes"), nil
	}

	// Patterns always yield an answer, so model failure never blocks here.
	return parseYesNoPatterns(text, questionContext), nil
}

// InterpretDuration extracts a duration in days. Zero with nil error means
// nothing recognizable was mentioned.
func (p *Processor) InterpretDuration(ctx context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	reply, askErr := p.asker.Ask(ctx, durationSystemPrompt, text, 0)
	if askErr == nil {
		if days, err := strconv.Atoi(strings.TrimSpace(reply)); err == nil {
			return days, nil
		}
	}

	if days := parseDurationPatterns(text); days > 0 {
		return days, nil
	}
	return 0, p.fallbackExhausted(askErr, "duration")
}

// InterpretState extracts a U.S. state as its full name. Empty with nil
// error means no state was recognized.
func (p *Processor) InterpretState(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	reply, askErr := p.asker.Ask(ctx, stateSystemPrompt, text, 0)
	if askErr == nil {
		trimmed := strings.TrimSpace(reply)
		if trimmed != "" && !strings.EqualFold(trimmed, "unknown") {
			return trimmed, nil
		}
	}

	if state := parseStatePatterns(text); state != "" {
		return state, nil
	}
	return "", p.fallbackExhausted(askErr, "state")
}

// fallbackExhausted turns a model failure into an upstream error once the
// local patterns have also come up empty. Without a model failure the empty
// result simply means "re-ask".
func (p *Processor) fallbackExhausted(askErr error, field string) error {
	if askErr == nil {
		return nil
	}
	if errorutil.IsCode(askErr, errorutil.CodeUpstreamUnavailable) {
		p.logger.Warn("interpretation unavailable", zap.String("field", field), zap.Error(askErr))
		return askErr
	}
	return nil
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
