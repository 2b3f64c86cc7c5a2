package intake

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/domain"
	"github.com/caseline/messenger-intake/internal/eligibility"
	"github.com/caseline/messenger-intake/internal/nlu"
)

// Interpreter extracts structured answers from free text.
type Interpreter interface {
	InterpretAge(ctx context.Context, text string) (*float64, error)
	InterpretPregnancyDetails(ctx context.Context, text string) (nlu.PregnancyDetails, error)
	InterpretYesNo(ctx context.Context, text, questionContext string) (bool, error)
	InterpretDuration(ctx context.Context, text string) (int, error)
	InterpretState(ctx context.Context, text string) (string, error)
}

// Result is the outcome of one intake turn: the replies to send, the
// updated draft, and whether the conversation should end.
type Result struct {
	Replies         []string
	Draft           domain.CaseDraft
	EndConversation bool
	Ineligible      bool
}

// Engine drives the question-by-question intake flow. It is stateless;
// all conversation state lives in the draft passed per call.
type Engine struct {
	nlu    Interpreter
	elig   *eligibility.Checker
	logger *zap.Logger
}

// NewEngine assembles an intake engine.
func NewEngine(interpreter Interpreter, checker *eligibility.Checker, logger *zap.Logger) *Engine {
	return &Engine{nlu: interpreter, elig: checker, logger: logger}
}

var phaseQuestions = map[domain.Phase]string{
	domain.PhaseAge:          "How old is your child with CP?",
	domain.PhasePregnancy:    "How many weeks pregnant were you when your child was born? Did your child have a difficult delivery?",
	domain.PhaseNICU:         "Did your child go to the NICU after birth?",
	domain.PhaseNICUDuration: "How long was your child in the NICU for after birth?",
	domain.PhaseHIETherapy:   "Did your child receive head cooling or HIE therapy while in the NICU?",
	domain.PhaseBrainScan:    "Did your child receive an MRI or Brain Scan while in the NICU?",
	domain.PhaseMilestones:   "Is your child missing any milestones and or having any delays?",
	domain.PhaseLawyer:       "This sounds like it definitely needs to be looked into further. Have you had your case reviewed by a lawyer yet?",
	domain.PhaseState:        "In what State was your child born?",
}

var phaseHelp = map[domain.Phase]string{
	domain.PhaseAge:          "I need to know how old your child is. You can provide the age in years, like '5 years old' or just '5'.",
	domain.PhasePregnancy:    "I'm asking about your pregnancy length (in weeks) when your child was born, and if there were any complications during delivery.",
	domain.PhaseNICU:         "NICU stands for Neonatal Intensive Care Unit. I'm asking if your child needed to stay in the NICU after birth.",
	domain.PhaseNICUDuration: "I need to know how long your child stayed in the NICU. You can answer in days, weeks, or months.",
	domain.PhaseHIETherapy:   "HIE therapy (also called head cooling) is a treatment used for babies who experienced oxygen deprivation during birth. I'm asking if your child received this treatment.",
	domain.PhaseBrainScan:    "I'm asking if your child had a brain imaging test (MRI or other scan) while in the NICU.",
	domain.PhaseMilestones:   "Developmental milestones are skills like rolling over, sitting up, walking, or talking that children typically develop at certain ages. I'm asking if your child is delayed in any of these areas.",
	domain.PhaseLawyer:       "I'm asking if you've already consulted with a lawyer about your child's case.",
	domain.PhaseState:        "I need to know which US state your child was born in. This helps determine eligibility based on state-specific laws.",
}

const (
	welcomeMessage = "Hello! I'm here to help you determine if you may have a valid cerebral palsy case. To get started, could you please tell me your child's current age?"

	nudgeMessage = "I notice you haven't responded. Would you like to continue with the consultation? Please type 'yes' to continue or 'quit' to end our conversation."

	farewellMessage = "We're glad to hear you're already getting your case reviewed and getting the help you need. We wish you and your family the best."

	ageUnparseableMessage = "I couldn't understand the age provided. Please provide the age in years, like '5' or '5 years old'."

	sympathyMessage = "I'm sorry to hear that your delivery was difficult."
)

// WelcomeMessage is the first assistant turn of every new conversation.
func (e *Engine) WelcomeMessage() string {
	return welcomeMessage
}

// Question returns the prompt for a phase.
func Question(phase domain.Phase) string {
	return phaseQuestions[phase]
}

// stepResult is the outcome of a single phase processor.
type stepResult struct {
	errorMsg         string
	sympathy         string
	ineligibleReason string
	farewell         bool
}

// GenerateReply advances the draft one turn for the given user message.
// An error means the upstream interpreter was unavailable and no reply
// should be delivered; the draft is unchanged in that case.
func (e *Engine) GenerateReply(ctx context.Context, draft domain.CaseDraft, text string) (Result, error) {
	d := draft.Clone()
	text = strings.TrimSpace(text)

	if text == "" {
		d.EmptyResponses++
		reply := e.nextQuestion(&d)
		if d.EmptyResponses >= 3 {
			reply = nudgeMessage
		}
		return Result{Replies: []string{reply}, Draft: d}, nil
	}
	d.EmptyResponses = 0

	if d.Phase == domain.PhaseComplete {
		return Result{Replies: []string{e.completionMessage(&d)}, Draft: d}, nil
	}

	if isBackCommand(text) {
		return e.handleBack(d), nil
	}
	if isHelpCommand(text) {
		return Result{Replies: []string{e.helpMessage(&d)}, Draft: d}, nil
	}

	e.scanImpliedAnswers(ctx, &d, text)

	step, err := e.processPhase(ctx, &d, text)
	if err != nil {
		return Result{}, err
	}

	switch {
	case step.errorMsg != "":
		return Result{Replies: []string{step.errorMsg}, Draft: d}, nil
	case step.ineligibleReason != "":
		return Result{
			Replies:         []string{step.ineligibleReason, agentHandoffMessage()},
			Draft:           d,
			EndConversation: true,
			Ineligible:      true,
		}, nil
	case step.farewell:
		return Result{Replies: []string{farewellMessage}, Draft: d, EndConversation: true}, nil
	}

	reply := e.nextQuestion(&d)
	if step.sympathy != "" {
		reply = step.sympathy + " " + reply
	}
	return Result{Replies: []string{reply}, Draft: d}, nil
}

func (e *Engine) processPhase(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	switch d.Phase {
	case domain.PhaseAge:
		return e.processAge(ctx, d, text)
	case domain.PhasePregnancy:
		return e.processPregnancy(ctx, d, text)
	case domain.PhaseNICU:
		return e.processNICU(ctx, d, text)
	case domain.PhaseNICUDuration:
		return e.processNICUDuration(ctx, d, text)
	case domain.PhaseHIETherapy:
		return e.processHIETherapy(ctx, d, text)
	case domain.PhaseBrainScan:
		return e.processBrainScan(ctx, d, text)
	case domain.PhaseMilestones:
		return e.processMilestones(ctx, d, text)
	case domain.PhaseLawyer:
		return e.processLawyer(ctx, d, text)
	case domain.PhaseState:
		return e.processState(ctx, d, text)
	default:
		return stepResult{}, nil
	}
}

func (e *Engine) processAge(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	age, err := e.nlu.InterpretAge(ctx, text)
	if err != nil {
		return stepResult{}, err
	}
	if age == nil {
		return stepResult{errorMsg: ageUnparseableMessage}, nil
	}

	normalized := eligibility.NormalizeAge(*age)
	d.Age = &normalized
	e.completePhase(d, domain.PhaseAge, text)

	if ok, reason := e.elig.CheckEligibility(d.Age, nil); !ok {
		return stepResult{ineligibleReason: reason}, nil
	}

	d.Phase = domain.PhasePregnancy
	return stepResult{}, nil
}

func (e *Engine) processPregnancy(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	details, err := e.nlu.InterpretPregnancyDetails(ctx, text)
	if err != nil {
		return stepResult{}, err
	}
	e.completePhase(d, domain.PhasePregnancy, text)

	applyPregnancyPoints(d, details.Weeks, details.DifficultDelivery)

	var step stepResult
	if details.DifficultDelivery {
		step.sympathy = sympathyMessage
	}

	if d.Implied.NICUStay != nil {
		e.consumeImpliedNICU(d)
		return step, nil
	}

	d.Phase = domain.PhaseNICU
	return step, nil
}

func (e *Engine) processNICU(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	stayed, err := e.nlu.InterpretYesNo(ctx, text, "Did the child go to NICU after birth")
	if err != nil {
		return stepResult{}, err
	}
	d.NICUStay = &stayed
	e.completePhase(d, domain.PhaseNICU, text)
	applyNICUStayPoints(d, stayed)

	if !stayed {
		d.Phase = e.afterNoNICU(d)
	} else {
		d.Phase = domain.PhaseNICUDuration
	}
	return stepResult{}, nil
}

func (e *Engine) processNICUDuration(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	days, err := e.nlu.InterpretDuration(ctx, text)
	if err != nil {
		return stepResult{}, err
	}
	d.NICUDays = &days
	e.completePhase(d, domain.PhaseNICUDuration, text)
	applyNICUDurationPoints(d, days)

	if d.Implied.HIETherapy != nil {
		e.consumeImpliedHIE(d)
		return stepResult{}, nil
	}
	if d.Implied.BrainScan != nil {
		e.consumeImpliedBrainScan(d)
		return stepResult{}, nil
	}

	// Full-term babies get the HIE question regardless of NICU stay.
	if weeksOf(d) >= 36 {
		d.Phase = domain.PhaseHIETherapy
	} else {
		d.Phase = domain.PhaseBrainScan
	}
	return stepResult{}, nil
}

func (e *Engine) processHIETherapy(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	received, err := e.nlu.InterpretYesNo(ctx, text, "Did the child receive head cooling or HIE therapy")
	if err != nil {
		return stepResult{}, err
	}
	d.HIETherapy = &received
	e.completePhase(d, domain.PhaseHIETherapy, text)
	applyHIEPoints(d, received)

	if d.Implied.BrainScan != nil {
		e.consumeImpliedBrainScan(d)
		return stepResult{}, nil
	}

	// Without a NICU stay there is no NICU scan to ask about.
	if d.NICUStay == nil || !*d.NICUStay {
		d.Phase = domain.PhaseMilestones
	} else {
		d.Phase = domain.PhaseBrainScan
	}
	return stepResult{}, nil
}

func (e *Engine) processBrainScan(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	scanned, err := e.nlu.InterpretYesNo(ctx, text, "Did the child receive an MRI or brain scan while in the NICU")
	if err != nil {
		return stepResult{}, err
	}
	d.BrainScan = &scanned
	e.completePhase(d, domain.PhaseBrainScan, text)
	applyBrainScanPoints(d, scanned)

	if d.Implied.Delays != nil {
		e.consumeImpliedMilestones(d)
		return stepResult{}, nil
	}

	d.Phase = domain.PhaseMilestones
	return stepResult{}, nil
}

func (e *Engine) processMilestones(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	var hasDelays bool
	if containsAny(strings.ToLower(text), normalDevelopmentIndicators) {
		hasDelays = false
	} else {
		var err error
		hasDelays, err = e.nlu.InterpretYesNo(ctx, text, "Is the child missing developmental milestones or has delays")
		if err != nil {
			return stepResult{}, err
		}
	}
	d.Delays = &hasDelays
	e.completePhase(d, domain.PhaseMilestones, text)
	applyMilestonesPoints(d, hasDelays)

	if d.Implied.PriorLawyer != nil {
		return e.consumeImpliedLawyer(d), nil
	}

	d.Phase = domain.PhaseLawyer
	return stepResult{}, nil
}

func (e *Engine) processLawyer(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	consulted, err := e.nlu.InterpretYesNo(ctx, text, "Has the family previously consulted a lawyer about this case")
	if err != nil {
		return stepResult{}, err
	}
	d.PriorLawyer = &consulted
	e.completePhase(d, domain.PhaseLawyer, text)
	applyLawyerPoints(d, consulted)

	if consulted {
		return stepResult{farewell: true}, nil
	}

	if d.Implied.BirthState != nil {
		return e.consumeImpliedState(d), nil
	}

	d.Phase = domain.PhaseState
	return stepResult{}, nil
}

func (e *Engine) processState(ctx context.Context, d *domain.CaseDraft, text string) (stepResult, error) {
	state, err := e.nlu.InterpretState(ctx, text)
	if err != nil || state == "" {
		// An unrecognized state is still recorded verbatim so the final
		// eligibility check can judge it.
		state = strings.TrimSpace(text)
	}
	d.BirthState = &state
	e.completePhase(d, domain.PhaseState, text)
	return e.finishWithState(d), nil
}

func (e *Engine) finishWithState(d *domain.CaseDraft) stepResult {
	if ok, reason := e.elig.CheckEligibility(d.Age, d.BirthState); !ok {
		return stepResult{ineligibleReason: reason}
	}
	d.Phase = domain.PhaseComplete
	return stepResult{}
}

func (e *Engine) completePhase(d *domain.CaseDraft, phase domain.Phase, response string) {
	d.Completed[phase] = true
	d.Responses[phase] = response
}

func (e *Engine) afterNoNICU(d *domain.CaseDraft) domain.Phase {
	if weeksOf(d) >= 36 {
		return domain.PhaseHIETherapy
	}
	return domain.PhaseMilestones
}

func weeksOf(d *domain.CaseDraft) int {
	if d.WeeksPregnant == nil {
		return 0
	}
	return *d.WeeksPregnant
}

func (e *Engine) nextQuestion(d *domain.CaseDraft) string {
	if d.Phase == domain.PhaseComplete {
		return e.completionMessage(d)
	}
	return phaseQuestions[d.Phase]
}

func (e *Engine) completionMessage(d *domain.CaseDraft) string {
	rating := ""
	if d.Ranking == domain.RankingHigh || d.Ranking == domain.RankingVeryHigh {
		rating = "Based on your answers, your case shows strong potential. "
	}
	return "Thank you! " + rating + "We'll connect you with a representative who will " +
		"ask you a few more questions and schedule a FREE case review call with one of our affiliate lawyers. " +
		"There is no fee or cost to you."
}

func (e *Engine) helpMessage(d *domain.CaseDraft) string {
	if msg, ok := phaseHelp[d.Phase]; ok {
		return msg
	}
	return "I'm gathering information about your child's case to see if we can help. Please answer the current question as best you can."
}

func (e *Engine) handleBack(d domain.CaseDraft) Result {
	idx := -1
	for i, phase := range domain.PhaseOrder {
		if phase == d.Phase {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return Result{
			Replies: []string{"We can't go back any further. Let's continue with the current question. " + e.nextQuestion(&d)},
			Draft:   d,
		}
	}

	prev := domain.PhaseOrder[idx-1]
	d.Completed[prev] = false
	d.Phase = prev
	return Result{
		Replies: []string{"Let's go back to a previous question. " + phaseQuestions[prev]},
		Draft:   d,
	}
}

func agentHandoffMessage() string {
	stamp := time.Now().Format("20060102150405")
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = letters[rand.Intn(len(letters))]
	}
	ref := fmt.Sprintf("%s_%s", stamp[len(stamp)-6:], suffix)
	return fmt.Sprintf("Thank you for providing your information. A team member will review your case (Ref: #%s) and continue this conversation shortly.", ref)
}

var normalDevelopmentIndicators = []string{
	"no delays", "meeting milestones", "on track", "normal development",
	"no major delays", "everything seems normal", "developing normally",
	"no issues", "no problems", "no concerns", "normal", "typical",
}

var backIndicators = []string{"back", "previous", "go back", "return"}

var helpIndicators = []string{"help", "confused", "don't understand", "what's this", "explain"}

func isBackCommand(text string) bool {
	return containsAny(strings.ToLower(text), backIndicators)
}

func isHelpCommand(text string) bool {
	return containsAny(strings.ToLower(text), helpIndicators)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
