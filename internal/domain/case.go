package domain

import "time"

// Phase enumerates the intake questions in conversation order.
type Phase string

const (
	PhaseAge          Phase = "age"
	PhasePregnancy    Phase = "pregnancy"
	PhaseNICU         Phase = "nicu"
	PhaseNICUDuration Phase = "nicu_duration"
	PhaseHIETherapy   Phase = "hie_therapy"
	PhaseBrainScan    Phase = "brain_scan"
	PhaseMilestones   Phase = "milestones"
	PhaseLawyer       Phase = "lawyer"
	PhaseState        Phase = "state"
	PhaseComplete     Phase = "complete"
)

// PhaseOrder is the canonical question sequence (excluding the terminal phase).
var PhaseOrder = []Phase{
	PhaseAge,
	PhasePregnancy,
	PhaseNICU,
	PhaseNICUDuration,
	PhaseHIETherapy,
	PhaseBrainScan,
	PhaseMilestones,
	PhaseLawyer,
	PhaseState,
}

// CaseRanking buckets a draft's point total.
type CaseRanking string

const (
	RankingLow      CaseRanking = "low"
	RankingNormal   CaseRanking = "normal"
	RankingHigh     CaseRanking = "high"
	RankingVeryHigh CaseRanking = "very_high"
)

// ImpliedAnswers tracks answers volunteered ahead of their question, so the
// intake flow can skip questions the user already answered.
type ImpliedAnswers struct {
	NICUStay    *bool   `json:"nicu_stay,omitempty"`
	NICUDays    *int    `json:"nicu_days,omitempty"`
	HIETherapy  *bool   `json:"hie_therapy,omitempty"`
	BrainScan   *bool   `json:"brain_scan,omitempty"`
	Delays      *bool   `json:"delays,omitempty"`
	PriorLawyer *bool   `json:"prior_lawyer,omitempty"`
	BirthState  *string `json:"birth_state,omitempty"`
}

// CaseDraft is the partial structured record accumulated across turns.
// Points start at the baseline of 50 and never go negative.
type CaseDraft struct {
	Phase             Phase            `json:"phase"`
	Age               *float64         `json:"age,omitempty"`
	WeeksPregnant     *int             `json:"weeks_pregnant,omitempty"`
	DifficultDelivery *bool            `json:"difficult_delivery,omitempty"`
	NICUStay          *bool            `json:"nicu_stay,omitempty"`
	NICUDays          *int             `json:"nicu_days,omitempty"`
	HIETherapy        *bool            `json:"hie_therapy,omitempty"`
	BrainScan         *bool            `json:"brain_scan,omitempty"`
	Delays            *bool            `json:"delays,omitempty"`
	PriorLawyer       *bool            `json:"prior_lawyer,omitempty"`
	BirthState        *string          `json:"birth_state,omitempty"`
	Points            int              `json:"points"`
	Ranking           CaseRanking      `json:"ranking"`
	Completed         map[Phase]bool   `json:"completed"`
	Responses         map[Phase]string `json:"responses"`
	Implied           ImpliedAnswers   `json:"implied"`
	EmptyResponses    int              `json:"empty_responses"`
}

// NewCaseDraft initializes a draft at the age phase with the baseline score.
func NewCaseDraft() CaseDraft {
	return CaseDraft{
		Phase:     PhaseAge,
		Points:    50,
		Ranking:   RankingNormal,
		Completed: make(map[Phase]bool),
		Responses: make(map[Phase]string),
	}
}

// Clone returns a deep copy of the draft.
func (d CaseDraft) Clone() CaseDraft {
	out := d
	out.Age = clonePtr(d.Age)
	out.WeeksPregnant = clonePtr(d.WeeksPregnant)
	out.DifficultDelivery = clonePtr(d.DifficultDelivery)
	out.NICUStay = clonePtr(d.NICUStay)
	out.NICUDays = clonePtr(d.NICUDays)
	out.HIETherapy = clonePtr(d.HIETherapy)
	out.BrainScan = clonePtr(d.BrainScan)
	out.Delays = clonePtr(d.Delays)
	out.PriorLawyer = clonePtr(d.PriorLawyer)
	out.BirthState = clonePtr(d.BirthState)
	out.Implied.NICUStay = clonePtr(d.Implied.NICUStay)
	out.Implied.NICUDays = clonePtr(d.Implied.NICUDays)
	out.Implied.HIETherapy = clonePtr(d.Implied.HIETherapy)
	out.Implied.BrainScan = clonePtr(d.Implied.BrainScan)
	out.Implied.Delays = clonePtr(d.Implied.Delays)
	out.Implied.PriorLawyer = clonePtr(d.Implied.PriorLawyer)
	out.Implied.BirthState = clonePtr(d.Implied.BirthState)
	out.Completed = make(map[Phase]bool, len(d.Completed))
	for k, v := range d.Completed {
		out.Completed[k] = v
	}
	out.Responses = make(map[Phase]string, len(d.Responses))
	for k, v := range d.Responses {
		out.Responses[k] = v
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CaseSummary is the structured answer digest stored at the top of a case.
type CaseSummary struct {
	ChildAge            *float64 `json:"child_age"`
	WeeksPregnant       *int     `json:"weeks_pregnant"`
	DifficultDelivery   *bool    `json:"difficult_delivery"`
	NICUStay            *bool    `json:"nicu_stay"`
	NICUDurationDays    *int     `json:"nicu_duration_days"`
	HIETherapy          *bool    `json:"hie_therapy"`
	BrainScan           *bool    `json:"brain_scan"`
	DevelopmentalDelays *bool    `json:"developmental_delays"`
	PreviousLawyer      *bool    `json:"previous_lawyer"`
	BirthState          *string  `json:"birth_state"`
}

// CaseAssessment captures the scored outcome of an intake.
type CaseAssessment struct {
	Points   int         `json:"points"`
	Ranking  CaseRanking `json:"ranking"`
	Eligible bool        `json:"eligible"`
}

// Case is the immutable record persisted when a conversation's draft is
// complete. Corrections create a new Case, never an in-place edit.
type Case struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Summary    CaseSummary      `json:"case_summary"`
	Assessment CaseAssessment   `json:"case_assessment"`
	Responses  map[Phase]string `json:"detailed_responses"`
	Transcript []Turn           `json:"transcript"`
	CreatedAt  time.Time        `json:"created_at"`
}
