package intake

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/caseline/messenger-intake/internal/domain"
)

// Users often volunteer answers ahead of their question ("34 weeks, 3 weeks
// in the NICU with cooling"). The scan below records those so later phases
// can be skipped instead of re-asked.

var (
	nicuIndicators = []string{"nicu", "intensive care", "incubator", "special care"}
	nicuNegative   = []string{
		"didn't go", "did not go", "no nicu", "wasn't in", "never went",
		"avoided", "no need", "went home", "straight home",
	}

	impliedCoolingIndicators = []string{"cooling", "hypothermia", "hie therapy", "head cool", "cooling blanket"}
	impliedCoolingNegative   = []string{"no cooling", "didn't receive cooling", "without cooling", "no hypothermia"}

	impliedScanIndicators = []string{"mri", "brain scan", "head scan", "cat scan", "ct scan", "ultrasound"}
	impliedScanNegative   = []string{"no scan", "didn't have scan", "no mri", "without scan", "no scans"}

	delayIndicators = []string{
		"delay", "behind", "missing milestone", "developmental", "not meeting",
		"therapy", "pt", "ot", "speech", "physical therapy",
	}
	delayNormal = []string{
		"no delay", "on track", "normal development", "meeting milestone",
		"developing normally", "no major delays", "everything seems normal",
	}

	lawyerIndicators = []string{"lawyer", "attorney", "legal", "law firm", "lawsuit", "case review", "litigation"}
	lawyerNegative   = []string{"no lawyer", "haven't seen", "didn't consult", "not yet", "looking for"}

	impliedNICUDurationRe = regexp.MustCompile(`(?:spent|stayed|was in)(?:\s+\w+)?\s+(\d+)\s+(days?|weeks?|months?)\s+(?:in|at)\s+(?:the\s+)?(?:nicu|intensive care)`)
)

func (e *Engine) scanImpliedAnswers(ctx context.Context, d *domain.CaseDraft, text string) {
	lower := strings.ToLower(text)

	if containsAny(lower, nicuIndicators) {
		v := !containsAny(lower, nicuNegative)
		d.Implied.NICUStay = &v
	}

	if m := impliedNICUDurationRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			days := n
			switch {
			case strings.HasPrefix(m[2], "week"):
				days = n * 7
			case strings.HasPrefix(m[2], "month"):
				days = n * 30
			}
			d.Implied.NICUDays = &days
		}
	}

	if containsAny(lower, impliedCoolingIndicators) {
		v := !containsAny(lower, impliedCoolingNegative)
		d.Implied.HIETherapy = &v
	}

	if containsAny(lower, impliedScanIndicators) {
		v := !containsAny(lower, impliedScanNegative)
		d.Implied.BrainScan = &v
	}

	if containsAny(lower, delayIndicators) {
		v := !containsAny(lower, delayNormal)
		d.Implied.Delays = &v
	}

	if containsAny(lower, lawyerIndicators) {
		v := !containsAny(lower, lawyerNegative)
		d.Implied.PriorLawyer = &v
	}

	// State extraction is best effort here; failures just mean the state
	// question gets asked normally.
	if state, err := e.nlu.InterpretState(ctx, text); err == nil && state != "" {
		d.Implied.BirthState = &state
	}
}

func (e *Engine) consumeImpliedNICU(d *domain.CaseDraft) {
	stayed := *d.Implied.NICUStay
	d.NICUStay = &stayed
	d.Completed[domain.PhaseNICU] = true
	applyNICUStayPoints(d, stayed)

	if !stayed {
		d.Phase = e.afterNoNICU(d)
		return
	}

	if d.Implied.NICUDays != nil {
		days := *d.Implied.NICUDays
		d.NICUDays = &days
		d.Completed[domain.PhaseNICUDuration] = true
		applyNICUDurationPoints(d, days)

		if weeksOf(d) >= 36 {
			d.Phase = domain.PhaseHIETherapy
		} else {
			d.Phase = domain.PhaseBrainScan
		}
		return
	}

	d.Phase = domain.PhaseNICUDuration
}

func (e *Engine) consumeImpliedHIE(d *domain.CaseDraft) {
	received := *d.Implied.HIETherapy
	d.HIETherapy = &received
	d.Completed[domain.PhaseHIETherapy] = true
	applyHIEPoints(d, received)

	if d.NICUStay == nil || !*d.NICUStay {
		d.Phase = domain.PhaseMilestones
	} else {
		d.Phase = domain.PhaseBrainScan
	}
}

func (e *Engine) consumeImpliedBrainScan(d *domain.CaseDraft) {
	scanned := *d.Implied.BrainScan
	d.BrainScan = &scanned
	d.Completed[domain.PhaseBrainScan] = true
	applyBrainScanPoints(d, scanned)
	d.Phase = domain.PhaseMilestones
}

func (e *Engine) consumeImpliedMilestones(d *domain.CaseDraft) {
	delays := *d.Implied.Delays
	d.Delays = &delays
	d.Completed[domain.PhaseMilestones] = true
	applyMilestonesPoints(d, delays)
	d.Phase = domain.PhaseLawyer
}

func (e *Engine) consumeImpliedLawyer(d *domain.CaseDraft) stepResult {
	consulted := *d.Implied.PriorLawyer
	d.PriorLawyer = &consulted
	d.Completed[domain.PhaseLawyer] = true
	applyLawyerPoints(d, consulted)

	if consulted {
		return stepResult{farewell: true}
	}

	if d.Implied.BirthState != nil {
		return e.consumeImpliedState(d)
	}

	d.Phase = domain.PhaseState
	return stepResult{}
}

func (e *Engine) consumeImpliedState(d *domain.CaseDraft) stepResult {
	state := *d.Implied.BirthState
	d.BirthState = &state
	d.Completed[domain.PhaseState] = true
	return e.finishWithState(d)
}
