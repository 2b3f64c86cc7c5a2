package intake

import "github.com/caseline/messenger-intake/internal/domain"

// Point adjustments per medical factor. Every draft starts at a baseline
// of 50 and the total never drops below zero.

func updatePoints(d *domain.CaseDraft, delta int) {
	d.Points += delta
	if d.Points < 0 {
		d.Points = 0
	}
	d.Ranking = rankingFor(d.Points)
}

func rankingFor(points int) domain.CaseRanking {
	switch {
	case points >= 80:
		return domain.RankingVeryHigh
	case points >= 65:
		return domain.RankingHigh
	case points >= 40:
		return domain.RankingNormal
	default:
		return domain.RankingLow
	}
}

func applyPregnancyPoints(d *domain.CaseDraft, weeks *int, difficultDelivery bool) {
	if weeks != nil {
		w := *weeks
		d.WeeksPregnant = &w

		switch {
		case w < 30:
			updatePoints(d, 15)
		case w < 36:
			updatePoints(d, 10)
		default:
			updatePoints(d, -5)
		}
	}

	d.DifficultDelivery = &difficultDelivery
	if difficultDelivery {
		updatePoints(d, 15)
	} else {
		updatePoints(d, -10)
	}
}

func applyNICUStayPoints(d *domain.CaseDraft, stayed bool) {
	if !stayed {
		updatePoints(d, -15)
		return
	}
	updatePoints(d, 10)
}

func applyNICUDurationPoints(d *domain.CaseDraft, days int) {
	if days <= 0 {
		return
	}
	switch {
	case days > 30:
		updatePoints(d, 15)
	case days > 14:
		updatePoints(d, 10)
	case days > 7:
		updatePoints(d, 5)
	default:
		updatePoints(d, 3)
	}
}

func applyHIEPoints(d *domain.CaseDraft, received bool) {
	if received {
		updatePoints(d, 40)
	}
}

func applyBrainScanPoints(d *domain.CaseDraft, scanned bool) {
	if scanned {
		updatePoints(d, 20)
	} else {
		updatePoints(d, -10)
	}
}

func applyMilestonesPoints(d *domain.CaseDraft, hasDelays bool) {
	if hasDelays {
		updatePoints(d, 15)
	} else {
		updatePoints(d, -5)
	}
}

func applyLawyerPoints(d *domain.CaseDraft, consulted bool) {
	if consulted {
		updatePoints(d, -5)
	} else {
		updatePoints(d, 5)
	}
}
