package repository

import (
	"context"

	"github.com/caseline/messenger-intake/internal/domain"
)

// CaseStatistics aggregates stored cases for reporting.
type CaseStatistics struct {
	Total         int                        `json:"total_cases"`
	ByRanking     map[domain.CaseRanking]int `json:"by_ranking"`
	ByState       map[string]int             `json:"by_state"`
	AveragePoints float64                    `json:"average_points"`
}

// CaseRepository encapsulates case persistence. Cases are write-once;
// there is no update operation.
type CaseRepository interface {
	Save(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	List(ctx context.Context, limit, offset int) ([]domain.Case, error)
	Statistics(ctx context.Context) (CaseStatistics, error)
}

func statisticsOf(cases []domain.Case) CaseStatistics {
	stats := CaseStatistics{
		ByRanking: map[domain.CaseRanking]int{},
		ByState:   map[string]int{},
	}
	totalPoints := 0
	for _, c := range cases {
		stats.Total++
		stats.ByRanking[c.Assessment.Ranking]++
		if c.Summary.BirthState != nil {
			stats.ByState[*c.Summary.BirthState]++
		}
		totalPoints += c.Assessment.Points
	}
	if stats.Total > 0 {
		stats.AveragePoints = float64(totalPoints) / float64(stats.Total)
	}
	return stats
}
