package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/domain"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

func newFileRepo(t *testing.T) (CaseRepository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := NewFileCaseRepository(dir, zap.NewNop())
	require.NoError(t, err)
	return repo, dir
}

func sampleCase(id, state string, points int, createdAt time.Time) *domain.Case {
	ranking := domain.RankingNormal
	if points >= 80 {
		ranking = domain.RankingVeryHigh
	}
	return &domain.Case{
		ID:     id,
		UserID: "user-" + id,
		Summary: domain.CaseSummary{
			BirthState: &state,
		},
		Assessment: domain.CaseAssessment{
			Points:   points,
			Ranking:  ranking,
			Eligible: true,
		},
		Responses: map[domain.Phase]string{domain.PhaseAge: "4"},
		Transcript: []domain.Turn{
			{Role: domain.RoleUser, Text: "hi", Timestamp: createdAt},
		},
		CreatedAt: createdAt,
	}
}

func TestFileRepositorySave(t *testing.T) {
	repo, dir := newFileRepo(t)
	created := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)

	require.NoError(t, repo.Save(context.Background(), sampleCase("abc", "Texas", 90, created)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "case_20250601_123045_abc.json")
	assert.Contains(t, names, "all_cases.json")
}

func TestFileRepositoryGetByID(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, sampleCase("abc", "Texas", 90, created)))

	c, err := repo.GetByID(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "user-abc", c.UserID)
	assert.Equal(t, 90, c.Assessment.Points)

	_, err = repo.GetByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeNotFound))
}

func TestFileRepositoryListNewestFirst(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, sampleCase("old", "Texas", 50, base)))
	require.NoError(t, repo.Save(ctx, sampleCase("mid", "Ohio", 60, base.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, sampleCase("new", "Texas", 90, base.Add(2*time.Hour))))

	cases, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "new", cases[0].ID)
	assert.Equal(t, "mid", cases[1].ID)

	cases, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "old", cases[0].ID)

	cases, err = repo.List(ctx, 10, 99)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestFileRepositoryStatistics(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, sampleCase("a", "Texas", 90, base)))
	require.NoError(t, repo.Save(ctx, sampleCase("b", "Texas", 50, base.Add(time.Minute))))
	require.NoError(t, repo.Save(ctx, sampleCase("c", "Ohio", 70, base.Add(2*time.Minute))))

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByState["Texas"])
	assert.Equal(t, 1, stats.ByState["Ohio"])
	assert.Equal(t, 1, stats.ByRanking[domain.RankingVeryHigh])
	assert.InDelta(t, 70.0, stats.AveragePoints, 0.001)
}

func TestFileRepositoryEmptyDirectory(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	cases, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, cases)

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestFileRepositorySurvivesCorruptAggregate(t *testing.T) {
	repo, dir := newFileRepo(t)
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "all_cases.json"), []byte("{corrupt"), 0o644))

	// Save still succeeds: the per-case file is the source of truth and the
	// aggregate gets rebuilt from this save onward.
	require.NoError(t, repo.Save(ctx, sampleCase("abc", "Texas", 90, created)))

	cases, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "abc", cases[0].ID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var caseFiles int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "case_") {
			caseFiles++
		}
	}
	assert.Equal(t, 1, caseFiles)
}
