package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/domain"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

const aggregateFilename = "all_cases.json"

// fileCaseRepository stores each case as its own JSON document plus a
// rolling aggregate file, mirroring the layout expected by the intake
// review tooling. It is the fallback when Postgres is not configured.
type fileCaseRepository struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

// NewFileCaseRepository creates the data directory if needed.
func NewFileCaseRepository(dir string, logger *zap.Logger) (CaseRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &fileCaseRepository{dir: dir, logger: logger}, nil
}

func (r *fileCaseRepository) Save(ctx context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	filename := fmt.Sprintf("case_%s_%s.json", c.CreatedAt.Format("20060102_150405"), c.ID)
	path := filepath.Join(r.dir, filename)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write case file: %w", err)
	}

	if err := r.appendToAggregate(c); err != nil {
		// The individual file is the source of truth; a stale aggregate
		// is repairable.
		r.logger.Warn("aggregate update failed", zap.Error(err))
	}

	r.logger.Info("case saved", zap.String("case_id", c.ID), zap.String("file", filename))
	return nil
}

func (r *fileCaseRepository) appendToAggregate(c *domain.Case) error {
	path := filepath.Join(r.dir, aggregateFilename)

	var cases []domain.Case
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cases); err != nil {
			cases = nil
		}
	}
	cases = append(cases, *c)

	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (r *fileCaseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	cases, err := r.loadAll()
	if err != nil {
		return nil, err
	}
	for i := range cases {
		if cases[i].ID == id {
			return &cases[i], nil
		}
	}
	return nil, errorutil.NewNotFound("case", map[string]any{"id": id})
}

func (r *fileCaseRepository) List(ctx context.Context, limit, offset int) ([]domain.Case, error) {
	cases, err := r.loadAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(cases, func(i, j int) bool {
		return cases[i].CreatedAt.After(cases[j].CreatedAt)
	})

	if offset >= len(cases) {
		return nil, nil
	}
	cases = cases[offset:]
	if limit > 0 && limit < len(cases) {
		cases = cases[:limit]
	}
	return cases, nil
}

func (r *fileCaseRepository) Statistics(ctx context.Context) (CaseStatistics, error) {
	cases, err := r.loadAll()
	if err != nil {
		return CaseStatistics{ByRanking: map[domain.CaseRanking]int{}, ByState: map[string]int{}}, err
	}
	return statisticsOf(cases), nil
}

func (r *fileCaseRepository) loadAll() ([]domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dir, aggregateFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read aggregate: %w", err)
	}

	var cases []domain.Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse aggregate: %w", err)
	}
	return cases, nil
}
