package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caseline/messenger-intake/internal/domain"
)

type postgresCaseRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCaseRepository instantiates the Postgres-backed repository.
func NewPostgresCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &postgresCaseRepository{pool: pool}
}

func (r *postgresCaseRepository) Save(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (id, user_id, summary, assessment, responses, transcript, points, ranking, birth_state, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	summary, err := json.Marshal(c.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	assessment, err := json.Marshal(c.Assessment)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	responses, err := json.Marshal(c.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	transcript, err := json.Marshal(c.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.UserID,
		summary,
		assessment,
		responses,
		transcript,
		c.Assessment.Points,
		c.Assessment.Ranking,
		c.Summary.BirthState,
		c.CreatedAt,
	)
	return err
}

func (r *postgresCaseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	const query = `
        SELECT id, user_id, summary, assessment, responses, transcript, created_at
        FROM cases WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *postgresCaseRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Case, error) {
	var (
		c          domain.Case
		summary    []byte
		assessment []byte
		responses  []byte
		transcript []byte
	)
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&c.ID,
		&c.UserID,
		&summary,
		&assessment,
		&responses,
		&transcript,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalCase(&c, summary, assessment, responses, transcript); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *postgresCaseRepository) List(ctx context.Context, limit, offset int) ([]domain.Case, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, user_id, summary, assessment, responses, transcript, created_at
        FROM cases ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []domain.Case
	for rows.Next() {
		var (
			c          domain.Case
			summary    []byte
			assessment []byte
			responses  []byte
			transcript []byte
		)
		if err := rows.Scan(&c.ID, &c.UserID, &summary, &assessment, &responses, &transcript, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalCase(&c, summary, assessment, responses, transcript); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (r *postgresCaseRepository) Statistics(ctx context.Context) (CaseStatistics, error) {
	stats := CaseStatistics{
		ByRanking: map[domain.CaseRanking]int{},
		ByState:   map[string]int{},
	}

	const totalsQuery = `SELECT COUNT(*), COALESCE(AVG(points), 0) FROM cases`
	if err := r.pool.QueryRow(ctx, totalsQuery).Scan(&stats.Total, &stats.AveragePoints); err != nil {
		return stats, err
	}

	const rankingQuery = `SELECT ranking, COUNT(*) FROM cases GROUP BY ranking`
	rows, err := r.pool.Query(ctx, rankingQuery)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var ranking domain.CaseRanking
		var count int
		if err := rows.Scan(&ranking, &count); err != nil {
			return stats, err
		}
		stats.ByRanking[ranking] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	const stateQuery = `SELECT birth_state, COUNT(*) FROM cases WHERE birth_state IS NOT NULL GROUP BY birth_state`
	stateRows, err := r.pool.Query(ctx, stateQuery)
	if err != nil {
		return stats, err
	}
	defer stateRows.Close()
	for stateRows.Next() {
		var state string
		var count int
		if err := stateRows.Scan(&state, &count); err != nil {
			return stats, err
		}
		stats.ByState[state] = count
	}
	return stats, stateRows.Err()
}

func unmarshalCase(c *domain.Case, summary, assessment, responses, transcript []byte) error {
	if err := json.Unmarshal(summary, &c.Summary); err != nil {
		return fmt.Errorf("unmarshal summary: %w", err)
	}
	if err := json.Unmarshal(assessment, &c.Assessment); err != nil {
		return fmt.Errorf("unmarshal assessment: %w", err)
	}
	if err := json.Unmarshal(responses, &c.Responses); err != nil {
		return fmt.Errorf("unmarshal responses: %w", err)
	}
	if err := json.Unmarshal(transcript, &c.Transcript); err != nil {
		return fmt.Errorf("unmarshal transcript: %w", err)
	}
	return nil
}
