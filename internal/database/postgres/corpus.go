package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/lookout/internal/database"
)

// CorpusRepository reads the candidate sets scanned by cross-reference runs
type CorpusRepository struct {
	pool *Pool
}

// NewCorpusRepository creates a new PostgreSQL corpus reader
func NewCorpusRepository(pool *Pool) *CorpusRepository {
	return &CorpusRepository{pool: pool}
}

// SightingCandidates returns every sighting that has a photo
func (r *CorpusRepository) SightingCandidates(ctx context.Context) ([]database.CandidateRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sightingColumns+`
		FROM sightings
		WHERE photo_ref <> ''
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query sighting candidates: %w", err)
	}
	defer rows.Close()

	var candidates []database.CandidateRecord
	for rows.Next() {
		s, err := scanSighting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sighting candidate: %w", err)
		}
		candidates = append(candidates, s.Candidate())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sighting candidates: %w", err)
	}
	return candidates, nil
}

// ReportCandidates returns reports that have a photo, optionally only active ones
func (r *CorpusRepository) ReportCandidates(ctx context.Context, activeOnly bool) ([]database.CandidateRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM missing_persons
		WHERE photo_ref <> '' AND (NOT $1::boolean OR status = $2)
		ORDER BY created_at DESC, id
	`, activeOnly, database.ReportStatusActive)
	if err != nil {
		return nil, fmt.Errorf("query report candidates: %w", err)
	}
	defer rows.Close()

	var candidates []database.CandidateRecord
	for rows.Next() {
		p, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report candidate: %w", err)
		}
		candidates = append(candidates, p.Candidate())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report candidates: %w", err)
	}
	return candidates, nil
}
