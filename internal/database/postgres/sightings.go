package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/lookout/internal/database"
)

const sightingColumns = `id, reporter_id, COALESCE(missing_person_id, ''), location, photo_ref, created_at`

// SightingRepository provides PostgreSQL-backed sighting storage
type SightingRepository struct {
	pool *Pool
}

// NewSightingRepository creates a new PostgreSQL sighting repository
func NewSightingRepository(pool *Pool) *SightingRepository {
	return &SightingRepository{pool: pool}
}

func scanSighting(scanner interface{ Scan(...any) error }) (database.Sighting, error) {
	var s database.Sighting
	err := scanner.Scan(&s.ID, &s.ReporterID, &s.MissingPersonID, &s.Location, &s.PhotoRef, &s.CreatedAt)
	return s, err
}

// GetSighting retrieves a sighting by ID
func (r *SightingRepository) GetSighting(ctx context.Context, id string) (*database.Sighting, error) {
	s, err := scanSighting(r.pool.QueryRow(ctx, `SELECT `+sightingColumns+` FROM sightings WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sighting %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query sighting: %w", err)
	}
	return &s, nil
}

// ListSightings returns all sightings, newest first
func (r *SightingRepository) ListSightings(ctx context.Context) ([]database.Sighting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sightingColumns+` FROM sightings ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []database.Sighting
	for rows.Next() {
		s, err := scanSighting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		sightings = append(sightings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sightings: %w", err)
	}
	return sightings, nil
}

// CreateSighting inserts a sighting, generating its ID when empty
func (r *SightingRepository) CreateSighting(ctx context.Context, s *database.Sighting) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sightings (id, reporter_id, missing_person_id, location, photo_ref, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, s.ID, s.ReporterID, s.MissingPersonID, s.Location, s.PhotoRef, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sighting: %w", err)
	}
	return nil
}
