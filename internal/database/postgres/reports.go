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

const reportColumns = `id, owner_id, name, contact_phone, contact_email, last_seen_location, photo_ref, status, created_at`

// ReportRepository provides PostgreSQL-backed missing-person report storage
type ReportRepository struct {
	pool *Pool
}

// NewReportRepository creates a new PostgreSQL report repository
func NewReportRepository(pool *Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func scanReport(scanner interface{ Scan(...any) error }) (database.MissingPerson, error) {
	var p database.MissingPerson
	err := scanner.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.ContactPhone,
		&p.ContactEmail,
		&p.LastSeenLocation,
		&p.PhotoRef,
		&p.Status,
		&p.CreatedAt,
	)
	return p, err
}

// GetReport retrieves a report by ID
func (r *ReportRepository) GetReport(ctx context.Context, id string) (*database.MissingPerson, error) {
	query := `SELECT ` + reportColumns + ` FROM missing_persons WHERE id = $1`

	p, err := scanReport(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	return &p, nil
}

// ListReports lists reports with the given status (all when empty), newest first
func (r *ReportRepository) ListReports(ctx context.Context, status string) ([]database.MissingPerson, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM missing_persons
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at DESC, id
	`

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []database.MissingPerson
	for rows.Next() {
		p, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

// CreateReport inserts a report, generating its ID when empty
func (r *ReportRepository) CreateReport(ctx context.Context, p *database.MissingPerson) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = database.ReportStatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO missing_persons (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.OwnerID, p.Name, p.ContactPhone, p.ContactEmail,
		p.LastSeenLocation, p.PhotoRef, p.Status, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// UpdateReportStatus changes the status of a report
func (r *ReportRepository) UpdateReportStatus(ctx context.Context, id, status string) error {
	result, err := r.pool.Exec(ctx, `UPDATE missing_persons SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("report %s: %w", id, database.ErrNotFound)
	}
	return nil
}
