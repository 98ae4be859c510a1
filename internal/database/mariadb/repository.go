package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/lookout/internal/database"
)

const (
	reportColumns   = `id, owner_id, name, contact_phone, contact_email, last_seen_location, photo_ref, status, created_at`
	sightingColumns = `id, reporter_id, COALESCE(missing_person_id, ''), location, photo_ref, created_at`
)

// Repository implements the report, sighting, corpus and notification stores on MariaDB
type Repository struct {
	pool *Pool
}

// NewRepository creates a new MariaDB repository
func NewRepository(pool *Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface{ Scan(...any) error }

func scanReport(s rowScanner) (database.MissingPerson, error) {
	var p database.MissingPerson
	err := s.Scan(&p.ID, &p.OwnerID, &p.Name, &p.ContactPhone, &p.ContactEmail,
		&p.LastSeenLocation, &p.PhotoRef, &p.Status, &p.CreatedAt)
	return p, err
}

func scanSighting(s rowScanner) (database.Sighting, error) {
	var v database.Sighting
	err := s.Scan(&v.ID, &v.ReporterID, &v.MissingPersonID, &v.Location, &v.PhotoRef, &v.CreatedAt)
	return v, err
}

func (r *Repository) queryReports(ctx context.Context, query string, args ...any) ([]database.MissingPerson, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
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

func (r *Repository) querySightings(ctx context.Context, query string, args ...any) ([]database.Sighting, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
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

// GetReport retrieves a report by ID
func (r *Repository) GetReport(ctx context.Context, id string) (*database.MissingPerson, error) {
	p, err := scanReport(r.pool.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM missing_persons WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	return &p, nil
}

// ListReports lists reports with the given status (all when empty), newest first
func (r *Repository) ListReports(ctx context.Context, status string) ([]database.MissingPerson, error) {
	return r.queryReports(ctx, `
		SELECT `+reportColumns+`
		FROM missing_persons
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id
	`, status, status)
}

// CreateReport inserts a report, generating its ID when empty
func (r *Repository) CreateReport(ctx context.Context, p *database.MissingPerson) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = database.ReportStatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO missing_persons (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.OwnerID, p.Name, p.ContactPhone, p.ContactEmail,
		p.LastSeenLocation, p.PhotoRef, p.Status, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// UpdateReportStatus changes the status of a report
func (r *Repository) UpdateReportStatus(ctx context.Context, id, status string) error {
	// RowsAffected is 0 when the value is unchanged, so check existence first.
	if _, err := r.GetReport(ctx, id); err != nil {
		return err
	}
	if _, err := r.pool.db.ExecContext(ctx, `UPDATE missing_persons SET status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return nil
}

// GetSighting retrieves a sighting by ID
func (r *Repository) GetSighting(ctx context.Context, id string) (*database.Sighting, error) {
	s, err := scanSighting(r.pool.db.QueryRowContext(ctx, `SELECT `+sightingColumns+` FROM sightings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sighting %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query sighting: %w", err)
	}
	return &s, nil
}

// ListSightings returns all sightings, newest first
func (r *Repository) ListSightings(ctx context.Context) ([]database.Sighting, error) {
	return r.querySightings(ctx, `SELECT `+sightingColumns+` FROM sightings ORDER BY created_at DESC, id`)
}

// CreateSighting inserts a sighting, generating its ID when empty
func (r *Repository) CreateSighting(ctx context.Context, s *database.Sighting) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO sightings (id, reporter_id, missing_person_id, location, photo_ref, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?)
	`, s.ID, s.ReporterID, s.MissingPersonID, s.Location, s.PhotoRef, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sighting: %w", err)
	}
	return nil
}

// SightingCandidates returns every sighting that has a photo
func (r *Repository) SightingCandidates(ctx context.Context) ([]database.CandidateRecord, error) {
	sightings, err := r.querySightings(ctx, `
		SELECT `+sightingColumns+`
		FROM sightings
		WHERE photo_ref <> ''
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	candidates := make([]database.CandidateRecord, 0, len(sightings))
	for i := range sightings {
		candidates = append(candidates, sightings[i].Candidate())
	}
	return candidates, nil
}

// ReportCandidates returns reports that have a photo, optionally only active ones
func (r *Repository) ReportCandidates(ctx context.Context, activeOnly bool) ([]database.CandidateRecord, error) {
	reports, err := r.queryReports(ctx, `
		SELECT `+reportColumns+`
		FROM missing_persons
		WHERE photo_ref <> '' AND (NOT ? OR status = ?)
		ORDER BY created_at DESC, id
	`, activeOnly, database.ReportStatusActive)
	if err != nil {
		return nil, err
	}
	candidates := make([]database.CandidateRecord, 0, len(reports))
	for i := range reports {
		candidates = append(candidates, reports[i].Candidate())
	}
	return candidates, nil
}

// Exists checks whether a notification of the given type exists for the pair
func (r *Repository) Exists(ctx context.Context, notificationType, missingPersonID, sightingID string) (bool, error) {
	var exists bool
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE type = ? AND missing_person_id = ? AND sighting_id = ?
		)
	`, notificationType, missingPersonID, sightingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification exists: %w", err)
	}
	return exists, nil
}

// Insert stores a notification. A duplicate face_match pair violates the
// unique key and returns database.ErrDuplicateNotification.
func (r *Repository) Insert(ctx context.Context, n *database.NotificationRecord) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO notifications (
			recipient_id, recipient_phone, recipient_email, title, message,
			type, missing_person_id, sighting_id, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
	`, n.RecipientID, n.RecipientPhone, n.RecipientEmail, n.Title, n.Message,
		n.Type, n.MissingPersonID, n.SightingID, n.CreatedAt)
	if isDuplicateEntry(err) {
		return database.ErrDuplicateNotification
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// ListByRecipient returns the newest notifications for a recipient
func (r *Repository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]database.NotificationRecord, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, recipient_id, recipient_phone, recipient_email, title, message, type,
		       COALESCE(missing_person_id, ''), COALESCE(sighting_id, ''), is_read, created_at
		FROM notifications
		WHERE recipient_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var result []database.NotificationRecord
	for rows.Next() {
		var n database.NotificationRecord
		if err := rows.Scan(
			&n.ID, &n.RecipientID, &n.RecipientPhone, &n.RecipientEmail, &n.Title, &n.Message, &n.Type,
			&n.MissingPersonID, &n.SightingID, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return result, nil
}

// MarkRead sets the read flag of a notification
func (r *Repository) MarkRead(ctx context.Context, id int64) error {
	var exists bool
	err := r.pool.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM notifications WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check notification exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("notification %d: %w", id, database.ErrNotFound)
	}
	if _, err := r.pool.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
