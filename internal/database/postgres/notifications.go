package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/lookout/internal/database"
)

// NotificationRepository provides PostgreSQL-backed notification storage.
// Pair uniqueness for face_match rows is enforced by a partial unique index.
type NotificationRepository struct {
	pool *Pool
}

// NewNotificationRepository creates a new PostgreSQL notification repository
func NewNotificationRepository(pool *Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Exists checks whether a notification of the given type exists for the pair
func (r *NotificationRepository) Exists(ctx context.Context, notificationType, missingPersonID, sightingID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE type = $1 AND missing_person_id = $2 AND sighting_id = $3
		)
	`, notificationType, missingPersonID, sightingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification exists: %w", err)
	}
	return exists, nil
}

// Insert stores a notification. A conflicting face_match pair inserts nothing
// and returns database.ErrDuplicateNotification.
func (r *NotificationRepository) Insert(ctx context.Context, n *database.NotificationRecord) error {
	query := `
		INSERT INTO notifications (
			recipient_id, recipient_phone, recipient_email, title, message,
			type, missing_person_id, sighting_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''))
		ON CONFLICT (type, missing_person_id, sighting_id) WHERE type = 'face_match' DO NOTHING
		RETURNING id, is_read, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		n.RecipientID, n.RecipientPhone, n.RecipientEmail, n.Title, n.Message,
		n.Type, n.MissingPersonID, n.SightingID,
	).Scan(&n.ID, &n.Read, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return database.ErrDuplicateNotification
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByRecipient returns the newest notifications for a recipient
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]database.NotificationRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_id, recipient_phone, recipient_email, title, message, type,
		       COALESCE(missing_person_id, ''), COALESCE(sighting_id, ''), is_read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
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
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification %d: %w", id, database.ErrNotFound)
	}
	return nil
}
