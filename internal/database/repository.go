package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a report, sighting or notification does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateNotification is returned by NotificationStore.Insert when a
// face_match notification for the same (missing person, sighting) pair is
// already stored. Callers treat it as "already notified".
var ErrDuplicateNotification = errors.New("notification already exists for this pair")

// CorpusReader provides the candidate sets scanned by a cross-reference run
type CorpusReader interface {
	// SightingCandidates returns all sightings that have a photo
	SightingCandidates(ctx context.Context) ([]CandidateRecord, error)
	// ReportCandidates returns reports that have a photo; activeOnly excludes resolved cases
	ReportCandidates(ctx context.Context, activeOnly bool) ([]CandidateRecord, error)
}

// ReportReader provides read-only access to missing-person reports
type ReportReader interface {
	// GetReport returns ErrNotFound if the report does not exist
	GetReport(ctx context.Context, id string) (*MissingPerson, error)
	// ListReports lists reports with the given status, or all reports for an empty status
	ListReports(ctx context.Context, status string) ([]MissingPerson, error)
}

// ReportWriter provides write access to missing-person reports
type ReportWriter interface {
	ReportReader

	// CreateReport stores a new report; ID and CreatedAt are filled in when empty
	CreateReport(ctx context.Context, p *MissingPerson) error
	// UpdateReportStatus changes the status, e.g. to ReportStatusResolved
	UpdateReportStatus(ctx context.Context, id, status string) error
}

// SightingReader provides read-only access to sightings
type SightingReader interface {
	// GetSighting returns ErrNotFound if the sighting does not exist
	GetSighting(ctx context.Context, id string) (*Sighting, error)
	// ListSightings returns all sightings, newest first
	ListSightings(ctx context.Context) ([]Sighting, error)
}

// SightingWriter provides write access to sightings
type SightingWriter interface {
	SightingReader

	// CreateSighting stores a new sighting; ID and CreatedAt are filled in when empty
	CreateSighting(ctx context.Context, s *Sighting) error
}

// NotificationStore persists notifications. Records are only ever added;
// the read flag is the single mutable field.
type NotificationStore interface {
	// Exists checks whether a notification of the given type exists for the pair
	Exists(ctx context.Context, notificationType, missingPersonID, sightingID string) (bool, error)
	// Insert stores n and fills ID and CreatedAt. For face_match notifications the
	// (type, missing person, sighting) triple is unique; a conflict returns ErrDuplicateNotification.
	Insert(ctx context.Context, n *NotificationRecord) error
	// ListByRecipient returns the newest notifications for a recipient
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]NotificationRecord, error)
	// MarkRead sets the read flag; returns ErrNotFound for unknown IDs
	MarkRead(ctx context.Context, id int64) error
}
