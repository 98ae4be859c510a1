package database

import (
	"time"
)

// Report statuses. Only active reports are scanned when a sighting arrives.
const (
	ReportStatusActive   = "active"
	ReportStatusResolved = "resolved"
)

// CandidateKind tells which corpus a candidate record comes from.
type CandidateKind string

// Candidate kinds.
const (
	KindReport   CandidateKind = "report"
	KindSighting CandidateKind = "sighting"
)

// MissingPerson is a missing-person report
type MissingPerson struct {
	ID               string
	OwnerID          string // user who filed the report and receives notifications
	Name             string
	ContactPhone     string
	ContactEmail     string
	LastSeenLocation string
	PhotoRef         string // empty if no photo was attached
	Status           string
	CreatedAt        time.Time
}

// Candidate projects the report into the shape the matching engine consumes.
func (p *MissingPerson) Candidate() CandidateRecord {
	return CandidateRecord{
		ID:           p.ID,
		Kind:         KindReport,
		PhotoRef:     p.PhotoRef,
		OwnerID:      p.OwnerID,
		ContactPhone: p.ContactPhone,
		ContactEmail: p.ContactEmail,
		Name:         p.Name,
		Location:     p.LastSeenLocation,
	}
}

// Sighting is a report that someone was seen somewhere
type Sighting struct {
	ID              string
	ReporterID      string
	MissingPersonID string // optional: the report this sighting was filed against
	Location        string
	PhotoRef        string
	CreatedAt       time.Time
}

// Candidate projects the sighting into the shape the matching engine consumes.
func (s *Sighting) Candidate() CandidateRecord {
	return CandidateRecord{
		ID:       s.ID,
		Kind:     KindSighting,
		PhotoRef: s.PhotoRef,
		OwnerID:  s.ReporterID,
		Location: s.Location,
	}
}

// CandidateRecord is the read-only projection of a report or sighting used by matching.
// Contact fields are only populated for reports.
type CandidateRecord struct {
	ID           string
	Kind         CandidateKind
	PhotoRef     string
	OwnerID      string
	ContactPhone string
	ContactEmail string
	Name         string
	Location     string
}

// NotificationRecord is a notification addressed to a report owner
type NotificationRecord struct {
	ID              int64
	RecipientID     string
	RecipientPhone  string
	RecipientEmail  string
	Title           string
	Message         string
	Type            string // constants.NotificationTypeFaceMatch or constants.NotificationTypeSighting
	MissingPersonID string
	SightingID      string
	Read            bool
	CreatedAt       time.Time
}
