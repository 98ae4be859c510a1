// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/kozaktomas/lookout/internal/database"
)

// MockReportWriter is a mock implementation of database.ReportWriter
type MockReportWriter struct {
	mu      sync.RWMutex
	reports map[string]*database.MissingPerson

	// Error injection
	GetError    error
	ListError   error
	CreateError error
	UpdateError error
}

// NewMockReportWriter creates a new mock report writer
func NewMockReportWriter() *MockReportWriter {
	return &MockReportWriter{
		reports: make(map[string]*database.MissingPerson),
	}
}

// AddReport adds a report to the mock store
func (m *MockReportWriter) AddReport(p database.MissingPerson) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Status == "" {
		p.Status = database.ReportStatusActive
	}
	m.reports[p.ID] = &p
}

// GetReport retrieves a report by ID
func (m *MockReportWriter) GetReport(ctx context.Context, id string) (*database.MissingPerson, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, database.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// ListReports lists reports filtered by status, newest first
func (m *MockReportWriter) ListReports(ctx context.Context, status string) ([]database.MissingPerson, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.MissingPerson
	for _, p := range m.reports {
		if status != "" && p.Status != status {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CreateReport stores a report
func (m *MockReportWriter) CreateReport(ctx context.Context, p *database.MissingPerson) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = database.ReportStatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.reports[p.ID] = &cp
	return nil
}

// UpdateReportStatus changes a report's status
func (m *MockReportWriter) UpdateReportStatus(ctx context.Context, id, status string) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.reports[id]
	if !ok {
		return fmt.Errorf("report %s: %w", id, database.ErrNotFound)
	}
	p.Status = status
	return nil
}

// MockSightingWriter is a mock implementation of database.SightingWriter
type MockSightingWriter struct {
	mu        sync.RWMutex
	sightings map[string]*database.Sighting

	// Error injection
	GetError    error
	ListError   error
	CreateError error
}

// NewMockSightingWriter creates a new mock sighting writer
func NewMockSightingWriter() *MockSightingWriter {
	return &MockSightingWriter{
		sightings: make(map[string]*database.Sighting),
	}
}

// AddSighting adds a sighting to the mock store
func (m *MockSightingWriter) AddSighting(s database.Sighting) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sightings[s.ID] = &s
}

// GetSighting retrieves a sighting by ID
func (m *MockSightingWriter) GetSighting(ctx context.Context, id string) (*database.Sighting, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sightings[id]
	if !ok {
		return nil, fmt.Errorf("sighting %s: %w", id, database.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

// ListSightings returns all sightings, newest first
func (m *MockSightingWriter) ListSightings(ctx context.Context) ([]database.Sighting, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]database.Sighting, 0, len(m.sightings))
	for _, s := range m.sightings {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CreateSighting stores a sighting
func (m *MockSightingWriter) CreateSighting(ctx context.Context, s *database.Sighting) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sightings[s.ID] = &cp
	return nil
}

// MockCorpusReader is a mock implementation of database.CorpusReader backed by
// the report and sighting mocks.
type MockCorpusReader struct {
	Reports   *MockReportWriter
	Sightings *MockSightingWriter

	// Error injection
	SightingsError error
	ReportsError   error
}

// NewMockCorpusReader creates a corpus reader over the given mocks
func NewMockCorpusReader(reports *MockReportWriter, sightings *MockSightingWriter) *MockCorpusReader {
	return &MockCorpusReader{Reports: reports, Sightings: sightings}
}

// SightingCandidates returns all sightings that have a photo
func (m *MockCorpusReader) SightingCandidates(ctx context.Context) ([]database.CandidateRecord, error) {
	if m.SightingsError != nil {
		return nil, m.SightingsError
	}
	sightings, err := m.Sightings.ListSightings(ctx)
	if err != nil {
		return nil, err
	}
	var result []database.CandidateRecord
	for i := range sightings {
		if sightings[i].PhotoRef == "" {
			continue
		}
		result = append(result, sightings[i].Candidate())
	}
	return result, nil
}

// ReportCandidates returns reports that have a photo
func (m *MockCorpusReader) ReportCandidates(ctx context.Context, activeOnly bool) ([]database.CandidateRecord, error) {
	if m.ReportsError != nil {
		return nil, m.ReportsError
	}
	status := ""
	if activeOnly {
		status = database.ReportStatusActive
	}
	reports, err := m.Reports.ListReports(ctx, status)
	if err != nil {
		return nil, err
	}
	var result []database.CandidateRecord
	for i := range reports {
		if reports[i].PhotoRef == "" {
			continue
		}
		result = append(result, reports[i].Candidate())
	}
	return result, nil
}

// MockNotificationStore is a mock implementation of database.NotificationStore.
// Like the real stores it rejects a second face_match record for the same pair.
type MockNotificationStore struct {
	mu            sync.RWMutex
	notifications []database.NotificationRecord
	nextID        int64

	// Error injection
	ExistsError   error
	InsertError   error
	ListError     error
	MarkReadError error

	// BeforeInsert runs before the uniqueness check, outside the lock.
	// Tests use it to widen the check-then-insert window.
	BeforeInsert func(n *database.NotificationRecord)
}

// NewMockNotificationStore creates a new mock notification store
func NewMockNotificationStore() *MockNotificationStore {
	return &MockNotificationStore{}
}

// Exists checks whether a notification of the given type exists for the pair
func (m *MockNotificationStore) Exists(ctx context.Context, notificationType, missingPersonID, sightingID string) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.notifications {
		n := &m.notifications[i]
		if n.Type == notificationType && n.MissingPersonID == missingPersonID && n.SightingID == sightingID {
			return true, nil
		}
	}
	return false, nil
}

// Insert stores a notification
func (m *MockNotificationStore) Insert(ctx context.Context, n *database.NotificationRecord) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	if m.BeforeInsert != nil {
		m.BeforeInsert(n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if n.Type == constants.NotificationTypeFaceMatch {
		for i := range m.notifications {
			e := &m.notifications[i]
			if e.Type == n.Type && e.MissingPersonID == n.MissingPersonID && e.SightingID == n.SightingID {
				return database.ErrDuplicateNotification
			}
		}
	}

	m.nextID++
	n.ID = m.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.notifications = append(m.notifications, *n)
	return nil
}

// ListByRecipient returns the newest notifications for a recipient
func (m *MockNotificationStore) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]database.NotificationRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.NotificationRecord
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].RecipientID != recipientID {
			continue
		}
		result = append(result, m.notifications[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// MarkRead sets the read flag
func (m *MockNotificationStore) MarkRead(ctx context.Context, id int64) error {
	if m.MarkReadError != nil {
		return m.MarkReadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("notification %d: %w", id, database.ErrNotFound)
}

// All returns a copy of every stored notification in insertion order
func (m *MockNotificationStore) All() []database.NotificationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.NotificationRecord(nil), m.notifications...)
}

// Count returns the number of stored notifications of the given type
func (m *MockNotificationStore) Count(notificationType string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for i := range m.notifications {
		if m.notifications[i].Type == notificationType {
			count++
		}
	}
	return count
}
