// Package notify turns photo matches into persisted, deduplicated notifications
// and pushes them to external message channels.
package notify

import (
	"time"

	"github.com/kozaktomas/lookout/internal/database"
)

// ErrAlreadyNotified means a face_match notification for the pair is already stored.
var ErrAlreadyNotified = database.ErrDuplicateNotification

// Match is a MatchResult oriented by kind: Report is always the missing person.
type Match struct {
	Report   database.CandidateRecord
	Sighting database.CandidateRecord
	Score    float64
}

type pairKey struct {
	missingPersonID string
	sightingID      string
}

func (m Match) key() pairKey {
	return pairKey{missingPersonID: m.Report.ID, sightingID: m.Sighting.ID}
}

// Orient builds a Match from a source and a candidate of opposite kinds.
// It returns false when both have the same kind.
func Orient(source, candidate database.CandidateRecord, score float64) (Match, bool) {
	switch {
	case source.Kind == database.KindReport && candidate.Kind == database.KindSighting:
		return Match{Report: source, Sighting: candidate, Score: score}, true
	case source.Kind == database.KindSighting && candidate.Kind == database.KindReport:
		return Match{Report: candidate, Sighting: source, Score: score}, true
	default:
		return Match{}, false
	}
}

// Recorder receives pipeline counters. *metrics.Metrics implements it.
type Recorder interface {
	RecordMatches(n int)
	RecordNotification(result string)
	RecordChannelSend(err error)
	ObserveRun(direction string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordMatches(int)                {}
func (nopRecorder) RecordNotification(string)        {}
func (nopRecorder) RecordChannelSend(error)          {}
func (nopRecorder) ObserveRun(string, time.Duration) {}
