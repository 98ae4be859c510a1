package notify

import (
	"context"
	"fmt"

	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/kozaktomas/lookout/internal/database"
)

// Deduplicator drops matches whose pair already has a face_match notification.
//
// The lookup is an optimisation only: two concurrent runs can both pass it for
// the same pair. The store's uniqueness constraint decides, and Dispatch
// reports the loser as ErrAlreadyNotified.
type Deduplicator struct {
	store database.NotificationStore
}

// NewDeduplicator creates a deduplicator over store.
func NewDeduplicator(store database.NotificationStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// FilterNew returns the matches that have not been notified yet, in input
// order. Repeated pairs within matches are kept once.
func (d *Deduplicator) FilterNew(ctx context.Context, matches []Match) ([]Match, error) {
	seen := make(map[pairKey]bool, len(matches))
	fresh := make([]Match, 0, len(matches))

	for _, m := range matches {
		k := m.key()
		if seen[k] {
			continue
		}
		seen[k] = true

		exists, err := d.store.Exists(ctx, constants.NotificationTypeFaceMatch, m.Report.ID, m.Sighting.ID)
		if err != nil {
			return nil, fmt.Errorf("check notification for %s/%s: %w", m.Report.ID, m.Sighting.ID, err)
		}
		if !exists {
			fresh = append(fresh, m)
		}
	}
	return fresh, nil
}
