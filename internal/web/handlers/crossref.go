package handlers

import (
	"context"

	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/notify"
)

// CrossReferencer runs photo matching for newly stored records.
// *notify.Pipeline implements it.
type CrossReferencer interface {
	OnReportPhoto(ctx context.Context, report *database.MissingPerson, photo []byte) (*notify.RunSummary, error)
	OnSightingCreated(ctx context.Context, sighting *database.Sighting, photo []byte) (*notify.RunSummary, error)
}

// CrossRefResponse reports the outcome of the matching run triggered by a create.
// Error is set when the run failed; the record itself was still stored.
type CrossRefResponse struct {
	Summary *notify.RunSummary `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}
