package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/photostore"
)

// SightingsHandler handles sighting endpoints.
type SightingsHandler struct {
	sightings database.SightingWriter
	reports   database.ReportReader
	photos    photostore.Store
	crossref  CrossReferencer
	logger    *slog.Logger
}

// NewSightingsHandler creates a new sightings handler.
func NewSightingsHandler(
	sightings database.SightingWriter,
	reports database.ReportReader,
	photos photostore.Store,
	crossref CrossReferencer,
	logger *slog.Logger,
) *SightingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SightingsHandler{
		sightings: sightings,
		reports:   reports,
		photos:    photos,
		crossref:  crossref,
		logger:    logger,
	}
}

// SightingResponse represents a sighting in API responses.
type SightingResponse struct {
	ID              string    `json:"id"`
	ReporterID      string    `json:"reporter_id"`
	MissingPersonID string    `json:"missing_person_id,omitempty"`
	Location        string    `json:"location,omitempty"`
	PhotoRef        string    `json:"photo_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateSightingResponse is returned by Create.
type CreateSightingResponse struct {
	Sighting SightingResponse  `json:"sighting"`
	CrossRef *CrossRefResponse `json:"crossref,omitempty"`
}

func sightingToResponse(s *database.Sighting) SightingResponse {
	return SightingResponse{
		ID:              s.ID,
		ReporterID:      s.ReporterID,
		MissingPersonID: s.MissingPersonID,
		Location:        s.Location,
		PhotoRef:        s.PhotoRef,
		CreatedAt:       s.CreatedAt,
	}
}

// Create stores a new sighting from a multipart form, notifies the owner of the
// report it was filed against and cross-references its photo against active
// reports. A failed matching run does not fail the request.
func (h *SightingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	sighting := &database.Sighting{
		ReporterID:      strings.TrimSpace(r.FormValue("reporter_id")),
		MissingPersonID: strings.TrimSpace(r.FormValue("missing_person_id")),
		Location:        strings.TrimSpace(r.FormValue("location")),
	}
	if sighting.ReporterID == "" {
		respondError(w, http.StatusBadRequest, "reporter_id is required")
		return
	}

	if sighting.MissingPersonID != "" && h.reports != nil {
		if _, err := h.reports.GetReport(r.Context(), sighting.MissingPersonID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				respondError(w, http.StatusBadRequest, "missing_person_id does not exist")
				return
			}
			respondStoreError(w, err, "report")
			return
		}
	}

	photo, err := readPhoto(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if photo != nil {
		sighting.PhotoRef = photostore.NewRef("sightings", "photo"+photoExt(photo.Format))
		if err := h.photos.Put(r.Context(), sighting.PhotoRef, photo.Data); err != nil {
			h.logger.Error("storing sighting photo failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to store photo")
			return
		}
	}

	if err := h.sightings.CreateSighting(r.Context(), sighting); err != nil {
		h.logger.Error("creating sighting failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create sighting")
		return
	}

	resp := CreateSightingResponse{Sighting: sightingToResponse(sighting)}
	if h.crossref != nil && (photo != nil || sighting.MissingPersonID != "") {
		var data []byte
		if photo != nil {
			data = photo.Data
		}
		resp.CrossRef = &CrossRefResponse{}
		summary, err := h.crossref.OnSightingCreated(r.Context(), sighting, data)
		if err != nil {
			h.logger.Error("cross-reference for new sighting failed", "sighting_id", sighting.ID, "error", err)
			resp.CrossRef.Error = "photo matching failed"
		} else {
			resp.CrossRef.Summary = summary
		}
	}

	respondJSON(w, http.StatusCreated, resp)
}

// Get returns a single sighting.
func (h *SightingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sighting, err := h.sightings.GetSighting(r.Context(), id)
	if err != nil {
		h.logger.Debug("loading sighting failed", "sighting_id", sanitizeForLog(id), "error", err)
		respondStoreError(w, err, "sighting")
		return
	}
	respondJSON(w, http.StatusOK, sightingToResponse(sighting))
}

// List returns all sightings, newest first.
func (h *SightingsHandler) List(w http.ResponseWriter, r *http.Request) {
	sightings, err := h.sightings.ListSightings(r.Context())
	if err != nil {
		h.logger.Error("listing sightings failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list sightings")
		return
	}

	result := make([]SightingResponse, len(sightings))
	for i := range sightings {
		result[i] = sightingToResponse(&sightings[i])
	}
	respondJSON(w, http.StatusOK, result)
}
