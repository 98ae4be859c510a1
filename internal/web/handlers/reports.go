package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/photostore"
)

// ReportsHandler handles missing-person report endpoints.
type ReportsHandler struct {
	reports  database.ReportWriter
	photos   photostore.Store
	crossref CrossReferencer
	logger   *slog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(reports database.ReportWriter, photos photostore.Store, crossref CrossReferencer, logger *slog.Logger) *ReportsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportsHandler{
		reports:  reports,
		photos:   photos,
		crossref: crossref,
		logger:   logger,
	}
}

// ReportResponse represents a report in API responses.
type ReportResponse struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Name             string    `json:"name"`
	ContactPhone     string    `json:"contact_phone,omitempty"`
	ContactEmail     string    `json:"contact_email,omitempty"`
	LastSeenLocation string    `json:"last_seen_location,omitempty"`
	PhotoRef         string    `json:"photo_ref,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateReportResponse is returned by Create.
type CreateReportResponse struct {
	Report   ReportResponse    `json:"report"`
	CrossRef *CrossRefResponse `json:"crossref,omitempty"`
}

func reportToResponse(p *database.MissingPerson) ReportResponse {
	return ReportResponse{
		ID:               p.ID,
		OwnerID:          p.OwnerID,
		Name:             p.Name,
		ContactPhone:     p.ContactPhone,
		ContactEmail:     p.ContactEmail,
		LastSeenLocation: p.LastSeenLocation,
		PhotoRef:         p.PhotoRef,
		Status:           p.Status,
		CreatedAt:        p.CreatedAt,
	}
}

// Create stores a new report from a multipart form and cross-references its
// photo against all sightings. A failed matching run does not fail the request.
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	report := &database.MissingPerson{
		OwnerID:          strings.TrimSpace(r.FormValue("owner_id")),
		Name:             strings.TrimSpace(r.FormValue("name")),
		ContactPhone:     strings.TrimSpace(r.FormValue("phone")),
		ContactEmail:     strings.TrimSpace(r.FormValue("email")),
		LastSeenLocation: strings.TrimSpace(r.FormValue("last_seen_location")),
		Status:           database.ReportStatusActive,
	}
	if report.OwnerID == "" || report.Name == "" {
		respondError(w, http.StatusBadRequest, "owner_id and name are required")
		return
	}

	photo, err := readPhoto(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if photo != nil {
		report.PhotoRef = photostore.NewRef("reports", "photo"+photoExt(photo.Format))
		if err := h.photos.Put(r.Context(), report.PhotoRef, photo.Data); err != nil {
			h.logger.Error("storing report photo failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to store photo")
			return
		}
	}

	if err := h.reports.CreateReport(r.Context(), report); err != nil {
		h.logger.Error("creating report failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create report")
		return
	}

	resp := CreateReportResponse{Report: reportToResponse(report)}
	if photo != nil && h.crossref != nil {
		resp.CrossRef = &CrossRefResponse{}
		summary, err := h.crossref.OnReportPhoto(r.Context(), report, photo.Data)
		if err != nil {
			h.logger.Error("cross-reference for new report failed", "report_id", report.ID, "error", err)
			resp.CrossRef.Error = "photo matching failed"
		} else {
			resp.CrossRef.Summary = summary
		}
	}

	respondJSON(w, http.StatusCreated, resp)
}

// Get returns a single report.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := h.reports.GetReport(r.Context(), id)
	if err != nil {
		h.logger.Debug("loading report failed", "report_id", sanitizeForLog(id), "error", err)
		respondStoreError(w, err, "report")
		return
	}
	respondJSON(w, http.StatusOK, reportToResponse(report))
}

// List returns reports, optionally filtered by ?status=.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", database.ReportStatusActive, database.ReportStatusResolved:
	default:
		respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	reports, err := h.reports.ListReports(r.Context(), status)
	if err != nil {
		h.logger.Error("listing reports failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	result := make([]ReportResponse, len(reports))
	for i := range reports {
		result[i] = reportToResponse(&reports[i])
	}
	respondJSON(w, http.StatusOK, result)
}

// Resolve marks a report resolved so it is no longer scanned for new sightings.
func (h *ReportsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.reports.UpdateReportStatus(r.Context(), id, database.ReportStatusResolved); err != nil {
		respondStoreError(w, err, "report")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": database.ReportStatusResolved})
}
