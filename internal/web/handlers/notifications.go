package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/kozaktomas/lookout/internal/database"
)

// NotificationsHandler handles notification endpoints.
type NotificationsHandler struct {
	store  database.NotificationStore
	logger *slog.Logger
}

// NewNotificationsHandler creates a new notifications handler.
func NewNotificationsHandler(store database.NotificationStore, logger *slog.Logger) *NotificationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationsHandler{store: store, logger: logger}
}

// NotificationResponse represents a notification in API responses.
type NotificationResponse struct {
	ID              int64     `json:"id"`
	RecipientID     string    `json:"recipient_id"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Type            string    `json:"type"`
	MissingPersonID string    `json:"missing_person_id,omitempty"`
	SightingID      string    `json:"sighting_id,omitempty"`
	Read            bool      `json:"read"`
	CreatedAt       time.Time `json:"created_at"`
}

func notificationToResponse(n *database.NotificationRecord) NotificationResponse {
	return NotificationResponse{
		ID:              n.ID,
		RecipientID:     n.RecipientID,
		Title:           n.Title,
		Message:         n.Message,
		Type:            n.Type,
		MissingPersonID: n.MissingPersonID,
		SightingID:      n.SightingID,
		Read:            n.Read,
		CreatedAt:       n.CreatedAt,
	}
}

// List returns the newest notifications for ?recipient_id=, limited by ?limit=.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	recipientID := r.URL.Query().Get("recipient_id")
	if recipientID == "" {
		respondError(w, http.StatusBadRequest, "recipient_id is required")
		return
	}

	limit := constants.DefaultNotificationLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, constants.DefaultNotificationLimit)
	}

	records, err := h.store.ListByRecipient(r.Context(), recipientID, limit)
	if err != nil {
		h.logger.Error("listing notifications failed", "recipient_id", sanitizeForLog(recipientID), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	result := make([]NotificationResponse, len(records))
	for i := range records {
		result[i] = notificationToResponse(&records[i])
	}
	respondJSON(w, http.StatusOK, result)
}

// MarkRead sets the read flag of a notification.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.store.MarkRead(r.Context(), id); err != nil {
		respondStoreError(w, err, "notification")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "read": true})
}
