package handlers

import (
	"net/http"

	"github.com/kozaktomas/lookout/internal/config"
	"github.com/kozaktomas/lookout/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Threshold       float64       `json:"threshold"`
	Concurrency     int           `json:"concurrency"`
	TimeoutSeconds  int           `json:"timeout_seconds"`
	PersistFeatures bool          `json:"persist_features"`
	PhotoStore      string        `json:"photo_store"`
	Database        string        `json:"database,omitempty"`
	Channels        []ChannelInfo `json:"channels"`
}

// ChannelInfo represents whether an external message channel is configured
type ChannelInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Get returns the effective matching configuration. Secrets are never included.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	channels := []ChannelInfo{
		{
			Name:      "ntfy",
			Available: h.config.Channels.NtfyURL != "",
		},
		{
			Name:      "sms",
			Available: h.config.Channels.SMSWebhookURL != "",
		},
	}

	response := ConfigResponse{
		Threshold:       h.config.Matching.Threshold,
		Concurrency:     h.config.Matching.Concurrency,
		TimeoutSeconds:  int(h.config.Matching.Timeout.Seconds()),
		PersistFeatures: h.config.Matching.PersistFeatures,
		PhotoStore:      h.config.Photos.Backend,
		Channels:        channels,
	}
	if database.IsInitialized() {
		response.Database = database.BackendName()
	}

	respondJSON(w, http.StatusOK, response)
}
