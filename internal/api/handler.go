// Package api provides the HTTP handlers for the Engage API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopnudge/engage/internal/config"
	"github.com/shopnudge/engage/internal/domain"
	"github.com/shopnudge/engage/internal/identity"
	"github.com/shopnudge/engage/internal/store"
	"github.com/shopnudge/engage/internal/stream"
)

// Beaconer forwards unload payloads to the decision service.
type Beaconer interface {
	Beacon(sessionID string, recentEvents []domain.Event)
}

// Handler provides the REST endpoints next to the websocket stream.
type Handler struct {
	repo     store.Repository
	beaconer Beaconer
	registry *stream.Registry
	cfg      *config.Config
}

// NewHandler creates a Handler with common dependencies.
func NewHandler(repo store.Repository, beaconer Beaconer, registry *stream.Registry, cfg *config.Config) *Handler {
	return &Handler{repo: repo, beaconer: beaconer, registry: registry, cfg: cfg}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Healthz reports store connectivity and the live stream count.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"streams": h.registry.Active(),
	})
}

// trackConfigResponse bootstraps the page shim.
type trackConfigResponse struct {
	StreamPath    string      `json:"streamPath"`
	SessionHeader string      `json:"sessionHeader"`
	Modal         modalColors `json:"modal"`
	Debug         bool        `json:"debug"`
}

type modalColors struct {
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
}

// TrackConfig hands the shim what it needs to connect and render.
func (h *Handler) TrackConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, trackConfigResponse{
		StreamPath:    "/track/stream",
		SessionHeader: identity.SessionHeaderName,
		Modal: modalColors{
			BackgroundColor: h.cfg.Modal.BackgroundColor,
			TextColor:       h.cfg.Modal.TextColor,
		},
		Debug: h.cfg.Debug,
	})
}

// beaconRequest is the shim's sendBeacon fallback for unloads that happen
// after the socket is already gone.
type beaconRequest struct {
	SessionID    string         `json:"sessionId"`
	RecentEvents []domain.Event `json:"recentEvents"`
}

// TrackBeacon accepts the HTTP fallback unload payload and forwards it
// best-effort. Always 202: the page is going away and nobody reads the
// answer.
func (h *Handler) TrackBeacon(w http.ResponseWriter, r *http.Request) {
	var req beaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		Error(w, http.StatusBadRequest, "invalid beacon payload")
		return
	}

	h.beaconer.Beacon(req.SessionID, req.RecentEvents)
	JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
