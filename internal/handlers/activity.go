package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"swarm-backend/internal/middleware"
	"swarm-backend/internal/models"
	"swarm-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// ActivityHandler handles sighting requests
type ActivityHandler struct {
	activityService *services.ActivityService
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activityService *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
	}
}

// SightingRequest represents the request body for logging a sighting.
// LocalDate is the client's calendar date (YYYY-MM-DD); today in the server's
// timezone is used when it is empty.
type SightingRequest struct {
	ItemID    string `json:"item_id"`
	LocalDate string `json:"local_date,omitempty"`
}

// LogSighting handles POST /api/v1/sightings
func (h *ActivityHandler) LogSighting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SightingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ItemID == "" {
		respondError(w, "item_id is required", http.StatusBadRequest)
		return
	}

	var day *time.Time
	if req.LocalDate != "" {
		d, err := models.ParseDate(req.LocalDate)
		if err != nil {
			respondError(w, "local_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = &d
	}

	result, err := h.activityService.LogSighting(ctx, userID, req.ItemID, day)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("item_id", req.ItemID).
			Msg("Failed to log sighting")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
