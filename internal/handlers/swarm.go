package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"swarm-backend/internal/middleware"
	"swarm-backend/internal/models"
	"swarm-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SwarmHandler handles swarm-related HTTP requests
type SwarmHandler struct {
	swarmService  *services.SwarmService
	emblemService *services.EmblemService
}

// NewSwarmHandler creates a new swarm handler. emblemService may be nil when
// S3 is not configured.
func NewSwarmHandler(swarmService *services.SwarmService, emblemService *services.EmblemService) *SwarmHandler {
	return &SwarmHandler{
		swarmService:  swarmService,
		emblemService: emblemService,
	}
}

// SwarmNameRequest represents the request body for creating or renaming a swarm
type SwarmNameRequest struct {
	Name string `json:"name"`
}

// JoinSwarmRequest represents the request body for joining a swarm
type JoinSwarmRequest struct {
	InviteCode string `json:"invite_code"`
}

// EmblemRequest represents the request body for an emblem upload
type EmblemRequest struct {
	ContentType string `json:"content_type"`
}

// ConfirmEmblemRequest represents the request body for confirming an uploaded emblem
type ConfirmEmblemRequest struct {
	Key string `json:"key"`
}

// SwarmResponse is a swarm with its invite link and, for details, its members.
// ActiveStreak is the streak as the caller sees it on their date.
type SwarmResponse struct {
	*models.Swarm
	ActiveStreak int                  `json:"active_streak"`
	InviteLink   string               `json:"invite_link,omitempty"`
	MaxMembers   int                  `json:"max_members"`
	Members      []models.SwarmMember `json:"members,omitempty"`
}

// MySwarmResponse wraps the caller's swarm, which is null when they have none
type MySwarmResponse struct {
	Swarm *SwarmResponse `json:"swarm"`
}

// SwarmPreview is what anyone holding an invite code may see
type SwarmPreview struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MemberCount  int     `json:"member_count"`
	MaxMembers   int     `json:"max_members"`
	ActiveStreak int     `json:"active_streak"`
	EmblemURL    *string `json:"emblem_url,omitempty"`
}

// CollectionResponse lists the swarm's collected items
type CollectionResponse struct {
	SwarmID string   `json:"swarm_id"`
	ItemIDs []string `json:"item_ids"`
	Count   int      `json:"count"`
}

func (h *SwarmHandler) swarmResponse(swarm *models.Swarm, members []models.SwarmMember, today time.Time) *SwarmResponse {
	return &SwarmResponse{
		Swarm:        swarm,
		ActiveStreak: swarm.ActiveStreak(today),
		InviteLink:   h.swarmService.InviteLink(swarm),
		MaxMembers:   h.swarmService.MaxMembers(),
		Members:      members,
	}
}

// readerToday returns the caller's date from the local_date query parameter,
// or today in the server's timezone when it is absent
func (h *SwarmHandler) readerToday(r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("local_date")
	if v == "" {
		return h.swarmService.Today(), true
	}
	d, err := models.ParseDate(v)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// CreateSwarm handles POST /api/v1/swarms
func (h *SwarmHandler) CreateSwarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SwarmNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	swarm, err := h.swarmService.CreateSwarm(ctx, userID, req.Name)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create swarm")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.swarmResponse(swarm, nil, h.swarmService.Today()))
}

// JoinSwarm handles POST /api/v1/swarms/join
func (h *SwarmHandler) JoinSwarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req JoinSwarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.InviteCode == "" {
		respondError(w, "invite_code is required", http.StatusBadRequest)
		return
	}

	swarm, err := h.swarmService.JoinSwarm(ctx, userID, req.InviteCode)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("invite_code", req.InviteCode).
			Msg("Failed to join swarm")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.swarmResponse(swarm, nil, h.swarmService.Today()))
}

// LeaveSwarm handles POST /api/v1/swarms/leave
func (h *SwarmHandler) LeaveSwarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	result, err := h.swarmService.LeaveSwarm(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to leave swarm")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetMySwarm handles GET /api/v1/swarms/me
func (h *SwarmHandler) GetMySwarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	today, ok := h.readerToday(r)
	if !ok {
		respondError(w, "local_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	swarm, err := h.swarmService.GetUserSwarm(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var resp MySwarmResponse
	if swarm != nil {
		resp.Swarm = h.swarmResponse(swarm, nil, today)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetSwarmByCode handles GET /api/v1/swarms/code/{code}
func (h *SwarmHandler) GetSwarmByCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	today, ok := h.readerToday(r)
	if !ok {
		respondError(w, "local_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	swarm, err := h.swarmService.GetSwarmByCode(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("invite_code", code).Msg("Failed to look up swarm by code")
		respondServiceError(w, err)
		return
	}
	if swarm == nil {
		respondError(w, "swarm not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, SwarmPreview{
		ID:           swarm.ID,
		Name:         swarm.Name,
		MemberCount:  swarm.MemberCount,
		MaxMembers:   h.swarmService.MaxMembers(),
		ActiveStreak: swarm.ActiveStreak(today),
		EmblemURL:    swarm.EmblemURL,
	})
}

// GetSwarm handles GET /api/v1/swarms/{swarm_id}
func (h *SwarmHandler) GetSwarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	swarmID := chi.URLParam(r, "swarm_id")

	today, ok := h.readerToday(r)
	if !ok {
		respondError(w, "local_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	swarm, members, err := h.swarmService.GetSwarmDetails(ctx, swarmID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.swarmResponse(swarm, members, today))
}

// RenameSwarm handles PATCH /api/v1/swarms/{swarm_id}
func (h *SwarmHandler) RenameSwarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	swarmID := chi.URLParam(r, "swarm_id")

	var req SwarmNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	swarm, err := h.swarmService.RenameSwarm(ctx, userID, swarmID, req.Name)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("swarm_id", swarmID).
			Msg("Failed to rename swarm")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.swarmResponse(swarm, nil, h.swarmService.Today()))
}

// GetCollection handles GET /api/v1/swarms/{swarm_id}/collection
func (h *SwarmHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	swarmID := chi.URLParam(r, "swarm_id")

	ids, err := h.swarmService.GetSwarmCollection(ctx, swarmID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CollectionResponse{
		SwarmID: swarmID,
		ItemIDs: ids,
		Count:   len(ids),
	})
}

// UploadEmblem handles POST /api/v1/swarms/{swarm_id}/emblem
func (h *SwarmHandler) UploadEmblem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	swarmID := chi.URLParam(r, "swarm_id")

	if h.emblemService == nil {
		respondError(w, "Emblem uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	var req EmblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	upload, err := h.emblemService.PresignEmblemUpload(ctx, userID, swarmID, req.ContentType)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("swarm_id", swarmID).
			Msg("Failed to issue emblem upload")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, upload)
}

// ConfirmEmblem handles POST /api/v1/swarms/{swarm_id}/emblem/confirm
func (h *SwarmHandler) ConfirmEmblem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	swarmID := chi.URLParam(r, "swarm_id")

	if h.emblemService == nil {
		respondError(w, "Emblem uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	var req ConfirmEmblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	swarm, err := h.emblemService.ConfirmEmblemUpload(ctx, userID, swarmID, req.Key)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("swarm_id", swarmID).
			Str("key", req.Key).
			Msg("Failed to confirm emblem upload")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.swarmResponse(swarm, nil, h.swarmService.Today()))
}
