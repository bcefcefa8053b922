package handlers

import (
	"net/http"

	"swarm-backend/internal/models"
	"swarm-backend/internal/services"
)

// RulesHandler serves the static swarm rules
type RulesHandler struct {
	swarmService  *services.SwarmService
	streakService *services.StreakService
	badgeService  *services.BadgeService
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(
	swarmService *services.SwarmService,
	streakService *services.StreakService,
	badgeService *services.BadgeService,
) *RulesHandler {
	return &RulesHandler{
		swarmService:  swarmService,
		streakService: streakService,
		badgeService:  badgeService,
	}
}

// RulesResponse lists the member cap, streak milestones and badges
type RulesResponse struct {
	MaxMembers       int                `json:"max_members"`
	StreakMilestones []models.Milestone `json:"streak_milestones"`
	Badges           []models.Badge     `json:"badges"`
}

// GetRules handles GET /api/v1/rules
func (h *RulesHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	badges := h.badgeService.Table()
	if badges == nil {
		badges = []models.Badge{}
	}
	respondJSON(w, http.StatusOK, RulesResponse{
		MaxMembers:       h.swarmService.MaxMembers(),
		StreakMilestones: h.streakService.Milestones(),
		Badges:           badges,
	})
}
