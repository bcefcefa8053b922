package handlers

import (
	"encoding/json"
	"net/http"

	"swarm-backend/internal/middleware"
	"swarm-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub          *services.WSHub
	userService  *services.UserService
	swarmService *services.SwarmService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	swarmService *services.SwarmService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		userService:  userService,
		swarmService: swarmService,
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	// Tell the client which swarm it is in so it can refresh its state
	ctx := r.Context()
	status := services.WSMessage{
		Type:   "swarm_status",
		UserID: userID,
		Data:   map[string]interface{}{"in_swarm": false},
	}
	swarm, err := h.swarmService.GetUserSwarm(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load swarm for WebSocket")
	} else if swarm != nil {
		status.SwarmID = swarm.ID
		status.Data = map[string]interface{}{
			"in_swarm":       true,
			"member_count":   swarm.MemberCount,
			"current_streak": swarm.ActiveStreak(h.swarmService.Today()),
		}
	}
	if err := h.hub.SendToUser(userID, status); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send swarm_status message")
		return
	}

	log.Info().
		Str("user_id", userID).
		Int("online", h.hub.OnlineCount()).
		Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			h.sendErrorToUser(userID, "Invalid message format")
			continue
		}

		switch msg.Type {
		case "ping":
			if err := h.hub.SendToUser(userID, services.WSMessage{Type: services.EventPong}); err != nil {
				log.Debug().Err(err).Str("user_id", userID).Msg("Failed to send pong")
			}
		default:
			h.sendErrorToUser(userID, "Unknown message type")
		}
	}
}

// sendErrorToUser sends an error message to a user
func (h *WebSocketHandler) sendErrorToUser(userID, message string) {
	msg := services.WSMessage{
		Type:    services.EventError,
		Message: message,
	}
	if err := h.hub.SendToUser(userID, msg); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Failed to send error message")
	}
}
