package handlers

import (
	"net/http"

	"swarm-backend/internal/middleware"
	"swarm-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Router holds the handlers served by the API
type Router struct {
	Users     *UserHandler
	Swarms    *SwarmHandler
	Activity  *ActivityHandler
	Rules     *RulesHandler
	WebSocket *WebSocketHandler
	Auth      middleware.TokenValidator
	Metrics   *services.Metrics
}

// Handler builds the chi router
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", rt.Users.CreateUser)
		r.Get("/rules", rt.Rules.GetRules)
		r.Get("/swarms/code/{code}", rt.Swarms.GetSwarmByCode)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(rt.Auth))

			r.Get("/users/me", rt.Users.GetMe)
			r.Put("/users/me/push-token", rt.Users.UpdatePushToken)

			r.Post("/swarms", rt.Swarms.CreateSwarm)
			r.Post("/swarms/join", rt.Swarms.JoinSwarm)
			r.Post("/swarms/leave", rt.Swarms.LeaveSwarm)
			r.Get("/swarms/me", rt.Swarms.GetMySwarm)
			r.Get("/swarms/{swarm_id}", rt.Swarms.GetSwarm)
			r.Patch("/swarms/{swarm_id}", rt.Swarms.RenameSwarm)
			r.Get("/swarms/{swarm_id}/collection", rt.Swarms.GetCollection)
			r.Post("/swarms/{swarm_id}/emblem", rt.Swarms.UploadEmblem)
			r.Post("/swarms/{swarm_id}/emblem/confirm", rt.Swarms.ConfirmEmblem)

			r.Post("/sightings", rt.Activity.LogSighting)
		})
	})

	if rt.WebSocket != nil {
		r.Get("/ws", rt.WebSocket.HandleWebSocket)
	}
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics.Handler())
	}

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
