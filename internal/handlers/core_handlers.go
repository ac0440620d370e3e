package handlers

import (
	"context"
	"net/http"
	"time"

	"rekindle/internal/engine/actors"
	"rekindle/internal/logger"
	"rekindle/internal/middleware"
	"rekindle/internal/utils"
)

// HealthResponse reports liveness and a few live figures.
type HealthResponse struct {
	Status           string                `json:"status"`
	MessageCount     int                   `json:"messageCount"`
	WebsocketClients int                   `json:"websocketClients"`
	ServerTime       time.Time             `json:"serverTime"`
	Metrics          utils.MetricsSnapshot `json:"metrics"`
}

// HandleHealth handles health check requests. A failing store ping turns
// the response into a 503.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:     "healthy",
			ServerTime: time.Now().UTC(),
			Metrics:    s.Metrics.Snapshot(),
		}
		if s.Hub != nil {
			resp.WebsocketClients = s.Hub.ConnectionCount()
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			logger.Warn("Health check: store ping failed", "error", err)
			resp.Status = "degraded"
			middleware.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		result, err := s.ask(s.Engine.GetCommunityActor(), &actors.GetCountsMsg{}, "community")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		if n, ok := result.(int); ok {
			resp.MessageCount = n
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}
