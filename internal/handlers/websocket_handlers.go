package handlers

import (
	"net/http"
	"strings"

	"rekindle/internal/logger"
	"rekindle/internal/middleware"
	"rekindle/internal/utils"
	"rekindle/internal/websocket"

	ws "github.com/gorilla/websocket"
)

func (s *Server) upgrader() *ws.Upgrader {
	return &ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range s.AllowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// HandleWebSocket subscribes an authenticated client to the live community
// feed. Browsers cannot set headers on upgrade, so the token comes from the
// query string.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			middleware.WriteError(w, utils.NewUnauthorizedError("Missing authentication token"))
			return
		}

		claims, err := s.Auth.ValidateToken(tokenString)
		if err != nil {
			logger.Debug("WebSocket token rejected", "error", err)
			middleware.WriteError(w, utils.NewAppError(utils.ErrInvalidToken, "Invalid or expired token", err))
			return
		}
		userID := claims.UserID

		conn, err := s.upgrader().Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			logger.Warn("WebSocket upgrade failed", "userId", userID, "error", err)
			return
		}

		client := &websocket.Client{
			Hub:    s.Hub,
			UserID: userID,
			Conn:   conn,
			Send:   make(chan []byte, 256),
		}
		if !s.Hub.Attach(client) {
			conn.Close()
			return
		}
		logger.Info("WebSocket client connected", "userId", userID)

		go client.WritePump()
		go client.ReadPump()
	}
}
