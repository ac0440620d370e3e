package handlers

import (
	"net/http"

	"rekindle/internal/middleware"

	"github.com/gorilla/mux"
)

// Router builds the HTTP surface. Every route runs behind panic recovery,
// request logging and CORS; writes are also rate limited per user.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	auth, limit := s.Auth, s.Limiter.Limit

	r.HandleFunc("/health", s.HandleHealth()).Methods(http.MethodGet)
	if s.MetricsHandler != nil {
		r.Handle("/metrics", s.MetricsHandler).Methods(http.MethodGet)
	}
	r.HandleFunc("/ws", s.HandleWebSocket()).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()

	// Accounts
	apiRouter.HandleFunc("/signup", limit(s.HandleSignup())).Methods(http.MethodPost)
	apiRouter.HandleFunc("/login", limit(s.HandleLogin())).Methods(http.MethodPost)

	// Community
	apiRouter.HandleFunc("/messages", auth.Required(limit(s.HandleCreateMessage()))).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages", auth.Optional(s.HandleListMessages())).Methods(http.MethodGet)
	apiRouter.HandleFunc("/messages/{id}/replies", auth.Optional(s.HandleGetReplies())).Methods(http.MethodGet)
	apiRouter.HandleFunc("/messages/{id}/like", auth.Required(limit(s.HandleLikeMessage()))).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/{id}/flag", auth.Required(limit(s.HandleFlagMessage()))).Methods(http.MethodPost)
	apiRouter.HandleFunc("/subcommunities", s.HandleSubcommunities()).Methods(http.MethodGet)
	apiRouter.HandleFunc("/community/stats", s.HandleCommunityStats()).Methods(http.MethodGet)

	// Profile
	apiRouter.HandleFunc("/details", auth.Required(limit(s.HandleSaveDetails()))).Methods(http.MethodPost)
	apiRouter.HandleFunc("/family-photo", auth.Required(s.HandleFamilyPhoto())).Methods(http.MethodGet)
	apiRouter.HandleFunc("/guardians", auth.Required(s.HandleGuardians())).Methods(http.MethodGet)

	// Reminders
	apiRouter.HandleFunc("/reminders", auth.Required(limit(s.HandleCreateReminder()))).Methods(http.MethodPost)
	apiRouter.HandleFunc("/reminders", auth.Required(s.HandleListReminders())).Methods(http.MethodGet)
	apiRouter.HandleFunc("/reminders/{id}/delivered", auth.Required(s.HandleReminderDelivered())).Methods(http.MethodPost)

	var h http.Handler = r
	h = middleware.Recoverer(h)
	h = middleware.RequestLogger(s.Metrics)(h)
	h = middleware.CORSMiddleware(middleware.DefaultCORSConfig(s.AllowedOrigins))(h)
	return h
}
