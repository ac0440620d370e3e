package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rekindle/internal/config"
	"rekindle/internal/database"
	"rekindle/internal/engine"
	"rekindle/internal/middleware"
	"rekindle/internal/utils"
	"rekindle/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Metrics        *utils.MetricsCollector
	Hub            *websocket.Hub
	DB             database.DBAdapter
	Auth           *middleware.Authenticator
	Limiter        *middleware.RateLimiter
	RequestTimeout time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string

	// MetricsHandler serves /metrics; nil disables the endpoint.
	MetricsHandler http.Handler
}

// NewServer creates a new Server instance with the given components
func NewServer(
	cfg *config.Config,
	system *actor.ActorSystem,
	eng *engine.Engine,
	metrics *utils.MetricsCollector,
	hub *websocket.Hub,
	db database.DBAdapter,
) *Server {
	return &Server{
		System:         system,
		Context:        system.Root,
		Engine:         eng,
		Metrics:        metrics,
		Hub:            hub,
		DB:             db,
		Auth:           middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter:        middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.TrustedProxies...),
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

// ask sends msg to pid and unwraps error replies. Actors answer with either
// a result value or an error.
func (s *Server) ask(pid *actor.PID, msg interface{}, actorName string) (interface{}, error) {
	result, err := s.Context.RequestFuture(pid, msg, s.RequestTimeout).Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError(actorName, err)
	}
	if e, ok := result.(error); ok {
		return nil, e
	}
	return result, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return utils.NewInvalidInputError("Invalid request body")
	}
	return nil
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, utils.NewInvalidInputError("Invalid " + what + " id")
	}
	return id, nil
}

// viewerID is the caller's id, or uuid.Nil for anonymous requests.
func viewerID(r *http.Request) uuid.UUID {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}

func unexpected(result interface{}) error {
	return utils.NewAppError(utils.ErrInternal, "Internal server error", fmt.Errorf("unexpected actor response %T", result))
}
