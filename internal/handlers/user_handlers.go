package handlers

import (
	"net/http"

	"rekindle/internal/api"
	"rekindle/internal/engine/actors"
	"rekindle/internal/logger"
	"rekindle/internal/middleware"
	"rekindle/internal/models"
	"rekindle/internal/utils"
)

// HandleSignup handles requests to register a new user
func (s *Server) HandleSignup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CredentialsRequest
		if err := decodeJSON(r, &req); err != nil {
			middleware.WriteError(w, err)
			return
		}

		result, err := s.ask(s.Engine.GetUserSupervisor(), &actors.RegisterUserMsg{
			Email:    req.Email,
			Password: req.Password,
		}, "users")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		user, ok := result.(*models.User)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}
		middleware.WriteJSON(w, http.StatusOK, api.SignupResponse{Success: true, UserID: user.ID})
	}
}

// HandleLogin checks credentials and issues a bearer token.
func (s *Server) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CredentialsRequest
		if err := decodeJSON(r, &req); err != nil {
			middleware.WriteError(w, err)
			return
		}

		result, err := s.ask(s.Engine.GetUserSupervisor(), &actors.LoginMsg{
			Email:    req.Email,
			Password: req.Password,
		}, "users")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		login, ok := result.(*actors.LoginResult)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}

		token, err := s.Auth.GenerateToken(login.UserID, login.Email)
		if err != nil {
			logger.Error("Failed to generate token", "userId", login.UserID, "error", err)
			middleware.WriteError(w, utils.NewAppError(utils.ErrInternal, "Failed to generate auth token", err))
			return
		}
		middleware.WriteJSON(w, http.StatusOK, api.LoginResponse{Success: true, Token: token, UserID: login.UserID})
	}
}
