package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"rekindle/internal/logger"
	"rekindle/internal/utils"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// WriteError maps err to a status and writes an ErrorResponse. Server-side
// failures are logged with their cause but only a generic message is sent.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		appErr = utils.NewAppError(utils.ErrInternal, "Internal server error", err)
	}

	status := utils.AppErrorToHTTPStatus(appErr.Code)
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "code", appErr.Code, "error", appErr)
		message = "Internal server error"
	}
	WriteJSON(w, status, ErrorResponse{Error: message, Code: appErr.Code})
}
