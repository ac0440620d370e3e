package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"rekindle/internal/logger"
	"rekindle/internal/utils"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// RequestLogger logs one line per request and feeds the request/error
// counters. The Authorization header is never logged.
func RequestLogger(metrics *utils.MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if metrics != nil {
				metrics.IncrementRequests()
				if rec.status >= http.StatusBadRequest {
					metrics.IncrementErrors()
				}
			}
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"authenticated", r.Header.Get("Authorization") != "",
			)
		})
	}
}

// Recoverer turns handler panics into a 500 response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic serving request", "path", r.URL.Path, "panic", rec)
				WriteError(w, utils.NewAppError(utils.ErrInternal, "Internal server error", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
