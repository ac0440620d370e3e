package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rekindle/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestTokenRoundTrip(t *testing.T) {
	auth := NewAuthenticator("secret", time.Hour)
	userID := uuid.New()

	token, err := auth.GenerateToken(userID, "ann@example.com")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ann@example.com", claims.Email)

	_, err = NewAuthenticator("other", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	auth := NewAuthenticator("secret", time.Hour)
	claims := &Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			Issuer:    tokenIssuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestRequired(t *testing.T) {
	auth := NewAuthenticator("secret", time.Hour)
	userID := uuid.New()
	var seen uuid.UUID
	h := auth.Required(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodPost, "/api/messages", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, utils.ErrUnauthorized, decodeError(t, rr).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		h(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, utils.ErrInvalidToken, decodeError(t, rr).Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.GenerateToken(userID, "x@example.com")
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		h(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, userID, seen)
	})
}

func TestOptional(t *testing.T) {
	auth := NewAuthenticator("secret", time.Hour)
	var authenticated bool
	h := auth.Optional(func(w http.ResponseWriter, r *http.Request) {
		_, authenticated = IdentityFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rr := httptest.NewRecorder()
	h(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, authenticated)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Limit(func(w http.ResponseWriter, r *http.Request) {})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{200, 200, http.StatusTooManyRequests}, codes)

	// a different key has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimiterIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Limit(func(w http.ResponseWriter, r *http.Request) {})

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rr := httptest.NewRecorder()
		h(rr, req)
		if rr.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
	assert.Len(t, rl.m, 1)
}

func TestRateLimiterTrustedProxy(t *testing.T) {
	rl := NewRateLimiter(1, 1, "10.0.0.0/8", "not-an-ip")
	require.Len(t, rl.trusted, 1)

	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"untrusted peer", "192.0.2.7:80", "203.0.113.1", "192.0.2.7"},
		{"trusted peer", "10.1.2.3:80", "203.0.113.1", "203.0.113.1"},
		{"rightmost untrusted hop", "10.1.2.3:80", "198.51.100.9, 203.0.113.1, 10.4.4.4", "203.0.113.1"},
		{"trusted peer without header", "10.1.2.3:80", "", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, rl.clientIP(req))
		})
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("ip:a"))
	assert.True(t, rl.Allow("ip:b"))
	assert.Len(t, rl.m, 2)

	now = now.Add(limiterIdleTTL / 2)
	rl.Allow("ip:b")

	now = now.Add(limiterIdleTTL/2 + sweepInterval)
	rl.Allow("ip:c")
	assert.NotContains(t, rl.m, "ip:a")
	assert.Contains(t, rl.m, "ip:b")
	assert.Contains(t, rl.m, "ip:c")
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, utils.NewDatabaseError("failed to query messages", errors.New("connection refused on 10.1.2.3")))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, "Internal server error", body.Error)
	assert.NotContains(t, rr.Body.String(), "10.1.2.3")

	rr = httptest.NewRecorder()
	WriteError(rr, utils.NewAppError(utils.ErrAlreadyFlagged, "You have already flagged this message", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "You have already flagged this message", decodeError(t, rr).Error)
}

func TestCORSPreflight(t *testing.T) {
	h := CORSMiddleware(DefaultCORSConfig([]string{"https://rekindle.app"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", "https://rekindle.app")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://rekindle.app", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerCountsErrors(t *testing.T) {
	metrics := utils.NewMetricsCollector(nil)
	h := RequestLogger(metrics)(Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Requests)
	assert.Equal(t, uint64(1), snap.Errors)
}
