package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rekindle/internal/api"
	"rekindle/internal/config"
	"rekindle/internal/database"
	"rekindle/internal/models"
	"rekindle/internal/websocket"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.Type = "memory"
	cfg.Auth.JWTSecret = "integration-secret"
	cfg.RateLimit.RPS = 1000
	cfg.RateLimit.Burst = 1000
	return cfg
}

func postJSON(t *testing.T, url, token string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestIntegrationFlow(t *testing.T) {
	a, err := build(context.Background(), testConfig())
	require.NoError(t, err)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go a.hub.Run(hubCtx)
	defer func() {
		stopHub()
		a.engine.Stop()
	}()

	srv := httptest.NewServer(a.server.Router())
	defer srv.Close()

	// Step 1: sign up and log in
	creds := api.CredentialsRequest{Email: "user1@example.com", Password: "password123"}
	resp := postJSON(t, srv.URL+"/api/signup", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login api.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()

	// Step 2: subscribe to the live feed
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + login.Token
	conn, _, err := ws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Step 3: post and expect the event
	resp = postJSON(t, srv.URL+"/api/messages", login.Token, api.CreateMessageRequest{
		Text: "hello", Role: models.RolePatient, Subcommunity: "adhd",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev websocket.Event
	require.NoError(t, json.Unmarshal(bytes.SplitN(raw, []byte("\n"), 2)[0], &ev))
	assert.Equal(t, "message.created", ev.Type)
	assert.NotContains(t, string(raw), "user1@example.com")

	// Step 4: health and metrics
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestWebSocketRequiresToken(t *testing.T) {
	a, err := build(context.Background(), testConfig())
	require.NoError(t, err)
	defer a.engine.Stop()

	srv := httptest.NewServer(a.server.Router())
	defer srv.Close()

	_, resp, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBuildRejectsUnknownDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Type = "sqlite"
	_, err := build(context.Background(), cfg)
	assert.Error(t, err)
}

type closeRecorder struct {
	database.DBAdapter
	closed bool
}

func (c *closeRecorder) Close(ctx context.Context) error {
	c.closed = true
	return c.DBAdapter.Close(ctx)
}

func TestServeTearsDownWhenListenFails(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	a, err := build(context.Background(), testConfig())
	require.NoError(t, err)
	db := &closeRecorder{DBAdapter: a.db}
	a.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = a.serve(ctx, busy.Addr().String(), "memory")
	require.Error(t, err)
	assert.NoError(t, ctx.Err(), "serve should return on the listen error, not the deadline")
	assert.True(t, db.closed)
}

func TestServeTearsDownOnCancel(t *testing.T) {
	a, err := build(context.Background(), testConfig())
	require.NoError(t, err)
	db := &closeRecorder{DBAdapter: a.db}
	a.db = db

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.serve(ctx, "127.0.0.1:0", "memory"))
	assert.True(t, db.closed)
}
