package simulator

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"rekindle/internal/config"
	"rekindle/internal/database"
	"rekindle/internal/engine"
	"rekindle/internal/handlers"
	"rekindle/internal/models"
	"rekindle/internal/utils"
	"rekindle/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "sim-secret"
	cfg.RateLimit.RPS = 10000
	cfg.RateLimit.Burst = 10000

	db := database.NewMemoryDB()
	metrics := utils.NewMetricsCollector(nil)
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, db, metrics, engine.Options{Events: hub, PasswordHashCost: 4})
	srv := httptest.NewServer(handlers.NewServer(cfg, system, eng, metrics, hub, db).Router())
	t.Cleanup(func() {
		srv.Close()
		eng.Stop()
		cancel()
	})
	return srv
}

func TestSimulatorDrivesTraffic(t *testing.T) {
	srv := startServer(t)

	sim := NewEnhancedSimulator(SimConfig{
		NumUsers:       3,
		SimulationTime: 1500 * time.Millisecond,
		PostFrequency:  36000,
		ReplyFrequency: 36000,
		LikeFrequency:  36000,
		FlagFrequency:  3600,
		EngineURL:      srv.URL,
	})
	require.NoError(t, sim.Run(context.Background()))

	m := sim.GetMetrics()
	assert.Equal(t, 3, m.TotalUsers)
	assert.Positive(t, m.TotalPosts)
	assert.Positive(t, m.TotalReplies)
	assert.Positive(t, m.TotalLikes)
	assert.GreaterOrEqual(t, m.TotalRequests, int64(6))

	total := 0
	for sub, n := range m.PostsBySubgroup {
		assert.True(t, sub.Valid(), sub)
		total += n
	}
	assert.Equal(t, m.TotalPosts, total)
}

func TestSimulatorFailsWithoutServer(t *testing.T) {
	sim := NewEnhancedSimulator(SimConfig{
		NumUsers:       2,
		SimulationTime: 100 * time.Millisecond,
		EngineURL:      "http://127.0.0.1:1",
	})
	err := sim.Run(context.Background())
	require.Error(t, err)

	m := sim.GetMetrics()
	assert.Zero(t, m.TotalUsers)
	assert.Equal(t, m.TotalRequests, m.FailedRequests)
}

func TestPickSubcommunityStaysInCatalog(t *testing.T) {
	sim := NewEnhancedSimulator(SimConfig{})
	seen := make(map[models.SubcommunityID]int)
	for i := 0; i < 500; i++ {
		seen[sim.pickSubcommunity()]++
	}
	for sub := range seen {
		assert.True(t, sub.Valid(), sub)
	}
	first := models.Catalog()[0].ID
	last := models.Catalog()[len(models.Catalog())-1].ID
	assert.Greater(t, seen[first], seen[last])
}
