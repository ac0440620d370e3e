package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"rekindle/internal/api"
	"rekindle/internal/logger"
	"rekindle/internal/models"

	"github.com/google/uuid"
)

type SimConfig struct {
	NumUsers       int
	SimulationTime time.Duration
	// Frequencies are actions per user per hour.
	PostFrequency  float64
	ReplyFrequency float64
	LikeFrequency  float64
	FlagFrequency  float64
	// ZipfS skews subcommunity choice; must be > 1.
	ZipfS     float64
	Workers   int
	EngineURL string
	Password  string
}

type SimulationStats struct {
	mu               sync.RWMutex
	StartTime        time.Time
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	TotalPosts       int
	TotalReplies     int
	TotalLikes       int
	TotalFlags       int
	RequestLatencies []time.Duration
}

// SimulationMetrics is a snapshot of SimulationStats.
type SimulationMetrics struct {
	TotalUsers      int
	TotalRequests   int64
	FailedRequests  int64
	TotalPosts      int
	TotalReplies    int
	TotalLikes      int
	TotalFlags      int
	AverageLatency  time.Duration
	PostsBySubgroup map[models.SubcommunityID]int
	Elapsed         time.Duration
}

// SimulatedUser is an account driven by the simulator.
type SimulatedUser struct {
	ID      uuid.UUID
	Email   string
	Token   string
	Role    models.Role
	flagged map[uuid.UUID]bool
}

type EnhancedSimulator struct {
	config  SimConfig
	stats   *SimulationStats
	users   []*SimulatedUser
	posts   []uuid.UUID
	bySub   map[models.SubcommunityID]int
	catalog []models.Subcommunity
	client  *http.Client
	rng     *rand.Rand
	zipf    *rand.Zipf
	mu      sync.Mutex
}

func NewEnhancedSimulator(config SimConfig) *EnhancedSimulator {
	if config.Workers <= 0 {
		config.Workers = 5
	}
	if config.ZipfS <= 1 {
		config.ZipfS = 1.07
	}
	if config.Password == "" {
		config.Password = "simulated-password"
	}
	catalog := models.Catalog()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &EnhancedSimulator{
		config:  config,
		stats:   &SimulationStats{StartTime: time.Now()},
		bySub:   make(map[models.SubcommunityID]int),
		catalog: catalog,
		client:  &http.Client{Timeout: 10 * time.Second},
		rng:     rng,
		zipf:    rand.NewZipf(rng, config.ZipfS, 1, uint64(len(catalog)-1)),
	}
}

func (s *EnhancedSimulator) Run(ctx context.Context) error {
	logger.Info("Starting simulation", "users", s.config.NumUsers, "duration", s.config.SimulationTime)

	if err := s.createUsers(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if len(s.users) == 0 {
		return fmt.Errorf("no users could be created")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SimulateActivities(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()
	wg.Wait()
	return nil
}

// createUsers signs up and logs in NumUsers accounts with a bounded pool
// of workers.
func (s *EnhancedSimulator) createUsers(ctx context.Context) error {
	jobs := make(chan int)
	results := make(chan *SimulatedUser)
	var wg sync.WaitGroup

	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				user, err := s.registerUser(ctx, n)
				if err != nil {
					logger.Warn("User setup failed", "user", n, "error", err)
					continue
				}
				results <- user
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < s.config.NumUsers; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for u := range results {
		s.users = append(s.users, u)
	}
	logger.Info("Users ready", "count", len(s.users))
	return ctx.Err()
}

func (s *EnhancedSimulator) registerUser(ctx context.Context, n int) (*SimulatedUser, error) {
	email := fmt.Sprintf("sim_%d_%s@rekindle.test", n, uuid.NewString()[:8])
	creds := api.CredentialsRequest{Email: email, Password: s.config.Password}

	if _, err := s.makeRequest(ctx, http.MethodPost, "/api/signup", "", creds); err != nil {
		return nil, err
	}
	body, err := s.makeRequest(ctx, http.MethodPost, "/api/login", "", creds)
	if err != nil {
		return nil, err
	}
	var login api.LoginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		return nil, err
	}
	return &SimulatedUser{
		ID:      login.UserID,
		Email:   email,
		Token:   login.Token,
		Role:    models.Roles[n%len(models.Roles)],
		flagged: make(map[uuid.UUID]bool),
	}, nil
}

// makeRequest sends a JSON request and returns the body of a 2xx response.
func (s *EnhancedSimulator) makeRequest(ctx context.Context, method, endpoint, token string, data interface{}) ([]byte, error) {
	start := time.Now()
	var reader io.Reader
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordRequest(start, err)
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err == nil && resp.StatusCode >= 300 {
		err = fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, bytes.TrimSpace(body))
	}
	s.recordRequest(start, err)
	return body, err
}

func (s *EnhancedSimulator) recordRequest(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	s.stats.TotalRequests++
	if err != nil {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}
	s.stats.RequestLatencies = append(s.stats.RequestLatencies, time.Since(start))
}

func (s *EnhancedSimulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			logger.Info("Simulation progress",
				"requests", m.TotalRequests,
				"failed", m.FailedRequests,
				"posts", m.TotalPosts,
				"replies", m.TotalReplies,
				"likes", m.TotalLikes,
				"flags", m.TotalFlags,
				"avgLatency", m.AverageLatency,
			)
		}
	}
}

func (s *EnhancedSimulator) GetMetrics() SimulationMetrics {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	var avg time.Duration
	if n := len(s.stats.RequestLatencies); n > 0 {
		var total time.Duration
		for _, l := range s.stats.RequestLatencies {
			total += l
		}
		avg = total / time.Duration(n)
	}

	s.mu.Lock()
	bySub := make(map[models.SubcommunityID]int, len(s.bySub))
	for k, v := range s.bySub {
		bySub[k] = v
	}
	users := len(s.users)
	s.mu.Unlock()

	return SimulationMetrics{
		TotalUsers:      users,
		TotalRequests:   s.stats.TotalRequests,
		FailedRequests:  s.stats.FailedRequests,
		TotalPosts:      s.stats.TotalPosts,
		TotalReplies:    s.stats.TotalReplies,
		TotalLikes:      s.stats.TotalLikes,
		TotalFlags:      s.stats.TotalFlags,
		AverageLatency:  avg,
		PostsBySubgroup: bySub,
		Elapsed:         time.Since(s.stats.StartTime),
	}
}
