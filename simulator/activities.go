package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rekindle/internal/api"
	"rekindle/internal/logger"
	"rekindle/internal/models"

	"github.com/google/uuid"
)

var flagReasons = []models.FlagReason{
	models.FlagInappropriate, models.FlagSpam, models.FlagHarassment, models.FlagOther,
}

// SimulateActivities runs the post, reply, like and flag loops until the
// simulation time elapses or ctx is cancelled. Replies, likes and flags
// wait for the first post.
func (s *EnhancedSimulator) SimulateActivities(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SimulationTime)
	defer cancel()

	postsAvailable := make(chan struct{})
	done := make(chan struct{}, 4)

	go s.loop(ctx, s.config.PostFrequency, nil, done, func(u *SimulatedUser) error {
		err := s.simulatePost(ctx, u)
		if err == nil {
			s.signalPosts(postsAvailable)
		}
		return err
	})
	go s.loop(ctx, s.config.ReplyFrequency, postsAvailable, done, func(u *SimulatedUser) error {
		return s.simulateReply(ctx, u)
	})
	go s.loop(ctx, s.config.LikeFrequency, postsAvailable, done, func(u *SimulatedUser) error {
		return s.simulateLike(ctx, u)
	})
	go s.loop(ctx, s.config.FlagFrequency, postsAvailable, done, func(u *SimulatedUser) error {
		return s.simulateFlag(ctx, u)
	})

	for i := 0; i < 4; i++ {
		<-done
	}
	logger.Info("Simulation finished", "elapsed", time.Since(s.stats.StartTime))
}

func (s *EnhancedSimulator) signalPosts(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// loop fires action for a random user at a rate derived from the
// per-user hourly frequency. A zero frequency disables the loop.
func (s *EnhancedSimulator) loop(ctx context.Context, perUserHour float64, gate <-chan struct{}, done chan<- struct{}, action func(*SimulatedUser) error) {
	defer func() { done <- struct{}{} }()
	if perUserHour <= 0 || len(s.users) == 0 {
		return
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return
		}
	}

	interval := time.Duration(float64(time.Hour) / (perUserHour * float64(len(s.users))))
	if interval < 5*time.Millisecond {
		interval = 5 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := action(s.randomUser()); err != nil && ctx.Err() == nil {
				logger.Debug("Simulated action failed", "error", err)
			}
		}
	}
}

func (s *EnhancedSimulator) randomUser() *SimulatedUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[s.rng.Intn(len(s.users))]
}

func (s *EnhancedSimulator) randomPost() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.posts) == 0 {
		return uuid.Nil, false
	}
	return s.posts[s.rng.Intn(len(s.posts))], true
}

// pickSubcommunity draws from the catalog with a Zipf skew so the first
// entries receive most of the traffic.
func (s *EnhancedSimulator) pickSubcommunity() models.SubcommunityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog[s.zipf.Uint64()].ID
}

func (s *EnhancedSimulator) simulatePost(ctx context.Context, u *SimulatedUser) error {
	sub := s.pickSubcommunity()
	title := fmt.Sprintf("Update from a %s", u.Role)
	req := api.CreateMessageRequest{
		Text:         fmt.Sprintf("Sharing how things are going at %s", time.Now().Format(time.Kitchen)),
		Role:         u.Role,
		Subcommunity: sub,
		Title:        &title,
	}

	body, err := s.makeRequest(ctx, "POST", "/api/messages", u.Token, req)
	if err != nil {
		return err
	}
	var resp api.CreateMessageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.posts = append(s.posts, resp.MessageID)
	s.bySub[sub]++
	s.mu.Unlock()

	s.stats.mu.Lock()
	s.stats.TotalPosts++
	s.stats.mu.Unlock()
	return nil
}

func (s *EnhancedSimulator) simulateReply(ctx context.Context, u *SimulatedUser) error {
	parent, ok := s.randomPost()
	if !ok {
		return nil
	}
	parentID := parent.String()
	req := api.CreateMessageRequest{
		Text:            "Thank you for sharing, we are going through the same.",
		Role:            u.Role,
		ParentMessageID: &parentID,
	}
	if _, err := s.makeRequest(ctx, "POST", "/api/messages", u.Token, req); err != nil {
		return err
	}

	s.stats.mu.Lock()
	s.stats.TotalReplies++
	s.stats.mu.Unlock()
	return nil
}

func (s *EnhancedSimulator) simulateLike(ctx context.Context, u *SimulatedUser) error {
	id, ok := s.randomPost()
	if !ok {
		return nil
	}
	if _, err := s.makeRequest(ctx, "POST", "/api/messages/"+id.String()+"/like", u.Token, nil); err != nil {
		return err
	}

	s.stats.mu.Lock()
	s.stats.TotalLikes++
	s.stats.mu.Unlock()
	return nil
}

// simulateFlag skips posts the user already flagged since the server
// rejects repeat flags.
func (s *EnhancedSimulator) simulateFlag(ctx context.Context, u *SimulatedUser) error {
	id, ok := s.randomPost()
	if !ok {
		return nil
	}
	s.mu.Lock()
	if u.flagged[id] {
		s.mu.Unlock()
		return nil
	}
	u.flagged[id] = true
	reason := flagReasons[s.rng.Intn(len(flagReasons))]
	s.mu.Unlock()

	req := api.FlagRequest{Reason: reason}
	if _, err := s.makeRequest(ctx, "POST", "/api/messages/"+id.String()+"/flag", u.Token, req); err != nil {
		return err
	}

	s.stats.mu.Lock()
	s.stats.TotalFlags++
	s.stats.mu.Unlock()
	return nil
}
