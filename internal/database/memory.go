// internal/database/memory.go
package database

import (
	"context"
	"sort"
	"strings"
	"sync"

	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/google/uuid"
)

// MemoryDB keeps everything in process. It backs tests and single-node demos;
// all reads return copies so callers never share state with the store.
type MemoryDB struct {
	mu sync.RWMutex

	users       map[uuid.UUID]*models.User
	usersByMail map[string]uuid.UUID

	messages map[uuid.UUID]*storedMessage
	seq      uint64

	details   map[uuid.UUID]*models.Details // keyed by user
	reminders map[uuid.UUID]*models.Reminder
}

type storedMessage struct {
	msg *models.Message
	seq uint64
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:       make(map[uuid.UUID]*models.User),
		usersByMail: make(map[string]uuid.UUID),
		messages:    make(map[uuid.UUID]*storedMessage),
		details:     make(map[uuid.UUID]*models.Details),
		reminders:   make(map[uuid.UUID]*models.Reminder),
	}
}

func (m *MemoryDB) Ping(ctx context.Context) error  { return ctx.Err() }
func (m *MemoryDB) Close(ctx context.Context) error { return nil }

// --- Users ---

func (m *MemoryDB) SaveUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(user.Email)
	if id, ok := m.usersByMail[key]; ok && id != user.ID {
		return utils.NewAppError(utils.ErrDuplicate, "user already exists", nil)
	}
	u := *user
	m.users[user.ID] = &u
	m.usersByMail[key] = user.ID
	return nil
}

func (m *MemoryDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, utils.NewNotFoundError("user not found")
	}
	out := *u
	return &out, nil
}

func (m *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usersByMail[strings.ToLower(email)]
	if !ok {
		return nil, utils.NewNotFoundError("user not found")
	}
	out := *m.users[id]
	return &out, nil
}

// --- Messages ---

func (m *MemoryDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.messages[msg.ID]; exists {
		return utils.NewAppError(utils.ErrDuplicate, "message already exists", nil)
	}
	m.seq++
	m.messages[msg.ID] = &storedMessage{msg: cloneMessage(msg), seq: m.seq}
	return nil
}

func (m *MemoryDB) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sm, ok := m.messages[id]
	if !ok {
		return nil, utils.NewNotFoundError("Message not found")
	}
	return cloneMessage(sm.msg), nil
}

func (m *MemoryDB) GetTopLevelMessages(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*storedMessage
	for _, sm := range m.messages {
		msg := sm.msg
		if msg.IsReply() {
			continue
		}
		if filter.Role != "" && msg.Role != filter.Role {
			continue
		}
		if filter.Subcommunity != "" && msg.Subcommunity != filter.Subcommunity {
			continue
		}
		if filter.ExcludeHidden && msg.IsHidden {
			continue
		}
		matched = append(matched, sm)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.After(b.msg.CreatedAt)
		}
		return a.seq > b.seq
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*models.Message, len(matched))
	for i, sm := range matched {
		out[i] = cloneMessage(sm.msg)
	}
	return out, nil
}

func (m *MemoryDB) GetReplies(ctx context.Context, parentID uuid.UUID, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*storedMessage
	for _, sm := range m.messages {
		if sm.msg.ParentID != nil && *sm.msg.ParentID == parentID {
			matched = append(matched, sm)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		return a.seq < b.seq
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*models.Message, len(matched))
	for i, sm := range matched {
		out[i] = cloneMessage(sm.msg)
	}
	return out, nil
}

func (m *MemoryDB) CountMessages(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages), nil
}

func (m *MemoryDB) ToggleLike(ctx context.Context, messageID, userID uuid.UUID) (*models.LikeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.messages[messageID]
	if !ok {
		return nil, utils.NewNotFoundError("Message not found")
	}
	msg := sm.msg

	for i, id := range msg.LikedBy {
		if id == userID {
			msg.LikedBy = append(msg.LikedBy[:i], msg.LikedBy[i+1:]...)
			msg.LikeCount = max(msg.LikeCount-1, 0)
			return &models.LikeResult{LikeCount: msg.LikeCount, IsLiked: false}, nil
		}
	}
	msg.LikedBy = append(msg.LikedBy, userID)
	msg.LikeCount++
	return &models.LikeResult{LikeCount: msg.LikeCount, IsLiked: true}, nil
}

func (m *MemoryDB) FlagMessage(ctx context.Context, messageID uuid.UUID, flag models.FlagRecord) (*models.FlagResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.messages[messageID]
	if !ok {
		return nil, utils.NewNotFoundError("Message not found")
	}
	msg := sm.msg
	if msg.HasFlagFrom(flag.UserID) {
		return nil, utils.NewAppError(utils.ErrAlreadyFlagged, "You have already flagged this message", nil)
	}

	msg.FlaggedBy = append(msg.FlaggedBy, flag)
	msg.FlagCount++
	if msg.FlagCount >= models.FlagThreshold {
		msg.IsFlagged = true
		msg.IsHidden = true
	}
	return &models.FlagResult{FlagCount: msg.FlagCount, IsFlagged: msg.IsFlagged}, nil
}

// --- Statistics ---

func (m *MemoryDB) GetCommunityStats(ctx context.Context, subcommunity models.SubcommunityID) (*models.CommunityStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.CommunityStats{}
	authors := make(map[uuid.UUID]struct{})
	roles := make(map[models.Role]int)
	for _, sm := range m.messages {
		msg := sm.msg
		if subcommunity != "" && msg.Subcommunity != subcommunity {
			continue
		}
		authors[msg.AuthorID] = struct{}{}
		if msg.IsReply() {
			stats.TotalReplies++
			continue
		}
		stats.TotalMessages++
		roles[msg.Role]++
	}
	stats.TotalUsers = len(authors)
	stats.RoleStats = completeRoleStats(roles)

	if subcommunity == "" {
		stats.SubcommunityStats = catalogCounts(m.subcommunityCountsLocked())
	}
	return stats, nil
}

func (m *MemoryDB) GetSubcommunityCounts(ctx context.Context) ([]models.SubcommunityCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return catalogCounts(m.subcommunityCountsLocked()), nil
}

func (m *MemoryDB) subcommunityCountsLocked() []models.SubcommunityCounts {
	counts := make(map[models.SubcommunityID]int)
	authors := make(map[models.SubcommunityID]map[uuid.UUID]struct{})
	for _, sm := range m.messages {
		sub := sm.msg.Subcommunity
		counts[sub]++
		if authors[sub] == nil {
			authors[sub] = make(map[uuid.UUID]struct{})
		}
		authors[sub][sm.msg.AuthorID] = struct{}{}
	}

	out := make([]models.SubcommunityCounts, 0, len(counts))
	for sub, n := range counts {
		out = append(out, models.SubcommunityCounts{ID: sub, MessageCount: n, UserCount: len(authors[sub])})
	}
	return out
}

// --- Details ---

func (m *MemoryDB) SaveDetails(ctx context.Context, details *models.Details) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := *details
	d.Guardians = append([]models.Guardian(nil), details.Guardians...)
	if existing, ok := m.details[details.UserID]; ok {
		d.ID = existing.ID
		d.CreatedAt = existing.CreatedAt
		details.ID, details.CreatedAt = d.ID, d.CreatedAt
	}
	m.details[details.UserID] = &d
	return nil
}

func (m *MemoryDB) GetDetails(ctx context.Context, userID uuid.UUID) (*models.Details, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.details[userID]
	if !ok {
		return nil, utils.NewNotFoundError("details not found")
	}
	out := *d
	out.Guardians = append([]models.Guardian(nil), d.Guardians...)
	return &out, nil
}

// --- Reminders ---

func (m *MemoryDB) SaveReminder(ctx context.Context, reminder *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := *reminder
	m.reminders[reminder.ID] = &r
	return nil
}

func (m *MemoryDB) GetReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reminders[id]
	if !ok {
		return nil, utils.NewNotFoundError("reminder not found")
	}
	out := *r
	return &out, nil
}

func (m *MemoryDB) GetRemindersByUser(ctx context.Context, userID uuid.UUID) ([]*models.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Reminder, 0)
	for _, r := range m.reminders {
		if r.UserID == userID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (m *MemoryDB) UpdateReminder(ctx context.Context, reminder *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reminders[reminder.ID]; !ok {
		return utils.NewNotFoundError("reminder not found")
	}
	r := *reminder
	m.reminders[reminder.ID] = &r
	return nil
}

func cloneMessage(msg *models.Message) *models.Message {
	c := *msg
	if msg.Title != nil {
		t := *msg.Title
		c.Title = &t
	}
	if msg.ParentID != nil {
		p := *msg.ParentID
		c.ParentID = &p
	}
	c.LikedBy = append([]uuid.UUID(nil), msg.LikedBy...)
	c.FlaggedBy = append([]models.FlagRecord(nil), msg.FlaggedBy...)
	return &c
}
