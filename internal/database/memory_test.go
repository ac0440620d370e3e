package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessage(author uuid.UUID, sub models.SubcommunityID, role models.Role, parent *uuid.UUID, at time.Time) *models.Message {
	return &models.Message{
		ID:           uuid.New(),
		AuthorID:     author,
		AuthorEmail:  "someone@example.com",
		Role:         role,
		Subcommunity: sub,
		Body:         "hello",
		ParentID:     parent,
		CreatedAt:    at,
	}
}

func TestMemoryDBUsers(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	u := &models.User{ID: uuid.New(), Email: "jane@example.com", HashedPassword: "x"}
	require.NoError(t, db.SaveUser(ctx, u))

	got, err := db.GetUserByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	err = db.SaveUser(ctx, &models.User{ID: uuid.New(), Email: "jane@example.com"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrDuplicate))

	_, err = db.GetUser(ctx, uuid.New())
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestMemoryDBTopLevelOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	author := uuid.New()
	base := time.Now()

	var ids []uuid.UUID
	for i := 0; i < 60; i++ {
		sub := models.SubcommunityID("adhd")
		if i%2 == 1 {
			sub = "dyslexia"
		}
		m := newMessage(author, sub, models.RolePatient, nil, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, db.SaveMessage(ctx, m))
		ids = append(ids, m.ID)
	}
	parent := ids[0]
	require.NoError(t, db.SaveMessage(ctx, newMessage(author, "adhd", models.RoleGuardian, &parent, base)))

	all, err := db.GetTopLevelMessages(ctx, models.MessageFilter{Limit: models.TopLevelPageSize})
	require.NoError(t, err)
	assert.Len(t, all, 50)
	assert.Equal(t, ids[59], all[0].ID, "newest first")
	for _, m := range all {
		assert.False(t, m.IsReply())
	}

	adhd, err := db.GetTopLevelMessages(ctx, models.MessageFilter{Subcommunity: "adhd", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, adhd, 30)

	guardians, err := db.GetTopLevelMessages(ctx, models.MessageFilter{Role: models.RoleGuardian})
	require.NoError(t, err)
	assert.Empty(t, guardians, "the only guardian message is a reply")
}

func TestMemoryDBReplies(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	author := uuid.New()
	base := time.Now()

	post := newMessage(author, "adhd", models.RolePatient, nil, base)
	require.NoError(t, db.SaveMessage(ctx, post))

	// Saved out of order to check sorting.
	for i := 14; i >= 0; i-- {
		r := newMessage(author, "adhd", models.RoleGuardian, &post.ID, base.Add(time.Duration(i+1)*time.Minute))
		r.Body = fmt.Sprintf("reply %d", i)
		require.NoError(t, db.SaveMessage(ctx, r))
	}

	capped, err := db.GetReplies(ctx, post.ID, models.EmbeddedReplyLimit)
	require.NoError(t, err)
	require.Len(t, capped, 10)
	assert.Equal(t, "reply 0", capped[0].Body)
	assert.Equal(t, "reply 9", capped[9].Body)

	full, err := db.GetReplies(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Len(t, full, 15)
	for i := 1; i < len(full); i++ {
		assert.False(t, full[i].CreatedAt.Before(full[i-1].CreatedAt))
	}
}

func TestMemoryDBToggleLike(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	m := newMessage(uuid.New(), "adhd", models.RolePatient, nil, time.Now())
	require.NoError(t, db.SaveMessage(ctx, m))
	u1, u2 := uuid.New(), uuid.New()

	res, err := db.ToggleLike(ctx, m.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{LikeCount: 1, IsLiked: true}, *res)

	res, err = db.ToggleLike(ctx, m.ID, u2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.LikeCount)

	res, err = db.ToggleLike(ctx, m.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{LikeCount: 1, IsLiked: false}, *res)

	stored, err := db.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.LikeCount, len(stored.LikedBy))
	assert.True(t, stored.IsLikedBy(u2))

	_, err = db.ToggleLike(ctx, uuid.New(), u1)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestMemoryDBConcurrentLikesKeepCountInSync(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	m := newMessage(uuid.New(), "adhd", models.RolePatient, nil, time.Now())
	require.NoError(t, db.SaveMessage(ctx, m))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = db.ToggleLike(ctx, m.ID, uuid.New())
		}()
	}
	wg.Wait()

	stored, err := db.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.LikeCount)
	assert.Len(t, stored.LikedBy, 50)
}

func TestMemoryDBFlagThreshold(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	m := newMessage(uuid.New(), "adhd", models.RolePatient, nil, time.Now())
	require.NoError(t, db.SaveMessage(ctx, m))

	flag := func(u uuid.UUID) (*models.FlagResult, error) {
		return db.FlagMessage(ctx, m.ID, models.FlagRecord{UserID: u, Reason: models.FlagSpam, Timestamp: time.Now()})
	}

	first := uuid.New()
	res, err := flag(first)
	require.NoError(t, err)
	assert.Equal(t, models.FlagResult{FlagCount: 1, IsFlagged: false}, *res)

	_, err = flag(first)
	assert.True(t, utils.IsErrorCode(err, utils.ErrAlreadyFlagged))

	res, err = flag(uuid.New())
	require.NoError(t, err)
	assert.False(t, res.IsFlagged)

	res, err = flag(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.FlagResult{FlagCount: 3, IsFlagged: true}, *res)

	res, err = flag(uuid.New())
	require.NoError(t, err)
	assert.True(t, res.IsFlagged)

	stored, err := db.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.FlagCount)
	assert.Len(t, stored.FlaggedBy, 4)
	assert.True(t, stored.IsHidden)

	hidden, err := db.GetTopLevelMessages(ctx, models.MessageFilter{ExcludeHidden: true})
	require.NoError(t, err)
	assert.Empty(t, hidden)

	_, err = db.FlagMessage(ctx, uuid.New(), models.FlagRecord{UserID: first, Reason: models.FlagSpam})
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestMemoryDBStats(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	p1 := newMessage(alice, "adhd", models.RolePatient, nil, now)
	p2 := newMessage(bob, "adhd", models.RoleGuardian, nil, now)
	p3 := newMessage(carol, "dyslexia", models.RolePatient, nil, now)
	for _, m := range []*models.Message{p1, p2, p3} {
		require.NoError(t, db.SaveMessage(ctx, m))
	}
	require.NoError(t, db.SaveMessage(ctx, newMessage(carol, "adhd", models.RoleCaretaker, &p1.ID, now)))

	stats, err := db.GetCommunityStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalMessages)
	assert.Equal(t, 1, stats.TotalReplies)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, []models.RoleCount{
		{Role: models.RolePatient, Count: 2},
		{Role: models.RoleGuardian, Count: 1},
		{Role: models.RoleCaretaker, Count: 0},
	}, stats.RoleStats)
	require.Len(t, stats.SubcommunityStats, 11)

	byID := map[models.SubcommunityID]models.SubcommunityCounts{}
	for _, c := range stats.SubcommunityStats {
		byID[c.ID] = c
	}
	assert.Equal(t, 3, byID["adhd"].MessageCount)
	assert.Equal(t, 3, byID["adhd"].UserCount)
	assert.Equal(t, 1, byID["dyslexia"].MessageCount)
	assert.Equal(t, 0, byID["motor-skills"].MessageCount)

	scoped, err := db.GetCommunityStats(ctx, "adhd")
	require.NoError(t, err)
	assert.Equal(t, 2, scoped.TotalMessages)
	assert.Equal(t, 1, scoped.TotalReplies)
	assert.Equal(t, 3, scoped.TotalUsers)
	assert.Nil(t, scoped.SubcommunityStats)
}

func TestMemoryDBEmptyCatalogCounts(t *testing.T) {
	counts, err := NewMemoryDB().GetSubcommunityCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 11)
	for _, c := range counts {
		assert.Zero(t, c.MessageCount)
		assert.Zero(t, c.UserCount)
	}
}

func TestMemoryDBDetailsUpsert(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	user := uuid.New()

	first := &models.Details{ID: uuid.New(), UserID: user, PatientName: "Sam", CreatedAt: time.Now()}
	require.NoError(t, db.SaveDetails(ctx, first))

	second := &models.Details{ID: uuid.New(), UserID: user, PatientName: "Samuel",
		Guardians: []models.Guardian{{Name: "Ana", Relationship: "Mother"}}}
	require.NoError(t, db.SaveDetails(ctx, second))
	assert.Equal(t, first.ID, second.ID, "upsert keeps the original id")

	got, err := db.GetDetails(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Samuel", got.PatientName)
	assert.Len(t, got.Guardians, 1)

	_, err = db.GetDetails(ctx, uuid.New())
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestMemoryDBReminders(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	user := uuid.New()
	now := time.Now()

	later := &models.Reminder{ID: uuid.New(), UserID: user, Reason: "walk", Time: now.Add(time.Hour)}
	sooner := &models.Reminder{ID: uuid.New(), UserID: user, Reason: "pills", Time: now.Add(time.Minute)}
	require.NoError(t, db.SaveReminder(ctx, later))
	require.NoError(t, db.SaveReminder(ctx, sooner))
	require.NoError(t, db.SaveReminder(ctx, &models.Reminder{ID: uuid.New(), UserID: uuid.New(), Time: now}))

	list, err := db.GetRemindersByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pills", list[0].Reason)

	sooner.Delivered = true
	require.NoError(t, db.UpdateReminder(ctx, sooner))
	got, err := db.GetReminder(ctx, sooner.ID)
	require.NoError(t, err)
	assert.True(t, got.Delivered)

	err = db.UpdateReminder(ctx, &models.Reminder{ID: uuid.New()})
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}
