package actors

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"rekindle/internal/database"
	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	kind string
	data interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind: eventType, data: data})
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.kind
	}
	return out
}

func request(t *testing.T, system *actor.ActorSystem, pid *actor.PID, msg interface{}) interface{} {
	t.Helper()
	result, err := system.Root.RequestFuture(pid, msg, 5*time.Second).Result()
	require.NoError(t, err)
	return result
}

func spawnCommunity(t *testing.T, db database.DBAdapter, opts CommunityOptions) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	metrics := utils.NewMetricsCollector(nil)
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewCommunityActor(db, metrics, opts)
	}))
	t.Cleanup(func() { system.Root.Stop(pid) })
	return system, pid
}

func post(t *testing.T, system *actor.ActorSystem, pid *actor.PID, author uuid.UUID, body string, sub models.SubcommunityID) *models.Message {
	t.Helper()
	result := request(t, system, pid, &CreateMessageMsg{
		AuthorID:     author,
		AuthorEmail:  "alice@example.com",
		Role:         models.RoleGuardian,
		Subcommunity: sub,
		Body:         body,
	})
	msg, ok := result.(*models.Message)
	require.True(t, ok, "unexpected result %#v", result)
	return msg
}

func assertAppError(t *testing.T, result interface{}, code string) *utils.AppError {
	t.Helper()
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected *AppError, got %#v", result)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestCommunityActor_CreatePost(t *testing.T) {
	events := &recordingPublisher{}
	system, pid := spawnCommunity(t, database.NewMemoryDB(), CommunityOptions{Events: events})

	title := "  Hello  "
	result := request(t, system, pid, &CreateMessageMsg{
		AuthorID:     uuid.New(),
		AuthorEmail:  "alice@example.com",
		Role:         models.RolePatient,
		Subcommunity: "adhd",
		Title:        &title,
		Body:         "  first post  ",
	})
	msg, ok := result.(*models.Message)
	require.True(t, ok)

	assert.Equal(t, "first post", msg.Body)
	require.NotNil(t, msg.Title)
	assert.Equal(t, "Hello", *msg.Title)
	assert.Nil(t, msg.ParentID)
	assert.Zero(t, msg.LikeCount)
	assert.Zero(t, msg.FlagCount)
	assert.False(t, msg.IsFlagged)
	assert.Equal(t, []string{EventMessageCreated}, events.kinds())
}

func TestCommunityActor_CreateValidation(t *testing.T) {
	system, pid := spawnCommunity(t, database.NewMemoryDB(), CommunityOptions{})
	long := strings.Repeat("x", models.MaxTitleLength+1)

	tests := []struct {
		name string
		msg  *CreateMessageMsg
		want string
	}{
		{"blank body", &CreateMessageMsg{Role: models.RolePatient, Subcommunity: "adhd", Body: "   "}, "Message text is required"},
		{"unknown role", &CreateMessageMsg{Role: "Doctor", Subcommunity: "adhd", Body: "hi"}, "Valid role is required"},
		{"unknown subcommunity", &CreateMessageMsg{Role: models.RolePatient, Subcommunity: "cooking", Body: "hi"}, "Valid subcommunity is required"},
		{"title too long", &CreateMessageMsg{Role: models.RolePatient, Subcommunity: "adhd", Body: "hi", Title: &long}, "Title must be 100 characters or fewer"},
		{"body too long", &CreateMessageMsg{Role: models.RolePatient, Subcommunity: "adhd", Body: strings.Repeat("y", models.MaxPostBodyLength+1)}, "Message text is too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := assertAppError(t, request(t, system, pid, tt.msg), utils.ErrInvalidInput)
			assert.Equal(t, tt.want, appErr.Message)
		})
	}

	count := request(t, system, pid, &GetCountsMsg{})
	assert.Equal(t, 0, count)
}

func TestCommunityActor_ReplyRules(t *testing.T) {
	db := database.NewMemoryDB()
	system, pid := spawnCommunity(t, db, CommunityOptions{})
	parent := post(t, system, pid, uuid.New(), "parent", "dyslexia")

	t.Run("missing parent persists nothing", func(t *testing.T) {
		ghost := uuid.New()
		result := request(t, system, pid, &CreateMessageMsg{
			AuthorID: uuid.New(), Role: models.RoleCaretaker, Body: "orphan", ParentID: &ghost,
		})
		appErr := assertAppError(t, result, utils.ErrInvalidInput)
		assert.Equal(t, "Parent message not found", appErr.Message)
		assert.Equal(t, 1, request(t, system, pid, &GetCountsMsg{}))
	})

	t.Run("inherits subcommunity", func(t *testing.T) {
		result := request(t, system, pid, &CreateMessageMsg{
			AuthorID: uuid.New(), Role: models.RoleCaretaker, Body: "reply", ParentID: &parent.ID,
		})
		reply, ok := result.(*models.Message)
		require.True(t, ok)
		assert.Equal(t, models.SubcommunityID("dyslexia"), reply.Subcommunity)
		require.NotNil(t, reply.ParentID)
		assert.Equal(t, parent.ID, *reply.ParentID)
	})

	t.Run("reply body limit", func(t *testing.T) {
		result := request(t, system, pid, &CreateMessageMsg{
			AuthorID: uuid.New(), Role: models.RoleCaretaker, ParentID: &parent.ID,
			Body: strings.Repeat("z", models.MaxReplyBodyLength+1),
		})
		assertAppError(t, result, utils.ErrInvalidInput)
	})
}

func TestCommunityActor_ListThreads(t *testing.T) {
	system, pid := spawnCommunity(t, database.NewMemoryDB(), CommunityOptions{})
	author := uuid.New()

	older := post(t, system, pid, author, "older", "adhd")
	time.Sleep(2 * time.Millisecond)
	newer := post(t, system, pid, author, "newer", "dyspraxia")
	for i := 0; i < models.EmbeddedReplyLimit+2; i++ {
		request(t, system, pid, &CreateMessageMsg{
			AuthorID: author, AuthorEmail: "bob@example.com", Role: models.RolePatient,
			Body: "r", ParentID: &older.ID,
		})
	}

	threads, ok := request(t, system, pid, &ListMessagesMsg{}).([]*MessageThread)
	require.True(t, ok)
	require.Len(t, threads, 2)
	assert.Equal(t, newer.ID, threads[0].Message.ID)
	assert.Equal(t, older.ID, threads[1].Message.ID)
	assert.Len(t, threads[1].Replies, models.EmbeddedReplyLimit)

	filtered, ok := request(t, system, pid, &ListMessagesMsg{Subcommunity: "adhd"}).([]*MessageThread)
	require.True(t, ok)
	require.Len(t, filtered, 1)
	assert.Equal(t, older.ID, filtered[0].Message.ID)

	// unknown filter values behave as if absent
	unfiltered, ok := request(t, system, pid, &ListMessagesMsg{Role: "Wizard", Subcommunity: "nope"}).([]*MessageThread)
	require.True(t, ok)
	assert.Len(t, unfiltered, 2)

	replies, ok := request(t, system, pid, &GetRepliesMsg{ParentID: older.ID}).([]*models.Message)
	require.True(t, ok)
	assert.Len(t, replies, models.EmbeddedReplyLimit+2)
}

func TestCommunityActor_LikeToggle(t *testing.T) {
	events := &recordingPublisher{}
	system, pid := spawnCommunity(t, database.NewMemoryDB(), CommunityOptions{Events: events})
	msg := post(t, system, pid, uuid.New(), "like me", "adhd")
	user := uuid.New()

	first, ok := request(t, system, pid, &LikeMessageMsg{MessageID: msg.ID, UserID: user}).(*models.LikeResult)
	require.True(t, ok)
	assert.Equal(t, models.LikeResult{LikeCount: 1, IsLiked: true}, *first)

	second, ok := request(t, system, pid, &LikeMessageMsg{MessageID: msg.ID, UserID: user}).(*models.LikeResult)
	require.True(t, ok)
	assert.Equal(t, models.LikeResult{LikeCount: 0, IsLiked: false}, *second)

	missing := request(t, system, pid, &LikeMessageMsg{MessageID: uuid.New(), UserID: user})
	assertAppError(t, missing, utils.ErrNotFound)

	assert.Equal(t, []string{EventMessageCreated, EventMessageLiked, EventMessageLiked}, events.kinds())
}

func TestCommunityActor_FlagThreshold(t *testing.T) {
	db := database.NewMemoryDB()
	system, pid := spawnCommunity(t, db, CommunityOptions{HideFlagged: true})
	msg := post(t, system, pid, uuid.New(), "questionable", "adhd")

	bad := request(t, system, pid, &FlagMessageMsg{MessageID: msg.ID, UserID: uuid.New(), Reason: "boring"})
	assertAppError(t, bad, utils.ErrInvalidInput)

	reporters := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	var last *models.FlagResult
	for i, u := range reporters {
		res, ok := request(t, system, pid, &FlagMessageMsg{MessageID: msg.ID, UserID: u, Reason: models.FlagSpam}).(*models.FlagResult)
		require.True(t, ok)
		assert.Equal(t, i+1, res.FlagCount)
		last = res
	}
	assert.True(t, last.IsFlagged)

	again := request(t, system, pid, &FlagMessageMsg{MessageID: msg.ID, UserID: reporters[0], Reason: models.FlagOther})
	appErr := assertAppError(t, again, utils.ErrAlreadyFlagged)
	assert.Equal(t, "You have already flagged this message", appErr.Message)

	stored, err := db.GetMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.FlagCount)

	threads, ok := request(t, system, pid, &ListMessagesMsg{}).([]*MessageThread)
	require.True(t, ok)
	assert.Empty(t, threads)
}
