package actors

import (
	stdctx "context"
	"strings"
	"time"
	"unicode/utf8"

	"rekindle/internal/database"
	"rekindle/internal/logger"
	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// CommunityActor owns writes and reads of community messages: posting,
// threaded listings, and the like/flag moderation counters.
type CommunityActor struct {
	db          database.DBAdapter
	metrics     *utils.MetricsCollector
	events      EventPublisher
	opTimeout   time.Duration
	hideFlagged bool
}

type CommunityOptions struct {
	OperationTimeout time.Duration
	HideFlagged      bool
	Events           EventPublisher
}

func NewCommunityActor(db database.DBAdapter, metrics *utils.MetricsCollector, opts CommunityOptions) actor.Actor {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 5 * time.Second
	}
	if opts.Events == nil {
		opts.Events = noopPublisher{}
	}
	return &CommunityActor{
		db:          db,
		metrics:     metrics,
		events:      opts.Events,
		opTimeout:   opts.OperationTimeout,
		hideFlagged: opts.HideFlagged,
	}
}

func (a *CommunityActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		logger.Debug("CommunityActor started")
	case *actor.Stopping:
		logger.Debug("CommunityActor stopping")
	case *CreateMessageMsg:
		a.handleCreateMessage(context, msg)
	case *ListMessagesMsg:
		a.handleListMessages(context, msg)
	case *GetRepliesMsg:
		a.handleGetReplies(context, msg)
	case *LikeMessageMsg:
		a.handleLike(context, msg)
	case *FlagMessageMsg:
		a.handleFlag(context, msg)
	case *GetCountsMsg:
		ctx, cancel := a.opContext()
		defer cancel()
		n, err := a.db.CountMessages(ctx)
		if err != nil {
			context.Respond(err)
			return
		}
		context.Respond(n)
	}
}

func (a *CommunityActor) opContext() (stdctx.Context, stdctx.CancelFunc) {
	return stdctx.WithTimeout(stdctx.Background(), a.opTimeout)
}

func (a *CommunityActor) handleCreateMessage(context actor.Context, msg *CreateMessageMsg) {
	startTime := time.Now()
	ctx, cancel := a.opContext()
	defer cancel()

	body := strings.TrimSpace(msg.Body)
	if body == "" {
		context.Respond(utils.NewInvalidInputError("Message text is required"))
		return
	}
	if !msg.Role.Valid() {
		context.Respond(utils.NewInvalidInputError("Valid role is required"))
		return
	}

	var title *string
	if msg.Title != nil {
		if t := strings.TrimSpace(*msg.Title); t != "" {
			if utf8.RuneCountInString(t) > models.MaxTitleLength {
				context.Respond(utils.NewInvalidInputError("Title must be 100 characters or fewer"))
				return
			}
			title = &t
		}
	}

	subcommunity := msg.Subcommunity
	maxBody := models.MaxPostBodyLength
	if msg.ParentID != nil {
		parent, err := a.db.GetMessage(ctx, *msg.ParentID)
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			context.Respond(utils.NewInvalidInputError("Parent message not found"))
			return
		}
		if err != nil {
			context.Respond(err)
			return
		}
		if subcommunity == "" {
			subcommunity = parent.Subcommunity
		}
		maxBody = models.MaxReplyBodyLength
	}
	if !subcommunity.Valid() {
		context.Respond(utils.NewInvalidInputError("Valid subcommunity is required"))
		return
	}
	if utf8.RuneCountInString(body) > maxBody {
		context.Respond(utils.NewInvalidInputError("Message text is too long"))
		return
	}

	newMessage := &models.Message{
		ID:           uuid.New(),
		AuthorID:     msg.AuthorID,
		AuthorEmail:  msg.AuthorEmail,
		Role:         msg.Role,
		Subcommunity: subcommunity,
		Title:        title,
		Body:         body,
		ParentID:     msg.ParentID,
		CreatedAt:    time.Now().UTC(),
		LikedBy:      []uuid.UUID{},
		FlaggedBy:    []models.FlagRecord{},
	}
	if err := a.db.SaveMessage(ctx, newMessage); err != nil {
		logger.Error("Failed to save message", "error", err)
		context.Respond(err)
		return
	}

	logger.Info("Message posted",
		"messageId", newMessage.ID,
		"role", newMessage.Role,
		"subcommunity", newMessage.Subcommunity,
		"reply", newMessage.IsReply(),
	)
	a.metrics.AddOperationLatency("create_message", time.Since(startTime))
	a.events.Publish(EventMessageCreated, map[string]interface{}{
		"id":           newMessage.ID,
		"user":         newMessage.DisplayName(),
		"role":         newMessage.Role,
		"subcommunity": newMessage.Subcommunity,
		"parentId":     newMessage.ParentID,
		"timestamp":    newMessage.CreatedAt,
	})
	context.Respond(newMessage)
}

// handleListMessages returns the newest top-level posts, each with its
// earliest replies. Unknown filter values are treated as absent.
func (a *CommunityActor) handleListMessages(context actor.Context, msg *ListMessagesMsg) {
	startTime := time.Now()
	ctx, cancel := a.opContext()
	defer cancel()

	filter := models.MessageFilter{
		ExcludeHidden: a.hideFlagged,
		Limit:         models.TopLevelPageSize,
	}
	if msg.Role.Valid() {
		filter.Role = msg.Role
	}
	if msg.Subcommunity.Valid() {
		filter.Subcommunity = msg.Subcommunity
	}

	posts, err := a.db.GetTopLevelMessages(ctx, filter)
	if err != nil {
		context.Respond(err)
		return
	}

	threads := make([]*MessageThread, 0, len(posts))
	for _, post := range posts {
		replies, err := a.db.GetReplies(ctx, post.ID, models.EmbeddedReplyLimit)
		if err != nil {
			context.Respond(err)
			return
		}
		threads = append(threads, &MessageThread{Message: post, Replies: replies})
	}

	a.metrics.AddOperationLatency("list_messages", time.Since(startTime))
	context.Respond(threads)
}

func (a *CommunityActor) handleGetReplies(context actor.Context, msg *GetRepliesMsg) {
	ctx, cancel := a.opContext()
	defer cancel()

	replies, err := a.db.GetReplies(ctx, msg.ParentID, 0)
	if err != nil {
		context.Respond(err)
		return
	}
	context.Respond(replies)
}

func (a *CommunityActor) handleLike(context actor.Context, msg *LikeMessageMsg) {
	startTime := time.Now()
	ctx, cancel := a.opContext()
	defer cancel()

	result, err := a.db.ToggleLike(ctx, msg.MessageID, msg.UserID)
	if err != nil {
		context.Respond(err)
		return
	}

	a.metrics.AddOperationLatency("like_message", time.Since(startTime))
	a.events.Publish(EventMessageLiked, map[string]interface{}{
		"messageId": msg.MessageID,
		"likeCount": result.LikeCount,
	})
	context.Respond(result)
}

func (a *CommunityActor) handleFlag(context actor.Context, msg *FlagMessageMsg) {
	startTime := time.Now()
	ctx, cancel := a.opContext()
	defer cancel()

	if !msg.Reason.Valid() {
		context.Respond(utils.NewInvalidInputError("Valid flag reason is required"))
		return
	}

	result, err := a.db.FlagMessage(ctx, msg.MessageID, models.FlagRecord{
		UserID:    msg.UserID,
		Reason:    msg.Reason,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		context.Respond(err)
		return
	}

	if result.IsFlagged {
		logger.Warn("Message reached flag threshold", "messageId", msg.MessageID, "flagCount", result.FlagCount)
	}
	a.metrics.AddOperationLatency("flag_message", time.Since(startTime))
	a.events.Publish(EventMessageFlagged, map[string]interface{}{
		"messageId": msg.MessageID,
		"flagCount": result.FlagCount,
		"isFlagged": result.IsFlagged,
	})
	context.Respond(result)
}
