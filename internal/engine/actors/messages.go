package actors

import (
	"time"

	"rekindle/internal/models"

	"github.com/google/uuid"
)

// Community message operations
type (
	CreateMessageMsg struct {
		AuthorID     uuid.UUID
		AuthorEmail  string
		Role         models.Role
		Subcommunity models.SubcommunityID // may be empty for replies
		Title        *string
		Body         string
		ParentID     *uuid.UUID
	}

	ListMessagesMsg struct {
		Role         models.Role
		Subcommunity models.SubcommunityID
	}

	GetRepliesMsg struct {
		ParentID uuid.UUID
	}

	LikeMessageMsg struct {
		MessageID uuid.UUID
		UserID    uuid.UUID
	}

	FlagMessageMsg struct {
		MessageID uuid.UUID
		UserID    uuid.UUID
		Reason    models.FlagReason
	}

	GetCountsMsg struct{}
)

// MessageThread is a top-level post with its earliest replies attached.
type MessageThread struct {
	Message *models.Message
	Replies []*models.Message
}

// Statistics and catalog
type (
	GetStatsMsg struct {
		Subcommunity models.SubcommunityID
	}

	GetSubcommunitiesMsg struct{}
)

// Accounts
type (
	RegisterUserMsg struct {
		Email    string
		Password string
	}

	LoginMsg struct {
		Email    string
		Password string
	}
)

// LoginResult is returned on successful credential checks. Token issuance
// happens at the HTTP layer.
type LoginResult struct {
	UserID uuid.UUID
	Email  string
}

// Profile and photos
type (
	SaveDetailsMsg struct {
		Details *models.Details
	}

	GetDetailsMsg struct {
		UserID uuid.UUID
	}
)

// Reminders
type (
	CreateReminderMsg struct {
		UserID   uuid.UUID
		Reason   string
		Time     time.Time
		Schedule string
	}

	ListRemindersMsg struct {
		UserID  uuid.UUID
		DueOnly bool
	}

	MarkReminderDeliveredMsg struct {
		ReminderID uuid.UUID
		UserID     uuid.UUID
	}
)

// Event types published to live subscribers.
const (
	EventMessageCreated = "message.created"
	EventMessageLiked   = "message.liked"
	EventMessageFlagged = "message.flagged"
)

// EventPublisher receives community events after they are persisted.
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, interface{}) {}
