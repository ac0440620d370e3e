package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Moderation and length policy for community messages.
const (
	FlagThreshold      = 3
	MaxTitleLength     = 100
	MaxPostBodyLength  = 1000
	MaxReplyBodyLength = 500

	// TopLevelPageSize caps a listing of top-level posts.
	TopLevelPageSize = 50
	// EmbeddedReplyLimit caps the replies attached to each listed post.
	EmbeddedReplyLimit = 10
)

// Message is a community post or a reply. Both share one shape; a reply is
// a message with a ParentID.
type Message struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	AuthorID     uuid.UUID      `json:"authorId" db:"author_id"`
	AuthorEmail  string         `json:"authorEmail" db:"author_email"`
	Role         Role           `json:"role" db:"role"`
	Subcommunity SubcommunityID `json:"subcommunity" db:"subcommunity"`
	Title        *string        `json:"title,omitempty" db:"title"`
	Body         string         `json:"text" db:"body"`
	ParentID     *uuid.UUID     `json:"parentId,omitempty" db:"parent_id"`
	CreatedAt    time.Time      `json:"timestamp" db:"created_at"`
	LikeCount    int            `json:"likeCount" db:"like_count"`
	LikedBy      []uuid.UUID    `json:"-" db:"-"`
	FlagCount    int            `json:"flagCount" db:"flag_count"`
	FlaggedBy    []FlagRecord   `json:"-" db:"-"`
	IsFlagged    bool           `json:"isFlagged" db:"is_flagged"`
	IsHidden     bool           `json:"isHidden" db:"is_hidden"`
}

// FlagRecord is one user's report against a message.
type FlagRecord struct {
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	Reason    FlagReason `json:"reason" db:"reason"`
	Timestamp time.Time  `json:"timestamp" db:"created_at"`
}

// IsReply reports whether the message hangs off another message.
func (m *Message) IsReply() bool {
	return m.ParentID != nil
}

// IsLikedBy reports whether userID currently likes the message.
func (m *Message) IsLikedBy(userID uuid.UUID) bool {
	if userID == uuid.Nil {
		return false
	}
	for _, id := range m.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// HasFlagFrom reports whether userID already flagged the message.
func (m *Message) HasFlagFrom(userID uuid.UUID) bool {
	for _, f := range m.FlaggedBy {
		if f.UserID == userID {
			return true
		}
	}
	return false
}

// DisplayName is the local part of the author's email.
func (m *Message) DisplayName() string {
	return DisplayNameFromEmail(m.AuthorEmail)
}

// DisplayNameFromEmail returns everything before the first '@'.
func DisplayNameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// MessageFilter narrows a top-level listing. Zero values mean "no filter".
type MessageFilter struct {
	Role          Role
	Subcommunity  SubcommunityID
	ExcludeHidden bool
	Limit         int
}

// LikeResult is the state of a message after a like toggle.
type LikeResult struct {
	LikeCount int  `json:"likeCount"`
	IsLiked   bool `json:"isLiked"`
}

// FlagResult is the state of a message after a flag.
type FlagResult struct {
	FlagCount int  `json:"flagCount"`
	IsFlagged bool `json:"isFlagged"`
}
