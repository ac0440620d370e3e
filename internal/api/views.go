// Package api holds the JSON shapes exchanged with clients.
package api

import (
	"encoding/base64"
	"time"

	"rekindle/internal/models"

	"github.com/google/uuid"
)

// ReplyView is a message as seen by a reader. Author emails are reduced to
// their display name and liker/flagger identities are never exposed.
type ReplyView struct {
	ID           uuid.UUID             `json:"id"`
	User         string                `json:"user"`
	Title        *string               `json:"title,omitempty"`
	Text         string                `json:"text"`
	Role         models.Role           `json:"role"`
	Subcommunity models.SubcommunityID `json:"subcommunity"`
	ParentID     *uuid.UUID            `json:"parentId,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
	LikeCount    int                   `json:"likeCount"`
	IsLiked      bool                  `json:"isLiked"`
	FlagCount    int                   `json:"flagCount"`
	IsFlagged    bool                  `json:"isFlagged"`
}

// MessageView is a top-level post with its embedded replies.
type MessageView struct {
	ReplyView
	Replies []ReplyView `json:"replies"`
}

// NewReplyView renders m for viewer; uuid.Nil means anonymous.
func NewReplyView(m *models.Message, viewer uuid.UUID) ReplyView {
	return ReplyView{
		ID:           m.ID,
		User:         m.DisplayName(),
		Title:        m.Title,
		Text:         m.Body,
		Role:         m.Role,
		Subcommunity: m.Subcommunity,
		ParentID:     m.ParentID,
		Timestamp:    m.CreatedAt,
		LikeCount:    m.LikeCount,
		IsLiked:      m.IsLikedBy(viewer),
		FlagCount:    m.FlagCount,
		IsFlagged:    m.IsFlagged,
	}
}

func NewReplyViews(msgs []*models.Message, viewer uuid.UUID) []ReplyView {
	out := make([]ReplyView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewReplyView(m, viewer))
	}
	return out
}

func NewMessageView(m *models.Message, replies []*models.Message, viewer uuid.UUID) MessageView {
	return MessageView{
		ReplyView: NewReplyView(m, viewer),
		Replies:   NewReplyViews(replies, viewer),
	}
}

// Request bodies
type (
	CreateMessageRequest struct {
		Text            string                `json:"text"`
		Role            models.Role           `json:"role"`
		Subcommunity    models.SubcommunityID `json:"subcommunity"`
		Title           *string               `json:"title,omitempty"`
		ParentMessageID *string               `json:"parentMessageId,omitempty"`
	}

	FlagRequest struct {
		Reason models.FlagReason `json:"reason"`
	}

	CredentialsRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	CreateReminderRequest struct {
		Reason   string    `json:"reason"`
		Time     time.Time `json:"time"`
		Schedule string    `json:"schedule,omitempty"`
	}

	GuardianInput struct {
		Name         string `json:"name"`
		Relationship string `json:"relationship"`
		Contact      string `json:"contact"`
	}
)

// Response bodies
type (
	CreateMessageResponse struct {
		Success   bool         `json:"success"`
		Message   *MessageView `json:"message"`
		MessageID uuid.UUID    `json:"messageId"`
	}

	MessagesResponse struct {
		Messages []MessageView `json:"messages"`
	}

	RepliesResponse struct {
		Replies []ReplyView `json:"replies"`
	}

	LikeResponse struct {
		Success   bool `json:"success"`
		LikeCount int  `json:"likeCount"`
		IsLiked   bool `json:"isLiked"`
	}

	FlagResponse struct {
		Success   bool `json:"success"`
		FlagCount int  `json:"flagCount"`
		IsFlagged bool `json:"isFlagged"`
	}

	SubcommunitiesResponse struct {
		Subcommunities []models.SubcommunityWithCounts `json:"subcommunities"`
	}

	SignupResponse struct {
		Success bool      `json:"success"`
		UserID  uuid.UUID `json:"userId"`
	}

	LoginResponse struct {
		Success bool      `json:"success"`
		Token   string    `json:"token"`
		UserID  uuid.UUID `json:"userId"`
	}

	RemindersResponse struct {
		Reminders []*models.Reminder `json:"reminders"`
	}

	GuardiansResponse struct {
		Guardians []GuardianView `json:"guardians"`
	}
)

// PhotoView carries image bytes as base64 for JSON clients.
type PhotoView struct {
	Data        string `json:"data"`
	ContentType string `json:"contentType"`
}

type GuardianView struct {
	Name         string     `json:"name"`
	Relationship string     `json:"relationship"`
	Contact      string     `json:"contact"`
	Photo        *PhotoView `json:"photo"`
}

func NewGuardianViews(guardians []models.Guardian) []GuardianView {
	out := make([]GuardianView, 0, len(guardians))
	for _, g := range guardians {
		v := GuardianView{Name: g.Name, Relationship: g.Relationship, Contact: g.Contact}
		if g.Photo != nil && len(g.Photo.Data) > 0 {
			v.Photo = &PhotoView{
				Data:        base64.StdEncoding.EncodeToString(g.Photo.Data),
				ContentType: g.Photo.ContentType,
			}
		}
		out = append(out, v)
	}
	return out
}
