package handlers

import (
	"net/http"
	"strings"

	"rekindle/internal/api"
	"rekindle/internal/engine/actors"
	"rekindle/internal/middleware"
	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// HandleCreateMessage creates a top-level post, or a reply when
// parentMessageId is set.
func (s *Server) HandleCreateMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			middleware.WriteError(w, utils.NewUnauthorizedError("Authorization header required"))
			return
		}

		var req api.CreateMessageRequest
		if err := decodeJSON(r, &req); err != nil {
			middleware.WriteError(w, err)
			return
		}

		msg := &actors.CreateMessageMsg{
			AuthorID:     id.UserID,
			AuthorEmail:  id.Email,
			Role:         req.Role,
			Subcommunity: req.Subcommunity,
			Title:        req.Title,
			Body:         req.Text,
		}
		if req.ParentMessageID != nil && strings.TrimSpace(*req.ParentMessageID) != "" {
			parentID, err := uuid.Parse(strings.TrimSpace(*req.ParentMessageID))
			if err != nil {
				middleware.WriteError(w, utils.NewInvalidInputError("Parent message not found"))
				return
			}
			msg.ParentID = &parentID
		}

		result, err := s.ask(s.Engine.GetCommunityActor(), msg, "community")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		created, ok := result.(*models.Message)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}

		view := api.NewMessageView(created, nil, id.UserID)
		middleware.WriteJSON(w, http.StatusCreated, api.CreateMessageResponse{
			Success:   true,
			Message:   &view,
			MessageID: created.ID,
		})
	}
}

// HandleListMessages returns the newest top-level posts with embedded replies.
func (s *Server) HandleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		result, err := s.ask(s.Engine.GetCommunityActor(), &actors.ListMessagesMsg{
			Role:         models.Role(q.Get("role")),
			Subcommunity: models.SubcommunityID(q.Get("subcommunity")),
		}, "community")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		threads, ok := result.([]*actors.MessageThread)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}

		viewer := viewerID(r)
		views := make([]api.MessageView, 0, len(threads))
		for _, t := range threads {
			views = append(views, api.NewMessageView(t.Message, t.Replies, viewer))
		}
		middleware.WriteJSON(w, http.StatusOK, api.MessagesResponse{Messages: views})
	}
}

func (s *Server) HandleGetReplies() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, err := parseID(mux.Vars(r)["id"], "message")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}

		result, err := s.ask(s.Engine.GetCommunityActor(), &actors.GetRepliesMsg{ParentID: parentID}, "community")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		replies, ok := result.([]*models.Message)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}
		middleware.WriteJSON(w, http.StatusOK, api.RepliesResponse{Replies: api.NewReplyViews(replies, viewerID(r))})
	}
}

func (s *Server) HandleLikeMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID, err := parseID(mux.Vars(r)["id"], "message")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}

		result, err := s.ask(s.Engine.GetCommunityActor(), &actors.LikeMessageMsg{
			MessageID: messageID,
			UserID:    viewerID(r),
		}, "community")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		like, ok := result.(*models.LikeResult)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}
		middleware.WriteJSON(w, http.StatusOK, api.LikeResponse{Success: true, LikeCount: like.LikeCount, IsLiked: like.IsLiked})
	}
}

func (s *Server) HandleFlagMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID, err := parseID(mux.Vars(r)["id"], "message")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		var req api.FlagRequest
		if err := decodeJSON(r, &req); err != nil {
			middleware.WriteError(w, err)
			return
		}

		result, err := s.ask(s.Engine.GetCommunityActor(), &actors.FlagMessageMsg{
			MessageID: messageID,
			UserID:    viewerID(r),
			Reason:    req.Reason,
		}, "community")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		flag, ok := result.(*models.FlagResult)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}
		middleware.WriteJSON(w, http.StatusOK, api.FlagResponse{Success: true, FlagCount: flag.FlagCount, IsFlagged: flag.IsFlagged})
	}
}
