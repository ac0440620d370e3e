package handlers

import (
	"net/http"

	"rekindle/internal/api"
	"rekindle/internal/engine/actors"
	"rekindle/internal/middleware"
	"rekindle/internal/models"

	"github.com/gorilla/mux"
)

func (s *Server) HandleCreateReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateReminderRequest
		if err := decodeJSON(r, &req); err != nil {
			middleware.WriteError(w, err)
			return
		}

		result, err := s.ask(s.Engine.GetReminderActor(), &actors.CreateReminderMsg{
			UserID:   viewerID(r),
			Reason:   req.Reason,
			Time:     req.Time,
			Schedule: req.Schedule,
		}, "reminders")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, result)
	}
}

// HandleListReminders returns the caller's reminders; ?due=true keeps only
// pending ones whose time has passed.
func (s *Server) HandleListReminders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.ask(s.Engine.GetReminderActor(), &actors.ListRemindersMsg{
			UserID:  viewerID(r),
			DueOnly: r.URL.Query().Get("due") == "true",
		}, "reminders")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		reminders, ok := result.([]*models.Reminder)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}
		middleware.WriteJSON(w, http.StatusOK, api.RemindersResponse{Reminders: reminders})
	}
}

func (s *Server) HandleReminderDelivered() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reminderID, err := parseID(mux.Vars(r)["id"], "reminder")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}

		result, err := s.ask(s.Engine.GetReminderActor(), &actors.MarkReminderDeliveredMsg{
			ReminderID: reminderID,
			UserID:     viewerID(r),
		}, "reminders")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, result)
	}
}
