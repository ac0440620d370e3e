package handlers

import (
	"net/http"

	"rekindle/internal/api"
	"rekindle/internal/engine/actors"
	"rekindle/internal/middleware"
	"rekindle/internal/models"
)

// HandleSubcommunities returns the catalog with live counts.
func (s *Server) HandleSubcommunities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.ask(s.Engine.GetStatsActor(), &actors.GetSubcommunitiesMsg{}, "stats")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		subs, ok := result.([]models.SubcommunityWithCounts)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}
		middleware.WriteJSON(w, http.StatusOK, api.SubcommunitiesResponse{Subcommunities: subs})
	}
}

// HandleCommunityStats returns aggregate figures, optionally scoped to one
// subcommunity.
func (s *Server) HandleCommunityStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.ask(s.Engine.GetStatsActor(), &actors.GetStatsMsg{
			Subcommunity: models.SubcommunityID(r.URL.Query().Get("subcommunity")),
		}, "stats")
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		stats, ok := result.(*models.CommunityStats)
		if !ok {
			middleware.WriteError(w, unexpected(result))
			return
		}
		middleware.WriteJSON(w, http.StatusOK, stats)
	}
}
