package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"podgen/internal/core"
)

const defaultEpisodeLimit = 20

// handleListEpisodes handles GET /api/episodes?podcastId=&limit=
func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	podcastID := r.URL.Query().Get("podcastId")
	if podcastID == "" {
		s.respondError(w, http.StatusBadRequest, "podcastId query parameter is required")
		return
	}

	limit := defaultEpisodeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	episodes, err := s.db.Episodes().ListByPodcast(r.Context(), podcastID, limit)
	if err != nil {
		s.log.Error("Failed to list episodes", "error", err, "podcast_id", podcastID)
		s.respondError(w, http.StatusInternalServerError, "Failed to list episodes")
		return
	}
	if episodes == nil {
		episodes = []core.Episode{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  episodes,
		"count": len(episodes),
	})
}

// handleGetEpisode handles GET /api/episodes/{id}
func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	episode, err := s.db.Episodes().Get(r.Context(), id)
	if err != nil {
		s.log.Error("Failed to load episode", "error", err, "episode_id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to load episode")
		return
	}
	if episode == nil {
		s.respondError(w, http.StatusNotFound, "Episode not found")
		return
	}

	s.respondJSON(w, http.StatusOK, episode)
}
