package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"podgen/internal/core"
	"podgen/internal/sources"
)

// CreatePodcastRequest is the body for POST /api/podcasts.
type CreatePodcastRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Sources     []core.PodcastSource `json:"sources"`
	Voice       core.VoiceConfig     `json:"voice"`
}

// UpdatePodcastRequest is the body for PUT /api/podcasts/{id}. Nil fields
// are left unchanged.
type UpdatePodcastRequest struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Sources     *[]core.PodcastSource `json:"sources"`
	Voice       *core.VoiceConfig     `json:"voice"`
}

// handleListPodcasts handles GET /api/podcasts
func (s *Server) handleListPodcasts(w http.ResponseWriter, r *http.Request) {
	podcasts, err := s.db.Podcasts().List(r.Context())
	if err != nil {
		s.log.Error("Failed to list podcasts", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list podcasts")
		return
	}
	if podcasts == nil {
		podcasts = []core.Podcast{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  podcasts,
		"count": len(podcasts),
	})
}

// handleCreatePodcast handles POST /api/podcasts
func (s *Server) handleCreatePodcast(w http.ResponseWriter, r *http.Request) {
	var req CreatePodcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Title == "" {
		s.respondError(w, http.StatusBadRequest, "Podcast title is required")
		return
	}

	podcast := &core.Podcast{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Sources:     clampSourceScores(req.Sources),
		Voice:       req.Voice,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.db.Podcasts().Create(r.Context(), podcast); err != nil {
		s.log.Error("Failed to create podcast", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to create podcast")
		return
	}

	s.respondJSON(w, http.StatusCreated, podcast)
}

// handleGetPodcast handles GET /api/podcasts/{id}
func (s *Server) handleGetPodcast(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	podcast, err := s.db.Podcasts().Get(r.Context(), id)
	if err != nil {
		s.log.Error("Failed to load podcast", "error", err, "podcast_id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to load podcast")
		return
	}
	if podcast == nil {
		s.respondError(w, http.StatusNotFound, "Podcast not found")
		return
	}

	s.respondJSON(w, http.StatusOK, podcast)
}

// handleUpdatePodcast handles PUT /api/podcasts/{id}
func (s *Server) handleUpdatePodcast(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	podcast, err := s.db.Podcasts().Get(r.Context(), id)
	if err != nil {
		s.log.Error("Failed to load podcast", "error", err, "podcast_id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to load podcast")
		return
	}
	if podcast == nil {
		s.respondError(w, http.StatusNotFound, "Podcast not found")
		return
	}

	var req UpdatePodcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			s.respondError(w, http.StatusBadRequest, "Podcast title cannot be empty")
			return
		}
		podcast.Title = *req.Title
	}
	if req.Description != nil {
		podcast.Description = *req.Description
	}
	if req.Sources != nil {
		podcast.Sources = clampSourceScores(*req.Sources)
	}
	if req.Voice != nil {
		podcast.Voice = *req.Voice
	}

	if err := s.db.Podcasts().Update(r.Context(), podcast); err != nil {
		s.log.Error("Failed to update podcast", "error", err, "podcast_id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to update podcast")
		return
	}

	s.respondJSON(w, http.StatusOK, podcast)
}

// handleDeletePodcast handles DELETE /api/podcasts/{id}
func (s *Server) handleDeletePodcast(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.db.Podcasts().Delete(r.Context(), id); err != nil {
		s.log.Error("Failed to delete podcast", "error", err, "podcast_id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete podcast")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func clampSourceScores(in []core.PodcastSource) []core.PodcastSource {
	for i := range in {
		in[i].QualityScore = sources.ClampQuality(in[i].QualityScore)
	}
	return in
}
