package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"podgen/internal/genlog"
	"podgen/internal/pipeline"
)

const defaultLogLimit = 20

// GenerateRequest is the optional body for POST /api/podcasts/{id}/generate.
type GenerateRequest struct {
	TargetMinutes int    `json:"targetMinutes"`
	TargetWords   int    `json:"targetWords"`
	SelectedTopic string `json:"selectedTopic"`
}

// GenerateResponse carries the log id the caller polls for progress.
type GenerateResponse struct {
	LogID string `json:"logId"`
}

// handleGenerate handles POST /api/podcasts/{id}/generate. The run happens
// in the background; the response only hands out the log id.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
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

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TargetMinutes < 0 || req.TargetWords < 0 {
		s.respondError(w, http.StatusBadRequest, "Target length cannot be negative")
		return
	}

	logID, err := s.scheduler.Submit(r.Context(), *podcast, pipeline.GenerateOptions{
		TargetMinutes: req.TargetMinutes,
		TargetWords:   req.TargetWords,
		SelectedTopic: strings.TrimSpace(req.SelectedTopic),
	})
	if err != nil {
		if strings.Contains(err.Error(), "queue is full") {
			s.respondError(w, http.StatusTooManyRequests, "Generation queue is full, try again later")
			return
		}
		s.log.Error("Failed to schedule generation", "error", err, "podcast_id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to schedule generation")
		return
	}

	s.respondJSON(w, http.StatusAccepted, GenerateResponse{LogID: logID})
}

// handleGetGenerationLog handles GET /api/generation-logs/{id}
func (s *Server) handleGetGenerationLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	l, err := s.db.GenerationLogs().Get(r.Context(), id)
	if err != nil {
		s.log.Error("Failed to load generation log", "error", err, "log_id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to load generation log")
		return
	}
	if l == nil {
		s.respondError(w, http.StatusNotFound, "Generation log not found")
		return
	}

	s.respondJSON(w, http.StatusOK, l)
}

// handleListGenerationLogs handles GET /api/podcasts/{id}/generation-logs
func (s *Server) handleListGenerationLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	logs, err := s.db.GenerationLogs().ListByPodcast(r.Context(), id, limit)
	if err != nil {
		s.log.Error("Failed to list generation logs", "error", err, "podcast_id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to list generation logs")
		return
	}
	if logs == nil {
		logs = []genlog.Log{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  logs,
		"count": len(logs),
	})
}
