package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"podgen/internal/config"
	"podgen/internal/core"
	"podgen/internal/genlog"
	"podgen/internal/persistence"
	"podgen/internal/pipeline"
)

type stubScheduler struct {
	logID    string
	err      error
	lastOpts pipeline.GenerateOptions
}

func (s *stubScheduler) Submit(ctx context.Context, podcast core.Podcast, opts pipeline.GenerateOptions) (string, error) {
	s.lastOpts = opts
	if s.err != nil {
		return "", s.err
	}
	return s.logID, nil
}

func newTestServer(t *testing.T, scheduler Scheduler) (*Server, persistence.Database) {
	t.Helper()
	db := persistence.NewMemoryDatabase()
	if scheduler == nil {
		scheduler = &stubScheduler{logID: "log-1"}
	}
	srv := New(db, scheduler, config.Server{Host: "127.0.0.1", Port: 0}, "")
	return srv, db
}

func seedPodcast(t *testing.T, db persistence.Database) *core.Podcast {
	t.Helper()
	podcast := &core.Podcast{
		ID:        "pod-1",
		Title:     "Energy Weekly",
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Podcasts().Create(context.Background(), podcast); err != nil {
		t.Fatalf("Failed to seed podcast: %v", err)
	}
	return podcast
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthOK(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Expected status ok, got %q", resp.Status)
	}
	if resp.Checks["database"] != "ok" {
		t.Errorf("Expected database check ok, got %q", resp.Checks["database"])
	}
}

func TestCreateAndGetPodcast(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/podcasts", CreatePodcastRequest{
		Title:       "Grid Notes",
		Description: "Power grid news",
		Sources: []core.PodcastSource{
			{URL: "https://example.com", Name: "Example", QualityScore: 42},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created core.Podcast
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.ID == "" {
		t.Error("Expected a generated podcast id")
	}
	if created.Sources[0].QualityScore != 10 {
		t.Errorf("Expected quality score clamped to 10, got %v", created.Sources[0].QualityScore)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/podcasts/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var fetched core.Podcast
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if fetched.Title != "Grid Notes" {
		t.Errorf("Expected title Grid Notes, got %q", fetched.Title)
	}
}

func TestCreatePodcastRequiresTitle(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/podcasts", CreatePodcastRequest{Description: "no title"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestUpdatePodcastPartial(t *testing.T) {
	srv, db := newTestServer(t, nil)
	seedPodcast(t, db)

	newTitle := "Energy Daily"
	rec := doJSON(t, srv, http.MethodPut, "/api/podcasts/pod-1", UpdatePodcastRequest{Title: &newTitle})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	updated, err := db.Podcasts().Get(context.Background(), "pod-1")
	if err != nil {
		t.Fatalf("Failed to load podcast: %v", err)
	}
	if updated.Title != "Energy Daily" {
		t.Errorf("Expected updated title, got %q", updated.Title)
	}
}

func TestGetPodcastNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/podcasts/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestGenerateAccepted(t *testing.T) {
	scheduler := &stubScheduler{logID: "log-42"}
	srv, db := newTestServer(t, scheduler)
	seedPodcast(t, db)

	rec := doJSON(t, srv, http.MethodPost, "/api/podcasts/pod-1/generate", GenerateRequest{
		TargetMinutes: 15,
		SelectedTopic: "  grid storage  ",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.LogID != "log-42" {
		t.Errorf("Expected logId log-42, got %q", resp.LogID)
	}
	if scheduler.lastOpts.TargetMinutes != 15 {
		t.Errorf("Expected target minutes 15, got %d", scheduler.lastOpts.TargetMinutes)
	}
	if scheduler.lastOpts.SelectedTopic != "grid storage" {
		t.Errorf("Expected trimmed selected topic, got %q", scheduler.lastOpts.SelectedTopic)
	}
}

func TestGenerateWithoutBody(t *testing.T) {
	srv, db := newTestServer(t, nil)
	seedPodcast(t, db)

	req := httptest.NewRequest(http.MethodPost, "/api/podcasts/pod-1/generate", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("Expected status 202 for empty body, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateUnknownPodcast(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/podcasts/missing/generate", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestGenerateQueueFull(t *testing.T) {
	scheduler := &stubScheduler{err: errors.New("worker queue is full")}
	srv, db := newTestServer(t, scheduler)
	seedPodcast(t, db)

	rec := doJSON(t, srv, http.MethodPost, "/api/podcasts/pod-1/generate", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rec.Code)
	}
}

func TestGetGenerationLog(t *testing.T) {
	srv, db := newTestServer(t, nil)

	l := genlog.New("pod-1")
	if err := db.GenerationLogs().Save(context.Background(), l); err != nil {
		t.Fatalf("Failed to save log: %v", err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/generation-logs/"+l.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var fetched genlog.Log
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if fetched.ID != l.ID {
		t.Errorf("Expected log id %q, got %q", l.ID, fetched.ID)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/generation-logs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestListEpisodesRequiresPodcastID(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/episodes", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestListEpisodesByPodcast(t *testing.T) {
	srv, db := newTestServer(t, nil)

	for i, id := range []string{"ep-1", "ep-2"} {
		episode := &core.Episode{
			ID:        id,
			PodcastID: "pod-1",
			Title:     "Episode",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		if err := db.Episodes().Create(context.Background(), episode); err != nil {
			t.Fatalf("Failed to seed episode: %v", err)
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/episodes?podcastId=pod-1&limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Data  []core.Episode `json:"data"`
		Count int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("Expected 1 episode, got %d", resp.Count)
	}
	if resp.Data[0].ID != "ep-2" {
		t.Errorf("Expected newest episode first, got %q", resp.Data[0].ID)
	}
}

func TestAPITokenMiddleware(t *testing.T) {
	db := persistence.NewMemoryDatabase()
	srv := New(db, &stubScheduler{logID: "log-1"}, config.Server{APIToken: "secret"}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/podcasts", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/podcasts", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with bad token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/podcasts", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 with valid token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected health to stay open, got %d", rec.Code)
	}
}
