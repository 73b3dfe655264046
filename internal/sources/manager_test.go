package sources

import (
	"context"
	"errors"
	"testing"

	"podgen/internal/core"
	"podgen/internal/llm"
)

type stubGenerator struct {
	response string
	err      error
}

func (s *stubGenerator) GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func podcastWithSources() core.Podcast {
	return core.Podcast{
		ID:          "pod-1",
		Description: "battery technology",
		Sources: []core.PodcastSource{
			{URL: "https://a.com", Name: "Site A", Category: "news", QualityScore: 5},
			{URL: "https://b.com", Name: "Site B", Category: "blog", QualityScore: 6},
		},
	}
}

func TestRefreshAppliesVettedScores(t *testing.T) {
	gen := &stubGenerator{response: `[
		{"url": "https://a.com", "quality_score": 9, "topic_relevance": ["solid state"], "perspective": "technical"},
		{"url": "https://b.com", "quality_score": 3}
	]`}
	manager := NewManager(gen)

	refreshed, err := manager.Refresh(context.Background(), podcastWithSources())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(refreshed) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(refreshed))
	}
	if refreshed[0].QualityScore != 9 || refreshed[0].Perspective != "technical" {
		t.Errorf("Expected vetted adjustments applied, got %+v", refreshed[0])
	}
	if refreshed[0].Name != "Site A" {
		t.Errorf("Expected existing name preserved, got %q", refreshed[0].Name)
	}
	if refreshed[1].QualityScore != 3 {
		t.Errorf("Expected second source rescored, got %v", refreshed[1].QualityScore)
	}
}

func TestRefreshClampsScores(t *testing.T) {
	gen := &stubGenerator{response: `[
		{"url": "https://a.com", "quality_score": 42},
		{"url": "https://b.com", "quality_score": -1}
	]`}
	manager := NewManager(gen)

	refreshed, err := manager.Refresh(context.Background(), podcastWithSources())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if refreshed[0].QualityScore != 10 {
		t.Errorf("Expected score clamped to 10, got %v", refreshed[0].QualityScore)
	}
	if refreshed[1].QualityScore != 1 {
		t.Errorf("Expected score clamped to 1, got %v", refreshed[1].QualityScore)
	}
}

func TestRefreshIgnoresHallucinatedSources(t *testing.T) {
	gen := &stubGenerator{response: `[
		{"url": "https://invented.example", "quality_score": 10}
	]`}
	manager := NewManager(gen)

	refreshed, err := manager.Refresh(context.Background(), podcastWithSources())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(refreshed) != 2 {
		t.Fatalf("Expected original source count preserved, got %d", len(refreshed))
	}
	for _, src := range refreshed {
		if src.URL == "https://invented.example" {
			t.Error("Expected hallucinated source ignored")
		}
	}
	if refreshed[0].QualityScore != 5 {
		t.Errorf("Expected unmatched source untouched, got %v", refreshed[0].QualityScore)
	}
}

func TestRefreshGeneratorFailure(t *testing.T) {
	manager := NewManager(&stubGenerator{err: errors.New("model down")})
	_, err := manager.Refresh(context.Background(), podcastWithSources())
	if err == nil {
		t.Error("Expected error surfaced for caller fallback")
	}
}

func TestRefreshNoSources(t *testing.T) {
	manager := NewManager(&stubGenerator{})
	refreshed, err := manager.Refresh(context.Background(), core.Podcast{ID: "empty"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if refreshed != nil {
		t.Errorf("Expected nil for podcast without sources, got %v", refreshed)
	}
}

func TestClampQuality(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 1}, {1, 1}, {5.5, 5.5}, {10, 10}, {11, 10}, {-3, 1},
	}
	for _, c := range cases {
		if got := ClampQuality(c.in); got != c.want {
			t.Errorf("ClampQuality(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
