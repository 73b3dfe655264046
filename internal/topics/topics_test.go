package topics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"podgen/internal/core"
	"podgen/internal/llm"
	"podgen/internal/search"
)

type mockGenerator struct {
	response string
	err      error
}

func (m *mockGenerator) GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestDeduplicateSubstringContainment(t *testing.T) {
	candidates := []core.TopicCandidate{
		{Topic: "AI Regulation in Europe"},
		{Topic: "ai regulation"},
		{Topic: "Quantum Computing Advances"},
	}

	result := Deduplicate(candidates)
	if len(result) != 2 {
		t.Fatalf("Expected 2 candidates after dedup, got %d", len(result))
	}
	if result[0].Topic != "AI Regulation in Europe" {
		t.Errorf("Expected first-seen candidate kept, got %s", result[0].Topic)
	}
	if result[1].Topic != "Quantum Computing Advances" {
		t.Errorf("Expected unrelated candidate kept, got %s", result[1].Topic)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	candidates := []core.TopicCandidate{
		{Topic: "Climate Tech Funding"},
		{Topic: "climate tech"},
		{Topic: "Fusion Energy Milestones"},
		{Topic: "  Fusion Energy Milestones  "},
		{Topic: "Open Source LLMs"},
	}

	once := Deduplicate(candidates)
	twice := Deduplicate(once)

	if len(once) != len(twice) {
		t.Fatalf("Expected second dedup pass to remove nothing, got %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Topic != twice[i].Topic {
			t.Errorf("Expected identical order after second pass, got %s vs %s", once[i].Topic, twice[i].Topic)
		}
	}
}

func TestDeduplicateSkipsEmptyTitles(t *testing.T) {
	candidates := []core.TopicCandidate{
		{Topic: "   "},
		{Topic: "Real Topic"},
	}
	result := Deduplicate(candidates)
	if len(result) != 1 || result[0].Topic != "Real Topic" {
		t.Errorf("Expected only the non-empty candidate, got %v", result)
	}
}

func TestScoreWeights(t *testing.T) {
	c := core.TopicCandidate{
		Topic:        "Test",
		Relevance:    8,
		Recency:      "breaking",
		Sources:      []string{"https://a.com", "https://b.com"},
		KeyQuestions: []string{"Q1", "Q2", "Q3"},
		Provider:     "gemini",
	}

	// 8*10 + 30 + 2*5 + 8 + 3*3 = 137
	got := Score(c, defaultProviderBonus)
	if got != 137 {
		t.Errorf("Expected score 137, got %v", got)
	}
}

func TestScoreClampsRelevance(t *testing.T) {
	high := core.TopicCandidate{Relevance: 50}
	low := core.TopicCandidate{Relevance: -3}

	// Both fall through to the unknown recency baseline of 5.
	if got := Score(high, nil); got != 105 {
		t.Errorf("Expected over-range relevance clamped to 10 (score 105), got %v", got)
	}
	if got := Score(low, nil); got != 15 {
		t.Errorf("Expected under-range relevance clamped to 1 (score 15), got %v", got)
	}
}

func TestScoreUnknownRecency(t *testing.T) {
	c := core.TopicCandidate{Relevance: 5, Recency: "whenever"}
	if got := Score(c, nil); got != 55 {
		t.Errorf("Expected unknown recency to add baseline 5, got score %v", got)
	}
}

func TestRankSortsDescending(t *testing.T) {
	candidates := []core.TopicCandidate{
		{Topic: "Low", Relevance: 2, Recency: "emerging"},
		{Topic: "High", Relevance: 9, Recency: "breaking"},
		{Topic: "Mid", Relevance: 5, Recency: "recent"},
	}

	ranked := Rank(candidates, nil)
	if ranked[0].Topic != "High" || ranked[1].Topic != "Mid" || ranked[2].Topic != "Low" {
		t.Errorf("Expected descending score order, got %s, %s, %s",
			ranked[0].Topic, ranked[1].Topic, ranked[2].Topic)
	}
	for _, r := range ranked {
		if r.Score == 0 {
			t.Errorf("Expected computed score on %s", r.Topic)
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	candidates := []core.TopicCandidate{
		{Topic: "A", Relevance: 2},
		{Topic: "B", Relevance: 9},
	}
	Rank(candidates, nil)
	if candidates[0].Topic != "A" {
		t.Error("Expected input order untouched")
	}
	if candidates[0].Score != 0 {
		t.Error("Expected input scores untouched")
	}
}

func TestSearchExcludesCoveredTopics(t *testing.T) {
	provider := search.NewMockProvider()
	provider.SetResponse(&search.Response{
		Content:  "search results",
		Provider: "mock",
	})

	gen := &mockGenerator{response: `[
		{"topic": "AI Regulation in Europe", "relevance": 8, "recency": "breaking"},
		{"topic": "Quantum Networking", "relevance": 6, "recency": "recent"}
	]`}

	searcher := NewSearcher([]search.Provider{provider}, gen)
	digest := core.EpisodeDigest{RecentTitles: []string{"The Week in AI Regulation in Europe"}}

	result, err := searcher.Search(context.Background(), core.Podcast{Description: "tech news"}, digest)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 candidate after digest exclusion, got %d", len(result))
	}
	if result[0].Topic != "Quantum Networking" {
		t.Errorf("Expected covered topic excluded, got %s", result[0].Topic)
	}
}

func TestSearchToleratesProviderFailure(t *testing.T) {
	failing := search.NewMockProvider()
	failing.SetName("Failing")
	failing.SetError(search.ErrProviderUnavailable)

	working := search.NewMockProvider()
	working.SetResponse(&search.Response{Content: "results", Provider: "mock"})

	gen := &mockGenerator{response: `[{"topic": "Solar Grid Storage", "relevance": 7, "recency": "trending"}]`}

	searcher := NewSearcher([]search.Provider{failing, working}, gen)
	result, err := searcher.Search(context.Background(), core.Podcast{Description: "energy"}, core.EpisodeDigest{})
	if err != nil {
		t.Fatalf("Expected partial provider failure tolerated, got %v", err)
	}
	if len(result) != 1 || result[0].Topic != "Solar Grid Storage" {
		t.Errorf("Expected candidate from surviving provider, got %v", result)
	}
}

func TestSearchAllProvidersFail(t *testing.T) {
	failing := search.NewMockProvider()
	failing.SetError(errors.New("boom"))

	searcher := NewSearcher([]search.Provider{failing}, &mockGenerator{})
	_, err := searcher.Search(context.Background(), core.Podcast{Description: "x"}, core.EpisodeDigest{})
	if err == nil {
		t.Error("Expected error when every provider fails")
	}
}

func TestSearchCapsCandidates(t *testing.T) {
	provider := search.NewMockProvider()
	provider.SetResponse(&search.Response{Content: "results", Provider: "mock"})

	var items []string
	topics := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel", "India", "Juliet"}
	for _, name := range topics {
		items = append(items, `{"topic": "`+name+`", "relevance": 5, "recency": "recent"}`)
	}
	gen := &mockGenerator{response: "[" + strings.Join(items, ",") + "]"}

	searcher := NewSearcher([]search.Provider{provider}, gen)
	result, err := searcher.Search(context.Background(), core.Podcast{Description: "news"}, core.EpisodeDigest{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result) != DefaultMaxTopics {
		t.Errorf("Expected ranked list capped at %d, got %d", DefaultMaxTopics, len(result))
	}
}

func TestSearchFillsProvenance(t *testing.T) {
	provider := search.NewMockProvider()
	provider.SetResponse(&search.Response{
		Content:    "results",
		SourceURLs: []string{"https://grounding.example/a"},
		Provider:   "mock",
	})

	gen := &mockGenerator{response: `[{"topic": "Edge Inference", "relevance": 6, "recency": "developing"}]`}

	searcher := NewSearcher([]search.Provider{provider}, gen)
	result, err := searcher.Search(context.Background(), core.Podcast{Description: "ml"}, core.EpisodeDigest{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	c := result[0]
	if c.Provider != "mock" {
		t.Errorf("Expected provider provenance filled, got %q", c.Provider)
	}
	if c.Query == "" {
		t.Error("Expected originating query recorded")
	}
	if len(c.Sources) != 1 || c.Sources[0] != "https://grounding.example/a" {
		t.Errorf("Expected grounding URLs attached as sources, got %v", c.Sources)
	}
}
