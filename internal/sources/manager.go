package sources

import (
	"context"
	"fmt"
	"strings"

	"podgen/internal/core"
	"podgen/internal/llm"
	"podgen/internal/logger"
)

// TextGenerator vets sources via the content model. Satisfied by
// *llm.Client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Manager maintains a podcast's curated source list: vetting quality,
// refreshing relevance keywords, and keeping scores in range.
type Manager struct {
	generator TextGenerator
}

// NewManager creates a source manager.
func NewManager(generator TextGenerator) *Manager {
	return &Manager{generator: generator}
}

// Refresh re-vets the podcast's curated sources against its current theme.
// The model may adjust quality scores, relevance keywords, and perspective
// labels; URLs and names are preserved from the existing list so a
// hallucinated response cannot invent or drop sources. Callers keep the
// existing list when Refresh fails.
func (m *Manager) Refresh(ctx context.Context, podcast core.Podcast) ([]core.PodcastSource, error) {
	if len(podcast.Sources) == 0 {
		return nil, nil
	}

	prompt := buildVettingPrompt(podcast)
	raw, err := m.generator.GenerateText(ctx, prompt, llm.TextGenerationOptions{MaxTokens: 2048})
	if err != nil {
		return nil, fmt.Errorf("source vetting failed: %w", err)
	}

	var vetted []core.PodcastSource
	if err := llm.UnmarshalLoose(raw, &vetted); err != nil {
		return nil, fmt.Errorf("failed to parse vetted sources: %w", err)
	}

	merged := mergeVetted(podcast.Sources, vetted)
	logger.Get().Info("Curated sources refreshed", "podcast_id", podcast.ID, "sources", len(merged))
	return merged, nil
}

// buildVettingPrompt asks the model to re-score the curated list for the
// podcast's theme.
func buildVettingPrompt(podcast core.Podcast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A podcast covers: %s\n\nRe-evaluate its curated sources for that theme.\n", podcast.Description)
	b.WriteString("For each source return url, quality_score (1-10), topic_relevance (keywords), and perspective.\n\nSources:\n")
	for _, src := range podcast.Sources {
		fmt.Fprintf(&b, "- %s (%s, category %s)\n", src.URL, src.Name, src.Category)
	}
	b.WriteString("\nReturn only a JSON array.")
	return b.String()
}

// mergeVetted applies model adjustments onto the existing list, matching by
// URL. Unmatched model entries are ignored; unmatched existing sources are
// kept as they were.
func mergeVetted(existing, vetted []core.PodcastSource) []core.PodcastSource {
	byURL := make(map[string]core.PodcastSource, len(vetted))
	for _, v := range vetted {
		byURL[strings.TrimSpace(v.URL)] = v
	}

	merged := make([]core.PodcastSource, len(existing))
	for i, src := range existing {
		merged[i] = src
		v, ok := byURL[strings.TrimSpace(src.URL)]
		if !ok {
			continue
		}
		merged[i].QualityScore = ClampQuality(v.QualityScore)
		if len(v.TopicRelevance) > 0 {
			merged[i].TopicRelevance = v.TopicRelevance
		}
		if strings.TrimSpace(v.Perspective) != "" {
			merged[i].Perspective = v.Perspective
		}
	}
	return merged
}

// ClampQuality clamps a quality score to its nominal 1-10 range.
func ClampQuality(score float64) float64 {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
