package topics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"podgen/internal/core"
	"podgen/internal/llm"
	"podgen/internal/logger"
	"podgen/internal/search"
)

const (
	// DefaultMaxTopics caps the ranked candidate list handed to clustering.
	DefaultMaxTopics = 8
)

// recencyBonus maps the controlled recency vocabulary to a ranking bonus.
// Unknown or source-defined values fall through to a small baseline.
var recencyBonus = map[string]float64{
	"breaking":   30,
	"developing": 25,
	"trending":   20,
	"recent":     15,
	"ongoing":    10,
	"emerging":   8,
}

const recencyBonusUnknown = 5

// defaultProviderBonus prefers providers whose answers carry grounding
// metadata over plain snippet concatenation.
var defaultProviderBonus = map[string]float64{
	"gemini": 8,
	"google": 5,
}

// TextGenerator extracts structured topic candidates from grounded search
// responses. Satisfied by *llm.Client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Searcher fans a podcast's theme out to search providers and ranks the
// resulting topic candidates.
type Searcher struct {
	providers     []search.Provider
	generator     TextGenerator
	providerBonus map[string]float64
	maxTopics     int
}

// NewSearcher creates a topic searcher over the given providers.
func NewSearcher(providers []search.Provider, generator TextGenerator) *Searcher {
	return &Searcher{
		providers:     providers,
		generator:     generator,
		providerBonus: defaultProviderBonus,
		maxTopics:     DefaultMaxTopics,
	}
}

// SetMaxTopics overrides the ranked-list cap.
func (s *Searcher) SetMaxTopics(n int) {
	if n > 0 {
		s.maxTopics = n
	}
}

// Search queries all providers in parallel for current topic candidates
// relevant to the podcast, then deduplicates, filters against the prior
// episode digest, and ranks. Individual provider failures yield empty
// lists rather than aborting the fan-out; the call fails only when no
// provider produced any candidate.
func (s *Searcher) Search(ctx context.Context, podcast core.Podcast, digest core.EpisodeDigest) ([]core.TopicCandidate, error) {
	log := logger.Get()

	if len(s.providers) == 0 {
		return nil, fmt.Errorf("no search providers configured")
	}

	query := buildQuery(podcast)

	// One result slot per provider so the join needs no mutex.
	slots := make([][]core.TopicCandidate, len(s.providers))
	var wg sync.WaitGroup

	for i, provider := range s.providers {
		wg.Add(1)
		go func(i int, p search.Provider) {
			defer wg.Done()

			resp, err := p.Search(ctx, query, search.Config{MaxResults: 10})
			if err != nil {
				log.Warn("Topic search provider failed", "provider", p.GetName(), "error", err)
				return
			}

			candidates, err := s.extractCandidates(ctx, resp)
			if err != nil {
				log.Warn("Topic extraction failed", "provider", p.GetName(), "error", err)
				return
			}
			slots[i] = candidates
		}(i, provider)
	}
	wg.Wait()

	var merged []core.TopicCandidate
	for _, slot := range slots {
		merged = append(merged, slot...)
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("all providers failed or returned no topic candidates for query %q", query)
	}

	merged = Deduplicate(merged)
	merged = excludeCovered(merged, digest)
	ranked := Rank(merged, s.providerBonus)

	if len(ranked) > s.maxTopics {
		ranked = ranked[:s.maxTopics]
	}

	log.Info("Topic search complete", "podcast_id", podcast.ID, "candidates", len(ranked))
	return ranked, nil
}

// buildQuery derives the provider query from the podcast's theme, biased
// toward curated source domains when present.
func buildQuery(podcast core.Podcast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "current news and developments about %s", podcast.Description)

	var domains []string
	for _, src := range podcast.Sources {
		if src.QualityScore >= 7 && src.URL != "" {
			domains = append(domains, src.URL)
		}
		if len(domains) >= 3 {
			break
		}
	}
	if len(domains) > 0 {
		fmt.Fprintf(&b, " (prefer coverage from %s)", strings.Join(domains, ", "))
	}
	return b.String()
}

// extractCandidates turns a grounded search response into structured topic
// candidates via the content model.
func (s *Searcher) extractCandidates(ctx context.Context, resp *search.Response) ([]core.TopicCandidate, error) {
	prompt := fmt.Sprintf(`Based on the following search results, identify distinct podcast-worthy topics.

Search results:
%s

Return a JSON array where each element has:
- "topic": a concise title
- "description": 1-2 sentences on what the topic covers
- "relevance": 1-10 score for how newsworthy and discussable it is
- "recency": one of breaking, developing, trending, recent, ongoing, emerging
- "key_questions": 2-4 questions an episode should answer

Return only the JSON array.`, resp.Content)

	raw, err := s.generator.GenerateText(ctx, prompt, llm.TextGenerationOptions{MaxTokens: 2048})
	if err != nil {
		return nil, fmt.Errorf("failed to extract topics: %w", err)
	}

	var candidates []core.TopicCandidate
	if err := llm.UnmarshalLoose(raw, &candidates); err != nil {
		return nil, fmt.Errorf("failed to parse topic candidates: %w", err)
	}

	for i := range candidates {
		candidates[i].Query = resp.Query
		candidates[i].Provider = resp.Provider
		if len(candidates[i].Sources) == 0 {
			candidates[i].Sources = resp.SourceURLs
		}
	}
	return candidates, nil
}

// Deduplicate removes candidates whose trimmed title is a case-insensitive
// substring of an earlier candidate's title (or vice versa), keeping the
// first-seen candidate. Running it twice is a no-op.
func Deduplicate(candidates []core.TopicCandidate) []core.TopicCandidate {
	var kept []core.TopicCandidate
	for _, c := range candidates {
		title := strings.ToLower(strings.TrimSpace(c.Topic))
		if title == "" {
			continue
		}
		dup := false
		for _, k := range kept {
			kt := strings.ToLower(strings.TrimSpace(k.Topic))
			if strings.Contains(kt, title) || strings.Contains(title, kt) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	return kept
}

// excludeCovered drops candidates already present in the prior-episode
// digest.
func excludeCovered(candidates []core.TopicCandidate, digest core.EpisodeDigest) []core.TopicCandidate {
	var kept []core.TopicCandidate
	for _, c := range candidates {
		if digest.ContainsTopic(c.Topic) {
			logger.Get().Debug("Excluding already-covered topic", "topic", c.Topic)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// Rank scores every candidate and returns them sorted descending by score.
// The sort is stable so equal scores preserve first-seen order.
func Rank(candidates []core.TopicCandidate, providerBonus map[string]float64) []core.TopicCandidate {
	ranked := make([]core.TopicCandidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Score = Score(ranked[i], providerBonus)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Score computes the weighted ranking score for a single candidate.
// Relevance is clamped to its nominal 1-10 range before weighting.
func Score(c core.TopicCandidate, providerBonus map[string]float64) float64 {
	relevance := math.Max(1, math.Min(10, c.Relevance))
	score := relevance * 10

	if bonus, ok := recencyBonus[strings.ToLower(strings.TrimSpace(c.Recency))]; ok {
		score += bonus
	} else {
		score += recencyBonusUnknown
	}

	score += float64(len(c.Sources)) * 5
	score += providerBonus[strings.ToLower(c.Provider)]
	score += float64(len(c.KeyQuestions)) * 3

	return score
}
