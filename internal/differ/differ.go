package differ

import (
	"context"
	"fmt"
	"strings"

	"podgen/internal/core"
	"podgen/internal/llm"
	"podgen/internal/logger"
)

// DefaultThreshold is the similarity above which a draft is considered too
// close to previously covered material.
const DefaultThreshold = 0.82

// Result reports how a draft compares to prior coverage. ImprovedContent is
// non-empty only when a rewrite was requested; callers use
// ImprovedContent if present and the original draft otherwise. A failing
// result never blocks episode creation.
type Result struct {
	IsPassing       bool    `json:"is_passing"`
	SimilarityScore float64 `json:"similarity_score"`
	ImprovedContent string  `json:"improved_content,omitempty"`
}

// Embedder produces embeddings for similarity scoring. Satisfied by
// *llm.Client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// TextGenerator performs the rewrite pass. Satisfied by *llm.Client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Validator scores a draft against the prior-episode digest and requests
// one rewrite when the draft is too similar.
type Validator struct {
	embedder  Embedder
	generator TextGenerator
	threshold float64
}

// NewValidator creates a differentiation validator with the default
// similarity threshold.
func NewValidator(embedder Embedder, generator TextGenerator) *Validator {
	return &Validator{
		embedder:  embedder,
		generator: generator,
		threshold: DefaultThreshold,
	}
}

// SetThreshold overrides the similarity threshold.
func (v *Validator) SetThreshold(t float64) {
	if t > 0 && t <= 1 {
		v.threshold = t
	}
}

// Validate computes draft-vs-digest similarity and, when it exceeds the
// threshold, requests a single rewrite pass with explicit instructions to
// diverge. An empty digest passes trivially. Rewrite failure is reported in
// the returned error but the Result is still usable; callers log and
// proceed with the original draft.
func (v *Validator) Validate(ctx context.Context, draft string, digest core.EpisodeDigest) (Result, error) {
	prior := digestText(digest)
	if strings.TrimSpace(prior) == "" || strings.TrimSpace(draft) == "" {
		return Result{IsPassing: true}, nil
	}

	similarity := v.similarity(ctx, draft, prior)
	result := Result{
		IsPassing:       similarity <= v.threshold,
		SimilarityScore: similarity,
	}
	if result.IsPassing {
		return result, nil
	}

	logger.Get().Info("Draft too similar to prior coverage, requesting rewrite",
		"similarity", similarity, "threshold", v.threshold)

	improved, err := v.rewrite(ctx, draft, digest)
	if err != nil {
		return result, fmt.Errorf("differentiation rewrite failed: %w", err)
	}
	result.ImprovedContent = improved
	return result, nil
}

// similarity prefers embedding cosine similarity and falls back to token
// overlap when the embedding provider is unavailable.
func (v *Validator) similarity(ctx context.Context, draft, prior string) float64 {
	if v.embedder != nil {
		draftVec, errA := v.embedder.GenerateEmbedding(ctx, draft)
		priorVec, errB := v.embedder.GenerateEmbedding(ctx, prior)
		if errA == nil && errB == nil {
			return llm.CosineSimilarity(draftVec, priorVec)
		}
		logger.Get().Warn("Embedding unavailable for differentiation, using token overlap",
			"error_draft", errA, "error_prior", errB)
	}
	return TokenOverlap(draft, prior)
}

// rewrite asks the content model for one pass that diverges from prior
// coverage while keeping length and tone.
func (v *Validator) rewrite(ctx context.Context, draft string, digest core.EpisodeDigest) (string, error) {
	prompt := fmt.Sprintf(`The following podcast episode draft is too similar to topics this podcast has already covered.

Recently covered: %s

Rewrite the draft so it clearly diverges from that prior coverage: change the angle, lead with different developments, and cut any retread of already-covered ground. Keep roughly the same length and conversational tone. Return only the rewritten draft.

Draft:
%s`, strings.Join(append(digest.RecentTopics, digest.RecentTitles...), "; "), draft)

	improved, err := v.generator.GenerateText(ctx, prompt, llm.TextGenerationOptions{MaxTokens: 8192})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(improved), nil
}

// digestText flattens the digest into one comparison document.
func digestText(digest core.EpisodeDigest) string {
	parts := []string{digest.Summary}
	parts = append(parts, digest.RecentTopics...)
	parts = append(parts, digest.RecentTitles...)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// TokenOverlap is the Jaccard similarity of the lowercase token sets of the
// two texts.
func TokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(s)) {
		token = strings.Trim(token, ".,;:!?\"'()[]")
		if len(token) > 2 {
			set[token] = true
		}
	}
	return set
}
