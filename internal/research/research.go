package research

import (
	"context"
	"fmt"
	"strings"

	"podgen/internal/core"
	"podgen/internal/llm"
	"podgen/internal/logger"
	"podgen/internal/search"
)

const (
	// DefaultMaxLayers bounds how many research passes a single topic gets.
	DefaultMaxLayers = 2

	// thinFindingsWords triggers an extra research layer when the first
	// pass came back with less than this many words.
	thinFindingsWords = 100

	// MinNarrativeWords is the viability floor for the synthesized
	// narrative; anything shorter is treated as provider failure.
	MinNarrativeWords = 50

	// minTopicAllocation is the per-topic word floor so low-priority
	// topics still get a coherent stretch of narrative.
	minTopicAllocation = 80
)

// TopicFindings accumulates what layered research learned about one topic.
type TopicFindings struct {
	Topic    string   `json:"topic"`
	Insights []string `json:"insights"` // One entry per research layer
	Sources  []string `json:"sources"`
	Layers   int      `json:"layers"` // How many research passes were needed
}

// Report is the merged output of researching all prioritized topics.
type Report struct {
	PerTopic   []TopicFindings `json:"per_topic"`
	Narrative  string          `json:"narrative"` // Combined draft, length proportional to target
	AllSources []string        `json:"all_sources"`
}

// TextGenerator synthesizes narrative text. Satisfied by *llm.Client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Fetcher retrieves readable page text for source enrichment. Optional.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Engine performs layered per-topic research and synthesizes one combined
// narrative draft.
type Engine struct {
	provider  search.Provider
	generator TextGenerator
	fetcher   Fetcher
	maxLayers int
}

// NewEngine creates a research engine. fetcher may be nil; page-content
// enrichment is then skipped.
func NewEngine(provider search.Provider, generator TextGenerator, fetcher Fetcher) *Engine {
	return &Engine{
		provider:  provider,
		generator: generator,
		fetcher:   fetcher,
		maxLayers: DefaultMaxLayers,
	}
}

// SetMaxLayers overrides the per-topic research layer bound.
func (e *Engine) SetMaxLayers(n int) {
	if n > 0 {
		e.maxLayers = n
	}
}

// Research runs layered queries for every prioritized topic independently,
// merges the findings, and synthesizes a narrative draft of roughly
// targetWords words. A topic whose research fails is dropped with a warning
// rather than failing the whole operation; the call errors only when every
// topic failed or the synthesized narrative is below the viability floor.
func (e *Engine) Research(ctx context.Context, topics []core.TopicCandidate, targetWords int) (*Report, error) {
	log := logger.Get()

	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics to research")
	}

	report := &Report{}
	seen := make(map[string]bool)
	var researched []core.TopicCandidate

	for _, topic := range topics {
		findings, err := e.researchTopic(ctx, topic)
		if err != nil {
			log.Warn("Topic research failed, dropping topic", "topic", topic.Topic, "error", err)
			continue
		}
		report.PerTopic = append(report.PerTopic, *findings)
		researched = append(researched, topic)
		for _, url := range findings.Sources {
			if !seen[url] {
				seen[url] = true
				report.AllSources = append(report.AllSources, url)
			}
		}
	}

	if len(report.PerTopic) == 0 {
		return nil, fmt.Errorf("research failed for all %d topics", len(topics))
	}

	narrative, err := e.synthesize(ctx, report.PerTopic, researched, targetWords)
	if err != nil {
		return nil, err
	}
	report.Narrative = narrative

	log.Info("Deep research complete",
		"topics", len(report.PerTopic),
		"sources", len(report.AllSources),
		"narrative_words", countWords(narrative))
	return report, nil
}

// researchTopic issues layered queries for one topic. The first layer asks
// broadly; a second layer digs into the key questions when the first came
// back thin.
func (e *Engine) researchTopic(ctx context.Context, topic core.TopicCandidate) (*TopicFindings, error) {
	findings := &TopicFindings{Topic: topic.Topic}

	query := topic.Topic
	if topic.Description != "" {
		query = fmt.Sprintf("%s: %s", topic.Topic, topic.Description)
	}

	for layer := 0; layer < e.maxLayers; layer++ {
		resp, err := e.provider.Search(ctx, query, search.Config{MaxResults: 10})
		if err != nil {
			if findings.Layers > 0 {
				// A deeper layer failing does not discard what layer one found.
				logger.Get().Warn("Research layer failed", "topic", topic.Topic, "layer", layer+1, "error", err)
				break
			}
			return nil, fmt.Errorf("research query failed: %w", err)
		}

		findings.Layers++
		findings.Insights = append(findings.Insights, strings.TrimSpace(resp.Content))
		findings.Sources = mergeURLs(findings.Sources, resp.SourceURLs)

		if countWords(resp.Content) >= thinFindingsWords {
			break
		}
		query = deeperQuery(topic)
	}

	e.enrich(ctx, findings)
	return findings, nil
}

// deeperQuery builds the follow-up query for a thin first layer, steering
// toward the topic's key questions.
func deeperQuery(topic core.TopicCandidate) string {
	if len(topic.KeyQuestions) > 0 {
		return fmt.Sprintf("in-depth analysis of %s, specifically: %s",
			topic.Topic, strings.Join(topic.KeyQuestions, "; "))
	}
	return fmt.Sprintf("in-depth analysis and recent developments of %s", topic.Topic)
}

// enrich appends readable page text from the first source URL. Failures
// here are recoverable and only logged.
func (e *Engine) enrich(ctx context.Context, findings *TopicFindings) {
	if e.fetcher == nil || len(findings.Sources) == 0 {
		return
	}
	text, err := e.fetcher.FetchText(ctx, findings.Sources[0])
	if err != nil {
		logger.Get().Debug("Source page fetch failed", "url", findings.Sources[0], "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if len(text) > 2000 {
		text = text[:2000]
	}
	findings.Insights = append(findings.Insights, text)
}

// synthesize combines per-topic findings into one narrative whose word
// budget per topic is proportional to the topic's priority score, with a
// floor so no topic is reduced below a coherent minimum.
func (e *Engine) synthesize(ctx context.Context, perTopic []TopicFindings, topics []core.TopicCandidate, targetWords int) (string, error) {
	allocations := allocateWords(topics, targetWords)

	var b strings.Builder
	fmt.Fprintf(&b, "Write a single coherent narrative of about %d words covering the following researched topics. ", targetWords)
	b.WriteString("Weave the topics together with transitions; do not use headings or bullet lists. ")
	b.WriteString("Stay factual and grounded in the findings below.\n")
	for i, f := range perTopic {
		fmt.Fprintf(&b, "\nTopic %d: %s (allocate about %d words)\nFindings:\n%s\n",
			i+1, f.Topic, allocations[i], strings.Join(f.Insights, "\n"))
	}

	narrative, err := e.generator.GenerateText(ctx, b.String(), llm.TextGenerationOptions{MaxTokens: 8192})
	if err != nil {
		return "", fmt.Errorf("narrative synthesis failed: %w", err)
	}

	narrative = strings.TrimSpace(narrative)
	if countWords(narrative) < MinNarrativeWords {
		return "", fmt.Errorf("synthesized narrative too short: %d words (minimum %d)",
			countWords(narrative), MinNarrativeWords)
	}
	return narrative, nil
}

// allocateWords splits the target word count across topics proportionally
// to priority score, flooring each allocation. Zero or missing scores fall
// back to an even split.
func allocateWords(topics []core.TopicCandidate, targetWords int) []int {
	allocations := make([]int, len(topics))
	if len(topics) == 0 {
		return allocations
	}

	var total float64
	for _, t := range topics {
		if t.Score > 0 {
			total += t.Score
		}
	}

	for i, t := range topics {
		var alloc int
		if total > 0 && t.Score > 0 {
			alloc = int(float64(targetWords) * t.Score / total)
		} else {
			alloc = targetWords / len(topics)
		}
		if alloc < minTopicAllocation {
			alloc = minTopicAllocation
		}
		allocations[i] = alloc
	}
	return allocations
}

// mergeURLs appends new URLs preserving order and uniqueness.
func mergeURLs(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, u := range existing {
		seen[u] = true
	}
	for _, u := range incoming {
		if u != "" && !seen[u] {
			seen[u] = true
			existing = append(existing, u)
		}
	}
	return existing
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
