// Package pipeline contains the episode generation orchestrator: a linear
// state machine over a fixed stage list, threading a generation log value
// through every transition and persisting it after each one.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"podgen/internal/clustering"
	"podgen/internal/core"
	"podgen/internal/differ"
	"podgen/internal/genlog"
	"podgen/internal/llm"
	"podgen/internal/logger"
	"podgen/internal/persistence"
	"podgen/internal/research"
	"podgen/internal/storage"
	"podgen/internal/topics"
)

const (
	// WordsPerMinute is the fixed speaking rate used to convert a
	// requested episode length in minutes to a word target.
	WordsPerMinute = 130

	// MinTargetWords and MaxTargetWords clamp the resolved target so
	// scripts are neither useless nor cost-blowing.
	MinTargetWords = 200
	MaxTargetWords = 2600

	// DefaultTargetMinutes applies when a request specifies no length.
	DefaultTargetMinutes = 10

	// digestEpisodeLimit bounds how much prior history feeds the digest.
	digestEpisodeLimit = 10

	maxPrioritizedTopics = 8
)

// GenerateOptions carries the per-request knobs for one generation run.
type GenerateOptions struct {
	TargetMinutes int    // Episode length in minutes; converted at WordsPerMinute
	TargetWords   int    // Direct word target; takes precedence over minutes
	SelectedTopic string // Optional caller-chosen topic overriding prioritization
}

// Result is what a generation run produced. Log is always populated, also
// on failure, so callers can surface the log id.
type Result struct {
	Episode *core.Episode
	Log     genlog.Log
}

// TopicSearcher finds and ranks topic candidates for a podcast.
type TopicSearcher interface {
	Search(ctx context.Context, podcast core.Podcast, digest core.EpisodeDigest) ([]core.TopicCandidate, error)
}

// SourceRefresher re-vets a podcast's curated source list.
type SourceRefresher interface {
	Refresh(ctx context.Context, podcast core.Podcast) ([]core.PodcastSource, error)
}

// Clusterer groups topic candidates by semantic similarity.
type Clusterer interface {
	Cluster(ctx context.Context, items []clustering.Item) (core.ClusterResult, error)
}

// Researcher performs deep-dive research over prioritized topics.
type Researcher interface {
	Research(ctx context.Context, topics []core.TopicCandidate, targetWords int) (*research.Report, error)
}

// Validator checks a draft's differentiation from prior coverage.
type Validator interface {
	Validate(ctx context.Context, draft string, digest core.EpisodeDigest) (differ.Result, error)
}

// TextGenerator produces script text. Satisfied by *llm.Client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// AudioSynthesizer converts a script to audio bytes.
type AudioSynthesizer interface {
	Synthesize(ctx context.Context, text string, voice core.VoiceConfig) ([]byte, error)
}

// Deps are the orchestrator's collaborators, injected at construction.
type Deps struct {
	DB        persistence.Database
	Blobs     storage.BlobStore
	Searcher  TopicSearcher
	Sources   SourceRefresher
	Clusterer Clusterer
	Research  Researcher
	Differ    Validator
	Generator TextGenerator
	TTS       AudioSynthesizer
}

// Orchestrator runs the episode generation pipeline. Stages run
// sequentially for one request; the orchestrator is the sole writer of its
// generation log.
type Orchestrator struct {
	deps     Deps
	recorder *genlog.Recorder
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		recorder: genlog.NewRecorder(deps.DB.GenerationLogs()),
	}
}

// NewLog creates and persists a fresh generation log, so callers can hand
// out the log id before the pipeline starts.
func (o *Orchestrator) NewLog(ctx context.Context, podcastID string) (genlog.Log, error) {
	l := genlog.New(podcastID)
	if err := o.recorder.Save(ctx, l); err != nil {
		return l, err
	}
	return l, nil
}

// Generate runs the full pipeline for a podcast. The returned Result always
// carries the final log state; the error is non-nil exactly when the run
// failed fatally.
func (o *Orchestrator) Generate(ctx context.Context, podcast core.Podcast, opts GenerateOptions) (Result, error) {
	l, err := o.NewLog(ctx, podcast.ID)
	if err != nil {
		return Result{Log: l}, fmt.Errorf("failed to create generation log: %w", err)
	}
	return o.Run(ctx, podcast, l, opts)
}

// Run executes the pipeline against a pre-created log. Used by the worker
// queue, which persists the log before scheduling the run.
func (o *Orchestrator) Run(ctx context.Context, podcast core.Podcast, l genlog.Log, opts GenerateOptions) (Result, error) {
	log := logger.Get()
	log.Info("Starting episode generation", "podcast_id", podcast.ID, "log_id", l.ID)

	// Target length resolution. Fatal: without a target nothing downstream
	// is meaningful.
	targetWords, err := ResolveTargetWords(opts.TargetMinutes, opts.TargetWords)
	if err != nil {
		return o.fail(ctx, l, genlog.StageEpisodeAnalysis, fmt.Errorf("target length resolution: %w", err))
	}

	// Episode history analysis, with source refresh folded into the same
	// stage window.
	start := time.Now()

	if o.deps.Sources != nil && len(podcast.Sources) > 0 {
		refreshed, refreshErr := o.deps.Sources.Refresh(ctx, podcast)
		if refreshErr != nil {
			l = genlog.AddDecision(l, genlog.StageEpisodeAnalysis,
				"Kept existing curated sources",
				fmt.Sprintf("source refresh failed: %v", refreshErr))
		} else if len(refreshed) > 0 {
			podcast.Sources = refreshed
			l = genlog.AddDecision(l, genlog.StageEpisodeAnalysis,
				fmt.Sprintf("Refreshed %d curated sources", len(refreshed)),
				"source vetting succeeded")
		}
	}

	digest, err := o.buildDigest(ctx, podcast)
	if err != nil {
		return o.fail(ctx, l, genlog.StageEpisodeAnalysis, fmt.Errorf("episode history analysis: %w", err))
	}
	l = genlog.AddDecision(l, genlog.StageEpisodeAnalysis,
		fmt.Sprintf("Resolved target length to %d words", targetWords),
		fmt.Sprintf("requested minutes=%d words=%d, speaking rate %d wpm, clamped to [%d, %d]",
			opts.TargetMinutes, opts.TargetWords, WordsPerMinute, MinTargetWords, MaxTargetWords))
	l, err = o.record(ctx, l, genlog.StageEpisodeAnalysis, map[string]any{
		"episode_count": digest.EpisodeCount,
		"target_words":  targetWords,
	}, start)
	if err != nil {
		return Result{Log: l}, err
	}

	// Initial topic search, plus the source-guided supplementary pass.
	start = time.Now()
	candidates, err := o.deps.Searcher.Search(ctx, podcast, digest)
	if err != nil {
		return o.fail(ctx, l, genlog.StageInitialSearch, fmt.Errorf("initial topic search: %w", err))
	}
	candidates, l = o.supplementarySearch(ctx, l, podcast, digest, candidates)
	l, err = o.record(ctx, l, genlog.StageInitialSearch, map[string]any{
		"candidates": topicTitles(candidates),
	}, start)
	if err != nil {
		return Result{Log: l}, err
	}

	// Clustering. Recoverable: an empty result means clustering was
	// unavailable and the un-clustered list proceeds.
	start = time.Now()
	prioritized, l := o.clusterAndConsolidate(ctx, l, candidates)
	l, err = o.record(ctx, l, genlog.StageClustering, map[string]any{
		"consolidated": topicTitles(prioritized),
	}, start)
	if err != nil {
		return Result{Log: l}, err
	}

	// Prioritization. Fatal: no viable topics means no episode.
	start = time.Now()
	prioritized, l = o.prioritize(l, prioritized, opts.SelectedTopic)
	if len(prioritized) == 0 {
		return o.fail(ctx, l, genlog.StagePrioritization, fmt.Errorf("topic prioritization: no viable topics remained"))
	}
	l, err = o.record(ctx, l, genlog.StagePrioritization, map[string]any{
		"topics": topicTitles(prioritized),
	}, start)
	if err != nil {
		return Result{Log: l}, err
	}

	// Deep-dive research. Fatal, including thin synthesis.
	start = time.Now()
	report, err := o.deps.Research.Research(ctx, prioritized, targetWords)
	if err != nil {
		return o.fail(ctx, l, genlog.StageDeepResearch, fmt.Errorf("deep research: %w", err))
	}
	l = genlog.AddDecision(l, genlog.StageDeepResearch,
		fmt.Sprintf("Researched %d topics across %d sources", len(report.PerTopic), len(report.AllSources)),
		"per-topic layered research merged into one narrative")
	l, err = o.record(ctx, l, genlog.StageDeepResearch, map[string]any{
		"topics":  len(report.PerTopic),
		"sources": report.AllSources,
	}, start)
	if err != nil {
		return Result{Log: l}, err
	}

	// Content generation: draft assembly (fatal), differentiation
	// (recoverable), bullet points (recoverable), episode persistence
	// (fatal).
	start = time.Now()
	episode, l, err := o.assembleContent(ctx, l, podcast, digest, report, targetWords)
	if err != nil {
		return o.fail(ctx, l, genlog.StageContentGeneration, err)
	}
	l = genlog.AttachEpisode(l, episode.ID)
	l, err = o.record(ctx, l, genlog.StageContentGeneration, map[string]any{
		"episode_id":    episode.ID,
		"title":         episode.Title,
		"content_words": len(strings.Fields(episode.Content)),
	}, start)
	if err != nil {
		return Result{Episode: episode, Log: l}, err
	}

	// Audio synthesis. Fatal on failure, but the episode already persists
	// without audio; content without audio beats losing the content.
	start = time.Now()
	audioURL, err := o.synthesizeAudio(ctx, episode, podcast.Voice)
	if err != nil {
		res, ferr := o.fail(ctx, l, genlog.StageAudioGeneration, fmt.Errorf("audio synthesis: %w", err))
		res.Episode = episode
		return res, ferr
	}
	episode.AudioURL = audioURL
	if err := o.deps.DB.Episodes().Update(ctx, episode); err != nil {
		res, ferr := o.fail(ctx, l, genlog.StageAudioGeneration, fmt.Errorf("attaching audio url: %w", err))
		res.Episode = episode
		return res, ferr
	}
	l, err = o.record(ctx, l, genlog.StageAudioGeneration, map[string]any{
		"audio_url": audioURL,
	}, start)
	if err != nil {
		return Result{Episode: episode, Log: l}, err
	}

	l, err = genlog.Complete(l)
	if err != nil {
		return Result{Episode: episode, Log: l}, err
	}
	if err := o.recorder.Save(ctx, l); err != nil {
		return Result{Episode: episode, Log: l}, err
	}

	log.Info("Episode generation complete", "podcast_id", podcast.ID, "episode_id", episode.ID, "log_id", l.ID)
	return Result{Episode: episode, Log: l}, nil
}

// ResolveTargetWords converts the requested length to a word target at the
// fixed speaking rate and clamps it to the viable range.
func ResolveTargetWords(minutes, words int) (int, error) {
	if minutes < 0 || words < 0 {
		return 0, fmt.Errorf("negative target length")
	}
	target := words
	if target == 0 {
		if minutes == 0 {
			minutes = DefaultTargetMinutes
		}
		target = minutes * WordsPerMinute
	}
	if target < MinTargetWords {
		target = MinTargetWords
	}
	if target > MaxTargetWords {
		target = MaxTargetWords
	}
	return target, nil
}

// record writes a stage result plus elapsed time and persists the log.
func (o *Orchestrator) record(ctx context.Context, l genlog.Log, stage genlog.Stage, data any, start time.Time) (genlog.Log, error) {
	updated, err := genlog.UpdateStage(l, stage, data, time.Since(start).Milliseconds())
	if err != nil {
		return l, fmt.Errorf("failed to record stage %s: %w", stage, err)
	}
	if err := o.recorder.Save(ctx, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// fail transitions the log to failed, persists it, and propagates the
// stage error.
func (o *Orchestrator) fail(ctx context.Context, l genlog.Log, stage genlog.Stage, stageErr error) (Result, error) {
	logger.Error("Generation stage failed", stageErr, "stage", string(stage), "log_id", l.ID)
	l = genlog.AddDecision(l, stage, "Aborted generation", stageErr.Error())
	failed, err := genlog.Fail(l, stageErr.Error())
	if err != nil {
		return Result{Log: l}, stageErr
	}
	if saveErr := o.recorder.Save(ctx, failed); saveErr != nil {
		logger.Error("Failed to persist failed generation log", saveErr, "log_id", failed.ID)
	}
	return Result{Log: failed}, stageErr
}

// buildDigest summarizes the podcast's recent episodes for differentiation
// and topic exclusion.
func (o *Orchestrator) buildDigest(ctx context.Context, podcast core.Podcast) (core.EpisodeDigest, error) {
	episodes, err := o.deps.DB.Episodes().ListByPodcast(ctx, podcast.ID, digestEpisodeLimit)
	if err != nil {
		return core.EpisodeDigest{}, err
	}

	digest := core.EpisodeDigest{
		PodcastID:    podcast.ID,
		EpisodeCount: len(episodes),
	}
	var summaries []string
	for _, e := range episodes {
		digest.RecentTitles = append(digest.RecentTitles, e.Title)
		digest.RecentTopics = append(digest.RecentTopics, e.BulletPoints...)
		if e.Description != "" {
			summaries = append(summaries, e.Description)
		}
	}
	digest.Summary = strings.Join(summaries, "\n")
	return digest, nil
}

// supplementarySearch runs a second, curated-source-biased search pass and
// merges its candidates in. Recoverable: failure proceeds with the initial
// results only.
func (o *Orchestrator) supplementarySearch(ctx context.Context, l genlog.Log, podcast core.Podcast, digest core.EpisodeDigest, initial []core.TopicCandidate) ([]core.TopicCandidate, genlog.Log) {
	var names []string
	for _, src := range podcast.Sources {
		if src.Name != "" {
			names = append(names, src.Name)
		}
	}
	if len(names) == 0 {
		return initial, l
	}

	biased := podcast
	biased.Description = fmt.Sprintf("%s as covered by %s", podcast.Description, strings.Join(names, ", "))

	extra, err := o.deps.Searcher.Search(ctx, biased, digest)
	if err != nil {
		l = genlog.AddDecision(l, genlog.StageInitialSearch,
			"Proceeding with initial search results only",
			fmt.Sprintf("supplementary source-guided search failed: %v", err))
		return initial, l
	}

	merged := topics.Deduplicate(append(initial, extra...))
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > maxPrioritizedTopics {
		merged = merged[:maxPrioritizedTopics]
	}
	l = genlog.AddDecision(l, genlog.StageInitialSearch,
		fmt.Sprintf("Merged %d supplementary candidates", len(extra)),
		"source-guided search succeeded")
	return merged, l
}

// clusterAndConsolidate groups candidates and keeps one representative per
// cluster. An unavailable clusterer falls back to the un-clustered list.
func (o *Orchestrator) clusterAndConsolidate(ctx context.Context, l genlog.Log, candidates []core.TopicCandidate) ([]core.TopicCandidate, genlog.Log) {
	items := make([]clustering.Item, len(candidates))
	for i, c := range candidates {
		items[i] = clustering.Item{ID: c.Topic, Text: c.Topic + ": " + c.Description}
	}

	result, err := o.deps.Clusterer.Cluster(ctx, items)
	if err != nil || result.Empty() {
		reason := "clustering returned no clusters"
		if err != nil {
			reason = fmt.Sprintf("clustering unavailable: %v", err)
		}
		l = genlog.AddDecision(l, genlog.StageClustering,
			"Proceeding with un-clustered topic list", reason)
		return candidates, l
	}

	consolidated := clustering.Consolidate(result, candidates)
	l = genlog.AddDecision(l, genlog.StageClustering,
		fmt.Sprintf("Consolidated %d candidates into %d topics", len(candidates), len(consolidated)),
		fmt.Sprintf("%d similarity clusters, highest-scored member kept per cluster", len(result.Clusters)))
	return consolidated, l
}

// prioritize applies the caller's topic override or keeps the ranked order.
func (o *Orchestrator) prioritize(l genlog.Log, candidates []core.TopicCandidate, selected string) ([]core.TopicCandidate, genlog.Log) {
	selected = strings.TrimSpace(selected)
	if selected == "" {
		if len(candidates) > maxPrioritizedTopics {
			candidates = candidates[:maxPrioritizedTopics]
		}
		return candidates, l
	}

	for i, c := range candidates {
		if strings.Contains(strings.ToLower(c.Topic), strings.ToLower(selected)) {
			chosen := candidates[i]
			l = genlog.AddDecision(l, genlog.StagePrioritization,
				fmt.Sprintf("Using caller-selected topic %q", chosen.Topic),
				"explicit topic selection overrides ranking", topicTitles(candidates)...)
			return []core.TopicCandidate{chosen}, l
		}
	}

	l = genlog.AddDecision(l, genlog.StagePrioritization,
		fmt.Sprintf("Using caller-selected topic %q", selected),
		"selected topic not among search candidates, researching it directly")
	return []core.TopicCandidate{{Topic: selected, Relevance: 10, Score: 100}}, l
}

// topicTitles projects candidates to their titles for log records.
func topicTitles(candidates []core.TopicCandidate) []string {
	titles := make([]string, len(candidates))
	for i, c := range candidates {
		titles[i] = c.Topic
	}
	return titles
}

// assembleContent drafts the script, runs differentiation, generates bullet
// points, and persists the episode. The returned error is fatal.
func (o *Orchestrator) assembleContent(ctx context.Context, l genlog.Log, podcast core.Podcast, digest core.EpisodeDigest, report *research.Report, targetWords int) (*core.Episode, genlog.Log, error) {
	draft, err := o.draftScript(ctx, podcast, report, targetWords)
	if err != nil {
		return nil, l, fmt.Errorf("content draft assembly: %w", err)
	}
	if words := len(strings.Fields(draft)); words < targetWords/2 {
		return nil, l, fmt.Errorf("content draft assembly: draft has %d words, below minimum %d", words, targetWords/2)
	}

	draft, l = o.differentiate(ctx, l, draft, digest)
	title, description := o.titleAndDescription(ctx, podcast, draft)
	bullets, l := o.bulletPoints(ctx, l, draft)

	episode := &core.Episode{
		ID:           uuid.NewString(),
		PodcastID:    podcast.ID,
		Title:        title,
		Description:  description,
		Content:      draft,
		Sources:      report.AllSources,
		BulletPoints: bullets,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.deps.DB.Episodes().Create(ctx, episode); err != nil {
		return nil, l, fmt.Errorf("episode persistence: %w", err)
	}
	return episode, l, nil
}

// draftScript turns the research narrative into a spoken-word script.
func (o *Orchestrator) draftScript(ctx context.Context, podcast core.Podcast, report *research.Report, targetWords int) (string, error) {
	prompt := fmt.Sprintf(`Turn the following research narrative into a podcast episode script of about %d words for "%s" (%s).

Write flowing spoken-word prose for a single host: no headings, no bullet lists, no stage directions. Open with a hook, close with a short wrap-up.

Research narrative:
%s`, targetWords, podcast.Title, podcast.Description, report.Narrative)

	draft, err := o.deps.Generator.GenerateText(ctx, prompt, llm.TextGenerationOptions{MaxTokens: 8192})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(draft), nil
}

// differentiate validates the draft against prior coverage. Recoverable:
// the original draft survives any failure here.
func (o *Orchestrator) differentiate(ctx context.Context, l genlog.Log, draft string, digest core.EpisodeDigest) (string, genlog.Log) {
	result, err := o.deps.Differ.Validate(ctx, draft, digest)
	if err != nil {
		l = genlog.AddDecision(l, genlog.StageContentGeneration,
			"Kept original draft",
			fmt.Sprintf("differentiation validation failed: %v", err))
		return draft, l
	}
	if result.IsPassing {
		l = genlog.AddDecision(l, genlog.StageContentGeneration,
			"Draft sufficiently differentiated",
			fmt.Sprintf("similarity %.2f within threshold", result.SimilarityScore))
		return draft, l
	}
	if result.ImprovedContent != "" {
		l = genlog.AddDecision(l, genlog.StageContentGeneration,
			"Using rewritten draft",
			fmt.Sprintf("similarity %.2f exceeded threshold, one rewrite pass applied", result.SimilarityScore),
			"keep original draft")
		return result.ImprovedContent, l
	}
	l = genlog.AddDecision(l, genlog.StageContentGeneration,
		"Kept original draft despite similarity",
		fmt.Sprintf("similarity %.2f exceeded threshold but rewrite produced nothing usable", result.SimilarityScore))
	return draft, l
}

// titleAndDescription asks the model for episode metadata, falling back to
// derived values when parsing fails.
func (o *Orchestrator) titleAndDescription(ctx context.Context, podcast core.Podcast, draft string) (string, string) {
	preview := draft
	if len(preview) > 1500 {
		preview = preview[:1500]
	}
	prompt := fmt.Sprintf(`Given this podcast episode script, return JSON with "title" (under 80 characters, no episode numbers) and "description" (2-3 sentences).

Script:
%s

Return only the JSON object.`, preview)

	raw, err := o.deps.Generator.GenerateText(ctx, prompt, llm.TextGenerationOptions{MaxTokens: 512})
	if err == nil {
		var meta struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if parseErr := llm.UnmarshalLoose(raw, &meta); parseErr == nil && meta.Title != "" {
			return meta.Title, meta.Description
		}
		if title, ok := llm.ExtractField(raw, "title"); ok && title != "" {
			description, _ := llm.ExtractField(raw, "description")
			return title, description
		}
	}

	fallback := fmt.Sprintf("%s: %s", podcast.Title, time.Now().UTC().Format("January 2, 2006"))
	return fallback, ""
}

// bulletPoints summarizes the draft into short takeaways. Recoverable: an
// empty bullet list is acceptable.
func (o *Orchestrator) bulletPoints(ctx context.Context, l genlog.Log, draft string) ([]string, genlog.Log) {
	prompt := fmt.Sprintf(`List the 3-5 main takeaways of this podcast episode script as a numbered list of short sentences.

Script:
%s`, draft)

	raw, err := o.deps.Generator.GenerateText(ctx, prompt, llm.TextGenerationOptions{MaxTokens: 1024})
	if err != nil {
		l = genlog.AddDecision(l, genlog.StageContentGeneration,
			"Publishing without bullet points",
			fmt.Sprintf("bullet point generation failed: %v", err))
		return nil, l
	}
	bullets := llm.ParseNumberedList(raw)
	if len(bullets) == 0 {
		l = genlog.AddDecision(l, genlog.StageContentGeneration,
			"Publishing without bullet points", "model response contained no usable list items")
	}
	return bullets, l
}

// synthesizeAudio runs TTS and stores the audio blob.
func (o *Orchestrator) synthesizeAudio(ctx context.Context, episode *core.Episode, voice core.VoiceConfig) (string, error) {
	audio, err := o.deps.TTS.Synthesize(ctx, episode.Content, voice)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("episodes/%s.mp3", episode.ID)
	url, err := o.deps.Blobs.Store(ctx, path, audio, "audio/mpeg")
	if err != nil {
		return "", fmt.Errorf("storing audio blob: %w", err)
	}
	return url, nil
}
