// Package genlog holds the structured audit trail of one episode generation
// attempt. All mutators are pure: they return a new log value, and the
// orchestrator re-threads the returned value through subsequent calls.
package genlog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Stage names form a fixed closed set.
type Stage string

const (
	StageEpisodeAnalysis   Stage = "episodeAnalysis"
	StageInitialSearch     Stage = "initialSearch"
	StageClustering        Stage = "clustering"
	StagePrioritization    Stage = "prioritization"
	StageDeepResearch      Stage = "deepResearch"
	StageContentGeneration Stage = "contentGeneration"
	StageAudioGeneration   Stage = "audioGeneration"
)

// Stages returns the closed stage-name set in pipeline order.
func Stages() []Stage {
	return []Stage{
		StageEpisodeAnalysis,
		StageInitialSearch,
		StageClustering,
		StagePrioritization,
		StageDeepResearch,
		StageContentGeneration,
		StageAudioGeneration,
	}
}

// Status is the lifecycle state of a generation attempt.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrTerminal is returned when a stage write is attempted on a log that has
// already completed or failed.
var ErrTerminal = errors.New("generation log is terminal")

// ErrUnknownStage is returned for stage names outside the closed set.
var ErrUnknownStage = errors.New("unknown generation stage")

// Decision records one human-readable choice the pipeline made, with the
// reasoning behind it. The decision list is append-only.
type Decision struct {
	Stage        Stage     `json:"stage" bson:"stage"`
	Decision     string    `json:"decision" bson:"decision"`
	Reasoning    string    `json:"reasoning" bson:"reasoning"`
	Alternatives []string  `json:"alternatives,omitempty" bson:"alternatives,omitempty"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
}

// Duration tracks total elapsed time plus a per-stage breakdown.
// TotalMs always equals the sum of the per-stage values.
type Duration struct {
	TotalMs int64           `json:"total_ms" bson:"total_ms"`
	StageMs map[Stage]int64 `json:"stage_ms" bson:"stage_ms"`
}

// Log is one generation attempt's audit record.
type Log struct {
	ID        string          `json:"id" bson:"_id"`
	PodcastID string          `json:"podcast_id" bson:"podcast_id"`
	EpisodeID string          `json:"episode_id,omitempty" bson:"episode_id,omitempty"` // Set once an episode is actually created
	Timestamp time.Time       `json:"timestamp" bson:"timestamp"`
	Status    Status          `json:"status" bson:"status"`
	Error     string          `json:"error,omitempty" bson:"error,omitempty"` // Present iff failed
	Duration  Duration        `json:"duration" bson:"duration"`
	Stages    map[Stage]any   `json:"stages" bson:"stages"`
	Decisions []Decision      `json:"decisions" bson:"decisions"`
}

// New creates a log for a fresh generation attempt.
func New(podcastID string) Log {
	stages := make(map[Stage]any, len(Stages()))
	for _, s := range Stages() {
		stages[s] = nil
	}
	return Log{
		ID:        uuid.NewString(),
		PodcastID: podcastID,
		Timestamp: time.Now().UTC(),
		Status:    StatusInProgress,
		Duration:  Duration{StageMs: make(map[Stage]int64)},
		Stages:    stages,
		Decisions: nil,
	}
}

// Terminal reports whether the log has reached a final state.
func (l Log) Terminal() bool {
	return l.Status == StatusCompleted || l.Status == StatusFailed
}

// clone copies the log so reducers never alias the caller's maps or slices.
func (l Log) clone() Log {
	out := l
	out.Stages = make(map[Stage]any, len(l.Stages))
	for k, v := range l.Stages {
		out.Stages[k] = v
	}
	out.Duration.StageMs = make(map[Stage]int64, len(l.Duration.StageMs))
	for k, v := range l.Duration.StageMs {
		out.Duration.StageMs[k] = v
	}
	out.Decisions = make([]Decision, len(l.Decisions))
	copy(out.Decisions, l.Decisions)
	return out
}

// UpdateStage records a stage's result and elapsed time. The total duration
// is recomputed from the per-stage breakdown. Writes to a terminal log are a
// bug surface and return ErrTerminal with the log unchanged.
func UpdateStage(l Log, stage Stage, data any, elapsedMs int64) (Log, error) {
	if l.Terminal() {
		return l, ErrTerminal
	}
	if !validStage(stage) {
		return l, ErrUnknownStage
	}
	out := l.clone()
	out.Stages[stage] = data
	out.Duration.StageMs[stage] = elapsedMs
	out.Duration.TotalMs = 0
	for _, ms := range out.Duration.StageMs {
		out.Duration.TotalMs += ms
	}
	return out, nil
}

// AddDecision appends a decision entry. Decisions may still be appended on a
// terminal log since failure handling records its own final decision.
func AddDecision(l Log, stage Stage, decision, reasoning string, alternatives ...string) Log {
	out := l.clone()
	out.Decisions = append(out.Decisions, Decision{
		Stage:        stage,
		Decision:     decision,
		Reasoning:    reasoning,
		Alternatives: alternatives,
		Timestamp:    time.Now().UTC(),
	})
	return out
}

// AttachEpisode links the created episode to the log.
func AttachEpisode(l Log, episodeID string) Log {
	out := l.clone()
	out.EpisodeID = episodeID
	return out
}

// Complete transitions the log to its successful terminal state.
func Complete(l Log) (Log, error) {
	if l.Terminal() {
		return l, ErrTerminal
	}
	out := l.clone()
	out.Status = StatusCompleted
	out.Error = ""
	return out, nil
}

// Fail transitions the log to its failed terminal state.
func Fail(l Log, message string) (Log, error) {
	if l.Terminal() {
		return l, ErrTerminal
	}
	out := l.clone()
	out.Status = StatusFailed
	out.Error = message
	return out, nil
}

func validStage(s Stage) bool {
	for _, known := range Stages() {
		if s == known {
			return true
		}
	}
	return false
}
