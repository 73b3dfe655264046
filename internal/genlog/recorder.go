package genlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"podgen/internal/logger"
)

// Store is the persistence boundary the recorder writes through.
type Store interface {
	Save(ctx context.Context, l Log) error
	Get(ctx context.Context, id string) (*Log, error)
	GetByEpisodeID(ctx context.Context, episodeID string) (*Log, error)
}

// Recorder persists generation logs. The orchestrator is the sole writer for
// a given log id, so no locking beyond atomic document writes is needed.
type Recorder struct {
	store Store
	log   *slog.Logger
}

// NewRecorder creates a recorder backed by the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store: store,
		log:   logger.Get(),
	}
}

// Save writes the current log state. Save failures are surfaced to the
// caller; the pipeline treats them according to the running stage's policy.
func (r *Recorder) Save(ctx context.Context, l Log) error {
	if err := r.store.Save(ctx, l); err != nil {
		return fmt.Errorf("failed to save generation log %s: %w", l.ID, err)
	}
	r.log.Debug("Saved generation log", "id", l.ID, "status", string(l.Status))
	return nil
}

// Get retrieves a log by id, or nil when it does not exist.
func (r *Recorder) Get(ctx context.Context, id string) (*Log, error) {
	return r.store.Get(ctx, id)
}

// GetByEpisodeID retrieves the log that produced an episode, or nil.
func (r *Recorder) GetByEpisodeID(ctx context.Context, episodeID string) (*Log, error) {
	return r.store.GetByEpisodeID(ctx, episodeID)
}

// Document converts a log to a map with absent values recursively stripped,
// since the underlying store rejects them.
func Document(l Log) (map[string]any, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation log: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode generation log document: %w", err)
	}
	stripped, _ := stripEmpty(doc)
	out, ok := stripped.(map[string]any)
	if !ok {
		out = map[string]any{}
	}
	return out, nil
}

// stripEmpty removes nil values from maps and slices recursively. The second
// return reports whether the value itself should be dropped.
func stripEmpty(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			cleaned, drop := stripEmpty(inner)
			if drop {
				continue
			}
			out[k] = cleaned
		}
		return out, false
	case []any:
		out := make([]any, 0, len(val))
		for _, inner := range val {
			cleaned, drop := stripEmpty(inner)
			if drop {
				continue
			}
			out = append(out, cleaned)
		}
		return out, false
	default:
		return val, false
	}
}
