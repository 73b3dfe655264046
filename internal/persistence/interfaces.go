// Package persistence provides the document-store abstraction for podcasts,
// episodes, and generation logs.
package persistence

import (
	"context"

	"podgen/internal/core"
	"podgen/internal/genlog"
)

// PodcastRepository handles podcast persistence operations
type PodcastRepository interface {
	// Create inserts a new podcast
	Create(ctx context.Context, podcast *core.Podcast) error

	// Get retrieves a podcast by ID, or nil when absent
	Get(ctx context.Context, id string) (*core.Podcast, error)

	// List retrieves all podcasts
	List(ctx context.Context) ([]core.Podcast, error)

	// Update replaces an existing podcast
	Update(ctx context.Context, podcast *core.Podcast) error

	// Delete removes a podcast by ID
	Delete(ctx context.Context, id string) error
}

// EpisodeRepository handles episode persistence operations
type EpisodeRepository interface {
	// Create inserts a new episode
	Create(ctx context.Context, episode *core.Episode) error

	// Get retrieves an episode by ID, or nil when absent
	Get(ctx context.Context, id string) (*core.Episode, error)

	// ListByPodcast retrieves a podcast's episodes, newest first
	ListByPodcast(ctx context.Context, podcastID string, limit int) ([]core.Episode, error)

	// Update replaces an existing episode
	Update(ctx context.Context, episode *core.Episode) error

	// Delete removes an episode by ID
	Delete(ctx context.Context, id string) error
}

// GenerationLogRepository handles generation log persistence. It satisfies
// genlog.Store so the recorder can write through it directly.
type GenerationLogRepository interface {
	// Save upserts a log snapshot by ID
	Save(ctx context.Context, l genlog.Log) error

	// Get retrieves a log by ID, or nil when absent
	Get(ctx context.Context, id string) (*genlog.Log, error)

	// GetByEpisodeID retrieves the log that produced an episode, or nil
	GetByEpisodeID(ctx context.Context, episodeID string) (*genlog.Log, error)

	// ListByPodcast retrieves a podcast's logs, newest first
	ListByPodcast(ctx context.Context, podcastID string, limit int) ([]genlog.Log, error)
}

// Database aggregates all repositories behind one connection.
type Database interface {
	// Podcasts returns the podcast repository
	Podcasts() PodcastRepository

	// Episodes returns the episode repository
	Episodes() EpisodeRepository

	// GenerationLogs returns the generation log repository
	GenerationLogs() GenerationLogRepository

	// Ping verifies the database connection
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close(ctx context.Context) error
}
