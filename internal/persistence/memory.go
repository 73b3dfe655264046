package persistence

import (
	"context"
	"sort"
	"sync"

	"podgen/internal/core"
	"podgen/internal/genlog"
)

// MemoryDatabase is an in-memory Database for tests and local runs.
type MemoryDatabase struct {
	podcasts *memoryPodcastRepo
	episodes *memoryEpisodeRepo
	logs     *memoryLogRepo
}

// NewMemoryDatabase creates an empty in-memory database.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		podcasts: &memoryPodcastRepo{items: make(map[string]core.Podcast)},
		episodes: &memoryEpisodeRepo{items: make(map[string]core.Episode)},
		logs:     &memoryLogRepo{items: make(map[string]genlog.Log)},
	}
}

func (d *MemoryDatabase) Podcasts() PodcastRepository             { return d.podcasts }
func (d *MemoryDatabase) Episodes() EpisodeRepository             { return d.episodes }
func (d *MemoryDatabase) GenerationLogs() GenerationLogRepository { return d.logs }

func (d *MemoryDatabase) Ping(ctx context.Context) error  { return nil }
func (d *MemoryDatabase) Close(ctx context.Context) error { return nil }

type memoryPodcastRepo struct {
	mu    sync.RWMutex
	items map[string]core.Podcast
}

func (r *memoryPodcastRepo) Create(ctx context.Context, podcast *core.Podcast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[podcast.ID] = *podcast
	return nil
}

func (r *memoryPodcastRepo) Get(ctx context.Context, id string) (*core.Podcast, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	podcast, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &podcast, nil
}

func (r *memoryPodcastRepo) List(ctx context.Context) ([]core.Podcast, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	podcasts := make([]core.Podcast, 0, len(r.items))
	for _, p := range r.items {
		podcasts = append(podcasts, p)
	}
	sort.Slice(podcasts, func(i, j int) bool {
		return podcasts[i].CreatedAt.After(podcasts[j].CreatedAt)
	})
	return podcasts, nil
}

func (r *memoryPodcastRepo) Update(ctx context.Context, podcast *core.Podcast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[podcast.ID] = *podcast
	return nil
}

func (r *memoryPodcastRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type memoryEpisodeRepo struct {
	mu    sync.RWMutex
	items map[string]core.Episode
}

func (r *memoryEpisodeRepo) Create(ctx context.Context, episode *core.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[episode.ID] = *episode
	return nil
}

func (r *memoryEpisodeRepo) Get(ctx context.Context, id string) (*core.Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	episode, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &episode, nil
}

func (r *memoryEpisodeRepo) ListByPodcast(ctx context.Context, podcastID string, limit int) ([]core.Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var episodes []core.Episode
	for _, e := range r.items {
		if e.PodcastID == podcastID {
			episodes = append(episodes, e)
		}
	}
	sort.Slice(episodes, func(i, j int) bool {
		return episodes[i].CreatedAt.After(episodes[j].CreatedAt)
	})
	if limit > 0 && len(episodes) > limit {
		episodes = episodes[:limit]
	}
	return episodes, nil
}

func (r *memoryEpisodeRepo) Update(ctx context.Context, episode *core.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[episode.ID] = *episode
	return nil
}

func (r *memoryEpisodeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type memoryLogRepo struct {
	mu    sync.RWMutex
	items map[string]genlog.Log
}

func (r *memoryLogRepo) Save(ctx context.Context, l genlog.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[l.ID] = l
	return nil
}

func (r *memoryLogRepo) Get(ctx context.Context, id string) (*genlog.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *memoryLogRepo) GetByEpisodeID(ctx context.Context, episodeID string) (*genlog.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.items {
		if l.EpisodeID == episodeID {
			found := l
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryLogRepo) ListByPodcast(ctx context.Context, podcastID string, limit int) ([]genlog.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var logs []genlog.Log
	for _, l := range r.items {
		if l.PodcastID == podcastID {
			logs = append(logs, l)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
