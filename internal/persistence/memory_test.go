package persistence

import (
	"context"
	"testing"
	"time"

	"podgen/internal/core"
	"podgen/internal/genlog"
)

func TestMemoryPodcastCRUD(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()

	podcast := &core.Podcast{ID: "pod-1", Title: "Tech Weekly", CreatedAt: time.Now()}
	if err := db.Podcasts().Create(ctx, podcast); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := db.Podcasts().Get(ctx, "pod-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got == nil || got.Title != "Tech Weekly" {
		t.Errorf("Expected stored podcast, got %+v", got)
	}

	got.Title = "Tech Daily"
	if err := db.Podcasts().Update(ctx, got); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	updated, _ := db.Podcasts().Get(ctx, "pod-1")
	if updated.Title != "Tech Daily" {
		t.Errorf("Expected updated title, got %q", updated.Title)
	}

	if err := db.Podcasts().Delete(ctx, "pod-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	missing, err := db.Podcasts().Get(ctx, "pod-1")
	if err != nil || missing != nil {
		t.Errorf("Expected nil for deleted podcast, got %+v, %v", missing, err)
	}
}

func TestMemoryEpisodesOrderedNewestFirst(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"ep-1", "ep-2", "ep-3"} {
		episode := &core.Episode{ID: id, PodcastID: "pod-1", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := db.Episodes().Create(ctx, episode); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	other := &core.Episode{ID: "ep-x", PodcastID: "pod-2", CreatedAt: base}
	if err := db.Episodes().Create(ctx, other); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	episodes, err := db.Episodes().ListByPodcast(ctx, "pod-1", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(episodes) != 3 {
		t.Fatalf("Expected 3 episodes for pod-1, got %d", len(episodes))
	}
	if episodes[0].ID != "ep-3" || episodes[2].ID != "ep-1" {
		t.Errorf("Expected newest-first ordering, got %s..%s", episodes[0].ID, episodes[2].ID)
	}

	limited, _ := db.Episodes().ListByPodcast(ctx, "pod-1", 2)
	if len(limited) != 2 {
		t.Errorf("Expected limit respected, got %d", len(limited))
	}
}

func TestMemoryLogSaveIsUpsert(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()

	l := genlog.New("pod-1")
	if err := db.GenerationLogs().Save(ctx, l); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	l.EpisodeID = "ep-9"
	if err := db.GenerationLogs().Save(ctx, l); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := db.GenerationLogs().Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got == nil || got.EpisodeID != "ep-9" {
		t.Errorf("Expected upserted snapshot, got %+v", got)
	}

	byEpisode, err := db.GenerationLogs().GetByEpisodeID(ctx, "ep-9")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if byEpisode == nil || byEpisode.ID != l.ID {
		t.Errorf("Expected lookup by episode id, got %+v", byEpisode)
	}
}

func TestMemoryLogRepoSatisfiesGenlogStore(t *testing.T) {
	var _ genlog.Store = NewMemoryDatabase().GenerationLogs()
}
