package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "https://cdn.example.com/media/")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	url, err := store.Store(context.Background(), "episodes/ep-1.mp3", []byte("audio bytes"), "audio/mpeg")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if url != "https://cdn.example.com/media/episodes/ep-1.mp3" {
		t.Errorf("Expected mapped public URL, got %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "episodes", "ep-1.mp3"))
	if err != nil {
		t.Fatalf("Expected blob on disk, got %v", err)
	}
	if string(data) != "audio bytes" {
		t.Errorf("Expected stored bytes, got %q", string(data))
	}

	if err := store.Delete(context.Background(), "episodes/ep-1.mp3"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "episodes", "ep-1.mp3")); !os.IsNotExist(err) {
		t.Error("Expected blob removed from disk")
	}
}

func TestDeleteMissingBlob(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/media")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := store.Delete(context.Background(), "never/stored.mp3"); err != nil {
		t.Errorf("Expected missing blob deletion to succeed, got %v", err)
	}
}

func TestStoreConfinesPaths(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/media")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err = store.Store(context.Background(), "../escape.mp3", []byte("x"), "audio/mpeg")
	if err != nil {
		t.Fatalf("Expected traversal cleaned rather than rejected, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "escape.mp3")); statErr != nil {
		t.Error("Expected traversal path confined to storage root")
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "escape.mp3")); statErr == nil {
		t.Error("Expected no file written outside storage root")
	}
}

func TestStoreEmptyPath(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/media")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := store.Store(context.Background(), "", []byte("x"), "audio/mpeg"); err == nil {
		t.Error("Expected error for empty path")
	}
}
