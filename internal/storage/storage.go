package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore persists generated binary artifacts, primarily episode audio,
// and returns a URL the artifact is reachable at.
type BlobStore interface {
	// Store writes data under path and returns its public URL
	Store(ctx context.Context, path string, data []byte, contentType string) (string, error)

	// Delete removes a previously stored artifact
	Delete(ctx context.Context, path string) error
}

// LocalStore is a filesystem-backed BlobStore serving files under a public
// base URL, typically fronted by the HTTP server's static file handler.
type LocalStore struct {
	rootDir string
	baseURL string
}

// NewLocalStore creates a blob store rooted at rootDir. Stored paths map
// to baseURL/<path>.
func NewLocalStore(rootDir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", rootDir, err)
	}
	return &LocalStore{
		rootDir: rootDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Store writes the blob to disk and returns its URL. Paths are cleaned and
// confined to the storage root.
func (s *LocalStore) Store(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", path, err)
	}
	return s.urlFor(path), nil
}

// Delete removes a stored blob. Deleting a missing blob is not an error.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", path, err)
	}
	return nil
}

// RootDir returns the directory blobs live under, for static file serving.
func (s *LocalStore) RootDir() string {
	return s.rootDir
}

func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", fmt.Errorf("empty blob path")
	}
	return filepath.Join(s.rootDir, clean), nil
}

func (s *LocalStore) urlFor(path string) string {
	clean := strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+path)), "/")
	parts := strings.Split(clean, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}
