package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

var _ Store = (*LocalStore)(nil)

// LocalStore keeps objects on disk; the API serves them under /audio.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

func (s *LocalStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize object: %w", err)
	}

	return nil
}

func (s *LocalStore) PublicURL(ctx context.Context, objectPath string) (string, error) {
	p, err := cleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}
	if s.baseURL == "" {
		return "", fmt.Errorf("local storage has no public base URL")
	}
	if _, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(p))); err != nil {
		return "", fmt.Errorf("object %s not found: %w", p, err)
	}
	return joinURL(s.baseURL, p), nil
}
