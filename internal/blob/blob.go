package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage persists binary artifacts (screenshots) and returns a URL the
// API can hand back instead of an inline data URI.
type Storage interface {
	Put(ctx context.Context, contentType string, data []byte) (string, error)
}

// FileStorage writes artifacts under a local directory and serves them
// through the configured public base URL.
type FileStorage struct {
	dir     string
	baseURL string
}

func NewFileStorage(dir, baseURL string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FileStorage) Put(_ context.Context, contentType string, data []byte) (string, error) {
	name := uuid.NewString() + extensionFor(contentType)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "pdf"):
		return ".pdf"
	default:
		return ".bin"
	}
}
