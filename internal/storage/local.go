package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LocalStore keeps evidence objects on the local filesystem under a root
// directory, mirroring the object path layout. URLs are resolved against a
// configured base URL (typically the host serving the evidence directory).
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates a filesystem-backed store rooted at dir.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence root: %w", err)
	}
	return &LocalStore{root: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(_ context.Context, path string, data []byte, contentType string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}

	log.Debug().
		Str("path", path).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("evidence object stored")
	return path, nil
}

func (s *LocalStore) URL(path string, _ time.Duration) (string, error) {
	return s.baseURL + "/" + path, nil
}

// Root returns the evidence root directory. The retention janitor prunes
// under it.
func (s *LocalStore) Root() string { return s.root }
