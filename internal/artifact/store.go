// Package artifact uploads screenshot rasters to durable storage, returning
// stable URLs the report can embed. Uploads are idempotent per filename and
// run: repeating a run overwrites the same addresses.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrMissingCredential is returned when a backend requires a credential
// that was not supplied. It is the only artifact error treated as fatal;
// everything else aborts just the single upload.
var ErrMissingCredential = errors.New("missing required credential")

// Store uploads one raster addressed by filename and returns its stable
// external URL.
type Store interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// LocalStore implements Store on the local filesystem. Useful for
// development and testing; the returned URL is a file:// path.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{BaseDir: baseDir}
}

// Upload writes data under the store's base directory.
func (s *LocalStore) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	path := filepath.Join(s.BaseDir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return "file://" + abs, nil
}
