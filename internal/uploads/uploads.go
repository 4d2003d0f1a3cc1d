// Package uploads stores drawing files on disk. Filenames are prefixed with
// a millisecond timestamp so concurrent uploads of the same name don't
// collide.
package uploads

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes data under a timestamped filename and returns that filename.
func (s *Store) Save(originalName string, data []byte) (string, error) {
	filename := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(originalName))
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return filename, nil
}

// Load reads a stored file by name. The name is flattened to its base so a
// crafted filename cannot escape the upload directory.
func (s *Store) Load(filename string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, filepath.Base(filename)))
}
