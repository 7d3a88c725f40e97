package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/google/renameio/v2"

	"github.com/aq2208/gcart-api/internal/usecase"
)

// FileSnapshot keeps the cart snapshot in a single JSON file. Writes go to a
// temp file in the same directory which is fsynced and renamed over the
// target, so a crash leaves either the old or the new file.
type FileSnapshot struct {
	path string
}

func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{path: path}
}

func (f *FileSnapshot) Load(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, usecase.ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", f.path)
	}
	return b, nil
}

func (f *FileSnapshot) Save(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errors.Wrap(err, "create snapshot dir")
	}
	if err := renameio.WriteFile(f.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", f.path)
	}
	return nil
}

func (f *FileSnapshot) Path() string { return f.path }

var _ usecase.SnapshotStore = (*FileSnapshot)(nil)
