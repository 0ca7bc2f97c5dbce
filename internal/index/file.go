package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FileStore keeps the index in one JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store for the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the backing file.
func (f *FileStore) Path() string { return f.path }

// Save replaces the file atomically.
func (f *FileStore) Save(_ context.Context, ix *Index) error {
	data, err := json.Marshal(ix)
	if err != nil {
		return eris.Wrap(err, "index: marshal")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "index: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return eris.Wrap(err, "index: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "index: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "index: close temp file")
	}
	return eris.Wrapf(os.Rename(tmp.Name(), f.path), "index: rename to %s", f.path)
}

// Load reads the file. It does not validate; see Open.
func (f *FileStore) Load(_ context.Context) (*Index, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, eris.Wrapf(err, "index: read %s", f.path)
	}
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, eris.Wrapf(err, "index: parse %s", f.path)
	}
	return &ix, nil
}
