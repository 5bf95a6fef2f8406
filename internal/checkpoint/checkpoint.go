// Package checkpoint persists backfill progress to a JSON file so an
// interrupted run can resume without reprocessing articles.
package checkpoint

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// MaxURLs is the number of most recent processed URLs kept on disk.
const MaxURLs = 1000

// Checkpoint is the persisted progress of a backfill run.
type Checkpoint struct {
	LastPage      int       `json:"last_page"`
	ProcessedURLs []string  `json:"processed_urls"`
	SavedAt       time.Time `json:"saved_at"`
}

// New builds a checkpoint, keeping only the last MaxURLs urls.
func New(lastPage int, urls []string, now time.Time) *Checkpoint {
	if len(urls) > MaxURLs {
		urls = urls[len(urls)-MaxURLs:]
	}
	kept := make([]string, len(urls))
	copy(kept, urls)
	return &Checkpoint{LastPage: lastPage, ProcessedURLs: kept, SavedAt: now.UTC()}
}

// URLSet returns the processed URLs as a set.
func (c *Checkpoint) URLSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.ProcessedURLs))
	for _, u := range c.ProcessedURLs {
		set[u] = struct{}{}
	}
	return set
}

// FileStore reads and writes a checkpoint at a fixed path.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the checkpoint file path.
func (s *FileStore) Path() string { return s.path }

// Load returns the stored checkpoint, or nil if none exists.
func (s *FileStore) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: read %s", s.path)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, eris.Wrapf(err, "checkpoint: decode %s", s.path)
	}
	return &cp, nil
}

// Save writes the checkpoint atomically: a temp file in the same directory
// is renamed over the target, so readers never see a partial file.
func (s *FileStore) Save(cp *Checkpoint) error {
	if cp == nil {
		return eris.New("checkpoint: nil checkpoint")
	}
	if cp.ProcessedURLs == nil {
		cp.ProcessedURLs = []string{}
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return eris.Wrap(err, "checkpoint: encode")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return eris.Wrap(err, "checkpoint: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "checkpoint: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "checkpoint: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "checkpoint: close temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return eris.Wrapf(err, "checkpoint: rename to %s", s.path)
	}
	return nil
}
