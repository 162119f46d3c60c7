package searchindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads the index file at path, returning a fresh empty Index
// if the file doesn't exist — the index is a pure function of the
// manifests on disk and is always safe to rebuild.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", path, err)
	}
	ix := New()
	if err := json.Unmarshal(data, ix); err != nil {
		return nil, fmt.Errorf("parsing index %s: %w", path, err)
	}
	if ix.Keywords == nil {
		ix.Keywords = make(map[string][]Ref)
	}
	if ix.Projects == nil {
		ix.Projects = make(map[string]ProjectStats)
	}
	return ix, nil
}

// Save writes the index via temp-file + rename
// single-writer-per-process rule for the search index file.
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp index: %w", err)
	}
	return os.Rename(tmp, path)
}
