// Package sessionstore persists an Iteration's lifecycle record
// (iteration.json) and orchestrator bookkeeping (meta.json) to disk, the
// part of spec.md §6's `.cowork-v2/iterations/<id>/` layout that
// internal/artifact (artifact envelopes) and internal/memory (decisions,
// patterns) don't cover. Grounded on internal/artifact.Store's
// write-to-temp-then-rename atomic write, reused here for the same
// durability reason: a crash mid-write must never leave a torn
// iteration.json or meta.json behind.
package sessionstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/model"
)

// Store persists Iteration and SessionMeta records under root
// (typically ".cowork-v2/iterations").
type Store struct {
	root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) dir(iterationID string) string {
	return filepath.Join(s.root, iterationID)
}

// SaveIteration writes iteration.json for it.
func (s *Store) SaveIteration(it *model.Iteration) error {
	return s.writeJSON(it.ID, "iteration.json", it)
}

// LoadIteration reads iteration.json for iterationID.
func (s *Store) LoadIteration(iterationID string) (*model.Iteration, error) {
	var it model.Iteration
	if err := s.readJSON(iterationID, "iteration.json", &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// SaveMeta writes meta.json for meta.SessionID.
func (s *Store) SaveMeta(meta *model.SessionMeta) error {
	return s.writeJSON(meta.SessionID, "meta.json", meta)
}

// LoadMeta reads meta.json for iterationID.
func (s *Store) LoadMeta(iterationID string) (*model.SessionMeta, error) {
	var meta model.SessionMeta
	if err := s.readJSON(iterationID, "meta.json", &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// List returns the IDs of every iteration with a persisted record under root.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, forgeerr.Wrap(forgeerr.StorageIo, "listing iterations", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (s *Store) writeJSON(iterationID, name string, v any) error {
	dir := s.dir(iterationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return forgeerr.Wrap(forgeerr.StorageIo, "creating iteration directory", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return forgeerr.Wrap(forgeerr.Serialize, "marshaling "+name, err)
	}
	if err := atomicWrite(filepath.Join(dir, name), data); err != nil {
		return forgeerr.Wrap(forgeerr.StorageIo, "writing "+name, err)
	}
	return nil
}

func (s *Store) readJSON(iterationID, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir(iterationID), name))
	if err != nil {
		if os.IsNotExist(err) {
			return forgeerr.New(forgeerr.ArtifactMissing, name+" not found for iteration "+iterationID)
		}
		return forgeerr.Wrap(forgeerr.StorageIo, "reading "+name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return forgeerr.Wrap(forgeerr.Serialize, "parsing "+name, err)
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
