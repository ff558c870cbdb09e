// Package memory implements C2: project-level and per-iteration knowledge
// persistence (spec.md §4.2), grounded on
// original_source/crates/cowork-core/src/domain/memory.rs for the
// Decision/Pattern/Insight shapes, and writing through its own copy of the
// artifact package's temp-file-then-rename atomic write for durability —
// the same single-writer assumption
// the teacher's internal/store package makes across its many files sharing
// one *sql.DB and one sync.RWMutex.
package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cowork-forge/forge/internal/flog"
	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/model"
)

// Store implements C2 over the local filesystem, rooted at
// .cowork-v2/memory per spec.md §6.
type Store struct {
	mu   sync.Mutex
	root string
}

// New returns a Store rooted at root (typically ".cowork-v2/memory").
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) projectPath() string {
	return filepath.Join(s.root, "project_memory.json")
}

func (s *Store) iterationPath(iterationID string) string {
	return filepath.Join(s.root, "iterations", iterationID+".json")
}

// LoadProjectMemory loads project-level memory, returning an empty
// ProjectMemory if none has been saved yet.
func (s *Store) LoadProjectMemory() (model.ProjectMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pm model.ProjectMemory
	ok, err := readJSON(s.projectPath(), &pm)
	if err != nil {
		return pm, err
	}
	if !ok {
		return model.ProjectMemory{}, nil
	}
	return pm, nil
}

func (s *Store) saveProjectMemory(pm model.ProjectMemory) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return forgeerr.Wrap(forgeerr.StorageIo, "creating memory directory", err)
	}
	return writeJSON(s.projectPath(), pm)
}

// AddDecision appends a project-level decision (last-writer-wins on disk,
// per spec.md §4.2 — no concurrent writers are expected within one
// orchestrator process, enforced here by mu).
func (s *Store) AddDecision(text string, stage model.Stage, tags []string, confidence float64) (model.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pm model.ProjectMemory
	ok, err := readJSON(s.projectPath(), &pm)
	if err != nil {
		return model.Decision{}, err
	}
	_ = ok

	d := model.Decision{
		ID:         uuid.New().String(),
		Text:       text,
		Stage:      stage,
		Tags:       tags,
		Confidence: confidence,
		RecordedAt: time.Now().UTC(),
	}
	pm.Decisions = append(pm.Decisions, d)
	if err := s.saveProjectMemory(pm); err != nil {
		return model.Decision{}, err
	}
	flog.Get(flog.CategoryMemory).Debugw("decision recorded", "id", d.ID, "stage", stage)
	return d, nil
}

// AddPattern appends a project-level pattern, or increments Occurrences if
// an identical Text already exists.
func (s *Store) AddPattern(text string, tags []string) (model.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pm model.ProjectMemory
	if _, err := readJSON(s.projectPath(), &pm); err != nil {
		return model.Pattern{}, err
	}

	for i := range pm.Patterns {
		if pm.Patterns[i].Text == text {
			pm.Patterns[i].Occurrences++
			if err := s.saveProjectMemory(pm); err != nil {
				return model.Pattern{}, err
			}
			return pm.Patterns[i], nil
		}
	}

	p := model.Pattern{
		ID:          uuid.New().String(),
		Text:        text,
		Tags:        tags,
		Occurrences: 1,
		RecordedAt:  time.Now().UTC(),
	}
	pm.Patterns = append(pm.Patterns, p)
	if err := s.saveProjectMemory(pm); err != nil {
		return model.Pattern{}, err
	}
	return p, nil
}

// SaveIterationMemory persists per-iteration memory.
func (s *Store) SaveIterationMemory(im model.IterationMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Join(s.root, "iterations")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return forgeerr.Wrap(forgeerr.StorageIo, "creating iteration memory directory", err)
	}
	return writeJSON(s.iterationPath(im.IterationID), im)
}

// LoadIterationMemory loads per-iteration memory, returning an empty record
// (with IterationID set) if none has been saved yet.
func (s *Store) LoadIterationMemory(iterationID string) (model.IterationMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var im model.IterationMemory
	ok, err := readJSON(s.iterationPath(iterationID), &im)
	if err != nil {
		return im, err
	}
	if !ok {
		return model.IterationMemory{IterationID: iterationID}, nil
	}
	return im, nil
}

// AddIterationItem appends an insight/issue/learning to iterationID's memory.
func (s *Store) AddIterationItem(iterationID, kind, text string, stage model.Stage, importance model.Importance) (model.IterationMemoryItem, error) {
	im, err := s.LoadIterationMemory(iterationID)
	if err != nil {
		return model.IterationMemoryItem{}, err
	}
	item := model.IterationMemoryItem{
		ID:         uuid.New().String(),
		Kind:       kind,
		Text:       text,
		Stage:      stage,
		Importance: importance,
		RecordedAt: time.Now().UTC(),
	}
	im.Items = append(im.Items, item)
	if err := s.SaveIterationMemory(im); err != nil {
		return model.IterationMemoryItem{}, err
	}
	return item, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, forgeerr.Wrap(forgeerr.StorageIo, "reading memory file", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, forgeerr.Wrap(forgeerr.Serialize, "unmarshaling memory file", err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return forgeerr.Wrap(forgeerr.Serialize, "marshaling memory file", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return forgeerr.Wrap(forgeerr.StorageIo, "creating temp memory file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return forgeerr.Wrap(forgeerr.StorageIo, "writing temp memory file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return forgeerr.Wrap(forgeerr.StorageIo, "syncing temp memory file", err)
	}
	if err := tmp.Close(); err != nil {
		return forgeerr.Wrap(forgeerr.StorageIo, "closing temp memory file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return forgeerr.Wrap(forgeerr.StorageIo, "renaming temp memory file", err)
	}
	return nil
}

// keywordScore counts how many of keywords appear (case-insensitively) in
// text — the containment ranking spec.md §4.2 specifies for Smart queries.
func keywordScore(text string, keywords []string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			score++
		}
	}
	return score
}
