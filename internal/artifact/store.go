// Package artifact implements C1, the content-addressed, versioned
// persistence layer for stage output envelopes (spec.md §4.1).
//
// Layout follows spec.md §6: one directory per session under
// .cowork-v2/iterations/<session_id>/artifacts/, one <artifact_id>.json
// file per envelope plus a human-readable <stage>.md companion, grounded
// on original_source/crates/cowork-core/src/artifacts/mod.rs pairing a
// machine artifact with a rendered one. Writes are atomic
// (write-to-temp, rename), the same durable-write shape the teacher uses
// in internal/config/user_config.go and internal/world/cache.go, tightened
// here to a real tempfile+rename since spec.md §4.1 requires atomicity
// explicitly.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cowork-forge/forge/internal/flog"
	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/model"
)

// Store implements C1 over the local filesystem.
type Store struct {
	root string // e.g. .cowork-v2/iterations
}

// New returns a Store rooted at root (typically ".cowork-v2/iterations").
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.root, sessionID, "artifacts")
}

// SessionExists reports whether a session directory has been created.
func (s *Store) SessionExists(sessionID string) bool {
	info, err := os.Stat(s.sessionDir(sessionID))
	return err == nil && info.IsDir()
}

// NewArtifactID generates a fresh artifact identifier.
func NewArtifactID() string {
	return uuid.New().String()
}

// Put writes envelope atomically and returns the path it was written to.
// Invariant I4 (links.prev references only existing artifacts) is the
// caller's responsibility to uphold before calling Put; Put itself only
// persists what it is given.
func (s *Store) Put(sessionID string, stage model.Stage, envelope model.Envelope) (string, error) {
	log := flog.Get(flog.CategoryArtifact)
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", forgeerr.Wrap(forgeerr.StorageIo, "creating session directory", err)
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "", forgeerr.Wrap(forgeerr.Serialize, "marshaling envelope", err)
	}

	path := filepath.Join(dir, envelope.Meta.ArtifactID+".json")
	if err := atomicWrite(path, data); err != nil {
		return "", forgeerr.Wrap(forgeerr.StorageIo, "writing artifact", err)
	}

	mdPath := filepath.Join(dir, string(stage)+".md")
	if err := atomicWrite(mdPath, []byte(renderMarkdown(envelope))); err != nil {
		log.Warnw("failed to write human-readable companion file", "path", mdPath, "error", err)
	}

	log.Debugw("artifact written", "session", sessionID, "stage", stage, "artifact_id", envelope.Meta.ArtifactID)
	return path, nil
}

// Get loads the envelope identified by artifactID within sessionID.
func (s *Store) Get(sessionID, artifactID string) (model.Envelope, error) {
	path := filepath.Join(s.sessionDir(sessionID), artifactID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Envelope{}, forgeerr.Wrap(forgeerr.ArtifactMissing, fmt.Sprintf("artifact %s not found", artifactID), err)
		}
		return model.Envelope{}, forgeerr.Wrap(forgeerr.StorageIo, "reading artifact", err)
	}
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Envelope{}, forgeerr.Wrap(forgeerr.Serialize, "unmarshaling envelope", err)
	}
	return env, nil
}

// List enumerates envelope metadata for sessionID ordered by timestamp.
func (s *Store) List(sessionID string) ([]model.ArtifactMeta, error) {
	dir := s.sessionDir(sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, forgeerr.Wrap(forgeerr.StorageIo, "listing session directory", err)
	}

	var metas []model.ArtifactMeta
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		artifactID := e.Name()[:len(e.Name())-len(".json")]
		env, err := s.Get(sessionID, artifactID)
		if err != nil {
			continue
		}
		metas = append(metas, model.ArtifactMeta{
			ArtifactID: env.Meta.ArtifactID,
			Stage:      env.Meta.Stage,
			Version:    env.Meta.Version,
			Timestamp:  env.Meta.Timestamp,
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Timestamp.Before(metas[j].Timestamp) })
	return metas, nil
}

// Latest returns the most recently written artifact for stage, or
// (Envelope{}, false, nil) if none exists yet.
func (s *Store) Latest(sessionID string, stage model.Stage) (model.Envelope, bool, error) {
	metas, err := s.List(sessionID)
	if err != nil {
		return model.Envelope{}, false, err
	}
	var best *model.ArtifactMeta
	for i := range metas {
		if metas[i].Stage != stage {
			continue
		}
		if best == nil || metas[i].Timestamp.After(best.Timestamp) {
			best = &metas[i]
		}
	}
	if best == nil {
		return model.Envelope{}, false, nil
	}
	env, err := s.Get(sessionID, best.ArtifactID)
	return env, err == nil, err
}

// NextVersion returns the version number the next artifact for stage
// should use (1-indexed, monotonic per stage).
func (s *Store) NextVersion(sessionID string, stage model.Stage) (int, error) {
	metas, err := s.List(sessionID)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, m := range metas {
		if m.Stage == stage && m.Version > max {
			max = m.Version
		}
	}
	return max + 1, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

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

func renderMarkdown(env model.Envelope) string {
	out := fmt.Sprintf("# %s (v%d)\n\n_artifact: %s_\n\n", env.Meta.Stage, env.Meta.Version, env.Meta.ArtifactID)
	if len(env.Summary) > 0 {
		out += "## Summary\n\n"
		for _, line := range env.Summary {
			out += "- " + line + "\n"
		}
	}
	return out
}

// NewEnvelope builds an Envelope with a fresh artifact ID, current version,
// and timestamp, ready to pass to Put.
func NewEnvelope(sessionID string, stage model.Stage, version int, summary []string, prev []string, data any) model.Envelope {
	return model.Envelope{
		Meta: model.EnvelopeMeta{
			SessionID:  sessionID,
			ArtifactID: NewArtifactID(),
			Stage:      stage,
			Version:    version,
			Timestamp:  time.Now().UTC(),
		},
		Summary: summary,
		Links:   model.EnvelopeLinks{Prev: prev},
		Data:    data,
	}
}
