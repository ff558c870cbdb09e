// Package runner implements C5: the long-lived subprocess manager behind
// "start my project and show me a URL" (spec.md §4.5). It starts a dev
// server or fullstack pair, streams stdout/stderr to an interaction.Backend,
// and stops it cleanly on request or iteration teardown.
package runner

import (
	"sync"
	"time"
)

// ProjectType mirrors the runtime shapes detectable by the runtime package:
// a single frontend dev server, a single backend process, or a
// frontend+backend pair started together.
type ProjectType string

const (
	ProjectFrontend  ProjectType = "frontend"
	ProjectBackend   ProjectType = "backend"
	ProjectFullstack ProjectType = "fullstack"
)

// Info is the externally visible state of a running project, returned by
// GetInfo and used to answer "is my preview ready yet".
type Info struct {
	IterationID string
	Type        ProjectType
	URL         string
	Port        int
	BackendURL  string
	BackendPort int
	PID         int
	BackendPID  int
	StartedAt   time.Time
}

// process tracks one managed subprocess's live handle plus the metadata
// needed to answer GetInfo and to route its output.
type process struct {
	info    Info
	cancel  func()
	done    chan struct{}
	backend *process // set on the frontend half of a fullstack pair
}

// Manager owns every subprocess started through it, keyed by iteration ID.
// One Manager is shared across an orchestrator run, grounded on the
// teacher's registry-style executor state in tactile.SafeExecutor and
// ProjectRunner's processes map in the original implementation.
type Manager struct {
	mu        sync.Mutex
	processes map[string]*process
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{processes: make(map[string]*process)}
}

// IsRunning reports whether iterationID has a live managed process.
func (m *Manager) IsRunning(iterationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processes[iterationID]
	return ok
}

// GetInfo returns the running process's Info, or false if none is running.
func (m *Manager) GetInfo(iterationID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[iterationID]
	if !ok {
		return Info{}, false
	}
	return p.info, true
}
