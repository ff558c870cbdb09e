// Package staticserver implements C6: the built-in static file server used
// to preview vanilla HTML/CSS/JS iterations without a dev-server command
// (spec.md §4.6), ported from preview_server.rs.
package staticserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Info describes a running static server.
type Info struct {
	IterationID string
	URL         string
	Port        int
	BaseDir     string
}

type server struct {
	info   Info
	srv    *http.Server
	ln     net.Listener
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager tracks one static server per iteration, keyed by iteration ID.
type Manager struct {
	mu      sync.Mutex
	servers map[string]*server
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{servers: make(map[string]*server)}
}

// portRangeStart/End mirror the original implementation's 5000-6000 probe
// window.
const (
	portRangeStart = 5000
	portRangeEnd   = 6000
)

// Start serves baseDir over HTTP, probing for a free port in
// [portRangeStart, portRangeEnd). Starting over an iteration that already
// has a server stops it first.
func (m *Manager) Start(iterationID, baseDir string) (Info, error) {
	_ = m.Stop(iterationID)

	ln, port, err := findAvailablePort()
	if err != nil {
		return Info{}, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleRequest(baseDir))

	httpSrv := &http.Server{Handler: mux}
	ctx, cancel := context.WithCancel(context.Background())

	// The accept loop and the self-unblock watcher run as one errgroup, the
	// same grouping runner.Manager uses for its two stream-reader tasks per
	// process: Wait returns once both have exited, so Stop can block on done
	// instead of racing a bare "goroutines probably finished by now" guess.
	var g errgroup.Group
	g.Go(func() error {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return httpSrv.Close()
	})

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	info := Info{
		IterationID: iterationID,
		URL:         fmt.Sprintf("http://localhost:%d", port),
		Port:        port,
		BaseDir:     baseDir,
	}

	m.mu.Lock()
	m.servers[iterationID] = &server{info: info, srv: httpSrv, ln: ln, cancel: cancel, done: done}
	m.mu.Unlock()

	return info, nil
}

// Stop shuts down the static server for iterationID, if any is running.
func (m *Manager) Stop(iterationID string) error {
	m.mu.Lock()
	s, ok := m.servers[iterationID]
	if ok {
		delete(m.servers, iterationID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("staticserver: no running server for %s", iterationID)
	}

	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)

	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}

// IsRunning reports whether a static server is active for iterationID.
func (m *Manager) IsRunning(iterationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.servers[iterationID]
	return ok
}

// GetInfo returns the running server's Info, or false if none is running.
func (m *Manager) GetInfo(iterationID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[iterationID]
	if !ok {
		return Info{}, false
	}
	return s.info, true
}

func findAvailablePort() (net.Listener, int, error) {
	for port := portRangeStart; port < portRangeEnd; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("staticserver: no available port in [%d, %d)", portRangeStart, portRangeEnd)
}

// handleRequest resolves the request path under baseDir, enforcing
// Invariant S1 (no response ever serves a file outside baseDir) the same
// way the original implementation does: strip ".." segments, then confirm
// the resolved absolute path still has baseDir as a prefix before serving.
func handleRequest(baseDir string) http.HandlerFunc {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		absBase = baseDir
	}

	return func(w http.ResponseWriter, r *http.Request) {
		reqPath := strings.TrimPrefix(r.URL.Path, "/")

		var target string
		if reqPath == "" {
			target = filepath.Join(absBase, "index.html")
		} else {
			safe := strings.ReplaceAll(reqPath, "..", "")
			target = filepath.Join(absBase, safe)
		}

		absTarget, err := filepath.Abs(target)
		if err != nil || !withinBase(absBase, absTarget) {
			http.Error(w, "404 Not Found", http.StatusNotFound)
			return
		}

		info, err := os.Stat(absTarget)
		if err != nil || info.IsDir() {
			http.Error(w, "404 Not Found", http.StatusNotFound)
			return
		}

		content, err := os.ReadFile(absTarget)
		if err != nil {
			http.Error(w, fmt.Sprintf("500 Internal Server Error: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", mimeType(absTarget))
		_, _ = w.Write(content)
	}
}

// withinBase reports whether target is base itself or a descendant of it.
func withinBase(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".ico":
		return "image/x-icon"
	case ".woff", ".woff2":
		return "font/woff2"
	case ".ttf":
		return "font/ttf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}
