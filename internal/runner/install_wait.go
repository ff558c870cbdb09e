package runner

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitForDependencyInstall blocks until markerDir (typically
// "<workingDir>/node_modules") appears under dir, or until timeout elapses.
// It waits on an fsnotify watch of dir instead of polling at a fixed
// interval, so a fast `npm install` doesn't wait out a full interval before
// the fullstack frontend is started against installed dependencies. It
// returns nil on timeout as well; the caller cannot tell the two apart.
func WaitForDependencyInstall(ctx context.Context, dir, markerDir string, timeout time.Duration) error {
	if _, err := os.Stat(markerDir); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	deadline := time.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create) != 0 && filepath.Clean(ev.Name) == filepath.Clean(markerDir) {
				return nil
			}
		case <-watcher.Errors:
			return nil
		}
	}
}
