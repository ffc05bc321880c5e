package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// GraphWatcher waits for the instrumented engine to finish emitting
// its per-token graph dumps before the offline parsers run. Grounded
// on the teacher's pkg/hotreload.ConfigReloader fsnotify.Watcher
// usage (create/write/rename event filtering), repurposed from
// watching one config file for changes to watching one directory for
// a target number of distinct token-NNNNN.dot files to appear.
type GraphWatcher struct {
	dir    string
	logger *logrus.Logger
}

// NewGraphWatcher builds a GraphWatcher over dir.
func NewGraphWatcher(dir string, logger *logrus.Logger) *GraphWatcher {
	return &GraphWatcher{dir: dir, logger: logger}
}

// WaitForCount blocks until want distinct token-*.dot files have been
// observed in the directory (already present or created during the
// wait), ctx is cancelled, or timeout elapses. Used after step 3
// invokes the instrumented engine, since graph-dump emission may
// lag slightly behind the engine process's own exit.
func (w *GraphWatcher) WaitForCount(ctx context.Context, want int, timeout time.Duration) error {
	seen, err := filepath.Glob(filepath.Join(w.dir, "token-*.dot"))
	if err != nil {
		return fmt.Errorf("runner: glob graph dir %s: %w", w.dir, err)
	}
	if len(seen) >= want {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("runner: create graph watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("runner: watch graph dir %s: %w", w.dir, err)
	}

	files := make(map[string]bool, len(seen))
	for _, s := range seen {
		files[s] = true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for len(files) < want {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("runner: graph watcher closed before %d dumps appeared", want)
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if ok, _ := filepath.Match("token-*.dot", filepath.Base(event.Name)); !ok {
				continue
			}
			files[event.Name] = true
		case err, ok := <-watcher.Errors:
			if !ok {
				continue
			}
			if w.logger != nil {
				w.logger.WithError(err).Warn("runner: graph watcher error")
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("runner: timed out waiting for %d graph dumps, saw %d", want, len(files))
		}
	}
	return nil
}
