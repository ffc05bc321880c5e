package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestGraphWatcherLeavesNoGoroutinesBehind guards the fsnotify.Watcher
// lifecycle in WaitForCount: every watcher created must be closed on
// every return path (satisfied, timeout, or error), grounded on the
// teacher's tests/goroutine_leak_test.go use of goleak.
func TestGraphWatcherLeavesNoGoroutinesBehind(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/fsnotify/fsnotify.(*Watcher).readEvents"),
	)

	dir := t.TempDir()
	w := NewGraphWatcher(dir, nil)

	require.NoError(t, w.WaitForCount(context.Background(), 0, time.Second))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "token-00000.dot"), []byte("x"), 0o644))
	require.NoError(t, w.WaitForCount(context.Background(), 1, time.Second))

	require.Error(t, w.WaitForCount(context.Background(), 2, 50*time.Millisecond))
}
