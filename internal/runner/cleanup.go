// Package runner implements the six-step experiment runner (spec.md
// §4.12): clean stale artifacts, dump the model's tensor layout,
// invoke the instrumented engine, run the offline parsers, assemble
// the per-token and memory-map JSON artifacts, then publish them to
// the visualizer's data directory. Each step rolls back to the last
// good state on failure, grounded on the teacher's internal/app.App
// initializeComponents -> Start -> Stop lifecycle sequencing.
package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ArtifactPaths names every file or directory step 1 through step 6
// read from or write to.
type ArtifactPaths struct {
	TracePath     string
	GraphsDir     string
	BufferLogPath string
	LayoutCSVPath string
	OutputDir     string // where per-token JSON + memory-map JSON are written
	VisualizerDir string // final publish destination (step 6)
}

// Cleaner removes stale run artifacts before a new experiment starts.
// Grounded on the teacher's pkg/cleanup.DiskSpaceManager, narrowed
// from that package's continuously-running size/age-threshold
// monitor loop to a single one-shot removal pass, since step 1 of the
// runner ("remove stale artifacts") fires once per run rather than on
// an interval.
type Cleaner struct {
	logger *logrus.Logger
}

// NewCleaner builds a Cleaner.
func NewCleaner(logger *logrus.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// EnsureAndClean creates the output directories if missing and
// removes any previous trace, graphs, buffer-event log, and per-token
// JSONs (spec.md §4.12 step 1).
func (c *Cleaner) EnsureAndClean(paths ArtifactPaths) error {
	for _, dir := range []string{paths.GraphsDir, paths.OutputDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("runner: create directory %s: %w", dir, err)
		}
	}

	for _, f := range []string{paths.TracePath, paths.BufferLogPath} {
		if f == "" {
			continue
		}
		if err := removeIfExists(f); err != nil {
			return fmt.Errorf("runner: remove stale artifact %s: %w", f, err)
		}
	}

	if paths.GraphsDir != "" {
		if err := clearDir(paths.GraphsDir, "token-*.dot"); err != nil {
			return err
		}
	}
	if paths.OutputDir != "" {
		if err := clearDir(paths.OutputDir, "token-*.json"); err != nil {
			return err
		}
	}

	if c.logger != nil {
		c.logger.WithField("output_dir", paths.OutputDir).Info("runner: stale artifacts removed")
	}
	return nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func clearDir(dir, pattern string) error {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("runner: glob %s: %w", filepath.Join(dir, pattern), err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return fmt.Errorf("runner: remove stale file %s: %w", m, err)
		}
	}
	return nil
}
