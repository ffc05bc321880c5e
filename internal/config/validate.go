package config

import (
	"fmt"
	"strings"
)

// Validate checks a Settings object for the minimum fields needed to
// run an experiment, mirroring the teacher's config-validation style
// (pkg/validation): collect every violation, then return them joined,
// rather than failing fast on the first one.
func Validate(s *Settings) error {
	var problems []string

	if s.ModelPath == "" {
		problems = append(problems, "model_path must be set")
	}
	if s.NPredict < 0 {
		problems = append(problems, "n_predict must be >= 0")
	}
	if s.TracePath == "" {
		problems = append(problems, "trace_path must be set")
	}
	if s.GraphsDir == "" {
		problems = append(problems, "graphs_dir must be set")
	}
	if s.BufferLogPath == "" {
		problems = append(problems, "buffer_log_path must be set")
	}
	if s.OutputDir == "" {
		problems = append(problems, "output_dir must be set")
	}
	if s.RingCapacity < 1024 {
		problems = append(problems, "ring_capacity must be >= 1024 per spec.md §4.4")
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format must be 'text' or 'json', got %q", s.LogFormat))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
}
