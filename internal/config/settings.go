// Package config loads and validates the tracer's settings object
// (spec.md §6.7): a single JSON document on disk describing the model
// to run, the engine invocation, and where every artifact is written.
// Adapted from the teacher's internal/config.LoadConfig — file, then
// defaults, then environment-variable overrides, validated before use
// — ported from YAML to JSON per the spec's explicit wording.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"
)

// Settings is the recognized settings object from spec.md §6.7.
type Settings struct {
	ModelPath     string `json:"model_path"`
	ModelName     string `json:"model_name"`
	Prompt        string `json:"prompt"`
	NPredict      int    `json:"n_predict"`
	TracePath     string `json:"trace_path"`
	GraphsDir     string `json:"graphs_dir"`
	BufferLogPath string `json:"buffer_log_path"`
	LayoutCSVPath string `json:"layout_csv_path"`
	OutputDir     string `json:"output_dir"`
	VisualizerDir string `json:"visualizer_dir"`

	// EngineCommand launches the instrumented inference engine;
	// DumpLayoutCommand emits the model's tensor layout as CSV on
	// stdout. Both are external collaborators this package cannot
	// synthesize (spec.md §4.12 steps 2-3).
	EngineCommand     []string `json:"engine_command"`
	DumpLayoutCommand []string `json:"dump_layout_command"`

	GraphWaitTimeoutSeconds int `json:"graph_wait_timeout_seconds"`

	// Ambient knobs not named by spec.md §6.7 but needed by the
	// ambient stack this expansion adds.
	LogLevel      string  `json:"log_level"`
	LogFormat     string  `json:"log_format"` // "text" | "json"
	MetricsAddr   string  `json:"metrics_addr"`
	OTLPEnabled   bool    `json:"otlp_enabled"`
	OTLPEndpoint  string  `json:"otlp_endpoint"`
	OTLPInsecure  bool    `json:"otlp_insecure"`
	OTLPSampleRatio float64 `json:"otlp_sample_ratio"`
	RingCapacity  int     `json:"ring_capacity"`
	RegistryCap   int     `json:"registry_capacity"`
}

const (
	envPrefix = "TENSORTRACE_"
)

// Load reads, defaults, and env-overrides a Settings object from path.
// Unlike the teacher's LoadConfig, a missing or unreadable file is
// fatal here — the spec gives no "run uninstrumented" fallback for a
// missing settings object, only for a sink that fails to open after
// settings are known good.
func Load(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read settings file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: failed to parse settings file %s: %w", path, err)
	}

	applyDefaults(s)
	applyEnvOverrides(s)

	if err := Validate(s); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return s, nil
}

func applyDefaults(s *Settings) {
	if s.TracePath == "" {
		s.TracePath = "artifacts/trace.bin"
	}
	if s.GraphsDir == "" {
		s.GraphsDir = "artifacts/graphs"
	}
	if s.BufferLogPath == "" {
		s.BufferLogPath = "artifacts/buffer_events.jsonl"
	}
	if s.LayoutCSVPath == "" {
		s.LayoutCSVPath = "artifacts/layout.csv"
	}
	if s.OutputDir == "" {
		s.OutputDir = "artifacts/output"
	}
	if s.ModelName == "" {
		s.ModelName = filepath.Base(s.ModelPath)
	}
	if s.GraphWaitTimeoutSeconds <= 0 {
		s.GraphWaitTimeoutSeconds = 30
	}
	if s.OTLPSampleRatio <= 0 {
		s.OTLPSampleRatio = 1.0
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "text"
	}
	if s.MetricsAddr == "" {
		s.MetricsAddr = ":9464"
	}
	if s.RingCapacity <= 0 {
		s.RingCapacity = 4096
	}
	if s.RegistryCap <= 0 {
		s.RegistryCap = 16384
	}
	if s.NPredict <= 0 {
		s.NPredict = 32
	}
}

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv(envPrefix + "MODEL_PATH"); v != "" {
		s.ModelPath = v
	}
	if v := os.Getenv(envPrefix + "TRACE_PATH"); v != "" {
		s.TracePath = v
	}
	if v := os.Getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		s.OutputDir = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "RING_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.RingCapacity = n
		}
	}
}

// ResolvePaths rewrites relative artifact paths against baseDir (the
// callers pass the settings file's directory) so a settings file can be authored with short relative paths
// regardless of the process's working directory.
func (s *Settings) ResolvePaths(baseDir string) {
	s.TracePath = resolve(baseDir, s.TracePath)
	s.GraphsDir = resolve(baseDir, s.GraphsDir)
	s.BufferLogPath = resolve(baseDir, s.BufferLogPath)
	s.LayoutCSVPath = resolve(baseDir, s.LayoutCSVPath)
	s.OutputDir = resolve(baseDir, s.OutputDir)
	s.VisualizerDir = resolve(baseDir, s.VisualizerDir)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
