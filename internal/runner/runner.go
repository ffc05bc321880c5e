package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"tensortrace/internal/offline"
	"tensortrace/internal/terrors"
)

// Config configures one experiment run (spec.md §4.12, §6.7).
type Config struct {
	ModelPath string
	ModelName string
	Prompt    string
	NPredict  int

	// DumpLayoutCommand, when non-empty, is executed with ModelPath
	// appended and its stdout captured to LayoutCSVPath (step 2). A nil
	// command is a caller error: the layout dump tool is an external
	// collaborator this package cannot synthesize.
	DumpLayoutCommand []string
	// EngineCommand launches the instrumented inference engine (step
	// 3); TensorTrace's own env vars (trace/graphs/buffer-log paths)
	// are appended to the command's environment.
	EngineCommand []string

	Paths ArtifactPaths

	GraphWaitTimeout time.Duration // default 30s

	Logger *logrus.Logger
	Tracer oteltrace.Tracer // may be nil; spans become no-ops
}

func (c *Config) setDefaults() {
	if c.GraphWaitTimeout <= 0 {
		c.GraphWaitTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	if c.Tracer == nil {
		c.Tracer = noop.NewTracerProvider().Tracer("tensortrace/runner")
	}
}

// Runner drives the six-step experiment pipeline. Grounded directly
// on the teacher's internal/app.App lifecycle sequencing
// (initializeComponents -> Start -> Stop), narrowed to a single
// linear run instead of a long-lived service.
type Runner struct {
	cfg     Config
	cleaner *Cleaner
	steps   *StepTracker

	parsed *offline.ParseResult // populated by stepRunParsers, consumed by stepAssemble
}

// New builds a Runner.
func New(cfg Config) *Runner {
	cfg.setDefaults()
	return &Runner{
		cfg:     cfg,
		cleaner: NewCleaner(cfg.Logger),
		steps:   NewStepTracker(),
	}
}

// Steps exposes the tracker so a caller can report step state after
// Run returns (success or failure).
func (r *Runner) Steps() *StepTracker { return r.steps }

// Run executes all six steps in order (spec.md §4.12). On failure it
// stops immediately, leaving artifacts from the last completed step
// in place — "rollback" here means never partially overwriting a
// later artifact, not undoing earlier steps' work, since each step's
// output is either fully replaced or left untouched.
func (r *Runner) Run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"clean_stale_artifacts", r.stepClean},
		{"dump_layout", r.stepDumpLayout},
		{"invoke_engine", r.stepInvokeEngine},
		{"run_parsers", r.stepRunParsers},
		{"assemble_artifacts", r.stepAssemble},
		{"publish_to_visualizer", r.stepPublish},
	}

	for _, s := range steps {
		idx := r.steps.Begin(s.name)
		spanCtx, span := r.cfg.Tracer.Start(ctx, "runner."+s.name)
		err := s.fn(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.End()
			r.steps.Fail(idx, err)
			lastGood := r.steps.LastGoodStep()
			return terrors.StepFailed(s.name, err).WithMetadata("last_good_step", lastGood)
		}
		span.End()
		r.steps.Complete(idx)
	}
	return nil
}

func (r *Runner) stepClean(ctx context.Context) error {
	return r.cleaner.EnsureAndClean(r.cfg.Paths)
}

func (r *Runner) stepDumpLayout(ctx context.Context) error {
	if len(r.cfg.DumpLayoutCommand) == 0 {
		return fmt.Errorf("runner: no layout-dump command configured")
	}
	out, err := os.Create(r.cfg.Paths.LayoutCSVPath)
	if err != nil {
		return fmt.Errorf("runner: create layout CSV %s: %w", r.cfg.Paths.LayoutCSVPath, err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, r.cfg.DumpLayoutCommand[0], append(r.cfg.DumpLayoutCommand[1:], r.cfg.ModelPath)...)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("runner: layout dump command failed: %w", err)
	}
	return nil
}

func (r *Runner) stepInvokeEngine(ctx context.Context) error {
	if len(r.cfg.EngineCommand) == 0 {
		return fmt.Errorf("runner: no engine command configured")
	}
	cmd := exec.CommandContext(ctx, r.cfg.EngineCommand[0], r.cfg.EngineCommand[1:]...)
	cmd.Env = append(os.Environ(),
		"TENSORTRACE_MODEL_PATH="+r.cfg.ModelPath,
		"TENSORTRACE_PROMPT="+r.cfg.Prompt,
		"TENSORTRACE_N_PREDICT="+fmt.Sprint(r.cfg.NPredict),
		"TENSORTRACE_TRACE_PATH="+r.cfg.Paths.TracePath,
		"TENSORTRACE_GRAPHS_DIR="+r.cfg.Paths.GraphsDir,
		"TENSORTRACE_BUFFER_LOG_PATH="+r.cfg.Paths.BufferLogPath,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("runner: instrumented engine exited with error: %w", err)
	}

	watcher := NewGraphWatcher(r.cfg.Paths.GraphsDir, r.cfg.Logger)
	if err := watcher.WaitForCount(ctx, 1, r.cfg.GraphWaitTimeout); err != nil {
		r.cfg.Logger.WithError(err).Warn("runner: proceeding without confirmed graph dump count")
	}
	return nil
}

func (r *Runner) stepRunParsers(ctx context.Context) error {
	result := offline.RunParsers(offline.ParserInputs{
		TracePath:     r.cfg.Paths.TracePath,
		LayoutCSVPath: r.cfg.Paths.LayoutCSVPath,
		BufferLogPath: r.cfg.Paths.BufferLogPath,
		GraphsDir:     r.cfg.Paths.GraphsDir,
		ModelName:     r.cfg.ModelName,
	}, r.cfg.Logger)

	if result.TraceErr != nil {
		return fmt.Errorf("runner: trace parse failed: %w", result.TraceErr)
	}
	if result.LayoutErr != nil {
		return fmt.Errorf("runner: layout parse failed: %w", result.LayoutErr)
	}
	r.parsed = result
	return nil
}

func (r *Runner) stepAssemble(ctx context.Context) error {
	if r.parsed == nil || r.parsed.Trace == nil || r.parsed.Layout == nil {
		return fmt.Errorf("runner: assemble called before parsers produced results")
	}

	correlator := offline.NewCorrelator(r.parsed.Layout)
	groups := offline.GroupByToken(r.parsed.Trace.Records)
	epochUnixNs := time.Now().UnixNano()

	for _, tokenID := range offline.SortedTokenIDs(groups) {
		doc, _ := offline.BuildTokenDocument(tokenID, groups[tokenID], correlator, epochUnixNs)
		path := filepath.Join(r.cfg.Paths.OutputDir, fmt.Sprintf("token-%05d.json", tokenID))
		if err := writeJSON(path, doc); err != nil {
			return fmt.Errorf("runner: write per-token JSON for token %d: %w", tokenID, err)
		}
	}

	mapPath := filepath.Join(r.cfg.Paths.OutputDir, "memory_map.json")
	if err := writeJSON(mapPath, r.parsed.Layout); err != nil {
		return fmt.Errorf("runner: write memory map JSON: %w", err)
	}

	heatmap := offline.NewHeatmapBuilder(r.parsed.Layout)
	heatmap.Ingest(r.parsed.Trace.Records)
	heatmapPath := filepath.Join(r.cfg.Paths.OutputDir, "heatmap.json")
	if err := writeJSON(heatmapPath, offline.SortedHeatmapEntries(heatmap.Entries())); err != nil {
		return fmt.Errorf("runner: write heatmap JSON: %w", err)
	}
	return nil
}

func (r *Runner) stepPublish(ctx context.Context) error {
	if r.cfg.Paths.VisualizerDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.cfg.Paths.VisualizerDir, 0o755); err != nil {
		return fmt.Errorf("runner: create visualizer dir: %w", err)
	}
	entries, err := os.ReadDir(r.cfg.Paths.OutputDir)
	if err != nil {
		return fmt.Errorf("runner: read output dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(r.cfg.Paths.OutputDir, e.Name())
		dst := filepath.Join(r.cfg.Paths.VisualizerDir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("runner: publish %s: %w", e.Name(), err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
