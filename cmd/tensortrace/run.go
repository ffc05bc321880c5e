package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tensortrace/internal/config"
	"tensortrace/internal/metrics"
	"tensortrace/internal/otelinit"
	"tensortrace/internal/runner"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full experiment pipeline: dump layout, invoke the engine, parse, assemble, publish",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the settings JSON file")
	cmd.MarkFlagRequired("config")
	return cmd
}

func runExperiment(ctx context.Context, configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	settings.ResolvePaths(filepath.Dir(configPath))

	logger := newLogger(settings.LogLevel, settings.LogFormat)

	metricsSrv := metrics.NewServer(settings.MetricsAddr, logger)
	metricsSrv.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Stop(stopCtx)
	}()

	tracer, shutdownTracer, err := otelinit.Init(ctx, otelinit.Config{
		Enabled:     settings.OTLPEnabled,
		ServiceName: "tensortrace-runner",
		Endpoint:    settings.OTLPEndpoint,
		Insecure:    settings.OTLPInsecure,
		SampleRatio: settings.OTLPSampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	r := runner.New(runner.Config{
		ModelPath:         settings.ModelPath,
		ModelName:         settings.ModelName,
		Prompt:            settings.Prompt,
		NPredict:          settings.NPredict,
		DumpLayoutCommand: settings.DumpLayoutCommand,
		EngineCommand:     settings.EngineCommand,
		Paths: runner.ArtifactPaths{
			TracePath:     settings.TracePath,
			GraphsDir:     settings.GraphsDir,
			BufferLogPath: settings.BufferLogPath,
			LayoutCSVPath: settings.LayoutCSVPath,
			OutputDir:     settings.OutputDir,
			VisualizerDir: settings.VisualizerDir,
		},
		GraphWaitTimeout: time.Duration(settings.GraphWaitTimeoutSeconds) * time.Second,
		Logger:           logger,
		Tracer:           tracer,
	})

	if err := r.Run(ctx); err != nil {
		failed, stepErr := r.Steps().FailedStep()
		metrics.RunnerStepFailuresTotal.WithLabelValues(failed).Inc()
		logger.WithError(stepErr).WithField("step", failed).Error("experiment run failed")
		return err
	}

	logger.WithField("last_step", r.Steps().LastGoodStep()).Info("experiment run completed")
	return nil
}
