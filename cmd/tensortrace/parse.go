package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"tensortrace/internal/config"
	"tensortrace/internal/metrics"
	"tensortrace/internal/offline"
	"tensortrace/internal/trace"
)

func newParseCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Run the offline parsers and correlation against existing artifacts, no engine invocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParseOnly(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the settings JSON file")
	cmd.MarkFlagRequired("config")
	return cmd
}

func runParseOnly(configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	settings.ResolvePaths(filepath.Dir(configPath))
	logger := newLogger(settings.LogLevel, settings.LogFormat)

	result := offline.RunParsers(offline.ParserInputs{
		TracePath:     settings.TracePath,
		LayoutCSVPath: settings.LayoutCSVPath,
		BufferLogPath: settings.BufferLogPath,
		GraphsDir:     settings.GraphsDir,
		ModelName:     settings.ModelName,
	}, logger)

	if result.TraceErr != nil {
		return result.TraceErr
	}
	if result.LayoutErr != nil {
		return result.LayoutErr
	}

	metrics.ParserRecordsTotal.WithLabelValues("trace").Add(float64(len(result.Trace.Records)))
	for _, diag := range []struct {
		name string
		d    offline.Diagnostics
	}{
		{"trace", result.Trace.Diagnostics},
		{"layout", result.LayoutDiag},
		{"buffer", result.BufferDiag},
		{"graph", result.GraphDiag},
	} {
		metrics.ParserDiagnosticsTotal.WithLabelValues(diag.name, "warning").Add(float64(len(diag.d.Warnings)))
		metrics.ParserDiagnosticsTotal.WithLabelValues(diag.name, "skip").Add(float64(diag.d.Skipped))
	}

	if err := os.MkdirAll(settings.OutputDir, 0o755); err != nil {
		return fmt.Errorf("parse: create output dir: %w", err)
	}

	correlator := offline.NewCorrelator(result.Layout)
	groups := offline.GroupByToken(result.Trace.Records)
	heatmap := offline.NewHeatmapBuilder(result.Layout)
	heatmap.Ingest(result.Trace.Records)

	for _, tokenID := range offline.SortedTokenIDs(groups) {
		doc, diag := offline.BuildTokenDocument(tokenID, groups[tokenID], correlator, 0)
		for range diag.Warnings {
			metrics.CorrelatorAmbiguousTotal.Inc()
		}
		path := filepath.Join(settings.OutputDir, fmt.Sprintf("token-%05d.json", tokenID))
		if err := writeTokenDocument(path, doc); err != nil {
			return err
		}
	}

	mapPath := filepath.Join(settings.OutputDir, "memory_map.json")
	if err := writeJSONFile(mapPath, result.Layout); err != nil {
		return fmt.Errorf("parse: write memory map JSON: %w", err)
	}

	sortedEntries := offline.SortedHeatmapEntries(heatmap.Entries())
	heatmapPath := filepath.Join(settings.OutputDir, "heatmap.json")
	if err := writeJSONFile(heatmapPath, sortedEntries); err != nil {
		return fmt.Errorf("parse: write heatmap JSON: %w", err)
	}

	outliers := offline.DetectOutliers(sortedEntries)
	for _, o := range outliers {
		metrics.HeatmapOutliersTotal.WithLabelValues(string(o.Kind)).Inc()
	}

	logger.WithFields(map[string]interface{}{
		"tokens":   len(groups),
		"outliers": len(outliers),
	}).Info("parse-only run completed")
	return nil
}

func writeTokenDocument(path string, doc *trace.TokenDocument) error {
	return writeJSONFile(path, doc)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
