// Package main implements the tensortrace CLI: an experiment driver
// for the spec.md §4.12 six-step pipeline plus a parse-only mode.
// Adapted from the teacher's flag-based cmd/main.go, rebuilt on
// spf13/cobra the way the rest of the example pack's CLIs
// (Sumatoshi-tech-codefang, Tejas242-sift) structure a multi-command
// tool, since spec.md §6.7 names three distinct subcommands rather
// than the teacher's single entry point.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tensortrace/internal/terrors"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tensortrace",
		Short:         "Deterministic tensor-access tracing for LLM inference",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tensortrace version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// exitCode selects a process exit status from err, per spec.md §6.7:
// distinct non-zero codes per terrors.Kind, and within InitFailure
// separate codes for SinkUnavailable (7) and RegistryFull (8), so a
// caller scripting tensortrace can distinguish failure classes without
// parsing text.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	te, ok := terrors.As(err)
	if !ok {
		return 1
	}
	switch te.Kind {
	case terrors.KindInitFailure:
		switch te.Code {
		case terrors.CodeSinkUnavailable:
			return 7
		case terrors.CodeRegistryFull:
			return 8
		}
		return 2
	case terrors.KindParseError:
		return 3
	case terrors.KindCorrelationAmbiguity:
		return 4
	case terrors.KindDegraded:
		return 5
	case terrors.KindRunnerStepFailure:
		return 6
	default:
		return 1
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "tensortrace:", err)
	os.Exit(exitCode(err))
}
