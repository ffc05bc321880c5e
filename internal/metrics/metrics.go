// Package metrics exposes this system's Prometheus instrumentation:
// hot-path ring/sink health, offline parser diagnostics, and runner
// step timing. Grounded on the teacher's internal/metrics package
// (promauto-declared vectors plus a promhttp-backed MetricsServer)
// and internal/app's gorilla/mux-routed HTTP endpoints, narrowed to
// two GET-only routes instead of the teacher's full handler set.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// RecordsCaptured counts records appended to a Ring by the hot-path
	// hook, labeled by the classified memory source (spec.md §4.2).
	RecordsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensortrace_records_captured_total",
			Help: "Total number of trace records appended to a ring.",
		},
		[]string{"source"},
	)

	// RingDrainsTotal counts Ring.Drain invocations, labeled by
	// trigger: "overflow" (Append forced a drain) or "shutdown".
	RingDrainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensortrace_ring_drains_total",
			Help: "Total number of ring drains, by trigger.",
		},
		[]string{"trigger"},
	)

	// RingLen tracks the current staged-record count of a ring at its
	// last observed drain, a proxy for overflow pressure.
	RingLen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tensortrace_ring_len",
		Help: "Number of records staged in the ring at last observation.",
	})

	// SinkWriteErrorsTotal counts write failures reported to the
	// resilience breaker, labeled by sink kind.
	SinkWriteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensortrace_sink_write_errors_total",
			Help: "Total number of sink write errors.",
		},
		[]string{"sink"},
	)

	// SinkDegraded is 1 once a sink's breaker has tripped open, 0
	// while healthy (spec.md §4.5 degraded state has no recovery).
	SinkDegraded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tensortrace_sink_degraded",
			Help: "1 if the sink has transitioned to Degraded, 0 otherwise.",
		},
		[]string{"sink"},
	)

	// ParserRecordsTotal counts records successfully decoded by an
	// offline parser, labeled by parser name (trace, layout, buffer,
	// graph).
	ParserRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensortrace_parser_records_total",
			Help: "Total number of records decoded by an offline parser.",
		},
		[]string{"parser"},
	)

	// ParserDiagnosticsTotal counts Diagnostics entries raised by an
	// offline parser, labeled by parser name and kind (warning, skip).
	ParserDiagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensortrace_parser_diagnostics_total",
			Help: "Total number of diagnostics raised while parsing, by parser and kind.",
		},
		[]string{"parser", "kind"},
	)

	// CorrelatorAmbiguousTotal counts Correlator.Resolve calls that
	// returned an unresolved ambiguity (spec.md §4.11).
	CorrelatorAmbiguousTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tensortrace_correlator_ambiguous_total",
		Help: "Total number of name resolutions left ambiguous after offset disambiguation.",
	})

	// HeatmapOutliersTotal counts anomaly-detector outliers, labeled
	// by kind (hot, cold).
	HeatmapOutliersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensortrace_heatmap_outliers_total",
			Help: "Total number of hot/cold tensor outliers flagged.",
		},
		[]string{"kind"},
	)

	// RunnerStepDuration times each of the runner's six sequential
	// steps (spec.md §4.12).
	RunnerStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tensortrace_runner_step_duration_seconds",
			Help:    "Time spent in each runner step.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// RunnerStepFailuresTotal counts step failures, labeled by step
	// name.
	RunnerStepFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensortrace_runner_step_failures_total",
			Help: "Total number of runner step failures, by step.",
		},
		[]string{"step"},
	)

	// TokensAssembled counts per-token JSON documents written by the
	// runner's assemble step.
	TokensAssembled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tensortrace_tokens_assembled_total",
		Help: "Total number of per-token JSON documents written.",
	})
)

var registerOnce sync.Once

// safeRegister registers collector, tolerating the "already
// registered" panic that fires when a test constructs more than one
// MetricsServer in the same process. Grounded on the teacher's
// safeRegister.
func safeRegister(collector prometheus.Collector) {
	defer func() {
		recover()
	}()
	prometheus.MustRegister(collector)
}

// Server exposes /metrics (Prometheus) and /health (liveness) over
// HTTP. Grounded on the teacher's MetricsServer.
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer builds a metrics Server listening on addr. Registration
// of the package's collectors happens once per process.
func NewServer(addr string, logger *logrus.Logger) *Server {
	registerOnce.Do(func() {
		safeRegister(RecordsCaptured)
		safeRegister(RingDrainsTotal)
		safeRegister(RingLen)
		safeRegister(SinkWriteErrorsTotal)
		safeRegister(SinkDegraded)
		safeRegister(ParserRecordsTotal)
		safeRegister(ParserDiagnosticsTotal)
		safeRegister(CorrelatorAmbiguousTotal)
		safeRegister(HeatmapOutliersTotal)
		safeRegister(RunnerStepDuration)
		safeRegister(RunnerStepFailuresTotal)
		safeRegister(TokensAssembled)
	})

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}
}

// Start launches the HTTP server in the background. Errors after
// shutdown (http.ErrServerClosed) are not logged.
func (s *Server) Start() {
	s.logger.WithField("addr", s.server.Addr).Info("starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("metrics server error")
		}
	}()
}

// Stop shuts the server down, waiting up to the supplied context's
// deadline for in-flight scrapes to finish.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping metrics server")
	return s.server.Shutdown(ctx)
}

// ObserveStepDuration is a convenience for the runner: records step's
// duration and, on failure, increments the failure counter.
func ObserveStepDuration(step string, d time.Duration, failed bool) {
	RunnerStepDuration.WithLabelValues(step).Observe(d.Seconds())
	if failed {
		RunnerStepFailuresTotal.WithLabelValues(step).Inc()
	}
}
