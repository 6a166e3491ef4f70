package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turtacn/nodesync/pkg/consts"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
	"github.com/turtacn/nodesync/pkg/logger"
)

const Namespace = "nodesync"

// Metrics holds the session's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Progress is the last progress value read from the local endpoint.
	Progress prometheus.Gauge
	// TargetProgress is the progress value the session must reach.
	TargetProgress prometheus.Gauge
	// ReferenceProgress is the progress value read from the reference endpoint.
	ReferenceProgress prometheus.Gauge
	// Throughput is progress units per second, set when the reference is reached.
	Throughput prometheus.Gauge
	// StalledSeconds is the time since the best progress last increased.
	StalledSeconds prometheus.Gauge
	// ProbeFailures counts failed local probes, partitioned by error kind.
	ProbeFailures *prometheus.CounterVec
	// Verdicts counts terminal outcomes, partitioned by outcome.
	Verdicts *prometheus.CounterVec
	// Phase is 1 for the session's current phase and 0 for all others.
	Phase *prometheus.GaugeVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "progress",
			Help:      "Last progress value observed on the local status endpoint",
		}),
		TargetProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "target_progress",
			Help:      "Progress value required for a successful session",
		}),
		ReferenceProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "reference_progress",
			Help:      "Progress value observed on the reference endpoint",
		}),
		Throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "throughput_per_second",
			Help:      "Progress units per second until the reference was reached",
		}),
		StalledSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "stalled_seconds",
			Help:      "Seconds since the best progress last increased",
		}),
		ProbeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "probe_failures_total",
			Help:      "Failed local status probes",
		}, []string{"kind"}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "verdicts_total",
			Help:      "Terminal session outcomes",
		}, []string{"outcome"}),
		Phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "phase",
			Help:      "Current session phase",
		}, []string{"phase"}),
	}
	m.registry.MustRegister(
		m.Progress, m.TargetProgress, m.ReferenceProgress, m.Throughput,
		m.StalledSeconds, m.ProbeFailures, m.Verdicts, m.Phase,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Serve starts an HTTP server exposing /metrics on addr in the background.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
	return srv
}

func (m *Metrics) RecordTarget(reference, target uint64) {
	m.ReferenceProgress.Set(float64(reference))
	m.TargetProgress.Set(float64(target))
}

func (m *Metrics) RecordTick(progress, target uint64) {
	m.Progress.Set(float64(progress))
	m.TargetProgress.Set(float64(target))
}

func (m *Metrics) RecordReferenceReached(reference uint64, throughput float64) {
	m.Throughput.Set(throughput)
}

func (m *Metrics) RecordStall(stalledFor time.Duration) {
	m.StalledSeconds.Set(stalledFor.Seconds())
}

func (m *Metrics) RecordProbeFailure(code apperrors.ErrorCode) {
	m.ProbeFailures.WithLabelValues(code.String()).Inc()
}

// RecordPhase marks phase as current.
func (m *Metrics) RecordPhase(phase consts.SessionPhase) {
	for _, p := range consts.Phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.Phase.WithLabelValues(string(p)).Set(v)
	}
}

// RecordVerdict counts a terminal outcome. err is nil on success.
func (m *Metrics) RecordVerdict(err error) {
	if err == nil {
		m.Verdicts.WithLabelValues("success").Inc()
		return
	}
	m.Verdicts.WithLabelValues(apperrors.CodeOf(err).String()).Inc()
}

// Personal.AI order the ending
