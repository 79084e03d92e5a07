package observability

import (
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Bootstrap outcomes recorded by IncrBootstrap.
const (
	OutcomeOK              = "ok"
	OutcomeRepaired        = "repaired"
	OutcomeUnrecoverable   = "unrecoverable"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeBackendError    = "backend_error"
)

// Metrics holds all Prometheus metrics for the BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	bootstraps      *prometheus.CounterVec
	repairCalls     *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	authEvents      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bh_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bh_external_errors_total",
				Help: "Total errors from backend services.",
			},
			[]string{"service"},
		),
		bootstraps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bh_session_bootstrap_total",
				Help: "Session bootstrap attempts by outcome.",
			},
			[]string{"outcome"},
		),
		repairCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bh_profile_repair_calls_total",
				Help: "Calls to ensure_user_bootstrap by result.",
			},
			[]string{"result"},
		),
		guardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bh_route_guard_decisions_total",
				Help: "Route guard decisions by state.",
			},
			[]string{"state"},
		),
		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bh_auth_events_total",
				Help: "Identity provider events handled by the bootstrapper.",
			},
			[]string{"event"},
		),
	}
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrBootstrap counts a bootstrap/build outcome.
func (m *Metrics) IncrBootstrap(outcome string) {
	m.bootstraps.WithLabelValues(outcome).Inc()
}

// IncrRepairCall counts an ensure_user_bootstrap call.
func (m *Metrics) IncrRepairCall(ok bool) {
	result := "failed"
	if ok {
		result = "ok"
	}
	m.repairCalls.WithLabelValues(result).Inc()
}

// IncrGuardDecision counts a route guard decision.
func (m *Metrics) IncrGuardDecision(state string) {
	m.guardDecisions.WithLabelValues(state).Inc()
}

// IncrAuthEvent counts an auth event handled by a bootstrapper.
func (m *Metrics) IncrAuthEvent(event domain.AuthEvent) {
	m.authEvents.WithLabelValues(string(event)).Inc()
}

// BootstrapSnapshot returns the counters behind GET /v1/ops/bootstrap.
func (m *Metrics) BootstrapSnapshot(activeDevices int) *domain.BootstrapStats {
	ok := getCounterValue(m.bootstraps, OutcomeOK)
	repaired := getCounterValue(m.bootstraps, OutcomeRepaired)
	unrecoverable := getCounterValue(m.bootstraps, OutcomeUnrecoverable)
	backendErrors := getCounterValue(m.bootstraps, OutcomeBackendError)
	repairOK := getCounterValue(m.repairCalls, "ok")
	repairFailed := getCounterValue(m.repairCalls, "failed")
	redirects := getCounterValue(m.guardDecisions, "unauthenticated") +
		getCounterValue(m.guardDecisions, "wrong_role")

	repairPct := float64(0)
	if repairOK+repairFailed > 0 {
		repairPct = repaired / (repairOK + repairFailed) * 100
	}

	return &domain.BootstrapStats{
		Builds:          int64(ok + repaired + unrecoverable + backendErrors),
		Repaired:        int64(repaired),
		Unrecoverable:   int64(unrecoverable),
		BackendErrors:   int64(backendErrors),
		RepairCalls:     int64(repairOK + repairFailed),
		GuardRedirects:  int64(redirects),
		ActiveDevices:   activeDevices,
		RepairSuccessPc: repairPct,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
