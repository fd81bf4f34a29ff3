// Package metrics holds the Prometheus collectors shared by the ledger,
// audit, jobs and HTTP layers. Collectors register on the default registry,
// which promhttp.Handler serves at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "privebank"

var (
	ledgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_operations_total",
		Help:      "Ledger operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	ledgerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_operation_duration_seconds",
		Help:      "Latency of ledger operations including audit writes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	auditWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Audit writes that failed, by stage (direct, enqueue, worker).",
	}, []string{"stage"})

	auditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_entries_dropped_total",
		Help:      "Audit entries that only reached the operational log.",
	})

	reconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_runs_total",
		Help:      "Reconciliation job runs by result.",
	}, []string{"result"})

	reconcileDrift = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_drift_total",
		Help:      "Accounts whose stored balance did not match their replayed history.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)

func ObserveLedgerOperation(operation, outcome string, d time.Duration) {
	ledgerOperations.WithLabelValues(operation, outcome).Inc()
	ledgerDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func AuditWriteFailed(stage string) {
	auditWriteFailures.WithLabelValues(stage).Inc()
}

func AuditDropped() {
	auditDropped.Inc()
}

func ReconcileRun(result string, drifted int) {
	reconcileRuns.WithLabelValues(result).Inc()
	reconcileDrift.Add(float64(drifted))
}

func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func RateLimited() {
	rateLimited.Inc()
}
