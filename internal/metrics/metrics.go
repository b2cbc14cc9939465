// Package metrics provides the Prometheus collectors emitted by the registry.
// Collectors are registered on the default registry and exported on
// /metrics by the serve command.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation statuses used as the "status" label of AliasOperations.
const (
	StatusSuccess  = "success"
	StatusCacheHit = "cache_hit"
	StatusNotFound = "not_found"
	StatusConflict = "conflict"
	StatusInvalid  = "invalid"
	StatusExpired  = "expired"
	StatusError    = "error"
)

// Alias and anchor operation collectors.
var (
	AliasOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssot_alias_operations_total",
		Help: "Alias create/update/deactivate/resolve attempts by outcome.",
	}, []string{"operation", "status", "context"})

	ResolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ssot_alias_resolution_duration_seconds",
		Help:    "Latency of alias resolution.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	}, []string{"context"})

	Aliases = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ssot_aliases",
		Help: "Aliases currently held by the registry, by context and status.",
	}, []string{"context", "status"})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssot_validation_failures_total",
		Help: "Governance validation failures by rule and operation.",
	}, []string{"rule", "operation"})

	AuditEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssot_audit_entries_total",
		Help: "Audit entries written, by action.",
	}, []string{"action"})

	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ssot_audit_write_failures_total",
		Help: "Audit entries that could not be persisted.",
	})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssot_cache_requests_total",
		Help: "Cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	ConflictsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssot_conflicts_detected_total",
		Help: "Conflicts found by detection scans.",
	}, []string{"type", "severity"})

	LifecycleExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ssot_lifecycle_expired_total",
		Help: "Aliases removed by the expiration sweep.",
	})
)

// IncAlias bumps the alias operation counter.
func IncAlias(operation, status, context string) {
	AliasOperations.WithLabelValues(operation, status, context).Inc()
}
