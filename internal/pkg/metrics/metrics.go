// Package metrics defines and registers the custom Prometheus metrics of the
// staff portal. It is the single source of truth for metric names, labels
// and help strings.
//
// All metrics are registered with the default registry at package init via
// promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Authentication ────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Labels:
//   - branch: "demo", "persisted" or "none" (rejected before branch selection)
//   - result: "success", "invalid_credentials", "bad_request", "throttled", "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts by branch and result.",
	},
	[]string{"branch", "result"},
)

// TokenVerificationsTotal counts bearer token checks.
// Label:
//   - result: "valid", "missing", "invalid", "expired"
var TokenVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_verifications_total",
		Help:      "Total number of session token verifications by result.",
	},
	[]string{"result"},
)

// ── Authorization ─────────────────────────────────────────────────────────────

// AuthorizationDecisionsTotal counts role guard decisions.
// Labels:
//   - operation: guarded operation (e.g. "delete-user")
//   - result: "allowed" or "forbidden"
var AuthorizationDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_decisions_total",
		Help:      "Total number of role guard decisions by operation and result.",
	},
	[]string{"operation", "result"},
)

// ── Accounts ──────────────────────────────────────────────────────────────────

// UserMutationsTotal counts successful account changes.
// Label:
//   - operation: "create-user", "update-user-identity", "delete-user", "change-own-password"
var UserMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_mutations_total",
		Help:      "Total number of successful account mutations by operation.",
	},
	[]string{"operation"},
)

// ── Audit ─────────────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the number of audit events waiting in each worker.
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditEventsDroppedTotal counts events discarded because a worker queue was full.
var AuditEventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Total number of audit events dropped because the dispatcher was saturated.",
	},
)

// AuditSinkErrorsTotal counts failed writes to the audit sink.
var AuditSinkErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_sink_errors_total",
		Help:      "Total number of audit events the sink failed to persist.",
	},
)
