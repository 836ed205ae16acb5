// Package metrics holds the Prometheus collectors shared by the capture,
// statement and reconciliation paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture outcomes.
const (
	OutcomeRecorded = "recorded"
	OutcomePartial  = "partial"
	OutcomeNoAmount = "no_amount"
	OutcomeError    = "error"
)

var (
	Captures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veripay",
		Name:      "captures_total",
		Help:      "Receipt captures by outcome.",
	}, []string{"outcome"})

	StatementEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veripay",
		Name:      "statement_entries_total",
		Help:      "Statement entries extracted by bank.",
	}, []string{"bank"})

	Reconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veripay",
		Name:      "reconciled_transactions_total",
		Help:      "Reconciled transactions by outcome.",
	}, []string{"outcome"})
)
