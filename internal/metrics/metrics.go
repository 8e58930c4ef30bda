// Package metrics provides Prometheus metrics for the retrieval subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageServed counts requests by the waterfall stage that answered them.
	StageServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsretriever",
			Name:      "stage_served_total",
			Help:      "Requests answered, by waterfall stage",
		},
		[]string{"stage"},
	)

	// ProviderCalls counts external provider calls by outcome.
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsretriever",
			Name:      "provider_calls_total",
			Help:      "External provider calls, by provider and status",
		},
		[]string{"provider", "status"},
	)

	// QuotaDenied counts provider fetches skipped because the daily budget was spent.
	QuotaDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsretriever",
			Name:      "quota_denied_total",
			Help:      "Provider fetches skipped by the daily quota",
		},
	)

	// DBWrites counts background article writes by status.
	DBWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsretriever",
			Name:      "db_writes_total",
			Help:      "Background database writes, by status",
		},
		[]string{"status"},
	)
)
