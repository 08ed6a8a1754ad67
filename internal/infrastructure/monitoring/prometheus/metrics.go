// Package prometheus exposes the engine's operational counters.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "formident"

// Metrics holds the collectors for ingestion, clustering and matching.
type Metrics struct {
	RecordsIngested prometheus.Counter
	ClassesCreated  prometheus.Counter
	ClassesMerged   prometheus.Counter
	IngestFailures  prometheus.Counter
	MatchDecisions  *prometheus.CounterVec
	RunDuration     prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Source records routed into the equivalence registry.",
		}),
		ClassesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classes_created_total",
			Help:      "Equivalence classes allocated.",
		}),
		ClassesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classes_merged_total",
			Help:      "Equivalence classes absorbed by merges.",
		}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Records rejected during key derivation or ingestion.",
		}),
		MatchDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_decisions_total",
			Help:      "Cross-corpus equivalence decisions by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of batch resolution runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	reg.MustRegister(
		m.RecordsIngested,
		m.ClassesCreated,
		m.ClassesMerged,
		m.IngestFailures,
		m.MatchDecisions,
		m.RunDuration,
	)
	return m
}

// ObserveMatch records one equivalence decision.
func (m *Metrics) ObserveMatch(matched bool) {
	outcome := "nonequivalent"
	if matched {
		outcome = "equivalent"
	}
	m.MatchDecisions.WithLabelValues(outcome).Inc()
}
