// Package metrics holds the Prometheus collectors for the memory engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector below. It is not the global default
// registry so that embedding programs choose whether to expose it.
var Registry = prometheus.NewRegistry()

var (
	// UpsertRecords counts candidates by outcome: created, deduped, rejected.
	UpsertRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "convo_memory",
		Name:      "upsert_records_total",
		Help:      "Candidates processed by upsert, by outcome.",
	}, []string{"outcome"})

	// FailOpen counts failures that were recovered locally, by operation.
	FailOpen = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "convo_memory",
		Name:      "failopen_total",
		Help:      "Failures absorbed by the fail-open policy, by operation.",
	}, []string{"op"})

	SearchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "convo_memory",
		Name:      "search_seconds",
		Help:      "Wall-clock time spent ranking memories.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)

func init() {
	Registry.MustRegister(UpsertRecords, FailOpen, SearchSeconds)
}

// ObserveUpsert records the outcome counts of one upsert call.
func ObserveUpsert(created, deduped, rejected int) {
	UpsertRecords.WithLabelValues("created").Add(float64(created))
	UpsertRecords.WithLabelValues("deduped").Add(float64(deduped))
	UpsertRecords.WithLabelValues("rejected").Add(float64(rejected))
}
