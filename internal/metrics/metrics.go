// Package metrics holds the Prometheus collectors served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"webinar/internal/attendance"
)

var (
	Ingests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webinar",
		Name:      "ingests_total",
		Help:      "Uploads processed, by outcome.",
	}, []string{"outcome"})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "webinar",
		Name:      "ingest_duration_seconds",
		Help:      "Time from upload receipt to stored records.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	Rows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webinar",
		Name:      "rows_ingested_total",
		Help:      "Attendee rows stored, by status. Errored duplicates count in both.",
	}, []string{"status"})

	Archives = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webinar",
		Name:      "archives_total",
		Help:      "Export snapshots written, by result.",
	}, []string{"result"})
)

// ObserveRows adds one ingest's statistics to Rows.
func ObserveRows(st attendance.Statistics) {
	Rows.WithLabelValues(string(attendance.StatusValid)).Add(float64(st.Valid))
	Rows.WithLabelValues(string(attendance.StatusDuplicate)).Add(float64(st.Duplicate))
	Rows.WithLabelValues(string(attendance.StatusError)).Add(float64(st.Error))
}
