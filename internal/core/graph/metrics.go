package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nodeEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "songtagger",
		Subsystem: "graph",
		Name:      "node_evaluations_total",
		Help:      "Node evaluations by node kind and final status.",
	}, []string{"kind", "status"})

	sourceFetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "songtagger",
		Subsystem: "graph",
		Name:      "source_fetch_seconds",
		Help:      "Latency of source fetches against the track repository.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	runSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "songtagger",
		Subsystem: "graph",
		Name:      "run_seconds",
		Help:      "Duration of full graph runs.",
		Buckets:   prometheus.DefBuckets,
	})

	nodeInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "songtagger",
		Subsystem: "graph",
		Name:      "result_invalidations_total",
		Help:      "Cached node results cleared by configuration or topology changes.",
	})
)
