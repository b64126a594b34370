package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation pipeline results.
const (
	MutationResultCommitted = "committed"
	MutationResultRejected  = "rejected"
	MutationResultFailed    = "failed"
)

var (
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inventory",
		Name:      "mutations_total",
		Help:      "Mutation pipelines run, by pipeline and result.",
	}, []string{"pipeline", "result"})

	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "inventory",
		Name:      "mutation_duration_seconds",
		Help:      "Wall time of a mutation pipeline including lock wait.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"pipeline"})
)
