package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dq", Subsystem: "pipeline", Name: "runs_total", Help: "Entity runs by outcome."},
		[]string{"outcome"},
	)
	issuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dq", Subsystem: "pipeline", Name: "issues_total", Help: "Observations written by table, kind and severity."},
		[]string{"table", "kind", "severity"},
	)
	rejectedRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dq", Subsystem: "pipeline", Name: "rejected_rows_total", Help: "Rows rejected for a missing entity key."},
		[]string{"table"},
	)
	reasonerLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "dq", Subsystem: "reasoner", Name: "latency_seconds", Help: "Reasoning service call latency.", Buckets: prometheus.ExponentialBuckets(0.25, 2, 10)},
	)
	reasonerAbstains = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "dq", Subsystem: "reasoner", Name: "abstains_total", Help: "Reasoner calls that ended in an abstain record."},
	)
)

func init() {
	_ = prometheus.Register(runsTotal)
	_ = prometheus.Register(issuesTotal)
	_ = prometheus.Register(rejectedRowsTotal)
	_ = prometheus.Register(reasonerLatency)
	_ = prometheus.Register(reasonerAbstains)
}
