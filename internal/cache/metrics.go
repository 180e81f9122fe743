package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	graphBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripgraph_builds_total",
		Help: "Full graph rebuilds by result",
	}, []string{"result"})

	graphBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tripgraph_build_duration_seconds",
		Help:    "Duration of full graph rebuilds including the outcome fetch",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})

	sharedBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripgraph_shared_builds_total",
		Help: "Initialize calls that joined a build already in flight",
	})

	incrementalUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripgraph_incremental_updates_total",
		Help: "Outcomes folded into a graph without a rebuild",
	})

	outcomesSinceRebuild = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tripgraph_outcomes_since_rebuild",
		Help: "Incremental outcomes applied since the last full rebuild",
	}, []string{"world"})

	graphNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tripgraph_nodes",
		Help: "Trip nodes in the cached graph",
	}, []string{"world"})
)
