package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emberpost_sync_online",
		Help: "1 when the remote store is assumed reachable.",
	})
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emberpost_sync_transitions_total",
		Help: "Connectivity state transitions by target state.",
	}, []string{"state"})
	drainRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emberpost_sync_drain_runs_total",
		Help: "Queue drain cycles attempted.",
	})
	drainedOps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emberpost_sync_drained_ops_total",
		Help: "Pending operations delivered to the remote store.",
	})
	drainFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emberpost_sync_drain_failures_total",
		Help: "Drain cycles halted by a transport fault.",
	})
)
