package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotLetters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emberpost_cache_snapshot_letters",
		Help: "Letters held in the last persisted snapshot.",
	})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emberpost_cache_queue_depth",
		Help: "Pending operations awaiting delivery to the remote store.",
	})
	saveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emberpost_cache_save_failures_total",
		Help: "Durable write failures; non-fatal, retried on the next save.",
	})
)
