package indexer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusIndexerRequests  *prometheus.CounterVec
	prometheusIndexerErrors    *prometheus.CounterVec
	prometheusIndexerCacheHits *prometheus.CounterVec
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusIndexerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "indexer",
			Name:      "requests",
			Help:      "Number of requests sent to the indexer",
		},
		[]string{"call"},
	)

	prometheusIndexerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "indexer",
			Name:      "errors",
			Help:      "Number of failed indexer requests",
		},
		[]string{"call"},
	)

	prometheusIndexerCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "indexer",
			Name:      "cache_hits",
			Help:      "Number of indexer lookups answered from cache",
		},
		[]string{"call"},
	)
}
