package custodian

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusCustodianCalls   *prometheus.CounterVec
	prometheusCustodianErrors  *prometheus.CounterVec
	prometheusCustodianRetries prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusCustodianCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "custodian",
			Name:      "calls",
			Help:      "Number of custodian calls",
		},
		[]string{"method"},
	)

	prometheusCustodianErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "custodian",
			Name:      "errors",
			Help:      "Number of failed custodian calls",
		},
		[]string{"method"},
	)

	prometheusCustodianRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "custodian",
			Name:      "out_of_sync_retries",
			Help:      "Number of custodian calls retried because its indexer was out of sync",
		},
	)
}
