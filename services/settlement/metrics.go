package settlement

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/runestake/settlement/util"
)

var (
	prometheusSettlementPrepare         *prometheus.CounterVec
	prometheusSettlementConfirm         *prometheus.CounterVec
	prometheusSettlementConfirmErrors   *prometheus.CounterVec
	prometheusSettlementConfirmDuration prometheus.Histogram
	prometheusSettlementBroadcastErrors prometheus.Counter
	prometheusSettlementMined           *prometheus.CounterVec
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusSettlementPrepare = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "service",
			Name:      "prepare",
			Help:      "Number of prepare requests",
		},
		[]string{"operation"},
	)

	prometheusSettlementConfirm = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "service",
			Name:      "confirm",
			Help:      "Number of confirm requests",
		},
		[]string{"operation"},
	)

	prometheusSettlementConfirmErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "service",
			Name:      "confirm_errors",
			Help:      "Number of failed confirm requests by error code",
		},
		[]string{"operation", "code"},
	)

	prometheusSettlementConfirmDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "settlement",
			Subsystem: "service",
			Name:      "confirm_duration_millis",
			Help:      "Duration of a confirm in milliseconds",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusSettlementBroadcastErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "service",
			Name:      "broadcast_errors",
			Help:      "Number of transactions the relay rejected",
		},
	)

	prometheusSettlementMined = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "service",
			Name:      "mined",
			Help:      "Number of ledger rows whose transaction was found in a block",
		},
		[]string{"kind"},
	)
}
