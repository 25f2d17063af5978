package builder

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/runestake/settlement/util"
)

var (
	prometheusBuilderBuild          *prometheus.CounterVec
	prometheusBuilderBuildErrors    *prometheus.CounterVec
	prometheusBuilderBuildDuration  prometheus.Histogram
	prometheusBuilderLockContention prometheus.Counter
	prometheusBuilderInputs         prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBuilderBuild = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "builder",
			Name:      "build",
			Help:      "Number of build requests",
		},
		[]string{"operation"},
	)

	prometheusBuilderBuildErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "builder",
			Name:      "build_errors",
			Help:      "Number of failed build requests",
		},
		[]string{"operation"},
	)

	prometheusBuilderBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "settlement",
			Subsystem: "builder",
			Name:      "build_duration_millis",
			Help:      "Duration of a build in milliseconds",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusBuilderLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "builder",
			Name:      "lock_contention",
			Help:      "Number of selections retried because a chosen output was locked by another build",
		},
	)

	prometheusBuilderInputs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "settlement",
			Subsystem: "builder",
			Name:      "inputs",
			Help:      "Number of inputs per built transaction",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)
}
