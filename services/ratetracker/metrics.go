package ratetracker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/runestake/settlement/util"
)

var (
	prometheusRateTrackerTip          prometheus.Gauge
	prometheusRateTrackerSamples      prometheus.Counter
	prometheusRateTrackerPollErrors   prometheus.Counter
	prometheusRateTrackerPollDuration prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusRateTrackerTip = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "settlement",
			Subsystem: "ratetracker",
			Name:      "tip",
			Help:      "Last block height seen by the rate tracker",
		},
	)

	prometheusRateTrackerSamples = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "ratetracker",
			Name:      "samples",
			Help:      "Number of rate samples appended",
		},
	)

	prometheusRateTrackerPollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "ratetracker",
			Name:      "poll_errors",
			Help:      "Number of failed polls",
		},
	)

	prometheusRateTrackerPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "settlement",
			Subsystem: "ratetracker",
			Name:      "poll_duration_millis",
			Help:      "Duration of a poll in milliseconds",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)
}
