package api

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/runestake/settlement/util"
)

var (
	prometheusAPIRequests        *prometheus.CounterVec
	prometheusAPIRequestDuration *prometheus.HistogramVec
	prometheusAPIErrors          *prometheus.CounterVec
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "api",
			Name:      "requests",
			Help:      "Number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	prometheusAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "settlement",
			Subsystem: "api",
			Name:      "request_duration_millis",
			Help:      "Duration of HTTP requests in milliseconds",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
		[]string{"route"},
	)

	prometheusAPIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Subsystem: "api",
			Name:      "errors",
			Help:      "Number of error responses by error code",
		},
		[]string{"code"},
	)
}

func requestMetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			route := c.Path()
			prometheusAPIRequests.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
			prometheusAPIRequestDuration.WithLabelValues(route).Observe(float64(time.Since(start).Microseconds()) / 1_000)

			return err
		}
	}
}
