package http

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests no pattern matched, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

var (
	metricRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inkwell",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and response status class.",
		},
		[]string{"route", "method", "status"},
	)

	metricRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inkwell",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

func init() {
	prometheus.MustRegister(metricRequests, metricRequestDuration)
}

// statusClass collapses a status code into "2xx", "4xx" and so on.
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
