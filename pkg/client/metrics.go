package client

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbor_http_requests_total",
			Help: "Total number of HTTP calls issued, by method and status code",
		},
		[]string{"method", "code"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbor_http_request_duration_seconds",
			Help:    "Duration of HTTP calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Collectors returns the client metrics for registration on a prometheus registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{requestsTotal, requestDuration}
}
