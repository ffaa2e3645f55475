package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records auth operations (signup|login|verify_otp|federated_login) by result.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notely_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"operation", "result"},
	)

	// OTPDeliveries counts OTP email deliveries by result (success|failure).
	OTPDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notely_otp_deliveries_total",
			Help: "Total number of OTP delivery attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notely_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// CachePurged counts expired cache entries removed by the maintenance job.
	CachePurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notely_cache_entries_purged_total",
			Help: "Total number of expired cache entries purged",
		},
	)
)
