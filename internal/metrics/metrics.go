package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking transition attempts by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	complaintActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "complaint_actions_total",
			Help:      "Complaint admin actions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	refundedAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunded_amount_minor_units_total",
			Help:      "Sum of wallet refunds issued, in minor currency units.",
		},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bookingTransitions,
			complaintActions, refundedAmount, cacheLookups)
	})
}

// Handler exposes the default registry for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one served request
func ObserveHTTP(route, method, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, status).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// IncBookingTransition counts a transition attempt; outcome is "ok" or an error kind
func IncBookingTransition(event, outcome string) {
	bookingTransitions.WithLabelValues(event, outcome).Inc()
}

// IncComplaintAction counts a complaint action attempt
func IncComplaintAction(action, outcome string) {
	complaintActions.WithLabelValues(action, outcome).Inc()
}

// AddRefund adds an issued refund amount
func AddRefund(minorUnits int64) {
	refundedAmount.Add(float64(minorUnits))
}

// IncCache counts a cache lookup result
func IncCache(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
