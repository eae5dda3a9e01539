package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wodbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wodbox_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BackendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wodbox_backend_calls_total",
			Help: "Total number of data-access calls against the backend",
		},
		[]string{"operation", "table", "outcome"},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wodbox_backend_call_duration_seconds",
			Help:    "Backend data-access call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wodbox_auth_events_total",
			Help: "Auth state change notifications emitted by the backend client",
		},
		[]string{"event"},
	)

	ProfileFetchAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wodbox_signup_profile_fetch_attempts",
			Help:    "Profile fetches needed after sign-up before the profile was found or inserted",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	ProfileFallbackInsertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wodbox_signup_profile_fallback_inserts_total",
			Help: "Profiles inserted by the client because the trigger did not create them in time",
		},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wodbox_bookings_total",
			Help: "Booking mutations issued by this client",
		},
		[]string{"action"},
	)

	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wodbox_session_active",
			Help: "1 when a user is signed in, 0 otherwise",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBackendCall(operation, table string, err error, duration float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	BackendCallsTotal.WithLabelValues(operation, table, outcome).Inc()
	BackendCallDuration.WithLabelValues(operation, table).Observe(duration)
}

func RecordAuthEvent(event string) {
	AuthEventsTotal.WithLabelValues(event).Inc()
}

func RecordProfileFetchAttempts(attempts int) {
	ProfileFetchAttempts.Observe(float64(attempts))
}

func RecordProfileFallbackInsert() {
	ProfileFallbackInsertsTotal.Inc()
}

func RecordBooking(action string) {
	BookingsTotal.WithLabelValues(action).Inc()
}

func SetSessionActive(active bool) {
	if active {
		SessionActive.Set(1)
		return
	}
	SessionActive.Set(0)
}
