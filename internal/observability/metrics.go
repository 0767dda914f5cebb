package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	attemptsStartedTotal   prometheus.Counter
	attemptsSubmittedTotal prometheus.Counter
	gradingDurationSeconds prometheus.Histogram
	experienceAwardedTotal prometheus.Counter
	requestsTotal          *prometheus.CounterVec
	requestLatencySeconds  *prometheus.HistogramVec
	requestErrorsTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		attemptsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_attempts_started_total",
			Help: "Total number of exam attempts started.",
		})

		attemptsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_attempts_submitted_total",
			Help: "Total number of exam attempts submitted and graded.",
		})

		gradingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exam_grading_duration_seconds",
			Help:    "Time spent grading and persisting a submitted answer batch.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		experienceAwardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "experience_points_awarded_total",
			Help: "Total experience points granted by the progress engine.",
		})

		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		requestErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		prometheus.MustRegister(
			attemptsStartedTotal,
			attemptsSubmittedTotal,
			gradingDurationSeconds,
			experienceAwardedTotal,
			requestsTotal,
			requestLatencySeconds,
			requestErrorsTotal,
		)
	})
}

// AttemptsStarted exposes the counter for started attempts.
func AttemptsStarted() prometheus.Counter {
	RegisterMetrics()
	return attemptsStartedTotal
}

// AttemptsSubmitted exposes the counter for submitted attempts.
func AttemptsSubmitted() prometheus.Counter {
	RegisterMetrics()
	return attemptsSubmittedTotal
}

// GradingDuration exposes the grading latency histogram.
func GradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingDurationSeconds
}

// ExperienceAwarded exposes the counter for granted experience points.
func ExperienceAwarded() prometheus.Counter {
	RegisterMetrics()
	return experienceAwardedTotal
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the latency histogram for API requests.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// RequestErrors exposes the counter for API error responses.
func RequestErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return requestErrorsTotal
}
