package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce        sync.Once
	adminRequestsTotal  *prometheus.CounterVec
	adminLatencySeconds *prometheus.HistogramVec
	adminErrorsTotal    *prometheus.CounterVec
	reviewSavesTotal    *prometheus.CounterVec
	reviewSaveSeconds   prometheus.Histogram
	evidenceUploads     *prometheus.CounterVec
	rankingCacheTotal   *prometheus.CounterVec
	submissionEvents    *prometheus.CounterVec
	streamClientsActive prometheus.Gauge
)

// MetricsHandler serves the default registry, in OpenMetrics format when the
// scraper negotiates it.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_errors_total",
			Help: "Total number of error responses returned by admin endpoints.",
		}, []string{"method", "route", "status"})

		reviewSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamification_review_saves_total",
			Help: "Submission reviews stored, by mode and resulting status.",
		}, []string{"mode", "status"})

		reviewSaveSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamification_review_save_seconds",
			Help:    "Time spent persisting a submission review.",
			Buckets: prometheus.DefBuckets,
		})

		evidenceUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamification_evidence_uploads_total",
			Help: "Evidence uploads, by detected category and outcome.",
		}, []string{"category", "outcome"})

		rankingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamification_ranking_cache_total",
			Help: "Ranking cache lookups, by result.",
		}, []string{"result"})

		submissionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamification_submission_events_total",
			Help: "Submission update events, by origin.",
		}, []string{"origin"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamification_stream_clients_active",
			Help: "Admin websocket clients currently subscribed to submission events.",
		})

		prometheus.MustRegister(
			adminRequestsTotal,
			adminLatencySeconds,
			adminErrorsTotal,
			reviewSavesTotal,
			reviewSaveSeconds,
			evidenceUploads,
			rankingCacheTotal,
			submissionEvents,
			streamClientsActive,
		)
	})
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for admin error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}

// ReviewSaves counts stored reviews.
func ReviewSaves() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewSavesTotal
}

// ReviewSaveDuration observes review persistence latency.
func ReviewSaveDuration() prometheus.Histogram {
	RegisterMetrics()
	return reviewSaveSeconds
}

// EvidenceUploads counts evidence uploads.
func EvidenceUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return evidenceUploads
}

// RankingCache counts ranking cache hits and misses.
func RankingCache() *prometheus.CounterVec {
	RegisterMetrics()
	return rankingCacheTotal
}

// SubmissionEvents counts submission update events.
func SubmissionEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionEvents
}

// StreamClientsActive tracks connected event stream clients.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
