package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "utellme_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "utellme_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	feedbackSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "utellme_feedback_submitted_total",
		Help: "Feedback entries submitted, by star rating.",
	}, []string{"rating"})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "utellme_webhook_events_total",
		Help: "Billing webhook events by provider, type and outcome.",
	}, []string{"provider", "type", "outcome"})

	billingCustomerDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "utellme_billing_customer_deletions_total",
		Help: "Billing customer deletions after account removal, by outcome.",
	}, []string{"outcome"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	route := Route(path)
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func FeedbackSubmitted(rating int) {
	feedbackSubmitted.WithLabelValues(strconv.Itoa(rating)).Inc()
}

func WebhookEvent(provider, eventType, outcome string) {
	webhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
}

func BillingCustomerDeleted(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	billingCustomerDeletions.WithLabelValues(outcome).Inc()
}

// Route collapses a request path into a bounded label. Procedure paths are
// kept whole; anything else is reduced to its first segment.
func Route(path string) string {
	if strings.HasPrefix(path, "/api/") {
		return path
	}
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return "/" + trimmed
}
