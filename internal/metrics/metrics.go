// Package metrics exposes Prometheus counters for the program's decisions and
// an HTTP middleware for request accounting.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "traderpath"

// Metrics holds every collector, registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	assessments         *prometheus.CounterVec
	interviewDecisions  *prometheus.CounterVec
	assignmentReviews   *prometheus.CounterVec
	assignmentSubmitted prometheus.Counter
	notifications       *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass a fresh prometheus.NewRegistry()
// in tests to keep them isolated.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		assessments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Assessment evaluations by outcome.",
		}, []string{"outcome"}),
		interviewDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interview_decisions_total",
			Help:      "Interview results recorded by team leads.",
		}, []string{"result"}),
		assignmentReviews: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_reviews_total",
			Help:      "Assignment reviews by resulting status.",
		}, []string{"status"}),
		assignmentSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_submitted_total",
			Help:      "Assignment submissions accepted.",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Assessment counts one evaluation. A red flag outranks ineligibility.
func (m *Metrics) Assessment(eligible, redFlag bool) {
	outcome := "ineligible"
	switch {
	case redFlag:
		outcome = "red_flag"
	case eligible:
		outcome = "eligible"
	}
	m.assessments.WithLabelValues(outcome).Inc()
}

// InterviewDecision counts a decided interview.
func (m *Metrics) InterviewDecision(result string) {
	m.interviewDecisions.WithLabelValues(result).Inc()
}

// AssignmentSubmitted counts an accepted submission.
func (m *Metrics) AssignmentSubmitted() {
	m.assignmentSubmitted.Inc()
}

// AssignmentReview counts a review by the assignment's new status.
func (m *Metrics) AssignmentReview(status string) {
	m.assignmentReviews.WithLabelValues(status).Inc()
}

// NotificationResult counts one delivery attempt on channel.
func (m *Metrics) NotificationResult(channel string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.notifications.WithLabelValues(channel, outcome).Inc()
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
