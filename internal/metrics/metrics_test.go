package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	return 0
}

func TestDomainCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Assessment(true, false)
	m.Assessment(false, true)
	m.Assessment(true, true)
	m.Assessment(false, false)
	m.InterviewDecision("pass")
	m.AssignmentSubmitted()
	m.AssignmentReview("approved")
	m.NotificationResult("email", nil)
	m.NotificationResult("sms", errors.New("throttled"))

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"traderpath_assessments_total", map[string]string{"outcome": "eligible"}, 1},
		{"traderpath_assessments_total", map[string]string{"outcome": "red_flag"}, 2},
		{"traderpath_assessments_total", map[string]string{"outcome": "ineligible"}, 1},
		{"traderpath_interview_decisions_total", map[string]string{"result": "pass"}, 1},
		{"traderpath_assignments_submitted_total", nil, 1},
		{"traderpath_assignment_reviews_total", map[string]string{"status": "approved"}, 1},
		{"traderpath_notifications_total", map[string]string{"channel": "email", "outcome": "sent"}, 1},
		{"traderpath_notifications_total", map[string]string{"channel": "sms", "outcome": "failed"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counterValue(t, reg, tt.name, tt.labels); got != tt.want {
				t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
			}
		})
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/stages/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stages/42", nil))
	}

	got := counterValue(t, reg, "traderpath_http_requests_total",
		map[string]string{"route": "/api/stages/{id}", "method": "GET", "code": "418"})
	if got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "traderpath_http_request_duration_seconds") {
		t.Errorf("exposition missing histogram:\n%s", body)
	}
}
