package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsEndpointExposesCounters(t *testing.T) {
	// Vec metrics only export once a label combination exists
	friendRequestsTotal.WithLabelValues("pending").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	metricsHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics endpoint failed: %d", w.Code)
	}

	body := w.Body.String()
	for _, name := range []string{
		"urbane_potential_matches_served_total",
		"urbane_friend_requests_total",
		"urbane_mutual_matches_total",
		"urbane_rejections_total",
		"urbane_event_rsvps_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}
