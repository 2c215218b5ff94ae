package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if got := rr.Body.String(); !strings.Contains(got, "metrics unavailable") {
		t.Fatalf("expected body to mention metrics unavailable, got %q", got)
	}

	// Nil receivers must be safe everywhere.
	m.ObserveProviderLoad(nil)
	m.ObserveMarkerRebuild(3)
	m.SetActiveSessions(1)
}

func TestHandler_exposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/readyz", http.StatusOK, 12*time.Millisecond)
	m.ObserveProviderLoad(nil)
	m.ObserveProviderLoad(errors.New("boom"))
	m.ObserveMarkerRebuild(4)
	m.ObserveMarkerRebuild(3)
	m.SetActiveSessions(2)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := rr.Body.String()
	for _, want := range []string{
		"archive_http_requests_total{method=\"GET\",path=\"/readyz\",status=\"200\"} 1",
		"archive_map_provider_loads_total{outcome=\"ok\"} 1",
		"archive_map_provider_loads_total{outcome=\"error\"} 1",
		"archive_marker_rebuilds_total 2",
		"archive_markers_per_rebuild_count 2",
		"archive_markers_per_rebuild_sum 7",
		"archive_map_sessions_active 2",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body; body=%s", want, body)
		}
	}
	// Rebuilds from different sessions accumulate instead of overwriting
	// one another.
	if strings.Contains(body, "archive_markers_rendered") {
		t.Fatalf("expected no last-rebuild gauge; body=%s", body)
	}
}
