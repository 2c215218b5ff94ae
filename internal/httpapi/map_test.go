package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"club_archive/core-go/internal/archivemap"
	"club_archive/core-go/internal/loader"
)

func createSession(t *testing.T, router http.Handler) archivemap.Snapshot {
	t.Helper()
	rr := do(t, router, http.MethodPost, "/api/v1/sessions?wait=true", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	return decodeSnapshot(t, rr)
}

func TestCreateSession_Ready(t *testing.T) {
	_, router := newTestHandler(t, "k")

	s := createSession(t, router)
	if s.ID == "" {
		t.Fatalf("expected a session id")
	}
	if s.Status != archivemap.StatusReady {
		t.Fatalf("expected ready, got %s", s.Status)
	}
	if s.VisibleCount != 2 || len(s.Features.Features) != 2 {
		t.Fatalf("expected 2 venues on the map, got %d visible %d features", s.VisibleCount, len(s.Features.Features))
	}

	rr := do(t, router, http.MethodGet, "/api/v1/sessions/"+s.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decodeSnapshot(t, rr); got.ID != s.ID {
		t.Fatalf("expected session %s, got %s", s.ID, got.ID)
	}
}

func TestCreateSession_MissingCredential(t *testing.T) {
	_, router := newTestHandler(t, "")

	s := createSession(t, router)
	if s.Status != archivemap.StatusError || s.Error == nil || s.Error.Retryable {
		t.Fatalf("expected non-retryable error, got %s %+v", s.Status, s.Error)
	}

	rr := do(t, router, http.MethodPost, "/api/v1/sessions/"+s.ID+"/markers/club-a/click", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "not_ready" {
		t.Fatalf("expected not_ready, got %q", code)
	}
}

func TestSession_NotFound(t *testing.T) {
	_, router := newTestHandler(t, "k")

	for _, path := range []string{"/api/v1/sessions/nope", "/api/v1/sessions/nope/popup/close"} {
		method := http.MethodGet
		if path != "/api/v1/sessions/nope" {
			method = http.MethodPost
		}
		rr := do(t, router, method, path, "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rr.Code)
		}
	}
}

func TestSession_FilterToggleAndReset(t *testing.T) {
	_, router := newTestHandler(t, "k")
	s := createSession(t, router)
	base := "/api/v1/sessions/" + s.ID

	rr := do(t, router, http.MethodPost, base+"/filters/toggle", `{"facet":"tags","value":"techno"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got := decodeSnapshot(t, rr)
	if got.VisibleCount != 1 || !got.HasActiveFilters {
		t.Fatalf("expected one techno venue with active filters, got %d %v", got.VisibleCount, got.HasActiveFilters)
	}
	if len(got.Filters.Tags) != 1 || got.Filters.Tags[0] != "techno" {
		t.Fatalf("expected techno selected, got %+v", got.Filters.Tags)
	}

	rr = do(t, router, http.MethodPost, base+"/filters/reset", "")
	got = decodeSnapshot(t, rr)
	if got.VisibleCount != 2 || got.HasActiveFilters {
		t.Fatalf("expected reset to show both venues, got %d %v", got.VisibleCount, got.HasActiveFilters)
	}
}

func TestSession_FilterToggleValidation(t *testing.T) {
	_, router := newTestHandler(t, "k")
	s := createSession(t, router)
	base := "/api/v1/sessions/" + s.ID

	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad json", `{"facet":`, "invalid_json"},
		{"unknown field", `{"facet":"tags","value":"x","extra":1}`, "invalid_json"},
		{"unknown facet", `{"facet":"colour","value":"x"}`, "validation_failed"},
		{"empty value", `{"facet":"tags","value":""}`, "validation_failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, router, http.MethodPost, base+"/filters/toggle", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if code := errorCode(t, rr); code != tc.code {
				t.Fatalf("expected %q, got %q", tc.code, code)
			}
		})
	}
}

func TestSession_PopupFlow(t *testing.T) {
	_, router := newTestHandler(t, "k")
	s := createSession(t, router)
	base := "/api/v1/sessions/" + s.ID

	rr := do(t, router, http.MethodPost, base+"/markers/club-a/click", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	got := decodeSnapshot(t, rr)
	if got.Popup == nil || got.Popup.Entity.Slug != "club-a" {
		t.Fatalf("expected popup for club-a, got %+v", got.Popup)
	}

	rr = do(t, router, http.MethodPost, base+"/markers/club-b/click", "")
	got = decodeSnapshot(t, rr)
	if got.Popup == nil || got.Popup.Entity.Slug != "club-b" {
		t.Fatalf("expected popup replaced by club-b, got %+v", got.Popup)
	}

	rr = do(t, router, http.MethodPost, base+"/events/zoom", `{"zoom":14}`)
	got = decodeSnapshot(t, rr)
	if got.Popup != nil {
		t.Fatalf("expected zoom to hide the popup")
	}
	if got.Viewport == nil || got.Viewport.Zoom != 14 {
		t.Fatalf("expected zoom 14, got %+v", got.Viewport)
	}

	do(t, router, http.MethodPost, base+"/markers/club-a/click", "")
	rr = do(t, router, http.MethodPost, base+"/events/dragstart", "")
	if decodeSnapshot(t, rr).Popup != nil {
		t.Fatalf("expected dragstart to hide the popup")
	}

	do(t, router, http.MethodPost, base+"/markers/club-a/click", "")
	rr = do(t, router, http.MethodPost, base+"/popup/close", "")
	if decodeSnapshot(t, rr).Popup != nil {
		t.Fatalf("expected close to hide the popup")
	}

	rr = do(t, router, http.MethodPost, base+"/markers/unknown/click", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown marker, got %d", rr.Code)
	}
}

func TestSession_ClusterClickValidation(t *testing.T) {
	_, router := newTestHandler(t, "k")
	s := createSession(t, router)
	base := "/api/v1/sessions/" + s.ID

	rr := do(t, router, http.MethodPost, base+"/clusters/abc/click", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = do(t, router, http.MethodPost, base+"/clusters/99/click", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSession_Delete(t *testing.T) {
	_, router := newTestHandler(t, "k")
	s := createSession(t, router)

	rr := do(t, router, http.MethodDelete, "/api/v1/sessions/"+s.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = do(t, router, http.MethodGet, "/api/v1/sessions/"+s.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestSession_RetryKeepsErrorWithoutCredential(t *testing.T) {
	_, router := newTestHandler(t, "")
	s := createSession(t, router)

	rr := do(t, router, http.MethodPost, "/api/v1/sessions/"+s.ID+"/retry", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decodeSnapshot(t, rr); got.Status != archivemap.StatusError {
		t.Fatalf("expected error status after retry, got %s", got.Status)
	}
}

func TestCreateSession_ReportsLoading(t *testing.T) {
	gate := make(chan struct{})
	_, router := newTestHandlerWithLoad(t, "k", func(load loader.LoadFunc) loader.LoadFunc {
		return func(ctx context.Context) error {
			<-gate
			return load(ctx)
		}
	})

	rr := do(t, router, http.MethodPost, "/api/v1/sessions", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	s := decodeSnapshot(t, rr)
	if s.Status != archivemap.StatusLoading {
		close(gate)
		t.Fatalf("expected loading while the provider loads, got %s", s.Status)
	}

	// Reads are not held up by the pending load.
	got := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+s.ID, nil))
		got <- rr
	}()
	select {
	case rr := <-got:
		if snap := decodeSnapshot(t, rr); snap.Status != archivemap.StatusLoading {
			close(gate)
			t.Fatalf("expected loading, got %s", snap.Status)
		}
	case <-time.After(2 * time.Second):
		close(gate)
		t.Fatalf("expected session read to return while loading")
	}

	close(gate)
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := decodeSnapshot(t, do(t, router, http.MethodGet, "/api/v1/sessions/"+s.ID, ""))
		if snap.Status == archivemap.StatusReady {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected ready after the load, got %s", snap.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
