package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestRouter_Probes(t *testing.T) {
	var ready atomic.Bool
	h := NewRouter(ready.Load)

	tests := []struct {
		path  string
		ready bool
		code  int
		body  string
	}{
		{"/healthz", false, http.StatusOK, "ok"},
		{"/readyz", false, http.StatusServiceUnavailable, "not ready"},
		{"/readyz", true, http.StatusOK, "ready"},
		{"/v1/liveness", false, http.StatusOK, "ok"},
		{"/v1/readiness", true, http.StatusOK, "ready"},
	}

	for _, tt := range tests {
		ready.Store(tt.ready)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

		if rec.Code != tt.code || rec.Body.String() != tt.body {
			t.Errorf("%s (ready=%v): got %d %q, want %d %q", tt.path, tt.ready, rec.Code, rec.Body.String(), tt.code, tt.body)
		}
	}
}

func TestRouter_Metrics(t *testing.T) {
	h := NewRouter(nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected default registry metrics")
	}
}

func TestRouter_NilReadyIsNotReady(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unexpected status %d", rec.Code)
	}
}
