package transcription

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "OggS-bytes")
	}))
	defer srv.Close()

	data, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL+"/voice-message.ogg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "OggS-bytes" {
		t.Errorf("unexpected data %q", data)
	}
}

func TestHTTPFetcher_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(0).Fetch(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 error, got %v", err)
	}
}
