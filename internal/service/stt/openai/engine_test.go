package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"discord-transcriber/internal/service/stt"
)

func TestEngine_MissingCredential(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	for _, key := range []string{"", "0", " 0 ", "\t"} {
		e := New(Config{APIKey: key, BaseURL: srv.URL})
		if _, err := e.Transcribe(context.Background(), []byte("RIFF")); !errors.Is(err, stt.ErrMissingCredential) {
			t.Errorf("key %q: expected ErrMissingCredential, got %v", key, err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("expected no HTTP calls, got %d", n)
	}
}

func TestEngine_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing form: %v", err)
			return
		}
		if r.FormValue("model") != "whisper-1" {
			t.Errorf("unexpected model %q", r.FormValue("model"))
		}
		if r.FormValue("language") != "fr" {
			t.Errorf("unexpected language %q", r.FormValue("language"))
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "RIFFdata" {
			t.Errorf("unexpected file contents %q", data)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":" bonjour tout le monde "}`)
	}))
	defer srv.Close()

	e := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Language: "fr"})
	got, err := e.Transcribe(context.Background(), []byte("RIFFdata"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "bonjour tout le monde" {
		t.Errorf("unexpected transcript %q", got)
	}
}

func TestEngine_TrimsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-padded" {
			t.Errorf("unexpected auth header %q", got)
		}
		io.WriteString(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	if _, err := New(Config{APIKey: " sk-padded\n", BaseURL: srv.URL}).Transcribe(context.Background(), []byte("RIFF")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEngine_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Incorrect API key provided"}}`)
	}))
	defer srv.Close()

	_, err := New(Config{APIKey: "bad", BaseURL: srv.URL}).Transcribe(context.Background(), []byte("RIFF"))
	if err == nil || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("expected API error message, got %v", err)
	}
}

func TestEngine_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(Config{APIKey: "k", BaseURL: srv.URL}).Transcribe(context.Background(), []byte("RIFF"))
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	e := New(Config{})
	if e.cfg.BaseURL != DefaultBaseURL || e.cfg.Model != "whisper-1" {
		t.Errorf("unexpected defaults %+v", e.cfg)
	}
	if e.Kind() != stt.KindRemote {
		t.Errorf("expected remote engine")
	}
}
