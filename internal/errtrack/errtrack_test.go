package errtrack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loqalabs/musclecoach/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitWithoutDSNIsDisabled(t *testing.T) {
	tr, err := Init(config.SentryConfig{}, "coachd", "test", discardLogger())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if tr.Enabled() {
		t.Fatalf("expected tracker disabled")
	}
	tr.Capture(context.Background(), errors.New("ignored"), nil)
	if !tr.Flush(time.Millisecond) {
		t.Fatalf("disabled flush should report success")
	}
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	tr, err := Init(config.SentryConfig{}, "coachd", "test", discardLogger())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	h := tr.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/muscles", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "internal error" {
		t.Fatalf("unexpected body %q (%v)", rec.Body.String(), err)
	}
}

func TestNilTrackerMiddlewareRecoversPanics(t *testing.T) {
	var tr *Tracker
	h := tr.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rehab-feedback", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
