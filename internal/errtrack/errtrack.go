// Package errtrack reports server-side failures to Sentry when a DSN is set.
package errtrack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/loqalabs/musclecoach/internal/config"
)

// Tracker is a no-op when disabled.
type Tracker struct {
	enabled bool
	logger  *slog.Logger
}

// Init configures the global Sentry client. An empty DSN disables reporting.
func Init(cfg config.SentryConfig, runtimeName, environment string, logger *slog.Logger) (*Tracker, error) {
	logger = logger.With(slog.String("component", "errtrack"))
	if cfg.DSN == "" {
		logger.Info("sentry DSN not configured, error tracking disabled")
		return &Tracker{logger: logger}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		Release:          cfg.Release,
		ServerName:       runtimeName,
		TracesSampleRate: cfg.TracesSampleRate,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
				delete(event.Request.Headers, "X-Goog-Api-Key")
				event.Request.QueryString = ""
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	logger.Info("sentry initialized", slog.String("environment", environment), slog.String("release", cfg.Release))
	return &Tracker{enabled: true, logger: logger}, nil
}

func (t *Tracker) Enabled() bool { return t != nil && t.enabled }

// Capture records err with the given tags, using the request hub when ctx
// carries one.
func (t *Tracker) Capture(ctx context.Context, err error, tags map[string]string) {
	if !t.Enabled() || err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
	t.logger.Debug("exception captured", slog.String("error", err.Error()))
}

// Middleware attaches a hub to every request and turns panics into 500s
// after reporting them.
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if t.Enabled() {
			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetRequest(r)
			ctx = sentry.SetHubOnContext(ctx, hub)
		}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", rec)
			}
			if t != nil {
				t.logger.Error("handler panic", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
			}
			t.Capture(ctx, err, map[string]string{"path": r.URL.Path})
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"internal error"}` + "\n"))
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Flush waits for queued events.
func (t *Tracker) Flush(timeout time.Duration) bool {
	if !t.Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}
