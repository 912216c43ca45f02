// Package relay exposes the HTTP endpoints that forward browser requests to
// the text-generation and speech-synthesis providers.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/loqalabs/musclecoach/internal/cache"
	"github.com/loqalabs/musclecoach/internal/catalog"
	"github.com/loqalabs/musclecoach/internal/config"
	"github.com/loqalabs/musclecoach/internal/errtrack"
	"github.com/loqalabs/musclecoach/internal/llm"
	"github.com/loqalabs/musclecoach/internal/protocol"
	"github.com/loqalabs/musclecoach/internal/tts"
)

// Deps are the collaborators a Handler needs. Summaries, Muscles, Events and
// Errors are optional.
type Deps struct {
	Config    config.Config
	Generator llm.Generator
	Models    *llm.Catalog
	Synth     tts.Synthesizer
	Summaries *cache.Summaries
	Muscles   *catalog.Catalog
	Events    EventPublisher
	Errors    *errtrack.Tracker
	Logger    *slog.Logger
}

// Handler serves every relay endpoint. It holds no per-request state.
type Handler struct {
	cfg       config.Config
	gen       llm.Generator
	models    *llm.Catalog
	synth     tts.Synthesizer
	summaries *cache.Summaries
	muscles   *catalog.Catalog
	events    EventPublisher
	tracker   *errtrack.Tracker
	logger    *slog.Logger
	metrics   *instruments
}

func New(deps Deps) (*Handler, error) {
	if deps.Generator == nil {
		return nil, errors.New("relay: generator is required")
	}
	if deps.Synth == nil {
		return nil, errors.New("relay: synthesizer is required")
	}
	if deps.Models == nil {
		return nil, errors.New("relay: model catalog is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	events := deps.Events
	if events == nil {
		events = NopPublisher{}
	}
	h := &Handler{
		cfg:       deps.Config,
		gen:       deps.Generator,
		models:    deps.Models,
		synth:     deps.Synth,
		summaries: deps.Summaries,
		muscles:   deps.Muscles,
		events:    events,
		tracker:   deps.Errors,
		logger:    logger.With(slog.String("component", "relay")),
	}
	m, err := newInstruments()
	if err != nil {
		return nil, fmt.Errorf("relay instruments: %w", err)
	}
	h.metrics = m
	return h, nil
}

// Register mounts the relay routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/muscle-info", h.handleMuscleInfo)
	mux.HandleFunc("POST /api/muscle-workout-summary", h.handleWorkoutSummary)
	mux.HandleFunc("POST /api/stream-gemini-form-cues", h.handleFormCues)
	mux.HandleFunc("POST /api/muscle-workout-tts", h.handleSpeech)
	mux.HandleFunc("POST /api/rehab-feedback", h.handlePoseFeedback)
	mux.HandleFunc("GET /api/models", h.handleModels)
	mux.HandleFunc("GET /api/muscles", h.handleMuscles)
	mux.HandleFunc("GET /api/muscles/{key}", h.handleMuscle)
}

// call tracks one relay invocation for logging, metrics and events.
type call struct {
	endpoint  string
	requestID string
	start     time.Time
	model     string
	cached    bool
	logger    *slog.Logger
}

func (h *Handler) begin(r *http.Request, endpoint string) *call {
	id := RequestIDFrom(r.Context())
	return &call{
		endpoint:  endpoint,
		requestID: id,
		start:     time.Now(),
		logger:    h.logger.With(slog.String("endpoint", endpoint), slog.String("request_id", id)),
	}
}

// finish records the outcome of c. err may be nil.
func (h *Handler) finish(ctx context.Context, c *call, status int, err error) {
	latency := time.Since(c.start)
	h.metrics.request(ctx, c.endpoint, status)
	attrs := []any{slog.Int("status", status), slog.Int64("latency_ms", latency.Milliseconds())}
	if c.model != "" {
		attrs = append(attrs, slog.String("model", c.model))
	}
	switch {
	case err != nil && status >= http.StatusInternalServerError:
		c.logger.Error("relay failed", append(attrs, slogError(err))...)
		h.tracker.Capture(ctx, err, map[string]string{"endpoint": c.endpoint, "request_id": c.requestID})
	case err != nil && status >= http.StatusBadRequest:
		c.logger.Warn("relay rejected", append(attrs, slogError(err))...)
	case err != nil:
		// committed stream cut short; already logged by the writer
	default:
		c.logger.Info("relay complete", append(attrs, slog.Bool("cached", c.cached))...)
	}
	h.events.Publish(context.WithoutCancel(ctx), protocol.RelayCompleted{
		Endpoint:  c.endpoint,
		Status:    status,
		RequestID: c.requestID,
		Model:     c.model,
		LatencyMS: latency.Milliseconds(),
		Cached:    c.cached,
	})
}

// fail writes e and records it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, c *call, e *Error) {
	if clientGone(r) {
		h.finish(r.Context(), c, statusClientClosed, e)
		return
	}
	h.writeError(w, e)
	h.finish(r.Context(), c, e.Status, e)
}

// statusClientClosed marks calls abandoned by the caller in logs and metrics.
const statusClientClosed = 499

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", slogError(err))
	}
}

// decode reads a JSON body bounded by relay.max_body_bytes. Unknown fields
// are ignored.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) *Error {
	body := http.MaxBytesReader(w, r.Body, int64(h.cfg.Relay.MaxBodyBytes))
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &Error{Kind: KindInput, Status: http.StatusRequestEntityTooLarge, Message: "Request body too large"}
		}
		return inputError("Invalid JSON body")
	}
	return nil
}

// upstreamContext bounds provider calls by relay.request_timeout_ms while
// still following the caller's cancellation.
func (h *Handler) upstreamContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := time.Duration(h.cfg.Relay.RequestTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (h *Handler) ttsKeyMissing() bool {
	return h.cfg.TTS.Mode == "google" && h.cfg.TTS.APIKey == ""
}

func (h *Handler) llmKeyMissing() bool {
	return h.cfg.LLM.Mode == "gemini" && h.cfg.LLM.APIKey == ""
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
