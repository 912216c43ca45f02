package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/musclecoach/internal/bus"
	"github.com/loqalabs/musclecoach/internal/cache"
	"github.com/loqalabs/musclecoach/internal/catalog"
	"github.com/loqalabs/musclecoach/internal/config"
	"github.com/loqalabs/musclecoach/internal/errtrack"
	"github.com/loqalabs/musclecoach/internal/llm"
	"github.com/loqalabs/musclecoach/internal/natsserver"
	"github.com/loqalabs/musclecoach/internal/relay"
	"github.com/loqalabs/musclecoach/internal/tts"
)

// eventRetention bounds how long relay events stay in the JetStream stream.
const eventRetention = 24 * time.Hour

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	metricsSrv  *http.Server
	tracerClose func(context.Context) error
	bus         *bus.Client
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	tracker, err := errtrack.Init(r.cfg.Sentry, r.cfg.RuntimeName, r.cfg.Environment, r.logger)
	if err != nil {
		return err
	}
	defer tracker.Flush(2 * time.Second)

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return err
	}
	defer embedded.Shutdown()

	events, err := r.connectBus(ctx, embedded)
	if err != nil {
		return err
	}
	defer r.bus.Close()

	handler, closeBackends, err := r.buildRelay(ctx, events, tracker)
	if err != nil {
		return err
	}
	defer closeBackends()

	if metricsHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		r.serveMetrics(metricsHandler)
		metricsHandler = nil
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.routes(handler, tracker, metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slogError(err))
			cancel()
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("llm_mode", r.cfg.LLM.Mode),
		slog.String("tts_mode", r.cfg.TTS.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slogError(err))
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slogError(err))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slogError(err))
		}
	}

	return nil
}

// connectBus dials NATS when relay events are enabled. The embedded server,
// when running, takes precedence over configured servers.
func (r *Runtime) connectBus(ctx context.Context, embedded *natsserver.EmbeddedServer) (relay.EventPublisher, error) {
	if !r.cfg.Bus.Enabled {
		return relay.NopPublisher{}, nil
	}
	busCfg := r.cfg.Bus
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger.With(slog.String("component", "bus")))
	if err != nil {
		return nil, err
	}
	if err := client.EnsureEventStream(eventRetention); err != nil {
		r.logger.Warn("relay event stream unavailable", slogError(err))
	}
	r.bus = client
	return relay.NewBusPublisher(client, r.cfg.RuntimeName, r.logger), nil
}

func (r *Runtime) buildRelay(ctx context.Context, events relay.EventPublisher, tracker *errtrack.Tracker) (*relay.Handler, func(), error) {
	backend, err := llm.New(ctx, r.cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("llm backend: %w", err)
	}
	closeBackends := func() {
		if err := backend.Close(); err != nil {
			r.logger.Warn("llm backend close failed", slogError(err))
		}
	}

	synth, err := tts.New(r.cfg.TTS)
	if err != nil {
		closeBackends()
		return nil, nil, fmt.Errorf("tts backend: %w", err)
	}

	muscles, err := catalog.Load(r.cfg.Catalog.Path)
	if err != nil {
		closeBackends()
		return nil, nil, fmt.Errorf("muscle catalog: %w", err)
	}

	var summaries *cache.Summaries
	if r.cfg.Cache.Enabled {
		summaries = cache.NewSummaries(r.cfg.Cache.Size, time.Duration(r.cfg.Cache.TTLSeconds)*time.Second, relay.CacheObserver())
	}

	handler, err := relay.New(relay.Deps{
		Config:    r.cfg,
		Generator: backend.Generator,
		Models:    llm.NewCatalog(backend.Lister, r.cfg.LLM.PreferredModels, time.Duration(r.cfg.LLM.CatalogTTLMillis)*time.Millisecond),
		Synth:     synth,
		Summaries: summaries,
		Muscles:   muscles,
		Events:    events,
		Errors:    tracker,
		Logger:    r.logger,
	})
	if err != nil {
		closeBackends()
		return nil, nil, err
	}
	if r.cfg.LLM.Mode == "gemini" && r.cfg.LLM.APIKey == "" {
		r.logger.Warn("text generation API key not set, generation endpoints will fail")
	}
	if r.cfg.TTS.Mode == "google" && r.cfg.TTS.APIKey == "" {
		r.logger.Warn("speech API key not set, speech endpoints will fail")
	}
	r.logger.Info("relay ready", slog.Int("muscles", muscles.Len()), slog.Bool("cache", summaries != nil))
	return handler, closeBackends, nil
}

// routes mounts probes, the relay endpoints and, when given, /metrics.
func (r *Runtime) routes(handler *relay.Handler, tracker *errtrack.Tracker, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", r.handleHealth)
	mux.HandleFunc("GET /readyz", r.handleReady)
	handler.Register(mux)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return relay.RequestID(tracker.Middleware(mux))
}

func (r *Runtime) serveMetrics(h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", h)
	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Telemetry.PrometheusBind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server failed", slogError(err))
		}
	}()
	r.logger.Info("metrics listening", slog.String("addr", r.cfg.Telemetry.PrometheusBind))
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady also reports a lost bus connection when relay events are on.
func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && (!r.cfg.Bus.Enabled || r.bus.Healthy()) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
