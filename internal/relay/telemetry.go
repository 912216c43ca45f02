package relay

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/musclecoach/internal/relay"

type instruments struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	upstream metric.Float64Histogram
	lookups  metric.Int64Counter
}

func newInstruments() (*instruments, error) {
	meter := otel.Meter(instrumentationName)
	requests, err := meter.Int64Counter("coach.relay.requests",
		metric.WithDescription("Relay calls by endpoint and response status"))
	if err != nil {
		return nil, err
	}
	upstream, err := meter.Float64Histogram("coach.relay.upstream.duration",
		metric.WithDescription("Provider call latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	lookups, err := meter.Int64Counter("coach.cache.lookups",
		metric.WithDescription("Summary cache lookups by result"))
	if err != nil {
		return nil, err
	}
	return &instruments{
		tracer:   otel.Tracer(instrumentationName),
		requests: requests,
		upstream: upstream,
		lookups:  lookups,
	}, nil
}

func (m *instruments) request(ctx context.Context, endpoint string, status int) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", strconv.Itoa(status)),
	))
}

func (m *instruments) cacheLookup(ctx context.Context, result string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// span starts a provider span and returns a function that ends it and
// records the call latency.
func (m *instruments) span(ctx context.Context, provider, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, provider+"."+operation, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider", provider)))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		m.upstream.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("operation", operation),
		))
	}
}

// CacheObserver returns a hook suitable for cache.NewSummaries that counts
// lookups on the relay meter.
func CacheObserver() func(context.Context, string) {
	m, err := newInstruments()
	if err != nil {
		return nil
	}
	return m.cacheLookup
}
