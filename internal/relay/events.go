package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/loqalabs/musclecoach/internal/protocol"
)

// EventPublisher receives one notification per finished relay call.
// Implementations must not block the request path.
type EventPublisher interface {
	Publish(ctx context.Context, ev protocol.RelayCompleted)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, protocol.RelayCompleted) {}

// Sender is the transport used by BusPublisher; *bus.Client satisfies it.
type Sender interface {
	Publish(subject string, data []byte) error
}

// BusPublisher wraps relay events as CloudEvents and sends them on the bus.
// Failures are logged and otherwise ignored.
type BusPublisher struct {
	sender Sender
	source string
	logger *slog.Logger
}

func NewBusPublisher(sender Sender, runtimeName string, logger *slog.Logger) *BusPublisher {
	return &BusPublisher{
		sender: sender,
		source: "coachd/" + runtimeName,
		logger: logger.With(slog.String("component", "relay-events")),
	}
}

func (p *BusPublisher) Publish(_ context.Context, ev protocol.RelayCompleted) {
	data, err := encodeEvent(p.source, ev)
	if err != nil {
		p.logger.Warn("failed to encode relay event", slogError(err))
		return
	}
	if err := p.sender.Publish(protocol.SubjectRelayCompleted, data); err != nil {
		p.logger.Warn("failed to publish relay event", slogError(err), slog.String("request_id", ev.RequestID))
	}
}

// encodeEvent renders ev as a structured-mode CloudEvent.
func encodeEvent(source string, ev protocol.RelayCompleted) ([]byte, error) {
	e := cloudevents.NewEvent()
	e.SetSpecVersion(cloudevents.VersionV1)
	e.SetID(uuid.NewString())
	e.SetType(protocol.EventTypeRelayCompleted)
	e.SetSource(source)
	e.SetTime(time.Now().UTC())
	if ev.RequestID != "" {
		e.SetSubject(ev.RequestID)
	}
	if err := e.SetData(cloudevents.ApplicationJSON, ev); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// DecodeEvent parses a relay CloudEvent as published by BusPublisher.
func DecodeEvent(data []byte) (cloudevents.Event, protocol.RelayCompleted, error) {
	var e cloudevents.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return e, protocol.RelayCompleted{}, err
	}
	if e.Type() != protocol.EventTypeRelayCompleted {
		return e, protocol.RelayCompleted{}, fmt.Errorf("unexpected event type %q", e.Type())
	}
	var ev protocol.RelayCompleted
	if err := e.DataAs(&ev); err != nil {
		return e, protocol.RelayCompleted{}, err
	}
	return e, ev, nil
}
