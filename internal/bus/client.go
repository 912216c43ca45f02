package bus

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/musclecoach/internal/config"
	"github.com/loqalabs/musclecoach/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection used to fan relay events out to subscribers.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *slog.Logger
}

func Connect(ctx context.Context, cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("musclecoach-relay"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	c := &Client{conn: conn, log: log}
	if js, err := conn.JetStream(); err == nil {
		c.js = js
	}
	return c, nil
}

// EnsureEventStream creates the relay event stream when the server has
// JetStream enabled. Servers without JetStream are left alone.
func (c *Client) EnsureEventStream(maxAge time.Duration) error {
	if c.js == nil {
		return nil
	}
	_, err := c.js.StreamInfo(protocol.StreamRelayEvents)
	if err == nil {
		return nil
	}
	if errors.Is(err, nats.ErrJetStreamNotEnabled) {
		c.log.Info("jetstream disabled, relay events are not retained")
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("lookup stream: %w", err)
	}
	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:     protocol.StreamRelayEvents,
		Subjects: []string{protocol.SubjectRelayWildcard},
		MaxAge:   maxAge,
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", protocol.StreamRelayEvents, err)
	}
	c.log.Info("relay event stream ready", slog.String("stream", protocol.StreamRelayEvents))
	return nil
}

func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}
