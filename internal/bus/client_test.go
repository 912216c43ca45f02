package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/musclecoach/internal/config"
	"github.com/loqalabs/musclecoach/internal/natsserver"
	"github.com/loqalabs/musclecoach/internal/protocol"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddedBus(t *testing.T, storeDir string) config.BusConfig {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.BusConfig{Enabled: true, Embedded: true, Port: server.RANDOM_PORT, StoreDir: storeDir, ConnectTimeout: 2000}
	ns, err := natsserver.Start(cfg, log)
	require.NoError(t, err)
	t.Cleanup(ns.Shutdown)
	cfg.Servers = []string{ns.ClientURL()}
	return cfg
}

func TestConnectRequiresServers(t *testing.T) {
	_, err := Connect(context.Background(), config.BusConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestEventStreamRetainsRelayEvents(t *testing.T) {
	cfg := embeddedBus(t, t.TempDir())
	client, err := Connect(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	require.True(t, client.Healthy())

	require.NoError(t, client.EnsureEventStream(time.Hour))
	require.NoError(t, client.EnsureEventStream(time.Hour))

	received := make(chan *nats.Msg, 1)
	sub, err := client.Conn().ChanSubscribe(protocol.SubjectRelayWildcard, received)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, client.Publish(protocol.SubjectRelayCompleted, []byte(`{"status":200}`)))
	select {
	case msg := <-received:
		assert.Equal(t, protocol.SubjectRelayCompleted, msg.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	js, err := client.Conn().JetStream()
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		info, err := js.StreamInfo(protocol.StreamRelayEvents)
		return err == nil && info.State.Msgs == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEventStreamSkippedWithoutJetStream(t *testing.T) {
	cfg := embeddedBus(t, "")
	client, err := Connect(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	assert.NoError(t, client.EnsureEventStream(time.Hour))
}

func TestNilClientIsUnhealthy(t *testing.T) {
	var c *Client
	assert.False(t, c.Healthy())
	c.Close()
}
