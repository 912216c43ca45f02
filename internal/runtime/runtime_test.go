package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loqalabs/musclecoach/internal/config"
	"github.com/loqalabs/musclecoach/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConfig() config.Config {
	cfg := config.Default()
	cfg.LLM.Mode = "mock"
	cfg.TTS.Mode = "mock"
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) (*Runtime, *httptest.Server) {
	t.Helper()
	r := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	handler, closeBackends, err := r.buildRelay(context.Background(), relay.NopPublisher{}, nil)
	require.NoError(t, err)
	t.Cleanup(closeBackends)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	srv := httptest.NewServer(r.routes(handler, nil, metrics))
	t.Cleanup(srv.Close)
	return r, srv
}

func TestProbes(t *testing.T) {
	r, srv := newTestServer(t, mockConfig())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	r.ready.Store(true)
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyRequiresBusWhenEnabled(t *testing.T) {
	cfg := mockConfig()
	cfg.Bus.Enabled = true
	r, srv := newTestServer(t, cfg)
	r.ready.Store(true)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRoutesServeRelayWithRequestID(t *testing.T) {
	_, srv := newTestServer(t, mockConfig())

	body, _ := json.Marshal(map[string]any{"muscleNames": []string{"Chest", "Biceps"}})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/muscle-info?stream=false", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(relay.HeaderRequestID, "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(relay.HeaderRequestID))
	assert.Equal(t, "[chest: mock summary]\n[biceps: mock summary]", string(text))
}

func TestRoutesServeCatalogAndMetrics(t *testing.T) {
	_, srv := newTestServer(t, mockConfig())

	resp, err := http.Get(srv.URL + "/api/muscles/chest")
	require.NoError(t, err)
	var muscle struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&muscle))
	resp.Body.Close()
	assert.Equal(t, "chest", muscle.Key)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(relay.HeaderRequestID))
}

func TestBuildRelayRejectsBadCatalog(t *testing.T) {
	cfg := mockConfig()
	cfg.Catalog.Path = "/does/not/exist.yaml"
	r := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, _, err := r.buildRelay(context.Background(), relay.NopPublisher{}, nil)
	assert.Error(t, err)
}
