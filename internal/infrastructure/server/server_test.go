package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cubiclauncher/kepler/internal/infrastructure/config"
	"github.com/cubiclauncher/kepler/internal/logging"
	"github.com/cubiclauncher/kepler/internal/presence"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	mu          sync.Mutex
	details     []string
	disconnects int
}

func (r *recordingClient) SetActivity(_ context.Context, a presence.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.details = append(r.details, a.Details)
	return nil
}

func (r *recordingClient) Disconnect(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disconnects++
	return nil
}

func (r *recordingClient) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.details...), r.disconnects
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.RateLimit.Enabled = false
	return cfg
}

func TestNewServerBootstrapsDataDir(t *testing.T) {
	cfg := testConfig(t)

	srv, err := NewServer(cfg, WithLogger(logging.NewNop()), WithPresenceClient(&recordingClient{}))
	require.NoError(t, err)

	layout := srv.Layout()
	assert.Equal(t, cfg.Paths.DataDir, layout.Data)
	for _, p := range []string{layout.Runtime, layout.Instances, layout.Settings} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	assert.True(t, srv.Manager().HasPresenceClient())
	assert.True(t, srv.Manager().IsIdle())
}

func TestNewServerPresenceDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Presence.Enabled = false

	srv, err := NewServer(cfg, WithLogger(logging.NewNop()))
	require.NoError(t, err)
	assert.False(t, srv.Manager().HasPresenceClient())
}

func TestRoutes(t *testing.T) {
	client := &recordingClient{}
	srv, err := NewServer(testConfig(t), WithLogger(logging.NewNop()), WithPresenceClient(client), WithVersion("1.2.3"))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/state/playing", "application/json", strings.NewReader(`{"version":"1.21.3"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	details, _ := client.snapshot()
	assert.Equal(t, []string{"Playing 1.21.3"}, details)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "kepler_state_transitions_total")
	assert.Contains(t, string(body), `kepler_http_requests_total{method="POST",path="/state/playing",status="200"} 1`)

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `"version":"1.2.3"`)
}

func TestServeShutsDownToIdle(t *testing.T) {
	client := &recordingClient{}
	srv, err := NewServer(testConfig(t), WithLogger(logging.NewNop()), WithPresenceClient(client))
	require.NoError(t, err)

	require.NoError(t, srv.Manager().TransitionToPlaying(context.Background(), "1.12.2"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	details, disconnects := client.snapshot()
	assert.Equal(t, []string{"Playing 1.12.2", "Idle"}, details)
	assert.Equal(t, 1, disconnects)
	assert.False(t, srv.Manager().HasPresenceClient())
	assert.True(t, srv.Manager().IsIdle())
}

func TestServeClosesStreams(t *testing.T) {
	srv, err := NewServer(testConfig(t), WithLogger(logging.NewNop()), WithPresenceClient(&recordingClient{}))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/stream", nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage() // snapshot
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop with an open stream")
	}

	// Serve has returned, so the stream must already be closed
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
