package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cubiclauncher/kepler/internal/api/middleware"
	"github.com/cubiclauncher/kepler/internal/domain/app"
	"github.com/cubiclauncher/kepler/internal/infrastructure/monitoring"
	"github.com/cubiclauncher/kepler/internal/infrastructure/resilience"
	"github.com/cubiclauncher/kepler/internal/presence"
	"github.com/cubiclauncher/kepler/internal/shared/paths"
	"github.com/cubiclauncher/kepler/internal/shared/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePresence struct {
	mu            sync.Mutex
	activities    []presence.Activity
	err           error
	disconnectErr error
	disconnects   int
}

func (f *fakePresence) SetActivity(_ context.Context, a presence.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakePresence) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnects++
	return f.disconnectErr
}

func (f *fakePresence) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.activities)
}

type testEnv struct {
	router  *gin.Engine
	manager *app.Manager
	client  *fakePresence
	metrics *monitoring.Metrics
}

func newTestEnv(t *testing.T, log *zap.Logger) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if log == nil {
		log = zap.NewNop()
	}
	client := &fakePresence{}
	metrics := monitoring.NewMetrics()
	manager := app.NewManagerWithClient(client).WithMetrics(metrics)

	router := gin.New()
	router.Use(middleware.RequestLogger(zap.NewNop()))
	NewHandlers(manager, Options{
		Info:    ServiceInfo{Name: "kepler", Version: "test"},
		Layout:  paths.NewLayout("/data/kepler"),
		Metrics: metrics,
		Logger:  log,
	}).Register(router)

	return &testEnv{router: router, manager: manager, client: client, metrics: metrics}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("GET", "/", "")
	require.Equal(t, nethttp.StatusOK, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "kepler", body["service"])
	assert.Equal(t, "test", body["version"])
}

func TestGetStateInitiallyIdle(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("GET", "/state", "")
	require.Equal(t, nethttp.StatusOK, w.Code)

	snap := decode[types.StateSnapshot](t, w)
	assert.Equal(t, types.Idle(), snap.Activity)
	assert.True(t, snap.PresenceEnabled)
	assert.Nil(t, snap.ChangedAt)
}

func TestSetPlaying(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/state/playing", `{"version":"1.21.3"}`)
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())

	snap := decode[types.StateSnapshot](t, w)
	assert.Equal(t, types.Playing("1.21.3"), snap.Activity)
	assert.NotNil(t, snap.ChangedAt)
	assert.Equal(t, 1, env.client.calls())

	// Same version again is a no-op
	w = env.do("POST", "/state/playing", `{"version":"1.21.3"}`)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Equal(t, 1, env.client.calls())
}

func TestSetPlayingValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"missing version", `{}`, "empty_version"},
		{"blank version", `{"version":"   "}`, "empty_version"},
		{"too long", `{"version":"` + strings.Repeat("a", 51) + `"}`, "invalid_version_format"},
		{"newline", `{"version":"1.20\n"}`, "invalid_version_format"},
		{"malformed json", `{"version":`, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			w := env.do("POST", "/state/playing", tt.body)
			assert.Equal(t, nethttp.StatusBadRequest, w.Code)

			body := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.RequestID)
			assert.Equal(t, 0, env.client.calls(), "rejected before any presence call")
			assert.True(t, env.manager.IsIdle())
		})
	}
}

func TestSetPlayingPresenceFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.client.err = errors.New("pipe closed")

	w := env.do("POST", "/state/playing", `{"version":"1.21.3"}`)
	assert.Equal(t, nethttp.StatusBadGateway, w.Code)

	body := decode[ErrorResponse](t, w)
	assert.Equal(t, "presence_failed", body.Code)
	assert.Contains(t, body.Error, "pipe closed")
	assert.True(t, env.manager.IsIdle(), "state unchanged after failed update")
}

func TestSetPlayingCircuitOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	env.client.err = resilience.ErrCircuitOpen

	w := env.do("POST", "/state/playing", `{"version":"1.21.3"}`)
	assert.Equal(t, nethttp.StatusBadGateway, w.Code)
	assert.Equal(t, "presence_unavailable", decode[ErrorResponse](t, w).Code)
}

func TestSetIdle(t *testing.T) {
	env := newTestEnv(t, nil)

	// Already idle: no presence call
	w := env.do("POST", "/state/idle", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Equal(t, 0, env.client.calls())

	require.Equal(t, nethttp.StatusOK, env.do("POST", "/state/playing", `{"version":"1.8.9"}`).Code)
	w = env.do("POST", "/state/idle", "")
	require.Equal(t, nethttp.StatusOK, w.Code)

	assert.Equal(t, types.Idle(), decode[types.StateSnapshot](t, w).Activity)
	assert.Equal(t, 2, env.client.calls())
}

func TestDisconnectPresence(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/presence/disconnect", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.False(t, decode[types.StateSnapshot](t, w).PresenceEnabled)
	assert.Equal(t, 1, env.client.disconnects)

	// Transitions are now tracked locally only
	require.Equal(t, nethttp.StatusOK, env.do("POST", "/state/playing", `{"version":"1.21.3"}`).Code)
	assert.Equal(t, 0, env.client.calls())

	// Second disconnect has nothing to do
	require.Equal(t, nethttp.StatusOK, env.do("POST", "/presence/disconnect", "").Code)
	assert.Equal(t, 1, env.client.disconnects)
}

func TestDisconnectPresenceFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.client.disconnectErr = errors.New("already gone")

	w := env.do("POST", "/presence/disconnect", "")
	assert.Equal(t, nethttp.StatusBadGateway, w.Code)
	assert.False(t, env.manager.HasPresenceClient())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("GET", "/health", "")
	require.Equal(t, nethttp.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"attached": true}, body["presence"])
	assert.Contains(t, body, "metrics")
}

func TestGetPaths(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("GET", "/paths", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Equal(t, paths.NewLayout("/data/kepler"), decode[paths.Layout](t, w))
}

func TestMetricsJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do("POST", "/state/playing", `{"version":"1.21.3"}`)
	env.do("POST", "/state/playing", `{"version":""}`)

	w := env.do("GET", "/metrics/json", "")
	require.Equal(t, nethttp.StatusOK, w.Code)

	snap := decode[monitoring.MetricsSnapshot](t, w)
	assert.Equal(t, int64(2), snap.Transitions)
	assert.Equal(t, int64(1), snap.FailedTransitions)
	assert.Equal(t, int64(1), snap.PresenceCalls)
}

func TestStreamLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	env := newTestEnv(t, zap.New(core))

	body := `{"source":"ui","entries":[
		{"id":"1","level":"error","message":"download failed","context":{"version":"1.21.3","attempt":2}},
		{"id":"2","level":"info","message":"opened settings"}
	]}`
	w := env.do("POST", "/logs", body)
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, 1, logs.FilterMessage("download failed").FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("opened settings").FilterLevelExact(zapcore.InfoLevel).Len())

	entry := logs.FilterMessage("download failed").All()[0]
	assert.Equal(t, "ui", entry.LoggerName)
	assert.Equal(t, "1.21.3", entry.ContextMap()["version"])
}

func TestStreamLogsRejectsBadBatches(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, nethttp.StatusBadRequest,
		env.do("POST", "/logs", `{"source":"server","entries":[{"message":"x"}]}`).Code)
	assert.Equal(t, nethttp.StatusBadRequest,
		env.do("POST", "/logs", `{"source":"ui","entries":[]}`).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{app.ErrEmptyVersion, nethttp.StatusBadRequest},
		{&app.VersionFormatError{Reason: "x"}, nethttp.StatusBadRequest},
		{&app.InvalidStateError{Reason: "x"}, nethttp.StatusConflict},
		{&app.StateTransitionError{From: types.Idle(), To: types.Idle()}, nethttp.StatusConflict},
		{&app.PresenceError{Op: "set_activity", Err: errors.New("x")}, nethttp.StatusBadGateway},
		{errors.New("unknown"), nethttp.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.wantStatus, status, tt.err.Error())
	}
}
