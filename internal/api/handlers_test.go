package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mescon/beepwatch/internal/auth"
	"github.com/mescon/beepwatch/internal/clock"
	"github.com/mescon/beepwatch/internal/config"
	"github.com/mescon/beepwatch/internal/db"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/stopwatch"
)

const testSessionID = "test-session"

type testServer struct {
	server *RESTServer
	bus    *eventbus.EventBus
	sw     *stopwatch.Stopwatch
	clock  *clock.Fake
	cfg    *config.Config
	repo   *db.Repository
}

type serverOption func(*ServerDeps)

func withoutJournal() serverOption {
	return func(d *ServerDeps) {
		d.Journal = nil
		d.Scheduler = nil
	}
}

func withAPIKey(t *testing.T, key string) serverOption {
	t.Helper()
	hash, err := auth.HashPassword(key)
	require.NoError(t, err)
	return func(d *ServerDeps) {
		d.Verifier = auth.NewKeyVerifier(hash)
	}
}

func withScheduler(m MaintenanceRunner) serverOption {
	return func(d *ServerDeps) {
		d.Scheduler = m
	}
}

// newTestServer wires a server around a real stopwatch on a fake clock and a
// journal in a temporary directory.
func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.NewTestConfig()
	cfg.DataDir = dir
	cfg.DatabasePath = filepath.Join(dir, "beepwatch.db")
	cfg.LogDir = filepath.Join(dir, "logs")
	cfg.SettingsPath = filepath.Join(dir, config.SettingsFileName)

	repo, err := db.NewRepository(cfg.DatabasePath)
	require.NoError(t, err)

	bus := eventbus.NewEventBus()
	fake := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	sw := stopwatch.New(bus,
		stopwatch.WithClock(fake),
		stopwatch.WithSessionID(testSessionID),
		stopwatch.WithInterval(time.Second),
	)

	deps := ServerDeps{
		Config:      cfg,
		EventBus:    bus,
		Stopwatch:   sw,
		Journal:     repo,
		StatePeriod: time.Hour,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	ts := &testServer{
		server: NewRESTServer(deps),
		bus:    bus,
		sw:     sw,
		clock:  fake,
		cfg:    cfg,
		repo:   repo,
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = ts.server.Shutdown(ctx)
		_ = sw.Close()
		_ = repo.Close()
	})
	return ts
}

func (ts *testServer) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:1234"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) stopwatch.Snapshot {
	t.Helper()
	var snap stopwatch.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap), w.Body.String())
	return snap
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}
