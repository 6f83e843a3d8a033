package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/beepwatch/internal/config"
	"github.com/mescon/beepwatch/internal/domain"
)

func TestHandleGetStopwatch_Idle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/stopwatch", nil)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w)
	assert.Equal(t, testSessionID, snap.SessionID)
	assert.Equal(t, "idle", snap.State)
	assert.False(t, snap.Running)
	assert.Equal(t, int64(0), snap.ElapsedMs)
	assert.Equal(t, int64(1000), snap.IntervalMs)
	assert.Equal(t, int64(1000), snap.NextBeepAtMs)
}

func TestStopwatchControl_StartStopReset(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/stopwatch/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeSnapshot(t, w).Running)

	ts.clock.Advance(1500 * time.Millisecond)

	w = ts.do(http.MethodPost, "/api/stopwatch/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.False(t, snap.Running)
	assert.Equal(t, int64(1500), snap.ElapsedMs)
	assert.Equal(t, int64(2000), snap.NextBeepAtMs, "one beep fired at 1000ms")

	w = ts.do(http.MethodPost, "/api/stopwatch/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Equal(t, int64(0), snap.ElapsedMs)
	assert.Equal(t, "idle", snap.State)
}

func TestStopwatchControl_StopWhenIdleIsNoop(t *testing.T) {
	ts := newTestServer(t)

	var stopped int
	ts.bus.Subscribe(domain.StopwatchStopped, func(domain.Event) error {
		stopped++
		return nil
	})

	w := ts.do(http.MethodPost, "/api/stopwatch/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, stopped)
}

func TestHandleSetInterval(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPut, "/api/stopwatch/interval", gin.H{"interval_ms": 2500})
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, int64(2500), snap.IntervalMs)

	// Saved as the preferred interval
	assert.Equal(t, 2500*time.Millisecond, ts.cfg.Interval)
	settings, err := config.LoadSettings(ts.cfg.SettingsPath)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), settings.IntervalMs)
}

func TestHandleSetInterval_WhileRunningReschedules(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/api/stopwatch/start", nil)
	ts.clock.Advance(700 * time.Millisecond)

	w := ts.do(http.MethodPut, "/api/stopwatch/interval", gin.H{"interval_ms": 500})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1000), decodeSnapshot(t, w).NextBeepAtMs)
}

func TestHandleSetInterval_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"below minimum", gin.H{"interval_ms": 99}},
		{"above maximum", gin.H{"interval_ms": 300001}},
		{"zero", gin.H{"interval_ms": 0}},
		{"wraps into range when converted", gin.H{"interval_ms": int64(18446744073711000)}},
		{"large negative", gin.H{"interval_ms": int64(-9223372036854)}},
		{"missing", gin.H{}},
		{"wrong type", gin.H{"interval_ms": "fast"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(http.MethodPut, "/api/stopwatch/interval", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeMap(t, w)["error"])

			// The stopwatch keeps its interval
			assert.Equal(t, int64(1000), ts.sw.Snapshot().IntervalMs)
		})
	}
}

func TestHandleDisableInterval(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodDelete, "/api/stopwatch/interval", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, int64(0), snap.IntervalMs)
	assert.Equal(t, config.DefaultInterval, ts.cfg.Interval, "preference unchanged")

	var beeps int
	ts.bus.Subscribe(domain.TimeReached, func(domain.Event) error {
		beeps++
		return nil
	})
	ts.do(http.MethodPost, "/api/stopwatch/start", nil)
	ts.clock.Advance(5 * time.Second)
	assert.Equal(t, 0, beeps)
}

func TestStopwatchControl_RequiresAPIKey(t *testing.T) {
	ts := newTestServer(t, withAPIKey(t, "secret-key"))

	// Reading state stays public
	w := ts.do(http.MethodGet, "/api/stopwatch", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/api/stopwatch/start", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrMsgNoToken, decodeMap(t, w)["error"])
	assert.False(t, ts.sw.Snapshot().Running)

	w = ts.do(http.MethodPost, "/api/stopwatch/start", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrMsgUnauthorized, decodeMap(t, w)["error"])

	w = ts.do(http.MethodPost, "/api/stopwatch/start", nil, "X-API-Key", "secret-key")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ts.sw.Snapshot().Running)

	w = ts.do(http.MethodPost, "/api/stopwatch/stop", nil, "Authorization", "Bearer secret-key")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/api/stopwatch/reset?token=secret-key", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
