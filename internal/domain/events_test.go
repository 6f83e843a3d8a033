package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Millis(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int64
		ok    bool
	}{
		{"int64", int64(1000), 1000, true},
		{"int", 30, 30, true},
		{"float64", float64(2500), 2500, true},
		{"string", "1000", 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{EventData: map[string]interface{}{KeyCurrentTime: tt.value}}
			got, ok := e.Millis(KeyCurrentTime)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestEvent_MissingFields(t *testing.T) {
	for _, e := range []Event{{}, {EventData: map[string]interface{}{}}} {
		_, ok := e.Millis(KeyCurrentTime)
		assert.False(t, ok)
		_, ok = e.Text(KeyOperation)
		assert.False(t, ok)
		assert.Equal(t, int64(-1), e.MillisOr(KeyStopTime, -1))
	}
}

func TestEvent_Text(t *testing.T) {
	e := NewEvent("s", WakeLockFailed, map[string]interface{}{
		KeyOperation: "request",
		KeyInterval:  int64(500),
	})

	op, ok := e.Text(KeyOperation)
	assert.True(t, ok)
	assert.Equal(t, "request", op)

	_, ok = e.Text(KeyInterval)
	assert.False(t, ok, "numeric field must not read as text")
}

// A payload that went through the journal or the WebSocket feed comes back
// with float64 numbers and must parse the same.
func TestEvent_ParseAfterJSON(t *testing.T) {
	sent := NewEvent("session-1", TimeReached, map[string]interface{}{KeyCurrentTime: int64(90_000)})
	raw, err := json.Marshal(sent)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, TimeReached, got.EventType)
	assert.Equal(t, "session-1", got.SessionID)

	data, ok := got.ParseTimeReachedData()
	require.True(t, ok)
	assert.Equal(t, int64(90_000), data.CurrentTime)
}

func TestEvent_ParseTimeReachedData_Empty(t *testing.T) {
	e := NewEvent("session-1", TimeReached, nil)
	_, ok := e.ParseTimeReachedData()
	assert.False(t, ok)
}

func TestEvent_ParseWakeLockFailedData(t *testing.T) {
	e := NewEvent("s", WakeLockFailed, map[string]interface{}{
		KeyOperation: "release",
		KeyError:     "permission denied",
	})
	data, ok := e.ParseWakeLockFailedData()
	require.True(t, ok)
	assert.Equal(t, WakeLockFailedData{Operation: "release", Error: "permission denied"}, data)

	// The error text is optional, the operation is not
	noErr := NewEvent("s", WakeLockFailed, map[string]interface{}{KeyOperation: "request"})
	data, ok = noErr.ParseWakeLockFailedData()
	require.True(t, ok)
	assert.Empty(t, data.Error)

	noOp := NewEvent("s", WakeLockFailed, map[string]interface{}{KeyError: "x"})
	_, ok = noOp.ParseWakeLockFailedData()
	assert.False(t, ok)
}

func TestAllEventTypes(t *testing.T) {
	seen := make(map[EventType]bool, len(AllEventTypes))
	for _, et := range AllEventTypes {
		if seen[et] {
			t.Errorf("duplicate event type %q", et)
		}
		seen[et] = true
	}
	for _, want := range []EventType{StopwatchStarted, StopwatchStopped, StopwatchReset, TimeReached, IntervalChanged, WakeLockFailed} {
		assert.True(t, seen[want], "AllEventTypes missing %q", want)
	}
}
