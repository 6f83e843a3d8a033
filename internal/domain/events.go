package domain

import "time"

// EventType names what happened to a stopwatch. Values match the event names
// the dashboard listens for.
type EventType string

const (
	StopwatchStarted EventType = "stopwatchStarted"
	StopwatchStopped EventType = "stopwatchStopped"
	StopwatchReset   EventType = "stopwatchReset"
	TimeReached      EventType = "timeReached"

	IntervalChanged EventType = "intervalChanged"
	// WakeLockFailed does not change stopwatch state.
	WakeLockFailed EventType = "wakeLockFailed"
)

// AllEventTypes lists every event a Stopwatch can publish, in a stable order.
var AllEventTypes = []EventType{
	StopwatchStarted,
	StopwatchStopped,
	StopwatchReset,
	TimeReached,
	IntervalChanged,
	WakeLockFailed,
}

// Payload keys. Time values are int64 milliseconds of elapsed stopwatch time.
const (
	KeyStartTime   = "startTime"
	KeyStopTime    = "stopTime"
	KeyCurrentTime = "currentTime"
	KeyInterval    = "interval"
	KeyNextBeepAt  = "nextBeepAt"
	KeyOperation   = "operation"
	KeyError       = "error"
)

// Event is one published occurrence. ID is set once the journal stores it.
type Event struct {
	ID        int64                  `json:"id"`
	SessionID string                 `json:"session_id"`
	EventType EventType              `json:"event_type"`
	EventData map[string]interface{} `json:"event_data"`
	CreatedAt time.Time              `json:"created_at"`
}

func NewEvent(sessionID string, eventType EventType, data map[string]interface{}) Event {
	return Event{
		SessionID: sessionID,
		EventType: eventType,
		EventData: data,
	}
}

// field returns EventData[key] when it holds a T.
func field[T any](e *Event, key string) (T, bool) {
	v, ok := e.EventData[key].(T)
	return v, ok
}

// Text returns a string payload field.
func (e *Event) Text(key string) (string, bool) {
	return field[string](e, key)
}

// Millis returns a millisecond payload field. Events that went through JSON
// carry float64, events built in-process carry int64 or int.
func (e *Event) Millis(key string) (int64, bool) {
	switch v := e.EventData[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// MillisOr is Millis with a fallback for missing or mistyped fields.
func (e *Event) MillisOr(key string, fallback int64) int64 {
	if v, ok := e.Millis(key); ok {
		return v
	}
	return fallback
}

// TimeReachedData is the payload of a TimeReached event.
type TimeReachedData struct {
	CurrentTime int64 `json:"currentTime"`
}

func (e *Event) ParseTimeReachedData() (TimeReachedData, bool) {
	current, ok := e.Millis(KeyCurrentTime)
	return TimeReachedData{CurrentTime: current}, ok
}

// WakeLockFailedData is the payload of a WakeLockFailed event. Operation is
// "request" or "release".
type WakeLockFailedData struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

func (e *Event) ParseWakeLockFailedData() (WakeLockFailedData, bool) {
	op, ok := e.Text(KeyOperation)
	if !ok {
		return WakeLockFailedData{}, false
	}
	msg, _ := e.Text(KeyError)
	return WakeLockFailedData{Operation: op, Error: msg}, true
}
