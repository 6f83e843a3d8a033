package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/logger"
	"github.com/mescon/beepwatch/internal/stopwatch"
)

// StateSource provides the live stopwatch state for gauges.
type StateSource interface {
	Snapshot() stopwatch.Snapshot
}

// MetricsService exposes Prometheus metrics fed from stopwatch events.
type MetricsService struct {
	eventBus *eventbus.EventBus
	registry *prometheus.Registry

	// Counters
	eventsTotal          *prometheus.CounterVec
	beepsTotal           prometheus.Counter
	handlerFailures      *prometheus.CounterVec
	wakeLockFailures     *prometheus.CounterVec
	intervalChangesTotal prometheus.Counter

	// Histograms
	runDuration prometheus.Histogram

	mu      sync.Mutex
	subs    map[domain.EventType]eventbus.SubscriptionID
	runFrom int64 // elapsed ms at the last start
}

// NewMetricsService creates metrics on a dedicated registry. Gauges read
// their values from source at scrape time.
func NewMetricsService(eb *eventbus.EventBus, source StateSource) *MetricsService {
	m := &MetricsService{
		eventBus: eb,
		registry: prometheus.NewRegistry(),
		subs:     make(map[domain.EventType]eventbus.SubscriptionID),

		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beepwatch_events_total",
				Help: "Total number of stopwatch events by type",
			},
			[]string{"event_type"},
		),

		beepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beepwatch_beeps_total",
				Help: "Total number of interval beeps",
			},
		),

		handlerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beepwatch_handler_failures_total",
				Help: "Event handlers that returned an error or panicked, by event type",
			},
			[]string{"event_type"},
		),

		wakeLockFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beepwatch_wake_lock_failures_total",
				Help: "Failed wake lock operations",
			},
			[]string{"operation"}, // request, release
		),

		intervalChangesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beepwatch_interval_changes_total",
				Help: "Total number of interval changes",
			},
		),

		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "beepwatch_run_duration_seconds",
				Help:    "Stopwatch time accumulated between a start and the following stop",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1s to ~4.5h
			},
		),
	}

	m.registry.MustRegister(
		m.eventsTotal,
		m.beepsTotal,
		m.handlerFailures,
		m.wakeLockFailures,
		m.intervalChangesTotal,
		m.runDuration,
	)

	if source != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "beepwatch_running",
				Help: "1 while the stopwatch is running",
			}, func() float64 {
				if source.Snapshot().Running {
					return 1
				}
				return 0
			}),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "beepwatch_elapsed_seconds",
				Help: "Elapsed stopwatch time",
			}, func() float64 {
				return float64(source.Snapshot().ElapsedMs) / 1000
			}),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "beepwatch_interval_seconds",
				Help: "Configured beep interval, 0 when beeping is disabled",
			}, func() float64 {
				if ms := source.Snapshot().IntervalMs; ms > 0 {
					return float64(ms) / 1000
				}
				return 0
			}),
		)
	}

	return m
}

// Start subscribes to events and installs the bus failure hook.
func (m *MetricsService) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.subs) > 0 {
		return
	}

	for _, eventType := range domain.AllEventTypes {
		m.subs[eventType] = m.eventBus.Subscribe(eventType, m.handleEvent)
	}
	m.eventBus.SetFailureHook(func(eventType domain.EventType, _ error) {
		m.handlerFailures.WithLabelValues(string(eventType)).Inc()
	})

	logger.Infof("Metrics service started")
}

// Stop unsubscribes from the bus and removes the failure hook.
func (m *MetricsService) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for eventType, id := range m.subs {
		m.eventBus.Unsubscribe(eventType, id)
		delete(m.subs, eventType)
	}
	m.eventBus.SetFailureHook(nil)
}

// Registry returns the registry holding beepwatch metrics.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsService) handleEvent(event domain.Event) error {
	m.eventsTotal.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case domain.TimeReached:
		m.beepsTotal.Inc()
	case domain.IntervalChanged:
		m.intervalChangesTotal.Inc()
	case domain.WakeLockFailed:
		operation := "unknown"
		if data, ok := event.ParseWakeLockFailedData(); ok {
			operation = data.Operation
		}
		m.wakeLockFailures.WithLabelValues(operation).Inc()
	case domain.StopwatchStarted:
		m.mu.Lock()
		m.runFrom = event.MillisOr(domain.KeyStartTime, 0)
		m.mu.Unlock()
	case domain.StopwatchStopped:
		m.mu.Lock()
		ran := event.MillisOr(domain.KeyStopTime, 0) - m.runFrom
		m.mu.Unlock()
		if ran >= 0 {
			m.runDuration.Observe(float64(ran) / 1000)
		}
	case domain.StopwatchReset:
		m.mu.Lock()
		m.runFrom = 0
		m.mu.Unlock()
	}
	return nil
}
