package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "worktabs"

// Metrics holds all Prometheus metrics on a private registry, so several
// managers can live in one process (and one test binary).
type Metrics struct {
	registry *prometheus.Registry

	// Status server metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Collaborator API metrics
	APICalls    *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec
	BreakerOpen *prometheus.GaugeVec

	// Terminal metrics
	SessionsTracked   *prometheus.GaugeVec
	StatusTransitions *prometheus.CounterVec
	Reconnects        prometheus.Counter
	Frames            *prometheus.CounterVec
	MalformedFrames   prometheus.Counter
	Anomalies         *prometheus.CounterVec

	// Order store metrics
	OrderWrites *prometheus.CounterVec

	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON status endpoint
type Snapshot struct {
	APICalls        int64   `json:"apiCalls"`
	APIErrors       int64   `json:"apiErrors"`
	Reconnects      int64   `json:"reconnects"`
	MalformedFrames int64   `json:"malformedFrames"`
	Anomalies       int64   `json:"anomalies"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of status server requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Status server request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		APICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_calls_total",
				Help:      "Calls to the collaborator REST API by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		APIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_call_duration_seconds",
				Help:      "Collaborator REST API call duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
		BreakerOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_open",
				Help:      "1 while the named circuit breaker is not closed",
			},
			[]string{"name"},
		),

		SessionsTracked: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_tracked",
				Help:      "Terminal sessions tracked per project",
			},
			[]string{"project"},
		),
		StatusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_transitions_total",
				Help:      "Connection status transitions by target status",
			},
			[]string{"status"},
		),
		Reconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnects_total",
				Help:      "Reconnect attempts after unexpected transport closure",
			},
		),
		Frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Terminal frames by direction and type",
			},
			[]string{"direction", "type"},
		),
		MalformedFrames: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "malformed_frames_total",
				Help:      "Inbound frames dropped because they could not be decoded",
			},
		),
		Anomalies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomalies_total",
				Help:      "Protocol anomalies by kind",
			},
			[]string{"kind"},
		),

		OrderWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_writes_total",
				Help:      "Tab order store writes by operation",
			},
			[]string{"op"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a status server request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAPICall records a collaborator API call
func (m *Metrics) RecordAPICall(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.APICalls.WithLabelValues(op, outcome).Inc()
	m.APIDuration.WithLabelValues(op).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.APICalls++
	if outcome != OutcomeSuccess {
		m.snapshot.APIErrors++
	}
	m.mu.Unlock()
}

// SetBreakerOpen reports whether the named breaker is rejecting calls
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.WithLabelValues(name).Set(v)
}

// SetSessionsTracked sets the number of sessions tracked for a project
func (m *Metrics) SetSessionsTracked(project string, count int) {
	if m == nil {
		return
	}
	if count == 0 {
		m.SessionsTracked.DeleteLabelValues(project)
		return
	}
	m.SessionsTracked.WithLabelValues(project).Set(float64(count))
}

// RecordStatus records a connection status transition
func (m *Metrics) RecordStatus(status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(status).Inc()
}

// IncReconnects records a reconnect attempt
func (m *Metrics) IncReconnects() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
	m.mu.Lock()
	m.snapshot.Reconnects++
	m.mu.Unlock()
}

// RecordFrame records a terminal frame
func (m *Metrics) RecordFrame(direction, frameType string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(direction, frameType).Inc()
}

// IncMalformedFrames records a dropped inbound frame
func (m *Metrics) IncMalformedFrames() {
	if m == nil {
		return
	}
	m.MalformedFrames.Inc()
	m.mu.Lock()
	m.snapshot.MalformedFrames++
	m.mu.Unlock()
}

// RecordAnomaly records a protocol anomaly
func (m *Metrics) RecordAnomaly(kind string) {
	if m == nil {
		return
	}
	m.Anomalies.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.Anomalies++
	m.mu.Unlock()
}

// RecordOrderWrite records a tab order store write
func (m *Metrics) RecordOrderWrite(op string) {
	if m == nil {
		return
	}
	m.OrderWrites.WithLabelValues(op).Inc()
}

// Snapshot returns the current counters for the JSON status endpoint
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
