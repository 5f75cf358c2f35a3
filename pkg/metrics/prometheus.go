package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeDuplicate = "duplicate"
	OutcomeApplied   = "applied"
	OutcomeStale     = "stale"
)

// Manager owns every Prometheus collector of the league service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Reconciler
	mutations         *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	rosterSize        prometheus.Gauge
	events            *prometheus.GaugeVec
	snapshotFallbacks prometheus.Counter

	// Notification queue
	queueSize     prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDropped  prometheus.Counter

	errorsByComponent *prometheus.CounterVec
}

type global struct {
	manager  *Manager
	registry *prometheus.Registry
}

var current atomic.Pointer[global] //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init replaces the global manager with one built from opts on a fresh
// registry without the default Go collectors. Series recorded before the call
// are discarded.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	opts = append(opts, WithPrometheusRegistry(registry))
	current.Store(&global{manager: NewManager(opts...), registry: registry})
}

func manager() *Manager { return current.Load().manager }

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "klapi",
		subsystem:        "league",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.mutations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "mutations_total",
		Help: "Admin mutations by log kind and outcome",
	}, []string{"kind", "outcome"})

	m.notifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "notifications_total",
		Help: "Backend change notifications by collection and outcome",
	}, []string{"collection", "outcome"})

	m.recomputeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "recompute_duration_seconds",
		Help:    "Time spent deriving standings, stats and series from a state snapshot",
		Buckets: m.histogramBuckets,
	})

	m.rosterSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "roster_size",
		Help: "Players currently on the roster",
	})

	m.events = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "events",
		Help: "Grand Prix events by status",
	}, []string{"status"})

	m.snapshotFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "snapshot_seed_fallbacks_total",
		Help: "Times a missing or malformed snapshot was replaced by the seed state",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "notification_queue_size",
		Help: "Pending change notifications",
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "notification_queue_enqueued_total",
		Help: "Change notifications accepted by the queue",
	})

	m.queueDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "notification_queue_dropped_total",
		Help: "Change notifications rejected because the queue was full or closed",
	})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "errors_total",
		Help: "Errors by component and type",
	}, []string{"component", "type"})
}

// RecordHTTPRequest counts one served request.
func (m *Manager) RecordHTTPRequest(endpoint, method, status string, seconds float64) {
	m.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(seconds)
}

// RecordMutation counts one admin mutation.
func (m *Manager) RecordMutation(kind, outcome string) {
	m.mutations.WithLabelValues(kind, outcome).Inc()
}

// RecordNotification counts one change notification for a collection.
func (m *Manager) RecordNotification(collection, outcome string) {
	m.notifications.WithLabelValues(collection, outcome).Inc()
}

// ObserveRecompute records the duration of one full re-derivation.
func (m *Manager) ObserveRecompute(seconds float64) { m.recomputeDuration.Observe(seconds) }

// UpdateLeagueSize sets the roster and event gauges.
func (m *Manager) UpdateLeagueSize(players, planned, played int) {
	m.rosterSize.Set(float64(players))
	m.events.WithLabelValues("planned").Set(float64(planned))
	m.events.WithLabelValues("played").Set(float64(played))
}

// RecordSnapshotFallback counts a seed fallback.
func (m *Manager) RecordSnapshotFallback() { m.snapshotFallbacks.Inc() }

// UpdateQueueSize sets the pending notification gauge.
func (m *Manager) UpdateQueueSize(size int) { m.queueSize.Set(float64(size)) }

// RecordQueueEnqueue counts an accepted notification.
func (m *Manager) RecordQueueEnqueue() { m.queueEnqueued.Inc() }

// RecordQueueDrop counts a rejected notification.
func (m *Manager) RecordQueueDrop() { m.queueDropped.Inc() }

// RecordError counts an error for a component.
func (m *Manager) RecordError(component, errorType string) {
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest records one served request on the global manager.
func RecordHTTPRequest(endpoint, method, status string, seconds float64) {
	manager().RecordHTTPRequest(endpoint, method, status, seconds)
}

// RecordMutation counts an admin mutation by kind and outcome.
func RecordMutation(kind, outcome string) {
	manager().RecordMutation(kind, outcome)
}

// RecordNotification counts a backend notification by collection and outcome.
func RecordNotification(collection, outcome string) {
	manager().RecordNotification(collection, outcome)
}

// ObserveRecompute records how long a full view rebuild took.
func ObserveRecompute(seconds float64) {
	manager().ObserveRecompute(seconds)
}

// UpdateLeagueSize sets the roster and event gauges.
func UpdateLeagueSize(players, planned, played int) {
	manager().UpdateLeagueSize(players, planned, played)
}

// RecordSnapshotFallback counts a load that fell back to the seed state.
func RecordSnapshotFallback() {
	manager().RecordSnapshotFallback()
}

// UpdateQueueSize sets the notification queue depth.
func UpdateQueueSize(size int) {
	manager().UpdateQueueSize(size)
}

// RecordQueueEnqueue counts an accepted notification.
func RecordQueueEnqueue() {
	manager().RecordQueueEnqueue()
}

// RecordQueueDrop counts a dropped notification.
func RecordQueueDrop() {
	manager().RecordQueueDrop()
}

// RecordError counts an error for a component.
func RecordError(component, errorType string) {
	manager().RecordError(component, errorType)
}

// GetRegistry returns the registry the global manager reports to.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}
