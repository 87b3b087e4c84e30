package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements MetricsCollector using Prometheus metrics
// registered on its own registry.
type PrometheusCollector struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// HTTP Metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// WebSocket Metrics
	websocketConnections prometheus.Gauge
	websocketMessages    *prometheus.CounterVec

	// Home Assistant Metrics
	gatewayRequests        *prometheus.CounterVec
	gatewayRequestDuration *prometheus.HistogramVec

	// Tracking Metrics
	entityRefreshes    *prometheus.CounterVec
	tickDuration       prometheus.Histogram
	tickFailures       prometheus.Counter
	trackedEntities    prometheus.Gauge
	directoryRefreshes *prometheus.CounterVec
	directoryEntities  prometheus.Gauge
	lastSuccessfulTick prometheus.Gauge
}

// NewPrometheusCollector creates a new Prometheus metrics collector
func NewPrometheusCollector(config *MetricsConfig) *PrometheusCollector {
	if config == nil {
		config = &MetricsConfig{
			Enabled: true,
			Prefix:  "hatrend",
		}
	}

	prefix := config.Prefix
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	collector := &PrometheusCollector{
		config:   config,
		registry: registry,
	}

	// Initialize HTTP metrics
	collector.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	collector.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Initialize WebSocket metrics
	collector.websocketConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	collector.websocketMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"},
	)

	// Initialize Home Assistant metrics
	collector.gatewayRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_homeassistant_requests_total",
			Help: "Total number of requests sent to Home Assistant",
		},
		[]string{"method", "status"},
	)

	collector.gatewayRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_homeassistant_request_duration_seconds",
			Help:    "Home Assistant request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Initialize tracking metrics
	collector.entityRefreshes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_entity_refreshes_total",
			Help: "Total number of tracked entity refreshes by outcome",
		},
		[]string{"domain", "outcome"},
	)

	collector.tickDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_poll_tick_duration_seconds",
			Help:    "Duration of one poll tick across all tracked entities",
			Buckets: prometheus.DefBuckets,
		},
	)

	collector.tickFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_poll_tick_failures_total",
			Help: "Total number of entity failures observed during poll ticks",
		},
	)

	collector.trackedEntities = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_tracked_entities",
			Help: "Number of entities currently tracked",
		},
	)

	collector.directoryRefreshes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_directory_refreshes_total",
			Help: "Total number of entity directory refreshes",
		},
		[]string{"success"},
	)

	collector.directoryEntities = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_directory_entities",
			Help: "Number of entities in the directory after the last successful refresh",
		},
	)

	collector.lastSuccessfulTick = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_poll_last_tick_timestamp_seconds",
			Help: "Unix time of the last completed poll tick",
		},
	)

	return collector
}

// Registry exposes the underlying registry.
func (p *PrometheusCollector) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (p *PrometheusCollector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if !p.config.Enabled {
		return
	}

	p.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	p.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWebSocketConnection records WebSocket connection metrics
func (p *PrometheusCollector) RecordWebSocketConnection(action string) {
	if !p.config.Enabled {
		return
	}

	switch action {
	case "connect":
		p.websocketConnections.Inc()
	case "disconnect":
		p.websocketConnections.Dec()
	case "message_sent":
		p.websocketMessages.WithLabelValues("outbound").Inc()
	case "message_received":
		p.websocketMessages.WithLabelValues("inbound").Inc()
	}
}

// RecordGatewayRequest records one Home Assistant REST call. Status 0
// means no response was received.
func (p *PrometheusCollector) RecordGatewayRequest(method string, status int, duration time.Duration) {
	if !p.config.Enabled {
		return
	}

	p.gatewayRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	p.gatewayRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordEntityRefresh(domain, outcome string) {
	if !p.config.Enabled {
		return
	}

	p.entityRefreshes.WithLabelValues(domain, outcome).Inc()
}

// RecordTick records a completed poll tick.
func (p *PrometheusCollector) RecordTick(duration time.Duration, failures int) {
	if !p.config.Enabled {
		return
	}

	p.tickDuration.Observe(duration.Seconds())
	if failures > 0 {
		p.tickFailures.Add(float64(failures))
	}
	p.lastSuccessfulTick.SetToCurrentTime()
}

func (p *PrometheusCollector) RecordDirectoryRefresh(success bool, entities int) {
	if !p.config.Enabled {
		return
	}

	p.directoryRefreshes.WithLabelValues(strconv.FormatBool(success)).Inc()
	if success {
		p.directoryEntities.Set(float64(entities))
	}
}

func (p *PrometheusCollector) SetTrackedEntities(count int) {
	if !p.config.Enabled {
		return
	}

	p.trackedEntities.Set(float64(count))
}
