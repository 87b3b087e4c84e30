package metrics

import (
	"time"
)

// MetricsCollector defines the interface for collecting metrics
type MetricsCollector interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
	RecordWebSocketConnection(action string)
	RecordGatewayRequest(method string, status int, duration time.Duration)
	RecordEntityRefresh(domain, outcome string)
	RecordTick(duration time.Duration, failures int)
	RecordDirectoryRefresh(success bool, entities int)
	SetTrackedEntities(count int)
}

// MetricsConfig contains configuration for metrics collection
type MetricsConfig struct {
	Enabled bool
	Prefix  string
}

// Refresh outcomes used as the "outcome" label.
const (
	OutcomeSuccess       = "success"
	OutcomeConnectivity  = "connectivity_failure"
	OutcomeUnknownEntity = "unknown_entity"
)

// NoopCollector discards everything.
type NoopCollector struct{}

func (NoopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NoopCollector) RecordWebSocketConnection(string) {}
func (NoopCollector) RecordGatewayRequest(string, int, time.Duration) {}
func (NoopCollector) RecordEntityRefresh(string, string) {}
func (NoopCollector) RecordTick(time.Duration, int) {}
func (NoopCollector) RecordDirectoryRefresh(bool, int) {}
func (NoopCollector) SetTrackedEntities(int) {}
