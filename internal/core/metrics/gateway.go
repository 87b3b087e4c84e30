package metrics

import (
	"time"

	"github.com/sirupsen/logrus"
)

// GatewayRecorder feeds Home Assistant request outcomes into a collector.
// It satisfies homeassistant.RequestRecorder.
type GatewayRecorder struct {
	collector MetricsCollector
}

func NewGatewayRecorder(collector MetricsCollector) *GatewayRecorder {
	if collector == nil {
		collector = NoopCollector{}
	}
	return &GatewayRecorder{collector: collector}
}

// LogRequest records one request attempt. Status 0 means the request never
// got a response.
func (g *GatewayRecorder) LogRequest(method, _ string, statusCode int, latency time.Duration, _ logrus.Fields) {
	g.collector.RecordGatewayRequest(method, statusCode, latency)
}
