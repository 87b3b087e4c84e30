package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, logrus.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("bogus"))
}

func TestLogRequestBatchesSuccesses(t *testing.T) {
	var buf bytes.Buffer
	bl := New(Options{Level: "info", Format: "json", Output: &buf, BatchSize: 3})

	bl.LogRequest("GET", "/api/states/sensor.temp", 200, 5*time.Millisecond, nil)
	bl.LogRequest("GET", "/api/states/sensor.temp", 200, 7*time.Millisecond, nil)
	assert.Equal(t, 2, bl.Pending())
	assert.Empty(t, buf.String())

	bl.LogRequest("GET", "/api/states", 200, time.Millisecond, nil)
	assert.Equal(t, 0, bl.Pending())
	assert.Contains(t, buf.String(), "batch summary")
}

func TestLogRequestFailuresAreImmediate(t *testing.T) {
	var buf bytes.Buffer
	bl := New(Options{Level: "info", Format: "text", Output: &buf})

	bl.LogRequest("GET", "/api/states/sensor.temp", 500, time.Millisecond, logrus.Fields{"entity_id": "sensor.temp"})

	assert.Equal(t, 0, bl.Pending())
	assert.Contains(t, buf.String(), "Status: 500")
	assert.Contains(t, buf.String(), "sensor.temp")
}

func TestFlushPending(t *testing.T) {
	var buf bytes.Buffer
	bl := New(Options{Level: "info", Output: &buf})

	bl.FlushPending()
	assert.Empty(t, buf.String())

	bl.LogRequest("GET", "/api/states", 201, time.Millisecond, nil)
	bl.FlushPending()
	assert.Equal(t, 0, bl.Pending())
	assert.Contains(t, buf.String(), "total_requests=1")
}
