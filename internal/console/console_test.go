package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/poller"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/tracking"
)

func choices() []homeassistant.EntityState {
	return []homeassistant.EntityState{
		{EntityID: "sensor.humidity", Attributes: map[string]interface{}{"friendly_name": "Humidity"}},
		{EntityID: "sensor.power"},
		{EntityID: "sensor.temperature", Attributes: map[string]interface{}{"friendly_name": "Temperature"}},
	}
}

func TestPickerList(t *testing.T) {
	var out bytes.Buffer
	NewPicker(NewLineReader(strings.NewReader(""), &out), &out).List(choices())

	assert.Equal(t, "  0  sensor.humidity (Humidity)\n  1  sensor.power\n  2  sensor.temperature (Temperature)\n", out.String())
}

func TestPickerPick(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("2\nabc\n7\n\nsensor.power\n2\nq\n0\n")

	picked, err := NewPicker(NewLineReader(in, &out), &out).Pick(choices())
	require.NoError(t, err)

	assert.Equal(t, []string{"sensor.temperature", "sensor.power"}, picked)
	assert.Contains(t, out.String(), `"abc" is not in the list`)
	assert.Contains(t, out.String(), `"7" is not in the list`)
}

func TestPickerStopsAtEndOfInput(t *testing.T) {
	var out bytes.Buffer
	picked, err := NewPicker(NewLineReader(strings.NewReader("1\n0"), &out), &out).Pick(choices())
	require.NoError(t, err)
	assert.Equal(t, []string{"sensor.power", "sensor.humidity"}, picked)
}

type failingReader struct{}

func (failingReader) ReadLine(string) (string, error) { return "", errors.New("tty gone") }

func TestPickerReadError(t *testing.T) {
	_, err := NewPicker(failingReader{}, &bytes.Buffer{}).Pick(choices())
	assert.ErrorContains(t, err, "tty gone")
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", Sparkline(nil, 10))
	assert.Equal(t, "▁▁▁", Sparkline([]float64{4, 4, 4}, 10))
	assert.Equal(t, "▁▅█", Sparkline([]float64{0, 5, 10}, 10))
	assert.Equal(t, "▁█", Sparkline([]float64{100, 0, 10}, 2))
}

func TestRendererSnapshot(t *testing.T) {
	var out bytes.Buffer
	taken := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRenderer(&out)
	r.now = func() time.Time { return taken.Add(3 * time.Second) }

	r.PublishSnapshot(poller.Snapshot{
		Sequence:      4,
		DirectorySize: 12,
		TakenAt:       taken,
		Rows: []tracking.Row{
			{
				EntityID:     "sensor.temperature",
				FriendlyName: "Temperature",
				DisplayValue: "21.50",
				Unit:         "°C",
				Trend:        tracking.TrendUp,
				History:      []float64{20, 21.5},
				State:        tracking.StateTracking,
			},
			{
				EntityID:     "sensor.power",
				FriendlyName: "sensor.power",
				Trend:        tracking.TrendUnavailable,
				State:        tracking.StateUninitialized,
				LastError:    "status 500",
			},
		},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Regexp(t, `^ENTITY\s+NAME\s+VALUE\s+TREND\s+HISTORY\s+STATUS$`, lines[0])
	assert.Regexp(t, `^sensor\.temperature\s+Temperature\s+21\.50 °C\s+↗\s+▁█\s+tracking$`, lines[1])
	assert.Regexp(t, `^sensor\.power\s+sensor\.power\s+-\s+status 500$`, lines[2])
	assert.Equal(t, "tick #4, 12 entities in directory, updated 3 seconds ago", lines[3])
}

func TestRendererEmptyAndClear(t *testing.T) {
	var out bytes.Buffer
	NewRenderer(&out, WithClearScreen()).PublishSnapshot(poller.Snapshot{})
	assert.Equal(t, clearScreen+"No entities tracked.\n", out.String())
}

func TestRendererNotification(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)

	r.PublishNotification(poller.Notification{
		Kind:     poller.KindConnectivityFailure,
		Level:    poller.LevelWarning,
		EntityID: "sensor.a",
		Message:  "status 503",
	})
	r.PublishNotification(poller.Notification{
		Kind:    poller.KindDirectoryFailure,
		Level:   poller.LevelWarning,
		Message: "entity directory: status 500",
	})

	assert.Equal(t,
		"[WARNING] sensor.a: status 503\n[WARNING] directory_refresh_failed: entity directory: status 500\n",
		out.String())
}
