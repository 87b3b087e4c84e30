package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/ha-trend-monitor/internal/core/poller"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/tracking"
)

func TestMessageUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		jsonData string
		expected time.Time
		recent   bool
	}{
		{
			name:     "Unix timestamp in milliseconds as string",
			jsonData: `{"type":"test","data":{},"timestamp":"1753104374613"}`,
			expected: time.Unix(0, 1753104374613*int64(time.Millisecond)),
		},
		{
			name:     "Unix timestamp in seconds as string",
			jsonData: `{"type":"test","data":{},"timestamp":"1753104374"}`,
			expected: time.Unix(1753104374, 0),
		},
		{
			name:     "Unix timestamp as number",
			jsonData: `{"type":"test","data":{},"timestamp":1753104374613}`,
			expected: time.Unix(0, 1753104374613*int64(time.Millisecond)),
		},
		{
			name:     "RFC3339 timestamp string",
			jsonData: `{"type":"test","data":{},"timestamp":"2025-07-21T09:26:14.613Z"}`,
			expected: time.Date(2025, 7, 21, 9, 26, 14, 613000000, time.UTC),
		},
		{
			name:     "No timestamp field",
			jsonData: `{"type":"test","data":{}}`,
			recent:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg Message
			require.NoError(t, json.Unmarshal([]byte(tt.jsonData), &msg))
			assert.Equal(t, "test", msg.Type)

			if tt.recent {
				assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Minute)
				return
			}
			assert.WithinDuration(t, tt.expected, msg.Timestamp, time.Millisecond)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected time.Time
		recent   bool
	}{
		{name: "Nil input", input: nil, recent: true},
		{name: "String milliseconds", input: "1753104374613", expected: time.Unix(0, 1753104374613*int64(time.Millisecond))},
		{name: "String seconds", input: "1753104374", expected: time.Unix(1753104374, 0)},
		{name: "Float64 milliseconds", input: float64(1753104374613), expected: time.Unix(0, 1753104374613*int64(time.Millisecond))},
		{name: "Int64 milliseconds", input: int64(1753104374613), expected: time.Unix(0, 1753104374613*int64(time.Millisecond))},
		{name: "Int seconds", input: int(1753104374), expected: time.Unix(1753104374, 0)},
		{name: "RFC3339 string", input: "2025-07-21T09:26:14.613Z", expected: time.Date(2025, 7, 21, 9, 26, 14, 613000000, time.UTC)},
		{name: "Invalid string", input: "invalid", recent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTimestamp(tt.input)
			if tt.recent {
				assert.WithinDuration(t, time.Now(), result, time.Minute)
				return
			}
			assert.WithinDuration(t, tt.expected, result, time.Millisecond)
		})
	}
}

func TestSnapshotMessageJSON(t *testing.T) {
	snap := poller.Snapshot{
		Sequence:  3,
		Selection: []string{"sensor.temp"},
		Rows: []tracking.Row{{
			EntityID:     "sensor.temp",
			DisplayValue: "21.50",
			Trend:        tracking.TrendUp,
			TrendSymbol:  "↗",
			History:      []float64{20, 21.5},
			State:        tracking.StateTracking,
		}},
	}

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Sequence uint64 `json:"sequence"`
			Rows     []struct {
				EntityID    string    `json:"entity_id"`
				Trend       string    `json:"trend"`
				TrendSymbol string    `json:"trend_symbol"`
				History     []float64 `json:"history"`
				State       string    `json:"state"`
			} `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(SnapshotMessage(snap).ToJSON(), &decoded))

	assert.Equal(t, MessageTypeSnapshot, decoded.Type)
	assert.Equal(t, uint64(3), decoded.Data.Sequence)
	require.Len(t, decoded.Data.Rows, 1)
	assert.Equal(t, "up", decoded.Data.Rows[0].Trend)
	assert.Equal(t, "↗", decoded.Data.Rows[0].TrendSymbol)
	assert.Equal(t, []float64{20, 21.5}, decoded.Data.Rows[0].History)
	assert.Equal(t, "tracking", decoded.Data.Rows[0].State)
}

func TestStringSlice(t *testing.T) {
	ids, ok := stringSlice([]interface{}{"a", 1.0, "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, ok = stringSlice("a")
	assert.False(t, ok)
}
