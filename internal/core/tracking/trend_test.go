package tracking

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"20.0", 20, true},
		{" -3.5 ", -3.5, true},
		{"1e3", 1000, true},
		{"0", 0, true},
		{"on", 0, false},
		{"unavailable", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseReading(tt.in)
		assert.Equal(t, tt.valid, ok, tt.in)
		if tt.valid {
			assert.InDelta(t, tt.want, got, 1e-9, tt.in)
		}
	}
}

func TestComputeTrendExhaustive(t *testing.T) {
	values := []*string{nil, strPtr("on"), strPtr("unknown"), strPtr("1"), strPtr("2"), strPtr("2.0"), strPtr("-1")}

	for _, prev := range values {
		for _, cur := range values {
			got := ComputeTrend(prev, cur)

			var pv, cv float64
			var pOK, cOK bool
			if prev != nil {
				pv, pOK = ParseReading(*prev)
			}
			if cur != nil {
				cv, cOK = ParseReading(*cur)
			}

			switch {
			case !pOK || !cOK:
				assert.Equal(t, TrendUnavailable, got)
			case pv < cv:
				assert.Equal(t, TrendUp, got)
			case cv < pv:
				assert.Equal(t, TrendDown, got)
			default:
				assert.Equal(t, TrendFlat, got)
			}
		}
	}
}

func TestTrendSymbols(t *testing.T) {
	assert.Equal(t, "↗", TrendUp.Symbol())
	assert.Equal(t, "↘", TrendDown.Symbol())
	assert.Equal(t, "=", TrendFlat.Symbol())
	assert.Equal(t, "", TrendUnavailable.Symbol())
}

func TestTrendJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Trend{"t": TrendDown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"down"}`, string(data))

	var back map[string]Trend
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, TrendDown, back["t"])

	var bad Trend
	assert.Error(t, bad.UnmarshalText([]byte("sideways")))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "20.00", FormatValue(strPtr("20")))
	assert.Equal(t, "21.57", FormatValue(strPtr("21.566")))
	assert.Equal(t, "on", FormatValue(strPtr("on")))
}

func TestHistoryLimit(t *testing.T) {
	h := newHistory(3)
	for i := 1; i <= 5; i++ {
		h.Append(float64(i))
	}
	assert.Equal(t, []float64{3, 4, 5}, h.Values())
	assert.Equal(t, 3, h.Len())

	values := h.Values()
	values[0] = 99
	assert.Equal(t, []float64{3, 4, 5}, h.Values())

	assert.Equal(t, DefaultHistoryLimit, newHistory(0).Limit())
}
