package tracking

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Trend is the direction between the two most recent readings.
type Trend int

const (
	TrendUnavailable Trend = iota
	TrendUp
	TrendDown
	TrendFlat
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	case TrendFlat:
		return "flat"
	default:
		return "unavailable"
	}
}

// Symbol is the glyph shown in the trend column.
func (t Trend) Symbol() string {
	switch t {
	case TrendUp:
		return "↗"
	case TrendDown:
		return "↘"
	case TrendFlat:
		return "="
	default:
		return ""
	}
}

func (t Trend) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Trend) UnmarshalText(text []byte) error {
	switch string(text) {
	case "up":
		*t = TrendUp
	case "down":
		*t = TrendDown
	case "flat":
		*t = TrendFlat
	case "unavailable", "":
		*t = TrendUnavailable
	default:
		return fmt.Errorf("unknown trend %q", text)
	}
	return nil
}

// ParseReading parses an entity state as a finite decimal number.
func ParseReading(state string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(state), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ComputeTrend compares two readings. Either side missing or
// non-numeric yields TrendUnavailable.
func ComputeTrend(previous, current *string) Trend {
	if previous == nil || current == nil {
		return TrendUnavailable
	}
	old, ok := ParseReading(*previous)
	if !ok {
		return TrendUnavailable
	}
	cur, ok := ParseReading(*current)
	if !ok {
		return TrendUnavailable
	}

	switch {
	case cur > old:
		return TrendUp
	case cur < old:
		return TrendDown
	default:
		return TrendFlat
	}
}

// FormatValue renders a state for display: two decimals when numeric,
// the raw text otherwise.
func FormatValue(state *string) string {
	if state == nil {
		return ""
	}
	if v, ok := ParseReading(*state); ok {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return *state
}
