package tracking

import "time"

// Row is what the presentation layer receives for one tracked entity on
// every tick.
type Row struct {
	EntityID     string       `json:"entity_id"`
	FriendlyName string       `json:"friendly_name"`
	DisplayValue string       `json:"display_value"`
	Unit         string       `json:"unit,omitempty"`
	Trend        Trend        `json:"trend"`
	TrendSymbol  string       `json:"trend_symbol"`
	History      []float64    `json:"history"`
	State        TrackerState `json:"state"`
	Stale        bool         `json:"stale"`
	LastError    string       `json:"last_error,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
