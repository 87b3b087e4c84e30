package tracking

// DefaultHistoryLimit bounds per-entity history when no limit is configured.
const DefaultHistoryLimit = 120

// History is a bounded, oldest-first sequence of numeric readings.
type History struct {
	limit  int
	values []float64
}

func newHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Append adds v, dropping the oldest readings beyond the limit.
func (h *History) Append(v float64) {
	h.values = append(h.values, v)
	if excess := len(h.values) - h.limit; excess > 0 {
		h.values = append(h.values[:0:0], h.values[excess:]...)
	}
}

// Values returns a copy of the readings.
func (h *History) Values() []float64 {
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}

func (h *History) Len() int {
	return len(h.values)
}

func (h *History) Limit() int {
	return h.limit
}
