package tracking

import (
	"context"
	"time"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
	"github.com/sirupsen/logrus"
)

// DefaultPlottableDomains are the domains whose states are expected to be
// numeric and therefore get a trend and a history.
var DefaultPlottableDomains = []string{"input_number", "input_text", "number", "sensor"}

// Options configures trackers created by a Set.
type Options struct {
	PlottableDomains []string
	HistoryLimit     int
	Logger           *logrus.Logger
}

func (o Options) withDefaults() Options {
	if o.PlottableDomains == nil {
		o.PlottableDomains = DefaultPlottableDomains
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

func (o Options) plottable(domain string) bool {
	for _, d := range o.PlottableDomains {
		if d == domain {
			return true
		}
	}
	return false
}

// TrackerState is the lifecycle state of a Tracker.
type TrackerState int

const (
	// StateUninitialized means no refresh has succeeded yet.
	StateUninitialized TrackerState = iota
	// StateTracking means at least one refresh has succeeded.
	StateTracking
)

func (s TrackerState) String() string {
	if s == StateTracking {
		return "tracking"
	}
	return "uninitialized"
}

func (s TrackerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Tracker holds the last two readings of one entity and the derived trend
// and history. It is not safe for concurrent use.
type Tracker struct {
	id        string
	domain    string
	plottable bool

	directory *Directory
	gateway   Gateway
	logger    *logrus.Logger

	last     *string
	previous *string
	trend    Trend
	history  *History
	state    TrackerState

	friendlyName string
	unit         string
	lastErr      error
	updatedAt    time.Time
}

// NewTracker creates a tracker for id. It does not contact the server.
func NewTracker(id string, directory *Directory, gateway Gateway, opts Options) *Tracker {
	opts = opts.withDefaults()
	domain, _, _ := homeassistant.SplitEntityID(id)

	t := &Tracker{
		id:           id,
		domain:       domain,
		plottable:    opts.plottable(domain),
		directory:    directory,
		gateway:      gateway,
		logger:       opts.Logger,
		history:      newHistory(opts.HistoryLimit),
		friendlyName: id,
	}
	if known, ok := directory.State(id); ok {
		t.friendlyName = known.FriendlyName()
		t.unit = known.Unit()
	}
	return t
}

// Refresh fetches the current state of the entity. Unknown ids fail with
// ErrUnknownEntity without calling the gateway. Gateway failures return a
// *ConnectivityFailure and keep the previous readings.
func (t *Tracker) Refresh(ctx context.Context) error {
	if !t.directory.Contains(t.id) {
		err := unknownEntity(t.id)
		t.lastErr = err
		return err
	}

	state, err := t.gateway.GetState(ctx, t.id)
	if err != nil {
		failure := newConnectivityFailure(t.id, err)
		t.lastErr = failure
		t.logger.WithFields(logrus.Fields{
			"entity_id":   t.id,
			"status_code": failure.StatusCode,
		}).WithError(err).Debug("Entity refresh failed, keeping last value")
		return failure
	}

	t.apply(state)
	return nil
}

func (t *Tracker) apply(state *homeassistant.EntityState) {
	value := state.State
	t.previous = t.last
	t.last = &value
	t.state = StateTracking
	t.lastErr = nil
	t.updatedAt = time.Now()
	t.friendlyName = state.FriendlyName()
	if unit := state.Unit(); unit != "" {
		t.unit = unit
	}

	if !t.plottable {
		t.trend = TrendUnavailable
		return
	}

	t.trend = ComputeTrend(t.previous, t.last)
	if reading, ok := ParseReading(value); ok {
		t.history.Append(reading)
	}
}

func (t *Tracker) ID() string {
	return t.id
}

func (t *Tracker) Domain() string {
	return t.domain
}

// Plottable reports whether the entity's domain keeps a trend and history.
func (t *Tracker) Plottable() bool {
	return t.plottable
}

// LastValue returns the most recent state, if any.
func (t *Tracker) LastValue() (string, bool) {
	if t.last == nil {
		return "", false
	}
	return *t.last, true
}

// PreviousValue returns the state before the most recent one, if any.
func (t *Tracker) PreviousValue() (string, bool) {
	if t.previous == nil {
		return "", false
	}
	return *t.previous, true
}

func (t *Tracker) Trend() Trend {
	return t.trend
}

// History returns a copy of the numeric readings, oldest first.
func (t *Tracker) History() []float64 {
	return t.history.Values()
}

func (t *Tracker) State() TrackerState {
	return t.state
}

// Err returns the error of the last refresh, or nil if it succeeded.
func (t *Tracker) Err() error {
	return t.lastErr
}

// Row returns the presentation view of the tracker.
func (t *Tracker) Row() Row {
	row := Row{
		EntityID:     t.id,
		FriendlyName: t.friendlyName,
		DisplayValue: FormatValue(t.last),
		Unit:         t.unit,
		Trend:        t.trend,
		TrendSymbol:  t.trend.Symbol(),
		History:      t.history.Values(),
		State:        t.state,
		Stale:        t.lastErr != nil && t.last != nil,
		UpdatedAt:    t.updatedAt,
	}
	if t.lastErr != nil {
		row.LastError = t.lastErr.Error()
	}
	return row
}
