package tracking

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSet(g *fakeGateway) *Set {
	return NewSet(newTestDirectory(g), g, Options{Logger: quietLogger()})
}

func TestSetTrackMixedDomains(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.temp": "20.0", "light.kitchen": "on"})
	s := newTestSet(g)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "sensor.temp"))
	require.NoError(t, s.Add(ctx, "light.kitchen"))

	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "sensor.temp", rows[0].EntityID)
	assert.Equal(t, "20.00", rows[0].DisplayValue)
	assert.Equal(t, TrendUnavailable, rows[0].Trend)
	assert.Equal(t, []float64{20.0}, rows[0].History)
	assert.Equal(t, "light.kitchen", rows[1].EntityID)
	assert.Equal(t, "on", rows[1].DisplayValue)
	assert.Equal(t, TrendUnavailable, rows[1].Trend)
	assert.Empty(t, rows[1].History)

	g.set("sensor.temp", "21.5")
	assert.Empty(t, s.RefreshAll(ctx))

	temp, ok := s.Tracker("sensor.temp")
	require.True(t, ok)
	assert.Equal(t, TrendUp, temp.Trend())
	assert.Equal(t, "↗", temp.Row().TrendSymbol)
	assert.Equal(t, []float64{20.0, 21.5}, temp.History())

	light, _ := s.Tracker("light.kitchen")
	assert.Equal(t, TrendUnavailable, light.Trend())
}

func TestSetServerErrorDuringPoll(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.temp": "20.0", "sensor.humid": "40"})
	s := newTestSet(g)
	ctx := context.Background()

	require.NoError(t, s.SetSelection(ctx, []string{"sensor.temp", "sensor.humid"}))

	g.fail("sensor.temp", serverError(500))
	g.set("sensor.humid", "41")
	errs := s.RefreshAll(ctx)
	require.Len(t, errs, 1)

	failure, ok := AsConnectivityFailure(errs[0])
	require.True(t, ok)
	assert.Equal(t, 500, failure.StatusCode)

	temp, _ := s.Tracker("sensor.temp")
	last, _ := temp.LastValue()
	assert.Equal(t, "20.0", last)
	assert.Equal(t, []float64{20.0}, temp.History())

	humid, _ := s.Tracker("sensor.humid")
	assert.Equal(t, TrendUp, humid.Trend())
	assert.Equal(t, []float64{40, 41}, humid.History())
}

func TestSetAddIsIdempotent(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.temp": "20.0"})
	s := newTestSet(g)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "sensor.temp"))
	require.NoError(t, s.Add(ctx, "sensor.temp"))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, g.calls("sensor.temp"))
}

func TestSetAddUnknownEntity(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.temp": "20.0"})
	s := newTestSet(g)

	err := s.Add(context.Background(), "sensor.ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEntity))
	assert.False(t, s.Contains("sensor.ghost"))
	assert.Equal(t, 0, g.totalCalls())
}

func TestSetAddKeepsTrackerWhenInitialRefreshFails(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.temp": "20.0"})
	s := newTestSet(g)
	ctx := context.Background()

	g.fail("sensor.temp", serverError(502))
	err := s.Add(ctx, "sensor.temp")
	require.Error(t, err)
	assert.True(t, s.Contains("sensor.temp"))

	g.fail("sensor.temp", nil)
	assert.Empty(t, s.RefreshAll(ctx))
	tr, _ := s.Tracker("sensor.temp")
	assert.Equal(t, StateTracking, tr.State())
}

func TestSetRemove(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.temp": "20.0", "sensor.humid": "40"})
	s := newTestSet(g)
	ctx := context.Background()

	require.NoError(t, s.SetSelection(ctx, []string{"sensor.temp", "sensor.humid"}))
	assert.True(t, s.Remove("sensor.temp"))
	assert.False(t, s.Remove("sensor.temp"))
	assert.False(t, s.Remove("sensor.never"))
	assert.Equal(t, []string{"sensor.humid"}, s.IDs())
}

func TestSetRemoveThenAddStartsFresh(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.temp": "20.0"})
	s := newTestSet(g)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "sensor.temp"))
	g.set("sensor.temp", "21")
	s.RefreshAll(ctx)
	tr, _ := s.Tracker("sensor.temp")
	assert.Len(t, tr.History(), 2)

	s.Remove("sensor.temp")
	g.set("sensor.temp", "22")
	require.NoError(t, s.Add(ctx, "sensor.temp"))

	tr, _ = s.Tracker("sensor.temp")
	assert.Equal(t, []float64{22}, tr.History())
	assert.Equal(t, TrendUnavailable, tr.Trend())
	_, hasPrev := tr.PreviousValue()
	assert.False(t, hasPrev)
}

func TestSetSelectionIdempotent(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.a": "1", "sensor.b": "2", "sensor.c": "3"})
	s := newTestSet(g)
	ctx := context.Background()

	selection := []string{"sensor.b", "sensor.a", "sensor.b"}
	require.NoError(t, s.SetSelection(ctx, selection))
	assert.Equal(t, []string{"sensor.b", "sensor.a"}, s.IDs())
	callsAfterFirst := g.totalCalls()
	assert.Equal(t, 2, callsAfterFirst)

	require.NoError(t, s.SetSelection(ctx, selection))
	assert.Equal(t, []string{"sensor.b", "sensor.a"}, s.IDs())
	assert.Equal(t, callsAfterFirst, g.totalCalls())
}

func TestSetSelectionReplaces(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.a": "1", "sensor.b": "2", "sensor.c": "3"})
	s := newTestSet(g)
	ctx := context.Background()

	require.NoError(t, s.SetSelection(ctx, []string{"sensor.a", "sensor.b"}))
	g.set("sensor.a", "5")
	s.RefreshAll(ctx)

	require.NoError(t, s.SetSelection(ctx, []string{"sensor.a", "sensor.c"}))
	assert.Equal(t, []string{"sensor.a", "sensor.c"}, s.IDs())
	assert.False(t, s.Contains("sensor.b"))

	a, _ := s.Tracker("sensor.a")
	assert.Equal(t, []float64{1, 5}, a.History())

	require.NoError(t, s.SetSelection(ctx, nil))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Rows())
}

func TestSetSelectionCollectsErrors(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.a": "1", "sensor.b": "2"})
	s := newTestSet(g)
	ctx := context.Background()

	g.fail("sensor.b", serverError(500))
	err := s.SetSelection(ctx, []string{"sensor.a", "sensor.ghost", "sensor.b"})
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.True(t, errors.Is(merr.Errors[0], ErrUnknownEntity))
	_, ok := AsConnectivityFailure(merr.Errors[1])
	assert.True(t, ok)

	assert.Equal(t, []string{"sensor.a", "sensor.b"}, s.IDs())
}

func TestSetRefreshAllReportsDrift(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.a": "1", "sensor.b": "2"})
	d := newTestDirectory(g)
	s := NewSet(d, g, Options{Logger: quietLogger()})
	ctx := context.Background()

	require.NoError(t, s.SetSelection(ctx, []string{"sensor.a", "sensor.b"}))

	g.mu.Lock()
	delete(g.states, "sensor.a")
	g.mu.Unlock()
	require.NoError(t, d.Refresh(ctx))

	before := g.calls("sensor.a")
	errs := s.RefreshAll(ctx)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrUnknownEntity))
	assert.Equal(t, before, g.calls("sensor.a"))
	assert.Equal(t, 2, g.calls("sensor.b"))
}

func TestSetRefreshAllStopsOnCancelledContext(t *testing.T) {
	g := newFakeGateway(map[string]string{"sensor.a": "1"})
	s := newTestSet(g)
	require.NoError(t, s.Add(context.Background(), "sensor.a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	errs := s.RefreshAll(ctx)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
	assert.Equal(t, 1, g.calls("sensor.a"))
}
