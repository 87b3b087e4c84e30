package tracking

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
	"github.com/sirupsen/logrus"
)

// fakeGateway emulates Home Assistant in memory.
type fakeGateway struct {
	mu        sync.Mutex
	states    map[string]string
	names     map[string]string
	failList  error
	failState map[string]error
	listCalls int
	getCalls  map[string]int
}

func newFakeGateway(states map[string]string) *fakeGateway {
	g := &fakeGateway{
		states:    make(map[string]string),
		names:     make(map[string]string),
		failState: make(map[string]error),
		getCalls:  make(map[string]int),
	}
	for id, v := range states {
		g.states[id] = v
	}
	return g
}

func (g *fakeGateway) set(id, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[id] = value
}

func (g *fakeGateway) fail(id string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failState, id)
		return
	}
	g.failState[id] = err
}

func (g *fakeGateway) calls(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getCalls[id]
}

func (g *fakeGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.getCalls {
		total += n
	}
	return total
}

func (g *fakeGateway) entity(id string) homeassistant.EntityState {
	attrs := map[string]interface{}{}
	if name, ok := g.names[id]; ok {
		attrs["friendly_name"] = name
	}
	return homeassistant.EntityState{EntityID: id, State: g.states[id], Attributes: attrs}
}

func (g *fakeGateway) GetStates(ctx context.Context) ([]homeassistant.EntityState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.failList != nil {
		return nil, g.failList
	}
	ids := make([]string, 0, len(g.states))
	for id := range g.states {
		ids = append(ids, id)
	}
	// reverse order so the directory has to sort
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	out := make([]homeassistant.EntityState, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.entity(id))
	}
	return out, nil
}

func (g *fakeGateway) GetState(ctx context.Context, entityID string) (*homeassistant.EntityState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls[entityID]++
	if err := g.failState[entityID]; err != nil {
		return nil, err
	}
	if _, ok := g.states[entityID]; !ok {
		return nil, homeassistant.ErrEntityNotFound
	}
	state := g.entity(entityID)
	return &state, nil
}

func serverError(code int) error {
	return homeassistant.NewHAError(code, "Server error", nil)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestDirectory(g *fakeGateway) *Directory {
	d := NewDirectory(g, quietLogger())
	if err := d.Refresh(context.Background()); err != nil {
		panic(err)
	}
	return d
}

func strPtr(s string) *string {
	return &s
}
