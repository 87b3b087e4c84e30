package tracking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
	"github.com/sirupsen/logrus"
)

// Gateway is the subset of the Home Assistant client used by the engine.
type Gateway interface {
	GetStates(ctx context.Context) ([]homeassistant.EntityState, error)
	GetState(ctx context.Context, entityID string) (*homeassistant.EntityState, error)
}

// Directory caches every entity known to the server. It is replaced
// wholesale by Refresh and is safe for concurrent readers.
type Directory struct {
	gateway Gateway
	logger  *logrus.Logger

	mu          sync.RWMutex
	states      map[string]homeassistant.EntityState
	ids         []string
	refreshedAt time.Time
}

// NewDirectory creates an empty directory backed by gateway.
func NewDirectory(gateway Gateway, logger *logrus.Logger) *Directory {
	return &Directory{
		gateway: gateway,
		logger:  logger,
		states:  make(map[string]homeassistant.EntityState),
	}
}

// Refresh fetches the full state list and replaces the directory contents.
// On failure the previous contents are kept and a *ConnectivityFailure is
// returned.
func (d *Directory) Refresh(ctx context.Context) error {
	states, err := d.gateway.GetStates(ctx)
	if err != nil {
		failure := newConnectivityFailure("", err)
		d.logger.WithError(err).WithField("status_code", failure.StatusCode).
			Warn("Entity directory refresh failed, keeping previous entries")
		return failure
	}

	byID := make(map[string]homeassistant.EntityState, len(states))
	ids := make([]string, 0, len(states))
	for _, state := range states {
		if state.EntityID == "" {
			continue
		}
		if _, dup := byID[state.EntityID]; !dup {
			ids = append(ids, state.EntityID)
		}
		byID[state.EntityID] = state
	}
	sort.Strings(ids)

	d.mu.Lock()
	d.states = byID
	d.ids = ids
	d.refreshedAt = time.Now()
	d.mu.Unlock()

	d.logger.WithField("count", len(ids)).Info("Entity directory refreshed")
	return nil
}

// IDs returns the sorted entity ids starting with prefix. The match is a
// plain string prefix: pass "sensor." rather than "sensor", or use
// IDsInDomain. An empty prefix returns every id.
func (d *Directory) IDs(prefix string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.ids))
	for _, id := range d.ids {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out
}

// IDsInDomain returns the sorted ids whose domain is exactly domain.
func (d *Directory) IDsInDomain(domain string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0)
	for _, id := range d.ids {
		if got, _, ok := homeassistant.SplitEntityID(id); ok && got == domain {
			out = append(out, id)
		}
	}
	return out
}

// Domains returns the unique, sorted domains of all known entities.
func (d *Directory) Domains() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]struct{})
	var domains []string
	for _, id := range d.ids {
		domain, _, ok := homeassistant.SplitEntityID(id)
		if !ok {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

// EntitiesInDomains returns the states of entities whose domain is one of
// domains, sorted by id. No domains means all entities.
func (d *Directory) EntitiesInDomains(domains ...string) []homeassistant.EntityState {
	want := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		want[domain] = struct{}{}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]homeassistant.EntityState, 0)
	for _, id := range d.ids {
		state := d.states[id]
		if len(want) > 0 {
			if _, ok := want[state.Domain()]; !ok {
				continue
			}
		}
		out = append(out, state)
	}
	return out
}

// Contains reports whether id was returned by the last successful refresh.
func (d *Directory) Contains(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.states[id]
	return ok
}

// State returns the state captured for id by the last refresh.
func (d *Directory) State(id string) (homeassistant.EntityState, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	state, ok := d.states[id]
	return state, ok
}

// Len returns the number of known entities.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ids)
}

// RefreshedAt returns the time of the last successful refresh.
func (d *Directory) RefreshedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refreshedAt
}
