package handlers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/metrics"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/poller"
)

// Poller is the part of the poll loop the handlers drive.
type Poller interface {
	Snapshot() poller.Snapshot
	Selection() []string
	SetSelection(ctx context.Context, ids []string) error
	RefreshDirectory(ctx context.Context) error
	IsRunning() bool
	LastTick() time.Time
	Interval() time.Duration
}

// Directory is the read side of the entity directory.
type Directory interface {
	Domains() []string
	EntitiesInDomains(domains ...string) []homeassistant.EntityState
	State(id string) (homeassistant.EntityState, bool)
	Len() int
	RefreshedAt() time.Time
}

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	poller    Poller
	directory Directory
	health    *metrics.HealthChecker
	log       *logrus.Logger
	timeout   time.Duration
}

// NewHandlers creates a new handlers instance. A nil health checker serves
// an empty report.
func NewHandlers(p Poller, d Directory, health *metrics.HealthChecker, logger *logrus.Logger) *Handlers {
	if health == nil {
		health = metrics.NewHealthChecker(0)
	}
	return &Handlers{
		poller:    p,
		directory: d,
		health:    health,
		log:       logger,
		timeout:   30 * time.Second,
	}
}
