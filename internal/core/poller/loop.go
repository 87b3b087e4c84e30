package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/ha-trend-monitor/internal/core/metrics"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/tracking"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 5 * time.Second

var (
	// ErrNotRunning is returned when work is submitted to a loop that has
	// not been started or has been stopped.
	ErrNotRunning = errors.New("poll loop is not running")
	// ErrAlreadyRunning is returned by Start on a running loop.
	ErrAlreadyRunning = errors.New("poll loop is already running")
)

// Config configures a Loop.
type Config struct {
	// Interval between ticks. Values below one second are rounded up by
	// the scheduler.
	Interval time.Duration
	// DirectoryResync re-reads the entity directory on this period when
	// positive.
	DirectoryResync time.Duration
	Logger          *logrus.Logger
	Metrics         metrics.MetricsCollector
	Publishers      []Publisher
}

// Loop drives the tracking set. Ticks, selection changes and directory
// refreshes all run on one worker goroutine, so they never interleave.
type Loop struct {
	set       *tracking.Set
	directory *tracking.Directory
	config    Config
	logger    *logrus.Logger
	metrics   metrics.MetricsCollector

	cron *cron.Cron
	jobs chan job

	mu       sync.RWMutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
	worker   sync.WaitGroup
	snapshot Snapshot
	lastTick time.Time

	pubMu      sync.RWMutex
	publishers []Publisher

	sequence uint64
}

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context)
	done chan struct{}
}

// NewLoop creates a stopped loop over set and directory.
func NewLoop(set *tracking.Set, directory *tracking.Directory, config Config) *Loop {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoopCollector{}
	}

	l := &Loop{
		set:        set,
		directory:  directory,
		config:     config,
		logger:     config.Logger,
		metrics:    config.Metrics,
		jobs:       make(chan job),
		publishers: append([]Publisher(nil), config.Publishers...),
	}
	l.snapshot = Snapshot{Rows: []tracking.Row{}, Selection: []string{}}
	return l
}

// AddPublisher registers p for subsequent snapshots and notifications.
func (l *Loop) AddPublisher(p Publisher) {
	l.pubMu.Lock()
	defer l.pubMu.Unlock()
	l.publishers = append(l.publishers, p)
}

// Start launches the worker and the tick schedule. The first scheduled
// tick fires one interval after Start; call Tick for an immediate one.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return ErrAlreadyRunning
	}

	cronLogger := cron.PrintfLogger(l.logger.WithField("component", "poller"))
	c := cron.New(
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.DelayIfStillRunning(cronLogger),
		),
	)

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", l.config.Interval), l.scheduledTick); err != nil {
		return fmt.Errorf("failed to schedule poll tick: %w", err)
	}
	if l.config.DirectoryResync > 0 {
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", l.config.DirectoryResync), l.scheduledResync); err != nil {
			return fmt.Errorf("failed to schedule directory resync: %w", err)
		}
	}

	l.ctx, l.cancel = context.WithCancel(ctx)
	l.stopped = make(chan struct{})
	l.cron = c
	l.running = true

	l.worker.Add(1)
	go l.run(l.stopped)
	c.Start()

	l.logger.WithFields(logrus.Fields{
		"interval":         l.config.Interval.String(),
		"directory_resync": l.config.DirectoryResync.String(),
	}).Info("Poll loop started")
	return nil
}

// Stop halts the schedule, waits for the job in progress and stops the
// worker. Stopping a stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	c := l.cron
	cancel := l.cancel
	stopped := l.stopped
	l.mu.Unlock()

	cancel()
	cronCtx := c.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		l.logger.Warn("Timeout waiting for scheduled poll jobs to complete")
	}

	close(stopped)
	l.worker.Wait()
	l.logger.Info("Poll loop stopped")
}

// IsRunning reports whether the loop has been started and not stopped.
func (l *Loop) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

func (l *Loop) run(stopped <-chan struct{}) {
	defer l.worker.Done()
	for {
		select {
		case <-stopped:
			return
		case j := <-l.jobs:
			j.fn(j.ctx)
			close(j.done)
		}
	}
}

// do runs fn on the worker and waits for it to finish.
func (l *Loop) do(ctx context.Context, fn func(ctx context.Context)) error {
	l.mu.RLock()
	running := l.running
	stopped := l.stopped
	l.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	j := job{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case l.jobs <- j:
	case <-stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	// the job owns ctx from here; waiting ends with the job
	<-j.done
	return nil
}

func (l *Loop) scheduledTick() {
	l.mu.RLock()
	ctx := l.ctx
	l.mu.RUnlock()

	if _, err := l.Tick(ctx); err != nil && !errors.Is(err, ErrNotRunning) && !errors.Is(err, context.Canceled) {
		l.logger.WithError(err).Warn("Scheduled poll tick did not run")
	}
}

func (l *Loop) scheduledResync() {
	l.mu.RLock()
	ctx := l.ctx
	l.mu.RUnlock()

	err := l.RefreshDirectory(ctx)
	if err != nil && !errors.Is(err, ErrNotRunning) && !errors.Is(err, context.Canceled) {
		l.logger.WithError(err).Warn("Scheduled directory resync failed")
	}
}

// Tick refreshes every tracked entity once, publishes one notification
// per failure and then the new snapshot.
func (l *Loop) Tick(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := l.do(ctx, func(ctx context.Context) {
		snap = l.tick(ctx)
	})
	return snap, err
}

func (l *Loop) tick(ctx context.Context) Snapshot {
	start := time.Now()
	errs := l.set.RefreshEach(ctx, func(tracker *tracking.Tracker, err error) {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeConnectivity
			if errors.Is(err, tracking.ErrUnknownEntity) {
				outcome = metrics.OutcomeUnknownEntity
			}
		}
		l.metrics.RecordEntityRefresh(tracker.Domain(), outcome)
	})

	for _, err := range errs {
		if errors.Is(err, context.Canceled) {
			continue
		}
		l.notify(notificationFor(err))
	}

	duration := time.Since(start)
	l.metrics.RecordTick(duration, len(errs))
	l.metrics.SetTrackedEntities(l.set.Len())

	l.logger.WithFields(logrus.Fields{
		"tracked":  l.set.Len(),
		"failures": len(errs),
		"duration": duration.String(),
	}).Debug("Poll tick completed")

	l.mu.Lock()
	l.lastTick = time.Now()
	l.mu.Unlock()

	return l.publishSnapshot()
}

// SetSelection makes the tracked set equal to ids. It runs between ticks,
// never during one. Every failed addition is published as a notification
// and returned in a *multierror.Error.
func (l *Loop) SetSelection(ctx context.Context, ids []string) error {
	var result error
	err := l.do(ctx, func(ctx context.Context) {
		result = l.set.SetSelection(ctx, ids)

		var merr *multierror.Error
		if errors.As(result, &merr) {
			for _, e := range merr.Errors {
				l.notify(notificationFor(e))
			}
		}

		l.metrics.SetTrackedEntities(l.set.Len())
		l.publishSnapshot()
	})
	if err != nil {
		return err
	}
	return result
}

// RefreshDirectory re-reads the entity directory. On failure the previous
// directory is kept and a notification is published.
func (l *Loop) RefreshDirectory(ctx context.Context) error {
	var result error
	err := l.do(ctx, func(ctx context.Context) {
		result = l.directory.Refresh(ctx)
		l.metrics.RecordDirectoryRefresh(result == nil, l.directory.Len())
		if result != nil {
			l.notify(notificationFor(result))
			return
		}
		l.publishSnapshot()
	})
	if err != nil {
		return err
	}
	return result
}

// Publish republishes the current state without refreshing any tracker.
func (l *Loop) Publish(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := l.do(ctx, func(context.Context) {
		snap = l.publishSnapshot()
	})
	return snap, err
}

// Snapshot returns the most recently published snapshot.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// Selection returns the tracked ids as of the last snapshot.
func (l *Loop) Selection() []string {
	snap := l.Snapshot()
	out := make([]string, len(snap.Selection))
	copy(out, snap.Selection)
	return out
}

// LastTick returns the completion time of the last tick, zero if none.
func (l *Loop) LastTick() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastTick
}

// Interval returns the configured tick period.
func (l *Loop) Interval() time.Duration {
	return l.config.Interval
}

func (l *Loop) publishSnapshot() Snapshot {
	l.sequence++
	snap := Snapshot{
		Sequence:             l.sequence,
		Rows:                 l.set.Rows(),
		Selection:            l.set.IDs(),
		DirectorySize:        l.directory.Len(),
		DirectoryRefreshedAt: l.directory.RefreshedAt(),
		TakenAt:              time.Now(),
	}

	l.mu.Lock()
	l.snapshot = snap
	l.mu.Unlock()

	l.pubMu.RLock()
	defer l.pubMu.RUnlock()
	for _, p := range l.publishers {
		p.PublishSnapshot(snap)
	}
	return snap
}

func (l *Loop) notify(n Notification) {
	entry := l.logger.WithFields(logrus.Fields{
		"kind":        n.Kind,
		"entity_id":   n.EntityID,
		"status_code": n.StatusCode,
	})
	if n.Level == LevelError {
		entry.Error(n.Message)
	} else {
		entry.Warn(n.Message)
	}

	l.pubMu.RLock()
	defer l.pubMu.RUnlock()
	for _, p := range l.publishers {
		p.PublishNotification(n)
	}
}
