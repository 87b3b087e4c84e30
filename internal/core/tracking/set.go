package tracking

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Set is the ordered collection of trackers selected by the user. It is
// not safe for concurrent use; poller.Loop serialises every access.
type Set struct {
	directory *Directory
	gateway   Gateway
	opts      Options
	logger    *logrus.Logger

	order    []string
	trackers map[string]*Tracker
}

// NewSet creates an empty tracking set.
func NewSet(directory *Directory, gateway Gateway, opts Options) *Set {
	opts = opts.withDefaults()
	return &Set{
		directory: directory,
		gateway:   gateway,
		opts:      opts,
		logger:    opts.Logger,
		trackers:  make(map[string]*Tracker),
	}
}

// Add starts tracking id and performs an initial refresh so the first
// render has data. Tracking an id twice is a no-op. Ids missing from the
// directory are rejected with ErrUnknownEntity. A connectivity failure
// during the initial refresh is returned, but the tracker is kept so later
// polls can retry.
func (s *Set) Add(ctx context.Context, id string) error {
	if _, ok := s.trackers[id]; ok {
		return nil
	}
	if !s.directory.Contains(id) {
		return unknownEntity(id)
	}

	tracker := NewTracker(id, s.directory, s.gateway, s.opts)
	s.trackers[id] = tracker
	s.order = append(s.order, id)

	s.logger.WithField("entity_id", id).Info("Tracking entity")

	if err := tracker.Refresh(ctx); err != nil {
		s.logger.WithField("entity_id", id).WithError(err).Warn("Initial refresh failed, will retry on next poll")
		return err
	}
	return nil
}

// Remove stops tracking id and discards its history. Unknown ids are a
// no-op. It reports whether a tracker was removed.
func (s *Set) Remove(id string) bool {
	if _, ok := s.trackers[id]; !ok {
		return false
	}
	delete(s.trackers, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.logger.WithField("entity_id", id).Info("Stopped tracking entity")
	return true
}

// SetSelection makes the set equal to ids: trackers not in ids are removed
// first, then missing ids are added in the given order. Applying the same
// selection twice has no further effect. Add failures are collected into
// a *multierror.Error; successful changes are kept.
func (s *Set) SetSelection(ctx context.Context, ids []string) error {
	wanted := make(map[string]struct{}, len(ids))
	var toAdd []string
	for _, id := range ids {
		if _, dup := wanted[id]; dup {
			continue
		}
		wanted[id] = struct{}{}
		if _, tracked := s.trackers[id]; !tracked {
			toAdd = append(toAdd, id)
		}
	}

	var toRemove []string
	for _, id := range s.order {
		if _, keep := wanted[id]; !keep {
			toRemove = append(toRemove, id)
		}
	}

	for _, id := range toRemove {
		s.Remove(id)
	}

	var result *multierror.Error
	for _, id := range toAdd {
		if err := s.Add(ctx, id); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if len(toAdd) > 0 || len(toRemove) > 0 {
		s.logger.WithFields(logrus.Fields{
			"added":   len(toAdd),
			"removed": len(toRemove),
			"tracked": len(s.order),
		}).Debug("Selection applied")
	}

	return result.ErrorOrNil()
}

// RefreshAll refreshes every tracker sequentially in selection order. A
// failing tracker never prevents the others from refreshing; all failures
// are returned.
func (s *Set) RefreshAll(ctx context.Context) []error {
	return s.RefreshEach(ctx, nil)
}

// RefreshEach is RefreshAll calling done after each tracker that was
// actually refreshed. Trackers skipped because ctx ended are not reported.
func (s *Set) RefreshEach(ctx context.Context, done func(*Tracker, error)) []error {
	var errs []error
	for _, tracker := range s.Trackers() {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		err := tracker.Refresh(ctx)
		if done != nil {
			done(tracker, err)
		}
		if err != nil {
			if errors.Is(err, ErrUnknownEntity) {
				s.logger.WithField("entity_id", tracker.ID()).WithError(err).
					Error("Tracked entity is missing from the directory")
			}
			errs = append(errs, err)
		}
	}
	return errs
}

// IDs returns the tracked ids in selection order.
func (s *Set) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Trackers returns the trackers in selection order.
func (s *Set) Trackers() []*Tracker {
	out := make([]*Tracker, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.trackers[id])
	}
	return out
}

// Tracker returns the tracker for id.
func (s *Set) Tracker(id string) (*Tracker, bool) {
	t, ok := s.trackers[id]
	return t, ok
}

func (s *Set) Contains(id string) bool {
	_, ok := s.trackers[id]
	return ok
}

func (s *Set) Len() int {
	return len(s.order)
}

// Rows returns the presentation rows in selection order.
func (s *Set) Rows() []Row {
	rows := make([]Row, 0, len(s.order))
	for _, id := range s.order {
		rows = append(rows, s.trackers[id].Row())
	}
	return rows
}
