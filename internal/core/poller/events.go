package poller

import (
	"errors"
	"time"

	"github.com/frostdev-ops/ha-trend-monitor/internal/core/tracking"
)

// Notification kinds.
const (
	KindConnectivityFailure = "connectivity_failure"
	KindUnknownEntity       = "unknown_entity"
	KindDirectoryFailure    = "directory_refresh_failed"
)

// Notification levels.
const (
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification is a one-shot, user-visible report of a failure.
type Notification struct {
	Kind       string    `json:"kind"`
	Level      string    `json:"level"`
	EntityID   string    `json:"entity_id,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message"`
	Time       time.Time `json:"time"`
}

// Snapshot is the state published to the presentation layer after every
// tick or selection change.
type Snapshot struct {
	Sequence             uint64         `json:"sequence"`
	Rows                 []tracking.Row `json:"rows"`
	Selection            []string       `json:"selection"`
	DirectorySize        int            `json:"directory_size"`
	DirectoryRefreshedAt time.Time      `json:"directory_refreshed_at"`
	TakenAt              time.Time      `json:"taken_at"`
}

// Publisher receives snapshots and notifications from the loop. Calls are
// made from the loop's worker goroutine and must not block for long.
type Publisher interface {
	PublishSnapshot(Snapshot)
	PublishNotification(Notification)
}

// notificationFor classifies err into a notification.
func notificationFor(err error) Notification {
	n := Notification{
		Kind:    KindConnectivityFailure,
		Level:   LevelWarning,
		Message: err.Error(),
		Time:    time.Now(),
	}

	if failure, ok := tracking.AsConnectivityFailure(err); ok {
		n.EntityID = failure.EntityID
		n.StatusCode = failure.StatusCode
		if failure.EntityID == "" {
			n.Kind = KindDirectoryFailure
		}
		return n
	}

	var unknown *tracking.UnknownEntityError
	if errors.As(err, &unknown) {
		n.Kind = KindUnknownEntity
		n.Level = LevelError
		n.EntityID = unknown.EntityID
	}
	return n
}
