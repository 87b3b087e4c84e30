package tracking

import (
	"errors"
	"fmt"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
)

// ErrUnknownEntity is returned when an entity id is not present in the
// directory. During polling it means the directory and the tracking set
// have drifted apart.
var ErrUnknownEntity = errors.New("entity is not in the directory")

// UnknownEntityError carries the id that was missing from the directory.
// It matches ErrUnknownEntity with errors.Is.
type UnknownEntityError struct {
	EntityID string
}

func unknownEntity(entityID string) error {
	return &UnknownEntityError{EntityID: entityID}
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnknownEntity, e.EntityID)
}

func (e *UnknownEntityError) Unwrap() error {
	return ErrUnknownEntity
}

// ConnectivityFailure reports a failed gateway call. StatusCode is the HTTP
// status returned by Home Assistant, or 0 when no response was received.
type ConnectivityFailure struct {
	EntityID   string
	StatusCode int
	Err        error
}

func newConnectivityFailure(entityID string, err error) *ConnectivityFailure {
	return &ConnectivityFailure{
		EntityID:   entityID,
		StatusCode: homeassistant.StatusCode(err),
		Err:        err,
	}
}

func (e *ConnectivityFailure) Error() string {
	target := e.EntityID
	if target == "" {
		target = "entity directory"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("connectivity failure for %s: %v", target, e.Err)
	}
	return fmt.Sprintf("connectivity failure for %s (status %d): %v", target, e.StatusCode, e.Err)
}

func (e *ConnectivityFailure) Unwrap() error {
	return e.Err
}

// AsConnectivityFailure extracts a ConnectivityFailure from err.
func AsConnectivityFailure(err error) (*ConnectivityFailure, bool) {
	var cf *ConnectivityFailure
	if errors.As(err, &cf) {
		return cf, true
	}
	return nil, false
}
