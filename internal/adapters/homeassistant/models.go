package homeassistant

import (
	"strings"
	"time"
)

// HAConfig is the subset of /api/config used to verify a connection.
type HAConfig struct {
	Version      string     `json:"version"`
	LocationName string     `json:"location_name"`
	TimeZone     string     `json:"time_zone"`
	Components   []string   `json:"components"`
	UnitSystem   UnitSystem `json:"unit_system"`
	State        string     `json:"state"`
}

// UnitSystem represents Home Assistant unit system
type UnitSystem struct {
	Length      string `json:"length"`
	Mass        string `json:"mass"`
	Temperature string `json:"temperature"`
	Volume      string `json:"volume"`
}

// EntityState represents a Home Assistant entity state. State is always
// textual, even for numeric sensors.
type EntityState struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
	LastUpdated time.Time              `json:"last_updated"`
	Context     Context                `json:"context"`
}

// Context represents the context of an entity state change
type Context struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	UserID   *string `json:"user_id"`
}

// FriendlyName returns attributes.friendly_name, falling back to the id.
func (s EntityState) FriendlyName() string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}

// Unit returns attributes.unit_of_measurement when present.
func (s EntityState) Unit() string {
	unit, _ := s.Attributes["unit_of_measurement"].(string)
	return unit
}

// Domain returns the segment of the entity id before the first '.'.
func (s EntityState) Domain() string {
	domain, _, _ := SplitEntityID(s.EntityID)
	return domain
}

// SplitEntityID splits "domain.object_id". ok is false when the id has no
// '.' separator.
func SplitEntityID(entityID string) (domain, objectID string, ok bool) {
	domain, objectID, ok = strings.Cut(entityID, ".")
	if !ok {
		return "", entityID, false
	}
	return domain, objectID, true
}
