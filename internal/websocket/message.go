package websocket

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/frostdev-ops/ha-trend-monitor/internal/core/poller"
)

// Message types for WebSocket communication
const (
	// Server to client
	MessageTypeConnection   = "connection"
	MessageTypeSnapshot     = "snapshot"
	MessageTypeNotification = "notification"
	MessageTypeSelection    = "selection"
	MessageTypeHeartbeat    = "heartbeat"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"

	// Client to server
	MessageTypePing         = "ping"
	MessageTypeGetSnapshot  = "get_snapshot"
	MessageTypeSetSelection = "set_selection"
)

// Message represents a WebSocket message
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() []byte {
	m.Timestamp = time.Now().UTC()
	data, _ := json.Marshal(m)
	return data
}

// UnmarshalJSON accepts RFC3339 timestamps as well as Unix seconds or
// milliseconds, given as numbers or strings.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      string                 `json:"type"`
		Data      map[string]interface{} `json:"data"`
		Timestamp interface{}            `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Type = raw.Type
	m.Data = raw.Data
	m.Timestamp = parseTimestamp(raw.Timestamp)
	return nil
}

// parseTimestamp falls back to the current time for missing or invalid
// input. Values above 1e12 are taken as milliseconds.
func parseTimestamp(v interface{}) time.Time {
	fromUnix := func(n int64) time.Time {
		if n > 1e12 {
			return time.Unix(0, n*int64(time.Millisecond))
		}
		return time.Unix(n, 0)
	}

	switch ts := v.(type) {
	case string:
		if n, err := strconv.ParseInt(ts, 10, 64); err == nil {
			return fromUnix(n)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
	case float64:
		return fromUnix(int64(ts))
	case int64:
		return fromUnix(ts)
	case int:
		return fromUnix(int64(ts))
	}
	return time.Now()
}

// SnapshotMessage wraps a poll snapshot.
func SnapshotMessage(snap poller.Snapshot) Message {
	return Message{
		Type: MessageTypeSnapshot,
		Data: map[string]interface{}{
			"sequence":               snap.Sequence,
			"rows":                   snap.Rows,
			"selection":              snap.Selection,
			"directory_size":         snap.DirectorySize,
			"directory_refreshed_at": snap.DirectoryRefreshedAt,
			"taken_at":               snap.TakenAt,
		},
	}
}

// NotificationMessage wraps a failure notification.
func NotificationMessage(n poller.Notification) Message {
	return Message{
		Type: MessageTypeNotification,
		Data: map[string]interface{}{
			"kind":        n.Kind,
			"level":       n.Level,
			"entity_id":   n.EntityID,
			"status_code": n.StatusCode,
			"message":     n.Message,
			"time":        n.Time,
		},
	}
}

// SelectionMessage announces the tracked ids after a change.
func SelectionMessage(ids []string) Message {
	return Message{
		Type: MessageTypeSelection,
		Data: map[string]interface{}{
			"entity_ids": ids,
		},
	}
}

// ErrorMessage reports a failed client request.
func ErrorMessage(request, message string) Message {
	return Message{
		Type: MessageTypeError,
		Data: map[string]interface{}{
			"request": request,
			"message": message,
		},
	}
}

// stringSlice converts a decoded JSON array into strings, skipping other
// element types.
func stringSlice(v interface{}) ([]string, bool) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
