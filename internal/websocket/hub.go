package websocket

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/ha-trend-monitor/internal/core/metrics"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/poller"
)

// Controller is the part of the poll loop that clients may drive.
type Controller interface {
	Snapshot() poller.Snapshot
	SetSelection(ctx context.Context, ids []string) error
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	logger     *logrus.Logger
	metrics    metrics.MetricsCollector
	controller Controller

	heartbeatInterval time.Duration

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Statistics
	stats *HubStats

	lastSelection []string
}

// HubStats contains hub statistics
type HubStats struct {
	ConnectedClients int       `json:"connected_clients"`
	TotalConnections int64     `json:"total_connections"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	LastActivity     time.Time `json:"last_activity"`
}

// NewHub creates a new WebSocket hub. controller may be nil, in which case
// client requests other than ping are rejected.
func NewHub(logger *logrus.Logger, collector metrics.MetricsCollector, controller Controller) *Hub {
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Hub{
		clients:           make(map[*Client]bool),
		broadcast:         make(chan []byte, 256),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		done:              make(chan struct{}),
		logger:            logger,
		metrics:           collector,
		controller:        controller,
		heartbeatInterval: 30 * time.Second,
		stats: &HubStats{
			LastActivity: time.Now(),
		},
	}
}

// Run handles client registration, unregistration and broadcasting until
// ctx is cancelled. All connected clients are closed on return.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ConnectedClients = len(h.clients)
	h.stats.LastActivity = time.Now()
	h.metrics.RecordWebSocketConnection("connect")

	h.logger.WithFields(logrus.Fields{
		"client_id":         client.ID,
		"remote_addr":       client.RemoteAddr,
		"connected_clients": len(h.clients),
	}).Info("WebSocket client connected")

	welcome := Message{
		Type: MessageTypeConnection,
		Data: map[string]interface{}{
			"status":    "connected",
			"client_id": client.ID,
		},
	}
	client.trySend(welcome.ToJSON())

	if h.controller != nil {
		client.trySend(SnapshotMessage(h.controller.Snapshot()).ToJSON())
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closeSend()
		h.stats.ConnectedClients = len(h.clients)
		h.stats.LastActivity = time.Now()
		h.metrics.RecordWebSocketConnection("disconnect")

		h.logger.WithFields(logrus.Fields{
			"client_id":         client.ID,
			"connected_clients": len(h.clients),
		}).Info("WebSocket client disconnected")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.unregisterClient(client)
	}
}

func (h *Hub) broadcastMessage(message []byte) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.stats.MessagesSent++
	h.stats.LastActivity = time.Now()
	h.mu.Unlock()

	var slow []*Client
	for _, client := range clients {
		if sent, _ := client.trySend(message); sent {
			h.metrics.RecordWebSocketConnection("message_sent")
			continue
		}
		slow = append(slow, client)
	}

	// the hub goroutine owns unregister, so drop slow clients directly
	for _, client := range slow {
		h.logger.WithField("client_id", client.ID).Warn("WebSocket client send buffer full, disconnecting")
		h.unregisterClient(client)
	}

	h.logger.WithFields(logrus.Fields{
		"message_size": len(message),
		"clients_sent": len(clients) - len(slow),
	}).Debug("Message broadcasted to WebSocket clients")
}

func (h *Hub) sendHeartbeat() {
	heartbeat := Message{
		Type: MessageTypeHeartbeat,
		Data: map[string]interface{}{
			"clients": h.GetClientCount(),
		},
	}
	h.broadcastMessage(heartbeat.ToJSON())
}

// BroadcastToAll broadcasts a message to all connected clients
func (h *Hub) BroadcastToAll(message Message) {
	data := message.ToJSON()
	select {
	case h.broadcast <- data:
	default:
		h.logger.WithField("message_type", message.Type).Warn("Broadcast channel is full, message dropped")
	}
}

// PublishSnapshot broadcasts snap, preceded by a selection message when the
// tracked ids changed since the previous snapshot.
func (h *Hub) PublishSnapshot(snap poller.Snapshot) {
	h.mu.Lock()
	changed := !reflect.DeepEqual(h.lastSelection, snap.Selection)
	if changed {
		h.lastSelection = append([]string(nil), snap.Selection...)
	}
	h.mu.Unlock()

	if changed {
		h.BroadcastToAll(SelectionMessage(snap.Selection))
	}
	h.BroadcastToAll(SnapshotMessage(snap))
}

// PublishNotification broadcasts a failure notification.
func (h *Hub) PublishNotification(n poller.Notification) {
	h.BroadcastToAll(NotificationMessage(n))
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() *HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	statsCopy := *h.stats
	statsCopy.ConnectedClients = len(h.clients)
	return &statsCopy
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetClientByID returns a client by its ID, or nil if not found
func (h *Hub) GetClientByID(clientID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.ID == clientID {
			return client
		}
	}

	return nil
}

func (h *Hub) messageReceived() {
	h.mu.Lock()
	h.stats.MessagesReceived++
	h.stats.LastActivity = time.Now()
	h.mu.Unlock()
	h.metrics.RecordWebSocketConnection("message_received")
}
