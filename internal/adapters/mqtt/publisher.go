package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/ha-trend-monitor/internal/config"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/poller"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/tracking"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	DefaultTimeout = 5 * time.Second
)

// Client is the part of paho.Client the publisher uses.
type Client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// OptionsFromConfig builds paho options with a retained "offline" will on
// the bridge state topic.
func OptionsFromConfig(cfg config.MQTTConfig) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "hatrend_" + uuid.NewString()[:8]
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetWill(bridgeStateTopic(cfg.BaseTopic), PayloadOffline, 0, true)
	return opts
}

// Publisher mirrors snapshots and notifications to an MQTT broker. It
// implements poller.Publisher.
type Publisher struct {
	client  Client
	cfg     config.MQTTConfig
	logger  *logrus.Logger
	timeout time.Duration

	mu        sync.Mutex
	selection string
}

// NewPublisher wraps client. A nil client is created from cfg.
func NewPublisher(client Client, cfg config.MQTTConfig, logger *logrus.Logger) *Publisher {
	if client == nil {
		client = paho.NewClient(OptionsFromConfig(cfg))
	}
	return &Publisher{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		timeout: DefaultTimeout,
	}
}

// Connect connects to the broker and marks the bridge online.
func (p *Publisher) Connect() error {
	if err := wait(p.client.Connect(), p.timeout, "connect"); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s:%d: %w", p.cfg.Host, p.cfg.Port, err)
	}
	token := p.client.Publish(p.BridgeStateTopic(), 0, true, PayloadOnline)
	if err := wait(token, p.timeout, "publish"); err != nil {
		return fmt.Errorf("failed to publish bridge state: %w", err)
	}
	p.logger.WithField("broker", fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)).Info("Connected to MQTT broker")
	return nil
}

// Close marks the bridge offline and disconnects.
func (p *Publisher) Close() {
	token := p.client.Publish(p.BridgeStateTopic(), 0, true, PayloadOffline)
	if err := wait(token, p.timeout, "publish"); err != nil {
		p.logger.WithError(err).Warn("Failed to publish offline state")
	}
	p.client.Disconnect(250)
}

func (p *Publisher) BridgeStateTopic() string {
	return bridgeStateTopic(p.cfg.BaseTopic)
}

// EntityStateTopic maps sensor.kitchen to <base>/sensor/kitchen/state.
func (p *Publisher) EntityStateTopic(entityID string) string {
	return fmt.Sprintf("%s/%s/state", p.cfg.BaseTopic, strings.Replace(entityID, ".", "/", 1))
}

func (p *Publisher) SelectionTopic() string {
	return p.cfg.BaseTopic + "/selection"
}

func (p *Publisher) NotificationTopic() string {
	return p.cfg.BaseTopic + "/notifications"
}

type rowPayload struct {
	FriendlyName string    `json:"friendly_name"`
	Value        string    `json:"value"`
	Unit         string    `json:"unit,omitempty"`
	Trend        string    `json:"trend"`
	TrendSymbol  string    `json:"trend_symbol"`
	State        string    `json:"state"`
	Stale        bool      `json:"stale"`
	LastError    string    `json:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func payloadFor(row tracking.Row) rowPayload {
	return rowPayload{
		FriendlyName: row.FriendlyName,
		Value:        row.DisplayValue,
		Unit:         row.Unit,
		Trend:        row.Trend.String(),
		TrendSymbol:  row.TrendSymbol,
		State:        row.State.String(),
		Stale:        row.Stale,
		LastError:    row.LastError,
		UpdatedAt:    row.UpdatedAt,
	}
}

// PublishSnapshot publishes every row to its entity topic and the
// selection when it changed.
func (p *Publisher) PublishSnapshot(snap poller.Snapshot) {
	for _, row := range snap.Rows {
		payload, err := json.Marshal(payloadFor(row))
		if err != nil {
			p.logger.WithError(err).WithField("entity_id", row.EntityID).Error("Failed to encode MQTT payload")
			continue
		}
		p.publish(p.EntityStateTopic(row.EntityID), p.cfg.Retain, payload)
	}

	selection, err := json.Marshal(snap.Selection)
	if err != nil {
		return
	}
	p.mu.Lock()
	changed := string(selection) != p.selection
	p.selection = string(selection)
	p.mu.Unlock()
	if changed {
		p.publish(p.SelectionTopic(), true, selection)
	}
}

func (p *Publisher) PublishNotification(n poller.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.logger.WithError(err).Error("Failed to encode MQTT notification")
		return
	}
	p.publish(p.NotificationTopic(), false, payload)
}

// publish does not wait for the broker. Failures are logged.
func (p *Publisher) publish(topic string, retain bool, payload []byte) {
	token := p.client.Publish(topic, p.cfg.QoS, retain, payload)
	go func() {
		if err := wait(token, p.timeout, "publish"); err != nil {
			p.logger.WithError(err).WithField("topic", topic).Warn("MQTT publish failed")
		}
	}()
}

func wait(token paho.Token, timeout time.Duration, op string) error {
	if !token.WaitTimeout(timeout) {
		return errors.New("MQTT " + op + " timed out")
	}
	return token.Error()
}

func bridgeStateTopic(baseTopic string) string {
	return baseTopic + "/bridge/state"
}
