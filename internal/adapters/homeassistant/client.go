package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	statesPath = "/api/states"
	configPath = "/api/config"

	DefaultRequestTimeout = 10 * time.Second
)

// RequestRecorder receives one record per completed request attempt.
type RequestRecorder interface {
	LogRequest(method, endpoint string, statusCode int, latency time.Duration, fields logrus.Fields)
}

// ClientConfig holds connection settings for a Home Assistant instance.
type ClientConfig struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRequestRecorder attaches a recorder that sees every request outcome.
// It may be given more than once.
func WithRequestRecorder(r RequestRecorder) Option {
	return func(c *Client) {
		c.recorders = append(c.recorders, r)
	}
}

// Client talks to the Home Assistant REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	recorders  []RequestRecorder
	logger     *logrus.Logger

	requestTimeout time.Duration
	maxRetries     int
	retryDelay     time.Duration
	maxRetryDelay  time.Duration
}

// NewClient validates the configuration and creates a client.
func NewClient(cfg ClientConfig, logger *logrus.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	baseURL, err := ValidateBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingToken
	}

	c := &Client{
		baseURL:        baseURL,
		token:          cfg.Token,
		logger:         logger,
		requestTimeout: cfg.RequestTimeout,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		maxRetryDelay:  cfg.MaxRetryDelay,
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryDelay <= 0 {
		c.retryDelay = time.Second
	}
	if c.maxRetryDelay < c.retryDelay {
		c.maxRetryDelay = 10 * c.retryDelay
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}

	return c, nil
}

// ValidateBaseURL checks that raw is an absolute http(s) URL with an
// explicit port and returns it without a trailing slash.
func ValidateBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	invalid := func(reason string) error {
		return withDetails(ErrInvalidURL, map[string]interface{}{
			"url":    raw,
			"reason": reason,
		})
	}

	if trimmed == "" {
		return "", invalid("address is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", invalid(err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", invalid("scheme must be http or https")
	}
	if u.Hostname() == "" {
		return "", invalid("host is missing")
	}
	if u.Port() == "" {
		return "", invalid("port is missing")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", invalid("query and fragment are not allowed")
	}
	return trimmed, nil
}

// BaseURL returns the validated base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetConfig retrieves Home Assistant configuration
func (c *Client) GetConfig(ctx context.Context) (*HAConfig, error) {
	c.logger.Debug("Getting Home Assistant configuration")

	data, err := c.DoRequest(ctx, http.MethodGet, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	var config HAConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, withDetails(ErrInvalidResponse, map[string]interface{}{
			"path":  configPath,
			"error": err.Error(),
		})
	}

	c.logger.WithFields(logrus.Fields{
		"version":  config.Version,
		"location": config.LocationName,
	}).Debug("Retrieved Home Assistant configuration")

	return &config, nil
}

// HealthCheck verifies connectivity and credentials.
func (c *Client) HealthCheck(ctx context.Context) error {
	config, err := c.GetConfig(ctx)
	if err != nil {
		return err
	}
	c.logger.WithField("version", config.Version).Debug("Health check passed")
	return nil
}

// GetStates retrieves all entity states
func (c *Client) GetStates(ctx context.Context) ([]EntityState, error) {
	c.logger.Debug("Getting all entity states")

	data, err := c.DoRequest(ctx, http.MethodGet, statesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get states: %w", err)
	}

	var states []EntityState
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, withDetails(ErrInvalidResponse, map[string]interface{}{
			"path":  statesPath,
			"error": err.Error(),
		})
	}

	c.logger.WithField("count", len(states)).Debug("Retrieved entity states")
	return states, nil
}

// GetState retrieves a specific entity state
func (c *Client) GetState(ctx context.Context, entityID string) (*EntityState, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}

	path := statesPath + "/" + url.PathEscape(entityID)
	data, err := c.DoRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get state for entity %s: %w", entityID, err)
	}

	var state EntityState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, withDetails(ErrInvalidResponse, map[string]interface{}{
			"entity_id": entityID,
			"error":     err.Error(),
		})
	}

	c.logger.WithFields(logrus.Fields{
		"entity_id": entityID,
		"state":     state.State,
	}).Trace("Retrieved entity state")

	return &state, nil
}
