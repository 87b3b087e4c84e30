package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
)

// LegacyConfigFile is the INI file written by earlier releases:
//
//	[Server]
//	Address = http://homeassistant.local:8123
//	ApiKey = <long-lived token>
const LegacyConfigFile = "haApiConfig.conf"

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Poll     PollConfig     `mapstructure:"poll" yaml:"poll"`
	Tracking TrackingConfig `mapstructure:"tracking" yaml:"tracking"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	MQTT     MQTTConfig     `mapstructure:"mqtt" yaml:"mqtt"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	// File the configuration was read from, empty when only defaults and
	// environment were used.
	Source string `mapstructure:"-" yaml:"-"`
}

// ServerConfig describes the Home Assistant instance.
type ServerConfig struct {
	Address        string        `mapstructure:"address" yaml:"address"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// MarshalYAML writes the timeout as a duration string so the output can be
// loaded back.
func (s ServerConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Address        string `yaml:"address"`
		APIKey         string `yaml:"api_key"`
		MaxRetries     int    `yaml:"max_retries"`
		RequestTimeout string `yaml:"request_timeout"`
	}{s.Address, s.APIKey, s.MaxRetries, s.RequestTimeout.String()}, nil
}

type PollConfig struct {
	Interval        time.Duration `mapstructure:"interval" yaml:"interval"`
	DirectoryResync time.Duration `mapstructure:"directory_resync" yaml:"directory_resync"`
}

func (p PollConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Interval        string `yaml:"interval"`
		DirectoryResync string `yaml:"directory_resync"`
	}{p.Interval.String(), p.DirectoryResync.String()}, nil
}

type TrackingConfig struct {
	PlottableDomains []string `mapstructure:"plottable_domains" yaml:"plottable_domains"`
	HistoryLimit     int      `mapstructure:"history_limit" yaml:"history_limit"`
	// Entities tracked at startup.
	Entities []string `mapstructure:"entities" yaml:"entities"`
}

type HTTPConfig struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	Mode           string   `mapstructure:"mode" yaml:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Prefix  string `mapstructure:"prefix" yaml:"prefix"`
}

// MQTTConfig enables mirroring snapshots to an MQTT broker.
type MQTTConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	ClientID  string `mapstructure:"client_id" yaml:"client_id"`
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"password"`
	BaseTopic string `mapstructure:"base_topic" yaml:"base_topic"`
	QoS       byte   `mapstructure:"qos" yaml:"qos"`
	Retain    bool   `mapstructure:"retain" yaml:"retain"`
}

var baseTopicPattern = regexp.MustCompile(`^[a-z0-9_]+(/[a-z0-9_]+)*$`)

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration from path, or when path is empty from
// config.yaml in ./configs or the working directory, falling back to the
// legacy INI file. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Override specific values from env
	v.BindEnv("server.address", "HA_SERVER_ADDRESS")
	v.BindEnv("server.api_key", "HA_API_KEY")
	v.BindEnv("http.port", "PORT")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("poll.interval", "HA_POLL_INTERVAL")
	v.BindEnv("mqtt.password", "MQTT_PASSWORD")

	source, err := readConfig(v, path)
	if err != nil {
		return nil, err
	}

	// the legacy INI spells the key ApiKey
	if v.GetString("server.api_key") == "" && v.GetString("server.apikey") != "" {
		v.Set("server.api_key", v.GetString("server.apikey"))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	config.Source = source

	return &config, nil
}

func readConfig(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
		if isINI(path) {
			v.SetConfigType("ini")
		}
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return path, nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return "", err
		}
	} else {
		return v.ConfigFileUsed(), nil
	}

	if _, err := os.Stat(LegacyConfigFile); err == nil {
		v.SetConfigFile(LegacyConfigFile)
		v.SetConfigType("ini")
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", LegacyConfigFile, err)
		}
		return LegacyConfigFile, nil
	}

	return "", nil
}

func isINI(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".conf", ".ini", ".cfg":
		return true
	}
	return false
}

// Validate checks everything except the server address and key, which may
// still be supplied interactively. See ValidateServer.
func (c *Config) Validate() error {
	var errors []string

	if c.Poll.Interval < time.Second {
		errors = append(errors, "poll.interval must be at least 1s")
	}
	if c.Poll.DirectoryResync < 0 {
		errors = append(errors, "poll.directory_resync must not be negative")
	}
	if c.Server.RequestTimeout <= 0 {
		errors = append(errors, "server.request_timeout must be greater than 0")
	}
	if c.Server.MaxRetries < 0 {
		errors = append(errors, "server.max_retries must be non-negative")
	}
	if c.Tracking.HistoryLimit <= 0 {
		errors = append(errors, "tracking.history_limit must be greater than 0")
	}
	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		errors = append(errors, "http.port must be between 1 and 65535")
	}
	switch c.HTTP.Mode {
	case "debug", "release", "test":
	default:
		errors = append(errors, "http.mode must be one of debug, release, test")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			errors = append(errors, "mqtt.host is required when mqtt is enabled")
		}
		if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
			errors = append(errors, "mqtt.port must be between 1 and 65535")
		}
		if c.MQTT.QoS > 2 {
			errors = append(errors, "mqtt.qos must be 0, 1 or 2")
		}
		if !baseTopicPattern.MatchString(c.MQTT.BaseTopic) {
			errors = append(errors, "mqtt.base_topic may only contain lowercase letters, digits, underscores and slashes")
		}
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errors = append(errors, "logging.format must be json or text")
	}

	// If there are validation errors, return them
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateServer checks the Home Assistant address and token. An address
// without scheme or port yields an error matching
// homeassistant.ErrInvalidURL.
func (c *Config) ValidateServer() error {
	if _, err := homeassistant.ValidateBaseURL(c.Server.Address); err != nil {
		return err
	}
	if strings.TrimSpace(c.Server.APIKey) == "" {
		return homeassistant.ErrMissingToken
	}
	return nil
}

// NeedsPrompt reports whether the address or key is missing.
func (c *Config) NeedsPrompt() bool {
	return strings.TrimSpace(c.Server.Address) == "" || strings.TrimSpace(c.Server.APIKey) == ""
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Server.APIKey != "" {
		c.Server.APIKey = redact(c.Server.APIKey)
	}
	if c.MQTT.Password != "" {
		c.MQTT.Password = "***"
	}
	c.Tracking.PlottableDomains = append([]string(nil), c.Tracking.PlottableDomains...)
	c.Tracking.Entities = append([]string(nil), c.Tracking.Entities...)
	c.HTTP.AllowedOrigins = append([]string(nil), c.HTTP.AllowedOrigins...)
	return c
}

func redact(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}

// ClientConfig converts the server section for the Home Assistant client.
func (c *Config) ClientConfig() homeassistant.ClientConfig {
	return homeassistant.ClientConfig{
		BaseURL:        c.Server.Address,
		Token:          c.Server.APIKey,
		RequestTimeout: c.Server.RequestTimeout,
		MaxRetries:     c.Server.MaxRetries,
	}
}

// ListenAddress is host:port for the HTTP server.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

func setDefaults(v *viper.Viper) {
	// Home Assistant defaults
	v.SetDefault("server.address", "")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.max_retries", 0)
	v.SetDefault("server.request_timeout", homeassistant.DefaultRequestTimeout)

	// Polling defaults
	v.SetDefault("poll.interval", "5s")
	v.SetDefault("poll.directory_resync", "0s")

	// Tracking defaults
	v.SetDefault("tracking.plottable_domains", []string{"input_number", "input_text", "number", "sensor"})
	v.SetDefault("tracking.history_limit", 120)
	v.SetDefault("tracking.entities", []string{})

	// HTTP defaults
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8099)
	v.SetDefault("http.mode", "release")
	v.SetDefault("http.allowed_origins", []string{"*"})

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.prefix", "hatrend")

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", "hatrend")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
