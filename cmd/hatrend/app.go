package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
	"github.com/frostdev-ops/ha-trend-monitor/internal/config"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/metrics"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/poller"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/tracking"
	"github.com/frostdev-ops/ha-trend-monitor/pkg/logger"
)

// app holds the components shared by the commands that talk to Home
// Assistant.
type app struct {
	cfg       *config.Config
	log       *logger.BatchLogger
	collector *metrics.PrometheusCollector
	client    *homeassistant.Client
	directory *tracking.Directory
	set       *tracking.Set
}

// loadConfig reads and validates the configuration, applying command line
// overrides. The server section is not checked here.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if serverAddr != "" {
		cfg.Server.Address = serverAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.NeedsPrompt() {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, fmt.Errorf("server address and API key are required: %w", cfg.ValidateServer())
		}
		if err := config.NewPrompter(os.Stdin, os.Stdout).Fill(cfg); err != nil {
			return nil, err
		}
	}
	return buildApp(cfg, nil)
}

// buildApp wires the components for a complete configuration. Logs go to
// logOutput, or stderr when nil.
func buildApp(cfg *config.Config, logOutput io.Writer) (*app, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: logOutput,
	})

	collector := metrics.NewPrometheusCollector(&metrics.MetricsConfig{
		Enabled: cfg.Metrics.Enabled,
		Prefix:  cfg.Metrics.Prefix,
	})

	client, err := homeassistant.NewClient(cfg.ClientConfig(), log.Logger,
		homeassistant.WithRequestRecorder(log),
		homeassistant.WithRequestRecorder(metrics.NewGatewayRecorder(collector)),
	)
	if err != nil {
		return nil, err
	}

	directory := tracking.NewDirectory(client, log.Logger)
	set := tracking.NewSet(directory, client, tracking.Options{
		PlottableDomains: cfg.Tracking.PlottableDomains,
		HistoryLimit:     cfg.Tracking.HistoryLimit,
		Logger:           log.Logger,
	})

	log.WithFields(logrus.Fields{
		"server": client.BaseURL(),
		"source": cfg.Source,
	}).Debug("Configuration loaded")

	return &app{
		cfg:       cfg,
		log:       log,
		collector: collector,
		client:    client,
		directory: directory,
		set:       set,
	}, nil
}

// connect checks the server answers and loads the entity directory.
func (a *app) connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	haConfig, err := a.client.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", a.client.BaseURL(), err)
	}
	a.log.WithFields(logrus.Fields{
		"version":  haConfig.Version,
		"location": haConfig.LocationName,
	}).Info("Connected to Home Assistant")

	err = a.directory.Refresh(ctx)
	a.collector.RecordDirectoryRefresh(err == nil, a.directory.Len())
	if err != nil {
		return err
	}
	return nil
}

func (a *app) newLoop(publishers ...poller.Publisher) *poller.Loop {
	return poller.NewLoop(a.set, a.directory, poller.Config{
		Interval:        a.cfg.Poll.Interval,
		DirectoryResync: a.cfg.Poll.DirectoryResync,
		Logger:          a.log.Logger,
		Metrics:         a.collector,
		Publishers:      publishers,
	})
}

// startTracking starts loop and applies the initial selection. Adding an
// entity already reads it once, so no extra tick runs here. With nothing
// selected the empty snapshot is published as is.
func (a *app) startTracking(ctx context.Context, loop *poller.Loop, ids []string) error {
	if err := loop.Start(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		_, err := loop.Publish(ctx)
		return err
	}

	// per-entity failures are already reported by the loop
	var merr *multierror.Error
	if err := loop.SetSelection(ctx, ids); err != nil && !errors.As(err, &merr) {
		return err
	}
	return nil
}

func (a *app) close() {
	a.log.FlushPending()
}
