package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/mqtt"
	"github.com/frostdev-ops/ha-trend-monitor/internal/api"
	"github.com/frostdev-ops/ha-trend-monitor/internal/api/handlers"
	"github.com/frostdev-ops/ha-trend-monitor/internal/console"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/metrics"
	"github.com/frostdev-ops/ha-trend-monitor/internal/websocket"
)

func serveCmd() *cobra.Command {
	var (
		port       int
		withTable  bool
		entityArgs []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll tracked entities and serve them over HTTP and WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if port > 0 {
				a.cfg.HTTP.Port = port
			}
			ids := a.cfg.Tracking.Entities
			if len(entityArgs) > 0 {
				ids = entityArgs
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.connect(ctx); err != nil {
				return err
			}

			loop := a.newLoop()
			hub := websocket.NewHub(a.log.Logger, a.collector, loop)
			loop.AddPublisher(hub)
			if withTable {
				loop.AddPublisher(console.NewRenderer(cmd.OutOrStdout()))
			}
			if a.cfg.MQTT.Enabled {
				broker := mqtt.NewPublisher(nil, a.cfg.MQTT, a.log.Logger)
				if err := broker.Connect(); err != nil {
					return err
				}
				defer broker.Close()
				loop.AddPublisher(broker)
			}

			hubCtx, stopHub := context.WithCancel(context.Background())
			defer stopHub()
			go hub.Run(hubCtx)

			defer loop.Stop()
			if err := a.startTracking(ctx, loop, ids); err != nil {
				return err
			}

			var srv *http.Server
			if a.cfg.HTTP.Enabled {
				checker := metrics.NewHealthChecker(5 * time.Second)
				handlers.RegisterHealthChecks(checker, a.client, a.directory, loop)

				deps := api.Dependencies{
					Poller:    loop,
					Directory: a.directory,
					Health:    checker,
					Hub:       hub,
				}
				if a.cfg.Metrics.Enabled {
					deps.Metrics = a.collector
					deps.MetricsHandler = a.collector.Handler()
				}

				srv = &http.Server{
					Addr:         a.cfg.ListenAddress(),
					Handler:      api.NewRouter(a.cfg.HTTP, deps, a.log.Logger),
					ReadTimeout:  15 * time.Second,
					WriteTimeout: 45 * time.Second,
					IdleTimeout:  60 * time.Second,
				}

				serverErr := make(chan error, 1)
				go func() {
					a.log.WithField("address", srv.Addr).Info("Starting HTTP server")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						serverErr <- err
					}
				}()

				select {
				case err := <-serverErr:
					return err
				case <-ctx.Done():
				}
			} else {
				<-ctx.Done()
			}

			a.log.Info("Shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if srv != nil {
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.log.WithError(err).Warn("Server forced to shutdown")
				}
			}
			loop.Stop()
			stopHub()

			a.log.WithFields(logrus.Fields{
				"tracked": len(loop.Selection()),
			}).Info("Server exited")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "override http.port")
	cmd.Flags().BoolVar(&withTable, "table", false, "also print every snapshot to stdout")
	cmd.Flags().StringSliceVarP(&entityArgs, "entity", "e", nil, "entity to track (repeatable, replaces tracking.entities)")
	return cmd
}
