package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/discovery"
	"github.com/frostdev-ops/ha-trend-monitor/pkg/logger"
	"github.com/frostdev-ops/ha-trend-monitor/pkg/version"
)

func domainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the entity domains known to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			for _, domain := range a.directory.Domains() {
				fmt.Fprintln(cmd.OutOrStdout(), domain)
			}
			return nil
		},
	}
}

func entitiesCmd() *cobra.Command {
	var domains []string

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List entities and their current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.connect(cmd.Context()); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tNAME\tSTATE")
			for _, s := range a.directory.EntitiesInDomains(domains...) {
				state := s.State
				if unit := s.Unit(); unit != "" {
					state += " " + unit
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.EntityID, s.FriendlyName(), state)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVarP(&domains, "domain", "d", nil, "only list these domains")
	return cmd
}

func discoverCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find Home Assistant servers on the local network",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(logger.Options{Level: logLevel})

			d, err := discovery.NewDiscoverer(nil, log.Logger, timeout)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.WithField("timeout", timeout.String()).Info("Browsing for Home Assistant servers")
			instances, err := d.Discover(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(instances) == 0 {
				fmt.Fprintln(out, "No Home Assistant servers found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tURL\tVERSION\tADDRESSES")
			for _, instance := range instances {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					instance.Name, instance.URL(), instance.Version, strings.Join(instance.Addresses, ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", discovery.DefaultTimeout, "how long to browse")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with the API key redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if cfg.Source != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", cfg.Source)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.Redacted()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetVersion())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersion())
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}
