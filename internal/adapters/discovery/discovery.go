package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
)

const (
	serviceType = "_home-assistant._tcp"
	domain      = "local."

	DefaultTimeout = 5 * time.Second
)

// Resolver browses mDNS services. *zeroconf.Resolver implements it.
type Resolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Instance is a Home Assistant server found on the local network.
type Instance struct {
	Name         string   `json:"name" yaml:"name"`
	Host         string   `json:"host" yaml:"host"`
	Port         int      `json:"port" yaml:"port"`
	Addresses    []string `json:"addresses" yaml:"addresses"`
	BaseURL      string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	InternalURL  string   `json:"internal_url,omitempty" yaml:"internal_url,omitempty"`
	ExternalURL  string   `json:"external_url,omitempty" yaml:"external_url,omitempty"`
	Version      string   `json:"version,omitempty" yaml:"version,omitempty"`
	UUID         string   `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	LocationName string   `json:"location_name,omitempty" yaml:"location_name,omitempty"`
}

// URL picks the address to use as server.address: the advertised internal
// URL, then base_url, then the first IPv4 address and port.
func (i Instance) URL() string {
	for _, candidate := range []string{i.InternalURL, i.BaseURL} {
		if candidate == "" {
			continue
		}
		if normalized, err := homeassistant.ValidateBaseURL(candidate); err == nil {
			return normalized
		}
	}
	if len(i.Addresses) == 0 || i.Port == 0 {
		return ""
	}
	return "http://" + net.JoinHostPort(i.Addresses[0], strconv.Itoa(i.Port))
}

// Discoverer finds Home Assistant servers with mDNS.
type Discoverer struct {
	resolver Resolver
	logger   *logrus.Logger
	timeout  time.Duration
}

// NewDiscoverer creates a discoverer. A nil resolver uses zeroconf on all
// interfaces.
func NewDiscoverer(resolver Resolver, logger *logrus.Logger, timeout time.Duration) (*Discoverer, error) {
	if resolver == nil {
		r, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
		}
		resolver = r
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Discoverer{resolver: resolver, logger: logger, timeout: timeout}, nil
}

// Discover browses for the configured timeout and returns the instances
// seen, sorted by name. Repeated announcements are merged.
func (d *Discoverer) Discover(ctx context.Context) ([]Instance, error) {
	d.logger.Debug("Starting mDNS discovery scan")

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 10)
	if err := d.resolver.Browse(ctx, serviceType, domain, entries); err != nil {
		return nil, fmt.Errorf("mDNS discovery failed: %w", err)
	}

	found := make(map[string]Instance)
	collect := func(entry *zeroconf.ServiceEntry) {
		instance, ok := fromEntry(entry)
		if !ok {
			return
		}
		key := instance.UUID
		if key == "" {
			key = instance.Name
		}
		if _, seen := found[key]; !seen {
			d.logger.WithFields(logrus.Fields{
				"name": instance.Name,
				"url":  instance.URL(),
			}).Debug("Discovered Home Assistant instance")
		}
		found[key] = instance
	}

loop:
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				break loop
			}
			collect(entry)
		case <-ctx.Done():
			break loop
		}
	}

	instances := make([]Instance, 0, len(found))
	for _, instance := range found {
		instances = append(instances, instance)
	}
	sort.Slice(instances, func(a, b int) bool { return instances[a].Name < instances[b].Name })
	return instances, nil
}

// fromEntry converts an mDNS entry. Entries without an address are skipped.
func fromEntry(entry *zeroconf.ServiceEntry) (Instance, bool) {
	if entry == nil || (len(entry.AddrIPv4) == 0 && len(entry.AddrIPv6) == 0) {
		return Instance{}, false
	}

	instance := Instance{
		Name: entry.Instance,
		Host: strings.TrimSuffix(entry.HostName, "."),
		Port: entry.Port,
	}
	for _, ip := range entry.AddrIPv4 {
		instance.Addresses = append(instance.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		instance.Addresses = append(instance.Addresses, ip.String())
	}

	// Parse TXT records for additional information
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		switch key {
		case "base_url":
			instance.BaseURL = value
		case "internal_url":
			instance.InternalURL = value
		case "external_url":
			instance.ExternalURL = value
		case "version":
			instance.Version = value
		case "uuid":
			instance.UUID = value
		case "location_name":
			instance.LocationName = value
		}
	}

	return instance, true
}
