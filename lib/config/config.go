// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the adapter daemon.
//
// Configuration is loaded from a single YAML file specified by:
//   - WIFI_ADAPTER_CONFIG environment variable, or
//   - --config flag passed to the daemon
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable naming the config file.
const EnvVar = "WIFI_ADAPTER_CONFIG"

// Config is the daemon configuration.
type Config struct {
	// Station configures the upstream wireless network. Association
	// and authentication are handled by the platform's wireless
	// supervisor; the daemon only needs these to identify the link.
	Station StationConfig `yaml:"station"`

	// Exposed configures the host-facing interface.
	Exposed ExposedConfig `yaml:"exposed"`

	// Reconcile tunes the address reconciliation retry policy. The
	// retry counts were tuned against a flaky configuration service;
	// they are deliberate defaults, not load-bearing constants.
	Reconcile ReconcileConfig `yaml:"reconcile"`

	// Diag configures the diagnostics socket.
	Diag DiagConfig `yaml:"diag"`

	// Capture configures the optional frame capture.
	Capture CaptureConfig `yaml:"capture"`
}

// StationConfig identifies the upstream wireless network.
type StationConfig struct {
	// SSID of the upstream network.
	SSID string `yaml:"ssid"`

	// Password for the upstream network. Plaintext; the config file
	// should be mode 0600.
	Password string `yaml:"password"`

	// Interface is the OS name of the station interface, used by the
	// address poller (e.g. "wlan0").
	Interface string `yaml:"interface"`
}

// ExposedConfig configures the interface presented to the host.
type ExposedConfig struct {
	// MAC is the hardware address presented to the host. Locally
	// administered by default.
	MAC string `yaml:"mac"`

	// BaseSubnet is the /24 used before the station learns an
	// address. The exposed interface takes the .1 host address and
	// serves leases from this range.
	BaseSubnet string `yaml:"base_subnet"`

	// TAP is the OS name for the TAP device backing the exposed
	// interface (e.g. "usb0"). Empty means the platform chooses.
	TAP string `yaml:"tap"`
}

// ReconcileConfig tunes the reconciliation retry policy.
type ReconcileConfig struct {
	// StopRetries bounds attempts to stop the address service.
	StopRetries int `yaml:"stop_retries"`

	// StopInterval is the delay between stop attempts.
	StopInterval time.Duration `yaml:"stop_interval"`

	// SetRetries bounds attempts to apply an assignment.
	SetRetries int `yaml:"set_retries"`

	// SetInterval is the delay between assignment attempts.
	SetInterval time.Duration `yaml:"set_interval"`

	// StartRetries bounds attempts to start the address service.
	StartRetries int `yaml:"start_retries"`

	// StartInterval is the delay between start attempts.
	StartInterval time.Duration `yaml:"start_interval"`

	// ReadyPoll is the backend readiness polling interval.
	ReadyPoll time.Duration `yaml:"ready_poll"`

	// InstallWait bounds the readiness wait at transport install.
	InstallWait time.Duration `yaml:"install_wait"`

	// AttachWait bounds the readiness wait after a host attach. Some
	// host stacks take several seconds to wire the backend.
	AttachWait time.Duration `yaml:"attach_wait"`
}

// DiagConfig configures the diagnostics socket.
type DiagConfig struct {
	// Socket is the Unix socket path for telemetry snapshots. Empty
	// disables the diagnostics server.
	Socket string `yaml:"socket"`

	// SnapshotInterval is the period between telemetry snapshots
	// written to a connected client.
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// CaptureConfig configures the optional frame capture.
type CaptureConfig struct {
	// Enabled turns on frame capture. Off by default; capture is a
	// debugging aid and costs a copy per relayed frame.
	Enabled bool `yaml:"enabled"`

	// Path is the capture file location.
	Path string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Station: StationConfig{
			Interface: "wlan0",
		},
		Exposed: ExposedConfig{
			MAC:        "02:00:11:22:33:44",
			BaseSubnet: "192.168.42.0/24",
		},
		Reconcile: ReconcileConfig{
			StopRetries:   8,
			StopInterval:  120 * time.Millisecond,
			SetRetries:    8,
			SetInterval:   150 * time.Millisecond,
			StartRetries:  8,
			StartInterval: 150 * time.Millisecond,
			ReadyPoll:     100 * time.Millisecond,
			InstallWait:   2 * time.Second,
			AttachWait:    5 * time.Second,
		},
		Diag: DiagConfig{
			SnapshotInterval: 5 * time.Second,
		},
	}
}

// Load reads configuration from path, applying defaults for fields the
// file does not set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if _, err := net.ParseMAC(c.Exposed.MAC); err != nil {
		return fmt.Errorf("exposed.mac %q: %w", c.Exposed.MAC, err)
	}
	prefix, err := netip.ParsePrefix(c.Exposed.BaseSubnet)
	if err != nil {
		return fmt.Errorf("exposed.base_subnet %q: %w", c.Exposed.BaseSubnet, err)
	}
	if !prefix.Addr().Is4() {
		return fmt.Errorf("exposed.base_subnet %q: must be IPv4", c.Exposed.BaseSubnet)
	}
	if c.Reconcile.StopRetries < 1 || c.Reconcile.SetRetries < 1 || c.Reconcile.StartRetries < 1 {
		return fmt.Errorf("reconcile retry counts must be at least 1")
	}
	if c.Capture.Enabled && c.Capture.Path == "" {
		return fmt.Errorf("capture.path is required when capture.enabled")
	}
	return nil
}

// BasePrefix returns the parsed base subnet. Call Validate first; an
// invalid subnet returns the zero Prefix.
func (c *Config) BasePrefix() netip.Prefix {
	prefix, err := netip.ParsePrefix(c.Exposed.BaseSubnet)
	if err != nil {
		return netip.Prefix{}
	}
	return prefix
}
