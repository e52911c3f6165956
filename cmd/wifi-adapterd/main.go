// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/FajarEnjoyneer/wifi-adapter/bridge"
	"github.com/FajarEnjoyneer/wifi-adapter/capture"
	"github.com/FajarEnjoyneer/wifi-adapter/diag"
	"github.com/FajarEnjoyneer/wifi-adapter/lib/config"
	"github.com/FajarEnjoyneer/wifi-adapter/lib/version"
	"github.com/FajarEnjoyneer/wifi-adapter/netif"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("wifi-adapterd", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "",
		"path to the YAML configuration file (or set "+config.EnvVar+")")
	verbose := flags.BoolP("verbose", "v", false,
		"enable debug logging (per-frame events)")
	showVersion := flags.Bool("version", false,
		"print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("wifi-adapterd %s\n", version.Full())
		return nil
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	endpoint, err := openEndpoint(cfg, logger)
	if err != nil {
		return err
	}
	defer endpoint.Close()

	forwarder, err := newStationForwarder(cfg.Station.Interface, logger)
	if err != nil {
		return fmt.Errorf("opening station forwarder: %w", err)
	}
	defer forwarder.close()

	metrics := &diag.Metrics{}
	drops := diag.NewDropRing(diag.DefaultDropRingSize)

	var captureFunc func(direction string, frame []byte)
	if cfg.Capture.Enabled {
		writer, err := capture.Create(cfg.Capture.Path)
		if err != nil {
			return fmt.Errorf("opening capture: %w", err)
		}
		defer writer.Close()
		captureFunc = writer.Record
		logger.Info("frame capture enabled", "path", cfg.Capture.Path)
	}

	// No lease service runs on this platform; assignments are recorded
	// and the host configures its side statically.
	service := netif.NewStaticAddressService()

	poller := &bridge.InterfacePoller{
		Interface: cfg.Station.Interface,
		Logger:    logger,
	}
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("starting station poller: %w", err)
	}
	defer poller.Stop()

	dongle := &bridge.Dongle{
		Station:     poller,
		Endpoint:    endpoint,
		Service:     service,
		StackInput:  forwarder.inject,
		BasePrefix:  cfg.BasePrefix(),
		Metrics:     metrics,
		Drops:       drops,
		Capture:     captureFunc,
		ReadyPoll:   cfg.Reconcile.ReadyPoll,
		InstallWait: cfg.Reconcile.InstallWait,
		AttachWait:  cfg.Reconcile.AttachWait,
		Reconciler: &netif.Reconciler{
			Service:       service,
			StartService:  true,
			StopRetries:   cfg.Reconcile.StopRetries,
			StopInterval:  cfg.Reconcile.StopInterval,
			SetRetries:    cfg.Reconcile.SetRetries,
			SetInterval:   cfg.Reconcile.SetInterval,
			StartRetries:  cfg.Reconcile.StartRetries,
			StartInterval: cfg.Reconcile.StartInterval,
			Logger:        logger,
		},
		Logger: logger,
	}
	if err := dongle.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer dongle.Stop()

	forwarder.startOutbound(dongle.ExposedHandle())

	if cfg.Diag.Socket != "" {
		server := &diag.Server{
			SocketPath: cfg.Diag.Socket,
			Metrics:    metrics,
			Drops:      drops,
			Interval:   cfg.Diag.SnapshotInterval,
			Logger:     logger,
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting diagnostics server: %w", err)
		}
		defer server.Stop()
	}

	logger.Info("wifi-adapterd running",
		"version", version.Info(),
		"station_interface", cfg.Station.Interface,
		"base_subnet", cfg.Exposed.BaseSubnet,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// loadConfig reads the configuration from the flag path, the
// environment, or built-in defaults, in that order.
func loadConfig(flagPath string, logger *slog.Logger) (*config.Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(config.EnvVar)
	}
	if path == "" {
		logger.Info("no configuration file given, using built-in defaults")
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("configuration loaded", "path", path)
	return cfg, nil
}
