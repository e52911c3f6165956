// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package main

import (
	"errors"
	"log/slog"

	"github.com/FajarEnjoyneer/wifi-adapter/lib/config"
	"github.com/FajarEnjoyneer/wifi-adapter/netif"
	"github.com/FajarEnjoyneer/wifi-adapter/transport"
)

var errUnsupportedPlatform = errors.New("wifi-adapterd requires Linux (TAP device and packet sockets)")

func openEndpoint(cfg *config.Config, logger *slog.Logger) (transport.Endpoint, error) {
	return nil, errUnsupportedPlatform
}

type stationForwarder struct{}

func newStationForwarder(interfaceName string, logger *slog.Logger) (*stationForwarder, error) {
	return nil, errUnsupportedPlatform
}

func (f *stationForwarder) inject(buffer *netif.FrameBuffer) error {
	return errUnsupportedPlatform
}

func (f *stationForwarder) startOutbound(exposed *netif.Handle) {}

func (f *stationForwarder) close() {}
