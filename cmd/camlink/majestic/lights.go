// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package majestic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	DefaultAPI = "http://localhost"

	CommandDayMode   = "day_mode"
	CommandNightMode = "night_mode"

	dayBitrate   = 570
	nightBitrate = 900

	// Both requests share this budget. It runs on the command loop and must
	// stay well below the heartbeat period.
	lightsTimeout = 400 * time.Millisecond
)

// Lights switches Majestic between day and night profiles through its local
// HTTP API. Failures are logged, never returned to the command loop.
type Lights struct {
	base    string
	section string
	client  *http.Client
	logger  hclog.Logger
}

func NewLights(base string, logger hclog.Logger) *Lights {
	if base == "" {
		base = DefaultAPI
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Lights{
		base:    strings.TrimSuffix(base, "/"),
		section: DefaultSection,
		client:  &http.Client{Timeout: lightsTimeout},
		logger:  logger,
	}
}

// Dispatch handles day_mode and night_mode. It reports whether text was one
// of them.
func (l *Lights) Dispatch(text string) bool {
	switch text {
	case CommandDayMode:
		l.apply(false)
	case CommandNightMode:
		l.apply(true)
	default:
		return false
	}
	return true
}

func (l *Lights) apply(night bool) {
	ctx, cancel := context.WithTimeout(context.Background(), lightsTimeout)
	defer cancel()

	if err := l.SetMode(ctx, night); err != nil {
		l.logger.Warn("failed to switch light mode", "night", night, "error", err)
		return
	}
	l.logger.Info("light mode switched", "night", night)
}

// SetMode sets the bitrate for the profile and toggles night mode.
func (l *Lights) SetMode(ctx context.Context, night bool) error {
	bitrate, toggle := dayBitrate, "off"
	if night {
		bitrate, toggle = nightBitrate, "on"
	}
	if err := l.get(ctx, fmt.Sprintf("/api/v1/set?%s.bitrate=%d", l.section, bitrate)); err != nil {
		return err
	}
	return l.get(ctx, "/night/"+toggle)
}

func (l *Lights) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", l.base+path, nil)
	if err != nil {
		return err
	}
	res, err := l.client.Do(req)
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("got non OK from majestic for '%s': %d", path, res.StatusCode)
	}
	return nil
}
