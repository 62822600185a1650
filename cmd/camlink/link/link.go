// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package link attaches camlink to the flight controller and runs the
// heartbeat and command loop on top of that connection.
package link

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultBaud = 57600

	// System 1 is the autopilot; 2 is conventionally the first companion.
	DefaultSystemID = 2
	// MAV_COMP_ID_ONBOARD_COMPUTER.
	DefaultComponentID = 191
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrLinkClosed     = errors.New("link closed")
)

// Identity is the (system, component) pair this node uses on the bus. It
// must not change for the lifetime of the process.
type Identity struct {
	SystemID    uint8
	ComponentID uint8
}

var DefaultIdentity = Identity{SystemID: DefaultSystemID, ComponentID: DefaultComponentID}

// Link is an open session with the flight controller.
type Link interface {
	// WaitHeartbeat blocks until a heartbeat from the remote side arrives.
	WaitHeartbeat(ctx context.Context) error
	SendHeartbeat() error
	// PollStatusText returns the next pending status text without blocking.
	// ok is false when nothing is pending.
	PollStatusText() (text string, ok bool, err error)
	Close() error
}

// Clock is the loop's view of time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}
