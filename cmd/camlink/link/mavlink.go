// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package link

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/hashicorp/go-hclog"
)

const (
	heartbeatID = 0

	// Highest MAVLink protocol version camlink speaks.
	mavlinkVersion = 3
)

// MavLink runs a MAVLink session over an already opened port.
type MavLink struct {
	name   string
	node   *gomavlib.Node
	closed bool
	logger hclog.Logger
}

// NewMavLink takes ownership of port; closing the link closes it.
func NewMavLink(name string, port io.ReadWriteCloser, id Identity, logger hclog.Logger) (*MavLink, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints: []gomavlib.EndpointConf{
			gomavlib.EndpointCustom{ReadWriteCloser: port},
		},
		Dialect:        common.Dialect,
		OutVersion:     gomavlib.V2,
		OutSystemID:    id.SystemID,
		OutComponentID: id.ComponentID,
		// Heartbeats are sent by the loop on its own schedule.
		HeartbeatDisable: true,
	})
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to start mavlink on '%s': %w", name, err)
	}
	return &MavLink{
		name:   name,
		node:   node,
		logger: logger,
	}, nil
}

func (l *MavLink) String() string {
	return l.name
}

func (l *MavLink) WaitHeartbeat(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-l.node.Events():
			if !ok {
				l.closed = true
				return ErrLinkClosed
			}
			switch e := evt.(type) {
			case *gomavlib.EventFrame:
				if e.Message().GetID() == heartbeatID {
					l.logger.Debug("remote heartbeat", "system", e.SystemID(), "component", e.ComponentID())
					return nil
				}
			case *gomavlib.EventChannelClose:
				l.closed = true
				return ErrLinkClosed
			}
		}
	}
}

func (l *MavLink) SendHeartbeat() error {
	if l.closed {
		return ErrLinkClosed
	}
	l.node.WriteMessageAll(&common.MessageHeartbeat{
		Type:           common.MAV_TYPE_ONBOARD_CONTROLLER,
		Autopilot:      common.MAV_AUTOPILOT_INVALID,
		BaseMode:       0,
		CustomMode:     0,
		SystemStatus:   0,
		MavlinkVersion: mavlinkVersion,
	})
	return nil
}

func (l *MavLink) PollStatusText() (string, bool, error) {
	for {
		select {
		case evt, ok := <-l.node.Events():
			if !ok {
				l.closed = true
				return "", false, ErrLinkClosed
			}
			switch e := evt.(type) {
			case *gomavlib.EventFrame:
				msg, isText := e.Message().(*common.MessageStatustext)
				if !isText {
					continue
				}
				if text, ok := statusText(msg.Text, msg.ChunkSeq); ok {
					return text, true, nil
				}
			case *gomavlib.EventChannelClose:
				l.closed = true
				return "", false, ErrLinkClosed
			}
		default:
			return "", false, nil
		}
	}
}

func (l *MavLink) Close() error {
	l.node.Close()
	return nil
}

// statusText extracts a command from a STATUSTEXT payload. Only the first
// chunk of a chunked text is used; commands are always short.
func statusText(raw string, chunkSeq uint8) (string, bool) {
	if chunkSeq != 0 {
		return "", false
	}
	text := raw
	if idx := strings.IndexByte(text, 0); idx >= 0 {
		text = text[:idx]
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimRight(text, "\r")
	if text == "" {
		return "", false
	}
	return text, true
}
