// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package link

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	DefaultHeartbeatPeriod = time.Second
	DefaultYield           = 10 * time.Millisecond
)

type State int

const (
	StateAwaitingFirstContact State = iota
	StateOperating
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirstContact:
		return "awaiting-first-contact"
	case StateOperating:
		return "operating"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type LoopConfig struct {
	Link  Link
	Clock Clock

	Period time.Duration
	Yield  time.Duration
	// ContactTimeout bounds the wait for the first remote heartbeat. Zero
	// waits forever.
	ContactTimeout time.Duration

	// OnFirstContact runs once, after the first remote heartbeat and before
	// the first heartbeat is sent.
	OnFirstContact func()
	// Dispatch handles a status text and reports whether it was recognized.
	Dispatch func(text string) bool

	// Changes, when set, is polled every iteration; OnChange runs on each
	// receive.
	Changes  <-chan struct{}
	OnChange func()

	Logger hclog.Logger
}

// Loop owns a Link for its lifetime. It is single threaded: heartbeats,
// polling and dispatch all happen on the goroutine calling Run.
type Loop struct {
	cfg      LoopConfig
	state    State
	lastSent time.Time
	sent     bool
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultHeartbeatPeriod
	}
	if cfg.Yield <= 0 {
		cfg.Yield = DefaultYield
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Loop{cfg: cfg, state: StateAwaitingFirstContact}
}

func (l *Loop) State() State {
	return l.state
}

// Run waits for first contact and then services the link until ctx is done
// or the link fails. Cancellation returns nil; link failures are returned.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.awaitFirstContact(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.iterate(); err != nil {
			return err
		}
		l.cfg.Clock.Sleep(l.cfg.Yield)
	}
}

func (l *Loop) awaitFirstContact(ctx context.Context) error {
	l.cfg.Logger.Info("waiting for heartbeat")
	waitCtx := ctx
	if l.cfg.ContactTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.cfg.ContactTimeout)
		defer cancel()
	}
	if err := l.cfg.Link.WaitHeartbeat(waitCtx); err != nil {
		if ctx.Err() == nil && waitCtx.Err() != nil {
			return fmt.Errorf("no heartbeat within %s", l.cfg.ContactTimeout)
		}
		return fmt.Errorf("waiting for heartbeat: %w", err)
	}
	l.cfg.Logger.Info("heartbeat received")
	if l.cfg.OnFirstContact != nil {
		l.cfg.OnFirstContact()
	}
	l.state = StateOperating
	return nil
}

func (l *Loop) iterate() error {
	now := l.cfg.Clock.Now()
	if !l.sent || now.Sub(l.lastSent) >= l.cfg.Period {
		if err := l.cfg.Link.SendHeartbeat(); err != nil {
			return fmt.Errorf("failed to send heartbeat: %w", err)
		}
		l.lastSent = now
		l.sent = true
	}

	text, ok, err := l.cfg.Link.PollStatusText()
	if err != nil {
		return fmt.Errorf("failed to receive: %w", err)
	}
	if ok {
		recognized := l.cfg.Dispatch != nil && l.cfg.Dispatch(text)
		if !recognized {
			l.cfg.Logger.Debug("ignoring status text", "text", text)
		}
	}

	if l.cfg.Changes != nil {
		select {
		case <-l.cfg.Changes:
			if l.cfg.OnChange != nil {
				l.cfg.OnChange()
			}
		default:
		}
	}
	return nil
}
