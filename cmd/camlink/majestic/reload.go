// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package majestic

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	ps "github.com/mitchellh/go-ps"
)

const (
	DefaultService       = "majestic"
	// Budget for the whole strategy chain. Reloads run on the command loop
	// and must stay well below the heartbeat period.
	defaultReloadTimeout = 500 * time.Millisecond
)

// Outcome of delivering a reload request.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	// The tool or facility used to signal is not available at all.
	OutcomeToolMissing
	// The tool ran but the signal was not delivered.
	OutcomeActionFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeToolMissing:
		return "tool missing"
	case OutcomeActionFailed:
		return "action failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Strategy is one way of telling the streamer to pick up a new config.
type Strategy interface {
	String() string
	Deliver(ctx context.Context) Outcome
}

// Runner runs an external command to completion.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Killall signals the service by name with killall(1). An empty Signal
// sends killall's default, SIGTERM.
type Killall struct {
	Service string
	Signal  string
	Run     Runner
}

func (k Killall) args() []string {
	if k.Signal == "" {
		return []string{k.Service}
	}
	return []string{"-" + k.Signal, k.Service}
}

func (k Killall) String() string {
	return "killall " + strings.Join(k.args(), " ")
}

func (k Killall) Deliver(ctx context.Context) Outcome {
	run := k.Run
	if run == nil {
		run = execRunner
	}
	err := run(ctx, "killall", k.args()...)
	switch {
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, exec.ErrNotFound):
		return OutcomeToolMissing
	default:
		return OutcomeActionFailed
	}
}

// ProcessSignal walks the process table and signals every process whose
// executable is Service.
type ProcessSignal struct {
	Service   string
	Signal    syscall.Signal
	Processes func() ([]ps.Process, error)
	Kill      func(pid int, sig syscall.Signal) error
}

func (p ProcessSignal) String() string {
	return fmt.Sprintf("signal %s %s", p.Signal, p.Service)
}

func (p ProcessSignal) Deliver(ctx context.Context) Outcome {
	list := p.Processes
	if list == nil {
		list = ps.Processes
	}
	kill := p.Kill
	if kill == nil {
		kill = syscall.Kill
	}

	procs, err := list()
	if err != nil {
		return OutcomeToolMissing
	}
	found := false
	for _, proc := range procs {
		if proc.Executable() != p.Service {
			continue
		}
		found = true
		if err := kill(proc.Pid(), p.Signal); err != nil {
			return OutcomeActionFailed
		}
	}
	if !found {
		return OutcomeActionFailed
	}
	return OutcomeSucceeded
}

// DefaultStrategies asks for a graceful reload first and falls back to
// terminating the service, which its supervisor restarts.
func DefaultStrategies(service string) []Strategy {
	return []Strategy{
		Killall{Service: service, Signal: "HUP"},
		Killall{Service: service},
	}
}

// ParseStrategies turns config names into strategies, in order.
//
//	hup         killall -HUP <service>
//	term        killall <service>
//	signal-hup  SIGHUP through the process table
//	signal-term SIGTERM through the process table
func ParseStrategies(names []string, service string) ([]Strategy, error) {
	if service == "" {
		service = DefaultService
	}
	if len(names) == 0 {
		return DefaultStrategies(service), nil
	}
	var res []Strategy
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "hup":
			res = append(res, Killall{Service: service, Signal: "HUP"})
		case "term":
			res = append(res, Killall{Service: service})
		case "signal-hup":
			res = append(res, ProcessSignal{Service: service, Signal: syscall.SIGHUP})
		case "signal-term":
			res = append(res, ProcessSignal{Service: service, Signal: syscall.SIGTERM})
		default:
			return nil, fmt.Errorf("unknown reload strategy '%s'. Must be one of hup, term, signal-hup or signal-term", name)
		}
	}
	return res, nil
}

type Reloader struct {
	strategies []Strategy
	timeout    time.Duration
	logger     hclog.Logger
}

func NewReloader(logger hclog.Logger, strategies ...Strategy) *Reloader {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Reloader{
		strategies: strategies,
		timeout:    defaultReloadTimeout,
		logger:     logger,
	}
}

// NotifyReload tries each strategy in order until one does not fail.
// A missing tool stops the chain: the later strategies use the same tool.
func (r *Reloader) NotifyReload() Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	for _, s := range r.strategies {
		switch outcome := s.Deliver(ctx); outcome {
		case OutcomeSucceeded:
			r.logger.Debug("reload signalled", "strategy", s.String())
			return outcome
		case OutcomeToolMissing:
			r.logger.Warn("reload tool unavailable, streamer not signalled", "strategy", s.String())
			return outcome
		default:
			r.logger.Debug("reload strategy failed", "strategy", s.String())
		}
	}
	r.logger.Warn("unable to signal streamer, crop change may require a manual restart")
	return OutcomeActionFailed
}
