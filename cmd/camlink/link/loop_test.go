// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now   time.Time
	limit time.Time
	stop  context.CancelFunc
}

func newFakeClock(limit time.Duration, stop context.CancelFunc) *fakeClock {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeClock{now: start, limit: start.Add(limit), stop: stop}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.advance(d)
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
	if c.stop != nil && !c.now.Before(c.limit) {
		c.stop()
	}
}

type fakeLink struct {
	clock   *fakeClock
	events  *[]string
	sends   []time.Time
	texts   []string
	waitErr error
	block   bool
	pollErr error
	sendErr error
}

func (l *fakeLink) record(event string) {
	if l.events != nil {
		*l.events = append(*l.events, event)
	}
}

func (l *fakeLink) WaitHeartbeat(ctx context.Context) error {
	l.record("wait")
	if l.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return l.waitErr
}

func (l *fakeLink) SendHeartbeat() error {
	l.record("send")
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sends = append(l.sends, l.clock.Now())
	return nil
}

func (l *fakeLink) PollStatusText() (string, bool, error) {
	if l.pollErr != nil {
		return "", false, l.pollErr
	}
	if len(l.texts) == 0 {
		return "", false, nil
	}
	text := l.texts[0]
	l.texts = l.texts[1:]
	return text, true, nil
}

func (l *fakeLink) Close() error {
	return nil
}

func gaps(sends []time.Time) []time.Duration {
	res := []time.Duration(nil)
	for i := 1; i < len(sends); i++ {
		res = append(res, sends[i].Sub(sends[i-1]))
	}
	return res
}

func TestLoopHeartbeatCadence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := newFakeClock(10500*time.Millisecond, cancel)
	link := &fakeLink{clock: clock}

	loop := NewLoop(LoopConfig{Link: link, Clock: clock})
	require.NoError(t, loop.Run(ctx))

	assert.InDelta(t, 10, len(link.sends), 1)
	for _, gap := range gaps(link.sends) {
		assert.GreaterOrEqual(t, gap, time.Second)
	}
	assert.Equal(t, StateOperating, loop.State())
}

func TestLoopSlowDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := newFakeClock(20*time.Second, cancel)
	texts := make([]string, 1000)
	for i := range texts {
		texts[i] = "zoom_in"
	}
	link := &fakeLink{clock: clock, texts: texts}

	const dispatchCost = 300 * time.Millisecond
	loop := NewLoop(LoopConfig{
		Link:  link,
		Clock: clock,
		Dispatch: func(string) bool {
			clock.advance(dispatchCost)
			return true
		},
	})
	require.NoError(t, loop.Run(ctx))

	require.NotEmpty(t, link.sends)
	for _, gap := range gaps(link.sends) {
		assert.GreaterOrEqual(t, gap, DefaultHeartbeatPeriod)
		assert.LessOrEqual(t, gap, DefaultHeartbeatPeriod+dispatchCost+DefaultYield)
	}
}

func TestLoopFirstContactOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := newFakeClock(50*time.Millisecond, cancel)
	events := []string{}
	link := &fakeLink{clock: clock, events: &events}

	loop := NewLoop(LoopConfig{
		Link:  link,
		Clock: clock,
		OnFirstContact: func() {
			events = append(events, "setup")
		},
	})
	require.NoError(t, loop.Run(ctx))

	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, []string{"wait", "setup", "send"}, events[:3])
}

func TestLoopDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := newFakeClock(time.Second, cancel)
	link := &fakeLink{clock: clock, texts: []string{"zoom_in", "hello", "zoom_out"}}

	var seen []string
	loop := NewLoop(LoopConfig{
		Link:  link,
		Clock: clock,
		Dispatch: func(text string) bool {
			seen = append(seen, text)
			return text != "hello"
		},
	})
	require.NoError(t, loop.Run(ctx))
	assert.Equal(t, []string{"zoom_in", "hello", "zoom_out"}, seen)
}

func TestLoopChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := newFakeClock(time.Second, cancel)
	link := &fakeLink{clock: clock}

	changes := make(chan struct{}, 1)
	changes <- struct{}{}
	calls := 0
	loop := NewLoop(LoopConfig{
		Link:     link,
		Clock:    clock,
		Changes:  changes,
		OnChange: func() { calls++ },
	})
	require.NoError(t, loop.Run(ctx))
	assert.Equal(t, 1, calls)
}

func TestLoopCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	link := &fakeLink{block: true}

	setup := false
	loop := NewLoop(LoopConfig{Link: link, OnFirstContact: func() { setup = true }})
	require.NoError(t, loop.Run(ctx))
	assert.False(t, setup)
	assert.Equal(t, StateAwaitingFirstContact, loop.State())
}

func TestLoopContactTimeout(t *testing.T) {
	link := &fakeLink{block: true}

	loop := NewLoop(LoopConfig{Link: link, ContactTimeout: 10 * time.Millisecond})
	err := loop.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no heartbeat")
	assert.Empty(t, link.sends)
}

func TestLoopWaitFailure(t *testing.T) {
	link := &fakeLink{waitErr: ErrLinkClosed}

	loop := NewLoop(LoopConfig{Link: link})
	err := loop.Run(context.Background())
	assert.True(t, errors.Is(err, ErrLinkClosed))
}

func TestLoopFatalErrors(t *testing.T) {
	broken := errors.New("input/output error")

	t.Run("poll", func(t *testing.T) {
		clock := newFakeClock(time.Hour, nil)
		link := &fakeLink{clock: clock, pollErr: broken}
		err := NewLoop(LoopConfig{Link: link, Clock: clock}).Run(context.Background())
		assert.True(t, errors.Is(err, broken))
	})

	t.Run("send", func(t *testing.T) {
		clock := newFakeClock(time.Hour, nil)
		link := &fakeLink{clock: clock, sendErr: broken}
		err := NewLoop(LoopConfig{Link: link, Clock: clock}).Run(context.Background())
		assert.True(t, errors.Is(err, broken))
	})
}
