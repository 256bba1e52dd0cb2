// Copyright 2026 ETH Zurich
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shaper drives a hierarchical fair service curve scheduler with
// synthetic traffic and transmits its output on a paced link.
//
// A Link owns the scheduler. Sources enqueue packets into the link, the link
// dequeues them and holds every packet for its serialization time before it
// hands it to a Sink. While the scheduler holds packets back, the link parks
// until either a new packet arrives or the scheduler's watchdog resumes it.
package shaper

import (
	"context"
	"errors"
	"time"

	"k8s.io/utils/clock"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/log"
	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// Sink receives the packets transmitted by a Link.
type Sink interface {
	Deliver(p hfsc.Packet, at time.Time)
}

// SinkFunc is a function that implements Sink.
type SinkFunc func(p hfsc.Packet, at time.Time)

func (f SinkFunc) Deliver(p hfsc.Packet, at time.Time) {
	f(p, at)
}

// LinkConfig configures a Link.
type LinkConfig struct {
	// Rate is the transmission rate in bytes per second. Zero transmits
	// without delay.
	Rate uint64
	// Clock paces the transmission and drives the watchdog. It defaults to
	// the real clock.
	Clock clock.WithDelayedExecution
	// Scheduler is the base configuration of the scheduler. Clock and Resume
	// are set by the link.
	Scheduler hfsc.Config
	// NewScheduler creates the scheduler. It defaults to hfsc.New.
	NewScheduler func(hfsc.Config) (*hfsc.Scheduler, error)
	// Logger defaults to the root logger.
	Logger log.Logger
	// Metrics are updated if not nil.
	Metrics *Metrics
}

// Link transmits the output of a scheduler.
type Link struct {
	sched   *hfsc.Scheduler
	clock   clock.WithDelayedExecution
	rate    uint64
	sink    Sink
	logger  log.Logger
	metrics *Metrics
	wake    chan struct{}
}

// NewLink creates a link delivering to sink.
func NewLink(cfg LinkConfig, sink Sink) (*Link, error) {
	if sink == nil {
		return nil, serrors.New("sink must not be nil")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.NewScheduler == nil {
		cfg.NewScheduler = hfsc.New
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Root()
	}
	l := &Link{
		clock:   cfg.Clock,
		rate:    cfg.Rate,
		sink:    sink,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		wake:    make(chan struct{}, 1),
	}
	sc := cfg.Scheduler
	sc.Clock = cfg.Clock
	sc.Resume = l.notify
	if sc.Logger == nil {
		sc.Logger = cfg.Logger
	}
	sched, err := cfg.NewScheduler(sc)
	if err != nil {
		return nil, serrors.Wrap("creating scheduler", err)
	}
	l.sched = sched
	return l, nil
}

// Scheduler returns the scheduler of the link.
func (l *Link) Scheduler() *hfsc.Scheduler {
	return l.sched
}

// Enqueue hands p to the scheduler and wakes the transmitter.
func (l *Link) Enqueue(p hfsc.Packet) error {
	if err := l.sched.Enqueue(p); err != nil {
		return err
	}
	l.notify()
	return nil
}

// Close closes the scheduler. Run returns once it notices.
func (l *Link) Close() {
	l.sched.Close()
	l.notify()
}

func (l *Link) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run transmits packets until ctx is done or the link is closed. An
// inconsistent scheduler is reset and the link keeps running.
func (l *Link) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		p, err := l.sched.Dequeue()
		switch {
		case errors.Is(err, hfsc.ErrClosed):
			return nil
		case errors.Is(err, hfsc.ErrInconsistent):
			l.logger.Error("Resetting inconsistent scheduler", "err", err)
			l.metrics.reset()
			l.sched.Reset()
			continue
		case err != nil:
			return serrors.Wrap("dequeueing", err)
		}
		if p == nil {
			select {
			case <-ctx.Done():
			case <-l.wake:
			}
			continue
		}
		if !sleep(ctx, l.clock, l.serialization(p.Len())) {
			return nil
		}
		now := l.clock.Now()
		l.metrics.delivered(p, now)
		l.sink.Deliver(p, now)
	}
	return nil
}

// serialization returns the time n bytes occupy the link.
func (l *Link) serialization(n int) time.Duration {
	if l.rate == 0 {
		return 0
	}
	return time.Duration(uint64(n) * uint64(time.Second) / l.rate)
}

// sleep waits for d on clk. It reports false if ctx ended first.
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := clk.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return true
	}
}
