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

package shaper

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/log"
	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// Enqueuer accepts packets. *Link implements it.
type Enqueuer interface {
	Enqueue(p hfsc.Packet) error
}

// Source offers packets of a fixed size at a fixed byte rate. Packets the
// scheduler refuses are counted and the source carries on.
type Source struct {
	// Name identifies the source in logs and metrics.
	Name string
	// Class is put into the priority field of every packet if Priority is
	// set.
	Class    hfsc.ClassID
	Priority bool
	// Mark is put on every packet.
	Mark uint32
	// Rate is the offered load in bytes per second. Zero is unlimited.
	Rate uint64
	// PacketSize is the length of every packet.
	PacketSize int
	// Count stops the source after that many packets. Zero is unbounded.
	Count int
	// Start delays the first packet.
	Start time.Duration

	Target  Enqueuer
	Clock   clock.Clock
	// Logger defaults to the logger of the run context.
	Logger  log.Logger
	Metrics *Metrics

	sent     atomic.Uint64
	rejected atomic.Uint64
}

// Sent returns the number of packets the scheduler accepted.
func (s *Source) Sent() uint64 {
	return s.sent.Load()
}

// Rejected returns the number of packets the scheduler refused.
func (s *Source) Rejected() uint64 {
	return s.rejected.Load()
}

// Run emits packets until ctx is done, Count packets were offered or the
// target is closed.
func (s *Source) Run(ctx context.Context) error {
	if s.PacketSize <= 0 {
		return serrors.New("invalid packet size", "source", s.Name, "packet_size", s.PacketSize)
	}
	clk := s.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := s.Logger
	if logger == nil {
		ctx, logger = log.WithLabels(ctx, "source", s.Name)
	}
	if !sleep(ctx, clk, s.Start) {
		return nil
	}
	logger.Debug("Source started", "rate", s.Rate, "packet_size", s.PacketSize)
	defer func() {
		logger.Debug("Source stopped", "sent", s.Sent(), "rejected", s.Rejected())
	}()

	limit := rate.Inf
	if s.Rate > 0 {
		limit = rate.Limit(s.Rate)
	}
	limiter := rate.NewLimiter(limit, s.PacketSize)
	for seq := uint64(0); s.Count == 0 || seq < uint64(s.Count); seq++ {
		now := clk.Now()
		r := limiter.ReserveN(now, s.PacketSize)
		if !sleep(ctx, clk, r.DelayFrom(now)) {
			return nil
		}
		p := &Packet{
			Size:    s.PacketSize,
			Seq:     seq,
			FwMark:  s.Mark,
			Created: clk.Now(),
		}
		if s.Priority {
			p.Prio = s.Class
		}
		err := s.Target.Enqueue(p)
		switch {
		case err == nil:
			s.sent.Add(1)
		case errors.Is(err, hfsc.ErrCongested):
			s.rejected.Add(1)
			s.Metrics.rejected(s.Name, ReasonCongested)
		case errors.Is(err, hfsc.ErrUnclassified):
			s.rejected.Add(1)
			s.Metrics.rejected(s.Name, ReasonUnclassified)
		case errors.Is(err, hfsc.ErrClosed):
			return nil
		default:
			return serrors.Wrap("enqueueing packet", err, "source", s.Name, "seq", seq)
		}
	}
	return nil
}
