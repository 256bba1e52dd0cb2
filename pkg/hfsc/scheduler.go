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

package hfsc

import (
	"math"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/scionproto/hfsc/pkg/hfsc/curve"
	"github.com/scionproto/hfsc/pkg/hfsc/fifo"
	"github.com/scionproto/hfsc/pkg/hfsc/index"
	"github.com/scionproto/hfsc/pkg/hfsc/timer"
	"github.com/scionproto/hfsc/pkg/log"
	"github.com/scionproto/hfsc/pkg/private/serrors"
)

const (
	// DefaultRoot is the ID of the root class if none is configured.
	DefaultRoot ClassID = 1 << 16
	// DefaultQueueLimit is the capacity of the default leaf queues.
	DefaultQueueLimit = 1000
	// DefaultMaxClasses is the default bound on the number of classes.
	DefaultMaxClasses = 1<<16 - 1

	tick = time.Second / curve.TicksPerSecond
)

// Config configures a Scheduler. All fields are optional.
type Config struct {
	// Root is the ID of the root class. Its major number is shared by all
	// classes of the scheduler.
	Root ClassID
	// DefaultClass receives packets the classifier cannot place.
	DefaultClass ClassID
	// Clock is the time source of the scheduler.
	Clock clock.WithDelayedExecution
	// Timer arms the watchdog. It defaults to a timer on Clock.
	Timer Timer
	// Resume is invoked when the watchdog fires, i.e., when a throttled
	// scheduler may have a packet to dequeue again.
	Resume func()
	// NewQueue creates the queue of a new class. It defaults to a bounded
	// FIFO with QueueLimit packets.
	NewQueue func(ClassID) Queue
	// QueueLimit is the capacity of the default FIFO.
	QueueLimit int
	// Classifier maps packets to classes.
	Classifier Classifier
	// MaxClasses bounds the number of classes including the root.
	MaxClasses int
	// Logger is used for configuration events and inconsistencies.
	Logger log.Logger
	// Metrics are updated if not nil.
	Metrics *Metrics
}

// Counters are the scheduler wide statistics.
type Counters struct {
	Packets    uint64
	Bytes      uint64
	Drops      uint64
	Overlimits uint64
	Requeues   uint64
	Backlog    int
}

// Scheduler is a hierarchical fair service curve scheduler.
type Scheduler struct {
	mu sync.Mutex

	clock      clock.PassiveClock
	epoch      time.Time
	timer      Timer
	resume     func()
	newQueue   func(ClassID) Queue
	classifier Classifier
	logger     log.Logger
	metrics    *Metrics
	maxClasses int

	rootID       ClassID
	defaultClass ClassID
	classes      []*class
	free         []handle
	byID         map[ClassID]handle

	// eligible holds the active real-time leaves keyed by eligible time.
	eligible *index.Index[handle]
	// droplist holds the active leaves in least recently dropped order.
	droplist *index.Index[handle]
	requeue  []Packet
	qlen     int

	throttled bool
	wakeAt    uint64
	closed    bool
	counters  Counters
}

// New creates a scheduler with an empty hierarchy consisting of the root.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Root == 0 {
		cfg.Root = DefaultRoot
	}
	if cfg.Root.Minor() != 0 {
		return nil, serrors.JoinNoStack(ErrInvalidClassID, nil, "root", cfg.Root,
			"reason", "root minor must be zero")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Timer == nil {
		cfg.Timer = timer.New(cfg.Clock)
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = DefaultQueueLimit
	}
	if cfg.NewQueue == nil {
		limit := cfg.QueueLimit
		cfg.NewQueue = func(ClassID) Queue {
			return fifo.New[Packet](limit)
		}
	}
	if cfg.MaxClasses <= 0 {
		cfg.MaxClasses = DefaultMaxClasses
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Root()
	}

	s := &Scheduler{
		clock:        cfg.Clock,
		epoch:        cfg.Clock.Now(),
		timer:        cfg.Timer,
		resume:       cfg.Resume,
		newQueue:     cfg.NewQueue,
		classifier:   cfg.Classifier,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		maxClasses:   cfg.MaxClasses,
		rootID:       cfg.Root,
		defaultClass: cfg.DefaultClass,
		byID:         make(map[ClassID]handle),
		eligible:     index.New[handle](),
		droplist:     index.New[handle](),
	}
	s.alloc(&class{
		id:     cfg.Root,
		parent: noHandle,
		refs:   1,
		vtIdx:  index.New[handle](),
		cfIdx:  index.New[handle](),
	})
	return s, nil
}

// now returns the current time in ticks since the scheduler was created.
func (s *Scheduler) now() uint64 {
	return uint64(s.clock.Since(s.epoch) / tick)
}

// timeOf converts a tick value into wall clock time. Values beyond the range
// of time.Duration saturate.
func (s *Scheduler) timeOf(ticks uint64) time.Time {
	if ticks > uint64(math.MaxInt64/tick) {
		return s.epoch.Add(math.MaxInt64)
	}
	return s.epoch.Add(time.Duration(ticks) * tick)
}

// Enqueue classifies p and appends it to the queue of the selected leaf.
func (s *Scheduler) Enqueue(p Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cl := s.classify(p)
	if cl == nil {
		s.counters.Drops++
		s.metrics.dropped(0, ReasonUnclassified, 1)
		return serrors.JoinNoStack(ErrUnclassified, nil, "default", s.defaultClass)
	}
	return s.enqueue(cl, p)
}

// EnqueueTo appends p to the queue of the referenced leaf.
func (s *Scheduler) EnqueueTo(ref *ClassRef, p Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if ref.h == noHandle || s.cl(ref.h).unlinked {
		return serrors.JoinNoStack(ErrUnknownClass, nil, "class", ref.id)
	}
	return s.enqueue(s.cl(ref.h), p)
}

func (s *Scheduler) enqueue(cl *class, p Packet) error {
	if cl.self == rootHandle || !cl.isLeaf() {
		return serrors.JoinNoStack(ErrNotLeaf, nil, "class", cl.id)
	}
	length := p.Len()
	if t, ok := p.(Tagged); ok {
		t.SetClass(cl.id)
	}
	if err := cl.queue.Push(p); err != nil {
		cl.drops++
		s.counters.Drops++
		s.metrics.dropped(cl.id, ReasonCongested, 1)
		return serrors.JoinNoStack(ErrCongested, err, "class", cl.id)
	}
	if cl.queue.Len() == 1 {
		s.setActive(cl, uint64(length))
		s.throttled = false
	}
	cl.packets++
	cl.bytes += uint64(length)
	s.counters.Packets++
	s.counters.Bytes += uint64(length)
	s.qlen++
	s.metrics.backlog(s.qlen)
	return nil
}

// classify selects the leaf for p: the class named by the priority of p, the
// classifier result, or the default class.
func (s *Scheduler) classify(p Packet) *class {
	if pp, ok := p.(Prioritized); ok {
		if cl := s.lookup(pp.Priority()); cl != nil && s.isLeafClass(cl) {
			return cl
		}
	}
	if s.classifier != nil {
		cur := s.root()
		for {
			id, ok := s.classifier.Classify(p, cur.id)
			if !ok {
				break
			}
			cl := s.lookup(id)
			if cl == nil {
				break
			}
			if s.isLeafClass(cl) {
				return cl
			}
			if cl.level >= cur.level {
				// Only descending the hierarchy terminates.
				break
			}
			cur = cl
		}
	}
	if cl := s.lookup(s.defaultClass); cl != nil && s.isLeafClass(cl) {
		return cl
	}
	return nil
}

func (s *Scheduler) isLeafClass(cl *class) bool {
	return cl.self != rootHandle && cl.isLeaf()
}

// Dequeue returns the next packet to transmit. It returns a nil packet and a
// nil error if no packet may be sent now. ErrInconsistent is returned if a
// broken invariant is detected; the scheduler keeps running.
func (s *Scheduler) Dequeue() (Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.qlen == 0 {
		return nil, nil
	}
	if len(s.requeue) > 0 {
		p := s.requeue[0]
		s.requeue[0] = nil
		s.requeue = s.requeue[1:]
		s.throttled = false
		s.qlen--
		s.metrics.dequeued(s.rootID, CriterionRequeue, p.Len())
		s.metrics.backlog(s.qlen)
		return p, nil
	}

	now := s.now()
	if s.throttled && now < s.wakeAt {
		return nil, nil
	}

	criterion := CriterionRealTime
	cl := s.minDeadline(now)
	if cl == nil {
		criterion = CriterionLinkShare
		if cl = s.minVT(now); cl == nil {
			s.counters.Overlimits++
			s.metrics.overlimit()
			return nil, s.scheduleWatchdog(now)
		}
	}

	p, ok := cl.queue.Pop()
	if !ok {
		return nil, s.inconsistent("active class has an empty queue", "class", cl.id,
			"criterion", criterion)
	}
	length := uint64(p.Len())
	s.updateVF(cl, length)
	realtime := criterion == CriterionRealTime
	if realtime {
		cl.cumul += length
	}
	if cl.queue.Len() != 0 {
		if cl.rsc != nil {
			next, _ := cl.queue.PeekLen()
			if realtime {
				s.updateED(cl, uint64(next))
			} else {
				s.updateD(cl, uint64(next))
			}
		}
	} else {
		s.setPassive(cl)
	}

	s.throttled = false
	s.qlen--
	s.metrics.dequeued(cl.id, criterion, int(length))
	s.metrics.backlog(s.qlen)
	return p, nil
}

func (s *Scheduler) setActive(cl *class, length uint64) {
	if cl.rsc != nil {
		s.initED(cl, length)
	}
	if cl.fsc != nil {
		s.initVF(cl)
	}
	s.droplist.Insert(cl.self, 0)
}

// setPassive removes cl from the eligible index and the drop list. The
// virtual time indexes are handled by updateVF.
func (s *Scheduler) setPassive(cl *class) {
	if cl.rsc != nil {
		s.eligible.Remove(cl.self)
	}
	s.droplist.Remove(cl.self)
}

func (s *Scheduler) inconsistent(msg string, ctx ...any) error {
	s.metrics.inconsistency()
	s.logger.Error(msg, ctx...)
	return serrors.JoinNoStack(ErrInconsistent, nil, append([]any{"reason", msg}, ctx...)...)
}

// Len returns the number of queued packets.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qlen
}

// Counters returns the scheduler wide statistics.
func (s *Scheduler) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters
	c.Backlog = s.qlen
	return c
}

// Close purges all queues and cancels the watchdog. Every later operation
// fails with ErrClosed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.reset()
	s.closed = true
}
