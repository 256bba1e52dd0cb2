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
	"maps"
	"slices"
	"sync"

	"github.com/scionproto/hfsc/pkg/hfsc/curve"
	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// ClassStats is a snapshot of a class. Times are in ticks since the creation
// of the scheduler, curve.TicksPerSecond ticks make a second.
type ClassStats struct {
	ID     ClassID
	Parent ClassID
	Level  int
	// Period counts the link-share backlog periods.
	Period uint64
	// Work is the number of bytes served in the subtree.
	Work uint64
	// RTWork is the number of bytes served by the real-time criterion.
	RTWork   uint64
	QueueLen int
	Packets  uint64
	Bytes    uint64
	Drops    uint64

	Eligible    uint64
	Deadline    uint64
	VirtualTime uint64
	FitTime     uint64
	OwnFitTime  uint64
	Active      int

	RealTime   curve.ServiceCurve
	LinkShare  curve.ServiceCurve
	UpperLimit curve.ServiceCurve
}

// Stats returns a snapshot of the class with the given ID.
func (s *Scheduler) Stats(id ClassID) (ClassStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl := s.lookup(id)
	if cl == nil {
		return ClassStats{}, serrors.JoinNoStack(ErrUnknownClass, nil, "class", id)
	}
	return s.stats(cl), nil
}

// Walk calls fn for every class in ascending ID order until fn returns
// false. fn must not call into the scheduler.
func (s *Scheduler) Walk(fn func(ClassStats) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range slices.Sorted(maps.Keys(s.byID)) {
		if !fn(s.stats(s.lookup(id))) {
			return
		}
	}
}

func (s *Scheduler) stats(cl *class) ClassStats {
	st := ClassStats{
		ID:          cl.id,
		Level:       cl.level,
		Period:      cl.vtperiod,
		Work:        cl.total,
		RTWork:      cl.cumul,
		Packets:     cl.packets,
		Bytes:       cl.bytes,
		Drops:       cl.drops,
		Eligible:    cl.e,
		Deadline:    cl.d,
		VirtualTime: cl.vt,
		FitTime:     cl.f,
		OwnFitTime:  cl.myf,
		Active:      cl.nactive,
	}
	if cl.parent != noHandle {
		st.Parent = s.cl(cl.parent).id
	}
	if cl.queue != nil {
		st.QueueLen = cl.queue.Len()
	}
	if cl.rsc != nil {
		st.RealTime = cl.rsc.External()
	}
	if cl.fsc != nil {
		st.LinkShare = cl.fsc.External()
	}
	if cl.usc != nil {
		st.UpperLimit = cl.usc.External()
	}
	return st
}

// Root returns the ID of the root class.
func (s *Scheduler) Root() ClassID {
	return s.rootID
}

// SetDefaultClass sets the class receiving unclassified packets. The class
// does not need to exist yet.
func (s *Scheduler) SetDefaultClass(id ClassID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultClass = id
}

// SetClassifier replaces the classifier. A nil classifier leaves packets
// without priority to the default class.
func (s *Scheduler) SetClassifier(c Classifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifier = c
}

// DefaultClass returns the class receiving unclassified packets.
func (s *Scheduler) DefaultClass() ClassID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultClass
}

// Requeue puts p in front of all queued packets. The next Dequeue returns it
// without a scheduling decision.
func (s *Scheduler) Requeue(p Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.requeue = slices.Insert(s.requeue, 0, p)
	s.qlen++
	s.counters.Requeues++
	s.metrics.backlog(s.qlen)
	return nil
}

// Drop drops one packet of the active leaf that was least recently dropped
// from. Only queues implementing Dropper are considered. It returns the length
// of the dropped packet, or 0 if nothing was dropped.
func (s *Scheduler) Drop() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	var victim *class
	var length int
	s.droplist.Ascend(func(h handle, _ uint64) bool {
		cl := s.cl(h)
		d, ok := cl.queue.(Dropper)
		if !ok {
			return true
		}
		if length = d.Drop(); length > 0 {
			victim = cl
			return false
		}
		return true
	})
	if victim == nil {
		return 0
	}
	if victim.backlogged() {
		s.droplist.Update(victim.self, 0)
	} else {
		s.updateVF(victim, 0)
		s.setPassive(victim)
	}
	victim.drops++
	s.counters.Drops++
	s.qlen--
	s.metrics.dropped(victim.id, ReasonDropped, 1)
	s.metrics.backlog(s.qlen)
	return length
}

// Graft replaces the queue of a leaf class and returns the previous one. The
// class is purged first. A nil queue installs a new default queue.
func (s *Scheduler) Graft(id ClassID, q Queue) (Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	cl := s.lookup(id)
	if cl == nil {
		return nil, serrors.JoinNoStack(ErrUnknownClass, nil, "class", id)
	}
	if !s.isLeafClass(cl) {
		return nil, serrors.JoinNoStack(ErrNotLeaf, nil, "class", id)
	}
	if q == nil {
		q = s.newQueue(id)
	}
	q.Reset()
	s.purge(cl)
	old := cl.queue
	cl.queue = q
	s.logger.Debug("Grafted queue", "class", id)
	return old, nil
}

// Reset purges all queues and restarts every class as if it was just
// created. The hierarchy and the curves are kept.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.reset()
}

func (s *Scheduler) reset() {
	for _, cl := range s.classes {
		if cl == nil {
			continue
		}
		resetClass(cl)
	}
	clear(s.requeue)
	s.requeue = s.requeue[:0]
	s.eligible.Clear()
	s.droplist.Clear()
	s.timer.Cancel()
	s.throttled = false
	s.qlen = 0
	s.metrics.backlog(0)
}

func resetClass(cl *class) {
	cl.total, cl.cumul = 0, 0
	cl.e, cl.d = 0, 0
	cl.vt, cl.vtadj, cl.vtoff = 0, 0, 0
	cl.cvtmin, cl.cvtmax, cl.cvtoff, cl.pcvtoff = 0, 0, 0, 0
	cl.vtperiod, cl.parentperiod = 0, 0
	cl.f, cl.myf, cl.myfadj, cl.cfmin = 0, 0, 0, 0
	cl.nactive = 0
	cl.vtIdx.Clear()
	cl.cfIdx.Clear()
	if cl.queue != nil {
		cl.queue.Reset()
	}
	if cl.rsc != nil {
		cl.deadline = curve.NewRuntime(*cl.rsc, 0, 0)
		cl.eligible = eligibleCurve(cl.deadline, cl.rsc)
	}
	if cl.fsc != nil {
		cl.virtual = curve.NewRuntime(*cl.fsc, 0, 0)
	}
	if cl.usc != nil {
		cl.ulimit = curve.NewRuntime(*cl.usc, 0, 0)
	}
}

// ClassRef is a counted reference to a class. A deleted class is destroyed
// only after all references are released.
type ClassRef struct {
	s    *Scheduler
	h    handle
	id   ClassID
	once sync.Once
}

// Get returns a reference to the class with the given ID.
func (s *Scheduler) Get(id ClassID) (*ClassRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl := s.lookup(id)
	if cl == nil {
		return nil, serrors.JoinNoStack(ErrUnknownClass, nil, "class", id)
	}
	cl.refs++
	return &ClassRef{s: s, h: cl.self, id: id}, nil
}

// ID returns the ID of the referenced class.
func (r *ClassRef) ID() ClassID {
	return r.id
}

// Release drops the reference. Further calls are no-ops and a released
// reference no longer accepts packets.
func (r *ClassRef) Release() {
	r.once.Do(func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		r.s.put(r.s.cl(r.h))
		r.h = noHandle
	})
}

// BindFilter records a filter attached below parent that selects class id.
// The parent must be strictly above the class. A zero parent skips the
// check. A class with bound filters cannot be deleted.
func (s *Scheduler) BindFilter(parent, id ClassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl := s.lookup(id)
	if cl == nil {
		return serrors.JoinNoStack(ErrUnknownClass, nil, "class", id)
	}
	if parent != 0 {
		p := s.lookup(parent)
		if p == nil {
			return serrors.JoinNoStack(ErrUnknownParent, nil, "class", id, "parent", parent)
		}
		if p.level <= cl.level {
			return serrors.JoinNoStack(ErrInvalidHierarchy, nil, "class", id,
				"parent", parent, "reason", "filter parent not above class")
		}
	}
	cl.filters++
	return nil
}

// UnbindFilter releases a filter binding of class id.
func (s *Scheduler) UnbindFilter(id ClassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl := s.lookup(id)
	if cl == nil {
		return serrors.JoinNoStack(ErrUnknownClass, nil, "class", id)
	}
	if cl.filters > 0 {
		cl.filters--
	}
	return nil
}
