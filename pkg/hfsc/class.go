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
	"github.com/scionproto/hfsc/pkg/hfsc/curve"
	"github.com/scionproto/hfsc/pkg/hfsc/index"
	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// handle addresses a class in the scheduler's arena. Handles are stable for
// the lifetime of a class and are reused only after the class is destroyed.
type handle int32

const (
	noHandle   handle = -1
	rootHandle handle = 0
)

// ClassConfig describes a class. A zero curve means absent. On
// reconfiguration a zero curve removes the curve of the class.
type ClassConfig struct {
	// ID identifies the class.
	ID ClassID
	// Parent is the parent class. Zero selects the root on creation and
	// skips the parent check on reconfiguration.
	Parent ClassID
	// RealTime is the real-time service curve.
	RealTime curve.ServiceCurve
	// LinkShare is the link-sharing service curve.
	LinkShare curve.ServiceCurve
	// UpperLimit is the upper-limit service curve.
	UpperLimit curve.ServiceCurve
}

type class struct {
	id       ClassID
	self     handle
	parent   handle
	children []handle
	level    int
	refs     int
	filters  int
	unlinked bool

	queue Queue

	rsc, fsc, usc *curve.Internal
	// deadline and eligible follow rsc, virtual follows fsc and ulimit
	// follows usc.
	deadline curve.Runtime
	eligible curve.Runtime
	virtual  curve.Runtime
	ulimit   curve.Runtime

	total uint64 // bytes served in the subtree
	cumul uint64 // bytes served by the real-time criterion

	e, d   uint64
	vt     uint64
	f      uint64
	myf    uint64
	myfadj uint64
	cfmin  uint64

	vtadj        uint64
	vtoff        uint64
	cvtmin       uint64
	cvtmax       uint64
	cvtoff       uint64
	pcvtoff      uint64
	vtperiod     uint64
	parentperiod uint64
	nactive      int

	// vtIdx and cfIdx hold the active children.
	vtIdx *index.Index[handle]
	cfIdx *index.Index[handle]

	packets, bytes, drops uint64
}

func (c *class) isLeaf() bool {
	return len(c.children) == 0
}

func (c *class) backlogged() bool {
	return c.queue != nil && c.queue.Len() > 0
}

func (s *Scheduler) lookup(id ClassID) *class {
	h, ok := s.byID[id]
	if !ok {
		return nil
	}
	return s.classes[h]
}

func (s *Scheduler) cl(h handle) *class {
	return s.classes[h]
}

func (s *Scheduler) root() *class {
	return s.classes[rootHandle]
}

// convertCurves converts the non-zero curves of cfg.
func convertCurves(cfg ClassConfig) (rsc, fsc, usc *curve.Internal, err error) {
	conv := func(name string, sc curve.ServiceCurve) (*curve.Internal, error) {
		if sc.IsZero() {
			return nil, nil
		}
		isc, err := curve.FromExternal(sc)
		if err != nil {
			return nil, serrors.JoinNoStack(ErrInvalidCurve, err, "class", cfg.ID,
				"curve", name)
		}
		return &isc, nil
	}
	if rsc, err = conv("realtime", cfg.RealTime); err != nil {
		return nil, nil, nil, err
	}
	if fsc, err = conv("linkshare", cfg.LinkShare); err != nil {
		return nil, nil, nil, err
	}
	if usc, err = conv("upperlimit", cfg.UpperLimit); err != nil {
		return nil, nil, nil, err
	}
	return rsc, fsc, usc, nil
}

// CreateClass adds a new class to the hierarchy. If the parent is a leaf,
// its queue is purged.
func (s *Scheduler) CreateClass(cfg ClassConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if cfg.ID == s.rootID {
		return serrors.JoinNoStack(ErrClassExists, nil, "class", cfg.ID)
	}
	parent := s.root()
	if cfg.Parent != 0 {
		if parent = s.lookup(cfg.Parent); parent == nil {
			return serrors.JoinNoStack(ErrUnknownParent, nil, "class", cfg.ID,
				"parent", cfg.Parent)
		}
	}
	if cfg.ID == 0 || cfg.ID.Minor() == 0 || cfg.ID.Major() != s.rootID.Major() {
		return serrors.JoinNoStack(ErrInvalidClassID, nil, "class", cfg.ID)
	}
	if s.lookup(cfg.ID) != nil {
		return serrors.JoinNoStack(ErrClassExists, nil, "class", cfg.ID)
	}
	rsc, fsc, usc, err := convertCurves(cfg)
	if err != nil {
		return err
	}
	if rsc == nil && fsc == nil {
		return serrors.JoinNoStack(ErrNoCurves, nil, "class", cfg.ID)
	}
	if fsc != nil && parent.self != rootHandle && parent.fsc == nil {
		return serrors.JoinNoStack(ErrInvalidHierarchy, nil, "class", cfg.ID,
			"parent", parent.id, "reason", "parent has no link-share curve")
	}
	if len(s.byID) >= s.maxClasses {
		return serrors.JoinNoStack(ErrResourceExhausted, nil, "class", cfg.ID,
			"max_classes", s.maxClasses)
	}

	cl := &class{
		id:     cfg.ID,
		parent: parent.self,
		refs:   1,
		queue:  s.newQueue(cfg.ID),
		vtIdx:  index.New[handle](),
		cfIdx:  index.New[handle](),
	}
	s.setRealTime(cl, rsc, 0)
	s.setLinkShare(cl, fsc)
	s.setUpperLimit(cl, usc, 0)
	s.alloc(cl)

	if parent.isLeaf() && parent.self != rootHandle {
		s.purge(parent)
	}
	parent.children = append(parent.children, cl.self)
	s.adjustLevels(parent)
	cl.pcvtoff = parent.cvtoff

	s.logger.Debug("Created class", "class", cl.id, "parent", parent.id,
		"rt", cfg.RealTime, "ls", cfg.LinkShare, "ul", cfg.UpperLimit)
	return nil
}

// ChangeClass replaces the curves of an existing class. A zero curve in cfg
// removes the corresponding curve, so cfg always describes the complete
// class. The new curves take effect immediately. A backlogged class
// recomputes its deadline and virtual time at the current instant.
func (s *Scheduler) ChangeClass(cfg ClassConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	cl := s.lookup(cfg.ID)
	if cl == nil {
		return serrors.JoinNoStack(ErrUnknownClass, nil, "class", cfg.ID)
	}
	if cfg.Parent != 0 {
		if cl.parent == noHandle || s.cl(cl.parent).id != cfg.Parent {
			return serrors.JoinNoStack(ErrParentMismatch, nil, "class", cfg.ID,
				"parent", cfg.Parent)
		}
	}
	rsc, fsc, usc, err := convertCurves(cfg)
	if err != nil {
		return err
	}
	if cl.self == rootHandle {
		if rsc != nil || fsc != nil || usc != nil {
			return serrors.JoinNoStack(ErrInvalidHierarchy, nil, "class", cfg.ID,
				"reason", "root carries no curves")
		}
		return nil
	}
	if rsc == nil && fsc == nil {
		return serrors.JoinNoStack(ErrNoCurves, nil, "class", cfg.ID)
	}
	switch {
	case fsc != nil && cl.fsc == nil:
		if cl.parent != rootHandle && s.cl(cl.parent).fsc == nil {
			return serrors.JoinNoStack(ErrInvalidHierarchy, nil, "class", cfg.ID,
				"reason", "parent has no link-share curve")
		}
	case fsc == nil && cl.fsc != nil:
		for _, h := range cl.children {
			if s.cl(h).fsc != nil {
				return serrors.JoinNoStack(ErrInvalidHierarchy, nil, "class", cfg.ID,
					"reason", "children have link-share curves")
			}
		}
	}

	now := s.now()
	backlogged := cl.backlogged()
	hadRT, hadLS := cl.rsc != nil, cl.fsc != nil
	if rsc != nil {
		s.setRealTime(cl, rsc, now)
	} else if hadRT {
		if backlogged {
			s.eligible.Remove(cl.self)
		}
		cl.rsc = nil
		cl.e, cl.d = 0, 0
	}
	if fsc == nil && hadLS {
		if backlogged && cl.nactive > 0 {
			s.propagateVF(cl, 0, true)
		}
		cl.fsc = nil
	}
	if usc != nil {
		s.setUpperLimit(cl, usc, now)
	} else {
		cl.usc = nil
		cl.myf, cl.myfadj = 0, 0
	}
	if fsc != nil {
		s.setLinkShare(cl, fsc)
	}

	if backlogged {
		if cl.rsc != nil {
			next, _ := cl.queue.PeekLen()
			if hadRT {
				s.updateED(cl, uint64(next))
			} else {
				s.initED(cl, uint64(next))
			}
		}
		if cl.fsc != nil {
			if hadLS {
				s.updateVF(cl, 0)
			} else {
				s.initVF(cl)
			}
		}
		s.throttled = false
	}
	s.logger.Debug("Changed class", "class", cl.id, "rt", cfg.RealTime,
		"ls", cfg.LinkShare, "ul", cfg.UpperLimit)
	return nil
}

// DeleteClass removes a leaf class. Its queue is purged first. The class is
// destroyed once the last reference obtained with Get is released.
func (s *Scheduler) DeleteClass(id ClassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	cl := s.lookup(id)
	if cl == nil {
		return serrors.JoinNoStack(ErrUnknownClass, nil, "class", id)
	}
	switch {
	case cl.self == rootHandle:
		return serrors.JoinNoStack(ErrClassBusy, nil, "class", id, "reason", "root")
	case cl.level > 0:
		return serrors.JoinNoStack(ErrClassBusy, nil, "class", id, "reason", "has children")
	case cl.filters > 0:
		return serrors.JoinNoStack(ErrClassBusy, nil, "class", id, "reason", "has filters",
			"filters", cl.filters)
	}

	parent := s.cl(cl.parent)
	delete(s.byID, id)
	parent.children = removeHandle(parent.children, cl.self)
	s.adjustLevels(parent)
	s.purge(cl)
	cl.unlinked = true
	s.put(cl)
	s.logger.Info("Deleted class", "class", id)
	return nil
}

func (s *Scheduler) setRealTime(cl *class, rsc *curve.Internal, now uint64) {
	if rsc == nil {
		return
	}
	cl.rsc = rsc
	cl.deadline = curve.NewRuntime(*rsc, now, cl.cumul)
	cl.eligible = eligibleCurve(cl.deadline, rsc)
}

func (s *Scheduler) setLinkShare(cl *class, fsc *curve.Internal) {
	if fsc == nil {
		return
	}
	cl.fsc = fsc
	cl.virtual = curve.NewRuntime(*fsc, cl.vt, cl.total)
}

func (s *Scheduler) setUpperLimit(cl *class, usc *curve.Internal, now uint64) {
	if usc == nil {
		return
	}
	cl.usc = usc
	cl.ulimit = curve.NewRuntime(*usc, now, cl.total)
}

// eligibleCurve derives the eligible curve from the deadline curve. For a
// concave curve both are equal, for a convex one the eligible curve is linear
// with the slope of the second segment.
func eligibleCurve(deadline curve.Runtime, rsc *curve.Internal) curve.Runtime {
	eligible := deadline
	if rsc.Convex() {
		eligible.DX, eligible.DY = 0, 0
	}
	return eligible
}

// adjustLevels recomputes the level of cl and all its ancestors.
func (s *Scheduler) adjustLevels(cl *class) {
	for {
		level := 0
		for _, h := range cl.children {
			if l := s.cl(h).level + 1; l > level {
				level = l
			}
		}
		cl.level = level
		if cl.parent == noHandle {
			return
		}
		cl = s.cl(cl.parent)
	}
}

// purge drops the backlog of cl and makes it passive.
func (s *Scheduler) purge(cl *class) {
	if cl.queue == nil {
		return
	}
	n := cl.queue.Len()
	cl.queue.Reset()
	if n == 0 {
		return
	}
	s.updateVF(cl, 0)
	s.setPassive(cl)
	s.qlen -= n
	cl.drops += uint64(n)
	s.counters.Drops += uint64(n)
	s.metrics.dropped(cl.id, ReasonPurged, n)
	s.metrics.backlog(s.qlen)
}

func (s *Scheduler) alloc(cl *class) {
	if n := len(s.free); n > 0 {
		cl.self = s.free[n-1]
		s.free = s.free[:n-1]
		s.classes[cl.self] = cl
	} else {
		cl.self = handle(len(s.classes))
		s.classes = append(s.classes, cl)
	}
	s.byID[cl.id] = cl.self
}

// put drops a reference to cl and destroys it when the last one is gone.
func (s *Scheduler) put(cl *class) {
	cl.refs--
	if cl.refs > 0 || !cl.unlinked {
		return
	}
	if cl.queue != nil {
		cl.queue.Reset()
	}
	s.classes[cl.self] = nil
	s.free = append(s.free, cl.self)
}

func removeHandle(hs []handle, h handle) []handle {
	for i, x := range hs {
		if x == h {
			return append(hs[:i], hs[i+1:]...)
		}
	}
	return hs
}
