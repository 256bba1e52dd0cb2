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

// Package classify provides classifiers mapping packets to scheduler classes.
//
// Classifiers are consulted hierarchically: the scheduler first asks for a
// class below the root and descends into the returned class until a leaf is
// reached. Packet contents are never inspected; classifiers act on metadata
// the packet carries.
package classify

import (
	"sync"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// Func adapts a function to the hfsc.Classifier interface.
type Func func(p hfsc.Packet, parent hfsc.ClassID) (hfsc.ClassID, bool)

// Classify calls f.
func (f Func) Classify(p hfsc.Packet, parent hfsc.ClassID) (hfsc.ClassID, bool) {
	return f(p, parent)
}

// Chain consults its classifiers in order and returns the first result.
type Chain []hfsc.Classifier

// Classify implements hfsc.Classifier.
func (c Chain) Classify(p hfsc.Packet, parent hfsc.ClassID) (hfsc.ClassID, bool) {
	for _, classifier := range c {
		if id, ok := classifier.Classify(p, parent); ok {
			return id, true
		}
	}
	return 0, false
}

// Static maps a parent class to a fixed child, regardless of the packet.
type Static map[hfsc.ClassID]hfsc.ClassID

// Classify implements hfsc.Classifier.
func (s Static) Classify(_ hfsc.Packet, parent hfsc.ClassID) (hfsc.ClassID, bool) {
	id, ok := s[parent]
	return id, ok
}

// Marked is implemented by packets that carry a mark set by an earlier
// processing stage.
type Marked interface {
	Mark() uint32
}

// Binder records filter bindings. *hfsc.Scheduler implements it.
type Binder interface {
	BindFilter(parent, id hfsc.ClassID) error
	UnbindFilter(id hfsc.ClassID) error
}

type ruleKey struct {
	parent hfsc.ClassID
	mark   uint32
}

// Mark selects classes by packet mark. Every rule is attached to a parent
// class and bound in the scheduler, so a class targeted by a rule cannot be
// deleted. Mark is safe for concurrent use.
type Mark struct {
	binder Binder

	mu    sync.RWMutex
	rules map[ruleKey]hfsc.ClassID
}

// NewMark creates an empty mark classifier. A nil binder disables binding.
func NewMark(binder Binder) *Mark {
	return &Mark{
		binder: binder,
		rules:  make(map[ruleKey]hfsc.ClassID),
	}
}

// Add directs packets with the given mark, classified below parent, to
// target. An existing rule for the same parent and mark is replaced.
func (m *Mark) Add(parent hfsc.ClassID, mark uint32, target hfsc.ClassID) error {
	// The scheduler calls Classify with its own lock held, so it must never
	// be called with m.mu held.
	if m.binder != nil {
		if err := m.binder.BindFilter(parent, target); err != nil {
			return serrors.Wrap("binding filter", err, "parent", parent, "mark", mark,
				"target", target)
		}
	}
	key := ruleKey{parent: parent, mark: mark}
	m.mu.Lock()
	old, replaced := m.rules[key]
	m.rules[key] = target
	m.mu.Unlock()
	if replaced {
		m.unbind(old)
	}
	return nil
}

// Remove deletes the rule for parent and mark. It reports whether a rule
// existed.
func (m *Mark) Remove(parent hfsc.ClassID, mark uint32) bool {
	key := ruleKey{parent: parent, mark: mark}
	m.mu.Lock()
	target, ok := m.rules[key]
	delete(m.rules, key)
	m.mu.Unlock()
	if ok {
		m.unbind(target)
	}
	return ok
}

// Len returns the number of rules.
func (m *Mark) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Classify implements hfsc.Classifier.
func (m *Mark) Classify(p hfsc.Packet, parent hfsc.ClassID) (hfsc.ClassID, bool) {
	mp, ok := p.(Marked)
	if !ok {
		return 0, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.rules[ruleKey{parent: parent, mark: mp.Mark()}]
	return id, ok
}

func (m *Mark) unbind(target hfsc.ClassID) {
	if m.binder == nil {
		return
	}
	// The class may be gone already, nothing is left to release then.
	_ = m.binder.UnbindFilter(target)
}
