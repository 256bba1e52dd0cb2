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

// Package timer implements the scheduler watchdog on top of a clock.
package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

// Timer invokes a single pending callback at a point in time. Arming it again
// replaces the pending callback.
type Timer struct {
	clock clock.WithDelayedExecution

	mu      sync.Mutex
	pending clock.Timer
	// gen invalidates callbacks of replaced or canceled timers whose Stop
	// came too late.
	gen atomic.Uint64
}

// New creates a timer on c.
func New(c clock.WithDelayedExecution) *Timer {
	return &Timer{clock: c}
}

// ArmAt invokes fn in its own goroutine no earlier than at.
func (t *Timer) ArmAt(at time.Time, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	g := t.gen.Load()
	t.pending = t.clock.AfterFunc(max(at.Sub(t.clock.Now()), 0), func() {
		if t.gen.Load() != g {
			return
		}
		go fn()
	})
}

// Cancel drops the pending callback, if any.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	t.gen.Add(1)
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}
