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

import "github.com/scionproto/hfsc/pkg/hfsc/curve"

// scheduleWatchdog arms the timer for the earliest instant at which a class
// becomes eligible or fits again and throttles Dequeue until then. If no
// class can ever become schedulable again, the timer stays disarmed and
// Dequeue is throttled until the next activation or reconfiguration.
func (s *Scheduler) scheduleWatchdog(now uint64) error {
	var next uint64
	found := false
	if _, e, ok := s.eligible.Min(); ok {
		next, found = e, true
	}
	if root := s.root(); root.cfIdx.Len() > 0 {
		if !found || root.cfmin < next {
			next, found = root.cfmin, true
		}
	}
	if !found {
		return s.inconsistent("backlogged scheduler without schedulable class",
			"backlog", s.qlen)
	}
	s.throttled = true
	s.wakeAt = next
	if next == curve.Infinity {
		s.timer.Cancel()
		return nil
	}
	s.timer.ArmAt(s.timeOf(next), s.watchdog)
	return nil
}

// watchdog runs in the timer's context once the throttling period is over.
func (s *Scheduler) watchdog() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.throttled = false
	resume := s.resume
	s.mu.Unlock()

	if resume != nil {
		resume()
	}
}
