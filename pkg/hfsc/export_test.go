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

import "time"

// LinkShareState returns the virtual time, the accumulated virtual time
// adjustment of a class and the minimum virtual time of its parent.
func LinkShareState(s *Scheduler, id ClassID) (vt, vtadj, parentMin uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl := s.lookup(id)
	return cl.vt, cl.vtadj, s.cl(cl.parent).cvtmin
}

// Throttled reports whether the scheduler waits for the watchdog and the
// tick at which it expires.
func Throttled(s *Scheduler) (bool, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.throttled, s.wakeAt
}

// TimeOf exposes the tick to wall clock conversion of the watchdog.
func TimeOf(s *Scheduler, ticks uint64) time.Time {
	return s.timeOf(ticks)
}
