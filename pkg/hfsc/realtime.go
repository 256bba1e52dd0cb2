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

// initED starts a real-time backlog period of cl. next is the length of the
// head-of-line packet.
func (s *Scheduler) initED(cl *class, next uint64) {
	now := s.now()
	cl.deadline = cl.deadline.Min(*cl.rsc, now, cl.cumul)
	cl.eligible = eligibleCurve(cl.deadline, cl.rsc)
	cl.e = cl.eligible.Y2X(cl.cumul)
	cl.d = cl.deadline.Y2X(cl.cumul + next)
	s.eligible.Insert(cl.self, cl.e)
}

// updateED recomputes eligible time and deadline after real-time service.
func (s *Scheduler) updateED(cl *class, next uint64) {
	cl.e = cl.eligible.Y2X(cl.cumul)
	cl.d = cl.deadline.Y2X(cl.cumul + next)
	s.eligible.Update(cl.self, cl.e)
}

// updateD recomputes the deadline after link-share service. The eligible
// time is unaffected.
func (s *Scheduler) updateD(cl *class, next uint64) {
	cl.d = cl.deadline.Y2X(cl.cumul + next)
}

// minDeadline returns the class with the smallest deadline among the classes
// eligible at now. Among equal deadlines the class eligible first wins.
func (s *Scheduler) minDeadline(now uint64) *class {
	var best *class
	s.eligible.AscendUpTo(now, func(h handle, _ uint64) bool {
		if cl := s.cl(h); best == nil || cl.d < best.d {
			best = cl
		}
		return true
	})
	return best
}
