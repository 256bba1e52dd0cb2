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

// initVF activates cl for link-sharing. Starting at cl, every class whose
// first child became active joins the virtual time index of its parent.
// Fit times are propagated up to the root.
func (s *Scheduler) initVF(cl *class) {
	now := s.now()
	goActive := true
	for ; cl.parent != noHandle; cl = s.cl(cl.parent) {
		p := s.cl(cl.parent)
		if goActive {
			goActive = cl.nactive == 0
			cl.nactive++
		}

		if goActive {
			if maxH, _, ok := p.vtIdx.Max(); ok {
				// Start at the average of the smallest and largest virtual
				// time. Within the same parent period, vt never decreases.
				vt := s.cl(maxH).vt
				if p.cvtmin != 0 {
					vt = (p.cvtmin + vt) / 2
				}
				if p.vtperiod != cl.parentperiod || vt > cl.vt {
					cl.vt = vt
				}
			} else {
				// First active child of a new parent period. Moving the
				// previous maximum into the offset keeps vt + vtoff above
				// every virtual time of the last period.
				p.cvtoff += p.cvtmax
				p.cvtmax = 0
				p.cvtmin = 0
				cl.vt = 0
			}

			cl.vtoff = p.cvtoff - cl.pcvtoff
			vt := cl.vt + cl.vtoff
			cl.virtual = cl.virtual.Min(*cl.fsc, vt, cl.total)
			if cl.virtual.X == vt {
				cl.virtual.X -= cl.vtoff
				cl.vtoff = 0
			}
			cl.vtadj = 0

			cl.vtperiod++
			cl.parentperiod = p.vtperiod
			if p.nactive == 0 {
				cl.parentperiod++
			}
			cl.f = 0

			p.vtIdx.Insert(cl.self, cl.vt)
			p.cfIdx.Insert(cl.self, cl.f)

			if cl.usc != nil {
				cl.ulimit = cl.ulimit.Min(*cl.usc, now, cl.total)
				cl.myf = cl.ulimit.Y2X(cl.total)
				cl.myfadj = 0
			}
		}

		s.updateF(cl, p)
	}
}

// updateVF accounts length bytes of service to cl and its ancestors and
// recomputes their virtual and fit times. A leaf without backlog leaves the
// virtual time index of its parent, and so does every ancestor whose last
// active child left.
func (s *Scheduler) updateVF(cl *class, length uint64) {
	s.propagateVF(cl, length, cl.fsc != nil && !cl.backlogged())
}

// propagateVF is updateVF with an explicit passive flag. With goPassive set,
// cl leaves link-sharing even if it is still backlogged.
func (s *Scheduler) propagateVF(cl *class, length uint64, goPassive bool) {
	for ; cl.parent != noHandle; cl = s.cl(cl.parent) {
		p := s.cl(cl.parent)
		cl.total += length

		if cl.fsc == nil || cl.nactive == 0 {
			continue
		}

		if goPassive {
			cl.nactive--
			goPassive = cl.nactive == 0
		}
		if goPassive {
			if cl.vt > p.cvtmax {
				p.cvtmax = cl.vt
			}
			p.vtIdx.Remove(cl.self)
			p.cfIdx.Remove(cl.self)
			s.updateCFMin(p)
			continue
		}

		cl.vt = cl.virtual.Y2X(cl.total) - cl.vtoff + cl.vtadj
		// A class below cvtmin was skipped because it did not fit. Record
		// the difference so it is not charged again.
		if cl.vt < p.cvtmin {
			cl.vtadj += p.cvtmin - cl.vt
			cl.vt = p.cvtmin
		}
		p.vtIdx.Update(cl.self, cl.vt)

		if cl.usc != nil {
			cl.myf = cl.myfadj + cl.ulimit.Y2X(cl.total)
		}
		s.updateF(cl, p)
	}
}

// updateF sets the fit time of cl to the later of its own and its children's
// fit time and propagates a change to the parent p.
func (s *Scheduler) updateF(cl, p *class) {
	f := max(cl.myf, cl.cfmin)
	if f == cl.f {
		return
	}
	cl.f = f
	p.cfIdx.Update(cl.self, f)
	s.updateCFMin(p)
}

func (s *Scheduler) updateCFMin(cl *class) {
	if _, f, ok := cl.cfIdx.Min(); ok {
		cl.cfmin = f
		return
	}
	cl.cfmin = 0
}

// minVT descends from the root along the active classes with the smallest
// virtual time whose fit time has passed. It returns the leaf reached, or
// nil if some level has no fitting class.
func (s *Scheduler) minVT(now uint64) *class {
	cl := s.root()
	if cl.cfmin > now {
		return nil
	}
	for cl.level > 0 {
		next := s.firstFit(cl, now)
		if next == nil {
			return nil
		}
		if cl.cvtmin < next.vt {
			cl.cvtmin = next.vt
		}
		cl = next
	}
	return cl
}

// firstFit returns the active child of cl with the smallest virtual time
// whose fit time is not after now.
func (s *Scheduler) firstFit(cl *class, now uint64) *class {
	var fit *class
	cl.vtIdx.Ascend(func(h handle, _ uint64) bool {
		if c := s.cl(h); c.f <= now {
			fit = c
			return false
		}
		return true
	})
	return fit
}
