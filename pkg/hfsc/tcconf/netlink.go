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

package tcconf

import (
	"github.com/florianl/go-tc"
	"golang.org/x/sys/unix"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// Read fetches the HFSC root qdisc of the interface and its classes from
// the kernel. The result is ordered as Apply expects it.
func Read(rtnl *tc.Tc, ifindex uint32) ([]tc.Object, error) {
	qdiscs, err := rtnl.Qdisc().Get()
	if err != nil {
		return nil, serrors.Wrap("listing qdiscs", err, "ifindex", ifindex)
	}
	var qdisc *tc.Object
	for i := range qdiscs {
		q := &qdiscs[i]
		if q.Ifindex == ifindex && q.Kind == Kind && q.Parent == tc.HandleRoot {
			qdisc = q
			break
		}
	}
	if qdisc == nil {
		return nil, serrors.JoinNoStack(ErrNotHFSC, nil, "ifindex", ifindex)
	}
	root := hfsc.ClassID(qdisc.Handle)
	classes, err := rtnl.Class().Get(&tc.Msg{Family: unix.AF_UNSPEC, Ifindex: ifindex})
	if err != nil {
		return nil, serrors.Wrap("listing classes", err, "ifindex", ifindex)
	}
	var own []tc.Object
	for _, c := range classes {
		id := hfsc.ClassID(c.Handle)
		if c.Kind == Kind && id != root && id.Major() == root.Major() {
			own = append(own, c)
		}
	}
	return append([]tc.Object{*qdisc}, SortClasses(own, root)...), nil
}

// Install adds objects as returned by Export to the kernel.
func Install(rtnl *tc.Tc, objs []tc.Object) error {
	for i := range objs {
		obj := &objs[i]
		var err error
		if obj.HfscQOpt != nil {
			err = rtnl.Qdisc().Add(obj)
		} else {
			err = rtnl.Class().Add(obj)
		}
		if err != nil {
			return serrors.Wrap("installing object", err, "handle", hfsc.ClassID(obj.Handle))
		}
	}
	return nil
}

// SortClasses orders class objects so that every parent precedes its
// children. Classes whose parent is neither root nor among objs keep their
// relative order at the end.
func SortClasses(objs []tc.Object, root hfsc.ClassID) []tc.Object {
	known := map[hfsc.ClassID]bool{root: true}
	out := make([]tc.Object, 0, len(objs))
	rest := objs
	for len(rest) > 0 {
		var pending []tc.Object
		for _, obj := range rest {
			if known[hfsc.ClassID(obj.Parent)] {
				known[hfsc.ClassID(obj.Handle)] = true
				out = append(out, obj)
				continue
			}
			pending = append(pending, obj)
		}
		if len(pending) == len(rest) {
			return append(out, pending...)
		}
		rest = pending
	}
	return out
}
