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

// Package tcconf converts between the netlink representation of HFSC
// qdiscs and classes and the scheduler configuration.
//
// Service curve rates are in bytes per second and delays in microseconds,
// as in the kernel's tc_service_curve.
package tcconf

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/florianl/go-tc"
	"golang.org/x/sys/unix"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/hfsc/curve"
	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// Kind is the tc kind of HFSC qdiscs and classes.
const Kind = "hfsc"

var (
	// ErrNotHFSC indicates an object without HFSC attributes.
	ErrNotHFSC = errors.New("not an hfsc object")
	// ErrOutOfRange indicates a value that does not fit the netlink encoding.
	ErrOutOfRange = errors.New("value out of range")
)

// FromServiceCurve converts a netlink service curve. A nil curve yields the
// zero curve.
func FromServiceCurve(sc *tc.ServiceCurve) curve.ServiceCurve {
	if sc == nil {
		return curve.ServiceCurve{}
	}
	return curve.ServiceCurve{
		M1: uint64(sc.M1),
		D:  time.Duration(sc.D) * time.Microsecond,
		M2: uint64(sc.M2),
	}
}

// ToServiceCurve converts sc into its netlink form. The zero curve yields
// nil.
func ToServiceCurve(sc curve.ServiceCurve) (*tc.ServiceCurve, error) {
	if sc.IsZero() {
		return nil, nil
	}
	d := sc.D / time.Microsecond
	if sc.M1 > math.MaxUint32 || sc.M2 > math.MaxUint32 || d < 0 || d > math.MaxUint32 {
		return nil, serrors.JoinNoStack(ErrOutOfRange, nil, "m1", sc.M1, "d", sc.D,
			"m2", sc.M2)
	}
	return &tc.ServiceCurve{M1: uint32(sc.M1), D: uint32(d), M2: uint32(sc.M2)}, nil
}

// ClassConfig converts an HFSC class object.
func ClassConfig(obj *tc.Object) (hfsc.ClassConfig, error) {
	if obj.Kind != Kind || obj.Hfsc == nil {
		return hfsc.ClassConfig{}, serrors.JoinNoStack(ErrNotHFSC, nil, "kind", obj.Kind,
			"handle", hfsc.ClassID(obj.Handle))
	}
	return hfsc.ClassConfig{
		ID:         hfsc.ClassID(obj.Handle),
		Parent:     hfsc.ClassID(obj.Parent),
		RealTime:   FromServiceCurve(obj.Hfsc.Rsc),
		LinkShare:  FromServiceCurve(obj.Hfsc.Fsc),
		UpperLimit: FromServiceCurve(obj.Hfsc.Usc),
	}, nil
}

// DefaultClass returns the root and the default class of an HFSC qdisc
// object. The default class is zero if the qdisc has none.
func DefaultClass(obj *tc.Object) (root, def hfsc.ClassID, err error) {
	if obj.Kind != Kind || obj.HfscQOpt == nil {
		return 0, 0, serrors.JoinNoStack(ErrNotHFSC, nil, "kind", obj.Kind,
			"handle", hfsc.ClassID(obj.Handle))
	}
	root = hfsc.ClassID(obj.Handle)
	if obj.HfscQOpt.DefCls != 0 {
		def = hfsc.NewClassID(root.Major(), obj.HfscQOpt.DefCls)
	}
	return root, def, nil
}

// Qdisc returns the qdisc object of a scheduler with the given root and
// default class attached to the interface.
func Qdisc(ifindex uint32, root, def hfsc.ClassID) *tc.Object {
	return &tc.Object{
		Msg: tc.Msg{
			Family:  unix.AF_UNSPEC,
			Ifindex: ifindex,
			Handle:  uint32(root),
			Parent:  tc.HandleRoot,
		},
		Attribute: tc.Attribute{
			Kind:     Kind,
			HfscQOpt: &tc.HfscQOpt{DefCls: def.Minor()},
		},
	}
}

// Class returns the class object of cfg attached to the interface.
func Class(ifindex uint32, cfg hfsc.ClassConfig) (*tc.Object, error) {
	attr := &tc.Hfsc{}
	var err error
	if attr.Rsc, err = ToServiceCurve(cfg.RealTime); err != nil {
		return nil, serrors.JoinNoStack(err, nil, "class", cfg.ID, "curve", "rt")
	}
	if attr.Fsc, err = ToServiceCurve(cfg.LinkShare); err != nil {
		return nil, serrors.JoinNoStack(err, nil, "class", cfg.ID, "curve", "ls")
	}
	if attr.Usc, err = ToServiceCurve(cfg.UpperLimit); err != nil {
		return nil, serrors.JoinNoStack(err, nil, "class", cfg.ID, "curve", "ul")
	}
	return &tc.Object{
		Msg: tc.Msg{
			Family:  unix.AF_UNSPEC,
			Ifindex: ifindex,
			Handle:  uint32(cfg.ID),
			Parent:  uint32(cfg.Parent),
		},
		Attribute: tc.Attribute{
			Kind: Kind,
			Hfsc: attr,
		},
	}, nil
}

// Export returns the qdisc and class objects describing the hierarchy of s.
// Parents precede their children.
func Export(s *hfsc.Scheduler, ifindex uint32) ([]tc.Object, error) {
	var classes []hfsc.ClassStats
	s.Walk(func(st hfsc.ClassStats) bool {
		if st.ID != s.Root() {
			classes = append(classes, st)
		}
		return true
	})
	slices.SortStableFunc(classes, func(a, b hfsc.ClassStats) int {
		return cmp.Compare(b.Level, a.Level)
	})

	objs := []tc.Object{*Qdisc(ifindex, s.Root(), s.DefaultClass())}
	for _, st := range classes {
		obj, err := Class(ifindex, hfsc.ClassConfig{
			ID:         st.ID,
			Parent:     st.Parent,
			RealTime:   st.RealTime,
			LinkShare:  st.LinkShare,
			UpperLimit: st.UpperLimit,
		})
		if err != nil {
			return nil, err
		}
		objs = append(objs, *obj)
	}
	return objs, nil
}

// Apply configures s from netlink objects. Qdisc objects set the default
// class, class objects create a class or replace the curves of an existing
// one. Objects are applied in order, so parents must precede their children.
func Apply(s *hfsc.Scheduler, objs []tc.Object) error {
	for i := range objs {
		obj := &objs[i]
		if obj.HfscQOpt != nil {
			root, def, err := DefaultClass(obj)
			if err != nil {
				return err
			}
			if root != s.Root() {
				return serrors.JoinNoStack(hfsc.ErrInvalidClassID, nil, "qdisc", root,
					"root", s.Root())
			}
			s.SetDefaultClass(def)
			continue
		}
		cfg, err := ClassConfig(obj)
		if err != nil {
			return err
		}
		err = s.CreateClass(cfg)
		if errors.Is(err, hfsc.ErrClassExists) {
			err = s.ChangeClass(cfg)
		}
		if err != nil {
			return serrors.Wrap("applying class", err, "class", cfg.ID)
		}
	}
	return nil
}
