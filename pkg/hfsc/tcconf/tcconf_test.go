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

package tcconf_test

import (
	"testing"
	"time"

	"github.com/florianl/go-tc"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/hfsc/curve"
	"github.com/scionproto/hfsc/pkg/hfsc/tcconf"
	"github.com/scionproto/hfsc/pkg/log/testlog"
)

const ifindex = 3

var (
	root   = hfsc.NewClassID(1, 0)
	parent = hfsc.NewClassID(1, 1)
	voice  = hfsc.NewClassID(1, 10)
	bulk   = hfsc.NewClassID(1, 20)
)

func TestServiceCurve(t *testing.T) {
	testCases := map[string]struct {
		in        curve.ServiceCurve
		want      *tc.ServiceCurve
		assertErr assert.ErrorAssertionFunc
	}{
		"zero": {
			assertErr: assert.NoError,
		},
		"concave": {
			in:        curve.ServiceCurve{M1: 250_000, D: 10 * time.Millisecond, M2: 125_000},
			want:      &tc.ServiceCurve{M1: 250_000, D: 10_000, M2: 125_000},
			assertErr: assert.NoError,
		},
		"rate overflow": {
			in:        curve.Linear(1 << 33),
			assertErr: assert.Error,
		},
		"delay overflow": {
			in:        curve.ServiceCurve{M1: 1, D: 2 * time.Hour, M2: 1},
			assertErr: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := tcconf.ToServiceCurve(tc.in)
			tc.assertErr(t, err)
			if err != nil {
				assert.ErrorIs(t, err, tcconf.ErrOutOfRange)
				return
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.in, tcconf.FromServiceCurve(got))
		})
	}
}

func TestClassConfig(t *testing.T) {
	obj := tc.Object{
		Msg: tc.Msg{Ifindex: ifindex, Handle: uint32(voice), Parent: uint32(parent)},
		Attribute: tc.Attribute{
			Kind: tcconf.Kind,
			Hfsc: &tc.Hfsc{
				Rsc: &tc.ServiceCurve{M1: 50_000, D: 5_000, M2: 10_000},
				Fsc: &tc.ServiceCurve{M2: 20_000},
			},
		},
	}
	got, err := tcconf.ClassConfig(&obj)
	require.NoError(t, err)
	want := hfsc.ClassConfig{
		ID:        voice,
		Parent:    parent,
		RealTime:  curve.ServiceCurve{M1: 50_000, D: 5 * time.Millisecond, M2: 10_000},
		LinkShare: curve.Linear(20_000),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ClassConfig mismatch (-want +got):\n%s", diff)
	}

	_, err = tcconf.ClassConfig(&tc.Object{Attribute: tc.Attribute{Kind: "htb"}})
	assert.ErrorIs(t, err, tcconf.ErrNotHFSC)
}

func TestDefaultClass(t *testing.T) {
	gotRoot, def, err := tcconf.DefaultClass(tcconf.Qdisc(ifindex, root, bulk))
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)
	assert.Equal(t, bulk, def)

	_, def, err = tcconf.DefaultClass(tcconf.Qdisc(ifindex, root, 0))
	require.NoError(t, err)
	assert.Zero(t, def)

	_, _, err = tcconf.DefaultClass(&tc.Object{Attribute: tc.Attribute{Kind: tcconf.Kind}})
	assert.ErrorIs(t, err, tcconf.ErrNotHFSC)
}

func newScheduler(t *testing.T) *hfsc.Scheduler {
	t.Helper()
	s, err := hfsc.New(hfsc.Config{Root: root, Logger: testlog.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestExportApply(t *testing.T) {
	src := newScheduler(t)
	// Children are created with smaller minor numbers than their parent so
	// that ID order and hierarchy order differ.
	top := hfsc.NewClassID(1, 0x30)
	for _, cfg := range []hfsc.ClassConfig{
		{ID: top, LinkShare: curve.Linear(1_000_000), UpperLimit: curve.Linear(2_000_000)},
		{ID: voice, Parent: top, RealTime: curve.ServiceCurve{
			M1: 100_000, D: 20 * time.Millisecond, M2: 50_000}},
		{ID: bulk, Parent: top, LinkShare: curve.Linear(500_000)},
	} {
		require.NoError(t, src.CreateClass(cfg))
	}
	src.SetDefaultClass(bulk)

	objs, err := tcconf.Export(src, ifindex)
	require.NoError(t, err)
	require.Len(t, objs, 4)
	assert.NotNil(t, objs[0].HfscQOpt)
	assert.Equal(t, uint32(top), objs[1].Handle)
	assert.Equal(t, uint32(root), objs[1].Parent)
	for _, obj := range objs {
		assert.Equal(t, uint32(ifindex), obj.Ifindex)
	}

	dst := newScheduler(t)
	require.NoError(t, tcconf.Apply(dst, objs))
	assert.Equal(t, bulk, dst.DefaultClass())
	assert.Equal(t, walk(src), walk(dst))

	// Applying again changes the existing classes in place.
	objs[3].Hfsc.Fsc.M2 = 250_000
	require.NoError(t, tcconf.Apply(dst, objs))
	st, err := dst.Stats(bulk)
	require.NoError(t, err)
	assert.Equal(t, curve.Linear(250_000), st.LinkShare)
}

func TestApplyErrors(t *testing.T) {
	s := newScheduler(t)
	err := tcconf.Apply(s, []tc.Object{*tcconf.Qdisc(ifindex, hfsc.NewClassID(2, 0), 0)})
	assert.ErrorIs(t, err, hfsc.ErrInvalidClassID)

	orphan, err := tcconf.Class(ifindex, hfsc.ClassConfig{
		ID: voice, Parent: parent, LinkShare: curve.Linear(1000),
	})
	require.NoError(t, err)
	err = tcconf.Apply(s, []tc.Object{*orphan})
	assert.ErrorIs(t, err, hfsc.ErrUnknownParent)
}

type classShape struct {
	ID, Parent hfsc.ClassID
	Level      int
	RT, LS, UL curve.ServiceCurve
}

func walk(s *hfsc.Scheduler) []classShape {
	var shapes []classShape
	s.Walk(func(st hfsc.ClassStats) bool {
		shapes = append(shapes, classShape{
			ID: st.ID, Parent: st.Parent, Level: st.Level,
			RT: st.RealTime, LS: st.LinkShare, UL: st.UpperLimit,
		})
		return true
	})
	return shapes
}
