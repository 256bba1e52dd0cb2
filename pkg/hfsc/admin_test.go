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

package hfsc_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/hfsc/fifo"
)

func TestRequeue(t *testing.T) {
	e := newEnv(t, hfsc.Config{}, hfsc.ClassConfig{ID: leafA, LinkShare: linear})
	e.enqueue(t, leafA, 100, 2)
	require.NoError(t, e.s.Requeue(packet{class: leafA, size: 50, seq: 98}))
	require.NoError(t, e.s.Requeue(packet{class: leafA, size: 50, seq: 99}))
	assert.Equal(t, 4, e.s.Len())

	out := e.drain(t)
	require.Len(t, out, 4)
	assert.Equal(t, []int{99, 98, 0, 1},
		[]int{out[0].seq, out[1].seq, out[2].seq, out[3].seq})
	assert.Equal(t, uint64(2), e.s.Counters().Requeues)
	assert.Equal(t, float64(2), e.dequeued(root, hfsc.CriterionRequeue))
	assert.Equal(t, float64(2), e.dequeued(leafA, hfsc.CriterionLinkShare))
}

func TestDropRoundRobin(t *testing.T) {
	e := newEnv(t, hfsc.Config{},
		hfsc.ClassConfig{ID: leafA, LinkShare: linear},
		hfsc.ClassConfig{ID: leafB, LinkShare: linear},
	)
	e.enqueue(t, leafA, 100, 2)
	e.enqueue(t, leafB, 200, 2)

	var dropped []int
	for {
		n := e.s.Drop()
		if n == 0 {
			break
		}
		dropped = append(dropped, n)
	}
	assert.Equal(t, []int{100, 200, 100, 200}, dropped)
	assert.Equal(t, 0, e.s.Len())
	for _, id := range []hfsc.ClassID{leafA, leafB} {
		st := e.stats(t, id)
		assert.Equal(t, uint64(2), st.Drops)
		assert.Zero(t, st.Active)
		assert.Equal(t, float64(2), testutil.ToFloat64(
			e.metrics.DroppedPacketsTotal.WithLabelValues(id.String(), hfsc.ReasonDropped)))
	}
	assert.Empty(t, e.drain(t))
}

func TestGraft(t *testing.T) {
	e := newEnv(t, hfsc.Config{},
		hfsc.ClassConfig{ID: inner, LinkShare: linear},
		hfsc.ClassConfig{ID: leafA, Parent: inner, LinkShare: linear},
	)
	e.enqueue(t, leafA, 100, 2)

	q := fifo.New[hfsc.Packet](1)
	old, err := e.s.Graft(leafA, q)
	require.NoError(t, err)
	assert.Equal(t, 0, old.Len())
	assert.Equal(t, 0, e.s.Len())
	assert.Equal(t, uint64(2), e.stats(t, leafA).Drops)

	e.enqueue(t, leafA, 100, 1)
	assert.ErrorIs(t, e.s.Enqueue(packet{class: leafA, size: 100}), hfsc.ErrCongested)
	assert.Len(t, e.drain(t), 1)

	old, err = e.s.Graft(leafA, nil)
	require.NoError(t, err)
	assert.Same(t, q, old)
	e.enqueue(t, leafA, 100, 5)

	_, err = e.s.Graft(inner, nil)
	assert.ErrorIs(t, err, hfsc.ErrNotLeaf)
	_, err = e.s.Graft(root, nil)
	assert.ErrorIs(t, err, hfsc.ErrNotLeaf)
	_, err = e.s.Graft(leafC, nil)
	assert.ErrorIs(t, err, hfsc.ErrUnknownClass)
}

func TestReset(t *testing.T) {
	e := newEnv(t, hfsc.Config{},
		hfsc.ClassConfig{ID: inner, LinkShare: linear},
		hfsc.ClassConfig{ID: leafA, Parent: inner, RealTime: linear, LinkShare: linear},
	)
	e.enqueue(t, leafA, 1000, 4)
	require.Len(t, e.drain(t), 4)
	e.enqueue(t, leafA, 1000, 2)
	require.NoError(t, e.s.Requeue(packet{class: leafA, size: 10}))

	e.s.Reset()
	assert.Equal(t, 0, e.s.Len())
	assert.Zero(t, testutil.ToFloat64(e.metrics.BacklogPackets))
	for _, id := range []hfsc.ClassID{inner, leafA} {
		st := e.stats(t, id)
		assert.Zero(t, st.Work, "class %s", id)
		assert.Zero(t, st.RTWork, "class %s", id)
		assert.Zero(t, st.Period, "class %s", id)
		assert.Zero(t, st.Active, "class %s", id)
		assert.Zero(t, st.VirtualTime, "class %s", id)
	}
	assert.Equal(t, linear, e.stats(t, leafA).RealTime)

	e.enqueue(t, leafA, 1000, 2)
	out := e.drain(t)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].seq)
}

func TestClassRef(t *testing.T) {
	e := newEnv(t, hfsc.Config{},
		hfsc.ClassConfig{ID: inner, LinkShare: linear},
		hfsc.ClassConfig{ID: leafA, Parent: inner, LinkShare: linear},
	)
	ref, err := e.s.Get(leafA)
	require.NoError(t, err)
	assert.Equal(t, leafA, ref.ID())
	require.NoError(t, e.s.EnqueueTo(ref, plain(100)))
	assert.Equal(t, 1, e.s.Len())

	innerRef, err := e.s.Get(inner)
	require.NoError(t, err)
	assert.ErrorIs(t, e.s.EnqueueTo(innerRef, plain(100)), hfsc.ErrNotLeaf)
	innerRef.Release()

	// Deletion unlinks the class, the reference stays valid but unusable.
	require.NoError(t, e.s.DeleteClass(leafA))
	assert.Equal(t, 0, e.s.Len())
	assert.ErrorIs(t, e.s.EnqueueTo(ref, plain(100)), hfsc.ErrUnknownClass)
	ref.Release()
	ref.Release()

	_, err = e.s.Get(leafA)
	assert.ErrorIs(t, err, hfsc.ErrUnknownClass)
	require.NoError(t, e.s.CreateClass(hfsc.ClassConfig{ID: leafA, LinkShare: linear}))
	e.enqueue(t, leafA, 100, 1)
	assert.Len(t, e.drain(t), 1)
}

func TestClassRefReleased(t *testing.T) {
	e := newEnv(t, hfsc.Config{}, hfsc.ClassConfig{ID: leafA, LinkShare: linear})
	ref, err := e.s.Get(leafA)
	require.NoError(t, err)
	ref.Release()
	assert.ErrorIs(t, e.s.EnqueueTo(ref, plain(100)), hfsc.ErrUnknownClass)
	assert.Equal(t, 0, e.s.Len())

	// The slot of the destroyed class is reused by leafB. The released
	// reference must not reach it.
	require.NoError(t, e.s.DeleteClass(leafA))
	require.NoError(t, e.s.CreateClass(hfsc.ClassConfig{ID: leafB, LinkShare: linear}))
	assert.ErrorIs(t, e.s.EnqueueTo(ref, plain(100)), hfsc.ErrUnknownClass)
	assert.Zero(t, e.stats(t, leafB).QueueLen)
	assert.Equal(t, 0, e.s.Len())
}

func TestFilterBinding(t *testing.T) {
	e := newEnv(t, hfsc.Config{},
		hfsc.ClassConfig{ID: inner, LinkShare: linear},
		hfsc.ClassConfig{ID: leafA, Parent: inner, LinkShare: linear},
	)
	require.NoError(t, e.s.BindFilter(inner, leafA))
	require.NoError(t, e.s.BindFilter(0, leafA))
	assert.ErrorIs(t, e.s.BindFilter(leafA, inner), hfsc.ErrInvalidHierarchy)
	assert.ErrorIs(t, e.s.BindFilter(leafA, leafA), hfsc.ErrInvalidHierarchy)
	assert.ErrorIs(t, e.s.BindFilter(leafC, leafA), hfsc.ErrUnknownParent)
	assert.ErrorIs(t, e.s.BindFilter(inner, leafC), hfsc.ErrUnknownClass)

	assert.ErrorIs(t, e.s.DeleteClass(leafA), hfsc.ErrClassBusy)
	require.NoError(t, e.s.UnbindFilter(leafA))
	assert.ErrorIs(t, e.s.DeleteClass(leafA), hfsc.ErrClassBusy)
	require.NoError(t, e.s.UnbindFilter(leafA))
	require.NoError(t, e.s.UnbindFilter(leafA))
	require.NoError(t, e.s.DeleteClass(leafA))
	assert.ErrorIs(t, e.s.UnbindFilter(leafA), hfsc.ErrUnknownClass)
}

func TestStatsAndWalk(t *testing.T) {
	e := newEnv(t, hfsc.Config{},
		hfsc.ClassConfig{ID: leafB, LinkShare: linear},
		hfsc.ClassConfig{ID: leafA, RealTime: linear},
	)
	e.enqueue(t, leafA, 300, 2)
	e.enqueue(t, leafB, 200, 1)

	st := e.stats(t, leafA)
	assert.Equal(t, root, st.Parent)
	assert.Equal(t, 2, st.QueueLen)
	assert.Equal(t, uint64(2), st.Packets)
	assert.Equal(t, uint64(600), st.Bytes)
	assert.Equal(t, linear, st.RealTime)
	assert.Zero(t, st.LinkShare)

	var ids []hfsc.ClassID
	e.s.Walk(func(st hfsc.ClassStats) bool {
		ids = append(ids, st.ID)
		return true
	})
	assert.Equal(t, []hfsc.ClassID{root, leafA, leafB}, ids)

	ids = nil
	e.s.Walk(func(st hfsc.ClassStats) bool {
		ids = append(ids, st.ID)
		return false
	})
	assert.Equal(t, []hfsc.ClassID{root}, ids)

	c := e.s.Counters()
	assert.Equal(t, uint64(3), c.Packets)
	assert.Equal(t, uint64(800), c.Bytes)
	assert.Equal(t, 3, c.Backlog)
	assert.Equal(t, root, e.s.Root())
}
