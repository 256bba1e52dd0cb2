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

package classify_test

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/hfsc/classify"
	"github.com/scionproto/hfsc/pkg/hfsc/curve"
	"github.com/scionproto/hfsc/pkg/hfsc/mock_hfsc"
	"github.com/scionproto/hfsc/pkg/log/testlog"
)

var (
	root   = hfsc.DefaultRoot
	inner  = hfsc.NewClassID(1, 1)
	leafA  = hfsc.NewClassID(1, 10)
	leafB  = hfsc.NewClassID(1, 11)
	leafC  = hfsc.NewClassID(1, 20)
	linear = curve.Linear(1_000_000)
)

type markedPacket struct {
	size int
	mark uint32
}

func (p markedPacket) Len() int     { return p.size }
func (p markedPacket) Mark() uint32 { return p.mark }

func newScheduler(t *testing.T, c hfsc.Classifier) *hfsc.Scheduler {
	t.Helper()
	s, err := hfsc.New(hfsc.Config{
		Classifier: c,
		Logger:     testlog.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	for _, cfg := range []hfsc.ClassConfig{
		{ID: inner, LinkShare: linear},
		{ID: leafA, Parent: inner, LinkShare: linear},
		{ID: leafB, Parent: inner, LinkShare: linear},
		{ID: leafC, LinkShare: linear},
	} {
		require.NoError(t, s.CreateClass(cfg))
	}
	return s
}

func TestChain(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mock_hfsc.NewMockClassifier(ctrl)
	second := mock_hfsc.NewMockClassifier(ctrl)
	p := markedPacket{size: 100}

	first.EXPECT().Classify(p, root).Return(hfsc.ClassID(0), false)
	second.EXPECT().Classify(p, root).Return(leafC, true)
	id, ok := classify.Chain{first, second}.Classify(p, root)
	assert.True(t, ok)
	assert.Equal(t, leafC, id)

	first.EXPECT().Classify(p, inner).Return(leafA, true)
	id, ok = classify.Chain{first, second}.Classify(p, inner)
	assert.True(t, ok)
	assert.Equal(t, leafA, id)

	_, ok = classify.Chain{}.Classify(p, root)
	assert.False(t, ok)
}

func TestStaticAndFunc(t *testing.T) {
	static := classify.Static{root: inner, inner: leafB}
	id, ok := static.Classify(markedPacket{}, inner)
	assert.True(t, ok)
	assert.Equal(t, leafB, id)
	_, ok = static.Classify(markedPacket{}, leafB)
	assert.False(t, ok)

	f := classify.Func(func(p hfsc.Packet, _ hfsc.ClassID) (hfsc.ClassID, bool) {
		return leafC, p.Len() > 1000
	})
	_, ok = f.Classify(markedPacket{size: 10}, root)
	assert.False(t, ok)
	id, ok = f.Classify(markedPacket{size: 1500}, root)
	assert.True(t, ok)
	assert.Equal(t, leafC, id)
}

func TestMarkHierarchical(t *testing.T) {
	marks := classify.NewMark(nil)
	s := newScheduler(t, marks)
	require.NoError(t, marks.Add(root, 1, inner))
	require.NoError(t, marks.Add(inner, 1, leafB))
	require.NoError(t, marks.Add(root, 2, leafC))
	assert.Equal(t, 3, marks.Len())

	require.NoError(t, s.Enqueue(markedPacket{size: 100, mark: 1}))
	require.NoError(t, s.Enqueue(markedPacket{size: 100, mark: 2}))
	assert.ErrorIs(t, s.Enqueue(markedPacket{size: 100, mark: 3}), hfsc.ErrUnclassified)

	stB, err := s.Stats(leafB)
	require.NoError(t, err)
	assert.Equal(t, 1, stB.QueueLen)
	stC, err := s.Stats(leafC)
	require.NoError(t, err)
	assert.Equal(t, 1, stC.QueueLen)

	// Unmarked packets are left to the default class.
	s.SetDefaultClass(leafA)
	require.NoError(t, s.Enqueue(hfscPacket(64)))
	stA, err := s.Stats(leafA)
	require.NoError(t, err)
	assert.Equal(t, 1, stA.QueueLen)
}

func TestMarkBindsFilters(t *testing.T) {
	s := newScheduler(t, nil)
	marks := classify.NewMark(s)

	require.NoError(t, marks.Add(inner, 7, leafA))
	assert.ErrorIs(t, s.DeleteClass(leafA), hfsc.ErrClassBusy)

	// A filter must be attached above its target.
	assert.ErrorIs(t, marks.Add(leafB, 7, leafA), hfsc.ErrInvalidHierarchy)

	// Replacing a rule releases the previous target.
	require.NoError(t, marks.Add(inner, 7, leafB))
	assert.ErrorIs(t, s.DeleteClass(leafB), hfsc.ErrClassBusy)

	assert.True(t, marks.Remove(inner, 7))
	assert.False(t, marks.Remove(inner, 7))
	require.NoError(t, s.DeleteClass(leafA))
	require.NoError(t, s.DeleteClass(leafB))
}

type hfscPacket int

func (p hfscPacket) Len() int { return int(p) }
