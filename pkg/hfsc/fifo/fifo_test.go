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

package fifo_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/hfsc/pkg/hfsc/fifo"
)

type pkt int

func (p pkt) Len() int { return int(p) }

func TestPushPop(t *testing.T) {
	q := fifo.New[pkt](100)
	_, ok := q.Pop()
	assert.False(t, ok)
	_, ok = q.PeekLen()
	assert.False(t, ok)

	// Interleave pushes and pops to wrap the ring and force growth.
	next := 1
	var want []pkt
	for round := 0; round < 10; round++ {
		for i := 0; i < 7; i++ {
			require.NoError(t, q.Push(pkt(next)))
			want = append(want, pkt(next))
			next++
		}
		for i := 0; i < 3; i++ {
			l, ok := q.PeekLen()
			require.True(t, ok)
			assert.Equal(t, int(want[0]), l)
			p, ok := q.Pop()
			require.True(t, ok)
			assert.Equal(t, want[0], p)
			want = want[1:]
		}
	}
	assert.Equal(t, len(want), q.Len())
	for _, w := range want {
		p, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, w, p)
	}
	assert.Equal(t, 0, q.Len())
}

func TestLimit(t *testing.T) {
	drops := prometheus.NewCounter(prometheus.CounterOpts{Name: "drops"})
	used := prometheus.NewGauge(prometheus.GaugeOpts{Name: "used"})
	q := fifo.New[pkt](3, fifo.WithDropCounter(drops), fifo.WithUsedGauge(used))
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Push(pkt(i)))
	}
	assert.ErrorIs(t, q.Push(4), fifo.ErrFull)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 3, q.Limit())
	assert.Equal(t, float64(1), testutil.ToFloat64(drops))
	assert.Equal(t, float64(3), testutil.ToFloat64(used))
}

func TestDropRemovesNewest(t *testing.T) {
	q := fifo.New[pkt](10)
	assert.Equal(t, 0, q.Drop())
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Push(pkt(i)))
	}
	assert.Equal(t, 3, q.Drop())
	assert.Equal(t, 2, q.Len())
	p, _ := q.Pop()
	assert.Equal(t, pkt(1), p)
	require.NoError(t, q.Push(5))
	assert.Equal(t, 5, q.Drop())
	assert.Equal(t, 2, q.Drop())
	assert.Equal(t, 0, q.Len())
}

func TestReset(t *testing.T) {
	used := prometheus.NewGauge(prometheus.GaugeOpts{Name: "used"})
	q := fifo.New[pkt](10, fifo.WithUsedGauge(used))
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Push(pkt(i)))
	}
	q.Reset()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, float64(0), testutil.ToFloat64(used))
	require.NoError(t, q.Push(9))
	p, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, pkt(9), p)
}
