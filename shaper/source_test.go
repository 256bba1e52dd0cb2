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

package shaper_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/log/testlog"
	metrics "github.com/scionproto/hfsc/pkg/metrics/v2"
	"github.com/scionproto/hfsc/shaper"
)

// target records offered packets and answers with the configured errors in
// sequence order.
type target struct {
	mu      sync.Mutex
	errs    map[uint64]error
	offered []*shaper.Packet
}

func (tg *target) Enqueue(p hfsc.Packet) error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	pkt := p.(*shaper.Packet)
	tg.offered = append(tg.offered, pkt)
	return tg.errs[pkt.Seq]
}

func (tg *target) packets() []*shaper.Packet {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return append([]*shaper.Packet(nil), tg.offered...)
}

func TestSourcePacing(t *testing.T) {
	clk := clocktesting.NewFakeClock(start)
	m := shaper.NewMetrics(
		metrics.ApplyOptions(metrics.WithRegistry(prometheus.NewRegistry())).Auto())
	tg := &target{errs: map[uint64]error{
		1: hfsc.ErrCongested,
		2: hfsc.ErrUnclassified,
	}}
	// 100 byte packets at 1000 bytes per second leave every 100ms.
	src := &shaper.Source{
		Name:       "test",
		Class:      leafA,
		Priority:   true,
		Mark:       7,
		Rate:       1000,
		PacketSize: 100,
		Count:      4,
		Start:      50 * time.Millisecond,
		Target:     tg,
		Clock:      clk,
		Logger:     testlog.NewLogger(t),
		Metrics:    m,
	}
	done := make(chan error, 1)
	go func() { done <- src.Run(context.Background()) }()

	steps := []time.Duration{50, 100, 100, 100}
	for i, d := range steps {
		require.Eventually(t, clk.HasWaiters, waitFor, time.Millisecond)
		clk.Step(d * time.Millisecond)
		require.Eventually(t, func() bool { return len(tg.packets()) == i+1 },
			waitFor, time.Millisecond)
	}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("source did not stop")
	}

	for i, p := range tg.packets() {
		assert.Equal(t, uint64(i), p.Seq)
		assert.Equal(t, 100, p.Len())
		assert.Equal(t, leafA, p.Priority())
		assert.Equal(t, uint32(7), p.Mark())
		assert.Equal(t, start.Add(50*time.Millisecond+time.Duration(i)*100*time.Millisecond),
			p.Created)
	}
	assert.Equal(t, uint64(2), src.Sent())
	assert.Equal(t, uint64(2), src.Rejected())
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.RejectedPacketsTotal.WithLabelValues("test", shaper.ReasonCongested)))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.RejectedPacketsTotal.WithLabelValues("test", shaper.ReasonUnclassified)))
}

func TestSourceStops(t *testing.T) {
	testCases := map[string]struct {
		err    error
		cancel bool
		check  func(t *testing.T, err error)
	}{
		"closed target": {
			err:   hfsc.ErrClosed,
			check: func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		"canceled": {
			cancel: true,
			check:  func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		"unexpected error": {
			err:   hfsc.ErrNotLeaf,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, hfsc.ErrNotLeaf) },
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tc.cancel {
				cancel()
			}
			src := &shaper.Source{
				Name:       name,
				PacketSize: 100,
				Target:     &target{errs: map[uint64]error{0: tc.err}},
				Clock:      clocktesting.NewFakeClock(start),
				Logger:     testlog.NewLogger(t),
			}
			tc.check(t, src.Run(ctx))
		})
	}
}

func TestSourceInvalidPacketSize(t *testing.T) {
	src := &shaper.Source{Target: &target{}}
	assert.Error(t, src.Run(context.Background()))
}
