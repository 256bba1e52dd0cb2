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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/private/env"
	"github.com/scionproto/hfsc/shaper"
	"github.com/scionproto/hfsc/shaper/config"
)

func TestService(t *testing.T) {
	cfg := &config.Config{
		General: env.General{ID: "test"},
		Link:    config.Link{Rate: 10_000_000},
		Classes: []config.Class{
			{ID: leafA, LinkShare: config.Curve{M2: 2_000_000}},
			{ID: leafB, LinkShare: config.Curve{M2: 1_000_000}},
		},
		Filters: []config.Filter{{Mark: 1, Class: leafB}},
		Sources: []config.Source{
			{Name: "a", Class: leafA, Priority: true, PacketSize: 100, Count: 50},
			{Name: "b", Mark: 1, PacketSize: 100, Count: 40},
			{Name: "lost", Mark: 2, PacketSize: 100, Count: 5},
		},
	}
	cfg.InitDefaults()
	require.NoError(t, cfg.Validate())

	svc, err := shaper.NewService(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Marks.Len())
	require.Len(t, svc.Sources, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	require.Eventually(t, func() bool {
		var n uint64
		for _, c := range svc.Report.Classes() {
			n += c.Packets
		}
		return n == 90
	}, waitFor, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("service did not stop")
	}

	classes := svc.Report.Classes()
	require.Len(t, classes, 2)
	assert.Equal(t, uint64(50), classes[0].Packets)
	assert.Equal(t, uint64(40), classes[1].Packets)
	assert.Equal(t, uint64(5), svc.Sources[2].Rejected())

	assert.Equal(t, 2, testutil.CollectAndCount(svc.Registry, "shaper_delivered_packets_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(svc.Registry,
		"shaper_rejected_packets_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(svc.Registry, "hfsc_dequeued_packets_total"))

	_, err = svc.Link.Scheduler().Dequeue()
	assert.ErrorIs(t, err, hfsc.ErrClosed)
}
