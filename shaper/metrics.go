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

package shaper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/hfsc/fifo"
	metrics "github.com/scionproto/hfsc/pkg/metrics/v2"
)

// Reject reasons used as metric label values.
const (
	ReasonCongested    = "congested"
	ReasonUnclassified = "unclassified"
)

// Metrics defines the metrics of the shaper. A nil *Metrics disables them.
type Metrics struct {
	DeliveredPacketsTotal *prometheus.CounterVec
	DeliveredBytesTotal   *prometheus.CounterVec
	DelaySeconds          *prometheus.HistogramVec
	RejectedPacketsTotal  *prometheus.CounterVec
	QueuedPackets         *prometheus.GaugeVec
	QueueDropsTotal       *prometheus.CounterVec
	ResetsTotal           prometheus.Counter
}

// NewMetrics creates the shaper metrics with the given factory.
func NewMetrics(f metrics.Factory) *Metrics {
	return &Metrics{
		DeliveredPacketsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shaper_delivered_packets_total",
				Help: "Total number of packets transmitted on the link per class.",
			},
			[]string{"class"},
		),
		DeliveredBytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shaper_delivered_bytes_total",
				Help: "Total number of bytes transmitted on the link per class.",
			},
			[]string{"class"},
		),
		DelaySeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shaper_delay_seconds",
				Help:    "Time from enqueue until the end of transmission per class.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"class"},
		),
		RejectedPacketsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shaper_rejected_packets_total",
				Help: "Total number of packets the scheduler refused per source and reason.",
			},
			[]string{"source", "reason"},
		),
		QueuedPackets: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shaper_queued_packets",
				Help: "Number of packets in the queue of a leaf class.",
			},
			[]string{"class"},
		),
		QueueDropsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shaper_queue_drops_total",
				Help: "Total number of packets rejected or dropped by the queue of a leaf class.",
			},
			[]string{"class"},
		),
		ResetsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shaper_scheduler_resets_total",
				Help: "Total number of scheduler resets after an inconsistency.",
			},
		),
	}
}

// NewQueue returns a constructor of bounded leaf queues that report on m.
func (m *Metrics) NewQueue(limit int) func(hfsc.ClassID) hfsc.Queue {
	return func(id hfsc.ClassID) hfsc.Queue {
		if m == nil {
			return fifo.New[hfsc.Packet](limit)
		}
		return fifo.New[hfsc.Packet](limit,
			fifo.WithUsedGauge(m.QueuedPackets.WithLabelValues(id.String())),
			fifo.WithDropCounter(m.QueueDropsTotal.WithLabelValues(id.String())),
		)
	}
}

func (m *Metrics) delivered(p hfsc.Packet, at time.Time) {
	if m == nil {
		return
	}
	var class string
	pkt, ok := p.(*Packet)
	if ok {
		class = pkt.Class().String()
	}
	m.DeliveredPacketsTotal.WithLabelValues(class).Inc()
	m.DeliveredBytesTotal.WithLabelValues(class).Add(float64(p.Len()))
	if ok && !pkt.Created.IsZero() {
		m.DelaySeconds.WithLabelValues(class).Observe(at.Sub(pkt.Created).Seconds())
	}
}

func (m *Metrics) rejected(source, reason string) {
	if m == nil {
		return
	}
	m.RejectedPacketsTotal.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) reset() {
	if m == nil {
		return
	}
	m.ResetsTotal.Inc()
}
