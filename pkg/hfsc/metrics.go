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

import (
	"github.com/prometheus/client_golang/prometheus"

	metrics "github.com/scionproto/hfsc/pkg/metrics/v2"
)

// Dequeue criteria used as metric label values.
const (
	CriterionRealTime  = "realtime"
	CriterionLinkShare = "linkshare"
	CriterionRequeue   = "requeue"
)

// Drop reasons used as metric label values.
const (
	ReasonCongested    = "congested"
	ReasonUnclassified = "unclassified"
	ReasonDropped      = "dropped"
	ReasonPurged       = "purged"
)

// Metrics defines the metrics of a scheduler. A nil *Metrics disables them.
type Metrics struct {
	DequeuedPacketsTotal *prometheus.CounterVec
	DequeuedBytesTotal   *prometheus.CounterVec
	DroppedPacketsTotal  *prometheus.CounterVec
	OverlimitsTotal      prometheus.Counter
	InconsistenciesTotal prometheus.Counter
	BacklogPackets       prometheus.Gauge
}

// NewMetrics creates the scheduler metrics with the given factory.
func NewMetrics(f metrics.Factory) *Metrics {
	return &Metrics{
		DequeuedPacketsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hfsc_dequeued_packets_total",
				Help: "Total number of packets dequeued per class and criterion.",
			},
			[]string{"class", "criterion"},
		),
		DequeuedBytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hfsc_dequeued_bytes_total",
				Help: "Total number of bytes dequeued per class and criterion.",
			},
			[]string{"class", "criterion"},
		),
		DroppedPacketsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hfsc_dropped_packets_total",
				Help: "Total number of packets dropped per class and reason.",
			},
			[]string{"class", "reason"},
		),
		OverlimitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "hfsc_overlimits_total",
				Help: "Total number of dequeue attempts throttled by the curves.",
			},
		),
		InconsistenciesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "hfsc_inconsistencies_total",
				Help: "Total number of detected internal inconsistencies.",
			},
		),
		BacklogPackets: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "hfsc_backlog_packets",
				Help: "Number of packets queued in the scheduler.",
			},
		),
	}
}

func (m *Metrics) dequeued(class ClassID, criterion string, length int) {
	if m == nil {
		return
	}
	c := class.String()
	m.DequeuedPacketsTotal.WithLabelValues(c, criterion).Inc()
	m.DequeuedBytesTotal.WithLabelValues(c, criterion).Add(float64(length))
}

func (m *Metrics) dropped(class ClassID, reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DroppedPacketsTotal.WithLabelValues(class.String(), reason).Add(float64(n))
}

func (m *Metrics) overlimit() {
	if m == nil {
		return
	}
	m.OverlimitsTotal.Inc()
}

func (m *Metrics) inconsistency() {
	if m == nil {
		return
	}
	m.InconsistenciesTotal.Inc()
}

func (m *Metrics) backlog(qlen int) {
	if m == nil {
		return
	}
	m.BacklogPackets.Set(float64(qlen))
}
