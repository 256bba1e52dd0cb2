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
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/scionproto/hfsc/pkg/hfsc"
)

// ClassReport summarizes the packets delivered for one class.
type ClassReport struct {
	Class    hfsc.ClassID
	Packets  uint64
	Bytes    uint64
	MaxDelay time.Duration

	totalDelay time.Duration
}

// MeanDelay is the average time from enqueue until the end of transmission.
func (r ClassReport) MeanDelay() time.Duration {
	if r.Packets == 0 {
		return 0
	}
	return r.totalDelay / time.Duration(r.Packets)
}

// Report is a Sink that aggregates delivered packets per class. Packets
// that do not record their class are accounted to class 0:0.
type Report struct {
	mu          sync.Mutex
	classes     map[hfsc.ClassID]*ClassReport
	first, last time.Time
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{classes: make(map[hfsc.ClassID]*ClassReport)}
}

func (r *Report) Deliver(p hfsc.Packet, at time.Time) {
	var class hfsc.ClassID
	var delay time.Duration
	if pkt, ok := p.(*Packet); ok {
		class = pkt.Class()
		if !pkt.Created.IsZero() {
			delay = at.Sub(pkt.Created)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.first.IsZero() {
		r.first = at
	}
	r.last = at
	cr, ok := r.classes[class]
	if !ok {
		cr = &ClassReport{Class: class}
		r.classes[class] = cr
	}
	cr.Packets++
	cr.Bytes += uint64(p.Len())
	cr.totalDelay += delay
	cr.MaxDelay = max(cr.MaxDelay, delay)
}

// Classes returns the per-class summaries in class ID order.
func (r *Report) Classes() []ClassReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ClassReport, 0, len(r.classes))
	for _, id := range slices.Sorted(maps.Keys(r.classes)) {
		out = append(out, *r.classes[id])
	}
	return out
}

// Elapsed returns the time between the first and the last delivery.
func (r *Report) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last.Sub(r.first)
}

// Render writes the report as a table to w.
func (r *Report) Render(w io.Writer) {
	classes := r.Classes()
	elapsed := r.Elapsed()
	var total uint64
	for _, c := range classes {
		total += c.Bytes
	}
	rows := make([][]string, 0, len(classes))
	for _, c := range classes {
		rate := "-"
		if elapsed > 0 {
			rate = fmt.Sprintf("%.0f", float64(c.Bytes)/elapsed.Seconds())
		}
		share := "-"
		if total > 0 {
			share = fmt.Sprintf("%.1f%%", 100*float64(c.Bytes)/float64(total))
		}
		rows = append(rows, []string{
			c.Class.String(),
			fmt.Sprint(c.Packets),
			fmt.Sprint(c.Bytes),
			rate,
			share,
			c.MeanDelay().String(),
			c.MaxDelay.String(),
		})
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"CLASS", "PACKETS", "BYTES", "RATE (B/s)", "SHARE",
		"MEAN DELAY", "MAX DELAY"})
	table.AppendBulk(rows)
	table.Render()
}
