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

// Package fifo provides a bounded first-in first-out packet queue on top of a
// ring buffer. It is the default leaf queue of the scheduler.
//
// A Queue is not safe for concurrent use; the scheduler serializes access.
package fifo

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrFull is returned by Push if the queue holds Limit entries.
var ErrFull = errors.New("queue full")

// Entry is the element type of a Queue.
type Entry interface {
	Len() int
}

const initialSize = 8

// Option configures a Queue.
type Option func(*options)

type options struct {
	used  prometheus.Gauge
	drops prometheus.Counter
}

// WithUsedGauge reports the number of queued entries on g.
func WithUsedGauge(g prometheus.Gauge) Option {
	return func(o *options) {
		o.used = g
	}
}

// WithDropCounter counts rejected and dropped entries on c.
func WithDropCounter(c prometheus.Counter) Option {
	return func(o *options) {
		o.drops = c
	}
}

// Queue is a bounded FIFO ring buffer. Its storage grows on demand up to the
// limit.
type Queue[T Entry] struct {
	entries    []T
	readIndex  int
	writeIndex int
	readable   int
	limit      int
	opts       options
}

// New creates a queue holding at most limit entries.
func New[T Entry](limit int, opts ...Option) *Queue[T] {
	q := &Queue[T]{limit: max(limit, 1)}
	for _, opt := range opts {
		opt(&q.opts)
	}
	q.report()
	return q
}

// Push appends e. It fails with ErrFull if the queue is at its limit.
func (q *Queue[T]) Push(e T) error {
	if q.readable == q.limit {
		if q.opts.drops != nil {
			q.opts.drops.Inc()
		}
		return ErrFull
	}
	if q.readable == len(q.entries) {
		q.grow()
	}
	q.entries[q.writeIndex] = e
	q.writeIndex = (q.writeIndex + 1) % len(q.entries)
	q.readable++
	q.report()
	return nil
}

// Pop removes and returns the oldest entry.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.readable == 0 {
		return zero, false
	}
	e := q.entries[q.readIndex]
	// Remove the reference that was just read.
	q.entries[q.readIndex] = zero
	q.readIndex = (q.readIndex + 1) % len(q.entries)
	q.readable--
	q.report()
	return e, true
}

// PeekLen returns the length of the oldest entry.
func (q *Queue[T]) PeekLen() (int, bool) {
	if q.readable == 0 {
		return 0, false
	}
	return q.entries[q.readIndex].Len(), true
}

// Drop removes the newest entry and returns its length. It returns 0 if the
// queue is empty.
func (q *Queue[T]) Drop() int {
	var zero T
	if q.readable == 0 {
		return 0
	}
	q.writeIndex = (q.writeIndex - 1 + len(q.entries)) % len(q.entries)
	e := q.entries[q.writeIndex]
	q.entries[q.writeIndex] = zero
	q.readable--
	if q.opts.drops != nil {
		q.opts.drops.Inc()
	}
	q.report()
	return e.Len()
}

// Reset removes all entries.
func (q *Queue[T]) Reset() {
	clear(q.entries)
	q.readIndex, q.writeIndex, q.readable = 0, 0, 0
	q.report()
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int {
	return q.readable
}

// Limit returns the capacity of the queue.
func (q *Queue[T]) Limit() int {
	return q.limit
}

// grow doubles the storage, unwrapping the ring into the new slice.
func (q *Queue[T]) grow() {
	size := min(max(2*len(q.entries), initialSize), q.limit)
	entries := make([]T, size)
	n := copy(entries, q.entries[q.readIndex:])
	copy(entries[n:], q.entries[:q.readIndex])
	q.entries = entries
	q.readIndex = 0
	q.writeIndex = q.readable % size
}

func (q *Queue[T]) report() {
	if q.opts.used != nil {
		q.opts.used.Set(float64(q.readable))
	}
}
