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

//go:build linux

package processmetrics

import (
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"

	"github.com/scionproto/hfsc/pkg/private/serrors"
)

type collector struct {
	fs  procfs.FS
	pid int
}

// New returns a collector for the current process. It fails if the thread
// statistics cannot be read.
func New() (prometheus.Collector, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, serrors.Wrap("opening procfs", err)
	}
	c := &collector{fs: fs, pid: os.Getpid()}
	if _, _, err := c.schedstat(); err != nil {
		return nil, serrors.Wrap("reading schedstat", err, "pid", c.pid)
	}
	return c, nil
}

// schedstat sums the running and waiting nanoseconds of all threads.
func (c *collector) schedstat() (running, waiting uint64, err error) {
	threads, err := c.fs.AllThreads(c.pid)
	if err != nil {
		return 0, 0, err
	}
	for _, t := range threads {
		st, terr := t.Schedstat()
		if terr != nil {
			// The thread exited since the listing.
			continue
		}
		running += st.RunningNanoseconds
		waiting += st.WaitingNanoseconds
	}
	return running, waiting, nil
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	running, waiting, err := c.schedstat()
	if err == nil {
		ch <- prometheus.MustNewConstMetric(runningDesc, prometheus.CounterValue,
			float64(running)/1e9)
		ch <- prometheus.MustNewConstMetric(runnableDesc, prometheus.CounterValue,
			float64(waiting)/1e9)
	}
	ch <- prometheus.MustNewConstMetric(maxProcsDesc, prometheus.GaugeValue,
		float64(runtime.GOMAXPROCS(-1)))
}
