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

// Package processmetrics exports scheduling statistics of the own process:
// the CPU time its threads ran and the time they were runnable but waited
// for a CPU.
//
// Only Linux is supported. On other systems New returns ErrUnsupported.
package processmetrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrUnsupported is returned by New on systems without procfs.
var ErrUnsupported = errors.New("process metrics not supported")

var (
	runningDesc = prometheus.NewDesc(
		"process_running_seconds_total",
		"CPU time the threads of the process ran.",
		nil, nil,
	)
	runnableDesc = prometheus.NewDesc(
		"process_runnable_seconds_total",
		"Time the threads of the process were runnable but not running.",
		nil, nil,
	)
	maxProcsDesc = prometheus.NewDesc(
		"go_sched_maxprocs_threads",
		"The current runtime.GOMAXPROCS setting.",
		nil, nil,
	)
)
