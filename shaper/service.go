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
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/hfsc/classify"
	"github.com/scionproto/hfsc/pkg/log"
	metrics "github.com/scionproto/hfsc/pkg/metrics/v2"
	"github.com/scionproto/hfsc/pkg/private/processmetrics"
	"github.com/scionproto/hfsc/pkg/private/serrors"
	"github.com/scionproto/hfsc/private/env"
	"github.com/scionproto/hfsc/shaper/config"
)

// Service wires a link, its class tree and the traffic sources from a
// configuration.
type Service struct {
	Link     *Link
	Marks    *classify.Mark
	Sources  []*Source
	Report   *Report
	Registry *prometheus.Registry

	metrics env.Metrics
}

// NewService builds the service described by cfg. cfg must be validated. A
// nil clock selects the real clock.
func NewService(cfg *config.Config, clk clock.WithDelayedExecution) (*Service, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	reg := prometheus.NewRegistry()
	if c, err := processmetrics.New(); err == nil {
		reg.MustRegister(c)
	} else {
		log.Debug("Process metrics unavailable", "err", err)
	}
	f := metrics.ApplyOptions(metrics.WithRegistry(reg)).Auto()
	m := NewMetrics(f)
	report := NewReport()

	link, err := NewLink(LinkConfig{
		Rate:  cfg.Link.Rate,
		Clock: clk,
		Scheduler: hfsc.Config{
			NewQueue: m.NewQueue(cfg.Scheduler.QueueLimit),
			Metrics:  hfsc.NewMetrics(f),
			Logger:   log.New("component", "scheduler"),
		},
		NewScheduler: cfg.Scheduler.New,
		Logger:       log.New("component", "link"),
		Metrics:      m,
	}, report)
	if err != nil {
		return nil, err
	}
	marks, err := cfg.Build(link.Scheduler())
	if err != nil {
		link.Close()
		return nil, serrors.Wrap("building class tree", err)
	}

	sources := make([]*Source, 0, len(cfg.Sources))
	for i, sc := range cfg.Sources {
		name := sc.Name
		if name == "" {
			name = "source-" + strconv.Itoa(i)
		}
		sources = append(sources, &Source{
			Name:       name,
			Class:      sc.Class,
			Priority:   sc.Priority,
			Mark:       sc.Mark,
			Rate:       sc.Rate,
			PacketSize: sc.PacketSize,
			Count:      sc.Count,
			Start:      sc.Start.Duration,
			Target:     link,
			Clock:      clk,
			Metrics:    m,
		})
	}
	return &Service{
		Link:     link,
		Marks:    marks,
		Sources:  sources,
		Report:   report,
		Registry: reg,
		metrics:  cfg.Metrics,
	}, nil
}

// Run runs the link, the sources and the metrics endpoint until ctx is done
// or one of them fails. The link is closed when Run returns.
func (s *Service) Run(ctx context.Context) error {
	defer s.Link.Close()
	ctx = log.CtxWith(ctx, log.New("service", "shaper"))
	g, errCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.HandlePanic()
		return s.metrics.ServePrometheus(errCtx, s.Registry)
	})
	g.Go(func() error {
		defer log.HandlePanic()
		return s.Link.Run(errCtx)
	})
	for _, src := range s.Sources {
		g.Go(func() error {
			defer log.HandlePanic()
			return src.Run(errCtx)
		})
	}
	return g.Wait()
}
