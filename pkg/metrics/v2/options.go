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

// Package metrics provides a registry aware factory for prometheus
// collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Option func(*Options)

// Options configures the metrics Factory, construct it using the ApplyOptions
// function.
type Options struct {
	registry  prometheus.Registerer
	namespace string
}

func (o Options) registerer() prometheus.Registerer {
	if o.registry != nil {
		return o.registry
	}
	return prometheus.DefaultRegisterer
}

// WithRegistry registers all collectors with registry instead of the
// default registerer.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(o *Options) {
		o.registry = registry
	}
}

// WithNamespace sets the namespace of every collector that does not set one
// itself.
func WithNamespace(namespace string) Option {
	return func(o *Options) {
		o.namespace = namespace
	}
}

func ApplyOptions(options ...Option) Options {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	return opts
}

// Auto creates a Factory that uses the provided Options as registry. If no
// explicit registry is set the default registry is used.
func (o Options) Auto() Factory {
	return Factory{opts: o}
}

// Factory is a metrics Factory that registers metrics using the provided
// Options. Construct it using the Options.Auto function.
type Factory struct {
	opts Options
}

func (f Factory) register(c prometheus.Collector) {
	f.opts.registerer().MustRegister(c)
}

func (f Factory) ns(namespace string) string {
	if namespace != "" {
		return namespace
	}
	return f.opts.namespace
}

func (f Factory) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = f.ns(opts.Namespace)
	c := prometheus.NewCounter(opts)
	f.register(c)
	return c
}

func (f Factory) NewCounterVec(
	opts prometheus.CounterOpts,
	labelNames []string,
) *prometheus.CounterVec {
	opts.Namespace = f.ns(opts.Namespace)
	c := prometheus.NewCounterVec(opts, labelNames)
	f.register(c)
	return c
}

func (f Factory) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = f.ns(opts.Namespace)
	g := prometheus.NewGauge(opts)
	f.register(g)
	return g
}

func (f Factory) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	opts.Namespace = f.ns(opts.Namespace)
	g := prometheus.NewGaugeVec(opts, labelNames)
	f.register(g)
	return g
}

func (f Factory) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = f.ns(opts.Namespace)
	h := prometheus.NewHistogram(opts)
	f.register(h)
	return h
}

func (f Factory) NewHistogramVec(
	opts prometheus.HistogramOpts,
	labelNames []string,
) *prometheus.HistogramVec {
	opts.Namespace = f.ns(opts.Namespace)
	h := prometheus.NewHistogramVec(opts, labelNames)
	f.register(h)
	return h
}
