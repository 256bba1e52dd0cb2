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

// Package env contains configuration and initialization code shared by
// services. If something is specific to one service, it should go into that
// service's code and not here.
package env

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scionproto/hfsc/pkg/log"
	"github.com/scionproto/hfsc/pkg/private/serrors"
	"github.com/scionproto/hfsc/private/config"
)

const (
	// ShutdownGraceInterval is the time services wait after issuing a clean
	// shutdown signal, before forcefully tearing down.
	ShutdownGraceInterval = 5 * time.Second

	// HandlerTimeout is the time after which the http handler gives up on a
	// request and returns an error instead.
	HandlerTimeout = time.Minute
)

var _ config.Config = (*General)(nil)

type General struct {
	// ID is the identifier of the service instance. It is attached to every
	// log line.
	ID string `toml:"id,omitempty"`
}

// InitDefaults is a no-op, the ID has no default.
func (cfg *General) InitDefaults() {
}

func (cfg *General) Validate() error {
	if cfg.ID == "" {
		return serrors.New("no service id specified")
	}
	return nil
}

func (cfg *General) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteString(dst, fmt.Sprintf(generalSample, ctx[config.ID]))
}

func (cfg *General) ConfigName() string {
	return "general"
}

var _ config.Config = (*Metrics)(nil)

type Metrics struct {
	config.NoDefaulter
	config.NoValidator
	// Prometheus contains the address to export prometheus metrics on. If
	// not set, metrics are not exported.
	Prometheus string `toml:"prometheus,omitempty"`
}

func (cfg *Metrics) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteString(dst, metricsSample)
}

func (cfg *Metrics) ConfigName() string {
	return "metrics"
}

// Handler returns the /metrics handler exporting the metrics of reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.InstrumentMetricHandler(
		reg,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Timeout: HandlerTimeout}),
	)
}

// ServePrometheus serves the metrics of reg until ctx is done. It returns
// immediately if no address is configured.
func (cfg *Metrics) ServePrometheus(ctx context.Context, reg *prometheus.Registry) error {
	if cfg.Prometheus == "" {
		return nil
	}
	lis, err := net.Listen("tcp", cfg.Prometheus)
	if err != nil {
		return serrors.Wrap("listening for prometheus", err, "addr", cfg.Prometheus)
	}
	return Serve(ctx, lis, reg)
}

// Serve serves the metrics of reg on lis until ctx is done. Pending scrapes
// get ShutdownGraceInterval to complete.
func Serve(ctx context.Context, lis net.Listener, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	log.Info("Exporting prometheus metrics", "addr", lis.Addr())

	server := &http.Server{Handler: mux, ReadHeaderTimeout: HandlerTimeout}
	go func() {
		defer log.HandlePanic()
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), ShutdownGraceInterval)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			server.Close()
		}
	}()
	err := server.Serve(lis)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return serrors.Wrap("serving prometheus metrics", err)
	}
	return nil
}
