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

// Package config contains the configuration of the shaper.
package config

import (
	"io"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/hfsc/classify"
	"github.com/scionproto/hfsc/pkg/hfsc/curve"
	"github.com/scionproto/hfsc/pkg/log"
	"github.com/scionproto/hfsc/pkg/private/serrors"
	"github.com/scionproto/hfsc/pkg/private/util"
	"github.com/scionproto/hfsc/private/config"
	"github.com/scionproto/hfsc/private/env"
)

const (
	// DefaultMTU is the largest packet a source may emit if no MTU is
	// configured.
	DefaultMTU = 1500
)

var _ config.Config = (*Config)(nil)

// Config is the configuration of the shaper.
type Config struct {
	General   env.General `toml:"general,omitempty"`
	Logging   log.Config  `toml:"log,omitempty"`
	Metrics   env.Metrics `toml:"metrics,omitempty"`
	Link      Link        `toml:"link,omitempty"`
	Scheduler Scheduler   `toml:"scheduler,omitempty"`
	Classes   []Class     `toml:"classes,omitempty"`
	Filters   []Filter    `toml:"filters,omitempty"`
	Sources   []Source    `toml:"sources,omitempty"`
}

func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Link,
		&cfg.Scheduler,
	)
	for i := range cfg.Filters {
		if cfg.Filters[i].Parent == 0 {
			cfg.Filters[i].Parent = cfg.Scheduler.Root
		}
	}
	for i := range cfg.Sources {
		cfg.Sources[i].InitDefaults()
	}
}

// Validate checks every section and then builds the class tree on a
// scheduler that is discarded afterwards.
func (cfg *Config) Validate() error {
	if err := config.ValidateAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Link,
		&cfg.Scheduler,
	); err != nil {
		return err
	}
	for i := range cfg.Sources {
		if err := cfg.Sources[i].Validate(); err != nil {
			return serrors.Wrap("validating source", err, "index", i)
		}
		if size := cfg.Sources[i].PacketSize; size > cfg.Link.MTU {
			return serrors.New("packet size exceeds MTU", "index", i, "packet_size", size,
				"mtu", cfg.Link.MTU)
		}
	}
	return cfg.checkTree()
}

func (cfg *Config) checkTree() error {
	s, err := cfg.Scheduler.New(hfsc.Config{Logger: log.New("check", "config")})
	if err != nil {
		return err
	}
	defer s.Close()
	if _, err := cfg.Build(s); err != nil {
		return err
	}
	leaf := func(id hfsc.ClassID) bool {
		st, err := s.Stats(id)
		return err == nil && st.Level == 0 && id != s.Root()
	}
	if def := cfg.Scheduler.DefaultClass; def != 0 && !leaf(def) {
		return serrors.New("default class is not a leaf", "class", def)
	}
	for i, src := range cfg.Sources {
		if src.Priority && !leaf(src.Class) {
			return serrors.New("source priority is not a leaf", "index", i, "class", src.Class)
		}
	}
	return nil
}

// Build creates the configured classes in s and installs a mark classifier
// holding the filters. Parents must be listed before their children.
func (cfg *Config) Build(s *hfsc.Scheduler) (*classify.Mark, error) {
	for i, c := range cfg.Classes {
		if err := s.CreateClass(c.ClassConfig()); err != nil {
			return nil, serrors.Wrap("creating class", err, "index", i, "class", c.ID)
		}
	}
	marks := classify.NewMark(s)
	for i, f := range cfg.Filters {
		parent := f.Parent
		if parent == 0 {
			parent = s.Root()
		}
		if err := marks.Add(parent, f.Mark, f.Class); err != nil {
			return nil, serrors.Wrap("adding filter", err, "index", i, "class", f.Class)
		}
	}
	s.SetClassifier(marks)
	return marks, nil
}

func (cfg *Config) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteSample(dst, path, config.CtxMap{config.ID: "shaper"},
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Link,
		&cfg.Scheduler,
	)
	config.WriteString(dst, treeSample)
}

// LogConfig returns the log section.
func (cfg *Config) LogConfig() log.Config {
	return cfg.Logging
}

// Link is the transmitting side of the shaper.
type Link struct {
	// Rate is the transmission rate in bytes per second. (required)
	Rate uint64 `toml:"rate,omitempty"`
	// MTU is the largest packet a source may emit.
	MTU int `toml:"mtu,omitempty"`
}

func (cfg *Link) InitDefaults() {
	if cfg.MTU == 0 {
		cfg.MTU = DefaultMTU
	}
}

func (cfg *Link) Validate() error {
	if cfg.Rate == 0 {
		return serrors.New("link rate must be set")
	}
	if cfg.MTU <= 0 {
		return serrors.New("invalid MTU", "mtu", cfg.MTU)
	}
	return nil
}

func (cfg *Link) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, linkSample)
}

func (cfg *Link) ConfigName() string {
	return "link"
}

// Scheduler holds the scheduler wide settings.
type Scheduler struct {
	// Root is the ID of the root class.
	Root hfsc.ClassID `toml:"root,omitempty"`
	// DefaultClass receives the packets no filter matches.
	DefaultClass hfsc.ClassID `toml:"default_class,omitempty"`
	// QueueLimit is the capacity of every leaf queue in packets.
	QueueLimit int `toml:"queue_limit,omitempty"`
	// MaxClasses bounds the number of classes including the root.
	MaxClasses int `toml:"max_classes,omitempty"`
}

func (cfg *Scheduler) InitDefaults() {
	if cfg.Root == 0 {
		cfg.Root = hfsc.DefaultRoot
	}
	if cfg.QueueLimit == 0 {
		cfg.QueueLimit = hfsc.DefaultQueueLimit
	}
	if cfg.MaxClasses == 0 {
		cfg.MaxClasses = hfsc.DefaultMaxClasses
	}
}

func (cfg *Scheduler) Validate() error {
	if cfg.Root.Minor() != 0 {
		return serrors.New("root minor must be zero", "root", cfg.Root)
	}
	if cfg.QueueLimit < 0 {
		return serrors.New("invalid queue limit", "queue_limit", cfg.QueueLimit)
	}
	if cfg.MaxClasses < 0 {
		return serrors.New("invalid class limit", "max_classes", cfg.MaxClasses)
	}
	return nil
}

func (cfg *Scheduler) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, schedulerSample)
}

func (cfg *Scheduler) ConfigName() string {
	return "scheduler"
}

// New creates a scheduler with these settings on top of base.
func (cfg *Scheduler) New(base hfsc.Config) (*hfsc.Scheduler, error) {
	base.Root = cfg.Root
	base.DefaultClass = cfg.DefaultClass
	base.QueueLimit = cfg.QueueLimit
	base.MaxClasses = cfg.MaxClasses
	return hfsc.New(base)
}

// Curve is a two-piece linear service curve. Slopes are in bytes per second.
type Curve struct {
	M1 uint64       `toml:"m1,omitempty"`
	D  util.DurWrap `toml:"d,omitempty"`
	M2 uint64       `toml:"m2,omitempty"`
}

// ServiceCurve returns the curve in scheduler units.
func (c Curve) ServiceCurve() curve.ServiceCurve {
	return curve.ServiceCurve{M1: c.M1, D: c.D.Duration, M2: c.M2}
}

// Class is one class of the hierarchy. An omitted parent selects the root.
type Class struct {
	ID         hfsc.ClassID `toml:"id"`
	Parent     hfsc.ClassID `toml:"parent,omitempty"`
	RealTime   Curve        `toml:"rt,omitempty"`
	LinkShare  Curve        `toml:"ls,omitempty"`
	UpperLimit Curve        `toml:"ul,omitempty"`
}

// ClassConfig returns the scheduler configuration of the class.
func (c Class) ClassConfig() hfsc.ClassConfig {
	return hfsc.ClassConfig{
		ID:         c.ID,
		Parent:     c.Parent,
		RealTime:   c.RealTime.ServiceCurve(),
		LinkShare:  c.LinkShare.ServiceCurve(),
		UpperLimit: c.UpperLimit.ServiceCurve(),
	}
}

// Filter directs packets carrying Mark, while they are classified below
// Parent, to Class.
type Filter struct {
	Parent hfsc.ClassID `toml:"parent,omitempty"`
	Mark   uint32       `toml:"mark"`
	Class  hfsc.ClassID `toml:"class"`
}

// Source generates traffic.
type Source struct {
	// Name identifies the source in logs.
	Name string `toml:"name,omitempty"`
	// Class is the leaf the source sends to if Priority is set.
	Class hfsc.ClassID `toml:"class,omitempty"`
	// Priority makes the packets carry Class, bypassing the filters.
	Priority bool `toml:"priority,omitempty"`
	// Mark is set on every packet and matched by the filters.
	Mark uint32 `toml:"mark,omitempty"`
	// Rate is the offered load in bytes per second. Zero sends as fast as
	// the scheduler accepts.
	Rate uint64 `toml:"rate,omitempty"`
	// PacketSize is the size of every packet in bytes.
	PacketSize int `toml:"packet_size,omitempty"`
	// Count stops the source after that many packets. Zero is unbounded.
	Count int `toml:"count,omitempty"`
	// Start delays the first packet.
	Start util.DurWrap `toml:"start,omitempty"`
}

func (cfg *Source) InitDefaults() {
	if cfg.PacketSize == 0 {
		cfg.PacketSize = DefaultMTU
	}
}

func (cfg *Source) Validate() error {
	if cfg.PacketSize <= 0 {
		return serrors.New("invalid packet size", "packet_size", cfg.PacketSize)
	}
	if cfg.Count < 0 {
		return serrors.New("invalid count", "count", cfg.Count)
	}
	if cfg.Start.Duration < 0 {
		return serrors.New("negative start", "start", cfg.Start)
	}
	if cfg.Rate == 0 && cfg.Count == 0 {
		return serrors.New("unbounded source needs a rate")
	}
	if cfg.Priority && cfg.Class == 0 {
		return serrors.New("priority without class")
	}
	return nil
}
