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

// Package config defines how configuration sections are defaulted, validated
// and documented.
//
// Each section implements Config. InitDefaults fills unset fields, Validate
// checks the result and Sample writes a commented TOML example of the
// section. Sections that form their own TOML table also implement
// TableSampler. Sample panics if writing fails.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// ID is the sample context key holding the service identifier.
const ID = "id"

// Config is implemented by every configuration section.
type Config interface {
	Sampler
	Validator
	Defaulter
}

// Validator checks a section and its children.
type Validator interface {
	Validate() error
}

// Defaulter fills the unset fields of a section and its children.
type Defaulter interface {
	InitDefaults()
}

// Sampler writes an example of a section to dst.
type Sampler interface {
	Sample(dst io.Writer, path Path, ctx CtxMap)
}

// TableSampler is a Sampler that is written as its own TOML table.
type TableSampler interface {
	Sampler
	ConfigName() string
}

// Path is the dotted name of a TOML table.
type Path []string

// Extend returns a copy of p with s appended.
func (p Path) Extend(s string) Path {
	return append(p[:len(p):len(p)], s)
}

// CtxMap carries values that samples may interpolate.
type CtxMap map[string]string

// NoValidator can be embedded by sections without validation.
type NoValidator struct{}

func (NoValidator) Validate() error {
	return nil
}

// NoDefaulter can be embedded by sections without defaults.
type NoDefaulter struct{}

func (NoDefaulter) InitDefaults() {}

// ValidateAll validates the given sections and stops at the first failure.
func ValidateAll(validators ...Validator) error {
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return serrors.Wrap("validating section", err, "type", fmt.Sprintf("%T", v))
		}
	}
	return nil
}

// InitAll initializes the given sections.
func InitAll(defaulters ...Defaulter) {
	for _, d := range defaulters {
		d.InitDefaults()
	}
}

// Decode decodes TOML into cfg. Unknown keys are an error.
func Decode(raw []byte, cfg any) error {
	return toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(cfg)
}

// LoadFile decodes the TOML file into cfg.
func LoadFile(file string, cfg any) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return serrors.Wrap("reading config", err, "file", file)
	}
	if err := Decode(raw, cfg); err != nil {
		return serrors.Wrap("decoding config", err, "file", file)
	}
	return nil
}

// WriteSample writes the samples in order. Table samples get a header and
// are indented.
func WriteSample(dst io.Writer, path Path, ctx CtxMap, samplers ...Sampler) {
	for _, s := range samplers {
		ts, ok := s.(TableSampler)
		if !ok {
			s.Sample(dst, path, ctx)
			continue
		}
		p := path.Extend(ts.ConfigName())
		WriteString(dst, "\n["+strings.Join(p, ".")+"]")
		var buf strings.Builder
		ts.Sample(&buf, p, ctx)
		indent(dst, buf.String())
	}
}

// WriteString writes s to dst and panics on failure.
func WriteString(dst io.Writer, s string) {
	if _, err := io.WriteString(dst, s); err != nil {
		panic(fmt.Sprintf("writing sample: %s", err))
	}
}

func indent(dst io.Writer, s string) {
	for line := range strings.Lines(s) {
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			WriteString(dst, "\n")
			continue
		}
		WriteString(dst, "    "+line+"\n")
	}
}
