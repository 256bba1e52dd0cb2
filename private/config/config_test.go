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

package config_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/hfsc/private/config"
)

type table struct {
	config.NoDefaulter
	config.NoValidator
	Name string `toml:"name"`
}

func (table) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, "name = \"x\"\n\n# trailing\n")
}

func (table) ConfigName() string { return "tbl" }

type failing struct{}

func (failing) Validate() error { return errors.New("nope") }

func TestWriteSample(t *testing.T) {
	var buf bytes.Buffer
	config.WriteSample(&buf, config.Path{"root"}, nil, table{})
	assert.Equal(t, "\n[root.tbl]    name = \"x\"\n\n    # trailing\n", buf.String())
}

func TestDecode(t *testing.T) {
	var v struct {
		Tbl table `toml:"tbl"`
	}
	require.NoError(t, config.Decode([]byte("[tbl]\nname = \"a\"\n"), &v))
	assert.Equal(t, "a", v.Tbl.Name)
	assert.Error(t, config.Decode([]byte("[tbl]\nunknown = 1\n"), &v))
}

func TestValidateAll(t *testing.T) {
	assert.NoError(t, config.ValidateAll(table{}))
	assert.Error(t, config.ValidateAll(table{}, failing{}))
}

func TestPathExtend(t *testing.T) {
	p := config.Path{"a"}
	q := p.Extend("b")
	assert.Equal(t, config.Path{"a"}, p)
	assert.Equal(t, config.Path{"a", "b"}, q)
}
