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

package hfsc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/hfsc/pkg/hfsc"
)

func TestParseClassID(t *testing.T) {
	testCases := map[string]struct {
		in        string
		want      hfsc.ClassID
		assertErr assert.ErrorAssertionFunc
	}{
		"root":         {in: "1:", want: hfsc.NewClassID(1, 0), assertErr: assert.NoError},
		"hex":          {in: "10:ff", want: hfsc.NewClassID(16, 255), assertErr: assert.NoError},
		"explicit":     {in: "1:0", want: hfsc.DefaultRoot, assertErr: assert.NoError},
		"no separator": {in: "110", assertErr: assert.Error},
		"no major":     {in: ":1", assertErr: assert.Error},
		"overflow":     {in: "1:10000", assertErr: assert.Error},
		"garbage":      {in: "x:y", assertErr: assert.Error},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := hfsc.ParseClassID(tc.in)
			tc.assertErr(t, err)
			if err != nil {
				assert.ErrorIs(t, err, hfsc.ErrInvalidClassID)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassIDText(t *testing.T) {
	id := hfsc.NewClassID(1, 0x2a)
	assert.Equal(t, "1:2a", id.String())
	raw, err := id.MarshalText()
	require.NoError(t, err)
	var got hfsc.ClassID
	require.NoError(t, got.UnmarshalText(raw))
	assert.Equal(t, id, got)
	assert.Equal(t, uint16(1), got.Major())
	assert.Equal(t, uint16(0x2a), got.Minor())
}
