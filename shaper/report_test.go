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

package shaper_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/shaper"
)

func tagged(class hfsc.ClassID, size int, created time.Time) *shaper.Packet {
	p := &shaper.Packet{Size: size, Created: created}
	p.SetClass(class)
	return p
}

func TestReport(t *testing.T) {
	r := shaper.NewReport()
	r.Deliver(tagged(leafB, 500, start), start.Add(10*time.Millisecond))
	r.Deliver(tagged(leafA, 1000, start), start.Add(20*time.Millisecond))
	r.Deliver(tagged(leafA, 1000, start.Add(10*time.Millisecond)),
		start.Add(50*time.Millisecond))
	r.Deliver(plainPacket(100), start.Add(110*time.Millisecond))

	assert.Equal(t, 100*time.Millisecond, r.Elapsed())
	classes := r.Classes()
	require.Len(t, classes, 3)

	assert.Equal(t, hfsc.ClassID(0), classes[0].Class)
	assert.Equal(t, uint64(100), classes[0].Bytes)
	assert.Zero(t, classes[0].MeanDelay())

	a := classes[1]
	assert.Equal(t, leafA, a.Class)
	assert.Equal(t, uint64(2), a.Packets)
	assert.Equal(t, uint64(2000), a.Bytes)
	assert.Equal(t, 30*time.Millisecond, a.MeanDelay())
	assert.Equal(t, 40*time.Millisecond, a.MaxDelay)

	assert.Equal(t, leafB, classes[2].Class)
	assert.Equal(t, 10*time.Millisecond, classes[2].MaxDelay)

	var buf bytes.Buffer
	r.Render(&buf)
	out := buf.String()
	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "1:a")
	assert.Contains(t, out, "20000")
	assert.Contains(t, out, "76.9%")
}

type plainPacket int

func (p plainPacket) Len() int { return int(p) }
