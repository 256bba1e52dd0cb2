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
	"time"

	"github.com/scionproto/hfsc/pkg/hfsc"
)

// Packet is a synthetic packet emitted by a Source.
type Packet struct {
	// Size is the length in bytes.
	Size int
	// Seq numbers the packets of one source.
	Seq uint64
	// Prio names the leaf class the packet is sent to directly. Zero leaves
	// the choice to the filters.
	Prio hfsc.ClassID
	// FwMark is matched by the filters.
	FwMark uint32
	// Created is the time the packet was handed to the link.
	Created time.Time

	class hfsc.ClassID
}

func (p *Packet) Len() int {
	return p.Size
}

func (p *Packet) Priority() hfsc.ClassID {
	return p.Prio
}

func (p *Packet) Mark() uint32 {
	return p.FwMark
}

// SetClass records the leaf the packet is queued to.
func (p *Packet) SetClass(id hfsc.ClassID) {
	p.class = id
}

// Class returns the leaf the packet was queued to.
func (p *Packet) Class() hfsc.ClassID {
	return p.class
}
