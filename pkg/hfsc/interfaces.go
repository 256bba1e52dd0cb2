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

package hfsc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// ClassID identifies a class. The upper 16 bits hold the major number shared
// by all classes of a scheduler, the lower 16 bits the minor number.
type ClassID uint32

// NewClassID builds a class ID from its major and minor numbers.
func NewClassID(major, minor uint16) ClassID {
	return ClassID(major)<<16 | ClassID(minor)
}

// Major returns the major number.
func (id ClassID) Major() uint16 {
	return uint16(id >> 16)
}

// Minor returns the minor number.
func (id ClassID) Minor() uint16 {
	return uint16(id)
}

func (id ClassID) String() string {
	return fmt.Sprintf("%x:%x", id.Major(), id.Minor())
}

// ParseClassID parses the "major:minor" notation with hexadecimal numbers.
// An empty minor number denotes zero.
func ParseClassID(s string) (ClassID, error) {
	major, minor, ok := strings.Cut(s, ":")
	if !ok {
		return 0, serrors.JoinNoStack(ErrInvalidClassID, nil, "input", s)
	}
	hi, err := strconv.ParseUint(major, 16, 16)
	if err != nil {
		return 0, serrors.JoinNoStack(ErrInvalidClassID, err, "input", s)
	}
	var lo uint64
	if minor != "" {
		if lo, err = strconv.ParseUint(minor, 16, 16); err != nil {
			return 0, serrors.JoinNoStack(ErrInvalidClassID, err, "input", s)
		}
	}
	return NewClassID(uint16(hi), uint16(lo)), nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ClassID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ClassID) UnmarshalText(text []byte) error {
	parsed, err := ParseClassID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Packet is the unit the scheduler transmits.
type Packet interface {
	// Len returns the length of the packet in bytes.
	Len() int
}

// Prioritized is implemented by packets that carry a class ID in their
// priority field. If it names a leaf class, classification is skipped.
type Prioritized interface {
	Priority() ClassID
}

// Tagged is implemented by packets that record the leaf class they are
// queued to.
type Tagged interface {
	SetClass(ClassID)
}

// Queue stores the packets of one leaf class in FIFO order.
type Queue interface {
	// Push appends p. It returns an error if the queue rejects p.
	Push(p Packet) error
	// PeekLen returns the length of the head-of-line packet.
	PeekLen() (int, bool)
	// Pop removes and returns the head-of-line packet.
	Pop() (Packet, bool)
	// Reset drops all packets.
	Reset()
	// Len returns the number of queued packets.
	Len() int
}

// Dropper is implemented by queues that can drop a single packet on request.
type Dropper interface {
	// Drop removes one packet and returns its length, or 0 if nothing was
	// dropped.
	Drop() int
}

// Classifier maps packets to classes. Classify is first called with the root
// class. If it returns an inner class, it is called again with that class,
// until a leaf is found or it reports false.
type Classifier interface {
	Classify(p Packet, parent ClassID) (ClassID, bool)
}

// Timer defers the invocation of a callback.
type Timer interface {
	// ArmAt invokes fn no earlier than at. A pending invocation is replaced.
	// fn must not be invoked synchronously.
	ArmAt(at time.Time, fn func())
	// Cancel drops a pending invocation.
	Cancel()
}
