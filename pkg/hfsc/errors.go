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
	"errors"
)

var (
	// ErrInvalidCurve indicates a service curve that cannot be converted.
	ErrInvalidCurve = errors.New("invalid service curve")
	// ErrInvalidClassID indicates a class ID that is zero or outside of the
	// scheduler's major number.
	ErrInvalidClassID = errors.New("invalid class ID")
	// ErrClassExists indicates that a class with the ID already exists.
	ErrClassExists = errors.New("class exists")
	// ErrUnknownClass indicates that no class with the ID exists.
	ErrUnknownClass = errors.New("unknown class")
	// ErrUnknownParent indicates that the parent class does not exist.
	ErrUnknownParent = errors.New("unknown parent class")
	// ErrParentMismatch indicates that a reconfiguration names a different
	// parent than the existing class has.
	ErrParentMismatch = errors.New("parent mismatch")
	// ErrNoCurves indicates a class without real-time and link-share curve.
	ErrNoCurves = errors.New("class needs a real-time or link-share curve")
	// ErrInvalidHierarchy indicates a curve placement the hierarchy cannot
	// schedule.
	ErrInvalidHierarchy = errors.New("invalid class hierarchy")
	// ErrClassBusy indicates that a class cannot be deleted.
	ErrClassBusy = errors.New("class busy")
	// ErrNotLeaf indicates an operation that requires a leaf class.
	ErrNotLeaf = errors.New("not a leaf class")
	// ErrResourceExhausted indicates that the class limit is reached.
	ErrResourceExhausted = errors.New("class limit reached")
	// ErrCongested indicates that the leaf queue rejected a packet.
	ErrCongested = errors.New("leaf queue congested")
	// ErrUnclassified indicates that no leaf class was found for a packet.
	ErrUnclassified = errors.New("packet unclassified")
	// ErrInconsistent indicates a broken scheduler invariant.
	ErrInconsistent = errors.New("scheduler state inconsistent")
	// ErrClosed indicates an operation on a closed scheduler.
	ErrClosed = errors.New("scheduler closed")
)
