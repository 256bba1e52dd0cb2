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

// Package curve implements the two-piece linear service curves used by the
// HFSC scheduler.
//
// Coordinates are unsigned 64 bit integers. The x-axis unit is a clock tick
// (TicksPerSecond ticks make a second), the y-axis unit is a byte. Slopes
// are stored scaled by SMShift, inverse slopes scaled by ISMShift, so that at
// least four significant decimal digits survive for rates between 100Kbit/s
// and 1Gbit/s. Inverse slopes are precomputed at configuration time, so the
// evaluation functions never divide.
//
//	 rate         100Kbit/s  1Mbit/s  10Mbit/s  100Mbit/s  1Gbit/s
//	 bytes/tick   12.5e-3    125e-3   1250e-3   12500e-3   125000e-3
//	 ticks/byte   80         8        0.8       0.08       0.008
package curve

import (
	"errors"
	"math"
	"math/bits"
	"time"

	"github.com/scionproto/hfsc/pkg/private/serrors"
)

const (
	// SMShift is the scaling shift of slopes.
	SMShift = 20
	// ISMShift is the scaling shift of inverse slopes.
	ISMShift = 18
	// TicksPerSecond is the resolution of the x-axis.
	TicksPerSecond = 1_000_000
	// Infinity is the infinite time value.
	Infinity uint64 = math.MaxUint64

	smMask  = 1<<SMShift - 1
	ismMask = 1<<ISMShift - 1
)

// ErrInvalid indicates a service curve that cannot be converted.
var ErrInvalid = errors.New("invalid service curve")

// ServiceCurve is the externally configured form of a two-piece linear curve.
// The first segment has slope M1 and lasts for D, the second segment has
// slope M2. The zero value means "no curve".
type ServiceCurve struct {
	// M1 is the slope of the first segment in bytes per second.
	M1 uint64
	// D is the x-projection of the first segment.
	D time.Duration
	// M2 is the slope of the second segment in bytes per second.
	M2 uint64
}

// Linear returns a curve with a constant slope of rate bytes per second.
func Linear(rate uint64) ServiceCurve {
	return ServiceCurve{M2: rate}
}

// IsZero reports whether sc denotes an absent curve.
func (sc ServiceCurve) IsZero() bool {
	return sc.M1 == 0 && sc.M2 == 0
}

// Internal is the converted form of a ServiceCurve.
type Internal struct {
	// SM1 is the scaled slope of the 1st segment.
	SM1 uint64
	// ISM1 is the scaled inverse slope of the 1st segment.
	ISM1 uint64
	// DX is the x-projection of the 1st segment.
	DX uint64
	// DY is the y-projection of the 1st segment.
	DY uint64
	// SM2 is the scaled slope of the 2nd segment.
	SM2 uint64
	// ISM2 is the scaled inverse slope of the 2nd segment.
	ISM2 uint64
}

// FromExternal converts sc into its internal representation.
func FromExternal(sc ServiceCurve) (Internal, error) {
	if sc.IsZero() {
		return Internal{}, serrors.JoinNoStack(ErrInvalid, nil, "reason", "both slopes zero")
	}
	if sc.D < 0 {
		return Internal{}, serrors.JoinNoStack(ErrInvalid, nil, "reason", "negative delay",
			"d", sc.D)
	}
	if sc.M1 >= 1<<(64-SMShift) || sc.M2 >= 1<<(64-SMShift) {
		return Internal{}, serrors.JoinNoStack(ErrInvalid, nil, "reason", "slope too large",
			"m1", sc.M1, "m2", sc.M2)
	}
	isc := Internal{
		SM1:  m2sm(sc.M1),
		ISM1: m2ism(sc.M1),
		DX:   d2dx(sc.D),
		SM2:  m2sm(sc.M2),
		ISM2: m2ism(sc.M2),
	}
	isc.DY = segX2Y(isc.DX, isc.SM1)
	return isc, nil
}

// External converts c back into external units. Rounding makes the result
// an approximation of the curve c was created from.
func (c Internal) External() ServiceCurve {
	return ServiceCurve{
		M1: sm2m(c.SM1),
		D:  dx2d(c.DX),
		M2: sm2m(c.SM2),
	}
}

// Convex reports whether the first segment is not steeper than the second.
func (c Internal) Convex() bool {
	return c.SM1 <= c.SM2
}

// Runtime is an Internal curve anchored at (X, Y).
type Runtime struct {
	X uint64
	Y uint64
	Internal
}

// NewRuntime returns isc anchored at (x, y).
func NewRuntime(isc Internal, x, y uint64) Runtime {
	return Runtime{X: x, Y: y, Internal: isc}
}

// Rebase moves the anchor to (x, y) and keeps slopes and extents.
func (r Runtime) Rebase(x, y uint64) Runtime {
	r.X, r.Y = x, y
	return r
}

// X2Y returns the y-projection of the curve at x. Values left of the anchor
// are clamped to the anchor.
func (r Runtime) X2Y(x uint64) uint64 {
	switch {
	case x <= r.X:
		return r.Y
	case x <= r.X+r.DX:
		return r.Y + segX2Y(x-r.X, r.SM1)
	default:
		return r.Y + r.DY + segX2Y(x-r.X-r.DX, r.SM2)
	}
}

// Y2X returns the x-projection of the curve at y. Values below the anchor
// are clamped to the anchor. The result saturates at Infinity.
func (r Runtime) Y2X(y uint64) uint64 {
	switch {
	case y < r.Y:
		return r.X
	case y <= r.Y+r.DY:
		if r.DY == 0 {
			return addSat(r.X, r.DX)
		}
		return addSat(r.X, segY2X(y-r.Y, r.ISM1))
	default:
		return addSat(addSat(r.X, r.DX), segY2X(y-r.Y-r.DY, r.ISM2))
	}
}

// Min returns the lower envelope of r and isc anchored at (x, y), as far as
// it can be expressed by a single two-piece curve.
func (r Runtime) Min(isc Internal, x, y uint64) Runtime {
	if isc.Convex() {
		if r.X2Y(x) < y {
			// r is below the new curve.
			return r
		}
		return r.Rebase(x, y)
	}

	// Concave: compare at x and at the end of the new first segment.
	y1 := r.X2Y(x)
	if y1 <= y {
		return r
	}
	y2 := r.X2Y(x + isc.DX)
	if y2 >= y+isc.DY {
		r.X, r.Y, r.DX, r.DY = x, y, isc.DX, isc.DY
		return r
	}

	// The curves intersect. Solve
	//	segX2Y(dx, sm1) == segX2Y(dx, sm2) + (y1 - y)
	// for dx.
	dx := divShifted(y1-y, SMShift, isc.SM1-isc.SM2)
	// (x, y1) on the first segment of r moves the intersection right.
	if r.X+r.DX > x {
		dx += r.X + r.DX - x
	}
	r.X, r.Y, r.DX, r.DY = x, y, dx, segX2Y(dx, isc.SM1)
	return r
}

// segX2Y computes x * sm >> SMShift without overflowing on the upper bits.
func segX2Y(x, sm uint64) uint64 {
	return (x>>SMShift)*sm + (((x & smMask) * sm) >> SMShift)
}

func segY2X(y, ism uint64) uint64 {
	switch {
	case y == 0:
		return 0
	case ism == Infinity:
		return Infinity
	default:
		return (y>>ISMShift)*ism + (((y & ismMask) * ism) >> ISMShift)
	}
}

// m2sm converts bytes/s into scaled bytes/tick, rounding up.
func m2sm(m uint64) uint64 {
	return ((m << SMShift) + TicksPerSecond - 1) / TicksPerSecond
}

// m2ism converts bytes/s into scaled ticks/byte, rounding up.
func m2ism(m uint64) uint64 {
	if m == 0 {
		return Infinity
	}
	return ((uint64(TicksPerSecond) << ISMShift) + m - 1) / m
}

// d2dx converts a duration into ticks, rounding up.
func d2dx(d time.Duration) uint64 {
	hi, lo := bits.Mul64(uint64(d), TicksPerSecond)
	q, rem := bits.Div64(hi, lo, uint64(time.Second))
	if rem != 0 {
		q++
	}
	return q
}

func sm2m(sm uint64) uint64 {
	hi, lo := bits.Mul64(sm, TicksPerSecond)
	return hi<<(64-SMShift) | lo>>SMShift
}

func dx2d(dx uint64) time.Duration {
	hi, lo := bits.Mul64(dx, uint64(time.Second))
	if hi >= TicksPerSecond {
		return time.Duration(math.MaxInt64)
	}
	q, _ := bits.Div64(hi, lo, TicksPerSecond)
	if q > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(q)
}

// divShifted returns (v << shift) / d, saturating at Infinity.
func divShifted(v uint64, shift uint, d uint64) uint64 {
	hi, lo := v>>(64-shift), v<<shift
	if hi >= d {
		return Infinity
	}
	q, _ := bits.Div64(hi, lo, d)
	return q
}

func addSat(a, b uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return Infinity
	}
	return s
}
