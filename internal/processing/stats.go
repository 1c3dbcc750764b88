// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package processing

import (
	"math"

	"github.com/relabs-tech/hmd_viewing/internal/orientation"
)

// Decomposition splits an angular velocity into the magnitudes reported in
// the CDF tables. Vertical and Horizontal are relative to the world frame,
// Yaw/Pitch/Roll to the head frame.
type Decomposition struct {
	Norm       float64
	Vertical   float64
	Horizontal float64
	Yaw        float64
	Pitch      float64
	Roll       float64
}

// Values returns the components in table column order.
func (d Decomposition) Values() [6]float64 {
	return [6]float64{d.Norm, d.Vertical, d.Horizontal, d.Yaw, d.Pitch, d.Roll}
}

// Decompose projects w on the axes of the head orientation q.
func Decompose(q orientation.Quaternion, w orientation.Vector) Decomposition {
	q = q.Normalize()
	return Decomposition{
		Norm:       w.Norm(),
		Vertical:   orientation.Vector{X: w.X, Y: w.Y}.Norm(),
		Horizontal: math.Abs(w.Z),
		Yaw:        math.Abs(q.Rotate(orientation.Up).Dot(w)),
		Pitch:      math.Abs(q.Rotate(orientation.Right).Dot(w)),
		Roll:       math.Abs(q.Rotate(orientation.Vector{X: 1}).Dot(w)),
	}
}

// Percentile returns the p-th percentile (0..100) of sorted data using
// linear interpolation between closest ranks. Empty data yields -1.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return -1
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
