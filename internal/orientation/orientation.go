// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
)

// Pose is the Euler-angle view of an orientation, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Sample is one line of a session log: the head orientation reported by
// the player at a given time.
type Sample struct {
	Timestamp float64    `json:"t"` // seconds
	FrameID   int        `json:"frame"`
	Q         Quaternion `json:"q"`
}

// Source is anything that can provide samples in time order.
// Next returns io.EOF once the source is exhausted.
type Source interface {
	Next() (Sample, error)
}

// Pose converts q to roll/pitch/yaw using the z-y-x convention:
//
//	roll  = atan2(2(wx + yz), 1 - 2(x² + y²))
//	pitch = asin(2(wy - zx))
//	yaw   = atan2(2(wz + xy), 1 - 2(y² + z²))
func (q Quaternion) Pose() Pose {
	q = q.Normalize()
	w, x, y, z := q.W, q.V.X, q.V.Y, q.V.Z

	rollRad := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	pitchRad := math.Asin(clamp(2*(w*y-z*x), -1, 1))
	yawRad := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
		Yaw:   yawRad * 180.0 / math.Pi,
	}
}
