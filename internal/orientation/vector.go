// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import "math"

// Reference directions of the head frame. Forward is the direction the
// viewer looks at when the orientation is the identity.
var (
	Forward = Vector{X: -1}
	Up      = Vector{Z: 1}
	Right   = Vector{Y: 1}
)

// Vector is an element of R3.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vector) Neg() Vector {
	return Vector{X: -v.X, Y: -v.Y, Z: -v.Z}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{X: s * v.X, Y: s * v.Y, Z: s * v.Z}
}

// Dot is the scalar product.
func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross is the vector product, v being the left-hand operand.
func (v Vector) Cross(o Vector) Vector {
	return Vector{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Angle is the angle in radians between two unit vectors.
func (v Vector) Angle(o Vector) float64 {
	return math.Acos(clamp(v.Dot(o), -1, 1))
}

// ToSpherical returns the azimuth theta in [-pi, pi] and the inclination
// phi in [0, pi] of v. The zero vector maps to (0, 0).
func (v Vector) ToSpherical() (theta, phi float64) {
	n := v.Norm()
	if n == 0 {
		return 0, 0
	}
	theta = math.Atan2(v.Y, v.X)
	phi = math.Acos(clamp(v.Z/n, -1, 1))
	return theta, phi
}

// FromSpherical is the unit vector with azimuth theta and inclination phi.
func FromSpherical(theta, phi float64) Vector {
	sp, cp := math.Sincos(phi)
	st, ct := math.Sincos(theta)
	return Vector{X: sp * ct, Y: sp * st, Z: cp}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
