// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is a scalar part W plus a vector part V. A normalized
// quaternion represents a head orientation; other values only appear
// transiently inside Log/Exp/Pow computations.
type Quaternion struct {
	W float64
	V Vector

	// normalized caches the knowledge that the norm is 1.
	normalized bool
}

// Identity is the orientation that leaves every vector unchanged.
var Identity = Quaternion{W: 1, normalized: true}

// NewQuaternion builds w + x*i + y*j + z*k.
func NewQuaternion(w, x, y, z float64) Quaternion {
	return Quaternion{W: w, V: Vector{X: x, Y: y, Z: z}}
}

// Pure lifts v to the quaternion 0 + v.
func Pure(v Vector) Quaternion {
	return Quaternion{V: v}
}

// FromAxisAngle is the rotation of angle radians around axis.
func FromAxisAngle(axis Vector, angle float64) Quaternion {
	s, c := math.Sincos(angle / 2)
	return Quaternion{W: c, V: axis.Scale(s / axis.Norm())}.Normalize()
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.V.X, Jmag: q.V.Y, Kmag: q.V.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{W: n.Real, V: Vector{X: n.Imag, Y: n.Jmag, Z: n.Kmag}}
}

// IsNormalized reports whether q is known to have norm 1.
func (q Quaternion) IsNormalized() bool {
	return q.normalized
}

// IsPure reports whether the scalar part is zero.
func (q Quaternion) IsPure() bool {
	return q.W == 0
}

// Dot is the 4D scalar product.
func (q Quaternion) Dot(o Quaternion) float64 {
	return q.W*o.W + q.V.Dot(o.V)
}

func (q Quaternion) Norm() float64 {
	if q.normalized {
		return 1
	}
	return quat.Abs(q.number())
}

// Normalize returns q scaled to norm 1. Calling it on an already normalized
// quaternion returns q unchanged.
func (q Quaternion) Normalize() Quaternion {
	if q.normalized {
		return q
	}
	n := q.Norm()
	if n == 0 {
		return q
	}
	out := q.Scale(1 / n)
	out.normalized = true
	return out
}

// Mul is the Hamilton product q*o.
func (q Quaternion) Mul(o Quaternion) Quaternion {
	return fromNumber(quat.Mul(q.number(), o.number()))
}

func (q Quaternion) Add(o Quaternion) Quaternion {
	return Quaternion{W: q.W + o.W, V: q.V.Add(o.V)}
}

func (q Quaternion) Sub(o Quaternion) Quaternion {
	return Quaternion{W: q.W - o.W, V: q.V.Sub(o.V)}
}

func (q Quaternion) Scale(s float64) Quaternion {
	return Quaternion{W: s * q.W, V: q.V.Scale(s)}
}

// Neg returns -q, which represents the same rotation as q.
func (q Quaternion) Neg() Quaternion {
	return Quaternion{W: -q.W, V: q.V.Neg(), normalized: q.normalized}
}

func (q Quaternion) Conj() Quaternion {
	return Quaternion{W: q.W, V: q.V.Neg(), normalized: q.normalized}
}

func (q Quaternion) Inverse() Quaternion {
	if q.normalized {
		return q.Conj()
	}
	n := q.Norm()
	return q.Conj().Scale(1 / (n * n))
}

// Exp is the quaternion exponential map.
func (q Quaternion) Exp() Quaternion {
	return fromNumber(quat.Exp(q.number()))
}

// Log is the principal quaternion logarithm. When the vector part is zero
// the result keeps a zero vector part instead of dividing by zero.
func (q Quaternion) Log() Quaternion {
	n := q.Norm()
	vn := q.V.Norm()
	if vn == 0 {
		return Quaternion{W: math.Log(n)}
	}
	angle := math.Acos(clamp(q.W/n, -1, 1))
	return Quaternion{W: math.Log(n), V: q.V.Scale(angle / vn)}
}

// Pow raises q to the real power k as exp(k*log(q)).
func (q Quaternion) Pow(k float64) Quaternion {
	return q.Log().Scale(k).Exp()
}

// Rotate returns v rotated by the orientation q represents (q v q^-1).
func (q Quaternion) Rotate(v Vector) Vector {
	q = q.Normalize()
	return q.Mul(Pure(v)).Mul(q.Conj()).V
}

// Slerp is the constant angular speed interpolation q1*(q1^-1*q2)^k along
// the shortest arc. k outside [0, 1] extrapolates.
func Slerp(q1, q2 Quaternion, k float64) Quaternion {
	if q1.Dot(q2) < 0 {
		q2 = q2.Neg()
	}
	return q1.Mul(q1.Inverse().Mul(q2).Pow(k))
}

// direction projects a head orientation on the Forward axis for the
// angular velocity estimate. Pure quaternions are taken as directions and
// only rescaled.
func direction(q Quaternion) Quaternion {
	if q.IsPure() {
		n := q.V.Norm()
		if n == 0 {
			return q
		}
		return Quaternion{V: q.V.Scale(1 / n), normalized: true}
	}
	return Quaternion{V: q.Rotate(Forward), normalized: true}
}

// Direction is the unit viewing direction of q: Forward rotated by q.
func Direction(q Quaternion) Vector {
	return q.Rotate(Forward)
}

// AverageAngularVelocity estimates the constant angular velocity, in rad/s,
// that moves orientation q1 to q2 within dt seconds. Both operands are
// projected on the Forward axis first, so head poses and plain directions
// are handled the same way.
func AverageAngularVelocity(q1, q2 Quaternion, dt float64) Vector {
	if q1.Dot(q2) < 0 {
		q2 = q2.Neg()
	}
	p1 := direction(q1)
	p2 := direction(q2)
	delta := p2.Mul(p1.Inverse())
	return delta.Log().V.Scale(1 / dt)
}

// OrthodromicDistance is the great-circle angle, in radians, between the
// viewing directions of q1 and q2.
func OrthodromicDistance(q1, q2 Quaternion) float64 {
	return Direction(q1).Angle(Direction(q2))
}

type quaternionWire struct {
	W          float64 `json:"w"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Normalized bool    `json:"n,omitempty"`
}

func (q Quaternion) MarshalJSON() ([]byte, error) {
	return json.Marshal(quaternionWire{W: q.W, X: q.V.X, Y: q.V.Y, Z: q.V.Z, Normalized: q.normalized})
}

func (q *Quaternion) UnmarshalJSON(data []byte) error {
	var w quaternionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*q = Quaternion{W: w.W, V: Vector{X: w.X, Y: w.Y, Z: w.Z}, normalized: w.Normalized}
	return nil
}
