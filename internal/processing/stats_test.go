// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package processing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/relabs-tech/hmd_viewing/internal/orientation"
)

func TestPercentile(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 2.5},
		{100, 4},
		{25, 1.75},
		{90, 3.7},
	}
	for _, tt := range tests {
		if got := Percentile(data, tt.p); !scalar.EqualWithinAbs(got, tt.want, tol) {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := Percentile(nil, 50); got != -1 {
		t.Errorf("empty percentile = %v, want -1", got)
	}
	if got := Percentile([]float64{7}, 10); got != 7 {
		t.Errorf("single value percentile = %v, want 7", got)
	}
}

func TestDecompose(t *testing.T) {
	d := Decompose(orientation.Identity, orientation.Vector{Z: 2})
	if d.Norm != 2 || d.Horizontal != 2 || d.Vertical != 0 {
		t.Errorf("world components = %+v", d)
	}
	if !scalar.EqualWithinAbs(d.Yaw, 2, tol) || d.Pitch != 0 || d.Roll != 0 {
		t.Errorf("head components = %+v", d)
	}

	// Head pitched down 90 degrees: a world yaw becomes a head roll.
	q := orientation.FromAxisAngle(orientation.Right, math.Pi/2)
	d = Decompose(q, orientation.Vector{Z: 1})
	if !scalar.EqualWithinAbs(d.Roll, 1, 1e-9) || !scalar.EqualWithinAbs(d.Yaw, 0, 1e-9) {
		t.Errorf("pitched head components = %+v", d)
	}
}
