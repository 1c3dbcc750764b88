// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package processing

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/relabs-tech/hmd_viewing/internal/orientation"
)

func TestPositionsSumToOne(t *testing.T) {
	r := yawSession(t, 5)
	r.ComputePositions(20, 10)

	if h, w := r.Positions.Dims(); h != 10 || w != 20 {
		t.Fatalf("dims = %dx%d, want 10x20", h, w)
	}
	if !scalar.EqualWithinAbs(r.Positions.Sum(), 1, tol) {
		t.Errorf("sum = %v, want 1", r.Positions.Sum())
	}
}

func TestPositionsBucket(t *testing.T) {
	q := orientation.FromAxisAngle(orientation.Up, math.Pi/4)
	r := &ProcessedResult{Filtered: []TimedOrientation{{T: 0, Q: q}}}
	r.ComputePositions(4, 5)

	// Forward yawed by 45 degrees points at azimuth -3pi/4 on the equator.
	if got := r.Positions.At(2, 0); got != 1 {
		t.Errorf("cell (2,0) = %v, want 1", got)
	}
}

func TestPositionsHalfTurn(t *testing.T) {
	q := orientation.NewQuaternion(0, 0, 0, 1)
	r := &ProcessedResult{Filtered: []TimedOrientation{{T: 0, Q: q}}}
	r.ComputePositions(4, 5)

	// Forward turned around points at +x: azimuth 0 on the equator.
	if got := r.Positions.At(2, 2); got != 1 {
		t.Errorf("cell (2,2) = %v, want 1", got)
	}
}

func TestVisionCoversForward(t *testing.T) {
	r := &ProcessedResult{Filtered: []TimedOrientation{{T: 0, Q: orientation.Identity}}}
	r.ComputeVision(36, 18, 110, 90)

	if !scalar.EqualWithinAbs(r.Vision.Sum(), 1, tol) {
		t.Fatalf("sum = %v, want 1", r.Vision.Sum())
	}
	// The pixel looking at (-1, 0, 0) is just before azimuth pi on the equator.
	if r.Vision.At(8, 35) == 0 {
		t.Error("forward pixel not covered")
	}
	// The opposite direction (+1, 0, 0) is azimuth 0.
	if r.Vision.At(8, 18) != 0 {
		t.Error("backward pixel covered")
	}
	// Looking straight up is outside a 90 degree vertical field of view.
	if r.Vision.At(0, 35) != 0 {
		t.Error("zenith pixel covered")
	}
}

func TestMaxOrthodromicDistances(t *testing.T) {
	r := yawSession(t, 5)
	r.ComputeMaxOrthodromicDistances([]float64{2, 1, 2})

	if len(r.MaxOrthodromicDistances) != 2 {
		t.Fatalf("got %d windows, want 2", len(r.MaxOrthodromicDistances))
	}
	w1 := r.MaxOrthodromicDistances[0]
	w2 := r.MaxOrthodromicDistances[1]
	if w1.Window != 1 || w2.Window != 2 {
		t.Fatalf("windows = %v, %v", w1.Window, w2.Window)
	}
	if len(w1.Distances) != len(r.Filtered) {
		t.Fatalf("got %d distances, want %d", len(w1.Distances), len(r.Filtered))
	}

	mid := 4 // t = 2
	if !scalar.EqualWithinAbs(w1.Distances[mid], math.Pi/2, 1e-7) {
		t.Errorf("1s window at t=2: %v, want pi/2", w1.Distances[mid])
	}
	if !scalar.EqualWithinAbs(w2.Distances[mid], math.Pi, 1e-6) {
		t.Errorf("2s window at t=2: %v, want pi", w2.Distances[mid])
	}
	if !scalar.EqualWithinAbs(w1.Distances[0], math.Pi/2, 1e-7) {
		t.Errorf("1s window at t=0: %v, want pi/2", w1.Distances[0])
	}
}

func TestComputeIsRepeatable(t *testing.T) {
	r := yawSession(t, 5)
	opts := DefaultComputeOptions()
	opts.VisionWidth, opts.VisionHeight = 20, 10

	r.Compute(opts)
	first, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	r.Compute(opts)
	second, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("recomputing changed the result")
	}
}

func TestProcessedResultJSON(t *testing.T) {
	r := yawSession(t, 3)
	r.Compute(DefaultComputeOptions())

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var back ProcessedResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if h, w := back.Vision.Dims(); h != 50 || w != 100 {
		t.Errorf("vision dims after decode = %dx%d", h, w)
	}
	if !scalar.EqualWithinAbs(back.Positions.Sum(), 1, tol) {
		t.Errorf("positions sum after decode = %v", back.Positions.Sum())
	}
	if len(back.Filtered) != len(r.Filtered) || !back.Filtered[0].Q.IsNormalized() {
		t.Error("filtered series not restored")
	}
}
