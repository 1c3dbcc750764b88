// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package aggregate

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/relabs-tech/hmd_viewing/internal/orientation"
	"github.com/relabs-tech/hmd_viewing/internal/processing"
)

func testOptions() (processing.Options, processing.ComputeOptions) {
	compute := processing.DefaultComputeOptions()
	compute.PositionWidth, compute.PositionHeight = 8, 4
	compute.VisionWidth, compute.VisionHeight = 8, 4
	compute.Windows = []float64{1, 2}
	return processing.Options{Step: 1}, compute
}

func session(t *testing.T, axis orientation.Vector, rate float64, opts processing.Options, compute processing.ComputeOptions) *processing.ProcessedResult {
	t.Helper()
	src := orientation.NewSyntheticSource(axis, rate, 1, 4)
	r, err := processing.LoadFrom(src, 0, opts)
	if err != nil {
		t.Fatal(err)
	}
	r.Compute(compute)
	return r
}

func TestAddSumsHeatmaps(t *testing.T) {
	opts, compute := testOptions()
	layout := LayoutFor(opts, compute)

	inputs := []*processing.ProcessedResult{
		session(t, orientation.Up, 0.3, opts, compute),
		session(t, orientation.Right, 0.5, opts, compute),
		session(t, orientation.Up, -1.0, opts, compute),
	}

	a, err := Reduce(context.Background(), layout, inputs[0], inputs[1], inputs[2])
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if a.Count() != 3 {
		t.Errorf("count = %d, want 3", a.Count())
	}

	for j := 0; j < 4; j++ {
		for i := 0; i < 8; i++ {
			var want float64
			for _, r := range inputs {
				want += r.Positions.At(j, i)
			}
			if got := a.Positions().At(j, i); !scalar.EqualWithinAbs(got, want, 1e-12) {
				t.Errorf("position (%d,%d) = %v, want %v", j, i, got, want)
			}
		}
	}

	a.Normalize()
	if !scalar.EqualWithinAbs(a.Positions().Sum(), 1, 1e-12) {
		t.Errorf("normalized sum = %v, want 1", a.Positions().Sum())
	}

	wantLen := 0
	for _, r := range inputs {
		wantLen += len(r.Filtered)
	}
	if got := len(a.Distances(1)); got != wantLen {
		t.Errorf("window 1 has %d distances, want %d", got, wantLen)
	}
	wds := a.WindowDistances()
	if len(wds) != 2 || wds[0].Window != 1 || wds[1].Window != 2 || len(wds[1].Distances) != wantLen {
		t.Errorf("WindowDistances() = %d windows", len(wds))
	}
	start, end, ok := a.TimeBounds()
	if !ok || start != 0 || end != 3 {
		t.Errorf("time bounds = (%v, %v, %v)", start, end, ok)
	}
}

func TestStepMismatchLeavesStateUntouched(t *testing.T) {
	opts, compute := testOptions()
	layout := LayoutFor(opts, compute)

	a, err := Reduce(context.Background(), layout, session(t, orientation.Up, 0.3, opts, compute))
	if err != nil {
		t.Fatal(err)
	}
	before := a.Positions().Sum()
	beforeDist := len(a.Distances(1))

	other := opts
	other.Step = 0.5
	err = a.Add(context.Background(), session(t, orientation.Up, 0.3, other, compute))
	if !errors.Is(err, ErrStepMismatch) {
		t.Fatalf("expected ErrStepMismatch, got %v", err)
	}
	if a.Count() != 1 || a.Positions().Sum() != before || len(a.Distances(1)) != beforeDist {
		t.Error("failed Add mutated the aggregate")
	}
}

func TestWindowAndShapeMismatch(t *testing.T) {
	opts, compute := testOptions()
	layout := LayoutFor(opts, compute)
	a := New(layout)

	windows := compute
	windows.Windows = []float64{1, 3}
	if err := a.Add(context.Background(), session(t, orientation.Up, 1, opts, windows)); !errors.Is(err, ErrWindowMismatch) {
		t.Errorf("expected ErrWindowMismatch, got %v", err)
	}

	shape := compute
	shape.PositionWidth = 16
	if err := a.Add(context.Background(), session(t, orientation.Up, 1, opts, shape)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if a.Count() != 0 {
		t.Errorf("count = %d after rejected adds", a.Count())
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	opts, compute := testOptions()
	layout := LayoutFor(opts, compute)
	ctx := context.Background()

	r1 := session(t, orientation.Up, 0.3, opts, compute)
	r2 := session(t, orientation.Right, 0.7, opts, compute)
	r3 := session(t, orientation.Up, -0.2, opts, compute)

	left, _ := Reduce(ctx, layout, r1, r2)
	right, _ := Reduce(ctx, layout, r3)
	if err := left.Merge(right); err != nil {
		t.Fatal(err)
	}

	other, _ := Reduce(ctx, layout, r3, r2, r1)

	for j := 0; j < 4; j++ {
		for i := 0; i < 8; i++ {
			if !scalar.EqualWithinAbs(left.Vision().At(j, i), other.Vision().At(j, i), 1e-12) {
				t.Fatalf("vision (%d,%d) differs: %v vs %v", j, i, left.Vision().At(j, i), other.Vision().At(j, i))
			}
		}
	}
	if left.Count() != other.Count() {
		t.Errorf("counts differ: %d vs %d", left.Count(), other.Count())
	}
}

func TestReduceEmpty(t *testing.T) {
	opts, compute := testOptions()
	a, err := Reduce(context.Background(), LayoutFor(opts, compute))
	if err != nil {
		t.Fatal(err)
	}
	if a.Count() != 0 {
		t.Errorf("count = %d", a.Count())
	}
	if _, _, ok := a.TimeBounds(); ok {
		t.Error("empty aggregate should have no time bounds")
	}
	a.Normalize()
	if a.Positions().Sum() != 0 {
		t.Error("normalizing an empty aggregate changed it")
	}
}

func TestAngularVelocitiesRelative(t *testing.T) {
	opts, compute := testOptions()
	opts.SkipTime = 0
	src := orientation.NewSyntheticSource(orientation.Up, 1, 1, 3)
	r, err := processing.LoadFrom(src, 10, opts)
	if err != nil {
		t.Fatal(err)
	}
	r.Compute(compute)

	a, err := Reduce(context.Background(), LayoutFor(opts, compute), r)
	if err != nil {
		t.Fatal(err)
	}
	abs := a.AngularVelocities(false)
	rel := a.AngularVelocities(true)
	if len(abs) == 0 || len(rel) != len(abs) {
		t.Fatalf("got %d and %d velocities", len(abs), len(rel))
	}
	if abs[0].T-rel[0].T != 10 {
		t.Errorf("relative shift = %v, want 10", abs[0].T-rel[0].T)
	}
	if math.IsNaN(rel[0].Omega.Z) {
		t.Error("NaN angular velocity")
	}
}
