// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package aggregate sums the metrics of many sessions into one group
// statistic.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/relabs-tech/hmd_viewing/internal/processing"
)

var (
	ErrStepMismatch   = errors.New("aggregate: step mismatch")
	ErrWindowMismatch = errors.New("aggregate: window set mismatch")
	ErrShapeMismatch  = errors.New("aggregate: heatmap shape mismatch")
)

// Contributor is anything that resolves to a computed session.
type Contributor interface {
	Resolve(ctx context.Context) (*processing.ProcessedResult, error)
}

// Layout fixes the shape every contributor must have.
type Layout struct {
	Step           float64
	Windows        []float64
	PositionHeight int
	PositionWidth  int
	VisionHeight   int
	VisionWidth    int
}

// LayoutFor derives the layout produced by the given options.
func LayoutFor(opts processing.Options, compute processing.ComputeOptions) Layout {
	ws := slices.Clone(compute.Windows)
	slices.Sort(ws)
	return Layout{
		Step:           opts.Step,
		Windows:        slices.Compact(ws),
		PositionHeight: compute.PositionHeight,
		PositionWidth:  compute.PositionWidth,
		VisionHeight:   compute.VisionHeight,
		VisionWidth:    compute.VisionWidth,
	}
}

// AggregatedResults accumulates contributors of a single layout.
type AggregatedResults struct {
	layout Layout

	results   []*processing.ProcessedResult
	positions *processing.Heatmap
	vision    *processing.Heatmap
	distances map[float64][]float64

	minStart float64
	maxEnd   float64
}

// New returns an empty accumulator for layout.
func New(layout Layout) *AggregatedResults {
	a := &AggregatedResults{
		layout:    layout,
		positions: processing.NewHeatmap(layout.PositionHeight, layout.PositionWidth),
		vision:    processing.NewHeatmap(layout.VisionHeight, layout.VisionWidth),
		distances: make(map[float64][]float64, len(layout.Windows)),
		minStart:  math.Inf(1),
		maxEnd:    math.Inf(-1),
	}
	for _, w := range layout.Windows {
		a.distances[w] = nil
	}
	return a
}

// Reduce folds contributors into a new accumulator.
func Reduce(ctx context.Context, layout Layout, contributors ...Contributor) (*AggregatedResults, error) {
	a := New(layout)
	for _, c := range contributors {
		if err := a.Add(ctx, c); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *AggregatedResults) Layout() Layout {
	return a.layout
}

// Add resolves c and accumulates it. Nothing is modified when c does not
// match the layout.
func (a *AggregatedResults) Add(ctx context.Context, c Contributor) error {
	r, err := c.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve contributor: %w", err)
	}
	if err := a.check(r); err != nil {
		return err
	}

	a.results = append(a.results, r)
	if start, end, ok := r.TimeBounds(); ok {
		a.minStart = math.Min(a.minStart, start)
		a.maxEnd = math.Max(a.maxEnd, end)
	}
	_ = a.positions.Add(r.Positions)
	_ = a.vision.Add(r.Vision)
	for _, wd := range r.MaxOrthodromicDistances {
		a.distances[wd.Window] = append(a.distances[wd.Window], wd.Distances...)
	}
	return nil
}

func (a *AggregatedResults) check(r *processing.ProcessedResult) error {
	if r.Step != a.layout.Step {
		return fmt.Errorf("%w: contributor step %v, aggregate step %v", ErrStepMismatch, r.Step, a.layout.Step)
	}
	if !slices.Equal(r.Windows(), a.layout.Windows) {
		return fmt.Errorf("%w: contributor windows %v, aggregate windows %v", ErrWindowMismatch, r.Windows(), a.layout.Windows)
	}
	if err := checkShape("position", r.Positions, a.layout.PositionHeight, a.layout.PositionWidth); err != nil {
		return err
	}
	return checkShape("vision", r.Vision, a.layout.VisionHeight, a.layout.VisionWidth)
}

func checkShape(name string, h *processing.Heatmap, height, width int) error {
	rows, cols := h.Dims()
	if rows != height || cols != width {
		return fmt.Errorf("%w: %s heatmap is %dx%d, want %dx%d", ErrShapeMismatch, name, rows, cols, height, width)
	}
	return nil
}

// Merge folds other into a. Both must share the same layout.
func (a *AggregatedResults) Merge(other *AggregatedResults) error {
	if other.layout.Step != a.layout.Step {
		return fmt.Errorf("%w: %v vs %v", ErrStepMismatch, other.layout.Step, a.layout.Step)
	}
	if !slices.Equal(other.layout.Windows, a.layout.Windows) {
		return fmt.Errorf("%w: %v vs %v", ErrWindowMismatch, other.layout.Windows, a.layout.Windows)
	}
	if err := checkShape("position", other.positions, a.layout.PositionHeight, a.layout.PositionWidth); err != nil {
		return err
	}
	if err := checkShape("vision", other.vision, a.layout.VisionHeight, a.layout.VisionWidth); err != nil {
		return err
	}

	a.results = append(a.results, other.results...)
	a.minStart = math.Min(a.minStart, other.minStart)
	a.maxEnd = math.Max(a.maxEnd, other.maxEnd)
	_ = a.positions.Add(other.positions)
	_ = a.vision.Add(other.vision)
	for w, d := range other.distances {
		a.distances[w] = append(a.distances[w], d...)
	}
	return nil
}

// Normalize turns the summed position counts into a distribution.
func (a *AggregatedResults) Normalize() {
	a.positions.Normalize()
}

// Count is the number of contributors.
func (a *AggregatedResults) Count() int {
	return len(a.results)
}

// Results returns the resolved contributors in insertion order.
func (a *AggregatedResults) Results() []*processing.ProcessedResult {
	return a.results
}

func (a *AggregatedResults) Positions() *processing.Heatmap {
	return a.positions
}

func (a *AggregatedResults) Vision() *processing.Heatmap {
	return a.vision
}

// Distances returns the concatenated max orthodromic distances per window.
func (a *AggregatedResults) Distances(window float64) []float64 {
	return a.distances[window]
}

// WindowDistances lists the distances of every layout window, in window
// order.
func (a *AggregatedResults) WindowDistances() []processing.WindowDistances {
	out := make([]processing.WindowDistances, len(a.layout.Windows))
	for i, w := range a.layout.Windows {
		out[i] = processing.WindowDistances{Window: w, Distances: a.distances[w]}
	}
	return out
}

// TimeBounds returns the earliest start and latest end over contributors.
// ok is false until a non-empty session has been added.
func (a *AggregatedResults) TimeBounds() (start, end float64, ok bool) {
	if math.IsInf(a.minStart, 1) {
		return 0, 0, false
	}
	return a.minStart, a.maxEnd, true
}

// AngularVelocities returns every contributor's velocities, optionally with
// timestamps shifted so each session starts at zero.
func (a *AggregatedResults) AngularVelocities(relative bool) []processing.AngularVelocity {
	var out []processing.AngularVelocity
	for _, r := range a.results {
		shift := 0.0
		if relative {
			shift = r.StartOffset + r.SkipTime
		}
		for _, av := range r.AngularVelocities {
			av.T -= shift
			out = append(out, av)
		}
	}
	return out
}
