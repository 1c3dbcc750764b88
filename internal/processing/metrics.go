// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package processing

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/hmd_viewing/internal/orientation"
)

// ComputeAngularVelocity differentiates each pair of consecutive filtered
// points.
func (r *ProcessedResult) ComputeAngularVelocity() {
	if len(r.Filtered) < 2 {
		r.AngularVelocities = nil
		return
	}
	out := make([]AngularVelocity, 0, len(r.Filtered)-1)
	for i := 1; i < len(r.Filtered); i++ {
		a, b := r.Filtered[i-1], r.Filtered[i]
		dt := b.T - a.T
		out = append(out, AngularVelocity{
			T:     a.T + dt/2,
			Q:     b.Q,
			Omega: orientation.AverageAngularVelocity(a.Q, b.Q, dt),
		})
	}
	r.AngularVelocities = out
}

// ComputePositions builds the gaze direction distribution.
func (r *ProcessedResult) ComputePositions(width, height int) {
	r.Positions = PositionCounts(r.Filtered, width, height)
	r.Positions.Normalize()
}

// PositionCounts buckets the viewing direction of every point.
func PositionCounts(points []TimedOrientation, width, height int) *Heatmap {
	h := NewHeatmap(height, width)
	for _, p := range points {
		theta, phi := orientation.Direction(p.Q).ToSpherical()
		i := bucket(width, (theta+math.Pi)/(2*math.Pi))
		j := bucket(height, phi/math.Pi)
		h.Inc(j, i, 1)
	}
	return h
}

func bucket(n int, frac float64) int {
	i := int(math.Floor(float64(n) * frac))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// ComputeVision builds the probability for each equirectangular pixel to be
// inside the viewport. FoV angles are in degrees.
func (r *ProcessedResult) ComputeVision(width, height int, hFoV, vFoV float64) {
	r.Vision = VisionCounts(r.Filtered, width, height, hFoV, vFoV)
	r.Vision.Normalize()
}

// VisionCounts counts, per pixel, how many points had it inside a
// rectangular viewport of hFoV x vFoV degrees centered on the view direction.
func VisionCounts(points []TimedOrientation, width, height int, hFoV, vFoV float64) *Heatmap {
	pixels := pixelDirections(width, height)
	tanH := math.Tan(hFoV * math.Pi / 360)
	tanV := math.Tan(vFoV * math.Pi / 360)

	counts := make([]float64, len(pixels))
	for _, p := range points {
		fwd := p.Q.Rotate(orientation.Forward)
		right := p.Q.Rotate(orientation.Right)
		up := p.Q.Rotate(orientation.Up)
		for idx, px := range pixels {
			a := px.Dot(fwd)
			if a <= 0 {
				continue
			}
			if math.Abs(px.Dot(right)) <= a*tanH && math.Abs(px.Dot(up)) <= a*tanV {
				counts[idx]++
			}
		}
	}
	return &Heatmap{m: mat.NewDense(height, width, counts)}
}

// pixelDirections returns the direction through the center of every pixel,
// row major.
func pixelDirections(width, height int) []orientation.Vector {
	out := make([]orientation.Vector, 0, width*height)
	for j := 0; j < height; j++ {
		phi := math.Pi * (float64(j) + 0.5) / float64(height)
		for i := 0; i < width; i++ {
			theta := 2*math.Pi*(float64(i)+0.5)/float64(width) - math.Pi
			out = append(out, orientation.FromSpherical(theta, phi))
		}
	}
	return out
}

// ComputeMaxOrthodromicDistances records, for every filtered point and every
// window size w, the largest great-circle distance to any point within w
// seconds before or after it.
func (r *ProcessedResult) ComputeMaxOrthodromicDistances(windows []float64) {
	ws := slices.Clone(windows)
	slices.Sort(ws)
	ws = slices.Compact(ws)

	n := len(r.Filtered)
	out := make([]WindowDistances, len(ws))
	for k, w := range ws {
		out[k] = WindowDistances{Window: w, Distances: make([]float64, n)}
	}
	if len(ws) == 0 {
		r.MaxOrthodromicDistances = out
		return
	}

	dirs := make([]orientation.Vector, n)
	for i, p := range r.Filtered {
		dirs[i] = orientation.Direction(p.Q)
	}

	widest := ws[len(ws)-1]
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dt := r.Filtered[j].T - r.Filtered[i].T
			if dt > widest {
				break
			}
			d := dirs[i].Angle(dirs[j])
			for k := len(ws) - 1; k >= 0 && ws[k] >= dt; k-- {
				dist := out[k].Distances
				dist[i] = math.Max(dist[i], d)
				dist[j] = math.Max(dist[j], d)
			}
		}
	}
	r.MaxOrthodromicDistances = out
}

// Compute runs every metric with the given resolution.
func (r *ProcessedResult) Compute(opts ComputeOptions) {
	r.ComputeAngularVelocity()
	r.ComputePositions(opts.PositionWidth, opts.PositionHeight)
	r.ComputeVision(opts.VisionWidth, opts.VisionHeight, opts.HorizontalFoV, opts.VerticalFoV)
	r.ComputeMaxOrthodromicDistances(opts.Windows)
}
