// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package processing

// Options control how a raw log is turned into a filtered series.
type Options struct {
	// Step is the filtering step in seconds. The grid has Step/2 resolution.
	Step float64
	// SkipTime is the warm-up in seconds discarded at the start of a log.
	SkipTime float64
}

func DefaultOptions() Options {
	return Options{Step: 0.03, SkipTime: 10}
}

// ComputeOptions fix the resolution of every derived metric.
type ComputeOptions struct {
	Windows        []float64 // seconds
	PositionWidth  int
	PositionHeight int
	VisionWidth    int
	VisionHeight   int
	HorizontalFoV  float64 // degrees
	VerticalFoV    float64 // degrees
}

func DefaultComputeOptions() ComputeOptions {
	return ComputeOptions{
		Windows:        []float64{1, 2, 3, 5, 10},
		PositionWidth:  100,
		PositionHeight: 100,
		VisionWidth:    100,
		VisionHeight:   50,
		HorizontalFoV:  110,
		VerticalFoV:    90,
	}
}
