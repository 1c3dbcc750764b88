// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"io"
)

type syntheticSource struct {
	axis     Vector
	rate     float64
	interval float64
	count    int
	next     int
}

// NewSyntheticSource creates a source that rotates at a constant rate
// (rad/s) around axis, emitting count samples every interval seconds.
func NewSyntheticSource(axis Vector, rate, interval float64, count int) Source {
	return &syntheticSource{axis: axis, rate: rate, interval: interval, count: count}
}

func (s *syntheticSource) Next() (Sample, error) {
	if s.next >= s.count {
		return Sample{}, io.EOF
	}
	t := float64(s.next) * s.interval
	sample := Sample{
		Timestamp: t,
		FrameID:   s.next,
		Q:         FromAxisAngle(s.axis, s.rate*t),
	}
	s.next++
	return sample, nil
}

// SliceSource replays a fixed list of samples.
type SliceSource struct {
	samples []Sample
	next    int
}

func NewSliceSource(samples []Sample) *SliceSource {
	return &SliceSource{samples: samples}
}

func (s *SliceSource) Next() (Sample, error) {
	if s.next >= len(s.samples) {
		return Sample{}, io.EOF
	}
	sample := s.samples[s.next]
	s.next++
	return sample, nil
}
