// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/relabs-tech/hmd_viewing/internal/logging"
	"github.com/relabs-tech/hmd_viewing/internal/orientation"
)

// TimedOrientation is one point of the filtered series.
type TimedOrientation struct {
	T float64                `json:"t"`
	Q orientation.Quaternion `json:"q"`
}

// AngularVelocity is recorded at the midpoint of two filtered points and
// carries the orientation of the later one.
type AngularVelocity struct {
	T     float64                `json:"t"`
	Q     orientation.Quaternion `json:"q"`
	Omega orientation.Vector     `json:"w"` // rad/s
}

// WindowDistances holds one max orthodromic distance per filtered point for
// a given window size.
type WindowDistances struct {
	Window    float64   `json:"window"`
	Distances []float64 `json:"distances"`
}

// ProcessedResult is one session after filtering, plus whatever metrics
// have been computed on it. The Compute* methods can run in any order and
// overwrite their own field when called again.
type ProcessedResult struct {
	Step        float64 `json:"step"`
	SkipTime    float64 `json:"skip_time"`
	StartOffset float64 `json:"start_offset"`

	Samples  []orientation.Sample `json:"samples"`
	Filtered []TimedOrientation   `json:"filtered"`

	AngularVelocities       []AngularVelocity `json:"angular_velocities"`
	Positions               *Heatmap          `json:"positions"`
	Vision                  *Heatmap          `json:"vision"`
	MaxOrthodromicDistances []WindowDistances `json:"max_orthodromic_distances"`
}

// Load reads the log at logPath and its sidecar start offset.
func Load(logPath string, opts Options) (*ProcessedResult, error) {
	offset, err := ReadStartOffset(SidecarPath(logPath))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s: %w", logPath, err)
	}
	defer f.Close()

	r, err := LoadFrom(orientation.NewLogReader(f), offset, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", logPath, err)
	}
	return r, nil
}

// LoadFrom consumes src until io.EOF and filters it. Samples within the
// first SkipTime seconds are dropped; the first kept sample becomes the
// origin and lands at startOffset + SkipTime.
func LoadFrom(src orientation.Source, startOffset float64, opts Options) (*ProcessedResult, error) {
	if opts.Step <= 0 {
		return nil, fmt.Errorf("invalid step %v", opts.Step)
	}

	r := &ProcessedResult{
		Step:        opts.Step,
		SkipTime:    opts.SkipTime,
		StartOffset: startOffset,
	}

	byTime := make(map[float64]orientation.Sample)
	var first, origin float64
	started, skipping := false, true
	dropped := 0
	for {
		s, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !validSample(s) {
			dropped++
			continue
		}
		if !started {
			first = s.Timestamp
			started = true
		}
		if skipping {
			if s.Timestamp-first < opts.SkipTime {
				continue
			}
			skipping = false
			origin = s.Timestamp
		}
		t := s.Timestamp - origin + startOffset + opts.SkipTime
		byTime[t] = orientation.Sample{Timestamp: t, FrameID: s.FrameID, Q: s.Q.Normalize()}
	}

	if dropped > 0 {
		log := logging.WithComponent("processing")
		log.Debug().
			Int("dropped", dropped).
			Msg("samples without a valid orientation dropped")
	}

	r.Samples = make([]orientation.Sample, 0, len(byTime))
	for _, s := range byTime {
		r.Samples = append(r.Samples, s)
	}
	sort.Slice(r.Samples, func(i, j int) bool {
		return r.Samples[i].Timestamp < r.Samples[j].Timestamp
	})

	r.resample()
	return r, nil
}

// validSample rejects samples that cannot be normalized or placed in time.
func validSample(s orientation.Sample) bool {
	n := s.Q.Norm()
	return n != 0 && !math.IsNaN(n) && !math.IsInf(n, 0) &&
		!math.IsNaN(s.Timestamp) && !math.IsInf(s.Timestamp, 0)
}

// resample fills Filtered on the half-step grid starting at
// StartOffset+SkipTime and ending at the last sample, inclusive.
func (r *ProcessedResult) resample() {
	r.Filtered = nil
	n := len(r.Samples)
	if n == 0 {
		return
	}

	start := r.StartOffset + r.SkipTime
	end := r.Samples[n-1].Timestamp
	half := r.Step / 2

	// lo is the last sample at or before t, hi the first at or after t.
	lo, hi := 0, 0
	for k := 0; ; k++ {
		t := start + float64(k)*half
		if t > end {
			break
		}
		for lo+1 < n && r.Samples[lo+1].Timestamp <= t {
			lo++
		}
		for hi < n-1 && r.Samples[hi].Timestamp < t {
			hi++
		}

		s1, s2 := r.Samples[lo], r.Samples[hi]
		q := s1.Q
		if s1.Timestamp != s2.Timestamp {
			weight := (t - s1.Timestamp) / (s2.Timestamp - s1.Timestamp)
			q = orientation.Slerp(s1.Q, s2.Q, weight)
		}
		r.Filtered = append(r.Filtered, TimedOrientation{T: t, Q: q.Normalize()})
	}
}

// Resolve lets a computed result be aggregated directly.
func (r *ProcessedResult) Resolve(context.Context) (*ProcessedResult, error) {
	return r, nil
}

// TimeBounds returns the first and last retained sample timestamps.
// ok is false for an empty session.
func (r *ProcessedResult) TimeBounds() (start, end float64, ok bool) {
	if len(r.Samples) == 0 {
		return 0, 0, false
	}
	return r.Samples[0].Timestamp, r.Samples[len(r.Samples)-1].Timestamp, true
}

// Windows returns the window sizes the orthodromic metric was computed for.
func (r *ProcessedResult) Windows() []float64 {
	out := make([]float64, len(r.MaxOrthodromicDistances))
	for i, w := range r.MaxOrthodromicDistances {
		out[i] = w.Window
	}
	return out
}

// FilteredBetween returns the filtered points with start <= t < end.
func (r *ProcessedResult) FilteredBetween(start, end float64) []TimedOrientation {
	i := sort.Search(len(r.Filtered), func(i int) bool { return r.Filtered[i].T >= start })
	j := sort.Search(len(r.Filtered), func(i int) bool { return r.Filtered[i].T >= end })
	if i >= j {
		return nil
	}
	return r.Filtered[i:j]
}
