// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package statistics

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/relabs-tech/hmd_viewing/internal/aggregate"
	"github.com/relabs-tech/hmd_viewing/internal/export"
	"github.com/relabs-tech/hmd_viewing/internal/processing"
	"github.com/relabs-tech/hmd_viewing/internal/study"
)

// IndividualDir holds the per session outputs.
const IndividualDir = "individual"

// writeSession stores the position heatmap and the angular velocity CDF of
// one session.
func (d *Driver) writeSession(resultID string, r *processing.ProcessedResult) error {
	base := filepath.Join(d.cfg.StatisticsDir, IndividualDir, resultID)
	if err := export.WriteHeatmapPNG(base+".png", r.Positions, resultID, 0); err != nil {
		return fmt.Errorf("write %s positions: %w", resultID, err)
	}
	if err := export.WriteHeatmapTable(base+"_pos.txt", r.Positions); err != nil {
		return fmt.Errorf("write %s positions: %w", resultID, err)
	}
	if err := export.WriteAngularVelocityCDF(base+".txt", r.AngularVelocities); err != nil {
		return fmt.Errorf("write %s angular velocity: %w", resultID, err)
	}
	return nil
}

// segmentPath is <base>_angVelPerSegment_<s>s.txt.
func segmentPath(base string, segmentSize float64) string {
	return base + "_angVelPerSegment_" + strconv.FormatFloat(segmentSize, 'g', -1, 64) + "s.txt"
}

// writeGroup stores every output of an aggregate. agg is normalized in
// place.
func (d *Driver) writeGroup(g *group, agg *aggregate.AggregatedResults) error {
	base := filepath.Join(d.cfg.StatisticsDir, g.kind, g.name)
	agg.Normalize()

	if err := export.WriteHeatmapPNG(base+".png", agg.Positions(), g.name, 0); err != nil {
		return fmt.Errorf("write %s positions: %w", g.label(), err)
	}
	if err := export.WriteHeatmapTable(base+"_pos.txt", agg.Positions()); err != nil {
		return fmt.Errorf("write %s positions: %w", g.label(), err)
	}
	if err := export.WriteHeatmapPNG(base+"_vision.png", agg.Vision(), g.name+" vision", 0); err != nil {
		return fmt.Errorf("write %s vision: %w", g.label(), err)
	}
	if err := export.WriteHeatmapTable(base+"_vision.txt", agg.Vision()); err != nil {
		return fmt.Errorf("write %s vision: %w", g.label(), err)
	}
	if err := export.WriteAngularVelocityCDF(base+".txt", agg.AngularVelocities(false)); err != nil {
		return fmt.Errorf("write %s angular velocity: %w", g.label(), err)
	}
	if err := export.WriteOrthodromicCDF(base+"_orthoDist.txt", agg.WindowDistances()); err != nil {
		return fmt.Errorf("write %s orthodromic distances: %w", g.label(), err)
	}

	if g.kind != KindVideos && g.kind != KindTotal {
		return nil
	}
	// Sessions of different videos only line up relative to their start.
	velocities := agg.AngularVelocities(g.kind == KindTotal)
	for _, size := range d.cfg.SegmentSizes {
		if err := export.WriteAngularVelocityPerSegment(segmentPath(base, size), velocities, size); err != nil {
			return fmt.Errorf("write %s per segment: %w", g.label(), err)
		}
	}

	if g.kind == KindVideos && d.cfg.Frames {
		frames := d.visionFrames(agg)
		if err := export.WriteFrames(base+"_frames", frames); err != nil {
			return fmt.Errorf("write %s frames: %w", g.label(), err)
		}
	}
	return nil
}

// visionFrames cuts the aggregate into windows of 1/FramesFPS seconds over
// its time bounds. Each frame is the vision of every session during that
// window, normalized per frame.
func (d *Driver) visionFrames(agg *aggregate.AggregatedResults) []export.Frame {
	start, end, ok := agg.TimeBounds()
	if !ok {
		return nil
	}
	c := d.cfg.Compute
	segment := 1 / d.cfg.FramesFPS

	var frames []export.Frame
	for k := 0; ; k++ {
		t := start + float64(k)*segment
		if t >= end {
			break
		}
		h := processing.NewHeatmap(c.VisionHeight, c.VisionWidth)
		for _, r := range agg.Results() {
			points := r.FilteredBetween(t, t+segment)
			if len(points) == 0 {
				continue
			}
			_ = h.Add(processing.VisionCounts(points, c.VisionWidth, c.VisionHeight, c.HorizontalFoV, c.VerticalFoV))
		}
		h.Normalize()
		frames = append(frames, export.Frame{Start: t, End: t + segment, Heatmap: h})
	}
	return frames
}

// writeUsers stores the participant summary next to the total aggregate.
func (d *Driver) writeUsers(users []study.User, sessions []study.Session, failed []bool) error {
	counts := make(map[int]int, len(users))
	for i, s := range sessions {
		if !failed[i] {
			counts[s.User.UID]++
		}
	}
	rows := make([]export.UserRow, len(users))
	for i, u := range users {
		rows[i] = export.UserRow{UID: u.UID, Age: u.Age, Sex: string(u.Sex), Sessions: counts[u.UID]}
	}
	path := filepath.Join(d.cfg.StatisticsDir, KindTotal, "users.txt")
	if err := export.WriteUserSummary(path, rows); err != nil {
		return fmt.Errorf("write user summary: %w", err)
	}
	return nil
}
