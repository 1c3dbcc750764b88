// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package export writes statistics as plain text tables and PNG images.
package export

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/relabs-tech/hmd_viewing/internal/fileutil"
	"github.com/relabs-tech/hmd_viewing/internal/processing"
)

const angularVelocityHeader = "cdf angVel angVelDeg verticalAngVel verticalAngVelDeg " +
	"horizontalAngVel horizontalAngVelDeg yawAngVel yawAngVelDeg " +
	"pitchAngVel pitchAngVelDeg rollAngVel rollAngVelDeg"

// segmentColumns names the decompositions in the per-segment table.
var segmentColumns = [6]string{
	"AngVelNorm", "VerticalAngVel", "HorizontalAngVel", "YawAngVel", "PitchAngVel", "RollAngVel",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func degrees(rad float64) float64 {
	if rad == -1 {
		return -1
	}
	return rad * 180 / math.Pi
}

// decomposed holds one sorted column per decomposition.
type decomposed [6][]float64

func decompose(velocities []processing.AngularVelocity) decomposed {
	var cols decomposed
	for i := range cols {
		cols[i] = make([]float64, 0, len(velocities))
	}
	for _, av := range velocities {
		vals := processing.Decompose(av.Q, av.Omega).Values()
		for i, v := range vals {
			cols[i] = append(cols[i], v)
		}
	}
	for i := range cols {
		sort.Float64s(cols[i])
	}
	return cols
}

// WriteAngularVelocityCDF writes 101 percentile rows of every decomposition,
// in rad/s and deg/s.
func WriteAngularVelocityCDF(path string, velocities []processing.AngularVelocity) error {
	cols := decompose(velocities)
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		fmt.Fprintln(w, angularVelocityHeader)
		for p := 0; p <= 100; p++ {
			row := []string{strconv.Itoa(p)}
			for _, col := range cols {
				v := processing.Percentile(col, float64(p))
				row = append(row, formatFloat(v), formatFloat(degrees(v)))
			}
			fmt.Fprintln(w, strings.Join(row, " "))
		}
		return nil
	})
}

// WriteOrthodromicCDF writes 101 percentile rows, one column per window.
func WriteOrthodromicCDF(path string, windows []processing.WindowDistances) error {
	sorted := make([][]float64, len(windows))
	header := []string{"cdf"}
	for i, wd := range windows {
		sorted[i] = append([]float64(nil), wd.Distances...)
		sort.Float64s(sorted[i])
		header = append(header, formatFloat(wd.Window)+"s")
	}

	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		fmt.Fprintln(w, strings.Join(header, " "))
		for p := 0; p <= 100; p++ {
			row := []string{strconv.Itoa(p)}
			for _, col := range sorted {
				row = append(row, formatFloat(processing.Percentile(col, float64(p))))
			}
			fmt.Fprintln(w, strings.Join(row, " "))
		}
		return nil
	})
}

// WriteAngularVelocityPerSegment buckets velocities into segments of
// segmentSize seconds and writes p10/p25/median/p75/p90 of every
// decomposition per segment. Segment ids are shifted so the first one is 0.
func WriteAngularVelocityPerSegment(path string, velocities []processing.AngularVelocity, segmentSize float64) error {
	segments := make(map[int][]processing.AngularVelocity)
	for _, av := range velocities {
		id := int(math.Floor(av.T / segmentSize))
		segments[id] = append(segments[id], av)
	}
	ids := make([]int, 0, len(segments))
	for id := range segments {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	header := []string{"segId"}
	for _, name := range segmentColumns {
		header = append(header, "min"+name, "25"+name, "med"+name, "75"+name, "max"+name)
	}

	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		fmt.Fprintln(w, strings.Join(header, " "))
		for _, id := range ids {
			row := []string{strconv.Itoa(id - ids[0])}
			for _, col := range decompose(segments[id]) {
				for _, p := range []float64{10, 25, 50, 75, 90} {
					row = append(row, formatFloat(processing.Percentile(col, p)))
				}
			}
			fmt.Fprintln(w, strings.Join(row, " "))
		}
		return nil
	})
}

// WriteHeatmapTable dumps h as "i j value" rows, i over the width first.
func WriteHeatmapTable(path string, h *processing.Heatmap) error {
	height, width := h.Dims()
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		fmt.Fprintln(w, "i j value")
		for i := 0; i < width; i++ {
			for j := 0; j < height; j++ {
				fmt.Fprintf(w, "%d %d %s\n", i, j, formatFloat(h.At(j, i)))
			}
		}
		return nil
	})
}

// UserRow is one line of the participant summary.
type UserRow struct {
	UID      int
	Age      int // -1 when unknown
	Sex      string
	Sessions int
}

// WriteUserSummary writes "uid age sex sessions" rows. An unknown sex is
// written as "-".
func WriteUserSummary(path string, rows []UserRow) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		fmt.Fprintln(w, "uid age sex sessions")
		for _, r := range rows {
			sex := r.Sex
			if sex == "" {
				sex = "-"
			}
			fmt.Fprintf(w, "%d %d %s %d\n", r.UID, r.Age, sex, r.Sessions)
		}
		return nil
	})
}
