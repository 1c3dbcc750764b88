// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/hmd_viewing/internal/logging"
)

// LogReader parses a session log written by the player. Each line holds
// space separated fields: timestamp frameId w x y z. Malformed lines, such
// as a last line cut short when the player was killed, are skipped.
type LogReader struct {
	scanner *bufio.Scanner
	lineNum int
	skipped int
	log     zerolog.Logger
}

func NewLogReader(r io.Reader) *LogReader {
	return &LogReader{
		scanner: bufio.NewScanner(r),
		log:     logging.WithComponent("orientation"),
	}
}

func (r *LogReader) Next() (Sample, error) {
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		s, err := parseLogLine(line)
		if err != nil {
			r.skipped++
			r.log.Debug().Err(err).Int("line", r.lineNum).Msg("malformed log line skipped")
			continue
		}
		return s, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Sample{}, fmt.Errorf("error reading log: %w", err)
	}
	return Sample{}, io.EOF
}

// Skipped is the number of malformed lines read so far.
func (r *LogReader) Skipped() int {
	return r.skipped
}

func parseLogLine(line string) (Sample, error) {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return Sample{}, fmt.Errorf("expected 6 fields, got %d: %q", len(fields), line)
	}

	var values [4]float64
	ts, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("invalid timestamp %q: %w", fields[0], err)
	}
	frameID, err := strconv.Atoi(fields[1])
	if err != nil {
		return Sample{}, fmt.Errorf("invalid frame id %q: %w", fields[1], err)
	}
	for i := 0; i < 4; i++ {
		values[i], err = strconv.ParseFloat(fields[2+i], 64)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid quaternion component %q: %w", fields[2+i], err)
		}
	}

	return Sample{
		Timestamp: ts,
		FrameID:   frameID,
		Q:         NewQuaternion(values[0], values[1], values[2], values[3]),
	}, nil
}
