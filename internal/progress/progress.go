// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package progress carries the state of a statistics run to whoever watches
// it: the log, an MQTT topic, websocket clients.
package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State of a run as seen from outside.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Snapshot is one progress update. Value never decreases within a run and
// never exceeds Maximum.
type Snapshot struct {
	RunID   string    `json:"run_id"`
	State   State     `json:"state"`
	Stage   string    `json:"stage,omitempty"`
	Value   int       `json:"value"`
	Maximum int       `json:"maximum"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Fraction is Value/Maximum in [0, 1].
func (s Snapshot) Fraction() float64 {
	if s.Maximum <= 0 {
		return 0
	}
	return float64(s.Value) / float64(s.Maximum)
}

// Finished reports whether the run reached a terminal state.
func (s Snapshot) Finished() bool {
	return s.State == StateDone || s.State == StateFailed
}

// Reporter receives snapshots. Publish must not block for long; it is
// called from the worker goroutines.
type Reporter interface {
	Publish(Snapshot)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Snapshot)

func (f ReporterFunc) Publish(s Snapshot) { f(s) }

// Discard drops every snapshot.
var Discard Reporter = ReporterFunc(func(Snapshot) {})

type multi []Reporter

func (m multi) Publish(s Snapshot) {
	for _, r := range m {
		r.Publish(s)
	}
}

// Multi fans snapshots out to every non-nil reporter, in order.
func Multi(reporters ...Reporter) Reporter {
	out := make(multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// LogReporter writes stage changes and terminal states at info level and
// every other step at debug level.
type LogReporter struct {
	log zerolog.Logger

	mu    sync.Mutex
	stage string
}

func NewLogReporter(log zerolog.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Publish(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := r.log.Debug()
	if s.Stage != r.stage || s.Finished() || s.Value == 0 {
		ev = r.log.Info()
	}
	r.stage = s.Stage
	ev.Str("run_id", s.RunID).
		Str("state", string(s.State)).
		Str("stage", s.Stage).
		Int("value", s.Value).
		Int("maximum", s.Maximum).
		Msg(s.Message)
}
