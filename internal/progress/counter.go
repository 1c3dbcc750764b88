// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package progress

import (
	"sync"
	"time"
)

// Counter is the progress of one run. It is safe for concurrent use and
// publishes snapshots in increasing Value order.
type Counter struct {
	mu       sync.Mutex
	reporter Reporter
	snap     Snapshot
	now      func() time.Time
}

// NewCounter starts a run at value 0 and publishes the first snapshot.
func NewCounter(runID string, maximum int, r Reporter) *Counter {
	if r == nil {
		r = Discard
	}
	c := &Counter{
		reporter: r,
		snap:     Snapshot{RunID: runID, State: StateRunning, Maximum: maximum},
		now:      time.Now,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishLocked("run started")
	return c
}

// Stage names the phase the following steps belong to.
func (c *Counter) Stage(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Stage = name
	c.publishLocked(name)
}

// Step advances the counter by one. It saturates at the maximum.
func (c *Counter) Step(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Value < c.snap.Maximum {
		c.snap.Value++
	}
	c.publishLocked(msg)
}

// Finish publishes the terminal snapshot. A successful run ends at the
// maximum.
func (c *Counter) Finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.snap.State = StateFailed
		c.publishLocked(err.Error())
		return
	}
	c.snap.State = StateDone
	c.snap.Value = c.snap.Maximum
	c.publishLocked("run finished")
}

// Snapshot returns the current state without publishing it.
func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Counter) publishLocked(msg string) {
	c.snap.Message = msg
	c.snap.Time = c.now()
	c.reporter.Publish(c.snap)
}
