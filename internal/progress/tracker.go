// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package progress

import "sync"

// subscriberBuffer is how many snapshots a slow subscriber may lag behind
// before updates to it are dropped.
const subscriberBuffer = 16

// Tracker remembers the latest snapshot and forwards every snapshot to its
// subscribers. It is a Reporter.
type Tracker struct {
	mu     sync.RWMutex
	latest Snapshot
	have   bool
	subs   map[chan Snapshot]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{subs: make(map[chan Snapshot]struct{})}
}

func (t *Tracker) Publish(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = s
	t.have = true
	for ch := range t.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Latest returns the last published snapshot, if any.
func (t *Tracker) Latest() (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest, t.have
}

// Subscribe returns a channel of future snapshots, primed with the latest
// one when it exists. cancel closes the channel; call it exactly once.
func (t *Tracker) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	t.mu.Lock()
	if t.have {
		ch <- t.latest
	}
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.subs[ch]; ok {
			delete(t.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}
