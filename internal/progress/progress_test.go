// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) Publish(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func TestCounterMonotonic(t *testing.T) {
	rec := &recorder{}
	c := NewCounter("run-1", 50, rec)
	c.Stage("sessions")

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Step("session done")
		}()
	}
	wg.Wait()
	c.Finish(nil)

	snaps := rec.all()
	if len(snaps) != 1+1+60+1 {
		t.Fatalf("published %d snapshots, want 63", len(snaps))
	}
	prev := -1
	for i, s := range snaps {
		if s.Value < prev {
			t.Fatalf("snapshot %d value %d after %d", i, s.Value, prev)
		}
		if s.Value > s.Maximum {
			t.Fatalf("snapshot %d value %d exceeds maximum %d", i, s.Value, s.Maximum)
		}
		if s.RunID != "run-1" {
			t.Fatalf("snapshot %d run id %q", i, s.RunID)
		}
		prev = s.Value
	}
	last := snaps[len(snaps)-1]
	if last.State != StateDone || last.Value != 50 || last.Fraction() != 1 {
		t.Errorf("last snapshot = %+v", last)
	}
}

func TestCounterFailure(t *testing.T) {
	rec := &recorder{}
	c := NewCounter("run-2", 10, rec)
	c.Step("one")
	c.Finish(errors.New("step mismatch"))

	last := c.Snapshot()
	if last.State != StateFailed || last.Value != 1 || last.Message != "step mismatch" {
		t.Errorf("Snapshot() = %+v", last)
	}
	if !last.Finished() {
		t.Error("failed snapshot should be finished")
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Latest(); ok {
		t.Fatal("new tracker should have no snapshot")
	}

	tr.Publish(Snapshot{RunID: "a", Value: 1, Maximum: 3})
	ch, cancel := tr.Subscribe()

	if s := <-ch; s.Value != 1 {
		t.Errorf("primed snapshot value = %d, want 1", s.Value)
	}
	tr.Publish(Snapshot{RunID: "a", Value: 2, Maximum: 3})
	if s := <-ch; s.Value != 2 {
		t.Errorf("forwarded snapshot value = %d, want 2", s.Value)
	}

	cancel()
	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}
	cancel()
	tr.Publish(Snapshot{RunID: "a", Value: 3, Maximum: 3})

	if s, ok := tr.Latest(); !ok || s.Value != 3 {
		t.Errorf("Latest() = %+v, %v", s, ok)
	}
}

func TestTrackerSlowSubscriberDoesNotBlock(t *testing.T) {
	tr := NewTracker()
	_, cancel := tr.Subscribe()
	defer cancel()
	for i := 0; i < subscriberBuffer*4; i++ {
		tr.Publish(Snapshot{Value: i})
	}
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	r := Multi(a, nil, b)
	r.Publish(Snapshot{Value: 7})
	if len(a.all()) != 1 || len(b.all()) != 1 {
		t.Errorf("fan-out counts %d, %d", len(a.all()), len(b.all()))
	}
	if Multi(a) != Reporter(a) {
		t.Error("Multi with a single reporter should return it")
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(zerolog.New(&buf).Level(zerolog.InfoLevel))

	r.Publish(Snapshot{RunID: "x", State: StateRunning, Stage: "sessions", Maximum: 4})
	r.Publish(Snapshot{RunID: "x", State: StateRunning, Stage: "sessions", Value: 1, Maximum: 4})
	r.Publish(Snapshot{RunID: "x", State: StateDone, Stage: "total", Value: 4, Maximum: 4})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d info lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], `"state":"done"`) {
		t.Errorf("last line = %s", lines[1])
	}
}

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient records publishes and keeps the subscription callback.
type fakeClient struct {
	mqtt.Client
	mu        sync.Mutex
	published map[string][]byte
	handler   mqtt.MessageHandler
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.published == nil {
		c.published = make(map[string][]byte)
	}
	c.published[topic] = payload.([]byte)
	return doneToken{}
}

func (c *fakeClient) Subscribe(_ string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.handler = cb
	return doneToken{}
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestMQTTRoundTrip(t *testing.T) {
	client := &fakeClient{}
	NewMQTTReporter(client, "hmd/progress").Publish(Snapshot{RunID: "r", State: StateRunning, Value: 2, Maximum: 5})

	payload, ok := client.published["hmd/progress"]
	if !ok {
		t.Fatal("nothing published on hmd/progress")
	}
	var wire map[string]any
	if err := json.Unmarshal(payload, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["run_id"] != "r" || wire["state"] != "running" {
		t.Errorf("payload = %s", payload)
	}

	tr := NewTracker()
	if err := Subscribe(client, "hmd/progress", tr); err != nil {
		t.Fatal(err)
	}
	client.handler(client, fakeMessage{topic: "hmd/progress", payload: []byte("not json")})
	if _, ok := tr.Latest(); ok {
		t.Fatal("malformed payload reached the tracker")
	}
	client.handler(client, fakeMessage{topic: "hmd/progress", payload: payload})
	if s, ok := tr.Latest(); !ok || s.Value != 2 || s.Maximum != 5 {
		t.Errorf("Latest() = %+v, %v", s, ok)
	}
}
