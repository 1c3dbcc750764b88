// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cache

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/relabs-tech/hmd_viewing/internal/orientation"
	"github.com/relabs-tech/hmd_viewing/internal/processing"
)

func testCompute() processing.ComputeOptions {
	c := processing.DefaultComputeOptions()
	c.PositionWidth, c.PositionHeight = 10, 10
	c.VisionWidth, c.VisionHeight = 10, 5
	return c
}

var testRef = SessionRef{ResultID: "1_test1_video1", LogPath: "unused", UserID: 1, TestID: "test1", VideoID: "video1"}

// countingLoader synthesizes a short yaw session instead of reading a file.
func countingLoader(calls *atomic.Int32) loadFunc {
	return func(_ string, opts processing.Options) (*processing.ProcessedResult, error) {
		calls.Add(1)
		src := orientation.NewSyntheticSource(orientation.Up, math.Pi/4, 0.5, 8)
		return processing.LoadFrom(src, 0, opts)
	}
}

func load(ctx context.Context, s Store, opts processing.Options, calls *atomic.Int32) *ResultContainer {
	c := LoadResultContainer(ctx, s, testRef, opts, testCompute())
	c.load = countingLoader(calls)
	return c
}

func TestResultContainerCaching(t *testing.T) {
	ctx := context.Background()
	opts := processing.Options{Step: 0.5}

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32

			c := load(ctx, s, opts, &calls)
			if !c.IsNew() {
				t.Fatal("first load should be new")
			}
			first, err := c.Resolve(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if calls.Load() != 1 {
				t.Fatalf("loader called %d times", calls.Load())
			}

			c = load(ctx, s, opts, &calls)
			if c.IsNew() {
				t.Fatal("second load should hit the cache")
			}
			second, err := c.Resolve(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if calls.Load() != 1 {
				t.Errorf("cached container recomputed (%d calls)", calls.Load())
			}
			if c.IsNew() {
				t.Error("lazy load marked the container new")
			}
			if len(second.Filtered) != len(first.Filtered) || second.Positions.Sum() == 0 {
				t.Error("cached result differs from the computed one")
			}

			other := opts
			other.Step = 0.25
			c = load(ctx, s, other, &calls)
			if !c.IsNew() {
				t.Error("step change should invalidate the container")
			}
			r, err := c.Resolve(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if r.Step != 0.25 || calls.Load() != 2 {
				t.Errorf("step %v after %d calls", r.Step, calls.Load())
			}
		})
	}
}

func TestResultContainerDeterministicDump(t *testing.T) {
	ctx := context.Background()
	opts := processing.Options{Step: 0.5}
	var calls atomic.Int32

	s1, s2 := NewFileStore(t.TempDir()), NewFileStore(t.TempDir())
	if _, err := load(ctx, s1, opts, &calls).Resolve(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := load(ctx, s2, opts, &calls).Resolve(ctx); err != nil {
		t.Fatal(err)
	}

	a, _ := s1.Get(ctx, ProcessedKey(testRef.ResultID))
	b, _ := s2.Get(ctx, ProcessedKey(testRef.ResultID))
	if len(a) == 0 || !bytes.Equal(a, b) {
		t.Error("same session produced different dumps")
	}
}

func TestResultContainerCorruptEntries(t *testing.T) {
	ctx := context.Background()
	opts := processing.Options{Step: 0.5}
	s := NewFileStore(t.TempDir())
	var calls atomic.Int32

	if err := s.Put(ctx, ResultKey(testRef.ResultID), []byte("garbage")); err != nil {
		t.Fatal(err)
	}
	c := load(ctx, s, opts, &calls)
	if !c.IsNew() {
		t.Fatal("corrupt container should be a miss")
	}
	if _, err := c.Resolve(ctx); err != nil {
		t.Fatalf("corrupt cache must not surface as an error: %v", err)
	}

	// A valid container whose processed dump is damaged recomputes silently.
	if err := s.Put(ctx, ProcessedKey(testRef.ResultID), []byte{codecVersion, 1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	c = load(ctx, s, opts, &calls)
	if c.IsNew() {
		t.Fatal("container itself is still valid")
	}
	if _, err := c.Resolve(ctx); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 || !c.IsNew() {
		t.Errorf("expected a recompute, got %d calls, new=%v", calls.Load(), c.IsNew())
	}
}

func TestResultContainerConcurrentResolve(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	c := load(ctx, NewFileStore(t.TempDir()), processing.Options{Step: 0.5}, &calls)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Resolve(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1", calls.Load())
	}
}

func TestResultContainerLoaderErrorLeavesPendingEntry(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	boom := errors.New("boom")

	c := LoadResultContainer(ctx, s, testRef, processing.Options{Step: 0.5}, testCompute())
	c.load = func(string, processing.Options) (*processing.ProcessedResult, error) { return nil, boom }
	if _, err := c.Resolve(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}

	var calls atomic.Int32
	c = load(ctx, s, processing.Options{Step: 0.5}, &calls)
	if !c.IsNew() {
		t.Error("an interrupted computation must be visible on the next load")
	}
}

func TestAggregateContainer(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			key := AggregateKey("videos", "video1")

			c := LoadAggregateContainer(ctx, s, key, 0.03, 3)
			if !c.IsNew() {
				t.Fatal("missing aggregate should be new")
			}
			summary := GroupSummary{Kind: "video", Name: "video1", Members: []string{"a", "b", "c"}, Start: 10, End: 70}
			if err := c.Save(ctx, summary); err != nil {
				t.Fatal(err)
			}

			c = LoadAggregateContainer(ctx, s, key, 0.03, 3)
			if c.IsNew() {
				t.Fatal("matching (step, size) should hit")
			}
			if got := c.Summary(); got.Name != "video1" || len(got.Members) != 3 || got.End != 70 {
				t.Errorf("summary = %+v", got)
			}

			if !LoadAggregateContainer(ctx, s, key, 0.03, 4).IsNew() {
				t.Error("size change should miss")
			}
			if !LoadAggregateContainer(ctx, s, key, 0.06, 3).IsNew() {
				t.Error("step change should miss")
			}
		})
	}
}
