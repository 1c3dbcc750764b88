// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("result"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("result"))

	RecordCacheLookup("result", true)
	RecordCacheLookup("result", false)
	RecordCacheLookup("result", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("result")) - hits; got != 1 {
		t.Errorf("hits increased by %v, want 1", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("result")) - misses; got != 2 {
		t.Errorf("misses increased by %v, want 2", got)
	}
}

func TestRecordRun(t *testing.T) {
	ok := testutil.ToFloat64(RunsTotal.WithLabelValues("success"))
	failed := testutil.ToFloat64(RunsTotal.WithLabelValues("error"))

	RecordRun(nil)
	RecordRun(errors.New("boom"))

	if got := testutil.ToFloat64(RunsTotal.WithLabelValues("success")) - ok; got != 1 {
		t.Errorf("success runs increased by %v", got)
	}
	if got := testutil.ToFloat64(RunsTotal.WithLabelValues("error")) - failed; got != 1 {
		t.Errorf("error runs increased by %v", got)
	}
}

func TestRecordDurations(t *testing.T) {
	RecordSessionCompute(20 * time.Millisecond)
	RecordGroupAggregate("video", time.Second)

	if n := testutil.CollectAndCount(GroupAggregateDuration); n < 1 {
		t.Errorf("expected at least one group histogram, got %d", n)
	}
}
