// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/hmd_viewing/internal/logging"
	"github.com/relabs-tech/hmd_viewing/internal/metrics"
	"github.com/relabs-tech/hmd_viewing/internal/processing"
)

// SessionRef identifies one recorded session on disk.
type SessionRef struct {
	ResultID string `json:"result_id"`
	LogPath  string `json:"log_path"`
	UserID   int    `json:"user_id"`
	TestID   string `json:"test_id"`
	VideoID  string `json:"video_id"`
}

// ResultKey is the key of a session container.
func ResultKey(resultID string) string {
	return "individual/" + resultID + ".dump"
}

// ProcessedKey is the key of a session's computed metrics.
func ProcessedKey(resultID string) string {
	return "individual/" + resultID + "_processed.dump"
}

// resultRecord is what gets persisted for a container. Step 0 marks a
// computation that was started but never finished.
type resultRecord struct {
	Session SessionRef `json:"session"`
	Step    float64    `json:"step"`
}

type loadFunc func(logPath string, opts processing.Options) (*processing.ProcessedResult, error)

// ResultContainer is the cache handle of one session. The processed result
// is only read from the store when first needed.
type ResultContainer struct {
	store   Store
	ref     SessionRef
	opts    processing.Options
	compute processing.ComputeOptions
	load    loadFunc
	log     zerolog.Logger

	mu     sync.Mutex
	step   float64
	result *processing.ProcessedResult
	isNew  bool
}

// LoadResultContainer reads the container of ref. It never fails: a
// missing, unreadable or stale entry yields a container marked new.
func LoadResultContainer(ctx context.Context, store Store, ref SessionRef, opts processing.Options, compute processing.ComputeOptions) *ResultContainer {
	c := &ResultContainer{
		store:   store,
		ref:     ref,
		opts:    opts,
		compute: compute,
		load:    processing.Load,
		log:     logging.WithComponent("cache").With().Str("result_id", ref.ResultID).Logger(),
	}

	var rec resultRecord
	data, err := store.Get(ctx, ResultKey(ref.ResultID))
	switch {
	case errors.Is(err, ErrNotFound):
		c.isNew = true
	case err != nil:
		c.log.Debug().Err(err).Msg("container unreadable, treating as miss")
		metrics.CacheErrors.WithLabelValues("result").Inc()
		c.isNew = true
	default:
		if err := decode(data, &rec); err != nil {
			c.log.Debug().Err(err).Msg("container corrupt, treating as miss")
			metrics.CacheErrors.WithLabelValues("result").Inc()
			c.isNew = true
			break
		}
		c.step = rec.Step
		c.isNew = rec.Step != opts.Step
	}

	metrics.RecordCacheLookup("result", !c.isNew)
	return c
}

func (c *ResultContainer) Ref() SessionRef {
	return c.ref
}

// IsNew reports whether the session had to be (or must be) recomputed
// during this run.
func (c *ResultContainer) IsNew() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isNew
}

// Step is the step the cached result was computed with, 0 if none.
func (c *ResultContainer) Step() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Resolve returns the processed result for the configured step.
func (c *ResultContainer) Resolve(ctx context.Context) (*processing.ProcessedResult, error) {
	return c.GetProcessedResult(ctx, c.opts.Step)
}

// GetProcessedResult returns the cached result when it was computed with
// step, otherwise recomputes it and updates the cache. Concurrent callers
// share a single computation.
func (c *ResultContainer) GetProcessedResult(ctx context.Context, step float64) (*processing.ProcessedResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if step != 0 && c.step == step {
		if c.result != nil {
			return c.result, nil
		}
		r, err := c.loadProcessed(ctx)
		if err == nil {
			c.result = r
			return r, nil
		}
		c.log.Debug().Err(err).Msg("processed result unreadable, recomputing")
		metrics.CacheErrors.WithLabelValues("result").Inc()
	}

	return c.recompute(ctx, step)
}

func (c *ResultContainer) loadProcessed(ctx context.Context) (*processing.ProcessedResult, error) {
	data, err := c.store.Get(ctx, ProcessedKey(c.ref.ResultID))
	if err != nil {
		return nil, err
	}
	var r processing.ProcessedResult
	if err := decode(data, &r); err != nil {
		return nil, err
	}
	if r.Step != c.step {
		return nil, fmt.Errorf("%w: processed step %v, container step %v", errCorrupt, r.Step, c.step)
	}
	return &r, nil
}

func (c *ResultContainer) recompute(ctx context.Context, step float64) (*processing.ProcessedResult, error) {
	c.isNew = true
	c.step = 0
	c.result = nil
	if err := c.save(ctx); err != nil {
		return nil, err
	}

	opts := c.opts
	opts.Step = step
	start := time.Now()
	r, err := c.load(c.ref.LogPath, opts)
	if err != nil {
		return nil, err
	}
	r.Compute(c.compute)
	metrics.RecordSessionCompute(time.Since(start))

	data, err := encode(r)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, ProcessedKey(c.ref.ResultID), data); err != nil {
		return nil, err
	}

	c.step = step
	c.result = r
	if err := c.save(ctx); err != nil {
		return nil, err
	}

	c.log.Debug().
		Float64("step", step).
		Int("filtered", len(r.Filtered)).
		Dur("took", time.Since(start)).
		Msg("session computed")
	return r, nil
}

func (c *ResultContainer) save(ctx context.Context) error {
	data, err := encode(resultRecord{Session: c.ref, Step: c.step})
	if err != nil {
		return err
	}
	return c.store.Put(ctx, ResultKey(c.ref.ResultID), data)
}
