// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cache

import (
	"context"
	"errors"

	"github.com/relabs-tech/hmd_viewing/internal/logging"
	"github.com/relabs-tech/hmd_viewing/internal/metrics"
)

// AggregateKey is the key of a group container, e.g. "videos/Video1.dump".
func AggregateKey(dir, name string) string {
	return dir + "/" + name + ".dump"
}

// GroupSummary describes what an aggregate was computed from.
type GroupSummary struct {
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Start   float64  `json:"start"`
	End     float64  `json:"end"`
}

type aggregateRecord struct {
	Step    float64      `json:"step"`
	Size    int          `json:"size"`
	Summary GroupSummary `json:"summary"`
}

// AggregateContainer tags a group's exported statistics with the
// (step, size) they were computed for.
type AggregateContainer struct {
	store Store
	key   string

	step    float64
	size    int
	summary GroupSummary
	isNew   bool
}

// LoadAggregateContainer returns the stored container when its step and
// size match, otherwise a fresh one marked new.
func LoadAggregateContainer(ctx context.Context, store Store, key string, step float64, size int) *AggregateContainer {
	c := &AggregateContainer{store: store, key: key, step: step, size: size, isNew: true}

	data, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log := logging.WithComponent("cache")
			log.Debug().Err(err).Str("key", key).Msg("aggregate unreadable, treating as miss")
			metrics.CacheErrors.WithLabelValues("aggregate").Inc()
		}
		metrics.RecordCacheLookup("aggregate", false)
		return c
	}

	var rec aggregateRecord
	if err := decode(data, &rec); err != nil {
		log := logging.WithComponent("cache")
		log.Debug().Err(err).Str("key", key).Msg("aggregate corrupt, treating as miss")
		metrics.CacheErrors.WithLabelValues("aggregate").Inc()
		metrics.RecordCacheLookup("aggregate", false)
		return c
	}

	if rec.Step == step && rec.Size == size {
		c.summary = rec.Summary
		c.isNew = false
	}
	metrics.RecordCacheLookup("aggregate", !c.isNew)
	return c
}

func (c *AggregateContainer) IsNew() bool {
	return c.isNew
}

func (c *AggregateContainer) Key() string {
	return c.key
}

func (c *AggregateContainer) Summary() GroupSummary {
	return c.summary
}

// Save persists the container with summary.
func (c *AggregateContainer) Save(ctx context.Context, summary GroupSummary) error {
	data, err := encode(aggregateRecord{Step: c.step, Size: c.size, Summary: summary})
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, c.key, data); err != nil {
		return err
	}
	c.summary = summary
	return nil
}
