// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package statistics runs the whole analysis: every recorded session is
// computed (or taken from the cache), then grouped by user, video, age
// bracket and sex, then summed into a total. Outputs land under the
// statistics directory.
package statistics

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/hmd_viewing/internal/aggregate"
	"github.com/relabs-tech/hmd_viewing/internal/cache"
	"github.com/relabs-tech/hmd_viewing/internal/config"
	"github.com/relabs-tech/hmd_viewing/internal/logging"
	"github.com/relabs-tech/hmd_viewing/internal/metrics"
	"github.com/relabs-tech/hmd_viewing/internal/processing"
	"github.com/relabs-tech/hmd_viewing/internal/progress"
	"github.com/relabs-tech/hmd_viewing/internal/study"
)

// ErrAlreadyRunning is returned by Run while another run is active.
var ErrAlreadyRunning = errors.New("statistics: a run is already in progress")

// State of the driver.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config is what a run needs to know.
type Config struct {
	ResultsDir    string
	StatisticsDir string
	Options       processing.Options
	Compute       processing.ComputeOptions
	AgeStep       int
	SegmentSizes  []float64
	Workers       int
	Frames        bool
	FramesFPS     float64
}

// ConfigFrom extracts the driver settings from the application config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		ResultsDir:    c.ResultsDir,
		StatisticsDir: c.StatisticsDir,
		Options:       c.ProcessingOptions(),
		Compute:       c.ComputeOptions(),
		AgeStep:       c.Statistics.AgeStep,
		SegmentSizes:  append([]float64(nil), c.Statistics.SegmentSizes...),
		Workers:       c.Statistics.Workers,
		Frames:        c.Statistics.Frames.Enabled,
		FramesFPS:     c.Statistics.Frames.FPS,
	}
}

// SessionStatus tells whether a session was computed during the run.
type SessionStatus struct {
	ResultID string `json:"result_id"`
	IsNew    bool   `json:"is_new"`
}

// GroupStatus tells whether a group's outputs were rewritten during the run.
type GroupStatus struct {
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Size  int    `json:"size"`
	IsNew bool   `json:"is_new"`
}

// Failure is a session left out of the run.
type Failure struct {
	ResultID string `json:"result_id"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
}

// Report summarizes a run. Groups without any valid session are absent.
type Report struct {
	RunID    string          `json:"run_id"`
	Started  time.Time       `json:"started"`
	Duration time.Duration   `json:"duration"`
	Sessions []SessionStatus `json:"sessions"`
	Groups   []GroupStatus   `json:"groups"`
	Total    *GroupStatus    `json:"total,omitempty"`
	Failures []Failure       `json:"failures,omitempty"`
}

// Driver runs the statistics. Only one run may be active at a time.
type Driver struct {
	cfg      Config
	store    cache.Store
	reporter progress.Reporter
	layout   aggregate.Layout
	log      zerolog.Logger

	state atomic.Int32

	mu   sync.Mutex
	last *Report
}

// New returns an idle driver. reporter may be nil.
func New(cfg Config, store cache.Store, reporter progress.Reporter) *Driver {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if reporter == nil {
		reporter = progress.Discard
	}
	return &Driver{
		cfg:      cfg,
		store:    store,
		reporter: reporter,
		layout:   aggregate.LayoutFor(cfg.Options, cfg.Compute),
		log:      logging.WithComponent("statistics"),
	}
}

func (d *Driver) State() State {
	return State(d.state.Load())
}

// LastReport returns the report of the last finished run, nil before any.
func (d *Driver) LastReport() *Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// run is the state of one Run call.
type run struct {
	id         string
	users      []study.User
	sessions   []study.Session
	containers []*cache.ResultContainer
	failed     []bool
	failures   []*Failure
	counter    *progress.Counter
}

// Run computes every session and group. Session load errors are reported
// and the session is left out; any other error ends the run. The returned
// report is non-nil whenever the run started.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	if !d.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil, ErrAlreadyRunning
	}
	return d.execute(ctx)
}

// Start is Run in the background. The driver is already Running when Start
// returns; the channel yields the run's error once and is then closed.
func (d *Driver) Start(ctx context.Context) (<-chan error, error) {
	if !d.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil, ErrAlreadyRunning
	}
	done := make(chan error, 1)
	go func() {
		defer close(done)
		_, err := d.execute(ctx)
		done <- err
	}()
	return done, nil
}

func (d *Driver) execute(ctx context.Context) (*Report, error) {
	defer d.state.Store(int32(Idle))
	metrics.RunInProgress.Set(1)
	defer metrics.RunInProgress.Set(0)

	rep := &Report{RunID: uuid.NewString(), Started: time.Now()}
	err := d.run(ctx, rep)
	rep.Duration = time.Since(rep.Started)
	metrics.RecordRun(err)

	d.mu.Lock()
	d.last = rep
	d.mu.Unlock()

	if err != nil {
		d.log.Error().Err(err).Str("run_id", rep.RunID).Msg("run failed")
		return rep, err
	}
	d.log.Info().
		Str("run_id", rep.RunID).
		Int("sessions", len(rep.Sessions)).
		Int("failures", len(rep.Failures)).
		Dur("took", rep.Duration).
		Msg("run finished")
	return rep, nil
}

func (d *Driver) run(ctx context.Context, rep *Report) (err error) {
	reg, err := study.LoadRegistry(study.RegistryPath(d.cfg.ResultsDir))
	if err != nil {
		progress.NewCounter(rep.RunID, 0, d.reporter).Finish(err)
		return err
	}
	sessions, err := study.EnumerateSessions(d.cfg.ResultsDir, reg)
	if err != nil {
		progress.NewCounter(rep.RunID, 0, d.reporter).Finish(err)
		return err
	}
	groups := planGroups(sessions, reg.Users(), d.cfg.AgeStep)

	r := &run{
		id:         rep.RunID,
		users:      reg.Users(),
		sessions:   sessions,
		containers: make([]*cache.ResultContainer, len(sessions)),
		failed:     make([]bool, len(sessions)),
		failures:   make([]*Failure, len(sessions)),
		counter:    progress.NewCounter(rep.RunID, len(sessions)+len(groups)+1, d.reporter),
	}
	defer func() { r.counter.Finish(err) }()

	d.log.Info().
		Str("run_id", r.id).
		Int("users", len(r.users)).
		Int("sessions", len(sessions)).
		Int("groups", len(groups)).
		Msg("run started")

	defer func() { d.fillReport(rep, r) }()

	r.counter.Stage("sessions")
	if err := d.processSessions(ctx, r); err != nil {
		return err
	}

	r.counter.Stage("groups")
	statuses := make([]*GroupStatus, len(groups))
	if err := d.processGroups(ctx, r, groups, statuses); err != nil {
		return err
	}
	for _, st := range statuses {
		if st != nil {
			rep.Groups = append(rep.Groups, *st)
		}
	}

	r.counter.Stage("total")
	total, err := d.processGroup(ctx, r, totalGroup(sessions))
	if err != nil {
		return err
	}
	r.counter.Step("total")
	rep.Total = total
	return nil
}

// processSessions is the first phase: resolving every session, and
// exporting those whose cache entry was missing, stale or unreadable.
func (d *Driver) processSessions(ctx context.Context, r *run) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for i, s := range r.sessions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ref := cache.SessionRef{
				ResultID: s.ResultID,
				LogPath:  s.LogPath,
				UserID:   s.User.UID,
				TestID:   s.TestID,
				VideoID:  s.VideoID,
			}
			rc := cache.LoadResultContainer(gctx, d.store, ref, d.cfg.Options, d.cfg.Compute)
			r.containers[i] = rc

			// Resolving cached sessions too catches a lost or corrupt
			// processed dump here, so the session counts as new.
			res, err := rc.Resolve(gctx)
			if err != nil {
				d.failSession(r, i, err)
				r.counter.Step(s.ResultID)
				return nil
			}
			if rc.IsNew() {
				if err := d.writeSession(s.ResultID, res); err != nil {
					return err
				}
				if len(res.Filtered) > 0 {
					pose := res.Filtered[0].Q.Pose()
					d.log.Debug().
						Str("result_id", s.ResultID).
						Int("points", len(res.Filtered)).
						Float64("roll", pose.Roll).
						Float64("pitch", pose.Pitch).
						Float64("yaw", pose.Yaw).
						Msg("session computed")
				}
			}
			r.counter.Step(s.ResultID)
			return nil
		})
	}
	return g.Wait()
}

func (d *Driver) failSession(r *run, i int, err error) {
	reason := "load"
	if errors.Is(err, processing.ErrMissingSidecar) {
		reason = "missing_sidecar"
	}
	id := r.sessions[i].ResultID
	r.failed[i] = true
	r.failures[i] = &Failure{ResultID: id, Reason: reason, Error: err.Error()}
	metrics.SessionFailures.WithLabelValues(reason).Inc()
	d.log.Warn().Err(err).Str("result_id", id).Str("reason", reason).Msg("session left out")
}

// processGroups is the second phase. It starts after every session is
// settled so group membership is final.
func (d *Driver) processGroups(ctx context.Context, r *run, groups []*group, statuses []*GroupStatus) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for i, grp := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st, err := d.processGroup(gctx, r, grp)
			if err != nil {
				return err
			}
			statuses[i] = st
			r.counter.Step(grp.label())
			return nil
		})
	}
	return g.Wait()
}

// processGroup aggregates and exports one group unless its cache entry
// matches the current step and size and none of its sessions changed. It
// returns nil status for a group without valid sessions.
func (d *Driver) processGroup(ctx context.Context, r *run, grp *group) (*GroupStatus, error) {
	members := grp.without(r.failed)
	if len(members) == 0 {
		d.log.Debug().Str("group", grp.label()).Msg("empty group skipped")
		return nil, nil
	}

	key := cache.AggregateKey(grp.kind, grp.name)
	ac := cache.LoadAggregateContainer(ctx, d.store, key, d.cfg.Options.Step, len(members))

	stale := ac.IsNew()
	for _, i := range members {
		if r.containers[i].IsNew() {
			stale = true
			break
		}
	}
	st := &GroupStatus{Kind: grp.kind, Name: grp.name, Size: len(members), IsNew: stale}
	if !stale {
		return st, nil
	}

	start := time.Now()
	contributors := make([]aggregate.Contributor, len(members))
	names := make([]string, len(members))
	for k, i := range members {
		contributors[k] = r.containers[i]
		names[k] = r.sessions[i].ResultID
	}
	agg, err := aggregate.Reduce(ctx, d.layout, contributors...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", grp.label(), err)
	}

	if err := d.writeGroup(grp, agg); err != nil {
		return nil, err
	}
	if grp.kind == KindTotal {
		if err := d.writeUsers(r.users, r.sessions, r.failed); err != nil {
			return nil, err
		}
	}

	summary := cache.GroupSummary{Kind: grp.kind, Name: grp.name, Members: names}
	summary.Start, summary.End, _ = agg.TimeBounds()
	if err := ac.Save(ctx, summary); err != nil {
		return nil, fmt.Errorf("save %s: %w", grp.label(), err)
	}
	metrics.RecordGroupAggregate(grp.kind, time.Since(start))
	d.log.Debug().Str("group", grp.label()).Int("size", len(members)).Msg("group exported")
	return st, nil
}

func (d *Driver) fillReport(rep *Report, r *run) {
	for i, s := range r.sessions {
		if f := r.failures[i]; f != nil {
			rep.Failures = append(rep.Failures, *f)
			continue
		}
		if rc := r.containers[i]; rc != nil {
			rep.Sessions = append(rep.Sessions, SessionStatus{ResultID: s.ResultID, IsNew: rc.IsNew()})
		}
	}
}
