// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package statistics

import (
	"fmt"
	"slices"

	"github.com/relabs-tech/hmd_viewing/internal/study"
)

// Group kinds. Each kind is also the output sub-directory of its groups.
const (
	KindUsers  = "users"
	KindVideos = "videos"
	KindByAge  = "byAge"
	KindBySex  = "bySex"
	KindTotal  = "total"
)

// group is a set of sessions exported together. members index the run's
// session list.
type group struct {
	kind    string
	name    string
	members []int
}

func (g *group) label() string {
	return g.kind + "/" + g.name
}

// planGroups builds every group of the run. Users, pre-created age buckets
// and sexes exist even when no session belongs to them.
func planGroups(sessions []study.Session, users []study.User, ageStep int) []*group {
	var out []*group

	byUser := make(map[int]*group, len(users))
	for _, u := range users {
		g := &group{kind: KindUsers, name: fmt.Sprintf("uid-%d", u.UID)}
		byUser[u.UID] = g
		out = append(out, g)
	}

	byVideo := make(map[string]*group)
	var videoIDs []string
	for _, s := range sessions {
		if _, ok := byVideo[s.VideoID]; !ok {
			byVideo[s.VideoID] = &group{kind: KindVideos, name: s.VideoID}
			videoIDs = append(videoIDs, s.VideoID)
		}
	}
	slices.Sort(videoIDs)
	for _, id := range videoIDs {
		out = append(out, byVideo[id])
	}

	lows := study.AgeBuckets(ageStep)
	for _, u := range users {
		if !u.HasAge() {
			continue
		}
		if lo, _ := study.AgeBucket(u.Age, ageStep); !slices.Contains(lows, lo) {
			lows = append(lows, lo)
		}
	}
	slices.Sort(lows)
	byAge := make(map[int]*group, len(lows))
	for _, lo := range lows {
		g := &group{kind: KindByAge, name: study.AgeBucketName(lo, ageStep)}
		byAge[lo] = g
		out = append(out, g)
	}

	bySex := make(map[study.Sex]*group, len(study.Sexes))
	for _, sex := range study.Sexes {
		g := &group{kind: KindBySex, name: string(sex)}
		bySex[sex] = g
		out = append(out, g)
	}

	for i, s := range sessions {
		if g, ok := byUser[s.User.UID]; ok {
			g.members = append(g.members, i)
		}
		byVideo[s.VideoID].members = append(byVideo[s.VideoID].members, i)
		if s.User.HasAge() {
			lo, _ := study.AgeBucket(s.User.Age, ageStep)
			byAge[lo].members = append(byAge[lo].members, i)
		}
		if g, ok := bySex[s.User.Sex]; ok {
			g.members = append(g.members, i)
		}
	}
	return out
}

// totalGroup holds every session of the run.
func totalGroup(sessions []study.Session) *group {
	g := &group{kind: KindTotal, name: KindTotal, members: make([]int, len(sessions))}
	for i := range sessions {
		g.members[i] = i
	}
	return g
}

// without returns the members of g that are not failed.
func (g *group) without(failed []bool) []int {
	out := make([]int, 0, len(g.members))
	for _, i := range g.members {
		if !failed[i] {
			out = append(out, i)
		}
	}
	return out
}
