// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package study

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Session is one recorded video viewing.
type Session struct {
	ResultID string
	LogPath  string
	User     User
	TestID   string
	VideoID  string
}

// ResultID is the cache identifier of a session.
func ResultID(uid int, testID, videoID string) string {
	return fmt.Sprintf("%d_%s_%s", uid, testID, videoID)
}

// LogPath is where the player writes the orientation log of a video.
func LogPath(testDir, videoID string) string {
	return filepath.Join(testDir, videoID, videoID+"_0.txt")
}

// EnumerateSessions lists every non-training session of every registered
// user, ordered by uid, test and video. Users without a results folder
// have no sessions.
func EnumerateSessions(resultsDir string, reg *Registry) ([]Session, error) {
	var out []Session
	for _, u := range reg.Users() {
		userDir := UserDir(resultsDir, u.UID)
		tests, err := subdirs(userDir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list tests of uid %d: %w", u.UID, err)
		}

		for _, testID := range tests {
			testDir := filepath.Join(userDir, testID)
			videos, err := subdirs(testDir)
			if err != nil {
				return nil, fmt.Errorf("failed to list videos in %s: %w", testDir, err)
			}
			for _, videoID := range videos {
				if strings.Contains(videoID, "training") {
					continue
				}
				out = append(out, Session{
					ResultID: ResultID(u.UID, testID, videoID),
					LogPath:  LogPath(testDir, videoID),
					User:     u,
					TestID:   testID,
					VideoID:  videoID,
				})
			}
		}
	}
	return out, nil
}

// subdirs returns the sorted names of the directories inside dir.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// AgeBucket returns the [lo, hi) bracket of width step containing age.
func AgeBucket(age, step int) (lo, hi int) {
	lo = age - age%step
	return lo, lo + step
}

// AgeBuckets lists the lower bounds of every bracket over 0..99.
func AgeBuckets(step int) []int {
	var out []int
	for age := 0; age < 100; age += step {
		out = append(out, age)
	}
	return out
}

// AgeBucketName formats a bracket as "lo_hi".
func AgeBucketName(lo, step int) string {
	return fmt.Sprintf("%d_%d", lo, lo+step)
}
