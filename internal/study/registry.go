// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package study knows the on-disk layout of recorded sessions: the user
// registry and the uid<N>/<testId>/<videoId> folders.
package study

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// RegistryFile is the registry file name inside the results folder.
const RegistryFile = ".private_existingUsers.txt"

type Sex string

const (
	Man   Sex = "man"
	Woman Sex = "woman"
)

// Sexes lists the groups that always exist, even when empty.
var Sexes = []Sex{Man, Woman}

// User is one registered participant. Age is -1 and Sex empty when the
// registry does not record them.
type User struct {
	FirstName string
	LastName  string
	UID       int
	Age       int
	Sex       Sex
}

func (u User) HasAge() bool {
	return u.Age >= 0
}

// Registry holds the participants, ordered by uid.
type Registry struct {
	users []User
	byUID map[int]int
}

func RegistryPath(resultsDir string) string {
	return filepath.Join(resultsDir, RegistryFile)
}

// LoadRegistry reads the registry file.
func LoadRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user registry: %w", err)
	}
	defer f.Close()

	reg, err := ParseRegistry(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry reads "first;last;uid[;age;sex]" lines.
func ParseRegistry(r io.Reader) (*Registry, error) {
	reg := &Registry{byUID: make(map[int]int)}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := parseUser(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if _, dup := reg.byUID[u.UID]; dup {
			return nil, fmt.Errorf("line %d: duplicate uid %d", lineNum, u.UID)
		}
		reg.byUID[u.UID] = len(reg.users)
		reg.users = append(reg.users, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading registry: %w", err)
	}

	sort.Slice(reg.users, func(i, j int) bool { return reg.users[i].UID < reg.users[j].UID })
	for i, u := range reg.users {
		reg.byUID[u.UID] = i
	}
	return reg, nil
}

func parseUser(line string) (User, error) {
	fields := strings.Split(line, ";")
	if len(fields) < 3 {
		return User{}, fmt.Errorf("expected first;last;uid, got %q", line)
	}
	uid, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return User{}, fmt.Errorf("invalid uid %q: %w", fields[2], err)
	}
	u := User{
		FirstName: strings.TrimSpace(fields[0]),
		LastName:  strings.TrimSpace(fields[1]),
		UID:       uid,
		Age:       -1,
	}

	if len(fields) > 3 {
		if s := strings.TrimSpace(fields[3]); s != "" {
			age, err := strconv.Atoi(s)
			if err != nil || age < 0 {
				return User{}, fmt.Errorf("invalid age %q", fields[3])
			}
			u.Age = age
		}
	}
	if len(fields) > 4 {
		switch s := Sex(strings.ToLower(strings.TrimSpace(fields[4]))); s {
		case "":
		case Man, Woman:
			u.Sex = s
		default:
			return User{}, fmt.Errorf("invalid sex %q", fields[4])
		}
	}
	return u, nil
}

// Users returns the participants ordered by uid.
func (r *Registry) Users() []User {
	return r.users
}

func (r *Registry) User(uid int) (User, bool) {
	i, ok := r.byUID[uid]
	if !ok {
		return User{}, false
	}
	return r.users[i], true
}

// UserDir is the results folder of one participant.
func UserDir(resultsDir string, uid int) string {
	return filepath.Join(resultsDir, "uid"+strconv.Itoa(uid))
}
