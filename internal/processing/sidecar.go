// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package processing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// ErrMissingSidecar is returned when a session has no readable start offset.
var ErrMissingSidecar = errors.New("missing session sidecar")

// SidecarPath returns the per-session .ini file next to the log folder:
// <testDir>/<videoId>/<videoId>_0.txt -> <testDir>/<videoId>.ini
func SidecarPath(logPath string) string {
	return filepath.Dir(logPath) + ".ini"
}

// ReadStartOffset reads startOffsetInSecond from the section named by
// [Config] textureConfig.
func ReadStartOffset(iniPath string) (float64, error) {
	if _, err := os.Stat(iniPath); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMissingSidecar, iniPath, err)
	}

	cfg, err := ini.Load(iniPath)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrMissingSidecar, iniPath, err)
	}

	sectionName := cfg.Section("Config").Key("textureConfig").String()
	if sectionName == "" {
		return 0, fmt.Errorf("%w: %s has no Config.textureConfig", ErrMissingSidecar, iniPath)
	}
	if !cfg.HasSection(sectionName) {
		return 0, fmt.Errorf("%w: %s has no section %q", ErrMissingSidecar, iniPath, sectionName)
	}

	key := cfg.Section(sectionName).Key("startOffsetInSecond")
	offset, err := key.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: invalid startOffsetInSecond %q: %v", ErrMissingSidecar, iniPath, key.String(), err)
	}
	return offset, nil
}
