// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	"github.com/relabs-tech/hmd_viewing/internal/app"
	"github.com/relabs-tech/hmd_viewing/internal/logging"
)

const defaultConfigPath = "hmd_config.txt"

func main() {
	configPath := defaultConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	if err := app.RunWeb(configPath); err != nil {
		logging.Fatal().Err(err).Msg("web server stopped")
	}
}
