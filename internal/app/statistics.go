// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/hmd_viewing/internal/aggregate"
	"github.com/relabs-tech/hmd_viewing/internal/cache"
	"github.com/relabs-tech/hmd_viewing/internal/config"
	"github.com/relabs-tech/hmd_viewing/internal/logging"
	"github.com/relabs-tech/hmd_viewing/internal/progress"
	"github.com/relabs-tech/hmd_viewing/internal/statistics"
)

// mqttDisconnectQuiesce is how long, in milliseconds, pending publishes get
// before the client disconnects.
const mqttDisconnectQuiesce = 250

// openStore opens the cache backend selected by the config.
func openStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "badger":
		s, err := cache.OpenBadgerStore(cfg.Cache.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger cache %s: %w", cfg.Cache.BadgerDir, err)
		}
		return s, nil
	default:
		return cache.NewFileStore(cfg.StatisticsDir), nil
	}
}

// connectMQTT returns nil when no broker is configured or it cannot be
// reached. Progress over MQTT is best effort.
func connectMQTT(cfg *config.Config) mqtt.Client {
	if cfg.MQTT.Broker == "" {
		return nil
	}
	client, err := progress.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID)
	if err != nil {
		log := logging.WithComponent("mqtt")
		log.Warn().Err(err).Msg("continuing without MQTT progress")
		return nil
	}
	return client
}

// isInvariantError reports errors that mean the cache holds sessions
// computed with other settings.
func isInvariantError(err error) bool {
	return errors.Is(err, aggregate.ErrStepMismatch) ||
		errors.Is(err, aggregate.ErrWindowMismatch) ||
		errors.Is(err, aggregate.ErrShapeMismatch)
}

// RunStatistics performs one full statistics run and returns when it is
// done. SIGINT and SIGTERM stop it between two tasks.
func RunStatistics(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Init(cfg.LoggerConfig())
	log := logging.WithComponent("statistics")

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reporters := []progress.Reporter{progress.NewLogReporter(log)}
	if client := connectMQTT(cfg); client != nil {
		defer client.Disconnect(mqttDisconnectQuiesce)
		reporters = append(reporters, progress.NewMQTTReporter(client, cfg.MQTT.Topic))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("results_dir", cfg.ResultsDir).
		Str("statistics_dir", cfg.StatisticsDir).
		Str("cache", cfg.Cache.Backend).
		Float64("step", cfg.Processing.Step).
		Msg("starting statistics run")

	driver := statistics.New(statistics.ConfigFrom(cfg), store, progress.Multi(reporters...))
	rep, err := driver.Run(ctx)
	if err != nil {
		if isInvariantError(err) {
			log.Error().Err(err).
				Str("statistics_dir", cfg.StatisticsDir).
				Msg("cached sessions do not match the current settings, clear the cache and run again")
		}
		return err
	}

	for _, f := range rep.Failures {
		log.Warn().Str("result_id", f.ResultID).Str("reason", f.Reason).Msg("session skipped")
	}
	return nil
}
