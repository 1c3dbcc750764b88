// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/relabs-tech/hmd_viewing/internal/logging"
	"github.com/relabs-tech/hmd_viewing/internal/processing"
)

// EnvPrefix marks the environment variables that override the config file.
const EnvPrefix = "HMD_"

// Config holds all application configuration values.
type Config struct {
	ResultsDir string `koanf:"results_dir" validate:"required"`
	// StatisticsDir defaults to <ResultsDir>/statistics.
	StatisticsDir string `koanf:"statistics_dir"`

	Processing ProcessingConfig `koanf:"processing"`
	Statistics StatisticsConfig `koanf:"statistics"`
	Cache      CacheConfig      `koanf:"cache"`
	Logging    LoggingConfig    `koanf:"logging"`
	MQTT       MQTTConfig       `koanf:"mqtt"`
	Web        WebConfig        `koanf:"web"`
}

type ProcessingConfig struct {
	Step     float64      `koanf:"step" validate:"gt=0"`
	SkipTime float64      `koanf:"skip_time" validate:"gte=0"`
	Windows  []float64    `koanf:"windows" validate:"min=1,dive,gt=0"`
	Position GridConfig   `koanf:"position"`
	Vision   VisionConfig `koanf:"vision"`
}

type GridConfig struct {
	Width  int `koanf:"width" validate:"gt=0"`
	Height int `koanf:"height" validate:"gt=0"`
}

type VisionConfig struct {
	Width  int     `koanf:"width" validate:"gt=0"`
	Height int     `koanf:"height" validate:"gt=0"`
	HFoV   float64 `koanf:"hfov" validate:"gt=0,lt=180"` // degrees
	VFoV   float64 `koanf:"vfov" validate:"gt=0,lt=180"` // degrees
}

type StatisticsConfig struct {
	AgeStep      int          `koanf:"age_step" validate:"gt=0,lte=100"`
	SegmentSizes []float64    `koanf:"segment_sizes" validate:"dive,gt=0"`
	Workers      int          `koanf:"workers" validate:"gte=0"` // 0 means one per CPU
	Frames       FramesConfig `koanf:"frames"`
}

// FramesConfig enables the per video vision frames, one every 1/FPS seconds.
type FramesConfig struct {
	Enabled bool    `koanf:"enabled"`
	FPS     float64 `koanf:"fps" validate:"gt=0"`
}

type CacheConfig struct {
	Backend string `koanf:"backend" validate:"oneof=file badger"`
	// BadgerDir defaults to <StatisticsDir>/cache.badger.
	BadgerDir string `koanf:"badger_dir"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// MQTTConfig configures progress publishing. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `koanf:"broker"`
	ClientID string `koanf:"client_id" validate:"required_with=Broker"`
	Topic    string `koanf:"topic" validate:"required_with=Broker"`
}

type WebConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gt=0,lte=65535"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		ResultsDir: "results",
		Processing: ProcessingConfig{
			Step:     0.03,
			SkipTime: 10,
			Windows:  []float64{1, 2, 3, 5, 10},
			Position: GridConfig{Width: 100, Height: 100},
			Vision:   VisionConfig{Width: 100, Height: 50, HFoV: 110, VFoV: 90},
		},
		Statistics: StatisticsConfig{
			AgeStep:      10,
			SegmentSizes: []float64{1, 2, 3},
			Frames:       FramesConfig{FPS: 5},
		},
		Cache:   CacheConfig{Backend: "file"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		MQTT: MQTTConfig{
			ClientID: "hmd-statistics",
			Topic:    "hmd/statistics/progress",
		},
		Web: WebConfig{Port: 8080},
	}
}

// keys maps the flat KEY=VALUE names (config file and HMD_ environment
// variables) to their koanf paths.
var keys = map[string]string{
	"RESULTS_DIR":      "results_dir",
	"STATISTICS_DIR":   "statistics_dir",
	"STEP":             "processing.step",
	"SKIP_TIME":        "processing.skip_time",
	"WINDOWS":          "processing.windows",
	"POSITION_WIDTH":   "processing.position.width",
	"POSITION_HEIGHT":  "processing.position.height",
	"VISION_WIDTH":     "processing.vision.width",
	"VISION_HEIGHT":    "processing.vision.height",
	"VISION_HFOV":      "processing.vision.hfov",
	"VISION_VFOV":      "processing.vision.vfov",
	"AGE_STEP":         "statistics.age_step",
	"SEGMENT_SIZES":    "statistics.segment_sizes",
	"WORKERS":          "statistics.workers",
	"FRAMES_ENABLED":   "statistics.frames.enabled",
	"FRAMES_FPS":       "statistics.frames.fps",
	"CACHE_BACKEND":    "cache.backend",
	"CACHE_BADGER_DIR": "cache.badger_dir",
	"LOG_LEVEL":        "logging.level",
	"LOG_FORMAT":       "logging.format",
	"MQTT_BROKER":      "mqtt.broker",
	"MQTT_CLIENT_ID":   "mqtt.client_id",
	"TOPIC_PROGRESS":   "mqtt.topic",
	"WEB_SERVER_HOST":  "web.host",
	"WEB_SERVER_PORT":  "web.port",
}

// keyPath resolves a flat key to its koanf path. Unknown keys map to ""
// and are dropped by koanf.
func keyPath(key string) string {
	return keys[strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(key)), EnvPrefix)]
}

func envKeyPath(key string) string {
	if !strings.HasPrefix(key, EnvPrefix) {
		return ""
	}
	return keyPath(key)
}

// Load reads configuration in three layers: defaults, then configPath (when
// not empty), then HMD_ environment variables. Files ending in .yaml or .yml
// are nested YAML; anything else is a KEY=VALUE file:
//
//	# comment
//	RESULTS_DIR=/data/results
//	STEP=0.03
//	WINDOWS=1,2,3,5,10
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(configPath)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		default:
			parser = dotenv.ParserEnv("", ".", keyPath)
		}
		if err := k.Load(file.Provider(configPath), parser); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyPath), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDerived() {
	if c.StatisticsDir == "" {
		c.StatisticsDir = filepath.Join(c.ResultsDir, "statistics")
	}
	if c.Cache.Backend == "badger" && c.Cache.BadgerDir == "" {
		c.Cache.BadgerDir = filepath.Join(c.StatisticsDir, "cache.badger")
	}
	if c.Statistics.Workers == 0 {
		c.Statistics.Workers = runtime.NumCPU()
	}
}

var structValidator = validator.New()

// validate checks every field against its struct tag.
func (c *Config) validate() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ProcessingOptions is the resampling part of the configuration.
func (c *Config) ProcessingOptions() processing.Options {
	return processing.Options{Step: c.Processing.Step, SkipTime: c.Processing.SkipTime}
}

// ComputeOptions is the metric resolution part of the configuration.
func (c *Config) ComputeOptions() processing.ComputeOptions {
	return processing.ComputeOptions{
		Windows:        append([]float64(nil), c.Processing.Windows...),
		PositionWidth:  c.Processing.Position.Width,
		PositionHeight: c.Processing.Position.Height,
		VisionWidth:    c.Processing.Vision.Width,
		VisionHeight:   c.Processing.Vision.Height,
		HorizontalFoV:  c.Processing.Vision.HFoV,
		VerticalFoV:    c.Processing.Vision.VFoV,
	}
}

// LoggerConfig converts to the logger settings. Output stays the default.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}
