// Package config provides configuration management for the forest engine.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"

	"github.com/streamrcf/rcforest"
	"github.com/streamrcf/rcforest/pkg/telemetry"
	"github.com/streamrcf/rcforest/pkg/utils"
)

// Config holds all configuration for the application. It is a YAML/env
// additive path alongside the programmatic Options struct accepted by
// rcforest.New: most embedders construct Options directly in code, but a
// long-running service wraps the forest around a config file for ops
// convenience (log level, telemetry endpoint, thread pool size) without
// recompiling.
type Config struct {
	Forest    ForestSection    `mapstructure:"forest"`
	Telemetry TelemetrySection `mapstructure:"telemetry"`
	Log       LogSection       `mapstructure:"log"`
}

// ForestSection mirrors the construction Options of a forest (spec §6).
type ForestSection struct {
	Dimensions                  int     `mapstructure:"dimensions"`
	NumberOfTrees               int     `mapstructure:"number_of_trees"`
	SampleSize                  int     `mapstructure:"sample_size"`
	TimeDecay                   float64 `mapstructure:"time_decay"`
	OutputAfter                 int     `mapstructure:"output_after"`
	ParallelExecutionEnabled    bool    `mapstructure:"parallel_execution_enabled"`
	ThreadPoolSize              int     `mapstructure:"thread_pool_size"`
	StoreSequenceIndexesEnabled bool    `mapstructure:"store_sequence_indexes_enabled"`
	CenterOfMassEnabled         bool    `mapstructure:"center_of_mass_enabled"`
	BoundingBoxCacheFraction    float64 `mapstructure:"bounding_box_cache_fraction"`
	RandomSeed                  uint64  `mapstructure:"random_seed"`
	Precision                   string  `mapstructure:"precision"`
	SharedPointStore            bool    `mapstructure:"shared_point_store"`
}

// ToOptions converts the loaded forest section into the programmatic
// construction options rcforest.New accepts. This is the seam between the
// YAML/env configuration path and the library's required Go constructor;
// pkg/config never constructs a forest itself.
func (s ForestSection) ToOptions() rcforest.Options {
	precision := rcforest.Double
	if s.Precision == "single" {
		precision = rcforest.Single
	}
	return rcforest.Options{
		Dimensions:                  s.Dimensions,
		NumberOfTrees:               s.NumberOfTrees,
		SampleSize:                  s.SampleSize,
		TimeDecay:                   s.TimeDecay,
		OutputAfter:                 int64(s.OutputAfter),
		ParallelExecutionEnabled:    s.ParallelExecutionEnabled,
		ThreadPoolSize:              s.ThreadPoolSize,
		StoreSequenceIndexesEnabled: s.StoreSequenceIndexesEnabled,
		CenterOfMassEnabled:         s.CenterOfMassEnabled,
		BoundingBoxCacheFraction:    s.BoundingBoxCacheFraction,
		RandomSeed:                  s.RandomSeed,
		Precision:                   precision,
		SharedPointStore:            s.SharedPointStore,
	}
}

// TelemetrySection configures the OpenTelemetry exporter used to trace
// forest operations (Update/Score/Attribution/...).
type TelemetrySection struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Endpoint       string `mapstructure:"endpoint"`
	Protocol       string `mapstructure:"protocol"` // grpc or http
	Insecure       bool   `mapstructure:"insecure"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Config builds a telemetry.Config from this section, the config-driven
// counterpart to telemetry.LoadFromEnv: a caller that already loads forest
// and log settings from this file can drive tracing from the same place
// instead of a second OTEL_*-prefixed environment. SampleRatio of 1
// (the default) maps to always-on sampling rather than a traceidratio
// sampler pinned at 1.0, so the common case doesn't pay for ratio parsing.
func (s TelemetrySection) Config() *telemetry.Config {
	serviceName := s.ServiceName
	if serviceName == "" {
		serviceName = "rcforest"
	}
	protocol := s.Protocol
	if protocol == "" {
		protocol = "grpc"
	}

	sampler := "always_on"
	samplerArg := ""
	if s.SampleRatio > 0 && s.SampleRatio < 1 {
		sampler = "traceidratio"
		samplerArg = strconv.FormatFloat(s.SampleRatio, 'f', -1, 64)
	}

	return &telemetry.Config{
		Enabled:        s.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: "unknown",
		Endpoint:       s.Endpoint,
		Protocol:       protocol,
		Insecure:       s.Insecure,
		Sampler:        sampler,
		SamplerArg:     samplerArg,
	}
}

// LogSection holds logging configuration.
type LogSection struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Logger builds a utils.Logger from the configured level and output path,
// the config-driven counterpart to constructing one directly in code via
// utils.NewStdLogger. An empty OutputPath logs to stdout.
func (s LogSection) Logger() (utils.Logger, error) {
	level := utils.ParseLogLevel(s.Level)
	if s.OutputPath == "" {
		return utils.NewStdLogger(level, os.Stdout), nil
	}
	f, err := os.OpenFile(s.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output: %w", err)
	}
	return utils.NewStdLogger(level, f), nil
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/rcforest")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw bytes (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Forest defaults mirror
// spec §6's construction defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("forest.number_of_trees", 50)
	v.SetDefault("forest.sample_size", 256)
	v.SetDefault("forest.time_decay", 1.0/(10.0*256.0))
	v.SetDefault("forest.output_after", 64)
	v.SetDefault("forest.parallel_execution_enabled", true)
	v.SetDefault("forest.thread_pool_size", 0) // 0 => runtime.NumCPU-derived default
	v.SetDefault("forest.bounding_box_cache_fraction", 1.0)
	v.SetDefault("forest.shared_point_store", true)
	v.SetDefault("forest.precision", "double")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "rcforest")
	v.SetDefault("telemetry.protocol", "grpc")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Forest.Dimensions < 0 {
		return fmt.Errorf("forest dimensions must be non-negative")
	}
	if c.Forest.NumberOfTrees < 1 {
		return fmt.Errorf("forest number_of_trees must be at least 1")
	}
	if c.Forest.SampleSize < 1 {
		return fmt.Errorf("forest sample_size must be at least 1")
	}
	if c.Forest.BoundingBoxCacheFraction < 0 || c.Forest.BoundingBoxCacheFraction > 1 {
		return fmt.Errorf("forest bounding_box_cache_fraction must be in [0,1]")
	}
	if c.Telemetry.Protocol != "" && c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		return fmt.Errorf("unsupported telemetry protocol: %s", c.Telemetry.Protocol)
	}
	return nil
}
