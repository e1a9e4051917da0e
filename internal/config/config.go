// Package config loads casefile settings and case files.
//
// Settings are layered: defaults, then the YAML file, then environment
// variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings.
type Config struct {
	DB        string          `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Memory    MemoryConfig    `yaml:"memory"`
	Report    ReportConfig    `yaml:"report"`
	Transmit  TransmitConfig  `yaml:"transmit"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Feed      FeedConfig      `yaml:"feed"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MemoryConfig struct {
	Capacity int       `yaml:"capacity"`
	Epoch    time.Time `yaml:"epoch"`
	// Advance is how far the logical clock moves before decrypting.
	Advance time.Duration `yaml:"advance"`
}

type ReportConfig struct {
	Artifact string `yaml:"artifact"`
	Export   string `yaml:"export"`
	Source   string `yaml:"source"`
}

type TransmitConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	TipEndpoint string        `yaml:"tip_endpoint"`
	Token       string        `yaml:"token"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
	Backoff     BackoffConfig `yaml:"backoff"`
}

type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

type SimulatorConfig struct {
	Interval time.Duration `yaml:"interval"`
	Count    int           `yaml:"count"`
}

type FeedConfig struct {
	URL string `yaml:"url"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Memory: MemoryConfig{
			Capacity: 100,
			Epoch:    time.Date(2025, 1, 2, 1, 3, 0, 0, time.UTC),
			Advance:  6 * time.Minute,
		},
		Report: ReportConfig{
			Artifact: "analysis_report.enc",
			Export:   "event_graph.csv",
			Source:   "Independent Investigation Team",
		},
		Transmit: TransmitConfig{
			MaxAttempts: 3,
			Timeout:     10 * time.Second,
			Backoff: BackoffConfig{
				Initial:    200 * time.Millisecond,
				Max:        5 * time.Second,
				Multiplier: 2,
				Jitter:     0.1,
			},
		},
		Simulator: SimulatorConfig{
			Interval: 5 * time.Second,
			Count:    6,
		},
	}
}

// Load returns defaults overlaid with the file at path (if non-empty and
// present) and then with environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("CASEFILE_TOKEN"); v != "" {
		cfg.Transmit.Token = v
	}
	if v := os.Getenv("CASEFILE_DB"); v != "" {
		cfg.DB = v
	}

	return cfg, cfg.Validate()
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	if c.Memory.Capacity < 1 {
		return fmt.Errorf("config: memory.capacity must be positive, got %d", c.Memory.Capacity)
	}
	if c.Transmit.MaxAttempts < 1 {
		return fmt.Errorf("config: transmit.max_attempts must be positive, got %d", c.Transmit.MaxAttempts)
	}
	if c.Report.Artifact == "" {
		return fmt.Errorf("config: report.artifact is required")
	}
	if c.Simulator.Count < 0 {
		return fmt.Errorf("config: simulator.count must not be negative")
	}
	return nil
}
