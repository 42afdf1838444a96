// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no config file is given.
const DefaultPath = "vcornea.yaml"

// Script versions understood by the output redirection contract.
const (
	ScriptV1 = "v1"
	ScriptV2 = "v2"
)

// Runner modes.
const (
	RunnerConda  = "conda"
	RunnerDocker = "docker"
)

// Config represents the complete batch orchestrator configuration
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Runner    RunnerConfig    `yaml:"runner"`
	Batch     BatchConfig     `yaml:"batch"`
	Output    OutputConfig    `yaml:"output"`
	Naming    NamingConfig    `yaml:"naming"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProjectConfig locates the CC3D simulation project
type ProjectConfig struct {
	// Path is the root of the vCornea CC3D project.
	Path string `yaml:"path"`
	// ScriptVersion selects the output redirection contract: v2 batch
	// scripts take an --output flag, v1 scripts need their output line
	// rewritten in place.
	ScriptVersion string `yaml:"script_version"`
}

// RunnerConfig selects how simulation processes are launched
type RunnerConfig struct {
	Mode   string       `yaml:"mode"`
	Conda  CondaConfig  `yaml:"conda"`
	Docker DockerConfig `yaml:"docker"`
}

// CondaConfig configures the conda-based runner
type CondaConfig struct {
	EnvName string `yaml:"env_name"`
	Python  string `yaml:"python"`
}

// DockerConfig configures the container-based runner
type DockerConfig struct {
	Image string `yaml:"image"`
	// EnvName is the conda environment inside the image.
	EnvName string `yaml:"env_name"`
}

// BatchConfig controls replicate fan-out
type BatchConfig struct {
	Replicates int `yaml:"replicates"`
	// TimeoutMinutes bounds each simulation process. Zero means the
	// default of two hours.
	TimeoutMinutes int `yaml:"timeout_minutes"`
	// KillOnTimeout force-terminates a process that exceeds the limit
	// instead of abandoning it.
	KillOnTimeout bool `yaml:"kill_on_timeout"`
}

// OutputConfig controls where run outputs land
type OutputConfig struct {
	BaseDir     string `yaml:"base_dir"`
	KeepOutputs bool   `yaml:"keep_outputs"`
}

// NamingConfig controls run name generation
type NamingConfig struct {
	RunName         string `yaml:"run_name"`
	MaxParamsInName int    `yaml:"max_params_in_name"`
}

// LoggingConfig controls terminal logging
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Format is "console" (tint) or "json".
	Format  string `yaml:"format"`
	NoColor bool   `yaml:"no_color"`
}

// TelemetryConfig controls trace export
type TelemetryConfig struct {
	Enabled        bool    `yaml:"enabled"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Endpoint       string  `yaml:"endpoint"`
	SampleRate     float64 `yaml:"sample_rate"`
	Insecure       bool    `yaml:"insecure"`
}

// Default returns the configuration used when a field is left unset.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			ScriptVersion: ScriptV2,
		},
		Runner: RunnerConfig{
			Mode: RunnerConda,
			Conda: CondaConfig{
				EnvName: "vcornea",
				Python:  "python",
			},
			Docker: DockerConfig{
				EnvName: "vcornea",
			},
		},
		Batch: BatchConfig{
			Replicates:     1,
			TimeoutMinutes: 120,
			KillOnTimeout:  true,
		},
		Output: OutputConfig{
			BaseDir:     "vcornea_outputs",
			KeepOutputs: true,
		},
		Naming: NamingConfig{
			MaxParamsInName: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "vcornea-orchestrator",
			ServiceVersion: "dev",
			Endpoint:       "localhost:4318",
			SampleRate:     1.0,
			Insecure:       true,
		},
	}
}

// Load reads the configuration from path, or from vcornea.yaml in the
// working directory when path is empty. Unset fields fall back to Default.
func Load(path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(cwd, DefaultPath)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults refills fields an explicit yaml value blanked out.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Project.ScriptVersion == "" {
		c.Project.ScriptVersion = d.Project.ScriptVersion
	}
	if c.Runner.Mode == "" {
		c.Runner.Mode = d.Runner.Mode
	}
	if c.Runner.Conda.EnvName == "" {
		c.Runner.Conda.EnvName = d.Runner.Conda.EnvName
	}
	if c.Runner.Conda.Python == "" {
		c.Runner.Conda.Python = d.Runner.Conda.Python
	}
	if c.Runner.Docker.EnvName == "" {
		c.Runner.Docker.EnvName = d.Runner.Docker.EnvName
	}
	if c.Batch.Replicates == 0 {
		c.Batch.Replicates = d.Batch.Replicates
	}
	if c.Batch.TimeoutMinutes == 0 {
		c.Batch.TimeoutMinutes = d.Batch.TimeoutMinutes
	}
	if c.Output.BaseDir == "" {
		c.Output.BaseDir = d.Output.BaseDir
	}
	if c.Naming.MaxParamsInName == 0 {
		c.Naming.MaxParamsInName = d.Naming.MaxParamsInName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = d.Telemetry.ServiceVersion
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = d.Telemetry.Endpoint
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = d.Telemetry.SampleRate
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Project.Path == "" {
		return fmt.Errorf("project path is required")
	}

	if c.Project.ScriptVersion != ScriptV1 && c.Project.ScriptVersion != ScriptV2 {
		return fmt.Errorf("script version must be %s or %s, got %q", ScriptV1, ScriptV2, c.Project.ScriptVersion)
	}

	switch c.Runner.Mode {
	case RunnerConda:
	case RunnerDocker:
		if c.Runner.Docker.Image == "" {
			return fmt.Errorf("docker image is required for the docker runner")
		}
	default:
		return fmt.Errorf("runner mode must be %s or %s, got %q", RunnerConda, RunnerDocker, c.Runner.Mode)
	}

	if c.Batch.Replicates < 1 {
		return fmt.Errorf("replicates must be at least 1, got %d", c.Batch.Replicates)
	}

	if c.Batch.TimeoutMinutes < 0 {
		return fmt.Errorf("timeout minutes cannot be negative, got %d", c.Batch.TimeoutMinutes)
	}

	if c.Naming.MaxParamsInName < 1 {
		return fmt.Errorf("max params in name must be at least 1, got %d", c.Naming.MaxParamsInName)
	}

	return nil
}
