// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package commands provides CLI command implementations.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vcornea-orchestrator/internal/batch"
	"vcornea-orchestrator/internal/collect"
	"vcornea-orchestrator/internal/config"
	"vcornea-orchestrator/internal/logging"
	"vcornea-orchestrator/internal/params"
	"vcornea-orchestrator/internal/sim"
	"vcornea-orchestrator/internal/telemetry"
	"vcornea-orchestrator/internal/workspace"
)

// Version is set at build time
var Version = "1.0.0"

// batchFlags are the flags shared by every command that launches
// simulations. Flag values override the configuration file.
type batchFlags struct {
	config     string
	project    string
	output     string
	replicates int
	timeout    int
	keep       bool
	runner     string
	condaEnv   string
	image      string
	legacy     bool
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.config, "config", "", "Path to a vcornea.yaml configuration file")
	cmd.Flags().StringVar(&f.project, "project", "", "Path to the vCornea CC3D project template")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output base directory")
	cmd.Flags().IntVarP(&f.replicates, "replicates", "r", 0, "Number of replicates per run")
	cmd.Flags().IntVar(&f.timeout, "timeout-minutes", 0, "Per-process timeout in minutes")
	cmd.Flags().BoolVar(&f.keep, "keep-outputs", true, "Keep the output tree after the run")
	cmd.Flags().StringVar(&f.runner, "runner", "", "Process runner (conda|docker)")
	cmd.Flags().StringVar(&f.condaEnv, "env", "", "Conda environment name")
	cmd.Flags().StringVar(&f.image, "image", "", "Docker image for the docker runner")
	cmd.Flags().BoolVar(&f.legacy, "legacy-script", false, "Treat the batch script as v1 and patch its output path in place")
}

// load resolves the effective configuration: explicit file, vcornea.yaml
// in the working directory, or built-in defaults, with flags layered on
// top.
func (f *batchFlags) load(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case f.config != "":
		loaded, err := config.Load(f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		if _, err := os.Stat(config.DefaultPath); err == nil {
			loaded, err := config.Load("")
			if err != nil {
				return nil, err
			}
			cfg = loaded
		} else {
			cfg = config.Default()
		}
	}

	if f.project != "" {
		cfg.Project.Path = f.project
	}
	if cmd.Flags().Changed("legacy-script") && f.legacy {
		cfg.Project.ScriptVersion = config.ScriptV1
	}
	if f.output != "" {
		cfg.Output.BaseDir = f.output
	}
	if f.replicates > 0 {
		cfg.Batch.Replicates = f.replicates
	}
	if f.timeout > 0 {
		cfg.Batch.TimeoutMinutes = f.timeout
	}
	if cmd.Flags().Changed("keep-outputs") {
		cfg.Output.KeepOutputs = f.keep
	}
	if f.runner != "" {
		cfg.Runner.Mode = f.runner
	}
	if f.condaEnv != "" {
		cfg.Runner.Conda.EnvName = f.condaEnv
		cfg.Runner.Docker.EnvName = f.condaEnv
	}
	if f.image != "" {
		cfg.Runner.Docker.Image = f.image
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session wires the orchestration stack for one or more batches.
type session struct {
	cfg    *config.Config
	log    *logging.Logger
	runner sim.Runner
	closer func() error
	tp     *telemetry.TracerProvider
}

func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	log := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		NoColor: cfg.Logging.NoColor,
	})
	s := &session{cfg: cfg, log: log}

	if cfg.Telemetry.Enabled {
		tcfg := telemetry.DefaultConfig()
		tcfg.ServiceName = cfg.Telemetry.ServiceName
		tcfg.ServiceVersion = cfg.Telemetry.ServiceVersion
		tcfg.CollectorURL = cfg.Telemetry.Endpoint
		tcfg.SamplingRate = cfg.Telemetry.SampleRate
		tcfg.Insecure = cfg.Telemetry.Insecure
		tp, err := telemetry.NewTracerProvider(ctx, tcfg)
		if err != nil {
			log.Warnf("telemetry disabled: %v", err)
		} else {
			s.tp = tp
		}
	}

	legacy := cfg.Project.ScriptVersion == config.ScriptV1
	switch cfg.Runner.Mode {
	case config.RunnerDocker:
		runner, err := sim.NewDockerRunner(cfg.Runner.Docker.Image, cfg.Runner.Docker.EnvName, log)
		if err != nil {
			return nil, err
		}
		runner.Legacy = legacy
		s.runner = runner
		s.closer = runner.Close
	default:
		runner := sim.NewCondaRunner(cfg.Runner.Conda.EnvName, log)
		runner.Python = cfg.Runner.Conda.Python
		runner.Legacy = legacy
		s.runner = runner
	}
	return s, nil
}

func (s *session) close(ctx context.Context) {
	if s.closer != nil {
		if err := s.closer(); err != nil {
			s.log.Warnf("closing runner: %v", err)
		}
	}
	if s.tp != nil {
		if err := s.tp.Shutdown(ctx); err != nil {
			s.log.Warnf("telemetry shutdown: %v", err)
		}
	}
}

// runBatch executes one batch. A fresh coordinator per batch: coordinators
// are single-shot.
func (s *session) runBatch(ctx context.Context, overrides params.Set, order []string, runName string) (*batch.Result, error) {
	legacy := s.cfg.Project.ScriptVersion == config.ScriptV1
	manager, err := workspace.NewManager(s.cfg.Project.Path, workspace.Options{LegacyScriptRedirect: legacy}, s.log)
	if err != nil {
		return nil, err
	}

	coord := batch.NewCoordinator(manager, s.runner, collect.NewCollector(s.log), s.log, batch.Options{
		Replicates:      s.cfg.Batch.Replicates,
		Timeout:         time.Duration(s.cfg.Batch.TimeoutMinutes) * time.Minute,
		KillOnTimeout:   s.cfg.Batch.KillOnTimeout,
		OutputBase:      s.cfg.Output.BaseDir,
		RunName:         runName,
		MaxParamsInName: s.cfg.Naming.MaxParamsInName,
		KeepOutputs:     s.cfg.Output.KeepOutputs,
	})
	return coord.Run(ctx, overrides, order)
}

// parseOverrides turns name=value pairs into a parameter set, preserving
// encounter order for run naming. Values parse as Python literals: True,
// 500, 750.0, or a bare string.
func parseOverrides(pairs []string) (params.Set, []string, error) {
	set := params.Set{}
	var order []string
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, nil, fmt.Errorf("invalid parameter %q: want name=value", pair)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, nil, fmt.Errorf("invalid parameter %q: empty name", pair)
		}
		if _, dup := set[name]; !dup {
			order = append(order, name)
		}
		set[name] = params.Parse(strings.TrimSpace(raw))
	}
	return set, order, nil
}

// commandContext is cancelled by SIGINT/SIGTERM so an interrupted batch
// still kills its child processes on the way out.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// healingLabel renders a healing time for tables; a replicate that never
// recovered shows as empty.
func healingLabel(h *float64) string {
	if h == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *h)
}
