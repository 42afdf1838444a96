// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package batch runs one orchestration cycle: N replicates of the same
// parameter set, each in its own workspace and process, aggregated into a
// single deterministic result. The coordinator moves through Launching,
// Monitoring, Collecting and Done in order; a replicate that fails early
// becomes a failure outcome without disturbing the others, and the caller
// gets exactly one outcome per requested replicate.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vcornea-orchestrator/internal/catalog"
	"vcornea-orchestrator/internal/collect"
	"vcornea-orchestrator/internal/monitor"
	"vcornea-orchestrator/internal/params"
	"vcornea-orchestrator/internal/runmeta"
	"vcornea-orchestrator/internal/runname"
	"vcornea-orchestrator/internal/sim"
	"vcornea-orchestrator/internal/telemetry"
	"vcornea-orchestrator/internal/workspace"
)

const tracerName = "batch"

// State is the coordinator's lifecycle phase. Transitions only move
// forward: Idle, Launching, Monitoring, Collecting, Done.
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateMonitoring
	StateCollecting
	StateDone
)

// String returns the phase name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateMonitoring:
		return "monitoring"
	case StateCollecting:
		return "collecting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Logger interface for structured logging.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// WorkspaceManager stamps out isolated replicate workspaces.
type WorkspaceManager interface {
	Prepare(replicateID int, outputDir string, set params.Set) (*workspace.Workspace, error)
}

// Collector harvests artifacts and parses results out of output
// directories.
type Collector interface {
	Collect(workspaceDir, outputDir string, simTime int64, replicateID int) ([]string, error)
	Results(outputDir string, simTime int64, isInjury bool, injuryTime int64, replicateID int) (*collect.Results, error)
}

// Options configures one batch.
type Options struct {
	// Replicates is the number of independent simulation runs. Values
	// below 1 are treated as 1.
	Replicates int

	// Timeout is the per-process wall clock limit. Zero means no limit.
	Timeout time.Duration

	// KillOnTimeout force-terminates a process that exceeds the limit.
	KillOnTimeout bool

	// OutputBase is the directory that receives the run's output tree and
	// the experiment log.
	OutputBase string

	// RunName, when set, is used verbatim instead of a generated name.
	RunName string

	// MaxParamsInName bounds the parameter fragments in generated names.
	MaxParamsInName int

	// KeepOutputs retains the run's output tree after aggregation. When
	// false the tree is removed and only the in-memory result and the
	// experiment log row survive.
	KeepOutputs bool

	// Now supplies timestamps; nil means time.Now.
	Now func() time.Time
}

// ReplicateResult is the terminal, immutable outcome of one replicate.
type ReplicateResult struct {
	ReplicateID    int              `json:"replicate_id"`
	Success        bool             `json:"success"`
	OutputDir      string           `json:"output_directory"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	Results        *collect.Results `json:"results,omitempty"`
	FilesGenerated []string         `json:"files_generated,omitempty"`
	FilesCollected []string         `json:"files_collected,omitempty"`
}

// Result is the sole externally observable artifact of one batch.
type Result struct {
	RunName           string                   `json:"run_name"`
	ReplicateResults  []ReplicateResult        `json:"replicate_results"`
	SimulationSuccess bool                     `json:"simulation_success"`
	OutputDir         string                   `json:"output_directory"`
	ParameterChanges  map[string]params.Change `json:"parameter_changes"`
	RunMetadata       *runmeta.Metadata        `json:"run_metadata"`
}

// job tracks one replicate from launch to terminal outcome.
type job struct {
	id        int
	outputDir string
	md        *runmeta.Metadata
	ws        *workspace.Workspace
	before    []string
	handle    sim.Handle
	setupErr  error
}

// Coordinator runs batches. One coordinator runs one batch; Run returns an
// error if called again.
type Coordinator struct {
	mu    sync.Mutex
	state State

	manager   WorkspaceManager
	runner    sim.Runner
	collector Collector
	logger    Logger
	opts      Options
}

// NewCoordinator creates a batch coordinator.
func NewCoordinator(manager WorkspaceManager, runner sim.Runner, collector Collector, logger Logger, opts Options) *Coordinator {
	if opts.Replicates < 1 {
		opts.Replicates = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		state:     StateIdle,
		manager:   manager,
		runner:    runner,
		collector: collector,
		logger:    logger,
		opts:      opts,
	}
}

// State reports the current lifecycle phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// advance moves the state machine forward. Backward transitions are not
// representable: a smaller state is ignored.
func (c *Coordinator) advance(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s > c.state {
		c.state = s
	}
}

// Run executes the whole batch and blocks until every replicate reaches a
// terminal state. overrideOrder preserves the caller's parameter order for
// run naming; changed parameters absent from it fall back to sorted order.
// The returned error is reserved for construction-level failures (the
// output tree cannot be created, or Run was already called); per-replicate
// failures are reported inside the Result.
func (c *Coordinator) Run(ctx context.Context, overrides params.Set, overrideOrder []string) (*Result, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, fmt.Errorf("batch already executed (state %s)", c.state)
	}
	c.mu.Unlock()

	start := c.opts.Now()
	defaults := catalog.Defaults()
	merged := params.Merge(defaults, overrides)
	changes := params.Changes(merged, defaults)

	runName := runname.Generate(changes, overrideOrder, runname.Options{
		Explicit:  c.opts.RunName,
		MaxParams: c.opts.MaxParamsInName,
		Now:       start,
	})
	outputDir := filepath.Join(c.opts.OutputBase, runName)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	simTime := merged["SimTime"].AsInt()
	isInjury := merged["IsInjury"].AsBool()
	injuryTime := merged["InjuryTime"].AsInt()
	n := c.opts.Replicates

	ctx, span := telemetry.StartSpan(ctx, tracerName, "batch.Run",
		trace.WithAttributes(telemetry.BatchAttrs(runName, n)...),
		trace.WithAttributes(
			telemetry.AttrOutputDir.String(outputDir),
			telemetry.AttrSimTime.Int64(simTime),
			telemetry.AttrInjuryEnabled.Bool(isInjury),
			telemetry.AttrChangedParams.Int(len(changes)),
		),
	)
	defer span.End()

	c.logger.Infof("Starting batch %s: %d replicate(s), %d changed parameter(s)", runName, n, len(changes))

	jobs := c.launchAll(ctx, runName, outputDir, merged, changes, n)

	c.advance(StateMonitoring)
	telemetry.AddEvent(ctx, "batch.monitoring")
	outcomes := c.awaitAll(ctx, jobs)

	c.advance(StateCollecting)
	telemetry.AddEvent(ctx, "batch.collecting")
	result := c.collectAll(ctx, jobs, outcomes, runName, outputDir, simTime, isInjury, injuryTime, merged, changes, start)

	c.advance(StateDone)
	if result.SimulationSuccess {
		telemetry.SetSpanStatus(ctx, codes.Ok, "")
	} else {
		telemetry.SetSpanStatus(ctx, codes.Error, "one or more replicates failed")
	}
	telemetry.AddAttributes(ctx, telemetry.AttrSuccess.Bool(result.SimulationSuccess))

	if !c.opts.KeepOutputs {
		c.logger.Debugf("removing output tree %s (keep_outputs disabled)", outputDir)
		if err := os.RemoveAll(outputDir); err != nil {
			c.logger.Warnf("failed to remove output tree: %v", err)
		}
	}

	succeeded := 0
	for _, rep := range result.ReplicateResults {
		if rep.Success {
			succeeded++
		}
	}
	c.logger.Infof("Batch %s complete: %d succeeded, %d failed", runName, succeeded, n-succeeded)
	return result, nil
}

// launchAll fans out every replicate before anything is awaited. Setup and
// launch failures are recorded on the job and never abort the loop.
func (c *Coordinator) launchAll(ctx context.Context, runName, outputDir string, merged params.Set, changes map[string]params.Change, n int) []*job {
	c.advance(StateLaunching)
	telemetry.AddEvent(ctx, "batch.launching")

	jobs := make([]*job, 0, n)
	for id := 1; id <= n; id++ {
		j := &job{id: id, outputDir: filepath.Join(outputDir, fmt.Sprintf("replicate_%d", id))}
		jobs = append(jobs, j)

		j.md = runmeta.New(runName, id, n, merged, changes, c.opts.Now())
		j.md.OutputDir = j.outputDir

		if err := os.MkdirAll(j.outputDir, 0o755); err != nil {
			j.setupErr = fmt.Errorf("failed to create replicate output directory: %w", err)
			c.logger.Errorf("replicate %d: %v", id, j.setupErr)
			continue
		}
		if err := j.md.WriteFile(j.outputDir); err != nil {
			c.logger.Warnf("replicate %d: writing launch metadata: %v", id, err)
		}

		ws, err := c.manager.Prepare(id, j.outputDir, merged)
		if err != nil {
			j.setupErr = err
			c.logger.Errorf("replicate %d: workspace setup failed: %v", id, err)
			continue
		}
		j.ws = ws
		j.before, _ = collect.Snapshot(ws.Root)

		handle, err := c.runner.Launch(ctx, sim.Spec{
			ReplicateID:    id,
			WorkDir:        ws.Root,
			ProjectFile:    ws.ProjectFile,
			BatchScript:    ws.BatchScript,
			ParametersFile: ws.ParametersFile,
			OutputDir:      j.outputDir,
		})
		if err != nil {
			j.setupErr = err
			c.logger.Errorf("replicate %d: launch failed: %v", id, err)
			continue
		}
		j.handle = handle
		c.logger.Debugf("replicate %d launched", id)
	}
	return jobs
}

// awaitAll monitors the successfully launched processes and returns their
// outcomes keyed by replicate ID.
func (c *Coordinator) awaitAll(ctx context.Context, jobs []*job) map[int]monitor.Outcome {
	var handles []sim.Handle
	for _, j := range jobs {
		if j.handle != nil {
			handles = append(handles, j.handle)
		}
	}

	mon := monitor.New(c.logger, monitor.Options{
		Timeout:       c.opts.Timeout,
		KillOnTimeout: c.opts.KillOnTimeout,
	})
	outcomes := make(map[int]monitor.Outcome, len(handles))
	for _, out := range mon.WaitAll(ctx, handles) {
		outcomes[out.ReplicateID] = out
	}
	return outcomes
}

// collectAll finalizes every job in replicate order: harvest artifacts,
// write the terminal metadata, upsert the experiment log, tear down the
// workspace. Exactly one outcome per requested replicate comes back.
func (c *Coordinator) collectAll(
	ctx context.Context,
	jobs []*job,
	outcomes map[int]monitor.Outcome,
	runName, outputDir string,
	simTime int64,
	isInjury bool,
	injuryTime int64,
	merged params.Set,
	changes map[string]params.Change,
	start time.Time,
) *Result {
	logPath := filepath.Join(c.opts.OutputBase, runmeta.ExperimentLogFileName)

	result := &Result{
		RunName:           runName,
		SimulationSuccess: true,
		OutputDir:         outputDir,
		ParameterChanges:  changes,
	}

	for _, j := range jobs {
		rep := c.finalizeJob(ctx, j, outcomes, simTime, isInjury, injuryTime, logPath)
		result.ReplicateResults = append(result.ReplicateResults, rep)
		result.SimulationSuccess = result.SimulationSuccess && rep.Success
	}

	md := runmeta.New(runName, 0, c.opts.Replicates, merged, changes, start)
	md.OutputDir = outputDir
	failures := 0
	for _, rep := range result.ReplicateResults {
		if !rep.Success {
			failures++
			continue
		}
		if md.HealingTime == nil && rep.Results != nil {
			md.HealingTime = rep.Results.HealingTime
		}
	}
	errMsg := ""
	if failures > 0 {
		errMsg = fmt.Sprintf("%d of %d replicates failed", failures, c.opts.Replicates)
	}
	md.Finalize(result.SimulationSuccess, errMsg, c.opts.Now())
	result.RunMetadata = md

	// Converge the run's log row to the aggregate record; the per-replicate
	// upserts above would otherwise leave whichever replicate finalized last.
	if err := runmeta.UpsertExperimentLog(logPath, md, c.logger); err != nil {
		c.logger.Warnf("experiment log: %v", err)
	}

	return result
}

// finalizeJob records one replicate's terminal outcome on every path:
// setup failure, launch failure, process exit, timeout.
func (c *Coordinator) finalizeJob(ctx context.Context, j *job, outcomes map[int]monitor.Outcome, simTime int64, isInjury bool, injuryTime int64, logPath string) ReplicateResult {
	rep := ReplicateResult{ReplicateID: j.id, OutputDir: j.outputDir}

	switch {
	case j.setupErr != nil:
		rep.ErrorMessage = j.setupErr.Error()
	case j.handle != nil:
		out := outcomes[j.id]
		rep.Success = out.Success
		if out.Err != nil {
			rep.ErrorMessage = out.Err.Error()
		}
		telemetry.AddEvent(ctx, "replicate.finished",
			telemetry.AttrReplicateID.Int(j.id),
			telemetry.AttrExitCode.Int(out.ExitCode),
			telemetry.AttrTimedOut.Bool(out.TimedOut),
			telemetry.AttrSuccess.Bool(out.Success),
		)
	}

	if j.ws != nil {
		collected, err := c.collector.Collect(j.ws.Root, j.outputDir, simTime, j.id)
		if err != nil {
			c.logger.Warnf("%v", err)
		}
		rep.FilesCollected = collected

		after, _ := collect.Snapshot(j.ws.Root)
		rep.FilesGenerated = collect.DiffSnapshots(j.before, after)
	}

	if rep.Success {
		res, err := c.collector.Results(j.outputDir, simTime, isInjury, injuryTime, j.id)
		if err != nil {
			c.logger.Warnf("%v", err)
		}
		rep.Results = res
	}

	if j.md != nil {
		rep.applyTo(j.md, c.opts.Now())
		if err := j.md.WriteFile(j.outputDir); err != nil {
			c.logger.Warnf("replicate %d: writing terminal metadata: %v", j.id, err)
		}
		if err := runmeta.UpsertExperimentLog(logPath, j.md, c.logger); err != nil {
			c.logger.Warnf("replicate %d: experiment log: %v", j.id, err)
		}
	}

	if j.ws != nil {
		if err := j.ws.Teardown(); err != nil {
			c.logger.Warnf("replicate %d: workspace teardown: %v", j.id, err)
		}
	}
	return rep
}

// applyTo folds the outcome into the replicate's metadata record.
func (r ReplicateResult) applyTo(md *runmeta.Metadata, now time.Time) {
	md.Finalize(r.Success, r.ErrorMessage, now)
	md.FilesGenerated = r.FilesGenerated
	md.FilesCollected = r.FilesCollected
	if r.Results != nil {
		md.HealingTime = r.Results.HealingTime
	}
}
