// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package sim launches the external CC3D simulation, one process per
// replicate. Launch is non-blocking: it binds the process's standard
// streams to per-replicate log files and hands back a handle the monitor
// waits on. Two runners implement the same contract, a conda-based host
// process runner and a container runner.
package sim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// OutputDirEnv is the environment variable the v2 batch scripts honor for
// their output location, alongside the --output flag.
const OutputDirEnv = "VCORNEA_OUTPUT_DIR"

// Per-replicate log file names.
const (
	StdoutLogName = "stdout.log"
	StderrLogName = "stderr.log"
)

// Logger is the logging surface the runners need.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Spec describes one replicate's launch.
type Spec struct {
	ReplicateID int
	// WorkDir is the replicate's workspace root; the process runs with
	// this as its working directory.
	WorkDir string
	// ProjectFile is the .cc3d project the simulation loads.
	ProjectFile string
	// BatchScript is the batch entry point inside the workspace.
	BatchScript string
	// ParametersFile is the generated parameter file inside the workspace.
	ParametersFile string
	// OutputDir receives stdout.log, stderr.log and, under the v2
	// contract, the simulation's own outputs.
	OutputDir string
}

// Handle is a launched simulation process.
type Handle interface {
	// ReplicateID identifies which replicate this process runs.
	ReplicateID() int
	// Wait blocks until the process reaches a terminal state or ctx ends.
	// The exit code is 0 on success; -1 means the process died without a
	// usable status. A ctx error is returned as-is so callers can
	// distinguish timeout from completion.
	Wait(ctx context.Context) (int, error)
	// Kill force-terminates the process. Safe to call after exit.
	Kill() error
	// CloseLogs releases the log file handles. Safe to call once the
	// process is no longer running; later calls are no-ops.
	CloseLogs() error
}

// Runner launches simulation processes.
type Runner interface {
	Launch(ctx context.Context, spec Spec) (Handle, error)
}

// LaunchError reports a failure to start one replicate's process. Launches
// fail independently: the error is converted to a failure outcome for that
// replicate and the rest of the batch proceeds.
type LaunchError struct {
	ReplicateID int
	Err         error
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("replicate %d launch: %v", e.ReplicateID, e.Err)
}

// Unwrap allows error wrapping.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// openLogs creates the two log files in the replicate output directory.
// They are opened before the process starts so no early output is lost.
func openLogs(outputDir string) (stdout, stderr *os.File, err error) {
	stdout, err = os.OpenFile(filepath.Join(outputDir, StdoutLogName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open stdout log: %w", err)
	}
	stderr, err = os.OpenFile(filepath.Join(outputDir, StderrLogName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		stdout.Close()
		return nil, nil, fmt.Errorf("open stderr log: %w", err)
	}
	return stdout, stderr, nil
}
