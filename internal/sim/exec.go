// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package sim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// killGraceTimeout is how long Kill waits after SIGTERM before escalating
// to SIGKILL.
const killGraceTimeout = 5 * time.Second

// CondaRunner launches the simulation as a host process inside a conda
// environment:
//
//	conda run -n <env> --no-capture-output python <batch_script>
//	    --input <project.cc3d> --parameters <Parameters.py> --output <dir>
//
// Legacy (v1) batch scripts do not understand --output; for those the flag
// and the environment variable are omitted and the workspace patch carries
// the output location instead.
type CondaRunner struct {
	CondaExe string
	EnvName  string
	Python   string
	Legacy   bool
	Log      Logger
}

// NewCondaRunner returns a runner with the standard conda and python
// executables.
func NewCondaRunner(envName string, log Logger) *CondaRunner {
	return &CondaRunner{
		CondaExe: "conda",
		EnvName:  envName,
		Python:   "python",
		Log:      log,
	}
}

// Launch starts one replicate's simulation process. The returned handle is
// already running; any setup failure closes the opened log files and comes
// back as a LaunchError.
func (r *CondaRunner) Launch(ctx context.Context, spec Spec) (Handle, error) {
	stdout, stderr, err := openLogs(spec.OutputDir)
	if err != nil {
		return nil, &LaunchError{ReplicateID: spec.ReplicateID, Err: err}
	}

	args := []string{
		"run", "-n", r.EnvName, "--no-capture-output",
		r.Python, spec.BatchScript,
		"--input", spec.ProjectFile,
		"--parameters", spec.ParametersFile,
	}
	if !r.Legacy {
		args = append(args, "--output", spec.OutputDir)
	}

	cmd := exec.CommandContext(ctx, r.CondaExe, args...)
	cmd.Dir = spec.WorkDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if !r.Legacy {
		cmd.Env = append(os.Environ(), OutputDirEnv+"="+spec.OutputDir)
	}

	// Process group so Kill can take down the whole CC3D process tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, &LaunchError{ReplicateID: spec.ReplicateID, Err: err}
	}
	r.Log.Debugf("replicate %d: started pid %d in %s", spec.ReplicateID, cmd.Process.Pid, spec.WorkDir)

	h := &execHandle{
		replicateID: spec.ReplicateID,
		cmd:         cmd,
		stdout:      stdout,
		stderr:      stderr,
		waitCh:      make(chan struct{}),
	}
	go h.reap()
	return h, nil
}

// execHandle tracks one running host process.
type execHandle struct {
	replicateID int
	cmd         *exec.Cmd
	stdout      *os.File
	stderr      *os.File

	waitCh   chan struct{}
	exitCode int
	waitErr  error

	closeOnce sync.Once
	closeErr  error
}

// reap waits for the process exactly once and records its exit status.
func (h *execHandle) reap() {
	defer close(h.waitCh)

	err := h.cmd.Wait()
	if err == nil {
		h.exitCode = 0
		return
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Nonzero exit or death by signal. The code is the outcome, not
		// an infrastructure error.
		h.exitCode = exitErr.ExitCode()
		return
	}
	h.exitCode = -1
	h.waitErr = err
}

func (h *execHandle) ReplicateID() int { return h.replicateID }

func (h *execHandle) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-h.waitCh:
		return h.exitCode, h.waitErr
	}
}

// Kill terminates the whole process group: SIGTERM first, SIGKILL if the
// process has not exited within the grace period.
func (h *execHandle) Kill() error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	select {
	case <-h.waitCh:
		return nil
	default:
	}

	pgid, err := syscall.Getpgid(h.cmd.Process.Pid)
	if err != nil {
		// Process already reaped; fall back to the direct kill.
		return h.cmd.Process.Kill()
	}

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}

	select {
	case <-time.After(killGraceTimeout):
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return fmt.Errorf("replicate %d did not stop after SIGTERM, force killed", h.replicateID)
	case <-h.waitCh:
		return nil
	}
}

func (h *execHandle) CloseLogs() error {
	h.closeOnce.Do(func() {
		if err := h.stdout.Close(); err != nil {
			h.closeErr = err
		}
		if err := h.stderr.Close(); err != nil && h.closeErr == nil {
			h.closeErr = err
		}
	})
	return h.closeErr
}
