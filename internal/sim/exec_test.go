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
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLogger records log lines for assertion.
type MockLogger struct {
	mu     sync.Mutex
	debugs []string
	warns  []string
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugs = append(m.debugs, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, fmt.Sprintf(format, args...))
}

func testSpec(t *testing.T) Spec {
	t.Helper()
	return Spec{
		ReplicateID:    1,
		WorkDir:        t.TempDir(),
		ProjectFile:    "/ws/vCornea_v2.cc3d",
		BatchScript:    "/ws/Batch_Run_vCornea_Paper_version.py",
		ParametersFile: "/ws/Simulation/Parameters.py",
		OutputDir:      t.TempDir(),
	}
}

// startHandle runs a shell command through the handle machinery, the same
// way Launch does.
func startHandle(t *testing.T, script string) *execHandle {
	t.Helper()
	dir := t.TempDir()
	stdout, stderr, err := openLogs(dir)
	require.NoError(t, err)

	cmd := exec.Command("sh", "-c", script)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())

	h := &execHandle{
		replicateID: 1,
		cmd:         cmd,
		stdout:      stdout,
		stderr:      stderr,
		waitCh:      make(chan struct{}),
	}
	go h.reap()
	t.Cleanup(func() {
		_ = h.Kill()
		_ = h.CloseLogs()
	})
	return h
}

func TestCondaRunner_BuildsInvocation(t *testing.T) {
	// echo stands in for conda and prints the argument list, which ends up
	// in stdout.log through the bound log file.
	log := &MockLogger{}
	r := NewCondaRunner("vc", log)
	r.CondaExe = "echo"

	spec := testSpec(t)
	h, err := r.Launch(context.Background(), spec)
	require.NoError(t, err)

	code, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	require.NoError(t, h.CloseLogs())

	out, err := os.ReadFile(filepath.Join(spec.OutputDir, StdoutLogName))
	require.NoError(t, err)
	line := string(out)
	assert.Contains(t, line, "run -n vc --no-capture-output python "+spec.BatchScript)
	assert.Contains(t, line, "--input "+spec.ProjectFile)
	assert.Contains(t, line, "--parameters "+spec.ParametersFile)
	assert.Contains(t, line, "--output "+spec.OutputDir)
}

func TestCondaRunner_LegacyOmitsOutputFlag(t *testing.T) {
	r := NewCondaRunner("vc", &MockLogger{})
	r.CondaExe = "echo"
	r.Legacy = true

	spec := testSpec(t)
	h, err := r.Launch(context.Background(), spec)
	require.NoError(t, err)

	_, err = h.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.CloseLogs())

	out, err := os.ReadFile(filepath.Join(spec.OutputDir, StdoutLogName))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "--output")
}

func TestCondaRunner_LaunchFailure(t *testing.T) {
	r := NewCondaRunner("vc", &MockLogger{})
	r.CondaExe = filepath.Join(t.TempDir(), "no-such-conda")

	spec := testSpec(t)
	_, err := r.Launch(context.Background(), spec)
	require.Error(t, err)

	var launchErr *LaunchError
	require.True(t, errors.As(err, &launchErr))
	assert.Equal(t, 1, launchErr.ReplicateID)

	// Log files were opened before the failure and must still exist for
	// postmortem inspection.
	assert.FileExists(t, filepath.Join(spec.OutputDir, StdoutLogName))
	assert.FileExists(t, filepath.Join(spec.OutputDir, StderrLogName))
}

func TestExecHandle_WaitReportsExitCode(t *testing.T) {
	h := startHandle(t, "exit 3")
	code, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestExecHandle_WaitZeroOnSuccess(t *testing.T) {
	h := startHandle(t, "exit 0")
	code, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestExecHandle_WaitHonorsContext(t *testing.T) {
	h := startHandle(t, "sleep 30")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecHandle_KillStopsProcess(t *testing.T) {
	h := startHandle(t, "sleep 30")

	require.NoError(t, h.Kill())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := h.Wait(ctx)
	require.NoError(t, err, "killed process must still reach a terminal state")
	assert.Equal(t, -1, code, "death by signal has no usable exit code")
}

func TestExecHandle_KillAfterExitIsNoOp(t *testing.T) {
	h := startHandle(t, "exit 0")
	_, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.NoError(t, h.Kill())
}

func TestExecHandle_CloseLogsIdempotent(t *testing.T) {
	h := startHandle(t, "exit 0")
	_, err := h.Wait(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.CloseLogs())
	assert.NoError(t, h.CloseLogs())
}

func TestExecHandle_StreamsReachLogFiles(t *testing.T) {
	dir := t.TempDir()
	stdout, stderr, err := openLogs(dir)
	require.NoError(t, err)

	cmd := exec.Command("sh", "-c", "echo out; echo err 1>&2")
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())

	h := &execHandle{replicateID: 2, cmd: cmd, stdout: stdout, stderr: stderr, waitCh: make(chan struct{})}
	go h.reap()

	_, err = h.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.CloseLogs())

	outContent, err := os.ReadFile(filepath.Join(dir, StdoutLogName))
	require.NoError(t, err)
	errContent, err := os.ReadFile(filepath.Join(dir, StderrLogName))
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(outContent))
	assert.Equal(t, "err\n", string(errContent))
}
