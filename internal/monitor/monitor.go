// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package monitor awaits a batch of running simulation processes. Every
// process gets its own goroutine, so a stuck replicate never delays the
// bookkeeping for the ones that finish; results come back in one slice
// ordered by replicate ID regardless of completion order.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"vcornea-orchestrator/internal/sim"
)

// reapTimeout bounds the follow-up wait after a kill, long enough for the
// SIGTERM grace period plus the SIGKILL to land.
const reapTimeout = 10 * time.Second

// Logger is the logging surface the monitor needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// ProcessFailure describes a replicate process that ended without success.
type ProcessFailure struct {
	ReplicateID int
	ExitCode    int
	TimedOut    bool
	Timeout     time.Duration
	Err         error
}

// Error implements the error interface.
func (e *ProcessFailure) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("replicate %d timed out after %s", e.ReplicateID, e.Timeout)
	}
	if e.Err != nil {
		return fmt.Sprintf("replicate %d: %v", e.ReplicateID, e.Err)
	}
	return fmt.Sprintf("replicate %d exited with code %d", e.ReplicateID, e.ExitCode)
}

// Unwrap allows error wrapping.
func (e *ProcessFailure) Unwrap() error {
	return e.Err
}

// Outcome is the terminal state of one monitored process.
type Outcome struct {
	ReplicateID int
	ExitCode    int
	Success     bool
	TimedOut    bool
	Duration    time.Duration

	// Err is nil on success and a *ProcessFailure otherwise.
	Err error
}

// Options configures monitoring behavior.
type Options struct {
	// Timeout is the per-process wall clock limit. Zero means no limit.
	Timeout time.Duration

	// KillOnTimeout terminates a process that exceeds the limit instead
	// of abandoning it.
	KillOnTimeout bool
}

// Monitor awaits simulation processes.
type Monitor struct {
	log  Logger
	opts Options
}

// New returns a monitor.
func New(log Logger, opts Options) *Monitor {
	return &Monitor{log: log, opts: opts}
}

// WaitAll blocks until every handle reaches a terminal state and returns
// one outcome per handle, sorted by replicate ID. Log handles are closed
// on the way out.
func (m *Monitor) WaitAll(ctx context.Context, handles []sim.Handle) []Outcome {
	outcomes := make([]Outcome, len(handles))

	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h sim.Handle) {
			defer wg.Done()
			outcomes[i] = m.waitOne(ctx, h)
		}(i, h)
	}
	wg.Wait()

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].ReplicateID < outcomes[j].ReplicateID
	})
	return outcomes
}

func (m *Monitor) waitOne(ctx context.Context, h sim.Handle) Outcome {
	id := h.ReplicateID()
	start := time.Now()

	waitCtx := ctx
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	code, err := h.Wait(waitCtx)
	out := Outcome{ReplicateID: id, ExitCode: code}

	// A deadline on our own timer is a timeout; a cancelled parent means
	// the whole batch is shutting down. Both leave a live process behind.
	timedOut := m.opts.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
	if err != nil && m.opts.KillOnTimeout {
		if timedOut {
			m.log.Warnf("replicate %d exceeded %s, killing process", id, m.opts.Timeout)
		}
		if kerr := h.Kill(); kerr != nil {
			m.log.Warnf("replicate %d: %v", id, kerr)
		}
		reapCtx, cancel := context.WithTimeout(context.Background(), reapTimeout)
		out.ExitCode, _ = h.Wait(reapCtx)
		cancel()
	}
	out.Duration = time.Since(start)

	if cerr := h.CloseLogs(); cerr != nil {
		m.log.Warnf("replicate %d: closing logs: %v", id, cerr)
	}

	switch {
	case timedOut:
		out.TimedOut = true
		out.Err = &ProcessFailure{ReplicateID: id, ExitCode: out.ExitCode, TimedOut: true, Timeout: m.opts.Timeout}
	case err != nil:
		out.Err = &ProcessFailure{ReplicateID: id, ExitCode: out.ExitCode, Err: err}
	case code != 0:
		out.Err = &ProcessFailure{ReplicateID: id, ExitCode: code}
	default:
		out.Success = true
		m.log.Infof("replicate %d finished in %s", id, out.Duration.Round(time.Second))
	}
	return out
}
