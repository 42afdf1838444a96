package sim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

// dockerStopTimeout is the grace period for stopping a simulation container.
const dockerStopTimeout = 10 * time.Second

// DockerRunner launches each replicate in its own container. The workspace
// and the replicate output directory are bind-mounted at their host paths,
// so the command line is identical to the conda runner's and collected
// artifacts land in the same places.
type DockerRunner struct {
	cli     *client.Client
	Image   string
	EnvName string
	Python  string
	Legacy  bool
	Log     Logger
}

// NewDockerRunner creates a runner against the local Docker daemon.
func NewDockerRunner(image, envName string, log Logger) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &DockerRunner{
		cli:     cli,
		Image:   image,
		EnvName: envName,
		Python:  "python",
		Log:     log,
	}, nil
}

// Close closes the Docker client connection.
func (r *DockerRunner) Close() error {
	if r.cli != nil {
		return r.cli.Close()
	}
	return nil
}

// Launch creates and starts one simulation container.
func (r *DockerRunner) Launch(ctx context.Context, spec Spec) (Handle, error) {
	stdout, stderr, err := openLogs(spec.OutputDir)
	if err != nil {
		return nil, &LaunchError{ReplicateID: spec.ReplicateID, Err: err}
	}
	fail := func(err error) (Handle, error) {
		stdout.Close()
		stderr.Close()
		return nil, &LaunchError{ReplicateID: spec.ReplicateID, Err: err}
	}

	cmd := []string{
		"conda", "run", "-n", r.EnvName, "--no-capture-output",
		r.Python, spec.BatchScript,
		"--input", spec.ProjectFile,
		"--parameters", spec.ParametersFile,
	}
	var env []string
	if !r.Legacy {
		cmd = append(cmd, "--output", spec.OutputDir)
		env = append(env, OutputDirEnv+"="+spec.OutputDir)
	}

	cfg := &container.Config{
		Image:      r.Image,
		Cmd:        cmd,
		WorkingDir: spec.WorkDir,
		Env:        env,
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: spec.WorkDir, Target: spec.WorkDir},
			{Type: mount.TypeBind, Source: spec.OutputDir, Target: spec.OutputDir},
		},
	}

	name := fmt.Sprintf("vcornea-rep%d-%s", spec.ReplicateID, uuid.NewString()[:8])
	created, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return fail(fmt.Errorf("create container: %w", err))
	}

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = stopAndRemove(context.Background(), r.cli, created.ID)
		return fail(fmt.Errorf("start container: %w", err))
	}
	r.Log.Debugf("replicate %d: started container %s", spec.ReplicateID, name)

	h := &dockerHandle{
		replicateID: spec.ReplicateID,
		cli:         r.cli,
		containerID: created.ID,
		stdout:      stdout,
		stderr:      stderr,
		waitCh:      make(chan struct{}),
		log:         r.Log,
	}
	go h.reap()
	return h, nil
}

// dockerHandle tracks one running simulation container.
type dockerHandle struct {
	replicateID int
	cli         *client.Client
	containerID string
	stdout      *os.File
	stderr      *os.File
	log         Logger

	waitCh   chan struct{}
	exitCode int
	waitErr  error

	closeOnce sync.Once
	closeErr  error
}

// reap waits for the container, copies its logs into the replicate log
// files, and removes it.
func (h *dockerHandle) reap() {
	defer close(h.waitCh)
	ctx := context.Background()

	waitCh, errCh := h.cli.ContainerWait(ctx, h.containerID, container.WaitConditionNotRunning)
	select {
	case body := <-waitCh:
		h.exitCode = int(body.StatusCode)
		if body.Error != nil {
			h.exitCode = -1
			h.waitErr = errors.New(body.Error.Message)
		}
	case err := <-errCh:
		h.exitCode = -1
		h.waitErr = err
	}

	h.copyLogs(ctx)

	if err := stopAndRemove(ctx, h.cli, h.containerID); err != nil && h.log != nil {
		h.log.Warnf("replicate %d: remove container: %v", h.replicateID, err)
	}
}

// copyLogs demultiplexes the container's combined log stream into the
// stdout and stderr files.
func (h *dockerHandle) copyLogs(ctx context.Context) {
	rc, err := h.cli.ContainerLogs(ctx, h.containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		if h.log != nil {
			h.log.Warnf("replicate %d: fetch container logs: %v", h.replicateID, err)
		}
		return
	}
	defer rc.Close()

	if _, err := stdcopy.StdCopy(h.stdout, h.stderr, rc); err != nil && h.log != nil {
		h.log.Warnf("replicate %d: demux container logs: %v", h.replicateID, err)
	}
}

func (h *dockerHandle) ReplicateID() int { return h.replicateID }

func (h *dockerHandle) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-h.waitCh:
		return h.exitCode, h.waitErr
	}
}

// Kill stops and removes the container. Removal is idempotent; the reap
// goroutine observes the stop through ContainerWait.
func (h *dockerHandle) Kill() error {
	return stopAndRemove(context.Background(), h.cli, h.containerID)
}

func (h *dockerHandle) CloseLogs() error {
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

// stopAndRemove stops and removes a container by ID. It does not error when
// the container is already gone.
func stopAndRemove(ctx context.Context, cli *client.Client, containerID string) error {
	if containerID == "" {
		return nil
	}

	timeout := int(dockerStopTimeout.Seconds())
	_ = cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})

	err := cli.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", containerID, err)
	}
	return nil
}
