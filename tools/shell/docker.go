package shell

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerRunner executes commands in one-shot containers with the session
// working directory bind-mounted at /workspace. Use when commands should
// not touch the host:
//
//	sh := shell.New(session, shell.WithRunner(shell.NewDockerRunner("alpine:3.20", session.Cwd)))
type DockerRunner struct {
	image string
	dir   string
}

// NewDockerRunner creates a runner using the given image. dir is the
// host directory mounted as the container workspace.
func NewDockerRunner(image, dir string) *DockerRunner {
	return &DockerRunner{image: image, dir: dir}
}

func (r *DockerRunner) Run(ctx context.Context, command, _ string, timeout time.Duration) RunResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return RunResult{Err: fmt.Errorf("docker client: %w", err)}
	}
	defer cli.Close()

	created, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image:      r.image,
			Cmd:        []string{"sh", "-c", command},
			WorkingDir: "/workspace",
		},
		&container.HostConfig{
			Binds:      []string{r.dir + ":/workspace"},
			AutoRemove: false,
		},
		nil, nil, "")
	if err != nil {
		return RunResult{Err: fmt.Errorf("docker create: %w", err)}
	}
	id := created.ID
	defer func() {
		// Removal uses a fresh context so cleanup survives the timeout.
		rmCtx, rmCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer rmCancel()
		_ = cli.ContainerRemove(rmCtx, id, container.RemoveOptions{Force: true})
	}()

	if err := cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return RunResult{Err: fmt.Errorf("docker start: %w", err)}
	}

	waitCh, errCh := cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case status := <-waitCh:
		exitCode = int(status.StatusCode)
	case err := <-errCh:
		if ctx.Err() == context.DeadlineExceeded {
			return RunResult{TimedOut: true}
		}
		return RunResult{Err: fmt.Errorf("docker wait: %w", err)}
	case <-ctx.Done():
		return RunResult{TimedOut: true}
	}

	logs, err := cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return RunResult{ExitCode: exitCode, Err: fmt.Errorf("docker logs: %w", err)}
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return RunResult{ExitCode: exitCode, Err: fmt.Errorf("docker logs demux: %w", err)}
	}

	return RunResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}
}

// compile-time check
var _ Runner = (*DockerRunner)(nil)
