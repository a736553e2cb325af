package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

const workspaceDir = "/workspace"

// DockerConfig holds container limits for DockerTerminal
type DockerConfig struct {
	MemoryMB   int
	CPULimit   float64
	NetworkOff bool
	Timeout    time.Duration
}

// DefaultDockerConfig returns conservative limits for practice code.
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		MemoryMB:   384,
		CPULimit:   1,
		NetworkOff: true,
		Timeout:    30 * time.Second,
	}
}

// DockerTerminal runs commands inside long-lived containers, one per
// image. The file is copied into the container before each run.
type DockerTerminal struct {
	client *client.Client
	runner *Runner
	cfg    DockerConfig
	out    io.Writer

	mu         sync.Mutex
	containers map[string]string // image -> container id
}

// NewDockerTerminal connects to the local Docker daemon.
func NewDockerTerminal(ctx context.Context, runner *Runner, cfg DockerConfig, out io.Writer) (*DockerTerminal, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	if out == nil {
		out = os.Stdout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDockerConfig().Timeout
	}

	return &DockerTerminal{
		client:     cli,
		runner:     runner,
		cfg:        cfg,
		out:        out,
		containers: make(map[string]string),
	}, nil
}

// Run copies the command's file into a container for its language and
// executes the same command line there.
func (t *DockerTerminal) Run(ctx context.Context, cmd Command) error {
	lc, ok := t.runner.Config(cmd.Language)
	if !ok || lc.Image == "" {
		return fmt.Errorf("%w: no image for %s", ErrUnsupportedLanguage, cmd.Language)
	}

	src, err := os.ReadFile(cmd.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", cmd.Path, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id, err := t.container(ctx, lc.Image)
	if err != nil {
		return err
	}

	name := filepath.Base(cmd.Path)
	if err := t.copyFile(ctx, id, name, src); err != nil {
		return err
	}

	inner, err := t.runner.Command(path.Join(workspaceDir, name), cmd.Language)
	if err != nil {
		return err
	}

	exitCode, err := t.exec(ctx, id, inner.Line)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("%w: exit code %d", ErrCommandFailed, exitCode)
	}
	return nil
}

// Close removes every container this terminal created.
func (t *DockerTerminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for img, id := range t.containers {
		if err := t.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
			slog.Warn("failed to remove container", "image", img, "id", id, "error", err)
		}
		delete(t.containers, img)
	}
	return t.client.Close()
}

func (t *DockerTerminal) container(ctx context.Context, img string) (string, error) {
	if id, ok := t.containers[img]; ok {
		info, err := t.client.ContainerInspect(ctx, id)
		if err == nil && info.State != nil && info.State.Running {
			return id, nil
		}
		delete(t.containers, img)
	}

	if err := t.ensureImage(ctx, img); err != nil {
		return "", fmt.Errorf("ensure image: %w", err)
	}

	resp, err := t.client.ContainerCreate(ctx,
		&container.Config{
			Image:           img,
			Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
			WorkingDir:      workspaceDir,
			NetworkDisabled: t.cfg.NetworkOff,
			Labels:          map[string]string{"kata.runner": "true"},
		},
		&container.HostConfig{
			Resources: container.Resources{
				Memory:   int64(t.cfg.MemoryMB) * 1024 * 1024,
				NanoCPUs: int64(t.cfg.CPULimit * 1e9),
			},
		}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := t.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = t.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}

	slog.Info("runner container started", "image", img, "id", resp.ID[:12])
	t.containers[img] = resp.ID
	return resp.ID, nil
}

func (t *DockerTerminal) copyFile(ctx context.Context, id, name string, content []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("write tar content: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}

	if err := t.client.CopyToContainer(ctx, id, workspaceDir, &buf, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copy to container: %w", err)
	}
	return nil
}

func (t *DockerTerminal) exec(ctx context.Context, id, line string) (int, error) {
	execCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	created, err := t.client.ContainerExecCreate(execCtx, id, container.ExecOptions{
		Cmd:          []string{"sh", "-c", line},
		WorkingDir:   workspaceDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return 0, fmt.Errorf("create exec: %w", err)
	}

	attached, err := t.client.ContainerExecAttach(execCtx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, fmt.Errorf("attach exec: %w", err)
	}
	defer attached.Close()

	raw, err := io.ReadAll(attached.Reader)
	if err != nil {
		return 0, fmt.Errorf("read exec output: %w", err)
	}
	stdout, stderr := demuxOutput(raw)
	io.WriteString(t.out, stdout)
	io.WriteString(t.out, stderr)

	inspected, err := t.client.ContainerExecInspect(execCtx, created.ID)
	if err != nil {
		return 0, fmt.Errorf("inspect exec: %w", err)
	}
	return inspected.ExitCode, nil
}

func (t *DockerTerminal) ensureImage(ctx context.Context, img string) error {
	if _, err := t.client.ImageInspect(ctx, img); err == nil {
		return nil
	}

	slog.Info("pulling runner image", "image", img)
	reader, err := t.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// demuxOutput splits Docker's multiplexed stream. Each frame has an
// 8-byte header: stream type (1 stdout, 2 stderr), three zero bytes, and
// a big-endian payload size.
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf bytes.Buffer

	for len(data) >= 8 {
		stream := data[0]
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]
		if size > len(data) {
			size = len(data)
		}

		switch stream {
		case 1:
			outBuf.Write(data[:size])
		case 2:
			errBuf.Write(data[:size])
		}
		data = data[size:]
	}

	return outBuf.String(), errBuf.String()
}
