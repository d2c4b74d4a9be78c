// Package docker adapts the Docker Engine API to the small surface the
// dashboard needs: container snapshots, lifecycle actions, and the two stream
// sources (log tail, exec output). Errors are normalized to ErrNotFound and
// ErrRuntimeUnavailable; the adapter never substitutes defaults.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/dockhand/dockhand-backend/internal/models"
)

var (
	// ErrNotFound means the container id does not exist on the host.
	ErrNotFound = errors.New("container not found")
	// ErrRuntimeUnavailable means the engine cannot be reached.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
)

// Runtime is the workload surface consumed by the REST handlers and the
// session gateway. Snapshots are always fetched live.
type Runtime interface {
	List(ctx context.Context) ([]models.Container, error)
	Get(ctx context.Context, id string) (*models.Container, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
	TailLogs(ctx context.Context, id string) (*Stream, error)
	Exec(ctx context.Context, id, command string) (*Stream, error)
	WriteStdin(ctx context.Context, id, input string) error
}

// Client implements Runtime over the Docker Engine HTTP API.
type Client struct {
	api client.APIClient
}

// NewClient connects to the engine at host ("" = environment default, i.e.
// DOCKER_HOST or the local socket).
func NewClient(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{api: api}, nil
}

// NewClientWithAPI wraps an existing API client; used by tests.
func NewClientWithAPI(api client.APIClient) *Client {
	return &Client{api: api}
}

// Close releases the underlying engine connection.
func (c *Client) Close() error {
	return c.api.Close()
}

// List returns a snapshot of every container on the host, running or not.
// The interactive-terminal and stdin flags come from a per-container inspect,
// mirroring what the list endpoint does not report.
func (c *Client) List(ctx context.Context) ([]models.Container, error) {
	summaries, err := c.api.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, normalizeErr(err)
	}

	containers := make([]models.Container, 0, len(summaries))
	for _, s := range summaries {
		inspect, err := c.api.ContainerInspect(ctx, s.ID)
		if err != nil {
			return nil, normalizeErr(err)
		}
		containers = append(containers, toSnapshot(s, inspect))
	}
	return containers, nil
}

// Get returns the snapshot for one container id.
func (c *Client) Get(ctx context.Context, id string) (*models.Container, error) {
	containers, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range containers {
		if containers[i].ID == id {
			return &containers[i], nil
		}
	}
	return nil, ErrNotFound
}

// Start starts the container.
func (c *Client) Start(ctx context.Context, id string) error {
	if err := c.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return normalizeErr(err)
	}
	return nil
}

// Stop stops the container with the engine's default grace period.
func (c *Client) Stop(ctx context.Context, id string) error {
	if err := c.api.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return normalizeErr(err)
	}
	return nil
}

// Restart restarts the container. The engine implements this as stop-then-
// start, so failure semantics match the sequential pair.
func (c *Client) Restart(ctx context.Context, id string) error {
	if err := c.api.ContainerRestart(ctx, id, container.StopOptions{}); err != nil {
		return normalizeErr(err)
	}
	return nil
}

// TailLogs opens a follow-mode log stream. The stream terminates when the
// engine closes its side or the caller closes the stream.
func (c *Client) TailLogs(ctx context.Context, id string) (*Stream, error) {
	inspect, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return nil, normalizeErr(err)
	}

	rc, err := c.api.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Timestamps: true,
	})
	if err != nil {
		return nil, normalizeErr(err)
	}

	stream := newLogStream(rc)
	tty := inspect.Config != nil && inspect.Config.Tty
	go func() {
		w := &streamWriter{s: stream}
		var copyErr error
		if tty {
			_, copyErr = io.Copy(w, rc)
		} else {
			// Non-TTY log streams are multiplexed; split stdout/stderr frames
			// into plain text chunks.
			_, copyErr = stdcopy.StdCopy(w, w, rc)
		}
		stream.finish(copyErr)
	}()
	return stream, nil
}

// Exec runs one shell command inside the container and streams its combined
// output. The stream terminates when the command finishes or the caller
// closes it; closing does not kill the host-side command.
func (c *Client) Exec(ctx context.Context, id, command string) (*Stream, error) {
	exec, err := c.api.ContainerExecCreate(ctx, id, types.ExecConfig{
		Cmd:          []string{"sh", "-c", command},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, normalizeErr(err)
	}

	attach, err := c.api.ContainerExecAttach(ctx, exec.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, normalizeErr(err)
	}

	stream := newStream(closerFunc(func() error {
		attach.Close()
		return nil
	}))
	go func() {
		w := &streamWriter{s: stream}
		_, copyErr := stdcopy.StdCopy(w, w, attach.Reader)
		stream.finish(copyErr)
	}()
	return stream, nil
}

// WriteStdin writes one input line to the container's stdin. Only meaningful
// for containers started with stdin kept open; the engine rejects others.
func (c *Client) WriteStdin(ctx context.Context, id, input string) error {
	attach, err := c.api.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  true,
	})
	if err != nil {
		return normalizeErr(err)
	}
	defer attach.Close()

	if _, err := attach.Conn.Write([]byte(input + "\n")); err != nil {
		return fmt.Errorf("failed to write to container stdin: %w", err)
	}
	return nil
}

func toSnapshot(s types.Container, inspect types.ContainerJSON) models.Container {
	name := ""
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}
	ports := make([]models.ContainerPort, 0, len(s.Ports))
	for _, p := range s.Ports {
		ports = append(ports, models.ContainerPort{
			PrivatePort: p.PrivatePort,
			PublicPort:  p.PublicPort,
			Type:        p.Type,
		})
	}
	snap := models.Container{
		ID:      s.ID,
		Name:    name,
		Image:   s.Image,
		State:   s.State,
		Status:  s.Status,
		Ports:   ports,
		Created: time.Unix(s.Created, 0).UTC().Format(time.RFC3339),
	}
	if inspect.Config != nil {
		snap.TTY = inspect.Config.Tty
		snap.OpenStdin = inspect.Config.OpenStdin
	}
	return snap
}

func normalizeErr(err error) error {
	switch {
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	default:
		return err
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
