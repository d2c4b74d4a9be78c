package docker

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dockhand/dockhand-backend/internal/pkg/metrics"
)

// fakeAPI stubs the handful of engine calls the stream paths use. The
// embedded interface panics on anything unstubbed, which is what we want.
type fakeAPI struct {
	client.APIClient
	tty    bool
	logs   io.ReadCloser
	attach types.HijackedResponse
}

func (f *fakeAPI) ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error) {
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{ID: id},
		Config:            &container.Config{Tty: f.tty},
	}, nil
}

func (f *fakeAPI) ContainerLogs(ctx context.Context, id string, _ container.LogsOptions) (io.ReadCloser, error) {
	return f.logs, nil
}

func (f *fakeAPI) ContainerExecCreate(ctx context.Context, id string, _ types.ExecConfig) (types.IDResponse, error) {
	return types.IDResponse{ID: "exec-1"}, nil
}

func (f *fakeAPI) ContainerExecAttach(ctx context.Context, execID string, _ types.ExecStartCheck) (types.HijackedResponse, error) {
	return f.attach, nil
}

func TestLogStreamGaugeCountsOnlyLogTails(t *testing.T) {
	base := testutil.ToFloat64(metrics.LogStreamsActive)

	pr, pw := io.Pipe()
	var execOut bytes.Buffer
	if _, err := stdcopy.NewStdWriter(&execOut, stdcopy.Stdout).Write([]byte("done")); err != nil {
		t.Fatalf("frame exec output: %v", err)
	}
	srv, cli := net.Pipe()
	defer srv.Close()

	c := NewClientWithAPI(&fakeAPI{
		tty:    true,
		logs:   pr,
		attach: types.HijackedResponse{Conn: cli, Reader: bufio.NewReader(&execOut)},
	})

	logStream, err := c.TailLogs(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("TailLogs: %v", err)
	}
	if got := testutil.ToFloat64(metrics.LogStreamsActive); got != base+1 {
		t.Errorf("gauge after TailLogs = %v, want %v", got, base+1)
	}

	// Exec output is command-scoped, not a log tail: the gauge must not move.
	execStream, err := c.Exec(context.Background(), "c-1", "true")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if got := testutil.ToFloat64(metrics.LogStreamsActive); got != base+1 {
		t.Errorf("gauge after Exec = %v, want %v", got, base+1)
	}

	if got := collectChunks(t, execStream); len(got) != 1 || got[0] != "done" {
		t.Errorf("exec chunks = %v, want [done]", got)
	}
	_ = execStream.Close()
	_ = pw.Close()
	collectChunks(t, logStream)
	_ = logStream.Close()

	if got := testutil.ToFloat64(metrics.LogStreamsActive); got != base {
		t.Errorf("gauge after close = %v, want %v", got, base)
	}
}
