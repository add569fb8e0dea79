package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angch/vastlogmon/config"
	"github.com/angch/vastlogmon/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, socketPath string, cfg *config.Config, statusFunc func() monitor.Status, reloadFunc func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = StartServer(ctx, socketPath, cfg, statusFunc, reloadFunc)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socketPath); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("Timeout waiting for socket creation")
}

func TestStatusRedaction(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, SocketName(os.Getpid()))

	secretDSN := "https://secret_key@sentry.io/123"
	cfg := config.Default()
	cfg.API.APIKey = "vast-secret"
	cfg.Sentry.DSN = secretDSN
	cfg.Sentry.Release = "v0.3.0"
	cfg.Stream.Instance = "123456"

	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	statusFunc := func() monitor.Status {
		return monitor.Status{
			Instance:     "123456",
			Source:       "vast",
			State:        monitor.StatePolling,
			StartedAt:    started,
			LinesEmitted: 42,
		}
	}
	startTestServer(t, socketPath, cfg, statusFunc, nil)

	status, err := queryStatus(socketPath)
	require.NoError(t, err)

	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, "v0.3.0", status.Version)
	assert.NotZero(t, status.MemoryAlloc)
	assert.Equal(t, "***", status.Config.Sentry.DSN, "DSN must be redacted")
	assert.Equal(t, "***", status.Config.API.APIKey, "API key must be redacted")
	assert.Equal(t, "123456", status.Config.Stream.Instance)

	assert.Equal(t, monitor.StatePolling, status.Stream.State)
	assert.Equal(t, 42, status.Stream.LinesEmitted)
	assert.True(t, started.Equal(status.Stream.StartedAt))

	// The live config is untouched.
	assert.Equal(t, secretDSN, cfg.Sentry.DSN)
}

func TestListInstances(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.Default()

	startTestServer(t, filepath.Join(tmpDir, SocketName(os.Getpid())), cfg, nil, nil)

	// A stale socket file with no listener is skipped.
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, SocketName(999999)), nil, 0600))
	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "other.sock"), nil, 0600))

	instances, err := ListInstances(tmpDir)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, os.Getpid(), instances[0].PID)
	assert.Equal(t, monitor.State(""), instances[0].Stream.State)
}

func TestRequestReload(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.Default()

	var calls atomic.Int32
	var fail atomic.Bool
	reload := func() error {
		calls.Add(1)
		if fail.Load() {
			return errors.New("instance id is required")
		}
		return nil
	}
	socketPath := filepath.Join(tmpDir, SocketName(os.Getpid()))
	startTestServer(t, socketPath, cfg, nil, reload)

	require.NoError(t, RequestReload(socketPath))
	assert.Equal(t, int32(1), calls.Load())

	fail.Store(true)
	err := RequestReload(socketPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance id is required")
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequestReloadUnsupported(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName(os.Getpid()))
	startTestServer(t, socketPath, config.Default(), nil, nil)

	err := RequestReload(socketPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "501")
}

func TestSocketName(t *testing.T) {
	assert.Equal(t, "vastlogmon.1234.sock", SocketName(1234))
	matched, err := filepath.Match("vastlogmon.*.sock", SocketName(1))
	require.NoError(t, err)
	assert.True(t, matched)
}
