package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchens84/APPLE-HEALTH/internal/config"
	ws "github.com/mitchens84/APPLE-HEALTH/internal/websocket"
)

func newHealthHarness(t *testing.T) (*HealthService, *config.Paths) {
	t.Helper()

	base := t.TempDir()
	paths := &config.Paths{
		ExecutableDir: base,
		DataDir:       filepath.Join(base, "data"),
		UploadsDir:    filepath.Join(base, "data", "uploads"),
		ReportsDir:    filepath.Join(base, "data", "reports"),
		LogsDir:       filepath.Join(base, "logs"),
	}
	require.NoError(t, os.MkdirAll(paths.DataDir, 0755))

	sessions := NewSessionManager(filepath.Join(base, "sessions"), testLogger())
	hub := ws.NewHub(config.WebSocketConfig{}, testLogger())

	hs := NewHealthService("1.2.3", "2026-01-01T00:00:00Z", paths, sessions, hub, testLogger())
	return hs, paths
}

func TestHealthService_HealthCheck(t *testing.T) {
	hs, _ := newHealthHarness(t)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthService_ReadinessCheck(t *testing.T) {
	hs, _ := newHealthHarness(t)

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", status.Status)

	for _, name := range []string{"websocket", "sessions", "data"} {
		service, ok := status.Services[name].(ServiceHealth)
		require.True(t, ok, "missing service %s", name)
		assert.Equal(t, "ready", service.Status)
	}
}

func TestHealthService_ReadinessCheckMissingDataDir(t *testing.T) {
	hs, paths := newHealthHarness(t)
	require.NoError(t, os.RemoveAll(paths.DataDir))

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)

	data := status.Services["data"].(ServiceHealth)
	assert.Equal(t, "not_ready", data.Status)
}

func TestHealthService_LivenessCheck(t *testing.T) {
	hs, _ := newHealthHarness(t)

	status := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	assert.NotEmpty(t, status.Runtime["go_version"])
}

func TestHealthService_Version(t *testing.T) {
	hs, _ := newHealthHarness(t)

	info := hs.Version()
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "2026-01-01T00:00:00Z", info["build_time"])
	assert.NotEmpty(t, info["go_version"])
}

func TestHealthService_SystemStats(t *testing.T) {
	hs, paths := newHealthHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "a.csv"), []byte("x,y\n"), 0644))

	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, int64(4), stats.TotalSizeBytes)
	assert.Equal(t, 0, stats.WebSocketClients)
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.NotEmpty(t, stats.GoVersion)
}
