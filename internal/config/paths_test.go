package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaths(t *testing.T) {
	paths, err := GetPaths()
	require.NoError(t, err)

	assert.NotEmpty(t, paths.ExecutableDir)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(paths.DataDir, "uploads"), paths.UploadsDir)
	assert.Equal(t, filepath.Join(paths.DataDir, "reports"), paths.ReportsDir)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "logs"), paths.LogsDir)
}

func TestResolvePaths(t *testing.T) {
	t.Run("absolute override moves the data tree", func(t *testing.T) {
		paths, err := ResolvePaths(PathsConfig{DataDir: "/srv/health"})
		require.NoError(t, err)

		assert.Equal(t, "/srv/health", paths.DataDir)
		assert.Equal(t, filepath.Join("/srv/health", "uploads"), paths.UploadsDir)
		assert.Equal(t, filepath.Join("/srv/health", "reports"), paths.ReportsDir)
	})

	t.Run("relative override anchors at the executable dir", func(t *testing.T) {
		paths, err := ResolvePaths(PathsConfig{ExecutableDir: "/opt/app", DataDir: "data", LogsDir: "logs"})
		require.NoError(t, err)

		assert.Equal(t, filepath.Join("/opt/app", "data"), paths.DataDir)
		assert.Equal(t, filepath.Join("/opt/app", "data", "uploads"), paths.UploadsDir)
		assert.Equal(t, filepath.Join("/opt/app", "logs"), paths.LogsDir)
	})

	t.Run("empty config keeps executable-relative defaults", func(t *testing.T) {
		fromGet, err := GetPaths()
		require.NoError(t, err)

		resolved, err := ResolvePaths(PathsConfig{})
		require.NoError(t, err)
		assert.Equal(t, fromGet, resolved)
	})
}

func TestPaths_EnsureDirectories(t *testing.T) {
	base := t.TempDir()
	paths := &Paths{
		ExecutableDir: base,
		DataDir:       filepath.Join(base, "data"),
		UploadsDir:    filepath.Join(base, "data", "uploads"),
		ReportsDir:    filepath.Join(base, "data", "reports"),
		LogsDir:       filepath.Join(base, "logs"),
	}

	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.DataDir, paths.UploadsDir, paths.ReportsDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent on existing directories
	require.NoError(t, paths.EnsureDirectories())
}

func TestPaths_Getters(t *testing.T) {
	paths := &Paths{
		UploadsDir: "/srv/data/uploads",
		ReportsDir: "/srv/data/reports",
		LogsDir:    "/srv/logs",
	}

	assert.Equal(t, filepath.Join("/srv/data/reports", "_APPLE_HEALTH_SCHEDULE.csv"),
		paths.GetReportPath("_APPLE_HEALTH_SCHEDULE.csv"))
	assert.Equal(t, filepath.Join("/srv/data/uploads", "export.xml"),
		paths.GetUploadPath("export.xml"))
	assert.Equal(t, filepath.Join("/srv/logs", "web.log"), paths.GetLogPath("web.log"))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(filepath.Join(dir, "absent.txt")))
}
