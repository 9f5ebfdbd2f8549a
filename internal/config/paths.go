package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the application paths. Every path is resolved relative
// to the executable directory, never the current working directory, so the
// binaries behave the same wherever they are launched from.
type Paths struct {
	ExecutableDir string
	DataDir       string
	UploadsDir    string
	ReportsDir    string
	LogsDir       string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	exeDir := filepath.Dir(exe)

	// Directory structure:
	//   data/
	//     uploads/   (export files received by the web service)
	//     reports/   (generated dataset CSVs and the schedule report)
	//   logs/
	dataDir := filepath.Join(exeDir, "data")

	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		UploadsDir:    filepath.Join(dataDir, "uploads"),
		ReportsDir:    filepath.Join(dataDir, "reports"),
		LogsDir:       filepath.Join(exeDir, "logs"),
	}, nil
}

// ResolvePaths returns the application paths with any configured overrides
// applied. Relative overrides are anchored at the executable directory, so
// the default "data" and "logs" resolve the same way GetPaths does.
// Overriding DataDir moves the uploads and reports trees with it.
func ResolvePaths(pc PathsConfig) (*Paths, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}

	if pc.ExecutableDir != "" {
		paths.ExecutableDir = pc.ExecutableDir
	}
	if pc.DataDir != "" {
		dataDir := pc.DataDir
		if !filepath.IsAbs(dataDir) {
			dataDir = filepath.Join(paths.ExecutableDir, dataDir)
		}
		paths.DataDir = dataDir
		paths.UploadsDir = filepath.Join(dataDir, "uploads")
		paths.ReportsDir = filepath.Join(dataDir, "reports")
	}
	if pc.LogsDir != "" {
		logsDir := pc.LogsDir
		if !filepath.IsAbs(logsDir) {
			logsDir = filepath.Join(paths.ExecutableDir, logsDir)
		}
		paths.LogsDir = logsDir
	}

	return paths, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.UploadsDir,
		p.ReportsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}

	return nil
}

// GetReportPath returns the path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetUploadPath returns the path for an uploaded file
func (p *Paths) GetUploadPath(filename string) string {
	return filepath.Join(p.UploadsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
