package exporter

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// archivePatterns lists the artifact types bundled into a session archive.
var archivePatterns = []string{"*.csv", "*.xlsx"}

// BuildArchive writes a zip archive of the artifacts in dir to w. Entries
// are stored flat under their base names, in sorted order, so the same
// output directory always produces the same archive layout.
func BuildArchive(w io.Writer, dir string) error {
	var files []string
	for _, pattern := range archivePatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("failed to list artifacts: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	zw := zip.NewWriter(w)
	for _, path := range files {
		if err := addArchiveFile(zw, path); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addArchiveFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to add archive entry: %w", err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("failed to write archive entry: %w", err)
	}
	return nil
}
