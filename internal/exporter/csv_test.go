package exporter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchens84/APPLE-HEALTH/internal/config"
)

const utf8BOM = "\xef\xbb\xbf"

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	base := t.TempDir()
	return &config.Paths{
		ExecutableDir: base,
		DataDir:       filepath.Join(base, "data"),
		UploadsDir:    filepath.Join(base, "data", "uploads"),
		ReportsDir:    filepath.Join(base, "data", "reports"),
		LogsDir:       filepath.Join(base, "logs"),
	}
}

func TestWriteCSV_CreatesFileWithBOM(t *testing.T) {
	paths := testPaths(t)
	w := NewCSVWriter(paths)

	err := w.WriteCSV("nested/out.csv", WriteOptions{
		Headers:   []string{"a", "b"},
		Records:   [][]string{{"1", "x"}, {"2", "y"}},
		BOMPrefix: true,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(paths.GetReportPath("nested/out.csv"))
	require.NoError(t, err)
	content := string(data)
	require.True(t, strings.HasPrefix(content, utf8BOM))
	assert.Equal(t, "a,b\n1,x\n2,y\n", strings.TrimPrefix(content, utf8BOM))
}

func TestWriteCSV_Append(t *testing.T) {
	paths := testPaths(t)
	w := NewCSVWriter(paths)

	require.NoError(t, w.WriteCSV("out.csv", WriteOptions{
		Headers:   []string{"a"},
		Records:   [][]string{{"1"}},
		BOMPrefix: true,
	}))
	require.NoError(t, w.WriteCSV("out.csv", WriteOptions{
		Records: [][]string{{"2"}},
		Append:  true,
	}))

	data, err := os.ReadFile(paths.GetReportPath("out.csv"))
	require.NoError(t, err)
	content := strings.TrimPrefix(string(data), utf8BOM)
	assert.Equal(t, "a\n1\n2\n", content)
	// Appending must not add a second BOM or header.
	assert.Equal(t, 1, strings.Count(string(data), utf8BOM))
	assert.Equal(t, 1, strings.Count(content, "a\n"))
}

func TestStreamWriter(t *testing.T) {
	paths := testPaths(t)
	w := NewCSVWriter(paths)

	target := filepath.Join(t.TempDir(), "stream.csv")
	stream, err := w.CreateStreamWriter(target, []string{"value", "unit"})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"312", "count"}))
	require.NoError(t, stream.WriteRecord([]string{"", "count"}))
	require.NoError(t, stream.Close())

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	content := strings.TrimPrefix(string(data), utf8BOM)
	assert.Equal(t, "value,unit\n312,count\n,count\n", content)
}

func TestResolvePath(t *testing.T) {
	paths := testPaths(t)
	w := NewCSVWriter(paths)

	abs := filepath.Join(t.TempDir(), "x.csv")
	assert.Equal(t, abs, w.resolvePath(abs))
	assert.Equal(t, paths.GetUploadPath("sess/x.csv"), w.resolvePath("uploads/sess/x.csv"))
	assert.Equal(t, paths.GetReportPath("x.csv"), w.resolvePath("x.csv"))
}
