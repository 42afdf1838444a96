// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package collect

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLogger captures log output for test assertions.
type MockLogger struct {
	mu       sync.Mutex
	messages []string
	warnings []string
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, format)
}

func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, format)
}

func (m *MockLogger) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warnings...)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectCopiesPriorityFiles(t *testing.T) {
	workspace := t.TempDir()
	output := t.TempDir()
	writeFile(t, workspace, "cell_count_51.csv", "Time,Basal\n0,100\n")
	writeFile(t, workspace, "thickness_rep_51.parquet", "parquet-bytes")
	writeFile(t, workspace, "pressure_tracker_1.csv", "Time,Pressure\n0,1\n")

	c := NewCollector(&MockLogger{})
	collected, err := c.Collect(workspace, output, 50, 1)

	require.NoError(t, err)
	assert.Contains(t, collected, "cell_count_51.csv")
	assert.Contains(t, collected, "thickness_rep_51.parquet")
	assert.Contains(t, collected, "pressure_tracker_1.csv")

	data, err := os.ReadFile(filepath.Join(output, "cell_count_51.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Time,Basal\n0,100\n", string(data))

	thickness, err := os.ReadFile(filepath.Join(output, "thickness_rep_51.parquet"))
	require.NoError(t, err)
	assert.Equal(t, "parquet-bytes", string(thickness))
}

func TestCollectEachFileOnce(t *testing.T) {
	workspace := t.TempDir()
	output := t.TempDir()
	// Matches both the exact pattern and the wildcard family.
	writeFile(t, workspace, "cell_count_7501.csv", "Time,Basal\n0,100\n")

	c := NewCollector(&MockLogger{})
	collected, err := c.Collect(workspace, output, 7500, 1)

	require.NoError(t, err)
	assert.Equal(t, []string{"cell_count_7501.csv"}, collected)
}

func TestCollectRecursiveFallback(t *testing.T) {
	workspace := t.TempDir()
	output := t.TempDir()
	writeFile(t, workspace, filepath.Join("Output", "cell_count_7501.csv"), "Time,Basal\n0,100\n")

	c := NewCollector(&MockLogger{})
	collected, err := c.Collect(workspace, output, 7500, 1)

	require.NoError(t, err)
	assert.Contains(t, collected, "cell_count_7501.csv")
	assert.FileExists(t, filepath.Join(output, "cell_count_7501.csv"))
}

func TestCollectFirstWriterWins(t *testing.T) {
	workspace := t.TempDir()
	output := t.TempDir()
	writeFile(t, workspace, filepath.Join("a", "egf_seen_1.csv"), "first\n")
	writeFile(t, workspace, filepath.Join("b", "egf_seen_1.csv"), "second\n")

	log := &MockLogger{}
	c := NewCollector(log)
	collected, err := c.Collect(workspace, output, 7500, 1)

	require.NoError(t, err)
	count := 0
	for _, name := range collected {
		if name == "egf_seen_1.csv" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	data, err := os.ReadFile(filepath.Join(output, "egf_seen_1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(data))

	require.Len(t, log.Warnings(), 1)
	assert.Contains(t, log.Warnings()[0], "already exists")
}

func TestCollectCatchAllPass(t *testing.T) {
	workspace := t.TempDir()
	output := t.TempDir()
	writeFile(t, workspace, "lattice_0100.png", "png-bytes")
	writeFile(t, workspace, "snapshot_0001.vtk", "vtk-bytes")
	writeFile(t, workspace, "notes.txt", "not output")

	c := NewCollector(&MockLogger{})
	collected, err := c.Collect(workspace, output, 7500, 1)

	require.NoError(t, err)
	assert.Contains(t, collected, "lattice_0100.png")
	assert.Contains(t, collected, "snapshot_0001.vtk")
	assert.NotContains(t, collected, "notes.txt")
	assert.NoFileExists(t, filepath.Join(output, "notes.txt"))
}

func TestCollectMissingWorkspace(t *testing.T) {
	c := NewCollector(&MockLogger{})
	_, err := c.Collect(filepath.Join(t.TempDir(), "gone"), t.TempDir(), 7500, 4)

	var warning *CollectionWarning
	require.ErrorAs(t, err, &warning)
	assert.Equal(t, 4, warning.ReplicateID)
}

func TestCollectPreservesModTime(t *testing.T) {
	workspace := t.TempDir()
	output := t.TempDir()
	src := writeFile(t, workspace, "cell_count_7501.csv", "Time,Basal\n0,100\n")

	stamp := time.Date(2025, 1, 14, 10, 30, 45, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, stamp, stamp))

	c := NewCollector(&MockLogger{})
	_, err := c.Collect(workspace, output, 7500, 1)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(output, "cell_count_7501.csv"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(stamp))
}

func TestIsOutputLike(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"cell_count_7501.csv", true},
		{"thickness_rep_3.parquet", true},
		{"lattice_0100.png", true},
		{"snapshot_0001.vtk", true},
		{"pressure_tracker_2.csv", true},
		{"Parameters.py", false},
		{"notes.txt", false},
		{"vCornea_v2.cc3d", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOutputLike(tt.name))
		})
	}
}

func TestSnapshotListsOutputLikeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cell_count_1.csv", "a")
	writeFile(t, dir, filepath.Join("sub", "frame.png"), "b")
	writeFile(t, dir, "notes.txt", "c")

	files, err := Snapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"cell_count_1.csv", filepath.Join("sub", "frame.png")}, files)
}

func TestDiffSnapshots(t *testing.T) {
	before := []string{"cell_count_1.csv"}
	after := []string{"cell_count_1.csv", "egf_seen_1.csv", "sls_seen_1.csv"}

	assert.Equal(t, []string{"egf_seen_1.csv", "sls_seen_1.csv"}, DiffSnapshots(before, after))
	assert.Empty(t, DiffSnapshots(after, after))
}

func TestSnapshotDiffFindsGeneratedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "input.csv", "seed")

	before, err := Snapshot(dir)
	require.NoError(t, err)

	writeFile(t, dir, "cell_count_7501.csv", "Time,Basal\n0,100\n")

	after, err := Snapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"cell_count_7501.csv"}, DiffSnapshots(before, after))
}
