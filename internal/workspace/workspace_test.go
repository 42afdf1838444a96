// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcornea-orchestrator/internal/params"
)

// MockLogger records log lines for assertion.
type MockLogger struct {
	mu     sync.Mutex
	debugs []string
	warns  []string
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugs = append(m.debugs, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, fmt.Sprintf(format, args...))
}

const legacyScript = "import os\n\nOUTPUT_DIR = os.path.join(os.getcwd(), 'Output')\n\nif __name__ == '__main__':\n    run(OUTPUT_DIR)\n"

func writeTemplate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"vCornea_v2.cc3d":                    "<Simulation version=\"4.3.0\"/>\n",
		"Simulation/vCornea_v2.py":           "from cc3d import CompuCellSetup\n",
		"Simulation/Parameters.py":           "SimTime=7500\n",
		"Batch_Run_vCornea_Paper_version.py": legacyScript,
		"Simulation/steppables.py":           "class Steppable: pass\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	if opts.WorkRoot == "" {
		opts.WorkRoot = t.TempDir()
	}
	m, err := NewManager(writeTemplate(t), opts, &MockLogger{})
	require.NoError(t, err)
	return m
}

func TestNewManager_ValidTemplate(t *testing.T) {
	m, err := NewManager(writeTemplate(t), Options{}, &MockLogger{})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewManager_MissingMarkers(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "vCornea_v2.cc3d"), []byte("x"), 0644))

	_, err := NewManager(root, Options{}, &MockLogger{})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "required vCornea file not found")
	assert.Contains(t, cfgErr.Missing, filepath.Join("Simulation", "vCornea_v2.py"))
	assert.NotContains(t, cfgErr.Missing, "vCornea_v2.cc3d")
}

func TestPrepare_CopiesTemplateAndWritesParameters(t *testing.T) {
	m := newTestManager(t, Options{})

	set := params.Set{
		"SLS_Concentration": params.Float(1500.0),
		"SimTime":           params.Int(100),
		"IsInjury":          params.Bool(true),
	}
	ws, err := m.Prepare(1, t.TempDir(), set)
	require.NoError(t, err)
	defer ws.Teardown()

	assert.FileExists(t, ws.ProjectFile)
	assert.FileExists(t, ws.BatchScript)
	assert.FileExists(t, filepath.Join(ws.Root, "Simulation", "steppables.py"))

	content, err := os.ReadFile(ws.ParametersFile)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "SLS_Concentration=1500.0\n")
	assert.Contains(t, text, "SimTime=100\n")
	assert.Contains(t, text, "IsInjury=True\n")

	// Catalog order puts the chemical section before SimTime.
	assert.Less(t, strings.Index(text, "SLS_Concentration"), strings.Index(text, "SimTime="))
}

func TestPrepare_WorkspacesAreIsolated(t *testing.T) {
	m := newTestManager(t, Options{})

	a, err := m.Prepare(1, t.TempDir(), params.Set{"SimTime": params.Int(10)})
	require.NoError(t, err)
	defer a.Teardown()

	b, err := m.Prepare(2, t.TempDir(), params.Set{"SimTime": params.Int(20)})
	require.NoError(t, err)
	defer b.Teardown()

	assert.NotEqual(t, a.Root, b.Root)

	aContent, err := os.ReadFile(a.ParametersFile)
	require.NoError(t, err)
	bContent, err := os.ReadFile(b.ParametersFile)
	require.NoError(t, err)
	assert.Contains(t, string(aContent), "SimTime=10")
	assert.Contains(t, string(bContent), "SimTime=20")
}

func TestPrepare_LegacyRedirectPatchesCopyOnly(t *testing.T) {
	template := writeTemplate(t)
	m, err := NewManager(template, Options{WorkRoot: t.TempDir(), LegacyScriptRedirect: true}, &MockLogger{})
	require.NoError(t, err)

	outputDir := t.TempDir()
	ws, err := m.Prepare(1, outputDir, params.Set{"SimTime": params.Int(10)})
	require.NoError(t, err)
	defer ws.Teardown()

	patched, err := os.ReadFile(ws.BatchScript)
	require.NoError(t, err)
	assert.Contains(t, string(patched), fmt.Sprintf("OUTPUT_DIR = r'%s'", outputDir))
	assert.NotContains(t, string(patched), "os.path.join(os.getcwd(), 'Output')")

	// The template itself must stay untouched.
	original, err := os.ReadFile(filepath.Join(template, DefaultBatchScript))
	require.NoError(t, err)
	assert.Equal(t, legacyScript, string(original))
}

func TestPrepare_SetupErrorOnBadWorkRoot(t *testing.T) {
	template := writeTemplate(t)
	m, err := NewManager(template, Options{WorkRoot: filepath.Join(t.TempDir(), "missing", "deeper")}, &MockLogger{})
	require.NoError(t, err)

	_, err = m.Prepare(3, t.TempDir(), params.Set{})
	require.Error(t, err)

	var setupErr *SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, 3, setupErr.ReplicateID)
	assert.Equal(t, "create", setupErr.Stage)
}

func TestTeardown_Idempotent(t *testing.T) {
	m := newTestManager(t, Options{})

	ws, err := m.Prepare(1, t.TempDir(), params.Set{"SimTime": params.Int(10)})
	require.NoError(t, err)

	require.NoError(t, ws.Teardown())
	assert.NoDirExists(t, ws.Root)
	assert.NoError(t, ws.Teardown(), "second teardown must not error")
}

func TestRedirectScriptOutput(t *testing.T) {
	tests := []struct {
		name        string
		script      string
		wantPatched bool
		wantContain string
	}{
		{
			name:        "exact assignment",
			script:      legacyScript,
			wantPatched: true,
			wantContain: "OUTPUT_DIR = r'",
		},
		{
			name:        "loose assignment via pattern",
			script:      "import os\n  OUTPUT_DIR   = some_helper()\nrun()\n",
			wantPatched: true,
			wantContain: "  OUTPUT_DIR = r'",
		},
		{
			name:        "no output assignment",
			script:      "import os\nrun()\n",
			wantPatched: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "batch.py")
			require.NoError(t, os.WriteFile(path, []byte(tt.script), 0644))

			patched, err := RedirectScriptOutput(path, "/data/out/replicate_1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPatched, patched)

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			if tt.wantPatched {
				assert.Contains(t, string(content), tt.wantContain)
			} else {
				assert.Equal(t, tt.script, string(content), "unmatched script stays as copied")
			}
		})
	}
}
