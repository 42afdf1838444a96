// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package workspace builds the isolated filesystem copies the simulation
// runs in. Every replicate gets its own disposable copy of the CC3D project
// template with a generated parameter file, so concurrent replicates never
// share mutable state.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"vcornea-orchestrator/internal/catalog"
	"vcornea-orchestrator/internal/params"
)

// DefaultBatchScript is the simulation's batch entry point inside the
// project template.
const DefaultBatchScript = "Batch_Run_vCornea_Paper_version.py"

// ParametersRelPath is where the generated parameter file lands inside a
// workspace, overwriting the template's own copy.
const ParametersRelPath = "Simulation/Parameters.py"

// Logger is the logging surface the manager needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Options adjusts manager behavior.
type Options struct {
	// BatchScript overrides DefaultBatchScript.
	BatchScript string
	// WorkRoot is where workspaces are created. Empty means os.TempDir().
	WorkRoot string
	// LegacyScriptRedirect enables the v1 output contract: the batch
	// script's output assignment is rewritten in the copied tree. v2
	// scripts take the output directory as a flag instead.
	LegacyScriptRedirect bool
}

// Manager validates the simulation template once and stamps out workspaces
// from it.
type Manager struct {
	projectRoot string
	batchScript string
	workRoot    string
	legacy      bool
	log         Logger
}

// Workspace is one replicate's isolated copy of the project template.
type Workspace struct {
	Root        string
	ReplicateID int
	// ProjectFile is the .cc3d entry the simulation loads.
	ProjectFile string
	// BatchScript is the copied batch entry point.
	BatchScript string
	// ParametersFile is the generated parameter file.
	ParametersFile string
}

// NewManager checks the template's marker files and returns a manager. A
// template missing markers yields a ConfigurationError immediately, not at
// first Prepare, so a bad path fails fast.
func NewManager(projectRoot string, opts Options, log Logger) (*Manager, error) {
	batchScript := opts.BatchScript
	if batchScript == "" {
		batchScript = DefaultBatchScript
	}
	workRoot := opts.WorkRoot
	if workRoot == "" {
		workRoot = os.TempDir()
	}

	markers := []string{
		"vCornea_v2.cc3d",
		filepath.Join("Simulation", "vCornea_v2.py"),
		ParametersRelPath,
		batchScript,
	}
	var missing []string
	for _, rel := range markers {
		if _, err := os.Stat(filepath.Join(projectRoot, rel)); err != nil {
			missing = append(missing, rel)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Path: projectRoot, Missing: missing}
	}

	return &Manager{
		projectRoot: projectRoot,
		batchScript: batchScript,
		workRoot:    workRoot,
		legacy:      opts.LegacyScriptRedirect,
		log:         log,
	}, nil
}

// Prepare builds the workspace for one replicate: a full copy of the
// template, the generated parameter file, and, for legacy scripts, the
// output redirection patch pointing at outputDir.
func (m *Manager) Prepare(replicateID int, outputDir string, set params.Set) (*Workspace, error) {
	root := filepath.Join(m.workRoot, fmt.Sprintf("vcornea_rep%d_%s", replicateID, uuid.NewString()))
	if err := os.Mkdir(root, 0755); err != nil {
		return nil, &SetupError{ReplicateID: replicateID, Stage: "create", Err: err}
	}

	ws := &Workspace{
		Root:           root,
		ReplicateID:    replicateID,
		ProjectFile:    filepath.Join(root, "vCornea_v2.cc3d"),
		BatchScript:    filepath.Join(root, m.batchScript),
		ParametersFile: filepath.Join(root, filepath.FromSlash(ParametersRelPath)),
	}

	if err := copyTree(m.projectRoot, root, m.log); err != nil {
		ws.discard(m.log)
		return nil, &SetupError{ReplicateID: replicateID, Stage: "copy", Err: err}
	}

	content := params.RenderParameterFile(set, catalog.Order())
	if err := os.WriteFile(ws.ParametersFile, content, 0644); err != nil {
		ws.discard(m.log)
		return nil, &SetupError{ReplicateID: replicateID, Stage: "parameters", Err: err}
	}

	if m.legacy {
		patched, err := RedirectScriptOutput(ws.BatchScript, outputDir)
		if err != nil {
			ws.discard(m.log)
			return nil, &SetupError{ReplicateID: replicateID, Stage: "redirect", Err: err}
		}
		if !patched {
			m.log.Debugf("no output assignment found in %s, relying on post-run collection", ws.BatchScript)
		}
	}

	m.log.Debugf("prepared workspace for replicate %d at %s", replicateID, root)
	return ws, nil
}

// Teardown removes the workspace tree. It is safe to call more than once;
// removing an already-removed workspace is a no-op.
func (w *Workspace) Teardown() error {
	if w == nil || w.Root == "" {
		return nil
	}
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.Root, err)
	}
	return nil
}

func (w *Workspace) discard(log Logger) {
	if err := w.Teardown(); err != nil && log != nil {
		log.Warnf("discard partial workspace: %v", err)
	}
}

// copyTree copies the template recursively, preserving file modes. Entries
// that are neither directories nor regular files are skipped.
func copyTree(src, dst string, log Logger) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			if log != nil {
				log.Debugf("skipping non-regular template entry %s", rel)
			}
			return nil
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
