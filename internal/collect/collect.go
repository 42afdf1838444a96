// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package collect harvests simulation outputs from a replicate's workspace
// into its permanent output directory. The simulation names its files by
// convention, so collection is driven by glob patterns parameterized with
// the run's duration; a catch-all pass sweeps up anything output-like the
// patterns missed. Collection never deletes sources and never overwrites a
// destination.
package collect

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Logger is the logging surface the collector needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// CollectionWarning reports a problem while harvesting artifacts. It never
// flips a replicate's success: the process exit code is authoritative, and
// a collection gap only means fewer files in the output directory.
type CollectionWarning struct {
	ReplicateID int
	Err         error
}

// Error implements the error interface.
func (e *CollectionWarning) Error() string {
	return fmt.Sprintf("replicate %d collection: %v", e.ReplicateID, e.Err)
}

// Unwrap allows error wrapping.
func (e *CollectionWarning) Unwrap() error {
	return e.Err
}

// Extensions and name prefixes that mark a file as simulation output.
var (
	outputExtensions = map[string]bool{
		".csv":     true,
		".parquet": true,
		".png":     true,
	}
	outputPrefixes = []string{
		"cell_count",
		"thickness_rep",
		"pressure_tracker",
		"egf_seen",
		"sls_seen",
		"snapshot",
	}
)

// Collector copies simulation outputs out of workspaces.
type Collector struct {
	log Logger
}

// NewCollector returns a collector.
func NewCollector(log Logger) *Collector {
	return &Collector{log: log}
}

// priorityPatterns returns the glob patterns in collection order. The
// exact names expected for this run's duration come first, the wildcard
// families after.
func priorityPatterns(simTime int64) []string {
	d := simTime + 1
	return []string{
		fmt.Sprintf("cell_count_%d.csv", d),
		fmt.Sprintf("thickness_rep_%d.parquet", d),
		"cell_count_*.csv",
		"thickness_rep_*.parquet",
		"pressure_tracker_*.csv",
		"egf_seen_*.csv",
		"sls_seen_*.csv",
	}
}

// Collect scans the workspace for this run's outputs and copies them into
// outputDir. It returns the collected file names in collection order. A
// returned error is always a CollectionWarning: callers log it and move
// on, the replicate's outcome is not affected.
func (c *Collector) Collect(workspaceDir, outputDir string, simTime int64, replicateID int) ([]string, error) {
	if _, err := os.Stat(workspaceDir); err != nil {
		return nil, &CollectionWarning{ReplicateID: replicateID, Err: fmt.Errorf("workspace unreadable: %w", err)}
	}

	var collected []string
	seen := make(map[string]bool)

	for _, pattern := range priorityPatterns(simTime) {
		matches, err := filepath.Glob(filepath.Join(workspaceDir, pattern))
		if err != nil {
			continue
		}
		if len(matches) == 0 {
			matches = c.findRecursive(workspaceDir, pattern)
		}
		for _, match := range matches {
			collected = c.copyMatch(match, outputDir, seen, collected)
		}
	}

	// Catch-all: anything output-like the patterns did not cover.
	_ = filepath.WalkDir(workspaceDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !IsOutputLike(d.Name()) {
			return nil
		}
		collected = c.copyMatch(path, outputDir, seen, collected)
		return nil
	})

	return collected, nil
}

// IsOutputLike reports whether a file name looks like simulation output,
// by extension or by known name prefix.
func IsOutputLike(name string) bool {
	if outputExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}
	for _, prefix := range outputPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// findRecursive is the fallback when a pattern has no match at the
// workspace root: the same pattern applied to base names anywhere in the
// tree.
func (c *Collector) findRecursive(workspaceDir, pattern string) []string {
	var matches []string
	_ = filepath.WalkDir(workspaceDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			matches = append(matches, path)
		}
		return nil
	})
	return matches
}

// copyMatch applies the dedupe and first-writer-wins rules, then copies.
func (c *Collector) copyMatch(src, outputDir string, seen map[string]bool, collected []string) []string {
	canonical := canonicalPath(src)
	if seen[canonical] {
		return collected
	}
	seen[canonical] = true

	name := filepath.Base(src)
	dst := filepath.Join(outputDir, name)
	if _, err := os.Stat(dst); err == nil {
		c.log.Warnf("skipping %s: destination %s already exists", src, dst)
		return collected
	}

	if err := copyPreserving(src, dst); err != nil {
		c.log.Warnf("copy %s: %v", src, err)
		return collected
	}
	c.log.Debugf("collected %s", name)
	return append(collected, name)
}

func canonicalPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// copyPreserving copies a file keeping its mode and modification time.
func copyPreserving(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
