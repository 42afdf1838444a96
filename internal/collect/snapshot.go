// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package collect

import (
	"path/filepath"
	"sort"

	"github.com/bitfield/script"
)

// Snapshot lists the output-like files under dir, recursively, as paths
// relative to dir. Taken before launch and again after the process ends,
// two snapshots diff into the run's "files generated" record.
func Snapshot(dir string) ([]string, error) {
	lines, err := script.FindFiles(dir).Slice()
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range lines {
		if !IsOutputLike(filepath.Base(line)) {
			continue
		}
		rel, err := filepath.Rel(dir, line)
		if err != nil {
			rel = line
		}
		files = append(files, rel)
	}
	sort.Strings(files)
	return files, nil
}

// DiffSnapshots returns the entries present in after but not in before,
// sorted. This is the set of files the simulation produced.
func DiffSnapshots(before, after []string) []string {
	prior := make(map[string]bool, len(before))
	for _, f := range before {
		prior[f] = true
	}
	var added []string
	for _, f := range after {
		if !prior[f] {
			added = append(added, f)
		}
	}
	sort.Strings(added)
	return added
}
