// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package params

import (
	"sort"
	"strings"
)

// RenderParameterFile serializes a merged set as the Python parameter file
// the simulation imports: one name=literal assignment per line, no spaces
// around the equals sign. Names listed in order come first, in that order;
// names outside the order are appended sorted so the file is deterministic
// for any input set.
func RenderParameterFile(s Set, order []string) []byte {
	var b strings.Builder
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		v, ok := s[name]
		if !ok {
			continue
		}
		seen[name] = true
		writeAssignment(&b, name, v)
	}
	var extra []string
	for name := range s {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		writeAssignment(&b, name, s[name])
	}
	return []byte(b.String())
}

func writeAssignment(b *strings.Builder, name string, v Value) {
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(v.PythonLiteral())
	b.WriteByte('\n')
}
