// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package params

import (
	"sort"
)

// Set maps parameter names to values. A Set built by Merge always carries a
// concrete value for every name in the default table.
type Set map[string]Value

// Merge overlays the supplied overrides on the default table and returns a
// new Set. Neither input is modified. Override names absent from defaults
// are kept, so experimental parameters pass through to the parameter file.
func Merge(defaults, overrides Set) Set {
	merged := make(Set, len(defaults)+len(overrides))
	for name, v := range defaults {
		merged[name] = v
	}
	for name, v := range overrides {
		merged[name] = v
	}
	return merged
}

// Clone returns a shallow copy of the set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for name, v := range s {
		c[name] = v
	}
	return c
}

// Names returns the parameter names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChangeType classifies how a parameter deviates from its default.
type ChangeType string

const (
	// ChangeToggled marks a boolean flipped away from its default.
	ChangeToggled ChangeType = "toggled"
	// ChangeIncreased marks a numeric value above its default.
	ChangeIncreased ChangeType = "increased"
	// ChangeDecreased marks a numeric value below its default.
	ChangeDecreased ChangeType = "decreased"
	// ChangeModified marks any other deviation, including kind changes.
	ChangeModified ChangeType = "modified"
)

// Change records one parameter's deviation from the default table.
type Change struct {
	Name    string     `json:"-"`
	Current Value      `json:"current_value"`
	Default Value      `json:"default_value"`
	Type    ChangeType `json:"change_type"`
}

// Changes compares a merged set against the default table and returns one
// Change per parameter whose value differs from its default. Parameters
// missing from the default table never appear: with no baseline there is
// nothing to deviate from.
func Changes(merged, defaults Set) map[string]Change {
	changed := make(map[string]Change)
	for name, def := range defaults {
		cur, ok := merged[name]
		if !ok || cur.Equal(def) {
			continue
		}
		changed[name] = Change{
			Name:    name,
			Current: cur,
			Default: def,
			Type:    classify(cur, def),
		}
	}
	return changed
}

// classify is total: every (current, default) pair maps to exactly one type.
func classify(current, def Value) ChangeType {
	if current.Kind() == KindBool && def.Kind() == KindBool {
		return ChangeToggled
	}
	if current.IsNumeric() && def.IsNumeric() {
		if current.AsFloat() > def.AsFloat() {
			return ChangeIncreased
		}
		return ChangeDecreased
	}
	return ChangeModified
}
