// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package runname derives human-readable run names from parameter changes.
// A name like SLS1500_InjT10_chemical_20250114_103045 tells a reader at a
// glance which knobs a run turned, without opening its metadata.
package runname

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"vcornea-orchestrator/internal/params"
)

// DefaultMaxParams caps how many parameter fragments appear in a generated
// name before the remainder collapses into plusNmore.
const DefaultMaxParams = 4

// timestampLayout matches the run folder timestamps produced by the
// original batch tooling.
const timestampLayout = "20060102_150405"

// Parameters whose changes are named first, in this order. Everything else
// follows in encounter order.
var priority = []string{
	"SLS_Concentration",
	"InjuryTime",
	"InjuryType",
	"IsInjury",
	"SimTime",
}

// Options adjusts name generation.
type Options struct {
	// Explicit short-circuits generation: when set it is returned verbatim,
	// with no fragments and no timestamp.
	Explicit string
	// MaxParams overrides DefaultMaxParams when positive.
	MaxParams int
	// Now stamps the name; the zero value means time.Now().
	Now time.Time
}

// Generate builds a run name from the changed parameters. encounterOrder
// fixes the order of non-priority fragments; changed parameters absent from
// it are appended in sorted order so the name is deterministic for any
// input. With no changes the name is default_run_<timestamp>.
func Generate(changes map[string]params.Change, encounterOrder []string, opts Options) string {
	if opts.Explicit != "" {
		return opts.Explicit
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	stamp := now.Format(timestampLayout)

	if len(changes) == 0 {
		return "default_run_" + stamp
	}

	maxParams := opts.MaxParams
	if maxParams <= 0 {
		maxParams = DefaultMaxParams
	}

	ordered := orderChanges(changes, encounterOrder)
	parts := make([]string, 0, maxParams+1)
	for _, name := range ordered {
		if len(parts) == maxParams {
			break
		}
		parts = append(parts, FormatParam(name, changes[name].Current))
	}
	if extra := len(ordered) - maxParams; extra > 0 {
		parts = append(parts, fmt.Sprintf("plus%dmore", extra))
	}
	parts = append(parts, stamp)
	return strings.Join(parts, "_")
}

// FormatParam renders one parameter fragment. The five priority parameters
// have dedicated spellings; generic booleans read as On/Off and everything
// else is the name directly followed by the value.
func FormatParam(name string, v params.Value) string {
	switch name {
	case "SLS_Concentration":
		return fmt.Sprintf("SLS%d", v.AsInt())
	case "InjuryTime":
		return fmt.Sprintf("InjT%d", v.AsInt())
	case "InjuryType":
		if v.AsBool() {
			return "chemical"
		}
		return "ablation"
	case "IsInjury":
		if v.AsBool() {
			return "injury"
		}
		return "healthy"
	case "SimTime":
		return fmt.Sprintf("T%d", v.AsInt())
	}
	if v.Kind() == params.KindBool {
		if v.AsBool() {
			return name + "On"
		}
		return name + "Off"
	}
	return name + v.NameLiteral()
}

func orderChanges(changes map[string]params.Change, encounterOrder []string) []string {
	ordered := make([]string, 0, len(changes))
	taken := make(map[string]bool, len(changes))

	for _, name := range priority {
		if _, ok := changes[name]; ok {
			ordered = append(ordered, name)
			taken[name] = true
		}
	}
	for _, name := range encounterOrder {
		if taken[name] {
			continue
		}
		if _, ok := changes[name]; ok {
			ordered = append(ordered, name)
			taken[name] = true
		}
	}

	var rest []string
	for name := range changes {
		if !taken[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}
