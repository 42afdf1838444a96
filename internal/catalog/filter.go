// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package catalog

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"vcornea-orchestrator/internal/params"
)

// Filter evaluates CEL expressions against catalog entries, so callers can
// select parameters with expressions like
//
//	group == 'chemical' && kind == 'float'
//	name.startsWith('SLS_')
//
// Compiled programs are cached per expression; a Filter is safe for
// concurrent use.
type Filter struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewFilter builds the CEL environment for catalog filtering.
func NewFilter() (*Filter, error) {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("group", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("default", cel.DynType),
		cel.Variable("description", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create filter environment: %w", err)
	}
	return &Filter{env: env, cache: make(map[string]cel.Program)}, nil
}

// Match reports whether the entry satisfies the expression. Expressions
// that do not evaluate to a boolean are an error.
func (f *Filter) Match(expr string, e Entry) (bool, error) {
	prog, err := f.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prog.Eval(map[string]interface{}{
		"name":        e.Name,
		"group":       e.Group,
		"kind":        e.Default.Kind().String(),
		"default":     celValue(e.Default),
		"description": e.Description,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, want bool", expr, out.Value())
	}
	return b, nil
}

// Select returns the catalog entries matching the expression, in catalog
// order. An empty expression matches everything.
func (f *Filter) Select(expr string) ([]Entry, error) {
	all := Entries()
	if expr == "" {
		return all, nil
	}
	var matched []Entry
	for _, e := range all {
		ok, err := f.Match(expr, e)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (f *Filter) program(expr string) (cel.Program, error) {
	f.mu.RLock()
	prog, ok := f.cache[expr]
	f.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, iss := f.env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, iss.Err())
	}
	prog, err := f.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build filter program %q: %w", expr, err)
	}

	f.mu.Lock()
	f.cache[expr] = prog
	f.mu.Unlock()
	return prog, nil
}

func celValue(v params.Value) interface{} {
	switch v.Kind() {
	case params.KindBool:
		return v.AsBool()
	case params.KindInt:
		return v.AsInt()
	case params.KindFloat:
		return v.AsFloat()
	default:
		return v.AsString()
	}
}
